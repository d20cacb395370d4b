// Package anomaly implements an online sliding-window anomaly detector for
// per-actor crypto-operation activity. It follows the shape of NonceStore
// (crypto/replay_protection.go): a mutex-guarded per-key cache, an
// injectable clock, and reset semantics that simply move the window's
// effective start forward rather than deleting history.
//
// Unlike NonceStore, the detector does not own its data — it reads the
// operations store and audit recorder directly, so "reset" is a per-actor
// watermark rather than a cache eviction.
package anomaly

import (
	"sync"
	"time"

	"github.com/opd-ai/privacycore/internal/audit"
	"github.com/opd-ai/privacycore/internal/clock"
	"github.com/opd-ai/privacycore/internal/domain"
	"github.com/opd-ai/privacycore/internal/metrics"
	"github.com/opd-ai/privacycore/internal/obslog"
	"github.com/opd-ai/privacycore/internal/operations"
)

// Severity classifies an Anomaly's urgency.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Kind names which detector fired.
type Kind string

const (
	KindHighVolume     Kind = "high_volume"
	KindHighFailure    Kind = "high_failure_rate"
	KindRevokedKeyUse  Kind = "revoked_key_usage"
	KindUnusualTime    Kind = "unusual_time"
)

// Anomaly is the outcome of a detector hit.
type Anomaly struct {
	Type     Kind
	Severity Severity
	Details  map[string]interface{}
}

// Config holds the detector's thresholds.
type Config struct {
	MaxOpsPerWindow             int
	Window                      time.Duration
	FailureRatioThreshold       float64
	RevokedKeyAttemptsThreshold int
	WorkingHoursStart           int // inclusive, local hour 0-23
	WorkingHoursEnd             int // exclusive, local hour 0-23
}

// DefaultConfig returns the detector's documented out-of-box thresholds.
func DefaultConfig() Config {
	return Config{
		MaxOpsPerWindow:             20,
		Window:                      60 * time.Second,
		FailureRatioThreshold:       0.30,
		RevokedKeyAttemptsThreshold: 2,
		WorkingHoursStart:           7,
		WorkingHoursEnd:             22,
	}
}

// Detector evaluates the four fixed-order detectors against an actor's
// recent operations and audit history.
type Detector struct {
	mu      sync.RWMutex
	clock   clock.Provider
	config  Config
	ops     *operations.Store
	auditor *audit.Recorder
	resetAt map[int64]time.Time
	firedAt map[int64]map[Kind]time.Time
	metrics *metrics.Registry
}

// SetMetrics attaches a metrics.Registry that every subsequent Record call
// reports to. Passing nil detaches metrics reporting.
func (d *Detector) SetMetrics(m *metrics.Registry) {
	d.metrics = m
}

// New creates a Detector with DefaultConfig and the system clock.
func New(ops *operations.Store, auditor *audit.Recorder) *Detector {
	return NewWithConfig(ops, auditor, DefaultConfig(), clock.Default)
}

// NewWithConfig is New with explicit configuration and clock, for production
// tuning and deterministic tests.
func NewWithConfig(ops *operations.Store, auditor *audit.Recorder, config Config, clk clock.Provider) *Detector {
	return &Detector{
		clock:   clk,
		config:  config,
		ops:     ops,
		auditor: auditor,
		resetAt: make(map[int64]time.Time),
		firedAt: make(map[int64]map[Kind]time.Time),
	}
}

// Analyze evaluates the detectors in fixed order against actor's window and
// returns the first hit, or nil if none fire.
func (d *Detector) Analyze(actor int64) *Anomaly {
	now := d.clock.Now()
	start := now.Add(-d.config.Window)

	d.mu.RLock()
	if watermark, ok := d.resetAt[actor]; ok && watermark.After(start) {
		start = watermark
	}
	d.mu.RUnlock()

	opsInWindow := windowedOps(d.ops.ListForActor(actor), start)

	// Status=FAILED naturally excludes this detector's own ANOMALY_DETECTED /
	// WARNING emissions, since those are never recorded with status FAILED.
	failedStatus := domain.AuditFailed
	failedAudits := windowedAudits(d.auditor.Query(audit.Filters{Actor: &actor, Status: &failedStatus}, 0, 0), start)
	failedDataAudits := filterDataActions(failedAudits)

	if anomaly := detectHighVolume(d.config, opsInWindow); anomaly != nil {
		return anomaly
	}
	if anomaly := detectHighFailureRate(d.config, opsInWindow, failedDataAudits); anomaly != nil {
		return anomaly
	}
	if anomaly := detectRevokedKeyUsage(d.config, failedDataAudits); anomaly != nil {
		return anomaly
	}
	if anomaly := detectUnusualTime(d.config, opsInWindow); anomaly != nil {
		return anomaly
	}
	return nil
}

func windowedOps(all []domain.OperationRecord, start time.Time) []domain.OperationRecord {
	out := make([]domain.OperationRecord, 0, len(all))
	for _, op := range all {
		if !op.Timestamp.Before(start) {
			out = append(out, op)
		}
	}
	return out
}

func windowedAudits(all []domain.AuditRecord, start time.Time) []domain.AuditRecord {
	out := make([]domain.AuditRecord, 0, len(all))
	for _, rec := range all {
		if !rec.Timestamp.Before(start) {
			out = append(out, rec)
		}
	}
	return out
}

func filterDataActions(all []domain.AuditRecord) []domain.AuditRecord {
	out := make([]domain.AuditRecord, 0, len(all))
	for _, rec := range all {
		if rec.Action == domain.ActionDataEncrypt || rec.Action == domain.ActionDataDecrypt {
			out = append(out, rec)
		}
	}
	return out
}

func detectHighVolume(cfg Config, opsInWindow []domain.OperationRecord) *Anomaly {
	if len(opsInWindow) <= cfg.MaxOpsPerWindow {
		return nil
	}
	return &Anomaly{
		Type:     KindHighVolume,
		Severity: SeverityMedium,
		Details: map[string]interface{}{
			"count":     len(opsInWindow),
			"threshold": cfg.MaxOpsPerWindow,
		},
	}
}

func detectHighFailureRate(cfg Config, opsInWindow []domain.OperationRecord, failedDataAudits []domain.AuditRecord) *Anomaly {
	total := len(opsInWindow) + len(failedDataAudits)
	if total == 0 {
		return nil
	}
	ratio := float64(len(failedDataAudits)) / float64(total)
	if ratio < cfg.FailureRatioThreshold {
		return nil
	}
	return &Anomaly{
		Type:     KindHighFailure,
		Severity: SeverityHigh,
		Details: map[string]interface{}{
			"ratio":     ratio,
			"threshold": cfg.FailureRatioThreshold,
		},
	}
}

func detectRevokedKeyUsage(cfg Config, failedDataAudits []domain.AuditRecord) *Anomaly {
	count := 0
	for _, rec := range failedDataAudits {
		if rec.Details["error"] == "key_not_active" {
			count++
		}
	}
	if count < cfg.RevokedKeyAttemptsThreshold {
		return nil
	}
	return &Anomaly{
		Type:     KindRevokedKeyUse,
		Severity: SeverityHigh,
		Details: map[string]interface{}{
			"count":     count,
			"threshold": cfg.RevokedKeyAttemptsThreshold,
		},
	}
}

func detectUnusualTime(cfg Config, opsInWindow []domain.OperationRecord) *Anomaly {
	for _, op := range opsInWindow {
		hour := op.Timestamp.Local().Hour()
		if hour < cfg.WorkingHoursStart || hour >= cfg.WorkingHoursEnd {
			return &Anomaly{
				Type:     KindUnusualTime,
				Severity: SeverityLow,
				Details: map[string]interface{}{
					"hour": hour,
				},
			}
		}
	}
	return nil
}

// Record writes anomaly as an ANOMALY_DETECTED / WARNING AuditRecord.
func (d *Detector) Record(actor int64, anomaly *Anomaly) (domain.AuditRecord, error) {
	resource := string(anomaly.Type)
	details := map[string]interface{}{"type": string(anomaly.Type), "severity": string(anomaly.Severity)}
	for k, v := range anomaly.Details {
		details[k] = v
	}

	rec, err := d.auditor.Record(domain.AuditRecord{
		Actor:    &actor,
		Action:   domain.ActionAnomalyDetected,
		Resource: &resource,
		Status:   domain.AuditWarning,
		Details:  details,
	})
	if err == nil {
		d.metrics.ObserveAnomaly(string(anomaly.Type), string(anomaly.Severity))
	}
	return rec, err
}

// AnalyzeAndRecord runs Analyze and, on a hit, persists it via Record. It is
// meant to be launched as a fire-and-forget goroutine by the crypto engine;
// failures are logged, never propagated.
//
// A hit of the same Kind for the same actor within the detector's window is
// suppressed after the first, so a sustained burst (e.g. an actor parked
// above the high-volume threshold for several operations) produces one
// ANOMALY_DETECTED record per window rather than one per operation.
func (d *Detector) AnalyzeAndRecord(actor int64) {
	logger := obslog.New("anomaly", "AnalyzeAndRecord").WithField("actor", actor)

	anomaly := d.Analyze(actor)
	if anomaly == nil {
		return
	}
	if !d.shouldFire(actor, anomaly.Type) {
		return
	}
	if _, err := d.Record(actor, anomaly); err != nil {
		logger.WithError(err, "record_failed", "Record").Error("failed to persist anomaly record")
	}
}

// shouldFire reports whether Kind has not already fired for actor within the
// current cooldown window, and marks it as fired if so.
func (d *Detector) shouldFire(actor int64, kind Kind) bool {
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	perActor, ok := d.firedAt[actor]
	if !ok {
		perActor = make(map[Kind]time.Time)
		d.firedAt[actor] = perActor
	}
	if last, fired := perActor[kind]; fired && now.Sub(last) < d.config.Window {
		return false
	}
	perActor[kind] = now
	return true
}

// Reset clears actor's effective window: Analyze will ignore any operation
// or audit record timestamped before now.
func (d *Detector) Reset(actor int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetAt[actor] = d.clock.Now()
	delete(d.firedAt, actor)
}
