// Package privacycore is the facade over the cryptographic core:
// multi-algorithm key lifecycle management, envelope-encrypted storage of
// key material, an encrypt/decrypt engine, append-only operations and
// audit logs, an online anomaly detector, and a backup codec. A thin
// transport layer is expected to call Core's methods; Core itself never
// speaks a wire protocol.
package privacycore

import (
	"github.com/opd-ai/privacycore/internal/anomaly"
	"github.com/opd-ai/privacycore/internal/audit"
	"github.com/opd-ai/privacycore/internal/backupcodec"
	"github.com/opd-ai/privacycore/internal/clock"
	"github.com/opd-ai/privacycore/internal/config"
	"github.com/opd-ai/privacycore/internal/cryptoengine"
	"github.com/opd-ai/privacycore/internal/domain"
	"github.com/opd-ai/privacycore/internal/envelope"
	"github.com/opd-ai/privacycore/internal/keyregistry"
	"github.com/opd-ai/privacycore/internal/metrics"
	"github.com/opd-ai/privacycore/internal/obslog"
	"github.com/opd-ai/privacycore/internal/operations"
	"github.com/opd-ai/privacycore/internal/policy"
	"github.com/prometheus/client_golang/prometheus"
)

// Core wires every core component together behind the key management,
// encrypt/decrypt, backup, and audit operations it exposes.
type Core struct {
	registry *keyregistry.Registry
	engine   *cryptoengine.Engine
	auditor  *audit.Recorder
	ops      *operations.Store
	detector *anomaly.Detector
	codec    *backupcodec.Codec
	guard    *policy.Guard
}

// New wires a Core around wrapper using the anomaly detector's documented
// default thresholds.
func New(wrapper *envelope.Wrapper) *Core {
	return NewWithConfig(wrapper, config.Default())
}

// NewWithConfig is New with explicit anomaly thresholds.
func NewWithConfig(wrapper *envelope.Wrapper, cfg config.Config) *Core {
	if wrapper.Generated {
		obslog.New("privacycore", "NewWithConfig").Warn("master key was auto-generated; wrapped key material will not survive a process restart")
	}

	registry := keyregistry.New(wrapper)
	ops := operations.New()
	auditor := audit.New(wrapper.KeyBytes())
	detector := anomaly.NewWithConfig(ops, auditor, cfg.Anomaly.ToAnomalyConfig(), clock.Default)
	engine := cryptoengine.New(registry, ops, auditor, detector)
	codec := backupcodec.New(registry, wrapper)

	return &Core{
		registry: registry,
		engine:   engine,
		auditor:  auditor,
		ops:      ops,
		detector: detector,
		codec:    codec,
		guard:    policy.New(),
	}
}

// NewFromEnvironment wires a Core using envelope.LoadFromEnvironment for the
// master key and config.Default for anomaly thresholds.
func NewFromEnvironment() (*Core, error) {
	wrapper, err := envelope.LoadFromEnvironment()
	if err != nil {
		return nil, err
	}
	return New(wrapper), nil
}

// EnableMetrics registers Prometheus collectors against reg and attaches
// them to every component that reports metrics.
func (c *Core) EnableMetrics(reg prometheus.Registerer) {
	m := metrics.New(reg)
	c.engine.SetMetrics(m)
	c.auditor.SetMetrics(m)
	c.detector.SetMetrics(m)
	c.registry.SetMetrics(m)
}

func (c *Core) recordDenied(actor domain.Actor, action domain.AuditAction, resource string, cause error) {
	res := resource
	if _, err := c.auditor.Record(domain.AuditRecord{
		Actor: &actor.ID, Action: action, Resource: &res, Status: domain.AuditFailed,
		Details: map[string]interface{}{"error": domain.ClassifyForAudit(cause)},
	}); err != nil {
		obslog.New("privacycore", "recordDenied").WithError(err, "audit_write_failed", "Record").Error("failed to write denial audit record")
	}
}

// CreateKey generates and persists a new key owned by actor.
func (c *Core) CreateKey(actor domain.Actor, name string, algorithm domain.Algorithm) (domain.KeyRecord, error) {
	rec, err := c.registry.CreateKey(actor.ID, name, algorithm)
	if err != nil {
		c.recordDenied(actor, domain.ActionKeyGenerate, name, err)
		return domain.KeyRecord{}, err
	}

	resource := rec.PublicID
	c.auditor.Record(domain.AuditRecord{Actor: &actor.ID, Action: domain.ActionKeyGenerate, Resource: &resource, Status: domain.AuditSuccess})
	return rec.Redacted(), nil
}

// RevokeKey transitions a key to revoked. Authorization is checked against
// the resolved KeyRecord before the registry mutation runs.
func (c *Core) RevokeKey(actor domain.Actor, keyInternalID int64) error {
	rec, ok := c.registry.GetKey(keyInternalID)
	if !ok {
		c.recordDenied(actor, domain.ActionKeyRevoke, "", domain.ErrKeyUnknown)
		return domain.ErrKeyUnknown
	}
	if err := c.guard.AuthorizeMutate(actor, *rec); err != nil {
		c.recordDenied(actor, domain.ActionKeyRevoke, rec.PublicID, err)
		return err
	}

	if err := c.registry.Revoke(keyInternalID); err != nil {
		c.recordDenied(actor, domain.ActionKeyRevoke, rec.PublicID, err)
		return err
	}

	resource := rec.PublicID
	c.auditor.Record(domain.AuditRecord{Actor: &actor.ID, Action: domain.ActionKeyRevoke, Resource: &resource, Status: domain.AuditSuccess})
	return nil
}

// ListKeys returns actor's redacted KeyRecords.
func (c *Core) ListKeys(actor domain.Actor) []domain.KeyRecord {
	records := c.registry.ListKeysFor(actor.ID)
	out := make([]domain.KeyRecord, len(records))
	for i, rec := range records {
		out[i] = rec.Redacted()
	}
	return out
}

// Encrypt authorizes actor against keyInternalID, then dispatches to the
// crypto engine.
func (c *Core) Encrypt(actor domain.Actor, keyInternalID int64, plaintext []byte, resourceLabel string) (string, error) {
	if rec, ok := c.registry.GetKey(keyInternalID); ok {
		if err := c.guard.AuthorizeUse(actor, *rec); err != nil {
			c.recordDenied(actor, domain.ActionDataEncrypt, resourceLabel, err)
			return "", err
		}
	}
	return c.engine.Encrypt(actor.ID, keyInternalID, plaintext, resourceLabel)
}

// Decrypt authorizes actor against keyInternalID, then dispatches to the
// crypto engine.
func (c *Core) Decrypt(actor domain.Actor, keyInternalID int64, envelope, resourceLabel string) ([]byte, error) {
	if rec, ok := c.registry.GetKey(keyInternalID); ok {
		if err := c.guard.AuthorizeUse(actor, *rec); err != nil {
			c.recordDenied(actor, domain.ActionDataDecrypt, resourceLabel, err)
			return nil, err
		}
	}
	return c.engine.Decrypt(actor.ID, keyInternalID, envelope, resourceLabel)
}

// ExportBackup builds a backup artifact for every key actor owns.
func (c *Core) ExportBackup(actor domain.Actor) (string, error) {
	artifact, err := c.codec.Export(actor.ID)
	if err != nil {
		c.recordDenied(actor, domain.ActionKeyBackup, "", err)
		return "", err
	}
	c.auditor.Record(domain.AuditRecord{Actor: &actor.ID, Action: domain.ActionKeyBackup, Status: domain.AuditSuccess})
	return artifact, nil
}

// ImportBackup restores keys from artifact into actor's account.
func (c *Core) ImportBackup(actor domain.Actor, artifact string) (restored int, err error) {
	restored, err = c.codec.Import(actor.ID, artifact)
	if err != nil {
		c.recordDenied(actor, domain.ActionKeyRestore, "", err)
		return restored, err
	}
	c.auditor.Record(domain.AuditRecord{
		Actor: &actor.ID, Action: domain.ActionKeyRestore, Status: domain.AuditSuccess,
		Details: map[string]interface{}{"restored_count": restored},
	})
	return restored, nil
}

// ListOperations returns actor's most recent successful operations, newest
// first, capped at limit.
func (c *Core) ListOperations(actor domain.Actor, limit int) []domain.OperationRecord {
	return c.ops.ListRecent(actor.ID, limit)
}

// QueryAudit returns audit records matching filters and the total matching
// count. Non-administrators are confined to their own records regardless of
// what filters.Actor requested.
func (c *Core) QueryAudit(actor domain.Actor, filters audit.Filters, limit, offset int) ([]domain.AuditRecord, int) {
	if actor.Role != domain.RoleAdministrator {
		self := actor.ID
		filters.Actor = &self
	}
	return c.auditor.Query(filters, limit, offset), c.auditor.Count(filters)
}

// SecurityAlerts returns ANOMALY_DETECTED audit records. Administrators see
// every actor's alerts; other actors see only their own.
func (c *Core) SecurityAlerts(actor domain.Actor) []domain.AuditRecord {
	action := domain.ActionAnomalyDetected
	filters := audit.Filters{Action: &action}
	if actor.Role != domain.RoleAdministrator {
		self := actor.ID
		filters.Actor = &self
	}
	return c.auditor.Query(filters, 0, 0)
}

// ClearAlerts resets actor's anomaly detection window and records the
// operator action.
func (c *Core) ClearAlerts(actor domain.Actor) error {
	c.detector.Reset(actor.ID)
	_, err := c.auditor.Record(domain.AuditRecord{Actor: &actor.ID, Action: domain.ActionAlertsCleared, Status: domain.AuditSuccess})
	return err
}
