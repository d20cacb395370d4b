// Package audit implements the append-only, tamper-evident audit log.
// Tamper evidence is a compact JWS sealed over each record's id, content
// hash, and the previous record's seal (github.com/golang-jwt/jwt/v5, HS256
// keyed off the envelope wrapper's master key) — altering a persisted record
// breaks its own seal, and removing or reordering records breaks the
// previous-seal link of the record that follows; VerifyChain reports the
// first break.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opd-ai/privacycore/internal/clock"
	"github.com/opd-ai/privacycore/internal/domain"
	"github.com/opd-ai/privacycore/internal/metrics"
	"github.com/opd-ai/privacycore/internal/obslog"
)

// Recorder is a single-writer, many-reader append-only audit log.
type Recorder struct {
	mu       sync.Mutex
	clock    clock.Provider
	sealKey  []byte
	nextID   int64
	records  []domain.AuditRecord
	lastSeal string
	metrics  *metrics.Registry
}

// SetMetrics attaches a metrics.Registry that every subsequent Record call
// reports to. Passing nil detaches metrics reporting.
func (r *Recorder) SetMetrics(m *metrics.Registry) {
	r.metrics = m
}

// New creates an empty Recorder sealing records with sealKey (typically
// derived from the envelope wrapper's master key).
func New(sealKey []byte) *Recorder {
	return NewWithClock(sealKey, clock.Default)
}

// NewWithClock is New with an injectable clock, for deterministic tests.
func NewWithClock(sealKey []byte, clk clock.Provider) *Recorder {
	key := append([]byte(nil), sealKey...)
	return &Recorder{clock: clk, sealKey: key}
}

type sealClaims struct {
	ID   int64  `json:"id"`
	Hash string `json:"hash"`
	Prev string `json:"prev"`
	jwt.RegisteredClaims
}

// Record stamps entry with a monotonically increasing id, the current time,
// and a tamper-evident seal, then appends it to the log.
func (r *Recorder) Record(entry domain.AuditRecord) (domain.AuditRecord, error) {
	logger := obslog.New("audit", "Record").WithField("action", string(entry.Action))

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	entry.ID = r.nextID
	entry.Timestamp = r.clock.Now()

	hash, err := contentHash(entry)
	if err != nil {
		return domain.AuditRecord{}, fmt.Errorf("failed to hash audit record: %w", err)
	}

	claims := sealClaims{ID: entry.ID, Hash: hash, Prev: r.lastSeal}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	seal, err := token.SignedString(r.sealKey)
	if err != nil {
		logger.WithError(err, "seal_failed", "SignedString").Error("failed to seal audit record")
		return domain.AuditRecord{}, fmt.Errorf("failed to seal audit record: %w", err)
	}

	entry.Seal = seal
	r.lastSeal = seal
	r.records = append(r.records, entry)

	r.metrics.ObserveAuditWrite(string(entry.Action), string(entry.Status))
	logger.WithField("id", entry.ID).Debug("audit record written")
	return entry, nil
}

func contentHash(entry domain.AuditRecord) (string, error) {
	unsealed := entry
	unsealed.Seal = ""
	bytes, err := json.Marshal(unsealed)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(bytes)
	return hex.EncodeToString(sum[:]), nil
}

// Filters holds equality filters applied by Query/Count.
type Filters struct {
	Actor  *int64
	Action *domain.AuditAction
	Status *domain.AuditStatus
}

func (f Filters) matches(rec domain.AuditRecord) bool {
	if f.Actor != nil && (rec.Actor == nil || *rec.Actor != *f.Actor) {
		return false
	}
	if f.Action != nil && rec.Action != *f.Action {
		return false
	}
	if f.Status != nil && rec.Status != *f.Status {
		return false
	}
	return true
}

// Query returns records matching filters, newest first, applying offset
// then limit.
func (r *Recorder) Query(filters Filters, limit, offset int) []domain.AuditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]domain.AuditRecord, 0)
	for i := len(r.records) - 1; i >= 0; i-- {
		if filters.matches(r.records[i]) {
			matched = append(matched, r.records[i])
		}
	}

	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched
}

// Count returns the total number of records matching filters.
func (r *Recorder) Count(filters Filters) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, rec := range r.records {
		if filters.matches(rec) {
			count++
		}
	}
	return count
}

// VerifyChain re-verifies every seal in order, returning the 1-based index
// of the first broken record, or 0 if the whole chain verifies.
func (r *Recorder) VerifyChain() (brokenAt int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prevSeal := ""
	for i, rec := range r.records {
		hash, herr := contentHash(rec)
		if herr != nil {
			return i + 1, herr
		}

		token, perr := jwt.ParseWithClaims(rec.Seal, &sealClaims{}, func(t *jwt.Token) (interface{}, error) {
			return r.sealKey, nil
		})
		if perr != nil || !token.Valid {
			return i + 1, nil
		}
		claims, ok := token.Claims.(*sealClaims)
		if !ok || claims.ID != rec.ID || claims.Hash != hash || claims.Prev != prevSeal {
			return i + 1, nil
		}
		prevSeal = rec.Seal
	}
	return 0, nil
}
