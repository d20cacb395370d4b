// Package keyregistry persists KeyRecords and enforces the key lifecycle
// state machine: active -> {revoked, expired}, monotonic, never reversed.
// Concurrency discipline follows key_rotation.go's KeyRotationManager
// (guards its current/previous keys under a single mutex) and
// replay_protection.go's NonceStore (monotonic timestamp writes under the
// same lock that reads them).
package keyregistry

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/opd-ai/privacycore/internal/clock"
	"github.com/opd-ai/privacycore/internal/domain"
	"github.com/opd-ai/privacycore/internal/envelope"
	"github.com/opd-ai/privacycore/internal/metrics"
	"github.com/opd-ai/privacycore/internal/obslog"
	"github.com/opd-ai/privacycore/internal/primitives"
)

// Registry is the authoritative, in-process store of KeyRecords. All
// mutation goes through its methods; callers never construct or edit a
// domain.KeyRecord directly.
type Registry struct {
	mu         sync.RWMutex
	wrapper    *envelope.Wrapper
	clock      clock.Provider
	keys       map[int64]*domain.KeyRecord
	byPublicID map[string]int64
	byOwner    map[int64][]int64
	nextID     int64
	metrics    *metrics.Registry
}

// SetMetrics attaches a metrics.Registry that active key counts are reported
// to on every Create/Revoke. Passing nil detaches metrics reporting.
func (r *Registry) SetMetrics(m *metrics.Registry) {
	r.metrics = m
}

// reportActiveKeys recomputes and publishes the active key count for
// algorithm. Callers must hold r.mu.
func (r *Registry) reportActiveKeys(algorithm domain.Algorithm) {
	count := 0
	for _, rec := range r.keys {
		if rec.Algorithm == algorithm && rec.Status == domain.KeyActive {
			count++
		}
	}
	r.metrics.SetActiveKeys(string(algorithm), count)
}

// New creates an empty Registry backed by wrapper for envelope encryption of
// key material.
func New(wrapper *envelope.Wrapper) *Registry {
	return NewWithClock(wrapper, clock.Default)
}

// NewWithClock is New with an injectable clock, for deterministic tests.
func NewWithClock(wrapper *envelope.Wrapper, clk clock.Provider) *Registry {
	return &Registry{
		wrapper:    wrapper,
		clock:      clk,
		keys:       make(map[int64]*domain.KeyRecord),
		byPublicID: make(map[string]int64),
		byOwner:    make(map[int64][]int64),
	}
}

// CreateKey generates fresh material for algorithm, wraps it under the
// master key, and persists a new active KeyRecord owned by owner.
func (r *Registry) CreateKey(owner int64, name string, algorithm domain.Algorithm) (*domain.KeyRecord, error) {
	logger := obslog.New("keyregistry", "CreateKey").WithFields(map[string]interface{}{
		"owner":     owner,
		"algorithm": string(algorithm),
	})

	if !algorithm.Valid() {
		logger.Warn("rejected key creation: unsupported algorithm")
		return nil, domain.ErrBadAlgorithm
	}

	raw, err := generatePayload(algorithm)
	if err != nil {
		logger.WithError(err, "generation_failed", "generatePayload").Error("failed to generate key material")
		return nil, err
	}

	wrapIV, wrapped, err := r.wrapper.Wrap(raw)
	primitives.ZeroBytes(raw)
	if err != nil {
		logger.WithError(err, "wrap_failed", "Wrap").Error("failed to wrap key material")
		return nil, err
	}

	publicID, err := r.generatePublicID()
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	record := &domain.KeyRecord{
		InternalID:      r.nextID,
		PublicID:        publicID,
		Owner:           owner,
		Name:            name,
		Algorithm:       algorithm,
		WrappedMaterial: wrapped,
		WrapIV:          wrapIV,
		Status:          domain.KeyActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.keys[record.InternalID] = record
	r.byPublicID[record.PublicID] = record.InternalID
	r.byOwner[owner] = append(r.byOwner[owner], record.InternalID)
	r.reportActiveKeys(algorithm)

	logger.WithField("internal_id", record.InternalID).
		WithFields(obslog.SecureFieldHash(wrapped, "wrapped_material")).
		Info("key created")
	return cloneRecord(record), nil
}

// generatePublicID builds a `K-<millis>-<8 hex>` public identifier.
func (r *Registry) generatePublicID() (string, error) {
	suffix, err := primitives.RandomBytes(4)
	if err != nil {
		return "", err
	}
	millis := r.clock.Now().UnixMilli()
	return fmt.Sprintf("K-%d-%s", millis, hex.EncodeToString(suffix)), nil
}

// GetKey looks up a KeyRecord by internal id.
func (r *Registry) GetKey(internalID int64) (*domain.KeyRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.keys[internalID]
	if !ok {
		return nil, false
	}
	return cloneRecord(rec), true
}

// GetKeyByPublicID looks up a KeyRecord by its stable public identifier.
func (r *Registry) GetKeyByPublicID(publicID string) (*domain.KeyRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPublicID[publicID]
	if !ok {
		return nil, false
	}
	return cloneRecord(r.keys[id]), true
}

// ListKeysFor returns every KeyRecord owned by owner.
func (r *Registry) ListKeysFor(owner int64) []domain.KeyRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byOwner[owner]
	out := make([]domain.KeyRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, *cloneRecord(r.keys[id]))
	}
	return out
}

// UnwrapMaterial unwraps and parses the key payload for internalID,
// enforcing that the key is active, and atomically bumps last_used_at.
// Returns domain.ErrKeyUnknown or domain.ErrKeyNotActive on failure.
func (r *Registry) UnwrapMaterial(internalID int64) (Payload, domain.Algorithm, error) {
	logger := obslog.New("keyregistry", "UnwrapMaterial").WithField("internal_id", internalID)

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.keys[internalID]
	if !ok {
		return Payload{}, "", domain.ErrKeyUnknown
	}
	if rec.Status != domain.KeyActive {
		logger.WithField("status", string(rec.Status)).Warn("rejected use of non-active key")
		return Payload{}, "", domain.ErrKeyNotActive
	}

	raw, err := r.wrapper.Unwrap(rec.WrapIV, rec.WrappedMaterial)
	if err != nil {
		logger.WithError(err, "unwrap_failed", "Unwrap").Error("failed to unwrap key material")
		return Payload{}, "", domain.ErrPersistenceFailure
	}
	defer primitives.ZeroBytes(raw)

	p, err := parsePayload(rec.Algorithm, raw)
	if err != nil {
		logger.WithError(err, "malformed_payload", "parsePayload").Error("key payload failed structural validation")
		return Payload{}, "", domain.ErrPersistenceFailure
	}

	now := r.clock.Now()
	rec.LastUsedAt = &now
	rec.UpdatedAt = now

	return p, rec.Algorithm, nil
}

// Revoke transitions a key to revoked. A second revoke on an already
// revoked or expired key is a no-op reported as success.
func (r *Registry) Revoke(internalID int64) error {
	logger := obslog.New("keyregistry", "Revoke").WithField("internal_id", internalID)

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.keys[internalID]
	if !ok {
		return domain.ErrKeyUnknown
	}
	if rec.Status != domain.KeyActive {
		logger.Debug("revoke on already-inactive key treated as a no-op success")
		return nil
	}

	rec.Status = domain.KeyRevoked
	rec.UpdatedAt = r.clock.Now()
	r.reportActiveKeys(rec.Algorithm)
	logger.Info("key revoked")
	return nil
}

// MarkExpired transitions a key to expired. Reserved for an external
// scheduler; no core operation calls this.
func (r *Registry) MarkExpired(internalID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.keys[internalID]
	if !ok {
		return domain.ErrKeyUnknown
	}
	if rec.Status != domain.KeyActive {
		return nil
	}

	rec.Status = domain.KeyExpired
	rec.UpdatedAt = r.clock.Now()
	return nil
}

// InsertRestored inserts a KeyRecord produced by the backup codec's import
// path, preserving its public_id, algorithm, status, and wrapped material
// but reassigning ownership to importer. It is a no-op if public_id already
// exists (backup import idempotence).
func (r *Registry) InsertRestored(importer int64, publicID string, algorithm domain.Algorithm, status domain.KeyStatus, name string, wrapIV, wrappedMaterial []byte) (inserted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byPublicID[publicID]; exists {
		return false
	}

	now := r.clock.Now()
	r.nextID++
	record := &domain.KeyRecord{
		InternalID:      r.nextID,
		PublicID:        publicID,
		Owner:           importer,
		Name:            name,
		Algorithm:       algorithm,
		WrappedMaterial: wrappedMaterial,
		WrapIV:          wrapIV,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.keys[record.InternalID] = record
	r.byPublicID[record.PublicID] = record.InternalID
	r.byOwner[importer] = append(r.byOwner[importer], record.InternalID)
	return true
}

func cloneRecord(rec *domain.KeyRecord) *domain.KeyRecord {
	clone := *rec
	clone.WrappedMaterial = append([]byte(nil), rec.WrappedMaterial...)
	clone.WrapIV = append([]byte(nil), rec.WrapIV...)
	return &clone
}
