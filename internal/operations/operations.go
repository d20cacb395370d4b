// Package operations is the append-only store of successful encrypt/decrypt
// calls only: this store holds successes, internal/audit holds everything
// including failures. The anomaly detector's high_volume detector reads
// this store directly.
package operations

import (
	"sync"

	"github.com/opd-ai/privacycore/internal/clock"
	"github.com/opd-ai/privacycore/internal/domain"
)

// Store is a single-writer, many-reader append-only operations log.
type Store struct {
	mu     sync.RWMutex
	clock  clock.Provider
	nextID int64
	byID   []domain.OperationRecord
	byActor map[int64][]int64 // actor -> indices into byID
}

// New creates an empty Store using the system clock.
func New() *Store {
	return NewWithClock(clock.Default)
}

// NewWithClock is New with an injectable clock, for deterministic tests.
func NewWithClock(clk clock.Provider) *Store {
	return &Store{clock: clk, byActor: make(map[int64][]int64)}
}

// Append records a successful operation and stamps its id and timestamp.
func (s *Store) Append(rec domain.OperationRecord) domain.OperationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec.ID = s.nextID
	rec.Timestamp = s.clock.Now()
	rec.Outcome = domain.OutcomeSuccess

	s.byID = append(s.byID, rec)
	s.byActor[rec.Actor] = append(s.byActor[rec.Actor], len(s.byID)-1)
	return rec
}

// ListForActor returns every recorded operation for actor, oldest first.
func (s *Store) ListForActor(actor int64) []domain.OperationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idxs := s.byActor[actor]
	out := make([]domain.OperationRecord, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, s.byID[idx])
	}
	return out
}

// ListRecent returns the most recent limit operations for actor, newest
// first.
func (s *Store) ListRecent(actor int64, limit int) []domain.OperationRecord {
	all := s.ListForActor(actor)
	out := make([]domain.OperationRecord, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out
}
