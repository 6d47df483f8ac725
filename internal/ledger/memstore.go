package ledger

import (
	"context"
	"sync"

	"sportpos/backend/internal/domain"
)

// MemStore is a Store kept entirely in memory. It backs tests and the
// no-persistence dev mode.
type MemStore struct {
	mu      sync.Mutex
	records []domain.InvoiceRecord
	saves   int
	failErr error
}

func NewMemStore(seed ...domain.InvoiceRecord) *MemStore {
	records := make([]domain.InvoiceRecord, len(seed))
	copy(records, seed)
	return &MemStore{records: records}
}

// FailWith makes every subsequent Save return err. Used by tests to
// exercise the in-memory-state-stays-authoritative contract.
func (s *MemStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *MemStore) Load(_ context.Context) ([]domain.InvoiceRecord, LoadStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.InvoiceRecord, len(s.records))
	copy(out, s.records)
	return out, LoadStats{}, nil
}

func (s *MemStore) Save(_ context.Context, records []domain.InvoiceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.records = make([]domain.InvoiceRecord, len(records))
	copy(s.records, records)
	s.saves++
	return nil
}

// Saves reports how many successful full dumps have happened.
func (s *MemStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemStore) Close() error { return nil }
