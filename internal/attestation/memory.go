package attestation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory, thread-safe Store implementation. It backs
// tests and single-process deployments, and doubles as the overflow buffer
// merged (durable store first) into listings by the service.
//
// Lifecycle: created at process start, torn down with the process; it is
// never implicitly merged with the durable store except through the
// service's documented de-duplication rule.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record // insertion order, preserved for stable tie-breaks
	byID    map[uuid.UUID]*Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[uuid.UUID]*Record)}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records = append(s.records, &cp)
	s.byID[cp.ID] = &cp
	return nil
}

// GetByID implements Store.
func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListByBusiness implements Store. Records come back in insertion order;
// the service owns sorting.
func (s *MemoryStore) ListByBusiness(_ context.Context, businessID string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, rec := range s.records {
		if rec.BusinessID == businessID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MarkRevoked implements Store.
func (s *MemoryStore) MarkRevoked(_ context.Context, id uuid.UUID, reason string, revokedAt time.Time) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	rec.Status = StatusRevoked
	rec.RevokeReason = reason
	t := revokedAt
	rec.RevokedAt = &t
	cp := *rec
	return &cp, nil
}

// ListPendingAnchor implements PendingAnchorStore.
func (s *MemoryStore) ListPendingAnchor(_ context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, rec := range s.records {
		if rec.AnchorPending() {
			cp := *rec
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// UpdateTxHash implements PendingAnchorStore.
func (s *MemoryStore) UpdateTxHash(_ context.Context, id uuid.UUID, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	rec.TxHash = txHash
	return nil
}
