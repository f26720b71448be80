package memory

import (
	"context"
	"sync"

	"quiz-ranking-service/internal/domain"
)

// AggregateStore is the in-process implementation of app.AggregateStore.
// Each aggregate carries a version counter; CompareAndSwap succeeds only when
// the caller read the latest one, which emulates a document store's
// conditional single-key write.
type AggregateStore struct {
	mu    sync.RWMutex
	docs  map[string]*versionedAggregate
	order []string
}

type versionedAggregate struct {
	agg     domain.Aggregate
	version uint64
}

func NewAggregateStore() *AggregateStore {
	return &AggregateStore{
		docs: make(map[string]*versionedAggregate),
	}
}

func (s *AggregateStore) Get(_ context.Context, userID string) (domain.Aggregate, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[userID]
	if !ok {
		return domain.Aggregate{}, 0, domain.ErrAggregateNotFound
	}
	return doc.agg.Clone(), doc.version, nil
}

func (s *AggregateStore) CompareAndSwap(_ context.Context, userID string, expected uint64, agg domain.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[userID]
	if !ok {
		if expected != 0 {
			return domain.ErrVersionConflict
		}
		s.docs[userID] = &versionedAggregate{agg: agg.Clone(), version: 1}
		s.order = append(s.order, userID)
		return nil
	}
	if doc.version != expected {
		return domain.ErrVersionConflict
	}
	doc.agg = agg.Clone()
	doc.version++
	return nil
}

// List returns aggregates in first-write order.
func (s *AggregateStore) List(_ context.Context) ([]domain.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Aggregate, 0, len(s.order))
	for _, userID := range s.order {
		if doc, ok := s.docs[userID]; ok {
			out = append(out, doc.agg.Clone())
		}
	}
	return out, nil
}
