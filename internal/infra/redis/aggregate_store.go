package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quiz-ranking-service/internal/domain"
)

// AggregateStore keeps one JSON document per user and implements
// compare-and-swap through WATCH/MULTI, Redis's optimistic-concurrency
// primitive. A separate list records first-write order, which is the stable
// tie-break for ranking.
type AggregateStore struct {
	client *redis.Client
}

type aggregateDoc struct {
	Version   uint64           `json:"version"`
	Aggregate domain.Aggregate `json:"aggregate"`
}

func NewAggregateStore(client *redis.Client) *AggregateStore {
	return &AggregateStore{client: client}
}

func (s *AggregateStore) Get(ctx context.Context, userID string) (domain.Aggregate, uint64, error) {
	raw, err := s.client.Get(ctx, s.docKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Aggregate{}, 0, domain.ErrAggregateNotFound
	}
	if err != nil {
		return domain.Aggregate{}, 0, fmt.Errorf("get aggregate: %w", err)
	}
	var doc aggregateDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Aggregate{}, 0, fmt.Errorf("decode aggregate: %w", err)
	}
	return doc.Aggregate, doc.Version, nil
}

func (s *AggregateStore) CompareAndSwap(ctx context.Context, userID string, expected uint64, agg domain.Aggregate) error {
	key := s.docKey(userID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		var current uint64
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			current = 0
		case err != nil:
			return fmt.Errorf("read aggregate: %w", err)
		default:
			var doc aggregateDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("decode aggregate: %w", err)
			}
			current = doc.Version
		}
		if current != expected {
			return domain.ErrVersionConflict
		}

		payload, err := json.Marshal(aggregateDoc{Version: expected + 1, Aggregate: agg})
		if err != nil {
			return fmt.Errorf("encode aggregate: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			if expected == 0 {
				pipe.RPush(ctx, s.orderKey(), userID)
			}
			return nil
		})
		return err
	}, key)

	// A concurrent write to the watched key aborts the MULTI; report it the
	// same way as a stale version so the caller retries from a fresh read.
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrVersionConflict
	}
	return err
}

func (s *AggregateStore) List(ctx context.Context) ([]domain.Aggregate, error) {
	userIDs, err := s.client.LRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	if len(userIDs) == 0 {
		return []domain.Aggregate{}, nil
	}

	keys := make([]string, len(userIDs))
	for i, userID := range userIDs {
		keys[i] = s.docKey(userID)
	}
	raws, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch aggregates: %w", err)
	}

	out := make([]domain.Aggregate, 0, len(raws))
	for _, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		var doc aggregateDoc
		if err := json.Unmarshal([]byte(str), &doc); err != nil {
			continue
		}
		out = append(out, doc.Aggregate)
	}
	return out, nil
}

func (s *AggregateStore) docKey(userID string) string {
	return "lb:user:" + userID
}

func (s *AggregateStore) orderKey() string {
	return "lb:order"
}
