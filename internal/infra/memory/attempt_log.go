package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-ranking-service/internal/domain"
)

// AttemptLog is an in-process append-only attempt store.
type AttemptLog struct {
	mu     sync.RWMutex
	byUser map[string][]domain.Attempt
}

func NewAttemptLog() *AttemptLog {
	return &AttemptLog{
		byUser: make(map[string][]domain.Attempt),
	}
}

func (l *AttemptLog) Append(_ context.Context, attempt domain.Attempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	attempts := append(l.byUser[attempt.UserID], attempt)
	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].FinishedAt.After(attempts[j].FinishedAt)
	})
	l.byUser[attempt.UserID] = attempts
	return nil
}

func (l *AttemptLog) ListByUser(_ context.Context, userID string) ([]domain.Attempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	attempts := l.byUser[userID]
	out := make([]domain.Attempt, len(attempts))
	copy(out, attempts)
	return out, nil
}
