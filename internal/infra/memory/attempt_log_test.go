package memory

import (
	"context"
	"testing"
	"time"

	"quiz-ranking-service/internal/domain"
)

func TestAttemptLogNewestFirst(t *testing.T) {
	log := NewAttemptLog()
	now := time.Now().UTC()

	for i, id := range []string{"a1", "a2", "a3"} {
		err := log.Append(context.Background(), domain.Attempt{
			ID:         id,
			UserID:     "u1",
			QuizID:     "quiz-1",
			FinishedAt: now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	attempts, err := log.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(attempts))
	}
	for i, want := range []string{"a3", "a2", "a1"} {
		if attempts[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, attempts[i].ID)
		}
	}
}

func TestAttemptLogSeparatesUsers(t *testing.T) {
	log := NewAttemptLog()
	now := time.Now().UTC()

	if err := log.Append(context.Background(), domain.Attempt{ID: "a1", UserID: "u1", FinishedAt: now}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Append(context.Background(), domain.Attempt{ID: "b1", UserID: "u2", FinishedAt: now}); err != nil {
		t.Fatalf("append: %v", err)
	}

	attempts, err := log.ListByUser(context.Background(), "u2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(attempts) != 1 || attempts[0].ID != "b1" {
		t.Fatalf("expected only u2 attempts, got %v", attempts)
	}
}

func TestCachedProfilesMemoizes(t *testing.T) {
	upstream := &countingResolver{names: map[string]string{"u1": "Alice"}}
	cached := NewCachedProfiles(upstream, time.Minute)

	for i := 0; i < 3; i++ {
		name, err := cached.DisplayName(context.Background(), "u1")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if name != "Alice" {
			t.Fatalf("expected Alice, got %q", name)
		}
	}
	if upstream.calls != 1 {
		t.Fatalf("expected a single upstream lookup, got %d", upstream.calls)
	}
}

type countingResolver struct {
	names map[string]string
	calls int
}

func (r *countingResolver) DisplayName(_ context.Context, userID string) (string, error) {
	r.calls++
	return r.names[userID], nil
}
