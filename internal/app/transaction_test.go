package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-ranking-service/internal/domain"
)

var txNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func TestApplyAttemptCreatesAggregate(t *testing.T) {
	next, delta := applyAttempt(domain.Aggregate{}, false, "u1", "q1", 80, "Alice", txNow)

	assert.True(t, delta.Improved)
	assert.Equal(t, "u1", next.UserID)
	assert.Equal(t, "Alice", next.DisplayName)
	assert.Equal(t, 80, next.TotalScore)
	assert.Equal(t, 1, next.QuizzesCounted)
	assert.Equal(t, map[string]int{"q1": 80}, next.BestByQuiz)
}

func TestApplyAttemptZeroScoreOmitsBestEntry(t *testing.T) {
	next, delta := applyAttempt(domain.Aggregate{}, false, "u1", "q1", 0, "Alice", txNow)

	assert.False(t, delta.Improved)
	assert.Equal(t, 0, next.TotalScore)
	assert.Equal(t, 0, next.QuizzesCounted)
	assert.Empty(t, next.BestByQuiz)
}

func TestApplyAttemptRefreshesNameWithoutImprovement(t *testing.T) {
	snapshot := domain.Aggregate{
		UserID:         "u1",
		DisplayName:    "Old Name",
		TotalScore:     80,
		QuizzesCounted: 1,
		BestByQuiz:     map[string]int{"q1": 80},
	}

	next, delta := applyAttempt(snapshot, true, "u1", "q1", 50, "New Name", txNow)

	assert.False(t, delta.Improved)
	assert.Equal(t, "New Name", next.DisplayName)
	assert.Equal(t, 80, next.TotalScore)
	assert.Equal(t, 1, next.QuizzesCounted)
	assert.Equal(t, map[string]int{"q1": 80}, next.BestByQuiz)
}

// Re-running the computation against the same snapshot must yield the same
// aggregate: a conflicted transaction retries from a fresh read and still
// applies the attempt exactly once.
func TestApplyAttemptIdempotentUnderRetry(t *testing.T) {
	snapshot := domain.Aggregate{
		UserID:         "u1",
		DisplayName:    "Alice",
		TotalScore:     80,
		QuizzesCounted: 1,
		BestByQuiz:     map[string]int{"q1": 80},
	}

	once, _ := applyAttempt(snapshot, true, "u1", "q2", 100, "Alice", txNow)
	twice, _ := applyAttempt(snapshot, true, "u1", "q2", 100, "Alice", txNow)

	assert.Equal(t, once, twice)
	// And the source snapshot is untouched.
	assert.Equal(t, map[string]int{"q1": 80}, snapshot.BestByQuiz)
}

func TestApplyAttemptKeepsInvariants(t *testing.T) {
	agg := domain.Aggregate{}
	exists := false
	steps := []struct {
		quizID string
		score  int
	}{
		{"q1", 80}, {"q1", 50}, {"q2", 100}, {"q3", 0}, {"q1", 90}, {"q2", 100},
	}
	for _, step := range steps {
		agg, _ = applyAttempt(agg, exists, "u1", step.quizID, step.score, "Alice", txNow)
		exists = true

		sum := 0
		positive := 0
		for _, best := range agg.BestByQuiz {
			require.Greater(t, best, 0, "zero bests must never be stored")
			sum += best
			positive++
		}
		require.Equal(t, sum, agg.TotalScore)
		require.Equal(t, positive, agg.QuizzesCounted)
	}
	assert.Equal(t, 190, agg.TotalScore)
	assert.Equal(t, map[string]int{"q1": 90, "q2": 100}, agg.BestByQuiz)
}
