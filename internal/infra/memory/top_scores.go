package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-ranking-service/internal/domain"
)

// TopScoreStore keeps per-quiz best results in memory, merging keep-max per
// user.
type TopScoreStore struct {
	mu     sync.RWMutex
	byQuiz map[string]map[string]domain.QuizTopEntry
}

func NewTopScoreStore() *TopScoreStore {
	return &TopScoreStore{
		byQuiz: make(map[string]map[string]domain.QuizTopEntry),
	}
}

func (s *TopScoreStore) Record(_ context.Context, quizID string, entry domain.QuizTopEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.byQuiz[quizID]
	if !ok {
		entries = make(map[string]domain.QuizTopEntry)
		s.byQuiz[quizID] = entries
	}
	if cur, ok := entries[entry.UserID]; ok && cur.Score >= entry.Score {
		return nil
	}
	entries[entry.UserID] = entry
	return nil
}

func (s *TopScoreStore) Top(_ context.Context, quizID string, limit int) ([]domain.QuizTopEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.QuizTopEntry, 0, len(s.byQuiz[quizID]))
	for _, entry := range s.byQuiz[quizID] {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].FinishedAt.Equal(entries[j].FinishedAt) {
			return entries[i].FinishedAt.Before(entries[j].FinishedAt)
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
