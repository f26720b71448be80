package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-ranking-service/internal/domain"
)

func TestQuizCatalogLoadsOnceWhileCached(t *testing.T) {
	loader := &countingLoader{quizzes: []domain.Quiz{
		{ID: "quiz-1", Title: "General Knowledge", Active: true},
	}}
	catalog := NewQuizCatalog(newTestClient(t), loader, time.Minute)

	quiz, err := catalog.Get(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.Title != "General Knowledge" {
		t.Fatalf("unexpected title %q", quiz.Title)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := catalog.Get(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuizCatalogUnknownQuiz(t *testing.T) {
	loader := &countingLoader{quizzes: []domain.Quiz{
		{ID: "quiz-1", Title: "General Knowledge", Active: true},
	}}
	catalog := NewQuizCatalog(newTestClient(t), loader, time.Minute)

	if _, err := catalog.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestQuizCatalogListActiveFilters(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	loader := &countingLoader{quizzes: []domain.Quiz{
		{ID: "q-on", Title: "Visible", Active: true, UpdatedAt: base},
		{ID: "q-off", Title: "Hidden", Active: false, UpdatedAt: base.Add(time.Hour)},
		{ID: "q-recent", Title: "Fresh", Active: true, UpdatedAt: base.Add(2 * time.Hour)},
	}}
	catalog := NewQuizCatalog(newTestClient(t), loader, time.Minute)

	quizzes, err := catalog.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(quizzes) != 2 {
		t.Fatalf("expected 2 active quizzes, got %d", len(quizzes))
	}
	if quizzes[0].ID != "q-recent" || quizzes[1].ID != "q-on" {
		t.Fatalf("unexpected order: %s, %s", quizzes[0].ID, quizzes[1].ID)
	}
}

type countingLoader struct {
	quizzes []domain.Quiz
	calls   int
}

func (l *countingLoader) LoadQuizzes(_ context.Context) ([]domain.Quiz, error) {
	l.calls++
	out := make([]domain.Quiz, len(l.quizzes))
	copy(out, l.quizzes)
	return out, nil
}
