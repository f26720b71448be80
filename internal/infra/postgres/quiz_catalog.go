package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-ranking-service/internal/domain"
)

// QuizLoader loads quiz metadata JSONB from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

// quizDoc mirrors a stored quiz document. Absent isActive means active.
type quizDoc struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
	// Older documents carry the difficulty under a misspelled key. Compat
	// shim only; new writes must use the correct spelling.
	DifficultyLegacy string     `json:"dificculty"`
	IsActive         *bool      `json:"isActive"`
	TimeLimitSeconds int        `json:"timeLimitSeconds"`
	UpdatedAt        *time.Time `json:"updatedAt"`
}

func (l *QuizLoader) LoadQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, data FROM quizzes`)
	if err != nil {
		return nil, fmt.Errorf("load quizzes: %w", err)
	}
	defer rows.Close()

	var out []domain.Quiz
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		var doc quizDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			// A malformed document hides one quiz, not the whole catalog.
			continue
		}
		out = append(out, docToQuiz(id, doc))
	}
	return out, rows.Err()
}

func docToQuiz(id string, doc quizDoc) domain.Quiz {
	quiz := domain.Quiz{
		ID:               id,
		Title:            doc.Title,
		Description:      doc.Description,
		Difficulty:       doc.Difficulty,
		Active:           true,
		TimeLimitSeconds: doc.TimeLimitSeconds,
	}
	if quiz.Title == "" {
		quiz.Title = "Quiz"
	}
	if quiz.Difficulty == "" {
		quiz.Difficulty = doc.DifficultyLegacy
	}
	if quiz.Difficulty == "" {
		quiz.Difficulty = "easy"
	}
	if doc.IsActive != nil {
		quiz.Active = *doc.IsActive
	}
	if doc.UpdatedAt != nil {
		quiz.UpdatedAt = *doc.UpdatedAt
	}
	return quiz
}
