package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-ranking-service/internal/domain"
)

// AttemptLog persists finished attempts in Postgres. The table is
// append-only; rows are never updated or deleted.
type AttemptLog struct {
	pool *pgxpool.Pool
}

func NewAttemptLog(pool *pgxpool.Pool) *AttemptLog {
	return &AttemptLog{pool: pool}
}

func (l *AttemptLog) Append(ctx context.Context, a domain.Attempt) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO attempts (id, user_id, quiz_id, quiz_title, correct_count, total_questions, score, duration_ms, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.UserID, a.QuizID, a.QuizTitle, a.CorrectCount, a.TotalQuestions, a.Score, a.DurationMillis, a.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

func (l *AttemptLog) ListByUser(ctx context.Context, userID string) ([]domain.Attempt, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, user_id, quiz_id, quiz_title, correct_count, total_questions, score, duration_ms, finished_at
		FROM attempts
		WHERE user_id = $1
		ORDER BY finished_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		var a domain.Attempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuizID, &a.QuizTitle, &a.CorrectCount, &a.TotalQuestions, &a.Score, &a.DurationMillis, &a.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
