package domain

import "errors"

var (
	// ErrUnauthenticated is returned when a submission carries no resolvable user.
	ErrUnauthenticated = errors.New("no authenticated user")
	// ErrConflictRetryExhausted is returned when the leaderboard transaction
	// keeps losing the optimistic-concurrency race; the caller may retry later.
	ErrConflictRetryExhausted = errors.New("leaderboard transaction conflict retries exhausted")
	// ErrVersionConflict signals that a compare-and-swap saw a newer version.
	ErrVersionConflict = errors.New("aggregate version conflict")
	// ErrAggregateNotFound indicates the user has no leaderboard entry yet.
	ErrAggregateNotFound = errors.New("leaderboard aggregate not found")
	// ErrQuizNotFound indicates the quiz metadata could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
)
