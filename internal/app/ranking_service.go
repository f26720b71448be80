package app

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-ranking-service/internal/domain"
	"quiz-ranking-service/internal/score"
)

// AggregateStore is the single-document optimistic-concurrency port backing
// the leaderboard. Versions start at 1 on create; version 0 together with
// domain.ErrAggregateNotFound means the aggregate does not exist yet.
// CompareAndSwap must fail with domain.ErrVersionConflict when another writer
// committed since the read. List returns aggregates in insertion order, which
// is the stable tie-break for ranking.
type AggregateStore interface {
	Get(ctx context.Context, userID string) (domain.Aggregate, uint64, error)
	CompareAndSwap(ctx context.Context, userID string, expected uint64, agg domain.Aggregate) error
	List(ctx context.Context) ([]domain.Aggregate, error)
}

// AttemptLog is the append-only durable record of finished quiz runs.
type AttemptLog interface {
	Append(ctx context.Context, attempt domain.Attempt) error
	// ListByUser returns a user's attempts, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Attempt, error)
}

// TopScoreStore keeps the per-quiz best-result side records feeding
// quiz-scoped leaderboards. Record merges keep-max per user.
type TopScoreStore interface {
	Record(ctx context.Context, quizID string, entry domain.QuizTopEntry) error
	Top(ctx context.Context, quizID string, limit int) ([]domain.QuizTopEntry, error)
}

// ProfileResolver maps a user ID to a display name. Results may be stale or
// empty; the submission flow falls back to the client-supplied hint.
type ProfileResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// QuizCatalog serves quiz metadata for browsing and title denormalization.
type QuizCatalog interface {
	Get(ctx context.Context, quizID string) (domain.Quiz, error)
	ListActive(ctx context.Context) ([]domain.Quiz, error)
}

const (
	defaultMaxRetries = 5
	defaultBoardLimit = 50
	fallbackName      = "player"
	fallbackQuizTitle = "Quiz"
)

// RankingService owns the result-submission transaction and every read path
// derived from it: the global leaderboard, per-quiz top scores, and per-user
// attempt history.
type RankingService struct {
	aggregates AggregateStore
	attempts   AttemptLog
	topScores  TopScoreStore
	profiles   ProfileResolver
	catalog    QuizCatalog

	log        *slog.Logger
	now        func() time.Time
	maxRetries int
	boardLimit int

	mu          sync.Mutex
	boardSubs   map[chan domain.Leaderboard]int
	historySubs map[string]map[chan []domain.Attempt]struct{}
}

// Option tweaks service construction.
type Option func(*RankingService)

// WithClock injects a deterministic clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *RankingService) { s.now = now }
}

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *RankingService) { s.log = log }
}

// WithMaxRetries bounds the transaction retry budget.
func WithMaxRetries(n int) Option {
	return func(s *RankingService) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithBoardLimit sets the default leaderboard view size.
func WithBoardLimit(n int) Option {
	return func(s *RankingService) {
		if n > 0 {
			s.boardLimit = n
		}
	}
}

func NewRankingService(aggregates AggregateStore, attempts AttemptLog, topScores TopScoreStore, profiles ProfileResolver, catalog QuizCatalog, opts ...Option) *RankingService {
	s := &RankingService{
		aggregates:  aggregates,
		attempts:    attempts,
		topScores:   topScores,
		profiles:    profiles,
		catalog:     catalog,
		log:         slog.Default(),
		now:         time.Now,
		maxRetries:  defaultMaxRetries,
		boardLimit:  defaultBoardLimit,
		boardSubs:   make(map[chan domain.Leaderboard]int),
		historySubs: make(map[string]map[chan []domain.Attempt]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitAttempt runs the result-submission transaction for one finished quiz.
// The aggregate update is a bounded optimistic-concurrency loop; the attempt
// log and the per-quiz top record are best-effort side writes that never fail
// the call. Only domain.ErrUnauthenticated, domain.ErrConflictRetryExhausted
// and store I/O failures on the authoritative path surface to the caller.
func (s *RankingService) SubmitAttempt(ctx context.Context, sub domain.Submission) (domain.SubmitReceipt, error) {
	if strings.TrimSpace(sub.UserID) == "" {
		return domain.SubmitReceipt{}, domain.ErrUnauthenticated
	}

	sc := score.Normalize(sub.CorrectCount, sub.TotalQuestions)
	displayName := s.resolveName(ctx, sub)
	finishedAt := s.now().UTC()

	var (
		next      domain.Aggregate
		delta     score.Delta
		committed bool
	)
	for i := 0; i < s.maxRetries; i++ {
		snapshot, version, err := s.aggregates.Get(ctx, sub.UserID)
		if err != nil && !errors.Is(err, domain.ErrAggregateNotFound) {
			return domain.SubmitReceipt{}, err
		}
		next, delta = applyAttempt(snapshot, version != 0, sub.UserID, sub.QuizID, sc, displayName, finishedAt)

		err = s.aggregates.CompareAndSwap(ctx, sub.UserID, version, next)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return domain.SubmitReceipt{}, err
		}
		committed = true
		break
	}
	if !committed {
		return domain.SubmitReceipt{}, domain.ErrConflictRetryExhausted
	}

	attempt := domain.Attempt{
		ID:             uuid.NewString(),
		UserID:         sub.UserID,
		QuizID:         sub.QuizID,
		QuizTitle:      s.quizTitle(ctx, sub.QuizID),
		CorrectCount:   sub.CorrectCount,
		TotalQuestions: sub.TotalQuestions,
		Score:          sc,
		DurationMillis: sub.DurationMillis,
		FinishedAt:     finishedAt,
	}
	s.recordSideEffects(ctx, attempt, displayName)
	s.broadcastBoard(ctx)

	return domain.SubmitReceipt{
		AttemptID:      attempt.ID,
		Score:          sc,
		Improved:       delta.Improved,
		NewBest:        delta.NewBest,
		TotalScore:     next.TotalScore,
		QuizzesCounted: next.QuizzesCounted,
	}, nil
}

// applyAttempt computes the next aggregate state for one attempt. It is a
// pure function of the snapshot and the submission, so a conflicted
// transaction can re-run it against a fresh read and apply exactly once.
func applyAttempt(snapshot domain.Aggregate, exists bool, userID, quizID string, sc int, displayName string, now time.Time) (domain.Aggregate, score.Delta) {
	next := snapshot.Clone()
	if !exists {
		next = domain.Aggregate{BestByQuiz: make(map[string]int)}
	}
	next.UserID = userID
	next.DisplayName = displayName
	next.UpdatedAt = now

	prev, recorded := next.BestByQuiz[quizID]
	delta := score.Best(prev, sc)
	if delta.Improved {
		next.TotalScore += delta.Gain
		next.BestByQuiz[quizID] = delta.NewBest
		// A zero score never creates a best-map entry, so a first positive
		// improvement is exactly when the quiz starts counting.
		if !recorded && sc > 0 {
			next.QuizzesCounted++
		}
	}
	return next, delta
}

func (s *RankingService) resolveName(ctx context.Context, sub domain.Submission) string {
	name, err := s.profiles.DisplayName(ctx, sub.UserID)
	if err != nil {
		s.log.Warn("display name lookup failed", "userId", sub.UserID, "err", err)
		name = ""
	}
	if name == "" {
		name = sub.DisplayName
	}
	if name == "" {
		name = fallbackName
	}
	return name
}

func (s *RankingService) quizTitle(ctx context.Context, quizID string) string {
	quiz, err := s.catalog.Get(ctx, quizID)
	if err != nil || quiz.Title == "" {
		return fallbackQuizTitle
	}
	return quiz.Title
}

// recordSideEffects performs the eventually-consistent secondary writes.
// Failures are logged and swallowed: the authoritative aggregate already
// committed and the submission must report success.
func (s *RankingService) recordSideEffects(ctx context.Context, attempt domain.Attempt, displayName string) {
	if err := s.attempts.Append(ctx, attempt); err != nil {
		s.log.Warn("attempt log append failed", "userId", attempt.UserID, "quizId", attempt.QuizID, "err", err)
	}
	entry := domain.QuizTopEntry{
		UserID:      attempt.UserID,
		DisplayName: displayName,
		Score:       attempt.Score,
		FinishedAt:  attempt.FinishedAt,
	}
	if err := s.topScores.Record(ctx, attempt.QuizID, entry); err != nil {
		s.log.Warn("quiz top record failed", "quizId", attempt.QuizID, "err", err)
	}
	s.broadcastHistory(ctx, attempt.UserID)
}

// TopN returns the ranked leaderboard view, sorted by total score descending
// with ties broken by the store's insertion order. Read failures degrade to
// an empty board rather than erroring the caller.
func (s *RankingService) TopN(ctx context.Context, limit int) domain.Leaderboard {
	if limit <= 0 {
		limit = s.boardLimit
	}
	aggs, err := s.aggregates.List(ctx)
	if err != nil {
		s.log.Warn("leaderboard read failed", "err", err)
		return domain.Leaderboard{Entries: []domain.RankEntry{}, UpdatedAt: s.now().UTC()}
	}
	sort.SliceStable(aggs, func(i, j int) bool {
		return aggs[i].TotalScore > aggs[j].TotalScore
	})
	if len(aggs) > limit {
		aggs = aggs[:limit]
	}
	entries := make([]domain.RankEntry, 0, len(aggs))
	for i, agg := range aggs {
		entries = append(entries, domain.RankEntry{
			UserID:         agg.UserID,
			DisplayName:    agg.DisplayName,
			Score:          agg.TotalScore,
			Rank:           i + 1,
			QuizzesCounted: agg.QuizzesCounted,
		})
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: s.now().UTC()}
}

// TopScores returns the quiz-scoped side leaderboard, empty on read failure.
func (s *RankingService) TopScores(ctx context.Context, quizID string, limit int) []domain.QuizTopEntry {
	if limit <= 0 {
		limit = s.boardLimit
	}
	entries, err := s.topScores.Top(ctx, quizID, limit)
	if err != nil {
		s.log.Warn("quiz top read failed", "quizId", quizID, "err", err)
		return []domain.QuizTopEntry{}
	}
	return entries
}

// Quizzes lists the browsable catalog, empty on read failure.
func (s *RankingService) Quizzes(ctx context.Context) []domain.Quiz {
	quizzes, err := s.catalog.ListActive(ctx)
	if err != nil {
		s.log.Warn("quiz catalog read failed", "err", err)
		return []domain.Quiz{}
	}
	return quizzes
}

// History returns a user's attempts, newest first, empty on read failure.
func (s *RankingService) History(ctx context.Context, userID string) []domain.Attempt {
	attempts, err := s.attempts.ListByUser(ctx, userID)
	if err != nil {
		s.log.Warn("history read failed", "userId", userID, "err", err)
		return []domain.Attempt{}
	}
	return attempts
}

// Subscribe returns a channel that receives ranked leaderboard snapshots,
// starting with the current one. The caller must invoke the returned cancel
// function to avoid leaks.
func (s *RankingService) Subscribe(ctx context.Context, limit int) (<-chan domain.Leaderboard, func()) {
	if limit <= 0 {
		limit = s.boardLimit
	}
	ch := make(chan domain.Leaderboard, 8)

	s.mu.Lock()
	s.boardSubs[ch] = limit
	s.mu.Unlock()

	ch <- s.TopN(ctx, limit)

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.boardSubs[ch]; ok {
			delete(s.boardSubs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// ObserveHistory returns a live feed of a user's attempt history, newest
// first, starting with the current snapshot.
func (s *RankingService) ObserveHistory(ctx context.Context, userID string) (<-chan []domain.Attempt, func(), error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil, domain.ErrUnauthenticated
	}
	ch := make(chan []domain.Attempt, 8)

	s.mu.Lock()
	subs, ok := s.historySubs[userID]
	if !ok {
		subs = make(map[chan []domain.Attempt]struct{})
		s.historySubs[userID] = subs
	}
	subs[ch] = struct{}{}
	s.mu.Unlock()

	ch <- s.History(ctx, userID)

	cancel := func() {
		s.mu.Lock()
		if subs, ok := s.historySubs[userID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(s.historySubs, userID)
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *RankingService) broadcastBoard(ctx context.Context) {
	s.mu.Lock()
	limits := make(map[int]struct{}, len(s.boardSubs))
	for _, limit := range s.boardSubs {
		limits[limit] = struct{}{}
	}
	s.mu.Unlock()

	if len(limits) == 0 {
		return
	}
	// Compute each distinct view outside the lock, deliver under it so a
	// concurrent cancel cannot close a channel mid-send.
	byLimit := make(map[int]domain.Leaderboard, len(limits))
	for limit := range limits {
		byLimit[limit] = s.TopN(ctx, limit)
	}

	s.mu.Lock()
	for ch, limit := range s.boardSubs {
		if lb, ok := byLimit[limit]; ok {
			pushLatest(ch, lb)
		}
	}
	s.mu.Unlock()
}

func (s *RankingService) broadcastHistory(ctx context.Context, userID string) {
	s.mu.Lock()
	n := len(s.historySubs[userID])
	s.mu.Unlock()
	if n == 0 {
		return
	}

	attempts := s.History(ctx, userID)

	s.mu.Lock()
	for ch := range s.historySubs[userID] {
		pushLatest(ch, attempts)
	}
	s.mu.Unlock()
}

// pushLatest delivers without blocking: a slow consumer loses intermediate
// snapshots, never the most recent one.
func pushLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
