package memory

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-ranking-service/internal/domain"
)

// QuizLoader fetches the quiz catalog from a backing store (e.g., document DB).
type QuizLoader interface {
	LoadQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// QuizCatalog caches the catalog with TTL to avoid repeated backing-store
// hits; concurrent misses collapse into a single load.
type QuizCatalog struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	quizzes   map[string]domain.Quiz
	expiresAt time.Time
}

func NewQuizCatalog(loader QuizLoader, ttl time.Duration) *QuizCatalog {
	return &QuizCatalog{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		quizzes: make(map[string]domain.Quiz),
	}
}

func (c *QuizCatalog) Get(ctx context.Context, quizID string) (domain.Quiz, error) {
	quizzes, err := c.snapshot(ctx)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz, ok := quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// ListActive filters out inactive quizzes and orders by last update,
// newest first, then title.
func (c *QuizCatalog) ListActive(ctx context.Context) ([]domain.Quiz, error) {
	quizzes, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Quiz, 0, len(quizzes))
	for _, quiz := range quizzes {
		if quiz.Active {
			out = append(out, quiz)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	return out, nil
}

func (c *QuizCatalog) snapshot(ctx context.Context) (map[string]domain.Quiz, error) {
	now := c.clock()

	c.mu.RLock()
	if c.expiresAt.After(now) {
		quizzes := c.quizzes
		c.mu.RUnlock()
		return quizzes, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("catalog", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.expiresAt.After(now) {
			quizzes := c.quizzes
			c.mu.RUnlock()
			return quizzes, nil
		}
		c.mu.RUnlock()

		loaded, err := c.loader.LoadQuizzes(ctx)
		if err != nil {
			return nil, err
		}
		quizzes := make(map[string]domain.Quiz, len(loaded))
		for _, quiz := range loaded {
			quizzes[quiz.ID] = quiz
		}

		c.mu.Lock()
		c.quizzes = quizzes
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return quizzes, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]domain.Quiz), nil
}

func (c *QuizCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticQuizLoader serves a fixed catalog (useful for tests/demos).
type StaticQuizLoader struct {
	quizzes []domain.Quiz
}

func NewStaticQuizLoader(quizzes []domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuizzes(_ context.Context) ([]domain.Quiz, error) {
	out := make([]domain.Quiz, len(l.quizzes))
	copy(out, l.quizzes)
	return out, nil
}
