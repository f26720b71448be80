package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-ranking-service/internal/domain"
)

// QuizLoader fetches the quiz catalog from a backing store (e.g., document DB).
type QuizLoader interface {
	LoadQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// QuizCatalog caches the catalog as a JSON blob in Redis and falls back to a
// loader on cache miss. Concurrent misses collapse into a single load.
type QuizCatalog struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizCatalog(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizCatalog {
	return &QuizCatalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCatalog) Get(ctx context.Context, quizID string) (domain.Quiz, error) {
	quizzes, err := c.snapshot(ctx)
	if err != nil {
		return domain.Quiz{}, err
	}
	for _, quiz := range quizzes {
		if quiz.ID == quizID {
			return quiz, nil
		}
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

func (c *QuizCatalog) snapshot(ctx context.Context) ([]domain.Quiz, error) {
	if quizzes, ok := c.cached(ctx); ok {
		return quizzes, nil
	}

	result, err, _ := c.sf.Do("catalog", func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quizzes, ok := c.cached(ctx); ok {
			return quizzes, nil
		}

		quizzes, err := c.loader.LoadQuizzes(ctx)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(quizzes)
		if err != nil {
			return nil, fmt.Errorf("encode catalog: %w", err)
		}
		_ = c.client.Set(ctx, c.key(), payload, c.ttlWithJitter()).Err()
		return quizzes, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Quiz), nil
}

func (c *QuizCatalog) cached(ctx context.Context) ([]domain.Quiz, bool) {
	raw, err := c.client.Get(ctx, c.key()).Bytes()
	if err != nil {
		// redis.Nil and an unreachable cache are both just misses.
		return nil, false
	}
	var quizzes []domain.Quiz
	if err := json.Unmarshal(raw, &quizzes); err != nil {
		return nil, false
	}
	return quizzes, true
}

func (c *QuizCatalog) key() string {
	return "quiz:catalog"
}

func (c *QuizCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
