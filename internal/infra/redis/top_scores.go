package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quiz-ranking-service/internal/domain"
)

// TopScoreStore keeps per-quiz best results in a sorted set per quiz:
// ZADD GT quiz:{quizID}:top {score} {userID}, so a user's entry only ever
// moves up. Entry details live in a companion hash, refreshed only when the
// score actually improved.
type TopScoreStore struct {
	client *redis.Client
}

func NewTopScoreStore(client *redis.Client) *TopScoreStore {
	return &TopScoreStore{client: client}
}

func (s *TopScoreStore) Record(ctx context.Context, quizID string, entry domain.QuizTopEntry) error {
	changed, err := s.client.ZAddArgs(ctx, s.scoresKey(quizID), redis.ZAddArgs{
		GT: true,
		Ch: true,
		Members: []redis.Z{
			{Score: float64(entry.Score), Member: entry.UserID},
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("record top score: %w", err)
	}
	if changed == 0 {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode top entry: %w", err)
	}
	if err := s.client.HSet(ctx, s.entriesKey(quizID), entry.UserID, payload).Err(); err != nil {
		return fmt.Errorf("store top entry: %w", err)
	}
	return nil
}

func (s *TopScoreStore) Top(ctx context.Context, quizID string, limit int) ([]domain.QuizTopEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	userIDs, err := s.client.ZRevRange(ctx, s.scoresKey(quizID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read top scores: %w", err)
	}
	if len(userIDs) == 0 {
		return []domain.QuizTopEntry{}, nil
	}
	raws, err := s.client.HMGet(ctx, s.entriesKey(quizID), userIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("read top entries: %w", err)
	}
	out := make([]domain.QuizTopEntry, 0, len(raws))
	for _, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		var entry domain.QuizTopEntry
		if err := json.Unmarshal([]byte(str), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *TopScoreStore) scoresKey(quizID string) string {
	return "quiz:" + quizID + ":top"
}

func (s *TopScoreStore) entriesKey(quizID string) string {
	return "quiz:" + quizID + ":top:entries"
}
