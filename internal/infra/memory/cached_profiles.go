package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// NameResolver is the upstream identity lookup being cached.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// CachedProfiles memoizes display-name lookups with TTL. Staleness is
// acceptable: the leaderboard refreshes names last-writer-wins on every
// submission anyway.
type CachedProfiles struct {
	resolver NameResolver
	ttl      time.Duration
	clock    func() time.Time
	sf       singleflight.Group
	rnd      *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedName
}

type cachedName struct {
	name      string
	expiresAt time.Time
}

func NewCachedProfiles(resolver NameResolver, ttl time.Duration) *CachedProfiles {
	return &CachedProfiles{
		resolver: resolver,
		ttl:      ttl,
		clock:    time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:    make(map[string]cachedName),
	}
}

func (c *CachedProfiles) DisplayName(ctx context.Context, userID string) (string, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[userID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.name, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(userID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[userID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.name, nil
		}
		c.mu.RUnlock()

		name, err := c.resolver.DisplayName(ctx, userID)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		c.cache[userID] = cachedName{
			name:      name,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return name, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *CachedProfiles) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
