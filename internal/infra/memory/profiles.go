package memory

import (
	"context"
	"sync"
)

// Profiles is an in-process identity provider. Unknown users resolve to an
// empty name; the submission flow supplies its own fallbacks.
type Profiles struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewProfiles() *Profiles {
	return &Profiles{names: make(map[string]string)}
}

// Upsert records or refreshes a display name.
func (p *Profiles) Upsert(userID, displayName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names[userID] = displayName
}

func (p *Profiles) DisplayName(_ context.Context, userID string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.names[userID], nil
}
