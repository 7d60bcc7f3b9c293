package session

import (
	"context"
	"sync"
)

// MemoryGate tracks in-flight transitions for a single process.
type MemoryGate struct {
	mu      sync.Mutex
	holders map[string]string
}

func NewMemoryGate() *MemoryGate {
	return &MemoryGate{holders: make(map[string]string)}
}

// TryAcquire marks key as busy for holder. It returns false when any holder
// already owns key.
func (g *MemoryGate) TryAcquire(ctx context.Context, key, holder string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.holders[key]; busy {
		return false, nil
	}
	g.holders[key] = holder
	return true, nil
}

// Release frees key if holder still owns it.
func (g *MemoryGate) Release(ctx context.Context, key, holder string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holders[key] == holder {
		delete(g.holders, key)
	}
	return nil
}

// Holder returns the current owner of key, or "" when free.
func (g *MemoryGate) Holder(ctx context.Context, key string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holders[key], nil
}
