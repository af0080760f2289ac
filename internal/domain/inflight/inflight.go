// Package inflight tracks bookings that have a write pending so a second
// action on the same booking can be refused until the first settles.
package inflight

import (
	"context"
	"sync"
	"sync/atomic"
)

// Guard records which ids currently have an action in flight.
type Guard interface {
	// Acquire atomically claims id. It returns ErrBusy when id is already
	// claimed and ErrFull when the guard is at capacity.
	Acquire(ctx context.Context, id string) error

	// Release frees id. Releasing an id that is not held is a no-op.
	Release(ctx context.Context, id string)

	Size() int64
}

// inMemoryGuard implements Guard with a mutex-protected set.
// For bounded mode (maxSize > 0) Acquire fails with ErrFull once maxSize ids are held.
type inMemoryGuard struct {
	mu      sync.Mutex
	held    map[string]struct{}
	maxSize int
	size    atomic.Int64
}

// NewGuard creates an in-memory guard with configuration options.
func NewGuard(opts ...Option) Guard {
	g := &inMemoryGuard{
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.held = make(map[string]struct{})
	return g
}

func (g *inMemoryGuard) Acquire(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.held[id]; exists {
		return ErrBusy
	}
	if g.maxSize > 0 && len(g.held) >= g.maxSize {
		return ErrFull
	}
	g.held[id] = struct{}{}
	g.size.Add(1)
	return nil
}

func (g *inMemoryGuard) Release(ctx context.Context, id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.held[id]; exists {
		delete(g.held, id)
		g.size.Add(-1)
	}
}

// Size returns the number of ids currently held.
func (g *inMemoryGuard) Size() int64 {
	return g.size.Load()
}
