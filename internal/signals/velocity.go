// Package signals provides the injectable signal sources consumed by the
// rule engine: transaction velocity counters and user profiles. Tests
// substitute stubs through the same interfaces.
package signals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// NewVelocityCounter creates a velocity counter from configuration.
func NewVelocityCounter(cfg domain.VelocityConfig) (domain.VelocityCounter, error) {
	window := time.Duration(cfg.WindowSecs) * time.Second
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryVelocityCounter(window), nil
	case "redis":
		return NewRedisVelocityCounter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, window)
	default:
		return nil, fmt.Errorf("unsupported velocity backend: %s", cfg.Backend)
	}
}

// MemoryVelocityCounter counts per-user transactions in a sliding window.
// Single-process backend; Redis serves the distributed deployment.
type MemoryVelocityCounter struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string][]time.Time

	// now is replaceable for tests.
	now func() time.Time
}

// NewMemoryVelocityCounter creates an in-memory counter with the given
// sliding window. A non-positive window falls back to one minute.
func NewMemoryVelocityCounter(window time.Duration) *MemoryVelocityCounter {
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryVelocityCounter{
		window: window,
		seen:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Observe records a transaction for the user and returns the in-window
// count including this one.
func (c *MemoryVelocityCounter) Observe(ctx context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	kept := c.prune(userID, now)
	kept = append(kept, now)
	c.seen[userID] = kept
	return int64(len(kept)), nil
}

// Count returns the current in-window count without recording.
func (c *MemoryVelocityCounter) Count(ctx context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.prune(userID, c.now())
	c.seen[userID] = kept
	return int64(len(kept)), nil
}

// prune drops observations older than the window. Callers hold the lock.
func (c *MemoryVelocityCounter) prune(userID string, now time.Time) []time.Time {
	cutoff := now.Add(-c.window)
	times := c.seen[userID]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
