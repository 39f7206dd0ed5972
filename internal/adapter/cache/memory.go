// Package cache provides DecisionCache implementations: a process-local TTL
// map and a Redis-backed store for multi-replica deployments.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fairyhunter13/intake-qa-agent/internal/adapter/observability"
	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
)

type memoryEntry struct {
	decision  domain.Decision
	expiresAt time.Time
}

// Memory is an in-process DecisionCache. Reads and writes are safe across
// concurrent requests; expired entries are invisible to Get even before the
// sweeper removes them.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory constructs an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get returns the unexpired decision for activityID, if any.
func (m *Memory) Get(_ domain.Context, activityID string) (domain.Decision, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[activityID]
	m.mu.RUnlock()
	if !ok || m.now().After(e.expiresAt) {
		observability.DedupCacheOps.WithLabelValues("miss").Inc()
		return domain.Decision{}, false, nil
	}
	observability.DedupCacheOps.WithLabelValues("hit").Inc()
	return e.decision, true, nil
}

// Set stores a decision with the given TTL.
func (m *Memory) Set(_ domain.Context, activityID string, d domain.Decision, ttl time.Duration) error {
	m.mu.Lock()
	m.entries[activityID] = memoryEntry{decision: d, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Sweep removes expired entries and returns how many were evicted.
func (m *Memory) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// StartSweeper evicts expired entries on a fixed interval until ctx is done.
// It runs independently of request handling and never blocks it.
func (m *Memory) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := m.Sweep(); n > 0 {
					slog.Debug("dedup cache sweep", slog.Int("evicted", n))
				}
			}
		}
	}()
}
