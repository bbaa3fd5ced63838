// Package tracker maps Trino query IDs to the cluster that is running
// them, so a follow-up request on a query's nextUri chain can be routed
// back to the same backend that started it.
package tracker

import (
	"sync"
	"time"

	"github.com/AriHenrique/dyrasql/internal/config"
)

type entry struct {
	cluster    config.ClusterName
	lastAccess time.Time
}

// Tracker is a concurrent, write-once-per-query-id map bounded by both
// entry count and age, so a long-running gateway process doesn't grow
// unbounded as queries come and go.
type Tracker struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	ttl        time.Duration
	stop       chan struct{}
}

// New builds a Tracker and starts its background eviction loop. Callers
// must call Stop when the tracker is no longer needed.
func New(maxEntries int, ttl time.Duration) *Tracker {
	t := &Tracker{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		stop:       make(chan struct{}),
	}
	go t.evictLoop()
	return t
}

// Put records which cluster is running queryID. It must be called
// before the submission response reaches the client, so that a
// follow-up request arriving immediately afterward always finds a
// mapping.
func (t *Tracker) Put(queryID string, cluster config.ClusterName) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[queryID] = entry{cluster: cluster, lastAccess: time.Now()}
	if len(t.entries) > t.maxEntries {
		t.evictOldestLocked()
	}
}

// Get returns the cluster running queryID, if known.
func (t *Tracker) Get(queryID string) (config.ClusterName, bool) {
	t.mu.RLock()
	e, ok := t.entries[queryID]
	t.mu.RUnlock()
	if !ok {
		return "", false
	}

	t.mu.Lock()
	e.lastAccess = time.Now()
	t.entries[queryID] = e
	t.mu.Unlock()

	return e.cluster, true
}

// Len reports how many query IDs are currently tracked, for metrics.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Stop terminates the background eviction loop.
func (t *Tracker) Stop() {
	close(t.stop)
}

func (t *Tracker) evictLoop() {
	ticker := time.NewTicker(t.ttl / 4)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			now := time.Now()
			for id, e := range t.entries {
				if now.Sub(e.lastAccess) > t.ttl {
					delete(t.entries, id)
				}
			}
			t.mu.Unlock()
		}
	}
}

// evictOldestLocked drops the single oldest entry. Called with mu held.
func (t *Tracker) evictOldestLocked() {
	var oldestID string
	var oldestTime time.Time
	first := true
	for id, e := range t.entries {
		if first || e.lastAccess.Before(oldestTime) {
			oldestID = id
			oldestTime = e.lastAccess
			first = false
		}
	}
	if oldestID != "" {
		delete(t.entries, oldestID)
	}
}
