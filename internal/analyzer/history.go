package analyzer

import (
	"context"
	"sync"
	"time"
)

// HistoryCache stores each tenant's historical window, oldest result first.
// Get reports found=false on a miss; a miss is not an error.
type HistoryCache interface {
	Get(ctx context.Context, tenant string) (results []Result, found bool, err error)
	Set(ctx context.Context, tenant string, results []Result, ttl time.Duration) error
}

// Window sizing used when the caller does not configure it.
const (
	DefaultHistoryLimit = 100
	DefaultHistoryTTL   = 24 * time.Hour
)

type historyEntry struct {
	results []Result
	expires time.Time
}

// InMemoryHistory is a process-local HistoryCache. Expired windows read as
// misses and are dropped lazily.
type InMemoryHistory struct {
	mu      sync.RWMutex
	entries map[string]historyEntry
	now     func() time.Time
}

// NewInMemoryHistory creates an empty in-memory cache.
func NewInMemoryHistory() *InMemoryHistory {
	return &InMemoryHistory{
		entries: make(map[string]historyEntry),
		now:     time.Now,
	}
}

func (h *InMemoryHistory) Get(_ context.Context, tenant string) ([]Result, bool, error) {
	h.mu.RLock()
	e, ok := h.entries[tenant]
	h.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !h.now().Before(e.expires) {
		h.mu.Lock()
		delete(h.entries, tenant)
		h.mu.Unlock()
		return nil, false, nil
	}
	out := make([]Result, len(e.results))
	copy(out, e.results)
	return out, true, nil
}

// Set replaces the tenant's window. A ttl <= 0 never expires.
func (h *InMemoryHistory) Set(_ context.Context, tenant string, results []Result, ttl time.Duration) error {
	stored := make([]Result, len(results))
	copy(stored, results)
	e := historyEntry{results: stored}
	if ttl > 0 {
		e.expires = h.now().Add(ttl)
	}
	h.mu.Lock()
	h.entries[tenant] = e
	h.mu.Unlock()
	return nil
}

// Delete drops a tenant's window.
func (h *InMemoryHistory) Delete(_ context.Context, tenant string) error {
	h.mu.Lock()
	delete(h.entries, tenant)
	h.mu.Unlock()
	return nil
}

// TruncateWindow keeps the most recent limit results of window.
func TruncateWindow(window []Result, limit int) []Result {
	if limit <= 0 || len(window) <= limit {
		return window
	}
	return window[len(window)-limit:]
}
