package syncclient

import (
	"sync"
	"time"

	"taskhub/internal/model"
)

// Key identifies a task-list query. Equal filters share one cache entry.
func Key(f model.TaskFilter) string {
	q := filterQuery(f)
	if len(q) == 0 {
		return "tasks"
	}
	return "tasks?" + q.Encode()
}

type entry struct {
	filter    model.TaskFilter
	tasks     []model.Task
	stale     bool
	fetchedAt time.Time
}

// QueryCache holds task-list results keyed by filter. Entries are never
// patched locally: an event marks them stale and a refetch replaces them.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

func NewQueryCache() *QueryCache {
	return &QueryCache{entries: make(map[string]*entry), now: time.Now}
}

// Put stores a fresh result for filter.
func (c *QueryCache) Put(f model.TaskFilter, tasks []model.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(f)] = &entry{filter: f, tasks: tasks, fetchedAt: c.now()}
}

// Get returns the cached tasks and whether they are still fresh.
func (c *QueryCache) Get(f model.TaskFilter) ([]model.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[Key(f)]
	if !ok {
		return nil, false
	}
	return e.tasks, !e.stale
}

// InvalidateAll marks every task-list query stale.
func (c *QueryCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.stale = true
	}
}

func (c *QueryCache) Stale(f model.TaskFilter) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[Key(f)]
	return !ok || e.stale
}

// FetchedAt is the zero time for queries never fetched.
func (c *QueryCache) FetchedAt(f model.TaskFilter) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[Key(f)]; ok {
		return e.fetchedAt
	}
	return time.Time{}
}

func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
