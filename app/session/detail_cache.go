package session

import (
	"maps"
	"sync"

	"github.com/lysyi3m/festival-comb/app/festival"
)

// DetailCache holds resolved detail records for one session. Entries are only
// ever added or overwritten.
type DetailCache struct {
	mu       sync.RWMutex
	resolved map[string]festival.DetailRecord
	pending  map[string]struct{}
}

func NewDetailCache() *DetailCache {
	return &DetailCache{
		resolved: make(map[string]festival.DetailRecord),
		pending:  make(map[string]struct{}),
	}
}

// Request marks id as pending and reports whether the caller should issue a fetch.
func (c *DetailCache) Request(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.resolved[id]; ok {
		return false
	}
	if _, ok := c.pending[id]; ok {
		return false
	}
	c.pending[id] = struct{}{}
	return true
}

// OnResolved stores d, replacing any earlier record for the same ID.
func (c *DetailCache) OnResolved(d festival.DetailRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resolved[d.ID] = d
	delete(c.pending, d.ID)
}

// OnFailed forgets the pending fetch so a later Request may issue it again.
func (c *DetailCache) OnFailed(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pending, id)
}

func (c *DetailCache) Get(id string) (festival.DetailRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.resolved[id]
	return d, ok
}

func (c *DetailCache) IsPending(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.pending[id]
	return ok
}

// Snapshot copies the resolved entries for a merge pass.
func (c *DetailCache) Snapshot() festival.Details {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return festival.Details(maps.Clone(c.resolved))
}

func (c *DetailCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.resolved)
}

func (c *DetailCache) PendingLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.pending)
}
