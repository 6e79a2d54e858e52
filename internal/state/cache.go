package state

import "maps"

// Cache is the last-known state per deployment id. It is owned by one
// caller and does no locking of its own.
type Cache struct {
	states map[string]DeploymentState
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{states: make(map[string]DeploymentState)}
}

// Set stores s, replacing any earlier snapshot for the same id.
func (c *Cache) Set(s DeploymentState) {
	c.states[s.ID()] = s
}

// Merge upserts every snapshot in states.
func (c *Cache) Merge(states map[string]DeploymentState) {
	for _, s := range states {
		c.Set(s)
	}
}

// Delete forgets id.
func (c *Cache) Delete(id string) {
	delete(c.states, id)
}

// Get returns the snapshot for id.
func (c *Cache) Get(id string) (DeploymentState, bool) {
	s, ok := c.states[id]
	return s, ok
}

// AllRunning reports whether every id is known, running and healthy.
// It is false for an empty id list.
func (c *Cache) AllRunning(ids []string) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		s, ok := c.states[id]
		if !ok || !s.IsRunning() || !s.IsHealthy() {
			return false
		}
	}
	return true
}

// All returns a copy of every cached snapshot.
func (c *Cache) All() map[string]DeploymentState {
	return maps.Clone(c.states)
}
