package api

import (
	"sync"

	"vrpsolve/internal/model"
)

// ProgressCache stores the latest progress snapshot per job so late
// subscribers get current state before the event stream picks up.
type ProgressCache struct {
	mu sync.Mutex
	m  map[string]model.Progress
}

func NewProgressCache() *ProgressCache { return &ProgressCache{m: map[string]model.Progress{}} }

// Upsert stores or updates the latest snapshot for a job.
func (c *ProgressCache) Upsert(p model.Progress) {
	if p.JobID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[p.JobID] = p
}

// Get returns the latest snapshot for a job.
func (c *ProgressCache) Get(jobID string) (model.Progress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.m[jobID]
	return p, ok
}

// Drop removes a finished job from the cache.
func (c *ProgressCache) Drop(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, jobID)
}
