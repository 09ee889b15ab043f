package cache

import (
	"context"
	"hash/fnv"
	"sync"

	"future-self-ai/internal/domain/model"
	"future-self-ai/internal/domain/ports/adapter"
)

const DefaultShards = 32

var _ adapter.JobCache = (*MemoryJobCache)(nil)

// MemoryJobCache is a process-local job cache split into independently locked
// shards. Writers and sweeps only ever hold the lock of one shard.
type MemoryJobCache struct {
	shards []*shard
}

type shard struct {
	mu    sync.RWMutex
	items map[string]*model.Job
}

// NewMemoryJobCache builds a cache with n shards (DefaultShards when n <= 0).
func NewMemoryJobCache(n int) *MemoryJobCache {
	if n <= 0 {
		n = DefaultShards
	}
	c := &MemoryJobCache{shards: make([]*shard, n)}
	for i := range c.shards {
		c.shards[i] = &shard{items: make(map[string]*model.Job)}
	}
	return c
}

func (c *MemoryJobCache) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

func (c *MemoryJobCache) Put(_ context.Context, job *model.Job) {
	if job == nil || job.ID == "" {
		return
	}
	s := c.shardFor(job.ID)
	cp := job.Clone()
	s.mu.Lock()
	s.items[job.ID] = cp
	s.mu.Unlock()
}

func (c *MemoryJobCache) PutIfAbsent(_ context.Context, job *model.Job) {
	if job == nil || job.ID == "" {
		return
	}
	s := c.shardFor(job.ID)
	cp := job.Clone()
	s.mu.Lock()
	if _, ok := s.items[job.ID]; !ok {
		s.items[job.ID] = cp
	}
	s.mu.Unlock()
}

func (c *MemoryJobCache) Get(_ context.Context, id string) (*model.Job, bool) {
	s := c.shardFor(id)
	s.mu.RLock()
	job, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

func (c *MemoryJobCache) Delete(_ context.Context, ids ...string) {
	for _, id := range ids {
		s := c.shardFor(id)
		s.mu.Lock()
		delete(s.items, id)
		s.mu.Unlock()
	}
}

func (c *MemoryJobCache) EvictIf(_ context.Context, pred func(job *model.Job) bool) int {
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for id, job := range s.items {
			if pred(job) {
				delete(s.items, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of cached jobs.
func (c *MemoryJobCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}
