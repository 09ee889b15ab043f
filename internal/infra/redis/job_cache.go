package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"future-self-ai/internal/domain/model"
	"future-self-ai/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

const scanBatch = 200

var _ adapter.JobCache = (*JobCache)(nil)

// JobCache keeps job snapshots in Redis so several API replicas share one view.
// Finished jobs carry a Redis expiry of ttl after completion; PROCESSING jobs
// written by Put are stored without expiry. Redis failures degrade to cache
// misses, and a failed write drops the key rather than leave an older snapshot.
type JobCache struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
	log    *zerolog.Logger
}

func NewJobCache(client RedisClient, prefix string, ttl time.Duration, logger *zerolog.Logger) *JobCache {
	if prefix == "" {
		prefix = "job:"
	}
	l := logger.With().Str("component", "RedisJobCache").Logger()
	return &JobCache{client: client, prefix: prefix, ttl: ttl, now: time.Now, log: &l}
}

func (c *JobCache) key(id string) string { return c.prefix + id }

// expiry returns the Redis expiry for job, zero meaning none. ok is false
// when a finished job is already past the cache TTL.
func (c *JobCache) expiry(job *model.Job) (exp time.Duration, ok bool) {
	if !job.Status.IsTerminal() || job.CompletedAt == nil {
		return 0, true
	}
	exp = c.ttl - c.now().Sub(*job.CompletedAt)
	return exp, exp > 0
}

func (c *JobCache) Put(ctx context.Context, job *model.Job) {
	if job == nil {
		return
	}
	exp, ok := c.expiry(job)
	if !ok {
		c.drop(ctx, job.ID, "drop expired cache entry")
		return
	}
	data, err := json.Marshal(job)
	if err != nil {
		c.log.Error().Err(err).Str("job_id", job.ID).Msg("marshal job for cache")
		c.drop(ctx, job.ID, "drop unencodable cache entry")
		return
	}
	if err := c.client.Set(ctx, c.key(job.ID), data, exp); err != nil {
		c.log.Warn().Err(err).Str("job_id", job.ID).Msg("cache put failed")
		c.drop(ctx, job.ID, "drop stale cache entry after failed put")
	}
}

// PutIfAbsent stores job only when no entry exists. Entries written this way
// always expire, PROCESSING ones after ttl, so a snapshot that raced a writer
// on another replica cannot outlive the TTL.
func (c *JobCache) PutIfAbsent(ctx context.Context, job *model.Job) {
	if job == nil {
		return
	}
	exp, ok := c.expiry(job)
	if !ok {
		return
	}
	if exp == 0 {
		exp = c.ttl
	}
	data, err := json.Marshal(job)
	if err != nil {
		c.log.Error().Err(err).Str("job_id", job.ID).Msg("marshal job for cache")
		return
	}
	if _, err := c.client.SetNX(ctx, c.key(job.ID), string(data), exp); err != nil {
		c.log.Warn().Err(err).Str("job_id", job.ID).Msg("cache populate failed")
	}
}

func (c *JobCache) drop(ctx context.Context, id, msg string) {
	if err := c.client.Del(ctx, c.key(id)); err != nil {
		c.log.Error().Err(err).Str("job_id", id).Msg(msg)
	}
}

func (c *JobCache) Get(ctx context.Context, id string) (*model.Job, bool) {
	data, err := c.client.Get(ctx, c.key(id))
	if err != nil {
		if !errors.Is(err, Nil) {
			c.log.Warn().Err(err).Str("job_id", id).Msg("cache get failed")
		}
		return nil, false
	}
	var job model.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		c.log.Warn().Err(err).Str("job_id", id).Msg("corrupt cache entry")
		return nil, false
	}
	return &job, true
}

func (c *JobCache) Delete(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...); err != nil {
		c.log.Warn().Err(err).Int("count", len(keys)).Msg("cache delete failed")
	}
}

// EvictIf walks the keyspace with SCAN. Entries that cannot be decoded are
// evicted as well.
func (c *JobCache) EvictIf(ctx context.Context, pred func(*model.Job) bool) int {
	var (
		cursor  uint64
		evicted int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", scanBatch)
		if err != nil {
			c.log.Warn().Err(err).Msg("cache scan failed")
			return evicted
		}
		var stale []string
		for _, k := range keys {
			data, err := c.client.Get(ctx, k)
			if err != nil {
				continue
			}
			var job model.Job
			if json.Unmarshal([]byte(data), &job) != nil || pred(&job) {
				stale = append(stale, k)
			}
		}
		if len(stale) > 0 {
			if err := c.client.Del(ctx, stale...); err != nil {
				c.log.Warn().Err(err).Msg("cache evict failed")
			} else {
				evicted += len(stale)
			}
		}
		if next == 0 {
			return evicted
		}
		cursor = next
	}
}
