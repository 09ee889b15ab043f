package adapter

import (
	"context"

	"future-self-ai/internal/domain/model"
)

// JobCache is a non-authoritative mirror of recently touched jobs. Lookups
// never fail: any backend problem is reported as a miss.
type JobCache interface {
	// Put overwrites any entry stored for job.ID.
	Put(ctx context.Context, job *model.Job)
	// PutIfAbsent stores job only when no entry exists for job.ID. Read-through
	// uses it so a snapshot loaded before a concurrent write never replaces
	// the writer's newer entry.
	PutIfAbsent(ctx context.Context, job *model.Job)
	Get(ctx context.Context, id string) (*model.Job, bool)
	Delete(ctx context.Context, ids ...string)
	// EvictIf removes every entry matching pred and returns how many were removed.
	EvictIf(ctx context.Context, pred func(job *model.Job) bool) int
}
