package sched

import (
	"context"

	"future-self-ai/internal/usecase"
)

// CacheSweeper evicts finished jobs whose cache TTL has elapsed.
type CacheSweeper struct {
	jobs usecase.JobUseCase
}

func NewCacheSweeper(jobs usecase.JobUseCase) *CacheSweeper {
	return &CacheSweeper{jobs: jobs}
}

func (w *CacheSweeper) Name() string { return "cache" }

func (w *CacheSweeper) Sweep(ctx context.Context) (int, error) {
	return w.jobs.CacheSweep(ctx)
}
