package sched

import (
	"context"
	"time"
)

// ArtifactCollector removes stored images older than a cutoff.
type ArtifactCollector interface {
	GarbageCollect(ctx context.Context, cutoff time.Time) (int, error)
}

// ArtifactSweeper drops generated images once their jobs are past retention.
type ArtifactSweeper struct {
	store  ArtifactCollector
	maxAge time.Duration
	now    func() time.Time
}

func NewArtifactSweeper(store ArtifactCollector, maxAge time.Duration) *ArtifactSweeper {
	return &ArtifactSweeper{store: store, maxAge: maxAge, now: time.Now}
}

func (w *ArtifactSweeper) Name() string { return "artifacts" }

func (w *ArtifactSweeper) Sweep(ctx context.Context) (int, error) {
	return w.store.GarbageCollect(ctx, w.now().Add(-w.maxAge))
}
