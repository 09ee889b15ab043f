//go:build !integration

package sched

import (
	"context"
	"errors"
	"testing"
)

func TestCacheSweeper(t *testing.T) {
	ctx := context.Background()

	t.Run("is named cache", func(t *testing.T) {
		if got := NewCacheSweeper(&stubJobs{}).Name(); got != "cache" {
			t.Errorf("unexpected name %q", got)
		}
	})

	t.Run("each sweep runs one tracker cache sweep", func(t *testing.T) {
		// Arrange
		jobs := &stubJobs{}
		sw := NewCacheSweeper(jobs)

		// Act
		n, err := sw.Sweep(ctx)
		_, _ = sw.Sweep(ctx)

		// Assert
		if err != nil || n != 2 {
			t.Fatalf("unexpected result n=%d err=%v", n, err)
		}
		if jobs.cacheRuns != 2 || jobs.retentionRuns != 0 {
			t.Errorf("expected 2 cache runs and no retention runs, got %d and %d", jobs.cacheRuns, jobs.retentionRuns)
		}
	})

	t.Run("tracker errors are returned", func(t *testing.T) {
		boom := errors.New("cache down")
		n, err := NewCacheSweeper(&stubJobs{cacheErr: boom}).Sweep(ctx)
		if !errors.Is(err, boom) || n != 0 {
			t.Fatalf("expected the tracker error, got n=%d err=%v", n, err)
		}
	})
}
