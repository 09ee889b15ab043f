//go:build !integration

package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"future-self-ai/internal/infra/redis"
	"future-self-ai/internal/usecase"

	"github.com/rs/zerolog"
)

// stubJobs implements only the sweep methods of the tracker.
type stubJobs struct {
	usecase.JobUseCase
	retentionRuns int
	cacheRuns     int
	cacheErr      error
}

func (s *stubJobs) RetentionSweep(ctx context.Context) (int, error) {
	s.retentionRuns++
	return 3, nil
}

func (s *stubJobs) CacheSweep(ctx context.Context) (int, error) {
	s.cacheRuns++
	if s.cacheErr != nil {
		return 0, s.cacheErr
	}
	return 2, nil
}

type mockLocker struct {
	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
	unlocked    []string
}

var _ redis.Locker = (*mockLocker)(nil)

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return m.TryLockFunc(ctx, key, ttl)
}

func (m *mockLocker) Unlock(ctx context.Context, key, token string) error {
	m.unlocked = append(m.unlocked, token)
	return nil
}

func TestRetentionSweeper(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	t.Run("is named retention", func(t *testing.T) {
		if got := NewRetentionSweeper(&stubJobs{}, nil, time.Minute, &logger).Name(); got != "retention" {
			t.Errorf("unexpected name %q", got)
		}
	})

	t.Run("sweeps without a locker", func(t *testing.T) {
		jobs := &stubJobs{}
		n, err := NewRetentionSweeper(jobs, nil, time.Minute, &logger).Sweep(ctx)
		if err != nil || n != 3 || jobs.retentionRuns != 1 {
			t.Fatalf("unexpected result n=%d err=%v runs=%d", n, err, jobs.retentionRuns)
		}
	})

	t.Run("holds the lock for the duration of the sweep", func(t *testing.T) {
		// Arrange
		jobs := &stubJobs{}
		locker := &mockLocker{TryLockFunc: func(ctx context.Context, key string, ttl time.Duration) (string, error) {
			if key != retentionLockKey || ttl != time.Minute {
				t.Errorf("unexpected lock request %s %v", key, ttl)
			}
			return "tok", nil
		}}

		// Act
		n, err := NewRetentionSweeper(jobs, locker, time.Minute, &logger).Sweep(ctx)

		// Assert
		if err != nil || n != 3 {
			t.Fatalf("unexpected result n=%d err=%v", n, err)
		}
		if len(locker.unlocked) != 1 || locker.unlocked[0] != "tok" {
			t.Errorf("expected unlock with the acquired token, got %v", locker.unlocked)
		}
	})

	t.Run("skips quietly when another replica holds the lock", func(t *testing.T) {
		jobs := &stubJobs{}
		locker := &mockLocker{TryLockFunc: func(ctx context.Context, key string, ttl time.Duration) (string, error) {
			return "", redis.ErrLockHeld
		}}
		n, err := NewRetentionSweeper(jobs, locker, time.Minute, &logger).Sweep(ctx)
		if err != nil || n != 0 || jobs.retentionRuns != 0 {
			t.Fatalf("expected skip, got n=%d err=%v runs=%d", n, err, jobs.retentionRuns)
		}
	})

	t.Run("lock backend errors are reported", func(t *testing.T) {
		jobs := &stubJobs{}
		locker := &mockLocker{TryLockFunc: func(ctx context.Context, key string, ttl time.Duration) (string, error) {
			return "", errors.New("redis down")
		}}
		if _, err := NewRetentionSweeper(jobs, locker, time.Minute, &logger).Sweep(ctx); err == nil {
			t.Fatal("expected error")
		}
	})
}
