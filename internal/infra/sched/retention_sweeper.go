package sched

import (
	"context"
	"errors"
	"time"

	"future-self-ai/internal/infra/redis"
	"future-self-ai/internal/usecase"

	"github.com/rs/zerolog"
)

const retentionLockKey = "lock:sweep:retention"

// RetentionSweeper removes jobs past the retention age. With a locker, only
// the replica holding the lock sweeps; the others skip the run.
type RetentionSweeper struct {
	jobs    usecase.JobUseCase
	locker  redis.Locker
	lockTTL time.Duration
	log     *zerolog.Logger
}

func NewRetentionSweeper(jobs usecase.JobUseCase, locker redis.Locker, lockTTL time.Duration, logger *zerolog.Logger) *RetentionSweeper {
	l := logger.With().Str("component", "RetentionSweeper").Logger()
	return &RetentionSweeper{jobs: jobs, locker: locker, lockTTL: lockTTL, log: &l}
}

func (w *RetentionSweeper) Name() string { return "retention" }

func (w *RetentionSweeper) Sweep(ctx context.Context) (int, error) {
	if w.locker == nil {
		return w.jobs.RetentionSweep(ctx)
	}
	token, err := w.locker.TryLock(ctx, retentionLockKey, w.lockTTL)
	if errors.Is(err, redis.ErrLockHeld) {
		w.log.Debug().Msg("retention sweep running elsewhere, skipped")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer func() {
		// fresh context: the sweep context may already be done
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.locker.Unlock(unlockCtx, retentionLockKey, token); err != nil {
			w.log.Warn().Err(err).Msg("release retention lock")
		}
	}()
	return w.jobs.RetentionSweep(ctx)
}
