package scheduler

import (
	"context"
	"time"

	"future-self-ai/internal/infra/logging"
	"future-self-ai/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Sweeper is one periodic maintenance pass. Sweep returns the number of
// entries it removed.
type Sweeper interface {
	Name() string
	Sweep(ctx context.Context) (int, error)
}

// Scheduler periodically runs a Sweeper.
type Scheduler struct {
	interval time.Duration
	timeout  time.Duration
	sweeper  Sweeper
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler constructs a scheduler that runs sweeper every interval, each
// run bounded by timeout. Non-positive values default to 1 minute and 5 minutes.
func NewScheduler(interval, timeout time.Duration, sweeper Sweeper, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	l := logger.With().Str("component", "Scheduler").Str("sweep", sweeper.Name()).Logger()
	return &Scheduler{
		interval: interval,
		timeout:  timeout,
		sweeper:  sweeper,
		log:      &l,
	}
}

// Start begins the scheduler loop in a background goroutine.
// Calling Start multiple times has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("scheduler stopping")
			return
		case <-ticker.C:
			s.RunOnce(s.ctx)
		}
	}
}

// RunOnce performs a single bounded sweep and records its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	name := s.sweeper.Name()
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer logging.TraceDuration(s.log, "sweep."+name)()

	start := time.Now()
	n, err := s.sweeper.Sweep(runCtx)
	if err != nil {
		metrics.IncSweepRun(name, "error")
		s.log.Error().Err(err).Msg("sweep failed")
		return
	}
	metrics.IncSweepRun(name, "ok")
	metrics.AddSweepRemoved(name, n)
	if n > 0 {
		s.log.Info().Int("removed", n).Dur("took", time.Since(start)).Msg("sweep finished")
	}
}

// Stop cancels the scheduler and waits for the loop to finish. It is idempotent.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
}
