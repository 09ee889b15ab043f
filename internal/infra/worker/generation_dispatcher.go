package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/domain/ports/adapter"
	"future-self-ai/internal/domain/ports/usecase"
	"future-self-ai/internal/infra/logging"
	"future-self-ai/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ usecase.GenerationDispatcher = (*GenerationDispatcher)(nil)

// GenerationDispatcher owns the await-then-finalize step for every job. Each
// dispatched job ends in exactly one CompleteJob or FailJob call.
type GenerationDispatcher struct {
	pool      *Pool
	finalizer usecase.JobFinalizer
	store     adapter.ArtifactStore
	notifier  adapter.JobNotifier
	log       *zerolog.Logger
}

// NewGenerationDispatcher wires the dispatcher. notifier may be nil.
func NewGenerationDispatcher(
	pool *Pool,
	finalizer usecase.JobFinalizer,
	store adapter.ArtifactStore,
	notifier adapter.JobNotifier,
	logger *zerolog.Logger,
) *GenerationDispatcher {
	l := logger.With().Str("component", "GenerationDispatcher").Logger()
	return &GenerationDispatcher{
		pool:      pool,
		finalizer: finalizer,
		store:     store,
		notifier:  notifier,
		log:       &l,
	}
}

// Dispatch hands gen to the pool and returns immediately. When the pool
// refuses the work the job is failed on the spot and the refusal is returned.
func (d *GenerationDispatcher) Dispatch(jobID, provider string, gen adapter.Generation) error {
	err := d.pool.Submit(jobID, func(ctx context.Context) error {
		d.process(ctx, jobID, provider, gen)
		return nil
	})
	if err == nil {
		return nil
	}
	d.log.Warn().Err(err).Str("job_id", jobID).Msg("generation not scheduled")
	d.fail(context.Background(), jobID, "Generation failed: "+err.Error())
	return err
}

func (d *GenerationDispatcher) process(ctx context.Context, jobID, provider string, gen adapter.Generation) {
	ctx = logging.WithJobID(ctx, jobID)
	log := logging.With(ctx, d.log).With().Str("provider", provider).Logger()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			metrics.ObserveGeneration(provider, time.Since(start).Milliseconds(), false)
			log.Error().Interface("panic", r).Msg("generation panicked")
			d.fail(ctx, jobID, fmt.Sprintf("Generation failed: internal error: %v", r))
		}
	}()

	raw, err := gen(ctx)
	if err == nil && raw == nil {
		err = fmt.Errorf("%w: backend returned no image", domain.ErrGeneration)
	}
	metrics.ObserveGeneration(provider, time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		log.Warn().Err(err).Msg("generation failed")
		d.fail(ctx, jobID, "Generation failed: "+err.Error())
		return
	}

	artifact, err := d.store.Persist(ctx, raw, jobID)
	if err != nil {
		log.Error().Err(err).Msg("persist generated image")
		d.fail(ctx, jobID, "Failed to save generated image: "+err.Error())
		return
	}

	extra := map[string]string{
		"provider":     raw.Provider,
		"artifactSize": strconv.FormatInt(artifact.Size, 10),
	}
	if raw.Model != "" {
		extra["model"] = raw.Model
	}
	if err := d.finalizer.CompleteJob(ctx, jobID, artifact.URL, artifact.Filename, extra); err != nil {
		d.finalizeError(log, err)
		return
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("generation completed")
}

func (d *GenerationDispatcher) fail(ctx context.Context, jobID, reason string) {
	if err := d.finalizer.FailJob(ctx, jobID, reason); err != nil {
		d.finalizeError(d.log.With().Str("job_id", jobID).Logger(), err)
		return
	}
	if d.notifier == nil {
		return
	}
	if err := d.notifier.NotifyFailure(ctx, jobID, reason); err != nil {
		d.log.Warn().Err(err).Str("job_id", jobID).Msg("failure notification not delivered")
	}
}

func (d *GenerationDispatcher) finalizeError(log zerolog.Logger, err error) {
	if errors.Is(err, domain.ErrJobFinalized) {
		log.Warn().Err(err).Msg("job already finalized, outcome dropped")
		return
	}
	metrics.IncJobOrphaned("finalize")
	log.Error().Err(err).Msg("job could not be finalized, orphaned")
}
