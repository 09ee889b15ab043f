package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/domain/model"
	"future-self-ai/internal/domain/ports/adapter"
	"future-self-ai/internal/domain/ports/repository"
	"future-self-ai/internal/domain/ports/usecase"
	"future-self-ai/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

const (
	DefaultCacheTTL        = time.Hour
	DefaultRetentionMaxAge = 30 * 24 * time.Hour

	createAttempts = 3

	// MetadataInstanceID names the replica that created a job.
	MetadataInstanceID = "instanceId"
)

// JobUseCase tracks portrait generation jobs. The store is written first and
// the cache second, so the cache never holds a value the store rejected.
type JobUseCase interface {
	usecase.JobFinalizer

	CreateJob(ctx context.Context, profession string, targetAge int, originalFilename string) (*model.Job, error)
	DeleteJob(ctx context.Context, id string, extra map[string]string) (*model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, filter usecase.JobFilter) ([]*model.Job, error)
	Statistics(ctx context.Context) (*model.JobStatistics, error)

	// RetentionSweep removes every job created before now minus the retention age.
	RetentionSweep(ctx context.Context) (int, error)
	// CacheSweep evicts finished jobs whose completion is older than the cache TTL.
	CacheSweep(ctx context.Context) (int, error)
	// FailOrphaned fails PROCESSING jobs this instance started before the cutoff.
	FailOrphaned(ctx context.Context, startedBefore time.Time, reason string) (int, error)
}

// JobTrackerConfig tunes the tracker. Zero values fall back to defaults.
type JobTrackerConfig struct {
	CacheTTL        time.Duration
	RetentionMaxAge time.Duration
	Now             func() time.Time
	NewID           func() string
	// InstanceID is stamped on created jobs and limits FailOrphaned to them.
	// Empty means a single replica owning every job.
	InstanceID string
}

var _ JobUseCase = (*jobUC)(nil)

type jobUC struct {
	jobs  repository.JobRepository
	tm    repository.TransactionManager
	cache adapter.JobCache

	cacheTTL  time.Duration
	retention time.Duration
	now       func() time.Time
	newID     func() string
	instance  string

	// sweeps counts retention sweeps so a read-through racing one can drop
	// what it just cached.
	sweeps atomic.Uint64

	log *zerolog.Logger
}

// NewJobUseCase wires the tracker. tm may be nil, in which case the retention
// sweep runs without a transaction.
func NewJobUseCase(
	jobs repository.JobRepository,
	tm repository.TransactionManager,
	cache adapter.JobCache,
	cfg JobTrackerConfig,
	logger *zerolog.Logger,
) JobUseCase {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.RetentionMaxAge <= 0 {
		cfg.RetentionMaxAge = DefaultRetentionMaxAge
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "JobTracker").Logger()
	return &jobUC{
		jobs:      jobs,
		tm:        tm,
		cache:     cache,
		cacheTTL:  cfg.CacheTTL,
		retention: cfg.RetentionMaxAge,
		now:       cfg.Now,
		newID:     cfg.NewID,
		instance:  cfg.InstanceID,
		log:       &l,
	}
}

func (u *jobUC) CreateJob(ctx context.Context, profession string, targetAge int, originalFilename string) (*model.Job, error) {
	for attempt := 1; ; attempt++ {
		job, err := model.NewJob(u.newID(), profession, targetAge, originalFilename, u.now())
		if err != nil {
			return nil, err
		}
		if u.instance != "" {
			job.Metadata[MetadataInstanceID] = u.instance
		}
		saved, err := u.jobs.Create(ctx, repository.NoTX, job)
		if errors.Is(err, domain.ErrAlreadyExists) && attempt < createAttempts {
			u.log.Warn().Str("job_id", job.ID).Int("attempt", attempt).Msg("job id collision, retrying with a fresh id")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create job: %w", err)
		}
		u.cache.Put(ctx, saved)
		metrics.IncJobCreated(saved.Profession)
		u.log.Info().Str("job_id", saved.ID).Str("profession", saved.Profession).Int("target_age", saved.TargetAge).Msg("job created")
		return saved, nil
	}
}

func (u *jobUC) CompleteJob(ctx context.Context, id, imageURL, generatedFilename string, extra map[string]string) error {
	return u.finalize(ctx, id, model.JobStatusCompleted, func(job *model.Job, now time.Time) error {
		return job.Complete(imageURL, generatedFilename, extra, now)
	})
}

func (u *jobUC) FailJob(ctx context.Context, id, errorMessage string) error {
	return u.finalize(ctx, id, model.JobStatusFailed, func(job *model.Job, now time.Time) error {
		return job.Fail(errorMessage, now)
	})
}

// finalize loads the authoritative record from the store, never the cache, so
// the transition is applied to the latest persisted state. An unknown id is
// a late callback racing the retention sweep and is only logged.
func (u *jobUC) finalize(ctx context.Context, id string, target model.JobStatus, apply func(*model.Job, time.Time) error) error {
	job, err := u.jobs.FindByID(ctx, repository.NoTX, id)
	if errors.Is(err, domain.ErrNotFound) {
		u.log.Warn().Str("job_id", id).Str("target_status", string(target)).Msg("finalization for unknown job ignored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job %s: %w", id, err)
	}
	if err := apply(job, u.now()); err != nil {
		return err
	}
	saved, err := u.jobs.Finalize(ctx, repository.NoTX, job)
	if errors.Is(err, domain.ErrNotFound) {
		u.log.Warn().Str("job_id", id).Str("target_status", string(target)).Msg("job removed before finalization, ignored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("finalize job %s: %w", id, err)
	}
	u.cache.Put(ctx, saved)

	metrics.IncJobFinished(string(saved.Status))
	if saved.ProcessingTimeSeconds != nil {
		metrics.ObserveJobProcessingTime(string(saved.Status), *saved.ProcessingTimeSeconds)
	}
	ev := u.log.Info()
	if saved.Status == model.JobStatusFailed {
		ev = u.log.Warn().Str("error_message", saved.ErrorMessage)
	}
	ev.Str("job_id", id).Str("status", string(saved.Status)).Msg("job finalized")
	return nil
}

func (u *jobUC) DeleteJob(ctx context.Context, id string, extra map[string]string) (*model.Job, error) {
	job, err := u.jobs.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case model.JobStatusDeleted:
		return job, nil
	case model.JobStatusProcessing:
		return nil, fmt.Errorf("%w: job %s is still processing", domain.ErrInvalidTransition, id)
	case model.JobStatusCompleted, model.JobStatusFailed:
	}
	if err := job.MarkDeleted(extra, u.now()); err != nil {
		return nil, err
	}
	saved, err := u.jobs.Save(ctx, repository.NoTX, job)
	if err != nil {
		return nil, fmt.Errorf("save job %s: %w", id, err)
	}
	u.cache.Put(ctx, saved)
	metrics.IncJobFinished(string(saved.Status))
	u.log.Info().Str("job_id", id).Msg("job deleted")
	return saved, nil
}

func (u *jobUC) GetJob(ctx context.Context, id string) (*model.Job, error) {
	if job, ok := u.cache.Get(ctx, id); ok {
		metrics.IncCacheRequest("job", "hit")
		return job, nil
	}
	metrics.IncCacheRequest("job", "miss")
	gen := u.sweeps.Load()
	job, err := u.jobs.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	u.cache.PutIfAbsent(ctx, job)
	if u.sweeps.Load() != gen {
		u.cache.Delete(ctx, id)
	}
	return job, nil
}

func (u *jobUC) ListJobs(ctx context.Context, filter usecase.JobFilter) ([]*model.Job, error) {
	switch {
	case filter.Status != nil && filter.Profession != nil:
		jobs, err := u.jobs.FindByStatusOrderByCreatedDesc(ctx, repository.NoTX, *filter.Status)
		if err != nil {
			return nil, err
		}
		out := make([]*model.Job, 0, len(jobs))
		for _, j := range jobs {
			if strings.EqualFold(j.Profession, *filter.Profession) {
				out = append(out, j)
			}
		}
		return out, nil
	case filter.Status != nil:
		return u.jobs.FindByStatusOrderByCreatedDesc(ctx, repository.NoTX, *filter.Status)
	case filter.Profession != nil:
		return u.jobs.FindByProfessionOrderByCreatedDesc(ctx, repository.NoTX, strings.ToLower(*filter.Profession))
	default:
		return u.jobs.FindAllOrderByCreatedDesc(ctx, repository.NoTX)
	}
}

func (u *jobUC) Statistics(ctx context.Context) (*model.JobStatistics, error) {
	total, err := u.jobs.Count(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	stats := &model.JobStatistics{TotalJobs: total, ProfessionStats: []model.ProfessionCount{}}
	if stats.CompletedJobs, err = u.jobs.CountByStatus(ctx, repository.NoTX, model.JobStatusCompleted); err != nil {
		return nil, err
	}
	if stats.FailedJobs, err = u.jobs.CountByStatus(ctx, repository.NoTX, model.JobStatusFailed); err != nil {
		return nil, err
	}
	if stats.ProcessingJobs, err = u.jobs.CountByStatus(ctx, repository.NoTX, model.JobStatusProcessing); err != nil {
		return nil, err
	}
	if stats.CompletedJobs > 0 {
		avg, err := u.jobs.AverageProcessingTime(ctx, repository.NoTX)
		if err != nil {
			return nil, err
		}
		stats.AverageProcessingTimeSeconds = avg
	}
	perProfession, err := u.jobs.ProfessionStatistics(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	if perProfession != nil {
		stats.ProfessionStats = perProfession
	}
	return stats, nil
}

func (u *jobUC) RetentionSweep(ctx context.Context) (int, error) {
	u.sweeps.Add(1)
	cutoff := u.now().Add(-u.retention)
	var ids []string
	sweep := func(ctx context.Context, tx repository.Tx) error {
		old, err := u.jobs.FindCreatedBefore(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		if len(old) == 0 {
			return nil
		}
		ids = make([]string, 0, len(old))
		for _, j := range old {
			ids = append(ids, j.ID)
		}
		_, err = u.jobs.DeleteAll(ctx, tx, ids)
		return err
	}

	var err error
	if u.tm != nil {
		err = u.tm.WithTx(ctx, pgx.TxOptions{}, sweep)
	} else {
		err = sweep(ctx, repository.NoTX)
	}
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	// cache second: a failed store delete leaves the cache untouched
	u.cache.Delete(ctx, ids...)
	u.log.Info().Int("count", len(ids)).Time("cutoff", cutoff).Msg("cleaned up old jobs")
	return len(ids), nil
}

func (u *jobUC) CacheSweep(ctx context.Context) (int, error) {
	now := u.now()
	n := u.cache.EvictIf(ctx, func(job *model.Job) bool {
		return job.ExpiredFromCache(now, u.cacheTTL)
	})
	if n > 0 {
		metrics.AddCacheEvictions("job", n)
		u.log.Debug().Int("count", n).Msg("evicted expired cache entries")
	}
	return n, nil
}

func (u *jobUC) FailOrphaned(ctx context.Context, startedBefore time.Time, reason string) (int, error) {
	processing, err := u.jobs.FindByStatusOrderByCreatedDesc(ctx, repository.NoTX, model.JobStatusProcessing)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, j := range processing {
		if !j.StartedAt.Before(startedBefore) || j.Metadata[MetadataInstanceID] != u.instance {
			continue
		}
		if err := u.FailJob(ctx, j.ID, reason); err != nil {
			if errors.Is(err, domain.ErrJobFinalized) {
				continue
			}
			return n, err
		}
		metrics.IncJobOrphaned("startup")
		n++
	}
	if n > 0 {
		u.log.Warn().Int("count", n).Msg("failed jobs orphaned by a previous run")
	}
	return n, nil
}
