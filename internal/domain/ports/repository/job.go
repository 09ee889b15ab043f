package repository

import (
	"context"
	"time"

	"future-self-ai/internal/domain/model"
)

// -----------------------------
// Jobs
// -----------------------------

// JobRepository is the durable job store. Every method is individually atomic;
// callers pass NoTX outside a transaction.
type JobRepository interface {
	// Create inserts a new job and fails with domain.ErrAlreadyExists on an id collision.
	Create(ctx context.Context, tx Tx, job *model.Job) (*model.Job, error)
	// Save upserts the job and returns the persisted value.
	Save(ctx context.Context, tx Tx, job *model.Job) (*model.Job, error)
	// Finalize writes the terminal state of job only while the stored row is
	// still PROCESSING. It fails with domain.ErrJobFinalized when another writer
	// finalized it first and domain.ErrNotFound when the row is gone.
	Finalize(ctx context.Context, tx Tx, job *model.Job) (*model.Job, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)

	FindAllOrderByCreatedDesc(ctx context.Context, tx Tx) ([]*model.Job, error)
	FindByStatusOrderByCreatedDesc(ctx context.Context, tx Tx, status model.JobStatus) ([]*model.Job, error)
	FindByProfessionOrderByCreatedDesc(ctx context.Context, tx Tx, profession string) ([]*model.Job, error)
	FindCreatedBefore(ctx context.Context, tx Tx, cutoff time.Time) ([]*model.Job, error)
	DeleteAll(ctx context.Context, tx Tx, ids []string) (int64, error)

	Count(ctx context.Context, tx Tx) (int64, error)
	CountByStatus(ctx context.Context, tx Tx, status model.JobStatus) (int64, error)
	// AverageProcessingTime covers COMPLETED jobs with a positive processing time.
	// It returns nil when no such job exists.
	AverageProcessingTime(ctx context.Context, tx Tx) (*float64, error)
	// ProfessionStatistics returns per-profession job counts, largest first.
	ProfessionStatistics(ctx context.Context, tx Tx) ([]model.ProfessionCount, error)
}
