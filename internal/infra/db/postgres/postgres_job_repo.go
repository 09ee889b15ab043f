package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/domain/model"
	"future-self-ai/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, status, profession, target_age, original_filename, image_url, generated_filename,
error_message, created_at, started_at, completed_at, processing_time_seconds, metadata`

func (r *jobRepo) Create(ctx context.Context, tx repository.Tx, job *model.Job) (*model.Job, error) {
	meta, err := encodeMetadata(job.Metadata)
	if err != nil {
		return nil, err
	}
	q := `
INSERT INTO jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb)
RETURNING ` + jobColumns + `;`

	row, err := pickRow(ctx, r.pool, tx, q, jobArgs(job, meta)...)
	if err != nil {
		return nil, err
	}
	saved, err := scanJob(row)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: job %s", domain.ErrAlreadyExists, job.ID)
	}
	return saved, err
}

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) (*model.Job, error) {
	meta, err := encodeMetadata(job.Metadata)
	if err != nil {
		return nil, err
	}
	q := `
INSERT INTO jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  image_url = EXCLUDED.image_url,
  generated_filename = EXCLUDED.generated_filename,
  error_message = EXCLUDED.error_message,
  completed_at = EXCLUDED.completed_at,
  processing_time_seconds = EXCLUDED.processing_time_seconds,
  metadata = EXCLUDED.metadata
RETURNING ` + jobColumns + `;`

	row, err := pickRow(ctx, r.pool, tx, q, jobArgs(job, meta)...)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) Finalize(ctx context.Context, tx repository.Tx, job *model.Job) (*model.Job, error) {
	meta, err := encodeMetadata(job.Metadata)
	if err != nil {
		return nil, err
	}
	q := `
UPDATE jobs SET
  status = $2,
  image_url = $3,
  generated_filename = $4,
  error_message = $5,
  completed_at = $6,
  processing_time_seconds = $7,
  metadata = $8::jsonb
WHERE id = $1 AND status = 'PROCESSING'
RETURNING ` + jobColumns + `;`

	row, err := pickRow(ctx, r.pool, tx, q, job.ID, string(job.Status), job.ImageURL, job.GeneratedFilename,
		job.ErrorMessage, job.CompletedAt, job.ProcessingTimeSeconds, meta)
	if err != nil {
		return nil, err
	}
	saved, err := scanJob(row)
	if !errors.Is(err, domain.ErrNotFound) {
		return saved, err
	}
	current, err := r.FindByID(ctx, tx, job.ID)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: job %s is %s", domain.ErrJobFinalized, job.ID, current.Status)
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) FindAllOrderByCreatedDesc(ctx context.Context, tx repository.Tx) ([]*model.Job, error) {
	return r.list(ctx, tx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id;`)
}

func (r *jobRepo) FindByStatusOrderByCreatedDesc(ctx context.Context, tx repository.Tx, status model.JobStatus) ([]*model.Job, error) {
	return r.list(ctx, tx, `SELECT `+jobColumns+` FROM jobs WHERE status = $1 ORDER BY created_at DESC, id;`, string(status))
}

func (r *jobRepo) FindByProfessionOrderByCreatedDesc(ctx context.Context, tx repository.Tx, profession string) ([]*model.Job, error) {
	return r.list(ctx, tx, `SELECT `+jobColumns+` FROM jobs WHERE profession = $1 ORDER BY created_at DESC, id;`, profession)
}

func (r *jobRepo) FindCreatedBefore(ctx context.Context, tx repository.Tx, cutoff time.Time) ([]*model.Job, error) {
	return r.list(ctx, tx, `SELECT `+jobColumns+` FROM jobs WHERE created_at < $1 ORDER BY created_at;`, cutoff)
}

func (r *jobRepo) DeleteAll(ctx context.Context, tx repository.Tx, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM jobs WHERE id = ANY($1);`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *jobRepo) Count(ctx context.Context, tx repository.Tx) (int64, error) {
	return r.count(ctx, tx, `SELECT COUNT(*) FROM jobs;`)
}

func (r *jobRepo) CountByStatus(ctx context.Context, tx repository.Tx, status model.JobStatus) (int64, error) {
	return r.count(ctx, tx, `SELECT COUNT(*) FROM jobs WHERE status = $1;`, string(status))
}

func (r *jobRepo) AverageProcessingTime(ctx context.Context, tx repository.Tx) (*float64, error) {
	const q = `
SELECT AVG(processing_time_seconds)::float8
FROM jobs
WHERE status = 'COMPLETED' AND processing_time_seconds > 0;`
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	var avg *float64
	if err := row.Scan(&avg); err != nil {
		return nil, err
	}
	return avg, nil
}

func (r *jobRepo) ProfessionStatistics(ctx context.Context, tx repository.Tx) ([]model.ProfessionCount, error) {
	const q = `
SELECT profession, COUNT(*)
FROM jobs
GROUP BY profession
ORDER BY COUNT(*) DESC, profession;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ProfessionCount{}
	for rows.Next() {
		var pc model.ProfessionCount
		if err := rows.Scan(&pc.Profession, &pc.Count); err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

func (r *jobRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Job, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *jobRepo) count(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (int64, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func jobArgs(j *model.Job, meta string) []interface{} {
	return []interface{}{
		j.ID, string(j.Status), j.Profession, j.TargetAge, j.OriginalFilename, j.ImageURL, j.GeneratedFilename,
		j.ErrorMessage, j.CreatedAt, j.StartedAt, j.CompletedAt, j.ProcessingTimeSeconds, meta,
	}
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j      model.Job
		status string
		meta   []byte
	)
	err := row.Scan(
		&j.ID, &status, &j.Profession, &j.TargetAge, &j.OriginalFilename, &j.ImageURL, &j.GeneratedFilename,
		&j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.ProcessingTimeSeconds, &meta,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	j.Status = model.JobStatus(status)
	j.Metadata = map[string]string{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &j.Metadata); err != nil {
			return nil, fmt.Errorf("decode job metadata: %w", err)
		}
	}
	return &j, nil
}

func encodeMetadata(m map[string]string) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode job metadata: %w", err)
	}
	return string(b), nil
}
