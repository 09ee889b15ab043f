//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/domain/model"
	"future-self-ai/internal/domain/ports/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
)

func TestJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewJobRepo(testPool)
	base := time.Now().UTC().Truncate(time.Second)

	newJob := func(t *testing.T, profession string, createdAt time.Time) *model.Job {
		t.Helper()
		j, err := model.NewJob(uuid.NewString(), profession, 35, "me.png", createdAt)
		if err != nil {
			t.Fatalf("new job: %v", err)
		}
		saved, err := repo.Create(ctx, nil, j)
		if err != nil {
			t.Fatalf("create job: %v", err)
		}
		return saved
	}

	t.Run("should create, finalize and reload a job", func(t *testing.T) {
		cleanup(t)
		job := newJob(t, "doctor", base)

		if err := job.Complete("/api/images/generated_"+job.ID+".png", "generated_"+job.ID+".png",
			map[string]string{"provider": "noop"}, base.Add(42*time.Second)); err != nil {
			t.Fatalf("complete: %v", err)
		}
		if _, err := repo.Save(ctx, nil, job); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := repo.FindByID(ctx, nil, job.ID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.Status != model.JobStatusCompleted {
			t.Errorf("expected COMPLETED, got %s", got.Status)
		}
		if got.ProcessingTimeSeconds == nil || *got.ProcessingTimeSeconds != 42 {
			t.Errorf("expected processing time 42, got %v", got.ProcessingTimeSeconds)
		}
		if got.CompletedAt == nil || !got.CompletedAt.Equal(base.Add(42*time.Second)) {
			t.Errorf("unexpected completedAt %v", got.CompletedAt)
		}
		if got.Metadata["provider"] != "noop" {
			t.Errorf("metadata not persisted: %v", got.Metadata)
		}
	})

	t.Run("finalize only writes a PROCESSING row", func(t *testing.T) {
		cleanup(t)
		job := newJob(t, "pilot", base)
		failed := job.Clone()
		_ = failed.Fail("interrupted", base.Add(time.Second))
		if _, err := repo.Finalize(ctx, nil, failed); err != nil {
			t.Fatalf("first finalize: %v", err)
		}

		_ = job.Complete("u", "f", nil, base.Add(2*time.Second))
		_, err := repo.Finalize(ctx, nil, job)

		if !errors.Is(err, domain.ErrJobFinalized) {
			t.Fatalf("expected ErrJobFinalized, got %v", err)
		}
		got, _ := repo.FindByID(ctx, nil, job.ID)
		if got.Status != model.JobStatusFailed {
			t.Errorf("the first finalization must win, got %s", got.Status)
		}
		gone := job.Clone()
		gone.ID = uuid.NewString()
		if _, err := repo.Finalize(ctx, nil, gone); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for a missing row, got %v", err)
		}
	})

	t.Run("duplicate ids are reported as ErrAlreadyExists", func(t *testing.T) {
		cleanup(t)
		job := newJob(t, "chef", base)

		_, err := repo.Create(ctx, nil, job)
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("missing ids are reported as ErrNotFound", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.FindByID(ctx, nil, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("listings are newest first and filterable", func(t *testing.T) {
		cleanup(t)
		oldest := newJob(t, "pilot", base.Add(-2*time.Minute))
		middle := newJob(t, "chef", base.Add(-time.Minute))
		newest := newJob(t, "pilot", base)
		_ = middle.Fail("boom", base)
		if _, err := repo.Save(ctx, nil, middle); err != nil {
			t.Fatal(err)
		}

		all, err := repo.FindAllOrderByCreatedDesc(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 3 || all[0].ID != newest.ID || all[2].ID != oldest.ID {
			t.Errorf("unexpected ordering: %v", ids(all))
		}

		pilots, _ := repo.FindByProfessionOrderByCreatedDesc(ctx, nil, "pilot")
		if len(pilots) != 2 || pilots[0].ID != newest.ID {
			t.Errorf("unexpected pilots: %v", ids(pilots))
		}

		failed, _ := repo.FindByStatusOrderByCreatedDesc(ctx, nil, model.JobStatusFailed)
		if len(failed) != 1 || failed[0].ID != middle.ID {
			t.Errorf("unexpected failed list: %v", ids(failed))
		}
	})

	t.Run("statistics aggregate counts and averages", func(t *testing.T) {
		cleanup(t)
		a := newJob(t, "doctor", base)
		b := newJob(t, "doctor", base)
		c := newJob(t, "artist", base)
		_ = a.Complete("u", "f", nil, base.Add(10*time.Second))
		_ = b.Complete("u", "f", nil, base.Add(20*time.Second))
		_ = c.Fail("x", base.Add(time.Second))
		for _, j := range []*model.Job{a, b, c} {
			if _, err := repo.Save(ctx, nil, j); err != nil {
				t.Fatal(err)
			}
		}

		total, _ := repo.Count(ctx, nil)
		completed, _ := repo.CountByStatus(ctx, nil, model.JobStatusCompleted)
		avg, err := repo.AverageProcessingTime(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		stats, _ := repo.ProfessionStatistics(ctx, nil)

		if total != 3 || completed != 2 {
			t.Errorf("unexpected counts total=%d completed=%d", total, completed)
		}
		if avg == nil || *avg != 15 {
			t.Errorf("expected average 15, got %v", avg)
		}
		if len(stats) != 2 || stats[0].Profession != "doctor" || stats[0].Count != 2 {
			t.Errorf("unexpected profession stats %+v", stats)
		}
	})

	t.Run("average is nil without completed jobs", func(t *testing.T) {
		cleanup(t)
		newJob(t, "doctor", base)
		avg, err := repo.AverageProcessingTime(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		if avg != nil {
			t.Errorf("expected nil average, got %v", *avg)
		}
	})

	t.Run("retention delete inside a transaction", func(t *testing.T) {
		cleanup(t)
		old := newJob(t, "teacher", base.Add(-31*24*time.Hour))
		fresh := newJob(t, "teacher", base)
		tm := NewTxManager(testPool)

		var removed int64
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			stale, err := repo.FindCreatedBefore(ctx, tx, base.Add(-30*24*time.Hour))
			if err != nil {
				return err
			}
			removed, err = repo.DeleteAll(ctx, tx, ids(stale))
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
		if removed != 1 {
			t.Errorf("expected 1 removed, got %d", removed)
		}
		if _, err := repo.FindByID(ctx, nil, old.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Error("old job should be gone")
		}
		if _, err := repo.FindByID(ctx, nil, fresh.ID); err != nil {
			t.Errorf("fresh job should remain: %v", err)
		}
	})
}

func ids(jobs []*model.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}
