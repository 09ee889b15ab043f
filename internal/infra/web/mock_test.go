//go:build !integration

package web

import (
	"context"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/domain/model"
	"future-self-ai/internal/domain/ports/adapter"
	portusecase "future-self-ai/internal/domain/ports/usecase"
	"future-self-ai/internal/usecase"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

type mockPortraitUC struct {
	SubmitFn   func(ctx context.Context, req usecase.PortraitRequest) (*model.Job, error)
	DeleteFn   func(ctx context.Context, id string) (*model.Job, error)
	ModelsFn   func(ctx context.Context) ([]string, error)
	SetModelFn func(ctx context.Context, name string) error
	ProgressFn func(ctx context.Context) (*adapter.GenerationProgress, error)
}

func (m *mockPortraitUC) Submit(ctx context.Context, req usecase.PortraitRequest) (*model.Job, error) {
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, req)
	}
	return nil, domain.ErrStorage
}

func (m *mockPortraitUC) Delete(ctx context.Context, id string) (*model.Job, error) {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockPortraitUC) Models(ctx context.Context) ([]string, error) {
	if m.ModelsFn != nil {
		return m.ModelsFn(ctx)
	}
	return []string{"noop"}, nil
}

func (m *mockPortraitUC) SetModel(ctx context.Context, name string) error {
	if m.SetModelFn != nil {
		return m.SetModelFn(ctx, name)
	}
	return domain.ErrUnsupported
}

func (m *mockPortraitUC) Progress(ctx context.Context) (*adapter.GenerationProgress, error) {
	if m.ProgressFn != nil {
		return m.ProgressFn(ctx)
	}
	return nil, domain.ErrUnsupported
}

// mockJobUC implements only what the HTTP layer reads; the embedded
// interface panics on anything else.
type mockJobUC struct {
	usecase.JobUseCase
	GetJobFn     func(ctx context.Context, id string) (*model.Job, error)
	ListJobsFn   func(ctx context.Context, filter portusecase.JobFilter) ([]*model.Job, error)
	StatisticsFn func(ctx context.Context) (*model.JobStatistics, error)
}

func (m *mockJobUC) GetJob(ctx context.Context, id string) (*model.Job, error) {
	if m.GetJobFn != nil {
		return m.GetJobFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockJobUC) ListJobs(ctx context.Context, filter portusecase.JobFilter) ([]*model.Job, error) {
	if m.ListJobsFn != nil {
		return m.ListJobsFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockJobUC) Statistics(ctx context.Context) (*model.JobStatistics, error) {
	if m.StatisticsFn != nil {
		return m.StatisticsFn(ctx)
	}
	return &model.JobStatistics{ProfessionStats: []model.ProfessionCount{}}, nil
}

// dirImages serves files from a fixed directory.
type dirImages struct {
	dir string
}

func (d dirImages) Path(filename string) (string, error) {
	if filename == "" || filename[0] == '.' {
		return "", domain.ErrInvalidArgument
	}
	for _, c := range filename {
		if c == '/' || c == '\\' {
			return "", domain.ErrInvalidArgument
		}
	}
	return d.dir + "/" + filename, nil
}
