package usecase

import (
	"context"

	"future-self-ai/internal/domain/model"
	"future-self-ai/internal/domain/ports/adapter"
)

// JobFinalizer is the slice of the job tracker the generation dispatcher needs.
type JobFinalizer interface {
	CompleteJob(ctx context.Context, id, imageURL, generatedFilename string, extra map[string]string) error
	FailJob(ctx context.Context, id, errorMessage string) error
}

// JobFilter narrows ListJobs. Nil fields are not applied.
type JobFilter struct {
	Status     *model.JobStatus
	Profession *string
}

// GenerationDispatcher runs a generation off the caller's goroutine and
// finalizes the job with its outcome.
type GenerationDispatcher interface {
	Dispatch(jobID, provider string, gen adapter.Generation) error
}
