package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/domain/model"
	"future-self-ai/internal/domain/ports/adapter"
	"future-self-ai/internal/domain/ports/usecase"

	"github.com/rs/zerolog"
)

// PortraitRequest is a validated-on-entry request to age a child photo.
// A zero TargetAge selects model.DefaultTargetAge.
type PortraitRequest struct {
	Profession string
	TargetAge  int
	Mode       string
	Source     adapter.SourceImage
}

// PortraitUseCase is the entry point used by the HTTP layer.
type PortraitUseCase interface {
	// Submit validates req, records a PROCESSING job and hands generation to
	// the dispatcher. The returned job reflects the state right after dispatch.
	Submit(ctx context.Context, req PortraitRequest) (*model.Job, error)
	// Delete removes the generated image, then records the job as DELETED.
	Delete(ctx context.Context, id string) (*model.Job, error)
	// Models lists backend models when the backend can report them.
	Models(ctx context.Context) ([]string, error)
	// SetModel switches the backend's active model.
	SetModel(ctx context.Context, name string) error
	// Progress reports what the backend is generating right now.
	Progress(ctx context.Context) (*adapter.GenerationProgress, error)
}

var _ PortraitUseCase = (*portraitUC)(nil)

type portraitUC struct {
	jobs       JobUseCase
	generator  adapter.ImageGenerator
	dispatcher usecase.GenerationDispatcher
	artifacts  adapter.ArtifactStore
	now        func() time.Time
	log        *zerolog.Logger
}

func NewPortraitUseCase(
	jobs JobUseCase,
	generator adapter.ImageGenerator,
	dispatcher usecase.GenerationDispatcher,
	artifacts adapter.ArtifactStore,
	logger *zerolog.Logger,
) PortraitUseCase {
	l := logger.With().Str("component", "PortraitUC").Logger()
	return &portraitUC{
		jobs:       jobs,
		generator:  generator,
		dispatcher: dispatcher,
		artifacts:  artifacts,
		now:        time.Now,
		log:        &l,
	}
}

func (u *portraitUC) Submit(ctx context.Context, req PortraitRequest) (*model.Job, error) {
	profession, err := model.NormalizeProfession(req.Profession)
	if err != nil {
		return nil, err
	}
	age := req.TargetAge
	if age == 0 {
		age = model.DefaultTargetAge
	}
	if err := model.ValidateTargetAge(age); err != nil {
		return nil, err
	}
	if len(req.Source.Data) == 0 {
		return nil, fmt.Errorf("%w: please upload an image", domain.ErrInvalidArgument)
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		return nil, err
	}

	job, err := u.jobs.CreateJob(ctx, profession, age, req.Source.Filename)
	if err != nil {
		return nil, err
	}

	genReq := adapter.GenerateRequest{
		JobID:          job.ID,
		Profession:     profession,
		TargetAge:      age,
		Prompt:         model.BuildPrompt(profession, age),
		NegativePrompt: model.NegativePrompt,
		Mode:           mode,
		Source:         req.Source,
	}
	gen := func(ctx context.Context) (*adapter.RawImage, error) {
		return u.generator.Generate(ctx, genReq)
	}
	if err := u.dispatcher.Dispatch(job.ID, u.generator.Name(), gen); err != nil {
		// the dispatcher has already failed the job; report its stored state
		u.log.Warn().Err(err).Str("job_id", job.ID).Msg("generation refused")
		if stored, gerr := u.jobs.GetJob(ctx, job.ID); gerr == nil {
			return stored, nil
		}
	}
	return job, nil
}

func (u *portraitUC) Delete(ctx context.Context, id string) (*model.Job, error) {
	job, err := u.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case model.JobStatusProcessing:
		return nil, fmt.Errorf("%w: job %s is still processing", domain.ErrInvalidTransition, id)
	case model.JobStatusDeleted:
		return job, nil
	case model.JobStatusCompleted, model.JobStatusFailed:
	}
	if job.GeneratedFilename != "" {
		if err := u.artifacts.Delete(ctx, job.GeneratedFilename); err != nil {
			return nil, err
		}
	}
	return u.jobs.DeleteJob(ctx, id, map[string]string{
		"deletedAt": u.now().UTC().Format(time.RFC3339),
		"deletedBy": "system",
	})
}

func (u *portraitUC) Models(ctx context.Context) ([]string, error) {
	lister, ok := u.generator.(adapter.ModelLister)
	if !ok {
		return []string{u.generator.Name()}, nil
	}
	models, err := lister.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if len(models) == 0 {
		return []string{u.generator.Name()}, nil
	}
	return models, nil
}

func (u *portraitUC) SetModel(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: model name is required", domain.ErrInvalidArgument)
	}
	switcher, ok := u.generator.(adapter.ModelSwitcher)
	if !ok {
		return fmt.Errorf("%w: %s cannot switch models", domain.ErrUnsupported, u.generator.Name())
	}
	if err := switcher.SetModel(ctx, name); err != nil {
		return err
	}
	u.log.Info().Str("provider", u.generator.Name()).Str("model", name).Msg("backend model changed")
	return nil
}

func (u *portraitUC) Progress(ctx context.Context) (*adapter.GenerationProgress, error) {
	reporter, ok := u.generator.(adapter.ProgressReporter)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not report progress", domain.ErrUnsupported, u.generator.Name())
	}
	return reporter.Progress(ctx)
}

func parseMode(s string) (adapter.GenerationMode, error) {
	switch adapter.GenerationMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", adapter.GenerationModeImg2Img:
		return adapter.GenerationModeImg2Img, nil
	case adapter.GenerationModeControlNet:
		return adapter.GenerationModeControlNet, nil
	default:
		return "", fmt.Errorf("%w: mode must be img2img or controlnet", domain.ErrInvalidArgument)
	}
}
