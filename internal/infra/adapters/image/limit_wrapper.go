package image

import (
	"context"
	"fmt"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.ImageGenerator = (*limitedGenerator)(nil)

type limitedGenerator struct {
	inner adapter.ImageGenerator
	sem   chan struct{}
}

// NewLimitedGenerator caps concurrent calls into inner. A non-positive limit
// returns inner unchanged.
func NewLimitedGenerator(inner adapter.ImageGenerator, maxConcurrent int) adapter.ImageGenerator {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedGenerator{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedGenerator) Name() string { return l.inner.Name() }

func (l *limitedGenerator) Generate(ctx context.Context, req adapter.GenerateRequest) (*adapter.RawImage, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Generate(ctx, req)
}

// ListModels forwards to inner when it can list models.
func (l *limitedGenerator) ListModels(ctx context.Context) ([]string, error) {
	if lister, ok := l.inner.(adapter.ModelLister); ok {
		return lister.ListModels(ctx)
	}
	return nil, nil
}

// SetModel forwards to inner when it can switch models.
func (l *limitedGenerator) SetModel(ctx context.Context, name string) error {
	switcher, ok := l.inner.(adapter.ModelSwitcher)
	if !ok {
		return fmt.Errorf("%w: %s cannot switch models", domain.ErrUnsupported, l.inner.Name())
	}
	return switcher.SetModel(ctx, name)
}

// Progress forwards to inner when it reports progress.
func (l *limitedGenerator) Progress(ctx context.Context) (*adapter.GenerationProgress, error) {
	reporter, ok := l.inner.(adapter.ProgressReporter)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not report progress", domain.ErrUnsupported, l.inner.Name())
	}
	return reporter.Progress(ctx)
}
