package image

import (
	"context"
	"time"

	"future-self-ai/internal/domain/ports/adapter"
)

var _ adapter.ImageGenerator = (*NoopGenerator)(nil)

// a 1x1 transparent PNG
const noopPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// NoopGenerator returns a fixed image after a short delay. For local
// development without a GPU backend.
type NoopGenerator struct {
	delay time.Duration
}

func NewNoopGenerator(delay time.Duration) *NoopGenerator {
	return &NoopGenerator{delay: delay}
}

func (g *NoopGenerator) Name() string { return "noop" }

func (g *NoopGenerator) Generate(ctx context.Context, req adapter.GenerateRequest) (*adapter.RawImage, error) {
	select {
	case <-time.After(g.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &adapter.RawImage{
		Payload:  "data:image/png;base64," + noopPNG,
		Provider: g.Name(),
		Model:    "noop",
	}, nil
}
