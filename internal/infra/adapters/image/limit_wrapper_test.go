//go:build !integration

package image

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/domain/ports/adapter"
)

type slowGenerator struct {
	running, peak int32
}

func (s *slowGenerator) Name() string { return "slow" }

func (s *slowGenerator) Generate(ctx context.Context, req adapter.GenerateRequest) (*adapter.RawImage, error) {
	n := atomic.AddInt32(&s.running, 1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	atomic.AddInt32(&s.running, -1)
	return &adapter.RawImage{Payload: noopPNG, Provider: "slow"}, nil
}

type controllableGenerator struct {
	slowGenerator
	model string
}

func (c *controllableGenerator) SetModel(ctx context.Context, name string) error {
	c.model = name
	return nil
}

func (c *controllableGenerator) Progress(ctx context.Context) (*adapter.GenerationProgress, error) {
	return &adapter.GenerationProgress{Progress: 0.5, Step: 10, Steps: 20}, nil
}

func TestLimitedGenerator(t *testing.T) {
	t.Run("caps concurrent backend calls", func(t *testing.T) {
		inner := &slowGenerator{}
		g := NewLimitedGenerator(inner, 2)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = g.Generate(context.Background(), adapter.GenerateRequest{})
			}()
		}
		wg.Wait()

		if inner.peak > 2 {
			t.Errorf("expected at most 2 concurrent calls, saw %d", inner.peak)
		}
		if g.Name() != "slow" {
			t.Errorf("name should pass through, got %s", g.Name())
		}
	})

	t.Run("non-positive limit returns the inner generator", func(t *testing.T) {
		inner := &slowGenerator{}
		if NewLimitedGenerator(inner, 0) != adapter.ImageGenerator(inner) {
			t.Error("expected inner generator unchanged")
		}
	})

	t.Run("model switching and progress reach a capable backend", func(t *testing.T) {
		// Arrange
		inner := &controllableGenerator{}
		g := NewLimitedGenerator(inner, 1).(*limitedGenerator)

		// Act
		err := g.SetModel(context.Background(), "sdxl")
		p, perr := g.Progress(context.Background())

		// Assert
		if err != nil || inner.model != "sdxl" {
			t.Errorf("expected model sdxl, got %q (%v)", inner.model, err)
		}
		if perr != nil || p.Step != 10 || p.Steps != 20 {
			t.Errorf("unexpected progress %+v (%v)", p, perr)
		}
	})

	t.Run("model switching and progress are unsupported on other backends", func(t *testing.T) {
		g := NewLimitedGenerator(&slowGenerator{}, 1).(*limitedGenerator)

		if err := g.SetModel(context.Background(), "sdxl"); !errors.Is(err, domain.ErrUnsupported) {
			t.Errorf("expected ErrUnsupported, got %v", err)
		}
		if _, err := g.Progress(context.Background()); !errors.Is(err, domain.ErrUnsupported) {
			t.Errorf("expected ErrUnsupported, got %v", err)
		}
	})

	t.Run("waiting for a slot respects cancellation", func(t *testing.T) {
		g := NewLimitedGenerator(&slowGenerator{}, 1).(*limitedGenerator)
		g.sem <- struct{}{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := g.Generate(ctx, adapter.GenerateRequest{}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestNoopGenerator(t *testing.T) {
	raw, err := NewNoopGenerator(0).Generate(context.Background(), adapter.GenerateRequest{})
	if err != nil || raw.Provider != "noop" || raw.Payload != "data:image/png;base64,"+noopPNG {
		t.Fatalf("unexpected result %+v (%v)", raw, err)
	}
}
