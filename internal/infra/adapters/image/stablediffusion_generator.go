package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/domain/ports/adapter"
)

var (
	_ adapter.ImageGenerator   = (*StableDiffusionGenerator)(nil)
	_ adapter.ModelLister      = (*StableDiffusionGenerator)(nil)
	_ adapter.ModelSwitcher    = (*StableDiffusionGenerator)(nil)
	_ adapter.ProgressReporter = (*StableDiffusionGenerator)(nil)
)

// StableDiffusionOptions mirrors the tunables of the WebUI API.
type StableDiffusionOptions struct {
	Steps             int
	CFGScale          float64
	Sampler           string
	DenoisingStrength float64
	ControlNetModel   string
	Width             int
	Height            int
}

// StableDiffusionGenerator talks to an AUTOMATIC1111-compatible WebUI
// (/sdapi/v1/img2img, /sdapi/v1/txt2img with the ControlNet extension).
type StableDiffusionGenerator struct {
	base   string // e.g., http://localhost:7860
	opts   StableDiffusionOptions
	client *http.Client
}

func NewStableDiffusionGenerator(base string, timeout time.Duration, opts StableDiffusionOptions) (*StableDiffusionGenerator, error) {
	if strings.TrimSpace(base) == "" {
		return nil, errors.New("stable diffusion url empty")
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if opts.Width <= 0 {
		opts.Width = 512
	}
	if opts.Height <= 0 {
		opts.Height = 512
	}
	return &StableDiffusionGenerator{
		base:   strings.TrimRight(base, "/"),
		opts:   opts,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (g *StableDiffusionGenerator) Name() string { return "stable_diffusion" }

type sdRequest struct {
	Prompt            string                 `json:"prompt"`
	NegativePrompt    string                 `json:"negative_prompt"`
	Steps             int                    `json:"steps"`
	Width             int                    `json:"width"`
	Height            int                    `json:"height"`
	CFGScale          float64                `json:"cfg_scale"`
	SamplerIndex      string                 `json:"sampler_index"`
	Seed              int64                  `json:"seed"`
	BatchSize         int                    `json:"batch_size"`
	InitImages        []string               `json:"init_images,omitempty"`
	DenoisingStrength float64                `json:"denoising_strength,omitempty"`
	AlwaysOnScripts   map[string]interface{} `json:"alwayson_scripts,omitempty"`
}

type controlNetUnit struct {
	InputImage    string  `json:"input_image"`
	Module        string  `json:"module"`
	Model         string  `json:"model"`
	Weight        float64 `json:"weight"`
	GuidanceStart float64 `json:"guidance_start"`
	GuidanceEnd   float64 `json:"guidance_end"`
}

func (g *StableDiffusionGenerator) Generate(ctx context.Context, req adapter.GenerateRequest) (*adapter.RawImage, error) {
	if len(req.Source.Data) == 0 {
		return nil, fmt.Errorf("%w: source image is empty", domain.ErrInvalidArgument)
	}
	src := base64.StdEncoding.EncodeToString(req.Source.Data)
	body := sdRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Steps:          g.opts.Steps,
		Width:          g.opts.Width,
		Height:         g.opts.Height,
		CFGScale:       g.opts.CFGScale,
		SamplerIndex:   g.opts.Sampler,
		Seed:           -1,
		BatchSize:      1,
	}

	var path string
	switch req.Mode {
	case adapter.GenerationModeControlNet:
		path = "/sdapi/v1/txt2img"
		body.AlwaysOnScripts = map[string]interface{}{
			"ControlNet": map[string]interface{}{
				"args": []controlNetUnit{{
					InputImage:  src,
					Module:      "depth",
					Model:       g.opts.ControlNetModel,
					Weight:      1.0,
					GuidanceEnd: 1.0,
				}},
			},
		}
	case adapter.GenerationModeImg2Img, "":
		path = "/sdapi/v1/img2img"
		body.InitImages = []string{src}
		body.DenoisingStrength = g.opts.DenoisingStrength
	default:
		return nil, fmt.Errorf("%w: unsupported mode %q", domain.ErrInvalidArgument, req.Mode)
	}

	var out struct {
		Images []string `json:"images"`
	}
	if err := g.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	if len(out.Images) == 0 || out.Images[0] == "" {
		return nil, fmt.Errorf("%w: no images in response", domain.ErrGeneration)
	}
	return &adapter.RawImage{
		Payload:  "data:image/png;base64," + out.Images[0],
		Provider: g.Name(),
		Model:    string(req.Mode),
	}, nil
}

// ListModels returns the checkpoint names installed in the WebUI.
func (g *StableDiffusionGenerator) ListModels(ctx context.Context) ([]string, error) {
	var models []struct {
		ModelName string `json:"model_name"`
	}
	if err := g.do(ctx, http.MethodGet, "/sdapi/v1/sd-models", nil, &models); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(models))
	for _, m := range models {
		if m.ModelName != "" {
			out = append(out, m.ModelName)
		}
	}
	return out, nil
}

// SetModel switches the WebUI's active checkpoint.
func (g *StableDiffusionGenerator) SetModel(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: model name is empty", domain.ErrInvalidArgument)
	}
	body := map[string]string{"sd_model_checkpoint": name}
	return g.do(ctx, http.MethodPost, "/sdapi/v1/options", body, nil)
}

type sdProgress struct {
	Progress    float64 `json:"progress"`
	ETARelative float64 `json:"eta_relative"`
	State       struct {
		Interrupted   bool `json:"interrupted"`
		JobCount      int  `json:"job_count"`
		SamplingStep  int  `json:"sampling_step"`
		SamplingSteps int  `json:"sampling_steps"`
	} `json:"state"`
}

// Progress reports the WebUI's current generation progress.
func (g *StableDiffusionGenerator) Progress(ctx context.Context) (*adapter.GenerationProgress, error) {
	var p sdProgress
	if err := g.do(ctx, http.MethodGet, "/sdapi/v1/progress?skip_current_image=true", nil, &p); err != nil {
		return nil, err
	}
	return &adapter.GenerationProgress{
		Progress:    p.Progress,
		ETASeconds:  p.ETARelative,
		Step:        p.State.SamplingStep,
		Steps:       p.State.SamplingSteps,
		JobCount:    p.State.JobCount,
		Interrupted: p.State.Interrupted,
	}, nil
}

func (g *StableDiffusionGenerator) do(ctx context.Context, method, path string, in, out interface{}) error {
	var rdr io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base+path, rdr)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: stable diffusion: %v", domain.ErrGeneration, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: stable diffusion http %d: %s", domain.ErrGeneration, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: invalid response format: %v", domain.ErrGeneration, err)
	}
	return nil
}
