package image

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/domain/ports/adapter"
)

var _ adapter.ImageGenerator = (*OpenAIGenerator)(nil)

// OpenAIGenerator renders the portrait from the prompt alone; the uploaded
// photo is not sent.
type OpenAIGenerator struct {
	client openai.Client
	model  string
	size   string
}

func NewOpenAIGenerator(apiKey, model, size string, opts ...option.RequestOption) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = string(openai.ImageModelDallE3)
	}
	if size == "" {
		size = string(openai.ImageGenerateParamsSize1024x1024)
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIGenerator{
		client: openai.NewClient(opts...),
		model:  model,
		size:   size,
	}, nil
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Generate(ctx context.Context, req adapter.GenerateRequest) (*adapter.RawImage, error) {
	prompt := fmt.Sprintf("Portrait photo of an adult aged %d working as a %s. %s. Avoid: %s.",
		req.TargetAge, req.Profession, req.Prompt, req.NegativePrompt)

	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(g.model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(g.size),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", domain.ErrGeneration, err)
	}
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: openai returned no image", domain.ErrGeneration)
	}
	return &adapter.RawImage{
		Payload:  resp.Data[0].B64JSON,
		Provider: g.Name(),
		Model:    g.model,
	}, nil
}
