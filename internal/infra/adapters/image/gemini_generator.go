package image

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/domain/ports/adapter"
)

var _ adapter.ImageGenerator = (*GeminiGenerator)(nil)

// GeminiGenerator edits the uploaded photo with a Gemini image model.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, baseURL, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiGenerator{client: c, model: model}, nil
}

func (g *GeminiGenerator) Name() string { return "gemini" }

func (g *GeminiGenerator) Generate(ctx context.Context, req adapter.GenerateRequest) (*adapter.RawImage, error) {
	mime := req.Source.MIME
	if mime == "" {
		mime = "image/png"
	}
	instruction := fmt.Sprintf(
		"Transform the child in this photo into the same person as an adult aged %d working as a %s. "+
			"Keep the facial identity recognisable. Scene: %s. Avoid: %s.",
		req.TargetAge, req.Profession, req.Prompt, req.NegativePrompt,
	)
	parts := []*genai.Part{{Text: instruction}}
	if len(req.Source.Data) > 0 {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: req.Source.Data}})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %v", domain.ErrGeneration, err)
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
				out := p.InlineData.MIMEType
				if out == "" {
					out = "image/png"
				}
				return &adapter.RawImage{
					Payload:  "data:" + out + ";base64," + base64.StdEncoding.EncodeToString(p.InlineData.Data),
					Provider: g.Name(),
					Model:    g.model,
				}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: gemini returned no image", domain.ErrGeneration)
}
