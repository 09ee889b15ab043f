package adapter

import "context"

// GenerationMode selects how the backend conditions on the uploaded photo.
type GenerationMode string

const (
	GenerationModeImg2Img    GenerationMode = "img2img"
	GenerationModeControlNet GenerationMode = "controlnet"
)

// SourceImage is the uploaded child photo.
type SourceImage struct {
	Filename string
	MIME     string
	Data     []byte
}

// GenerateRequest is the normalized request handed to any image backend.
type GenerateRequest struct {
	JobID          string
	Profession     string
	TargetAge      int
	Prompt         string
	NegativePrompt string
	Mode           GenerationMode
	Source         SourceImage
}

// RawImage is the backend output: a base64 payload, optionally wrapped in a
// data URL ("data:image/png;base64,...").
type RawImage struct {
	Payload  string
	Provider string
	Model    string
}

// ImageGenerator is the port for the external generation backend.
type ImageGenerator interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (*RawImage, error)
}

// Generation is a pending backend call bound to one request.
type Generation func(ctx context.Context) (*RawImage, error)

// ModelLister is implemented by backends that can report installed models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// ModelSwitcher is implemented by backends whose active model can be changed
// at runtime.
type ModelSwitcher interface {
	SetModel(ctx context.Context, name string) error
}

// GenerationProgress is the backend's view of the generation it is running.
type GenerationProgress struct {
	Progress    float64 `json:"progress"` // 0..1
	ETASeconds  float64 `json:"etaSeconds"`
	Step        int     `json:"step"`
	Steps       int     `json:"steps"`
	JobCount    int     `json:"jobCount"`
	Interrupted bool    `json:"interrupted"`
}

// ProgressReporter is implemented by backends that expose live progress.
type ProgressReporter interface {
	Progress(ctx context.Context) (*GenerationProgress, error)
}
