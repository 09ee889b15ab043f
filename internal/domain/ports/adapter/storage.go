package adapter

import "context"

// Artifact references a persisted generated image.
type Artifact struct {
	Filename string
	URL      string
	Size     int64
}

// ArtifactStore persists generated images. Failures wrap domain.ErrStorage.
type ArtifactStore interface {
	Persist(ctx context.Context, raw *RawImage, jobID string) (*Artifact, error)
	Delete(ctx context.Context, filename string) error
}
