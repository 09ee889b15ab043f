package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/domain/ports/adapter"
)

const generatedPrefix = "generated_"

var _ adapter.ArtifactStore = (*FileStore)(nil)

// FileStore writes generated portraits under a local directory and exposes
// them below publicPath.
type FileStore struct {
	basePath   string
	publicPath string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath, publicPath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	publicPath = "/" + strings.Trim(strings.TrimSpace(publicPath), "/")
	return &FileStore{basePath: basePath, publicPath: publicPath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string { return s.basePath }

// ArtifactName is the file name used for a job's generated image.
func ArtifactName(jobID string) string { return generatedPrefix + jobID + ".png" }

// Persist decodes the base64 payload, optionally wrapped in a data URL, and
// writes it as generated_<jobID>.png.
func (s *FileStore) Persist(ctx context.Context, raw *adapter.RawImage, jobID string) (*adapter.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty image", domain.ErrStorage)
	}
	data, err := DecodePayload(raw.Payload)
	if err != nil {
		return nil, err
	}
	name, err := sanitizeKey(ArtifactName(jobID))
	if err != nil || strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: invalid job id %q", domain.ErrStorage, jobID)
	}

	full := filepath.Join(s.basePath, name)
	tmp, err := os.CreateTemp(s.basePath, ".tmp-"+name+"-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("%w: write file: %v", domain.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	if err := os.Chmod(full, 0o644); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	return &adapter.Artifact{
		Filename: name,
		URL:      path.Join(s.publicPath, name),
		Size:     int64(len(data)),
	}, nil
}

// Delete removes a stored artifact. A missing file is not an error.
func (s *FileStore) Delete(ctx context.Context, filename string) error {
	full, err := s.Path(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

// Path resolves filename to a location inside the store. Anything that would
// leave the base directory or names a nested path is rejected.
func (s *FileStore) Path(filename string) (string, error) {
	name, err := sanitizeKey(filename)
	if err != nil || strings.Contains(name, "/") || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: invalid filename", domain.ErrInvalidArgument)
	}
	return filepath.Join(s.basePath, name), nil
}

// GarbageCollect removes generated images last modified before cutoff.
// Individual deletion failures do not stop the pass; the first is returned.
func (s *FileStore) GarbageCollect(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return 0, fmt.Errorf("%w: list artifacts: %v", domain.ErrStorage, err)
	}
	var (
		removed  int
		firstErr error
	)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() || !strings.HasPrefix(e.Name(), generatedPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.basePath, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %v", domain.ErrStorage, err)
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}

// DecodePayload strips an optional data URL header and decodes the base64 body.
func DecodePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		i := strings.IndexByte(payload, ',')
		if i < 0 {
			return nil, fmt.Errorf("%w: malformed data url", domain.ErrStorage)
		}
		payload = payload[i+1:]
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: empty image", domain.ErrStorage)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", domain.ErrStorage, err)
	}
	return data, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
