//go:build !integration

package worker

import (
	"context"
	"errors"
	"sync"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type finalCall struct {
	Kind     string // complete|fail
	JobID    string
	ImageURL string
	Filename string
	Message  string
	Extra    map[string]string
}

// recordingFinalizer records every finalization and enforces single finalization.
type recordingFinalizer struct {
	mu       sync.Mutex
	calls    []finalCall
	done     map[string]bool
	failWith error
	signal   chan struct{}
}

func newRecordingFinalizer() *recordingFinalizer {
	return &recordingFinalizer{done: map[string]bool{}, signal: make(chan struct{}, 64)}
}

func (f *recordingFinalizer) record(c finalCall) error {
	f.mu.Lock()
	defer func() {
		f.mu.Unlock()
		f.signal <- struct{}{}
	}()
	if f.failWith != nil {
		return f.failWith
	}
	if f.done[c.JobID] {
		return domain.ErrJobFinalized
	}
	f.done[c.JobID] = true
	f.calls = append(f.calls, c)
	return nil
}

func (f *recordingFinalizer) CompleteJob(ctx context.Context, id, imageURL, generatedFilename string, extra map[string]string) error {
	return f.record(finalCall{Kind: "complete", JobID: id, ImageURL: imageURL, Filename: generatedFilename, Extra: extra})
}

func (f *recordingFinalizer) FailJob(ctx context.Context, id, errorMessage string) error {
	return f.record(finalCall{Kind: "fail", JobID: id, Message: errorMessage})
}

func (f *recordingFinalizer) snapshot() []finalCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]finalCall(nil), f.calls...)
}

// mockArtifactStore mocks the artifact storage port.
type mockArtifactStore struct {
	PersistFunc func(ctx context.Context, raw *adapter.RawImage, jobID string) (*adapter.Artifact, error)
	DeleteFunc  func(ctx context.Context, filename string) error
}

func (m *mockArtifactStore) Persist(ctx context.Context, raw *adapter.RawImage, jobID string) (*adapter.Artifact, error) {
	return m.PersistFunc(ctx, raw, jobID)
}

func (m *mockArtifactStore) Delete(ctx context.Context, filename string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, filename)
}

func okStore() *mockArtifactStore {
	return &mockArtifactStore{
		PersistFunc: func(ctx context.Context, raw *adapter.RawImage, jobID string) (*adapter.Artifact, error) {
			name := "generated_" + jobID + ".png"
			return &adapter.Artifact{Filename: name, URL: "/api/images/" + name, Size: 3}, nil
		},
	}
}

type mockNotifier struct {
	mu      sync.Mutex
	reasons map[string]string
	err     error
}

func (n *mockNotifier) NotifyFailure(ctx context.Context, jobID, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.reasons == nil {
		n.reasons = map[string]string{}
	}
	n.reasons[jobID] = reason
	return n.err
}

var errBackend = errors.New("backend unreachable")
