//go:build !integration

package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/domain/model"
	"future-self-ai/internal/domain/ports/adapter"
	"future-self-ai/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
)

// memJobRepo is an in-memory JobRepository. Values are cloned on the way in
// and out so tests observe the same isolation the Postgres repo gives.
type memJobRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Job

	findByIDCalls int64
	// afterFind runs once FindByID has read the row, outside the lock.
	afterFind func(id string)

	createErr error // injected failures
	saveErr   error
	findErr   error
	deleteErr error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{store: make(map[string]*model.Job)}
}

var _ repository.JobRepository = (*memJobRepo)(nil)

func (m *memJobRepo) Create(_ context.Context, _ repository.Tx, job *model.Job) (*model.Job, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[job.ID]; ok {
		return nil, domain.ErrAlreadyExists
	}
	m.store[job.ID] = job.Clone()
	return job.Clone(), nil
}

func (m *memJobRepo) Save(_ context.Context, _ repository.Tx, job *model.Job) (*model.Job, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[job.ID] = job.Clone()
	return job.Clone(), nil
}

func (m *memJobRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Job, error) {
	atomic.AddInt64(&m.findByIDCalls, 1)
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.RLock()
	j, ok := m.store[id]
	if ok {
		j = j.Clone()
	}
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	if m.afterFind != nil {
		m.afterFind(id)
	}
	return j, nil
}

func (m *memJobRepo) Finalize(_ context.Context, _ repository.Tx, job *model.Job) (*model.Job, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[job.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if cur.Status != model.JobStatusProcessing {
		return nil, domain.ErrJobFinalized
	}
	m.store[job.ID] = job.Clone()
	return job.Clone(), nil
}

func (m *memJobRepo) findCalls() int64 { return atomic.LoadInt64(&m.findByIDCalls) }

func (m *memJobRepo) selectSorted(pred func(*model.Job) bool) []*model.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Job, 0, len(m.store))
	for _, j := range m.store {
		if pred(j) {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}

func (m *memJobRepo) FindAllOrderByCreatedDesc(context.Context, repository.Tx) ([]*model.Job, error) {
	return m.selectSorted(func(*model.Job) bool { return true }), nil
}

func (m *memJobRepo) FindByStatusOrderByCreatedDesc(_ context.Context, _ repository.Tx, status model.JobStatus) ([]*model.Job, error) {
	return m.selectSorted(func(j *model.Job) bool { return j.Status == status }), nil
}

func (m *memJobRepo) FindByProfessionOrderByCreatedDesc(_ context.Context, _ repository.Tx, profession string) ([]*model.Job, error) {
	return m.selectSorted(func(j *model.Job) bool { return strings.EqualFold(j.Profession, profession) }), nil
}

func (m *memJobRepo) FindCreatedBefore(_ context.Context, _ repository.Tx, cutoff time.Time) ([]*model.Job, error) {
	return m.selectSorted(func(j *model.Job) bool { return j.CreatedAt.Before(cutoff) }), nil
}

func (m *memJobRepo) DeleteAll(_ context.Context, _ repository.Tx, ids []string) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := m.store[id]; ok {
			delete(m.store, id)
			n++
		}
	}
	return n, nil
}

func (m *memJobRepo) Count(context.Context, repository.Tx) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.store)), nil
}

func (m *memJobRepo) CountByStatus(_ context.Context, _ repository.Tx, status model.JobStatus) (int64, error) {
	return int64(len(m.selectSorted(func(j *model.Job) bool { return j.Status == status }))), nil
}

func (m *memJobRepo) AverageProcessingTime(context.Context, repository.Tx) (*float64, error) {
	var sum, n int64
	for _, j := range m.selectSorted(func(j *model.Job) bool { return j.Status == model.JobStatusCompleted }) {
		if j.ProcessingTimeSeconds != nil && *j.ProcessingTimeSeconds > 0 {
			sum += *j.ProcessingTimeSeconds
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	avg := float64(sum) / float64(n)
	return &avg, nil
}

func (m *memJobRepo) ProfessionStatistics(context.Context, repository.Tx) ([]model.ProfessionCount, error) {
	counts := map[string]int64{}
	for _, j := range m.selectSorted(func(*model.Job) bool { return true }) {
		counts[j.Profession]++
	}
	out := make([]model.ProfessionCount, 0, len(counts))
	for p, c := range counts {
		out = append(out, model.ProfessionCount{Profession: p, Count: c})
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Count == out[k].Count {
			return out[i].Profession < out[k].Profession
		}
		return out[i].Count > out[k].Count
	})
	return out, nil
}

// put seeds a job directly, bypassing the tracker.
func (m *memJobRepo) put(job *model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[job.ID] = job.Clone()
}

// txRecorder runs fn without a real transaction and counts calls.
type txRecorder struct {
	calls int
}

func (t *txRecorder) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	t.calls++
	return fn(ctx, repository.NoTX)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// seqIDs hands out deterministic ids, optionally repeating the first one.
func seqIDs(ids ...string) func() string {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[i%len(ids)]
		i++
		return id
	}
}

// mockGenerator is a func-field ImageGenerator.
type mockGenerator struct {
	name       string
	GenerateFn func(ctx context.Context, req adapter.GenerateRequest) (*adapter.RawImage, error)
}

func (g *mockGenerator) Name() string { return g.name }

func (g *mockGenerator) Generate(ctx context.Context, req adapter.GenerateRequest) (*adapter.RawImage, error) {
	if g.GenerateFn != nil {
		return g.GenerateFn(ctx, req)
	}
	return &adapter.RawImage{Payload: "aGVsbG8=", Provider: g.name}, nil
}

// listingGenerator also reports models.
type listingGenerator struct {
	mockGenerator
	models []string
	err    error
}

func (g *listingGenerator) ListModels(context.Context) ([]string, error) { return g.models, g.err }

// switchingGenerator can change models and report progress.
type switchingGenerator struct {
	mockGenerator
	SetModelFn func(ctx context.Context, name string) error
	ProgressFn func(ctx context.Context) (*adapter.GenerationProgress, error)
}

func (g *switchingGenerator) SetModel(ctx context.Context, name string) error {
	return g.SetModelFn(ctx, name)
}

func (g *switchingGenerator) Progress(ctx context.Context) (*adapter.GenerationProgress, error) {
	return g.ProgressFn(ctx)
}

// captureDispatcher records dispatched generations and runs nothing by itself.
type captureDispatcher struct {
	mu        sync.Mutex
	jobIDs    []string
	providers []string
	gens      []adapter.Generation
	err       error
	onErr     func(jobID string)
}

func (d *captureDispatcher) Dispatch(jobID, provider string, gen adapter.Generation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		if d.onErr != nil {
			d.onErr(jobID)
		}
		return d.err
	}
	d.jobIDs = append(d.jobIDs, jobID)
	d.providers = append(d.providers, provider)
	d.gens = append(d.gens, gen)
	return nil
}

// mockArtifacts records deletes.
type mockArtifacts struct {
	mu      sync.Mutex
	deleted []string
	delErr  error
}

func (a *mockArtifacts) Persist(_ context.Context, _ *adapter.RawImage, jobID string) (*adapter.Artifact, error) {
	name := "generated_" + jobID + ".png"
	return &adapter.Artifact{Filename: name, URL: "/api/images/" + name, Size: 5}, nil
}

func (a *mockArtifacts) Delete(_ context.Context, filename string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.delErr != nil {
		return a.delErr
	}
	a.deleted = append(a.deleted, filename)
	return nil
}
