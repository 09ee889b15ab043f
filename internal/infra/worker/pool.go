// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"

	"future-self-ai/internal/domain"
	"future-self-ai/internal/infra/metrics"

	"github.com/rs/zerolog"
)

type Task func(ctx context.Context) error

var ErrPoolClosed = errors.New("worker pool closed")

// PanicError carries a value recovered from a task.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("task panicked: %v", e.Value) }

// Pool supervises one goroutine per submitted task. At most `workers` tasks
// run at once; up to `queue` more wait for a slot. Submit never blocks.
type Pool struct {
	slots chan struct{}
	limit int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	pending map[string]struct{}

	log *zerolog.Logger
}

func NewPool(workers, queue int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queue < 0 {
		queue = 0
	}
	l := logger.With().Str("component", "WorkerPool").Logger()
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		slots:   make(chan struct{}, workers),
		limit:   workers + queue,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]struct{}),
		log:     &l,
	}
}

// Submit schedules task under key. Keys identify the task in logs and must be
// unique among pending tasks.
func (p *Pool) Submit(key string, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if _, dup := p.pending[key]; dup {
		p.mu.Unlock()
		return fmt.Errorf("%w: task %s already pending", domain.ErrAlreadyExists, key)
	}
	if len(p.pending) >= p.limit {
		p.mu.Unlock()
		return domain.ErrQueueFull
	}
	p.pending[key] = struct{}{}
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(key, task)
	return nil
}

func (p *Pool) run(key string, task Task) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		delete(p.pending, key)
		p.mu.Unlock()
	}()

	select {
	case p.slots <- struct{}{}:
	case <-p.ctx.Done():
		p.log.Warn().Str("task", key).Msg("pool stopped before task started")
		return
	}
	defer func() { <-p.slots }()

	if err := safeRun(p.ctx, task); err != nil {
		var pe *PanicError
		if errors.As(err, &pe) {
			p.log.Error().Str("task", key).Interface("panic", pe.Value).Bytes("stack", pe.Stack).Msg("task panicked")
			return
		}
		p.log.Error().Err(err).Str("task", key).Msg("task error")
	}
}

func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return task(ctx)
}

// Pending returns the keys of tasks that are queued or running.
func (p *Pool) Pending() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.pending))
	for k := range p.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Shutdown stops accepting tasks and waits for the pending ones. When ctx ends
// first, the remaining tasks are logged as orphaned, their context is
// cancelled and ctx.Err() is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		left := p.Pending()
		for _, k := range left {
			metrics.IncJobOrphaned("shutdown")
			p.log.Warn().Str("task", k).Msg("task still running at shutdown, orphaned")
		}
		p.cancel()
		return ctx.Err()
	}
}
