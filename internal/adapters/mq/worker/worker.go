// Package worker builds per-game profile partitions concurrently.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/tvi/internal/adapters/mq/queue"
	"github.com/okian/tvi/internal/domain/profile"
	"github.com/okian/tvi/pkg/logger"
	"github.com/okian/tvi/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Builder turns one game's events into sparse profiles.
type Builder interface {
	Build(ctx context.Context, p profile.Partition) ([]profile.Profile, error)
}

// Queue defines how workers receive partitions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Task
}

// Result is the outcome of one partition. Err is set when the build failed.
type Result struct {
	Index    int
	GameID   string
	Profiles []profile.Profile
	Err      error
}

// Worker processes partitions until its queue is drained.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current partition.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	builder Builder
	results chan<- Result
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, b Builder, results chan<- Result, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		builder:  b,
		results:  results,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t, ok := <-tasks:
			if !ok {
				return
			}
			res := w.process(ctx, t)
			select {
			case w.results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, t queue.Task) Result {
	start := time.Now()
	profiles, err := w.builder.Build(ctx, t.Partition)
	if err != nil {
		metrics.RecordErrorByComponent("worker", "build_error")
		w.logger.Error(ctx, "partition build failed",
			logger.String("gameID", t.Partition.GameID),
			logger.Error(err),
		)
		return Result{Index: t.Index, GameID: t.Partition.GameID, Err: fmt.Errorf("game %s: %w", t.Partition.GameID, err)}
	}

	metrics.RecordPartitionProcessed(len(t.Partition.Events))
	w.logger.Debug(ctx, "partition built",
		logger.String("gameID", t.Partition.GameID),
		logger.Int("events", len(t.Partition.Events)),
		logger.Int("profiles", len(profiles)),
		logger.Duration("took", time.Since(start)),
	)
	return Result{Index: t.Index, GameID: t.Partition.GameID, Profiles: profiles}
}

// Pool manages multiple workers sharing one queue and one result stream.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	results chan Result

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count uses one worker per CPU.
func NewPool(workerCount int, q Queue, b Builder) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		results: make(chan Result, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, b, pool.results, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers. Results is closed once every worker has exited.
func (p *Pool) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *InMemoryWorker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}
	go func() {
		wg.Wait()
		close(p.results)
		metrics.UpdateWorkerCount(0)
	}()
}

// Results streams partition results in completion order.
func (p *Pool) Results() <-chan Result { return p.results }

// Shutdown closes the queue and waits for workers to exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
