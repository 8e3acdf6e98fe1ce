package tessellate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/semaphore"

	"github.com/security-somanos/blockchain-center/geom"
	"github.com/security-somanos/blockchain-center/internal/logging"
	"github.com/security-somanos/blockchain-center/internal/observability"
)

var (
	// ErrNoWorker is returned by a Spawner that cannot start a worker.
	ErrNoWorker = errors.New("no tessellation worker available")
	// ErrWorkerTimeout is returned when a worker does not answer within
	// the runner's timeout.
	ErrWorkerTimeout = errors.New("tessellation worker timed out")
)

// Spawner starts fn on a worker of its own.
type Spawner interface {
	Spawn(fn func()) error
}

// SpawnerFunc adapts a function to Spawner.
type SpawnerFunc func(fn func()) error

func (f SpawnerFunc) Spawn(fn func()) error { return f(fn) }

// GoSpawner runs every job on a fresh goroutine.
type GoSpawner struct{}

func (GoSpawner) Spawn(fn func()) error {
	go fn()
	return nil
}

// BoundedSpawner caps the number of concurrently running workers. When
// every slot is taken Spawn fails with ErrNoWorker instead of queueing.
type BoundedSpawner struct {
	sem *semaphore.Weighted
}

// NewBoundedSpawner allows up to n workers at once.
func NewBoundedSpawner(n int64) *BoundedSpawner {
	if n < 1 {
		n = 1
	}
	return &BoundedSpawner{sem: semaphore.NewWeighted(n)}
}

func (b *BoundedSpawner) Spawn(fn func()) error {
	if !b.sem.TryAcquire(1) {
		return ErrNoWorker
	}
	go func() {
		defer b.sem.Release(1)
		fn()
	}()
	return nil
}

// Recorder receives tessellation measurements. Implementations must be
// safe for concurrent use.
type Recorder interface {
	ObserveTessellation(kind, mode string, d time.Duration)
	IncWorkerFallback(kind string)
}

// Runner dispatches tessellation to one-shot workers and falls back to
// computing on the calling goroutine when no worker can be used.
type Runner struct {
	spawner Spawner
	timeout time.Duration
	log     logging.Logger
	metrics Recorder

	edges func([]orb.Polygon, float64) Buffer
	fill  func([]orb.Polygon, float64) Buffer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSpawner replaces the default GoSpawner.
func WithSpawner(s Spawner) RunnerOption {
	return func(r *Runner) {
		if s != nil {
			r.spawner = s
		}
	}
}

// WithWorkerTimeout bounds how long a call waits for its worker. Zero
// waits until the context ends.
func WithWorkerTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// WithRunnerLogger sets the logger used for fallback warnings.
func WithRunnerLogger(l logging.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(m Recorder) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner constructs a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		spawner: GoSpawner{},
		log:     logging.Noop(),
		edges:   Edges,
		fill:    Fill,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Edges computes the outline layer of polys.
func (r *Runner) Edges(ctx context.Context, polys []orb.Polygon, densityDeg float64) (Buffer, error) {
	return r.run(ctx, KindEdge, polys, func(p []orb.Polygon) Buffer {
		return r.edges(p, densityDeg)
	})
}

// Fill computes the interior layer of polys, capped at MaxFillPoints.
func (r *Runner) Fill(ctx context.Context, polys []orb.Polygon, tileDeg float64) (Buffer, error) {
	buf, err := r.run(ctx, KindFill, polys, func(p []orb.Polygon) Buffer {
		return r.fill(p, tileDeg)
	})
	if err != nil {
		return nil, err
	}
	return Limit(buf, MaxFillPoints, nil), nil
}

type result struct {
	buf Buffer
	err error
}

func (r *Runner) run(ctx context.Context, kind Kind, polys []orb.Polygon, kernel func([]orb.Polygon) Buffer) (Buffer, error) {
	ctx, span := observability.StartSpan(ctx, "tessellate."+string(kind))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	input := geom.ClonePolygons(polys)
	done := make(chan result, 1)
	err := r.spawner.Spawn(func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("worker panic: %v", p)}
			}
		}()
		done <- result{buf: kernel(input)}
	})
	if err != nil {
		return r.fallback(ctx, kind, polys, kernel, start, err)
	}

	var timeout <-chan time.Time
	if r.timeout > 0 {
		timer := time.NewTimer(r.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-done:
		if res.err != nil {
			return r.fallback(ctx, kind, polys, kernel, start, res.err)
		}
		r.observe(kind, "worker", start)
		return res.buf, nil
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return nil, ctx.Err()
	case <-timeout:
		span.RecordError(ErrWorkerTimeout)
		r.log.Error(ctx, "tessellation worker timed out",
			logging.String("kind", string(kind)),
			logging.Duration("timeout", r.timeout),
		)
		return nil, ErrWorkerTimeout
	}
}

func (r *Runner) fallback(ctx context.Context, kind Kind, polys []orb.Polygon, kernel func([]orb.Polygon) Buffer, start time.Time, cause error) (Buffer, error) {
	r.log.Warn(ctx, "tessellation worker unavailable, computing inline",
		logging.String("kind", string(kind)),
		logging.Err(cause),
	)
	if r.metrics != nil {
		r.metrics.IncWorkerFallback(string(kind))
	}
	buf, err := runInline(kernel, polys)
	if err != nil {
		return nil, err
	}
	r.observe(kind, "inline", start)
	return buf, nil
}

func runInline(kernel func([]orb.Polygon) Buffer, polys []orb.Polygon) (buf Buffer, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tessellation failed: %v", p)
		}
	}()
	return kernel(polys), nil
}

func (r *Runner) observe(kind Kind, mode string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveTessellation(string(kind), mode, time.Since(start))
	}
}
