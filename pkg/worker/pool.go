// Package worker provides a generic bounded worker pool. Channel runtimes
// use one pool per channel to process inbound payloads concurrently while
// keeping a hard cap on in-flight work.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/metric"
)

// ErrStopTimeout indicates workers were still busy when the stop deadline
// passed.
var ErrStopTimeout = errors.New("timeout waiting for workers to stop")

// Pool processes work items of type T on a fixed set of workers backed by a
// bounded queue. Submit never blocks: a full queue rejects the item with
// ErrQueueFull so the caller decides whether to shed or retry.
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error

	workChan chan T
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	metrics *poolMetrics
}

type poolMetrics struct {
	queueDepth     prometheus.Gauge
	submitted      prometheus.Counter
	processed      prometheus.Counter
	failed         prometheus.Counter
	dropped        prometheus.Counter
	processingTime *prometheus.HistogramVec
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithMetrics registers the pool's collectors with a registrar under the
// given component name. Metric names are prefixed with the component.
func WithMetrics[T any](registrar metric.Registrar, component string) Option[T] {
	return func(p *Pool[T]) {
		if registrar == nil || component == "" {
			return
		}
		p.metrics = registerPoolMetrics(registrar, component)
	}
}

// NewPool creates a pool of workers running processor. workers and
// queueSize fall back to 1 and 100 when not positive.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) (*Pool[T], error) {
	if processor == nil {
		return nil, pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "worker.Pool", "NewPool",
			"processor function not provided")
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		workChan:  make(chan T, queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func registerPoolMetrics(registrar metric.Registrar, component string) *poolMetrics {
	m := &poolMetrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: component + "_pool_queue_depth",
			Help: "Current worker pool queue depth",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: component + "_pool_submitted_total",
			Help: "Total work items submitted",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: component + "_pool_processed_total",
			Help: "Total work items processed",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: component + "_pool_failed_total",
			Help: "Total work items that failed processing",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: component + "_pool_dropped_total",
			Help: "Total work items dropped due to a full queue",
		}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    component + "_pool_processing_duration_seconds",
			Help:    "Time spent processing work items",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"status"}),
	}

	// Registration conflicts only happen when two pools share a component
	// name; the second pool then runs without metrics.
	if err := registrar.RegisterGauge(component, component+"_pool_queue_depth", m.queueDepth); err != nil {
		return nil
	}
	_ = registrar.RegisterCounter(component, component+"_pool_submitted_total", m.submitted)
	_ = registrar.RegisterCounter(component, component+"_pool_processed_total", m.processed)
	_ = registrar.RegisterCounter(component, component+"_pool_failed_total", m.failed)
	_ = registrar.RegisterCounter(component, component+"_pool_dropped_total", m.dropped)
	_ = registrar.RegisterHistogramVec(component, component+"_pool_processing_duration_seconds", m.processingTime)
	return m
}

// Start launches the workers. ctx cancellation stops them between items.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return pkgerrors.WrapInvalid(pkgerrors.ErrAlreadyStarted, "worker.Pool", "Start",
			"pool already started")
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.started = true
	return nil
}

// Submit enqueues one work item without blocking. A full queue returns
// ErrQueueFull (transient) and drops the item.
func (p *Pool[T]) Submit(work T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return pkgerrors.WrapInvalid(pkgerrors.ErrNotStarted, "worker.Pool", "Submit",
			"pool not started")
	}
	if p.stopped {
		return pkgerrors.WrapInvalid(pkgerrors.ErrAlreadyStopped, "worker.Pool", "Submit",
			"pool stopped")
	}

	select {
	case p.workChan <- work:
		p.submitted.Add(1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
			p.metrics.queueDepth.Set(float64(len(p.workChan)))
		}
		return nil
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return pkgerrors.WrapTransient(pkgerrors.ErrQueueFull, "worker.Pool", "Submit",
			"enqueue work item")
	}
}

// Stop rejects further submissions, lets queued work drain, and waits up to
// timeout for the workers to finish.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.stopped {
		return nil
	}
	p.stopped = true
	close(p.workChan)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return pkgerrors.WrapTransient(ErrStopTimeout, "worker.Pool", "Stop",
			"wait for workers")
	}
}

// QueueDepth reports the number of items waiting to be processed.
func (p *Pool[T]) QueueDepth() int {
	return len(p.workChan)
}

// Stats returns a snapshot of pool counters.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

// PoolStats is a point-in-time view of pool activity.
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queueSize"`
	QueueDepth int   `json:"queueDepth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.workChan:
			if !ok {
				return
			}

			start := time.Now()
			err := p.processor(ctx, work)
			duration := time.Since(start)

			p.processed.Add(1)
			if err != nil {
				p.failed.Add(1)
			}

			if p.metrics != nil {
				p.metrics.processed.Inc()
				status := "success"
				if err != nil {
					p.metrics.failed.Inc()
					status = "error"
				}
				p.metrics.processingTime.WithLabelValues(status).Observe(duration.Seconds())
				p.metrics.queueDepth.Set(float64(len(p.workChan)))
			}
		}
	}
}
