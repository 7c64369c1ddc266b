package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/metric"
)

func TestNewPool_NilProcessor(t *testing.T) {
	_, err := NewPool[int](1, 1, nil)
	assert.True(t, pkgerrors.IsFatal(err))
}

func TestPool_SubmitBeforeStart(t *testing.T) {
	p, err := NewPool(1, 1, func(context.Context, int) error { return nil })
	require.NoError(t, err)

	err = p.Submit(1)
	assert.ErrorIs(t, err, pkgerrors.ErrNotStarted)
}

func TestPool_DoubleStart(t *testing.T) {
	p, err := NewPool(1, 1, func(context.Context, int) error { return nil })
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Start(ctx))
	defer func() { _ = p.Stop(time.Second) }()

	err = p.Start(ctx)
	assert.ErrorIs(t, err, pkgerrors.ErrAlreadyStarted)
}

func TestPool_ProcessesSubmittedWork(t *testing.T) {
	var processed atomic.Int64
	var wg sync.WaitGroup

	p, err := NewPool(2, 10, func(_ context.Context, n int) error {
		defer wg.Done()
		processed.Add(int64(n))
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	for i := 1; i <= 5; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(i))
	}
	wg.Wait()

	assert.Equal(t, int64(15), processed.Load())

	stats := p.Stats()
	assert.Equal(t, int64(5), stats.Submitted)
	assert.Equal(t, int64(5), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)

	require.NoError(t, p.Stop(time.Second))
}

func TestPool_FullQueueRejectsTransiently(t *testing.T) {
	block := make(chan struct{})
	p, err := NewPool(1, 1, func(_ context.Context, _ int) error {
		<-block
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	// First item occupies the worker, second fills the queue.
	require.NoError(t, p.Submit(1))
	require.Eventually(t, func() bool {
		return p.Submit(2) == nil
	}, time.Second, 5*time.Millisecond)

	err = p.Submit(3)
	assert.ErrorIs(t, err, pkgerrors.ErrQueueFull)
	assert.True(t, pkgerrors.IsTransient(err))
	assert.GreaterOrEqual(t, p.Stats().Dropped, int64(1))

	close(block)
	require.NoError(t, p.Stop(time.Second))
}

func TestPool_StopDrainsQueuedWork(t *testing.T) {
	var processed atomic.Int64
	p, err := NewPool(1, 10, func(_ context.Context, _ int) error {
		time.Sleep(5 * time.Millisecond)
		processed.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	for i := 0; i < 4; i++ {
		require.NoError(t, p.Submit(i))
	}
	require.NoError(t, p.Stop(2*time.Second))

	assert.Equal(t, int64(4), processed.Load())

	// Submissions after stop are rejected, not panicking on a closed queue.
	err = p.Submit(99)
	assert.ErrorIs(t, err, pkgerrors.ErrAlreadyStopped)
}

func TestPool_StopTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	p, err := NewPool(1, 1, func(_ context.Context, _ int) error {
		<-block
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Submit(1))

	err = p.Stop(20 * time.Millisecond)
	assert.ErrorIs(t, err, ErrStopTimeout)
}

func TestPool_FailedWorkCounted(t *testing.T) {
	var wg sync.WaitGroup
	p, err := NewPool(1, 10, func(_ context.Context, n int) error {
		defer wg.Done()
		if n%2 == 0 {
			return fmt.Errorf("even numbers fail")
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	for i := 1; i <= 4; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(i))
	}
	wg.Wait()

	stats := p.Stats()
	assert.Equal(t, int64(4), stats.Processed)
	assert.Equal(t, int64(2), stats.Failed)

	require.NoError(t, p.Stop(time.Second))
}

func TestPool_MetricsRegistered(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	var wg sync.WaitGroup
	p, err := NewPool(1, 10, func(_ context.Context, _ int) error {
		defer wg.Done()
		return nil
	}, WithMetrics[int](registry, "adt_inbound"))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	wg.Add(1)
	require.NoError(t, p.Submit(1))
	wg.Wait()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := make(map[string]bool)
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	assert.True(t, found["adt_inbound_pool_submitted_total"])
	assert.True(t, found["adt_inbound_pool_processed_total"])
	assert.True(t, found["adt_inbound_pool_queue_depth"])

	require.NoError(t, p.Stop(time.Second))
}

func TestPool_ConcurrentSubmit(t *testing.T) {
	var processed atomic.Int64
	var wg sync.WaitGroup

	p, err := NewPool(4, 100, func(_ context.Context, _ int) error {
		defer wg.Done()
		processed.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	var submitters sync.WaitGroup
	for g := 0; g < 10; g++ {
		submitters.Add(1)
		go func() {
			defer submitters.Done()
			for i := 0; i < 10; i++ {
				wg.Add(1)
				if err := p.Submit(i); err != nil {
					wg.Done()
				}
			}
		}()
	}
	submitters.Wait()
	wg.Wait()

	assert.Equal(t, p.Stats().Submitted, processed.Load())
	require.NoError(t, p.Stop(time.Second))
}
