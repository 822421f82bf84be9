package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Submit(t *testing.T) {
	p := New(4)
	defer p.Close()

	var counter atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(context.Background(), func() {
			defer wg.Done()
			counter.Add(1)
		}))
	}
	wg.Wait()
	assert.Equal(t, int64(100), counter.Load())
}

func TestPool_WorkerCap(t *testing.T) {
	p := New(3, WithQueueDepth(100))
	defer p.Close()

	blocker := make(chan struct{})
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(context.Background(), func() { <-blocker }))
	}
	assert.LessOrEqual(t, p.Running(), 3)
	assert.Equal(t, 3, p.Cap())
	close(blocker)
}

func TestPool_CloseDrainsQueue(t *testing.T) {
	p := New(2)
	var counter atomic.Int64
	for i := 0; i < 8; i++ {
		require.NoError(t, p.Submit(context.Background(), func() {
			time.Sleep(time.Millisecond)
			counter.Add(1)
		}))
	}
	p.Close()
	assert.Equal(t, int64(8), counter.Load())
	assert.Equal(t, int64(8), p.Completed())
	assert.Equal(t, 0, p.Running())

	assert.ErrorIs(t, p.Submit(context.Background(), func() {}), ErrClosed)
	p.Close()
}

func TestPool_Backpressure(t *testing.T) {
	p := New(1, WithQueueDepth(1))
	defer p.Close()

	blocker := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func() {
		close(started)
		<-blocker
	}))
	<-started
	require.NoError(t, p.Submit(context.Background(), func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(blocker)
}

func TestPool_CancelledContext(t *testing.T) {
	p := New(1)
	defer p.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Submit(ctx, func() {}), context.Canceled)
}

func TestPool_PanicRecovery(t *testing.T) {
	var recovered atomic.Value
	p := New(1, WithPanicHandler(func(r any) { recovered.Store(r) }))

	require.NoError(t, p.Submit(context.Background(), func() { panic("boom") }))
	var ran atomic.Bool
	require.NoError(t, p.Submit(context.Background(), func() { ran.Store(true) }))
	p.Close()

	assert.True(t, ran.Load(), "worker must survive a panicking task")
	assert.Equal(t, int64(1), p.Panics())
	assert.Equal(t, "boom", recovered.Load())
}

func TestPool_ConcurrentSubmitAndClose(t *testing.T) {
	p := New(4)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := p.Submit(context.Background(), func() {}); err != nil {
					assert.ErrorIs(t, err, ErrClosed)
					return
				}
			}
		}()
	}
	time.Sleep(time.Millisecond)
	p.Close()
	wg.Wait()
}
