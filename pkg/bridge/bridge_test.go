package bridge_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratofs/stratofs/pkg/bridge"
	"github.com/stratofs/stratofs/pkg/operator"
)

func TestRun_ReturnsValue(t *testing.T) {
	b := bridge.New()
	defer b.Close(context.Background())

	value, err := b.Run(context.Background(), func(ctx context.Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestRun_PropagatesTaskError(t *testing.T) {
	b := bridge.New()
	defer b.Close(context.Background())

	boom := errors.New("boom")
	_, err := b.Run(context.Background(), func(ctx context.Context) (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestSubmit_FutureResolves(t *testing.T) {
	b := bridge.New()
	defer b.Close(context.Background())

	fut, err := b.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return "done", nil
	})
	require.NoError(t, err)

	select {
	case <-fut.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("future never resolved")
	}

	value, err, ok := fut.TryResult()
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, "done", value)
}

func TestSubmit_TasksInterleave(t *testing.T) {
	b := bridge.New()
	defer b.Close(context.Background())

	// A blocked task must not stall an independent one.
	release := make(chan struct{})
	blocked, err := b.Submit(context.Background(), func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, err)

	value, err := b.Run(context.Background(), func(ctx context.Context) (any, error) {
		return "fast", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fast", value)

	close(release)
	_, err = blocked.Wait(context.Background())
	require.NoError(t, err)
}

func TestSubmit_AfterCloseFails(t *testing.T) {
	b := bridge.New()
	require.NoError(t, b.Close(context.Background()))

	_, err := b.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, operator.ErrBridgeClosed)
}

func TestClose_DrainsInFlightTasks(t *testing.T) {
	b := bridge.New(bridge.WithGracePeriod(10 * time.Second))

	var finished atomic.Bool
	fut, err := b.Submit(context.Background(), func(ctx context.Context) (any, error) {
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
		return nil, nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Close(context.Background()))
	assert.True(t, finished.Load(), "close must wait for in-flight work")

	_, err = fut.Wait(context.Background())
	require.NoError(t, err)
}

func TestClose_GraceExpiryCancelsTasks(t *testing.T) {
	b := bridge.New(bridge.WithGracePeriod(50 * time.Millisecond))

	started := make(chan struct{})
	fut, err := b.Submit(context.Background(), func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)
	<-started

	require.NoError(t, b.Close(context.Background()))

	_, err, ok := fut.TryResult()
	require.True(t, ok, "task must have completed after cancellation")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClose_Idempotent(t *testing.T) {
	b := bridge.New()
	require.NoError(t, b.Close(context.Background()))
	require.NoError(t, b.Close(context.Background()))
}

func TestSubmit_CallerCancellationPropagates(t *testing.T) {
	b := bridge.New()
	defer b.Close(context.Background())

	callerCtx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	fut, err := b.Submit(callerCtx, func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)

	<-started
	cancel()

	_, err = fut.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWait_AbandonLeavesTaskRunning(t *testing.T) {
	b := bridge.New()
	defer b.Close(context.Background())

	release := make(chan struct{})
	var ran atomic.Bool

	fut, err := b.Submit(context.Background(), func(ctx context.Context) (any, error) {
		<-release
		ran.Store(true)
		return "late", nil
	})
	require.NoError(t, err)

	// Abandon the wait; the task itself must keep running.
	waitCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = fut.Wait(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	value, err := fut.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late", value)
	assert.True(t, ran.Load())
}

func TestRun_ConcurrentSubmitters(t *testing.T) {
	b := bridge.New()
	defer b.Close(context.Background())

	const goroutines = 64
	var wg sync.WaitGroup
	var sum atomic.Int64

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value, err := b.Run(context.Background(), func(ctx context.Context) (any, error) {
				return i, nil
			})
			require.NoError(t, err)
			sum.Add(int64(value.(int)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*(goroutines-1)/2), sum.Load())
}

func TestSubmit_RacingCloseNeverPanics(t *testing.T) {
	// Submissions racing teardown must either land or fail with
	// ErrBridgeClosed; the queue send must never hit a closed channel.
	for round := 0; round < 50; round++ {
		b := bridge.New()

		const submitters = 8
		var wg sync.WaitGroup
		start := make(chan struct{})

		for i := 0; i < submitters; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < 20; j++ {
					fut, err := b.Submit(context.Background(), func(ctx context.Context) (any, error) {
						return nil, nil
					})
					if err != nil {
						assert.ErrorIs(t, err, operator.ErrBridgeClosed)
						return
					}
					_, err = fut.Wait(context.Background())
					require.NoError(t, err)
				}
			}()
		}

		close(start)
		require.NoError(t, b.Close(context.Background()))
		wg.Wait()
	}
}

func TestRun_TaskPanicBecomesError(t *testing.T) {
	b := bridge.New()
	defer b.Close(context.Background())

	_, err := b.Run(context.Background(), func(ctx context.Context) (any, error) {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}
