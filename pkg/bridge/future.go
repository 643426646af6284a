package bridge

import (
	"context"
	"sync/atomic"
)

// Future is the one-shot completion signal for a submitted task. It is the
// single primitive both bridge entry points share: Run blocks the calling
// goroutine on it, Submit hands it to the caller to await.
//
// A Future completes exactly once. Completion crosses the execution-context
// boundary via the done channel; the value and error fields are written
// before the channel closes and read only after it is observed closed, so no
// further synchronization is needed.
type Future struct {
	done  chan struct{}
	value any
	err   error

	// completed guards against double completion.
	completed atomic.Bool
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// complete publishes the result. Safe to call at most once per cause; later
// calls are ignored so a task finishing after teardown cannot clobber the
// teardown error.
func (f *Future) complete(value any, err error) {
	if !f.completed.CompareAndSwap(false, true) {
		return
	}
	f.value = value
	f.err = err
	close(f.done)
}

// Done returns a channel closed when the task completes. Use it to await the
// future from a select loop without blocking.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task completes or ctx is cancelled. On cancellation
// the task keeps running on the execution context and its result is
// discarded; cancellation of the task itself is driven by the context passed
// at submission, not the one passed here.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryResult returns the result if the future already completed.
func (f *Future) TryResult() (value any, err error, ok bool) {
	select {
	case <-f.done:
		return f.value, f.err, true
	default:
		return nil, nil, false
	}
}
