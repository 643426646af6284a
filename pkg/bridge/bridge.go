// Package bridge runs backend operations on a dedicated execution context
// owned by one filesystem instance, and exposes the results both as blocking
// calls and as awaitable futures.
//
// Each Bridge owns exactly one execution context: a dispatcher goroutine fed
// by a submission queue, spawning one worker goroutine per accepted task.
// No backend I/O ever executes on a calling goroutine directly. Multiple
// callers may submit concurrently; tasks against different keys interleave
// freely, ordering between them is not defined.
//
// The two entry points are thin adapters over one submission primitive:
// Run submits and blocks the caller on the task's Future, Submit returns the
// Future for the caller to await. Completion crosses the boundary through
// the Future's one-shot channel, never through unsynchronized shared state.
//
// Teardown: Close stops intake (later submissions fail with
// operator.ErrBridgeClosed), lets in-flight tasks drain for a bounded grace
// period, then cancels their contexts and waits for them to return.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stratofs/stratofs/internal/logger"
	"github.com/stratofs/stratofs/pkg/operator"
)

// DefaultGracePeriod bounds how long Close waits for in-flight operations
// before cancelling them.
const DefaultGracePeriod = 30 * time.Second

// Task is one unit of backend work. The context it receives is cancelled
// when the submitting caller cancels, or when the bridge tears down after
// the drain grace period; tasks must honor it for cancellation to propagate
// to the backend call.
type Task func(ctx context.Context) (any, error)

type submission struct {
	callerCtx context.Context
	task      Task
	fut       *Future
}

// Bridge is the async-to-blocking adapter for one filesystem instance.
// Create with New; the execution context starts lazily on first submission.
type Bridge struct {
	grace time.Duration

	mu      sync.Mutex
	started bool
	closed  bool
	queue   chan *submission

	// baseCtx parents every task context; baseCancel fires after the
	// drain grace period expires during Close.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	// senders counts submissions between the closed check and the queue
	// send; Close waits for it to drain before closing the queue.
	senders  sync.WaitGroup
	inflight sync.WaitGroup
	loopDone chan struct{}
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithGracePeriod bounds the Close drain. Zero or negative means cancel
// in-flight work immediately on Close.
func WithGracePeriod(d time.Duration) Option {
	return func(b *Bridge) { b.grace = d }
}

// New creates a Bridge. The execution context is not started until the
// first submission.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		grace:    DefaultGracePeriod,
		queue:    make(chan *submission, 64),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Submit schedules task on the execution context and returns its Future.
// ctx governs cancellation of the task itself: if it is cancelled while the
// task runs, the task context is cancelled too. Fails with
// operator.ErrBridgeClosed once teardown has begun.
func (b *Bridge) Submit(ctx context.Context, task Task) (*Future, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &submission{callerCtx: ctx, task: task, fut: newFuture()}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("submit: %w", operator.ErrBridgeClosed)
	}
	b.ensureStartedLocked()
	// Registered under the lock: Close sets closed first, then waits for
	// registered senders before closing the queue, so this send can never
	// hit a closed channel.
	b.senders.Add(1)
	b.mu.Unlock()
	defer b.senders.Done()

	select {
	case b.queue <- sub:
		return sub.fut, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run schedules task and blocks the calling goroutine until it completes,
// re-raising the task's failure in the caller. This is the blocking facade
// over the same submission primitive Submit uses.
func (b *Bridge) Run(ctx context.Context, task Task) (any, error) {
	fut, err := b.Submit(ctx, task)
	if err != nil {
		return nil, err
	}
	return fut.Wait(ctx)
}

// ensureStartedLocked launches the dispatcher goroutine once. Caller holds
// b.mu.
func (b *Bridge) ensureStartedLocked() {
	if b.started {
		return
	}
	b.started = true
	b.baseCtx, b.baseCancel = context.WithCancel(context.Background())
	go b.loop()
}

// loop is the execution context: it drains the submission queue and runs
// each accepted task on its own worker goroutine so submissions interleave
// instead of serializing behind one slow backend call.
func (b *Bridge) loop() {
	defer close(b.loopDone)

	for sub := range b.queue {
		b.inflight.Add(1)
		go b.runTask(sub)
	}
}

func (b *Bridge) runTask(sub *submission) {
	defer b.inflight.Done()

	taskCtx, cancel := context.WithCancel(b.baseCtx)
	defer cancel()
	// Propagate caller cancellation into the running task without making
	// the task's lifetime depend on the caller still waiting.
	stop := context.AfterFunc(sub.callerCtx, cancel)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("bridge task panicked: %v", r)
			sub.fut.complete(nil, fmt.Errorf("task panic: %v", r))
		}
	}()

	value, err := sub.task(taskCtx)
	sub.fut.complete(value, err)
}

// Close tears the execution context down: it stops intake, waits up to the
// grace period for in-flight tasks to drain, then cancels their contexts and
// waits for them to return. Safe to call multiple times. ctx bounds how
// long Close itself blocks; if it expires first, teardown continues in the
// background and ctx.Err is returned.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	started := b.started
	b.mu.Unlock()

	// No new sender can register once closed is set. Wait for the ones
	// already past the check to land their sends, then stop intake. The
	// dispatcher keeps draining the queue until it closes, so pending
	// senders cannot block this wait indefinitely.
	b.senders.Wait()
	close(b.queue)

	if !started {
		return nil
	}

	// Wait for the dispatcher to hand every queued submission to a worker
	// before watching the in-flight count.
	select {
	case <-b.loopDone:
	case <-ctx.Done():
		go b.drain()
		return ctx.Err()
	}

	drained := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(drained)
	}()

	graceTimer := time.NewTimer(b.grace)
	defer graceTimer.Stop()

	select {
	case <-drained:
		b.baseCancel()
		return nil
	case <-graceTimer.C:
		logger.Warn("bridge close: grace period expired, cancelling in-flight operations")
		b.baseCancel()
	case <-ctx.Done():
		b.baseCancel()
		return ctx.Err()
	}

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain finishes teardown in the background when Close's context expired.
func (b *Bridge) drain() {
	<-b.loopDone
	timer := time.NewTimer(b.grace)
	defer timer.Stop()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-timer.C:
	}
	b.baseCancel()
}
