// Package engine serializes every mutation of the local mirror through a
// single worker. At most one operation is in flight; arrivals while busy
// are rejected with domain.ErrBusy instead of queued.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
	"github.com/MrSnakeDoc/pinsync/internal/pinboard"
	"github.com/MrSnakeDoc/pinsync/internal/store"
	"github.com/MrSnakeDoc/pinsync/internal/utils"
)

// DefaultRateLimit is the minimum gap between two full syncs.
const DefaultRateLimit = 5 * time.Minute

var ErrStopped = errors.New("engine stopped")

// Remote is the part of the remote API the engine drives.
type Remote interface {
	AddOrUpdate(ctx context.Context, b *domain.Bookmark) error
	Delete(ctx context.Context, url string) error
	ListAll(ctx context.Context) ([]pinboard.Post, error)
}

// SyncClock persists the time of the last full sync.
type SyncClock interface {
	LastFullSync() time.Time
	SetLastFullSync(t time.Time) error
}

type Options struct {
	// RateLimit defaults to DefaultRateLimit.
	RateLimit time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

type job struct {
	task *Task
	run  func(ctx context.Context) error
}

type Engine struct {
	store  store.Store
	remote Remote
	clock  SyncClock
	logger logger.Logger

	rateLimit time.Duration
	now       func() time.Time

	busy   atomic.Bool
	jobs   chan job
	events *utils.Broadcaster[Event]

	// mu orders admission against shutdown: once stopped is set no job
	// reaches the queue, and drain sees every job sent before it.
	mu        sync.Mutex
	stopped   bool
	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func New(s store.Store, remote Remote, clock SyncClock, log logger.Logger, opts Options) *Engine {
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:     s,
		remote:    remote,
		clock:     clock,
		logger:    log,
		rateLimit: opts.RateLimit,
		now:       opts.Now,
		jobs:      make(chan job, 1),
		events:    utils.NewBroadcaster[Event](32),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the worker. Operations run with ctx; cancelling it stops
// the engine like Stop does, without waiting for the caller.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		e.wg.Add(1)
		go e.loop(ctx)
	})
}

// Stop waits for the running operation to finish, then fails anything
// admitted but not yet started with ErrStopped.
func (e *Engine) Stop() {
	e.markStopped()
	e.wg.Wait()
	e.drain()
	e.events.Close()
}

func (e *Engine) markStopped() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.stopped = true
		e.mu.Unlock()
		close(e.stopCh)
	})
}

// Busy reports whether an operation is admitted and not yet finished.
func (e *Engine) Busy() bool { return e.busy.Load() }

// Subscribe streams Started/Finished events until ctx ends or the engine
// stops. A slow subscriber loses its oldest events rather than stall the
// worker; the latest Finished always arrives.
func (e *Engine) Subscribe(ctx context.Context) <-chan Event {
	return e.events.Subscribe(ctx)
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			e.drain()
			return
		case <-ctx.Done():
			e.markStopped()
			e.drain()
			e.events.Close()
			return
		case j := <-e.jobs:
			e.execute(ctx, j)
		}
	}
}

func (e *Engine) drain() {
	for {
		select {
		case j := <-e.jobs:
			e.finish(j.task, ErrStopped, 0)
		default:
			return
		}
	}
}

// submit is the admission gate. A rejected operation gets an already
// completed task and touches nothing.
func (e *Engine) submit(op Op, run func(ctx context.Context) error) *Task {
	if !e.busy.CompareAndSwap(false, true) {
		e.logger.Debug("operation rejected, engine busy", logger.String("op", string(op)))
		t := newTask("", op)
		t.complete(domain.ErrBusy)
		return t
	}

	t := newTask(uuid.Must(uuid.NewV7()).String(), op)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		e.busy.Store(false)
		t.complete(ErrStopped)
		return t
	}

	e.logger.Debug("operation admitted", logger.String("op", string(op)), logger.String("id", t.id))
	e.events.Publish(Event{Kind: EventStarted, Op: op, ID: t.id, At: e.now()})
	// The gate guarantees the queue is empty here, so the send never blocks.
	e.jobs <- job{task: t, run: run}
	return t
}

func (e *Engine) execute(ctx context.Context, j job) {
	start := time.Now()
	err := e.run(ctx, j)
	e.finish(j.task, err, time.Since(start))
}

func (e *Engine) run(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", j.task.op, r)
		}
	}()
	return j.run(ctx)
}

// finish releases the gate and emits Finished before completing the task,
// so a caller chaining on the task is never rejected as busy.
func (e *Engine) finish(t *Task, err error, took time.Duration) {
	e.busy.Store(false)
	e.events.Publish(Event{Kind: EventFinished, Op: t.op, ID: t.id, At: e.now(), Err: err})

	fields := []logger.Field{
		logger.String("op", string(t.op)),
		logger.String("id", t.id),
		logger.Duration("duration", took),
	}
	if err != nil {
		e.logger.Warn("operation failed", append(fields, logger.Error(err))...)
	} else {
		e.logger.Info("operation finished", fields...)
	}

	t.complete(err)
}

func serverError(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrServerError, err)
}
