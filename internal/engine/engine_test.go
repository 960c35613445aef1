package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
	"github.com/MrSnakeDoc/pinsync/internal/pinboard"
	"github.com/MrSnakeDoc/pinsync/internal/store/memory"
	"github.com/MrSnakeDoc/pinsync/internal/store/storetest"
)

var errBoom = errors.New("boom")

// fakeRemote records calls. When gate is set every call blocks until the
// test sends on it.
type fakeRemote struct {
	mu      sync.Mutex
	posts   []pinboard.Post
	err     error
	calls   []string
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeRemote) enter(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	gate, entered, err := f.gate, f.entered, f.err
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeRemote) AddOrUpdate(_ context.Context, b *domain.Bookmark) error {
	return f.enter("add " + b.URL)
}

func (f *fakeRemote) Delete(_ context.Context, url string) error {
	return f.enter("delete " + url)
}

func (f *fakeRemote) ListAll(context.Context) ([]pinboard.Post, error) {
	if err := f.enter("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pinboard.Post(nil), f.posts...), nil
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type memClock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *memClock) LastFullSync() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *memClock) SetLastFullSync(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = t
	return nil
}

type fixture struct {
	engine *Engine
	store  *memory.Store
	remote *fakeRemote
	clock  *memClock
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.New(),
		remote: &fakeRemote{},
		clock:  &memClock{last: time.Unix(0, 0).UTC()},
		now:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.engine = New(f.store, f.remote, f.clock, logger.NewNop(), Options{
		Now: func() time.Time { return f.now },
	})
	ctx, cancel := context.WithCancel(context.Background())
	f.engine.Start(ctx)
	t.Cleanup(func() {
		cancel()
		f.engine.Stop()
	})
	return f
}

func wait(t *testing.T, task *Task) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := task.Wait(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "task %s never completed", task.Op())
	return err
}

func post(url, fp string) pinboard.Post {
	return pinboard.Post{URL: url, Fingerprint: fp, Title: "remote " + url, ModifiedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestBusyRejectsWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	f.remote.gate = make(chan struct{})
	f.remote.entered = make(chan struct{}, 1)

	first := f.engine.Delete(domain.Bookmark{URL: "https://a"})
	<-f.remote.entered
	require.True(t, f.engine.Busy())

	before := storetest.URLs(t, f.store)

	rejected := []*Task{
		f.engine.Add(NewBookmark{URL: "https://new"}),
		f.engine.Edit(domain.Bookmark{URL: "https://a"}, domain.Patch{}),
		f.engine.Delete(domain.Bookmark{URL: "https://b"}),
		f.engine.Sync(),
		f.engine.Clear(),
	}
	for _, task := range rejected {
		select {
		case <-task.Done():
		default:
			t.Fatalf("%s: rejected task should already be complete", task.Op())
		}
		assert.ErrorIs(t, task.Err(), domain.ErrBusy)
		assert.Empty(t, task.ID())
	}

	assert.Equal(t, before, storetest.URLs(t, f.store))
	assert.Equal(t, []string{"delete https://a"}, f.remote.Calls())

	close(f.remote.gate)
	require.NoError(t, wait(t, first))
	assert.False(t, f.engine.Busy())
}

func TestGateReleasedBeforeTaskCompletes(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, wait(t, f.engine.Clear()))
		// Chained call right after completion must be admitted.
		next := f.engine.Clear()
		require.NoError(t, wait(t, next))
	}
}

func TestEventsBracketOperations(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := f.engine.Subscribe(ctx)

	f.remote.err = errBoom
	task := f.engine.Delete(domain.Bookmark{URL: "https://a"})
	err := wait(t, task)
	require.Error(t, err)

	started := <-events
	finished := <-events
	assert.Equal(t, EventStarted, started.Kind)
	assert.Equal(t, EventFinished, finished.Kind)
	assert.Equal(t, task.ID(), started.ID)
	assert.Equal(t, task.ID(), finished.ID)
	assert.Equal(t, OpDelete, finished.Op)
	assert.ErrorIs(t, finished.Err, domain.ErrServerError)
	assert.Equal(t, "sync_started", started.Kind.String())

	// Rejections emit nothing.
	f.remote.err = nil
	f.remote.gate = make(chan struct{})
	f.remote.entered = make(chan struct{}, 1)
	running := f.engine.Delete(domain.Bookmark{URL: "https://b"})
	<-f.remote.entered
	<-events // started
	assert.ErrorIs(t, wait(t, f.engine.Sync()), domain.ErrBusy)
	close(f.remote.gate)
	require.NoError(t, wait(t, running))
	assert.Equal(t, EventFinished, (<-events).Kind)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestOperationsSerialize(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	results := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- wait(t, f.engine.Add(NewBookmark{URL: "https://same"}))
		}()
	}
	wg.Wait()
	close(results)

	var ok, busy int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrBusy):
			busy++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	assert.Equal(t, 50, ok+busy)
	assert.GreaterOrEqual(t, ok, 1)
	assert.Len(t, f.remote.Calls(), ok)
	assert.Equal(t, []string{"https://same"}, storetest.URLs(t, f.store))
}

func TestPanicReleasesGate(t *testing.T) {
	f := newFixture(t)
	task := f.engine.submit(OpClear, func(context.Context) error { panic("kaboom") })
	err := wait(t, task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.False(t, f.engine.Busy())
	require.NoError(t, wait(t, f.engine.Clear()))
}

func TestStoppedEngineRejects(t *testing.T) {
	f := newFixture(t)
	f.engine.Stop()

	err := wait(t, f.engine.Clear())
	assert.ErrorIs(t, err, ErrStopped)
	assert.False(t, f.engine.Busy())
}

func TestCancelledStartContextStopsEngine(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	e := New(f.store, f.remote, f.clock, logger.NewNop(), Options{})
	e.Start(ctx)
	events := e.Subscribe(context.Background())

	cancel()
	select {
	case _, open := <-events:
		require.False(t, open, "no event expected")
	case <-time.After(5 * time.Second):
		t.Fatal("event stream still open after the start context ended")
	}

	err := wait(t, e.Clear())
	assert.ErrorIs(t, err, ErrStopped)
	assert.False(t, e.Busy())

	err = wait(t, e.Sync())
	assert.ErrorIs(t, err, ErrStopped, "gate released after a rejected operation")
	assert.Empty(t, f.remote.Calls())

	e.Stop()
}

func TestSlowSubscriberGetsLastFinished(t *testing.T) {
	f := newFixture(t)
	events := f.engine.Subscribe(context.Background())

	var last *Task
	for i := 0; i < 40; i++ {
		last = f.engine.Clear()
		require.NoError(t, wait(t, last))
	}

	var final Event
	for {
		select {
		case ev := <-events:
			final = ev
			continue
		default:
		}
		break
	}
	assert.Equal(t, EventFinished, final.Kind)
	assert.Equal(t, last.ID(), final.ID)
}
