package utils

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster[int](4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := b.Subscribe(ctx)
	c := b.Subscribe(ctx)

	b.Publish(7)

	assert.Equal(t, 7, <-a)
	assert.Equal(t, 7, <-c)
}

func TestBroadcasterClosesOnContextCancel(t *testing.T) {
	b := NewBroadcaster[string](1)
	ctx, cancel := context.WithCancel(context.Background())

	ch := b.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}
}

func TestBroadcasterKeepsLatestWhenFull(t *testing.T) {
	b := NewBroadcaster[int](2)
	ch := b.Subscribe(context.Background())

	b.Publish(1)
	b.Publish(2)
	b.Publish(3)

	require.Equal(t, 2, <-ch)
	require.Equal(t, 3, <-ch, "last published value is never dropped")
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %d", v)
	default:
	}

	b.Close()
	_, ok := <-ch
	assert.False(t, ok)

	late := b.Subscribe(context.Background())
	_, ok = <-late
	assert.False(t, ok)
}

func TestBroadcasterCloseReleasesWatchers(t *testing.T) {
	before := runtime.NumGoroutine()

	b := NewBroadcaster[int](1)
	for i := 0; i < 20; i++ {
		b.Subscribe(context.Background())
	}
	require.GreaterOrEqual(t, runtime.NumGoroutine(), before+20)

	b.Close()
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 2*time.Second, 10*time.Millisecond)
}
