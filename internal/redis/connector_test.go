package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/pinsync/internal/config"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
)

func fastOptions(addr string) ConnectOptions {
	return ConnectOptions{
		Addr:           addr,
		DialTimeout:    100 * time.Millisecond,
		ReadTimeout:    100 * time.Millisecond,
		WriteTimeout:   100 * time.Millisecond,
		ConnectTimeout: 300 * time.Millisecond,
		RetryInterval:  20 * time.Millisecond,
		MaxWait:        50 * time.Millisecond,
		PingTimeout:    100 * time.Millisecond,
		WarnThreshold:  1,
	}
}

func TestNewConnects(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), fastOptions(mr.Addr()), logger.NewNop())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	v, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestNewGivesUpAfterTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	start := time.Now()
	_, err := New(context.Background(), fastOptions(addr), logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis unavailable")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewStopsWithContext(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	opts := fastOptions(addr)
	opts.ConnectTimeout = time.Minute
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := New(ctx, opts, logger.NewNop())
	assert.Error(t, err)
}

func TestNewValidatesOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConnectOptions)
	}{
		{"connect timeout", func(o *ConnectOptions) { o.ConnectTimeout = 0 }},
		{"retry interval", func(o *ConnectOptions) { o.RetryInterval = 0 }},
		{"max wait", func(o *ConnectOptions) { o.MaxWait = -1 }},
		{"ping timeout", func(o *ConnectOptions) { o.PingTimeout = 0 }},
		{"warn threshold", func(o *ConnectOptions) { o.WarnThreshold = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := fastOptions("127.0.0.1:1")
			tt.mutate(&opts)
			_, err := New(context.Background(), opts, logger.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		RedisAddr:           "redis:6379",
		RedisDB:             2,
		RedisPoolSize:       7,
		RedisConnectTimeout: 30 * time.Second,
		RedisWarnThreshold:  3,
	}
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, "redis:6379", opts.Addr)
	assert.Equal(t, 2, opts.RedisDB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, 30*time.Second, opts.ConnectTimeout)
	assert.Equal(t, 3, opts.WarnThreshold)
}
