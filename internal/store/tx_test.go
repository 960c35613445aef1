package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/store"
	"github.com/MrSnakeDoc/pinsync/internal/store/memory"
	"github.com/MrSnakeDoc/pinsync/internal/store/storetest"
)

func TestTxOverlay(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	storetest.Put(t, s, storetest.Bookmark("https://a", "m1", 0), storetest.Bookmark("https://b", "m2", 0))

	tx := store.Begin(s)
	tx.Delete("https://a")
	tx.Put(storetest.Bookmark("https://c", "m3", time.Hour))

	_, err := tx.Get(ctx, "https://a")
	assert.ErrorIs(t, err, domain.ErrNotFound, "staged delete hides the record")

	c, err := tx.Get(ctx, "https://c")
	require.NoError(t, err)
	assert.True(t, c.Fingerprint.Matches("m3"))

	b, err := tx.Get(ctx, "https://b")
	require.NoError(t, err, "unstaged reads fall through")
	assert.Equal(t, "https://b", b.URL)

	assert.ElementsMatch(t, []string{"https://a", "https://b"}, storetest.URLs(t, s), "nothing visible before commit")

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, []string{"https://c", "https://b"}, storetest.URLs(t, s))

	assert.ErrorIs(t, tx.Commit(ctx), store.ErrTxDone)
}

func TestTxLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	tx := store.Begin(s)
	tx.Put(storetest.Bookmark("https://a", "m1", 0))
	tx.Delete("https://a")
	tx.Put(storetest.Bookmark("https://b", "m2", 0))
	tx.Delete("https://b")
	tx.Put(storetest.Bookmark("https://b", "m3", 0))
	require.Equal(t, 2, tx.Len())
	require.NoError(t, tx.Commit(ctx))

	assert.Equal(t, []string{"https://b"}, storetest.URLs(t, s))
	got, err := s.Get(ctx, "https://b")
	require.NoError(t, err)
	assert.True(t, got.Fingerprint.Matches("m3"))
}

func TestTxRollback(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	tx := store.Begin(s)
	tx.Put(storetest.Bookmark("https://a", "m1", 0))
	tx.Rollback()

	assert.Empty(t, storetest.URLs(t, s))
	assert.ErrorIs(t, tx.Commit(ctx), store.ErrTxDone)
}

func TestTxStagedCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	b := storetest.Bookmark("https://a", "m1", 0)
	tx := store.Begin(s)
	tx.Put(b)
	b.Title = "mutated after put"

	got, err := tx.Get(ctx, "https://a")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated after put", got.Title)
}
