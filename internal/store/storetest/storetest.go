// Package storetest is a conformance suite every store.Store backend runs.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/store"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) store.Store

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Bookmark builds a confirmed bookmark dated base+offset.
func Bookmark(url, fp string, offset time.Duration) *domain.Bookmark {
	b := &domain.Bookmark{
		URL:   url,
		Title: "title " + url,
		Date:  base.Add(offset),
	}
	if fp != "" {
		b.Fingerprint = domain.Confirmed(fp)
	}
	return b
}

// Put commits bookmarks in one changeset.
func Put(t *testing.T, s store.Store, bs ...*domain.Bookmark) {
	t.Helper()
	cs := store.NewChangeset()
	for _, b := range bs {
		cs.Put(b)
	}
	require.NoError(t, s.Apply(context.Background(), cs))
}

// URLs lists every stored URL, newest first.
func URLs(t *testing.T, s store.Store) []string {
	t.Helper()
	bs, err := s.List(context.Background(), domain.Filter{})
	require.NoError(t, err)
	out := make([]string, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.URL)
	}
	return out
}

func Run(t *testing.T, newStore Factory) {
	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "https://nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		s := newStore(t)
		in := &domain.Bookmark{
			URL:         "https://example.com/é?q=1",
			Title:       "Title",
			Description: "Desc",
			Tags:        "a b",
			Private:     true,
			Unread:      true,
			Date:        base,
			Fingerprint: domain.Confirmed("m1"),
		}
		Put(t, s, in)

		got, err := s.Get(context.Background(), in.URL)
		require.NoError(t, err)
		assert.Equal(t, in.URL, got.URL)
		assert.Equal(t, in.Title, got.Title)
		assert.Equal(t, in.Description, got.Description)
		assert.Equal(t, in.Tags, got.Tags)
		assert.True(t, got.Private)
		assert.True(t, got.Unread)
		assert.True(t, in.Date.Equal(got.Date))
		assert.True(t, got.Fingerprint.Matches("m1"))

		Put(t, s, &domain.Bookmark{URL: "https://local", Date: base})
		got, err = s.Get(context.Background(), "https://local")
		require.NoError(t, err)
		assert.False(t, got.Fingerprint.IsConfirmed())
	})

	t.Run("url is unique", func(t *testing.T) {
		s := newStore(t)
		Put(t, s, Bookmark("https://a", "m1", 0))
		updated := Bookmark("https://a", "m2", time.Hour)
		updated.Title = "changed"
		Put(t, s, updated)

		assert.Equal(t, []string{"https://a"}, URLs(t, s))
		got, err := s.Get(context.Background(), "https://a")
		require.NoError(t, err)
		assert.Equal(t, "changed", got.Title)
		assert.True(t, got.Fingerprint.Matches("m2"))
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		Put(t, s, Bookmark("https://a", "m1", 0), Bookmark("https://b", "m2", time.Minute))

		cs := store.NewChangeset()
		cs.Delete("https://a")
		cs.Delete("https://never-stored")
		require.NoError(t, s.Apply(context.Background(), cs))

		assert.Equal(t, []string{"https://b"}, URLs(t, s))
	})

	t.Run("list filters and sorts", func(t *testing.T) {
		s := newStore(t)
		a := Bookmark("https://a.example", "m1", 0)
		a.Title = "Crème brûlée"
		a.Unread = true
		b := Bookmark("https://b.example", "m2", 2*time.Hour)
		b.Description = "about CREME"
		b.Private = true
		c := Bookmark("https://c.example", "m3", time.Hour)
		Put(t, s, a, b, c)

		assert.Equal(t, []string{"https://b.example", "https://c.example", "https://a.example"}, URLs(t, s))

		yes, no := true, false
		tests := []struct {
			name   string
			filter domain.Filter
			want   []string
		}{
			{name: "text folds diacritics", filter: domain.Filter{Text: "creme"}, want: []string{"https://b.example", "https://a.example"}},
			{name: "text matches url", filter: domain.Filter{Text: "C.EXAMPLE"}, want: []string{"https://c.example"}},
			{name: "unread", filter: domain.Filter{Unread: &yes}, want: []string{"https://a.example"}},
			{name: "not private", filter: domain.Filter{Private: &no}, want: []string{"https://c.example", "https://a.example"}},
			{name: "combined", filter: domain.Filter{Text: "creme", Private: &yes}, want: []string{"https://b.example"}},
			{name: "no match", filter: domain.Filter{Text: "zzz"}, want: []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				bs, err := s.List(context.Background(), tt.filter)
				require.NoError(t, err)
				got := make([]string, 0, len(bs))
				for _, b := range bs {
					got = append(got, b.URL)
				}
				assert.Equal(t, tt.want, got)
			})
		}
	})

	t.Run("returned bookmarks are copies", func(t *testing.T) {
		s := newStore(t)
		Put(t, s, Bookmark("https://a", "m1", 0))

		got, err := s.Get(context.Background(), "https://a")
		require.NoError(t, err)
		got.Title = "mutated"

		again, err := s.Get(context.Background(), "https://a")
		require.NoError(t, err)
		assert.NotEqual(t, "mutated", again.Title)
	})

	t.Run("subscribe sees commits only", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := s.Subscribe(ctx)
		require.NoError(t, err)

		require.NoError(t, s.Apply(ctx, store.NewChangeset()))

		cs := store.NewChangeset()
		cs.Put(Bookmark("https://a", "m1", 0))
		cs.Delete("https://gone")
		require.NoError(t, s.Apply(ctx, cs))

		select {
		case c := <-ch:
			assert.Equal(t, []string{"https://a"}, c.Upserted)
			assert.Equal(t, []string{"https://gone"}, c.Deleted)
		case <-time.After(2 * time.Second):
			t.Fatal("no change notification")
		}

		select {
		case c := <-ch:
			t.Fatalf("unexpected extra notification %+v", c)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}
