// Package store defines the local bookmark store and the transaction
// overlay the sync engine stages its mutations in.
package store

import (
	"context"
	"sort"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
)

// Store is the local mirror of the remote account.
// Implementations return clones: callers may mutate what they get.
type Store interface {
	// Get returns domain.ErrNotFound when no bookmark has this URL.
	Get(ctx context.Context, url string) (*domain.Bookmark, error)

	// List returns the bookmarks matching f, newest first.
	List(ctx context.Context, f domain.Filter) ([]*domain.Bookmark, error)

	// Apply commits every staged mutation of cs atomically, then notifies
	// subscribers. An empty changeset is a no-op.
	Apply(ctx context.Context, cs *Changeset) error

	// Subscribe streams committed changes until ctx ends.
	Subscribe(ctx context.Context) (<-chan Change, error)

	Ping(ctx context.Context) error
	Close() error
}

// Change describes one committed changeset by URL.
type Change struct {
	Upserted []string `json:"upserted,omitempty"`
	Deleted  []string `json:"deleted,omitempty"`
}

func (c Change) Empty() bool { return len(c.Upserted) == 0 && len(c.Deleted) == 0 }

// Changeset is a set of upserts and deletes keyed by URL. The last
// operation on a URL wins.
type Changeset struct {
	puts    map[string]*domain.Bookmark
	deletes map[string]struct{}
}

func NewChangeset() *Changeset {
	return &Changeset{
		puts:    make(map[string]*domain.Bookmark),
		deletes: make(map[string]struct{}),
	}
}

func (cs *Changeset) Put(b *domain.Bookmark) {
	delete(cs.deletes, b.URL)
	cs.puts[b.URL] = b.Clone()
}

func (cs *Changeset) Delete(url string) {
	delete(cs.puts, url)
	cs.deletes[url] = struct{}{}
}

func (cs *Changeset) Len() int { return len(cs.puts) + len(cs.deletes) }

// Puts returns the staged upserts ordered by URL.
func (cs *Changeset) Puts() []*domain.Bookmark {
	out := make([]*domain.Bookmark, 0, len(cs.puts))
	for _, b := range cs.puts {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// Deletes returns the staged deletions ordered by URL.
func (cs *Changeset) Deletes() []string {
	out := make([]string, 0, len(cs.deletes))
	for url := range cs.deletes {
		out = append(out, url)
	}
	sort.Strings(out)
	return out
}

// Change summarizes cs for subscribers.
func (cs *Changeset) Change() Change {
	c := Change{Deleted: cs.Deletes()}
	for _, b := range cs.Puts() {
		c.Upserted = append(c.Upserted, b.URL)
	}
	return c
}

// staged reports what cs holds for url: a bookmark, a deletion, or nothing.
func (cs *Changeset) staged(url string) (b *domain.Bookmark, deleted, ok bool) {
	if b, ok := cs.puts[url]; ok {
		return b, false, true
	}
	if _, ok := cs.deletes[url]; ok {
		return nil, true, true
	}
	return nil, false, false
}
