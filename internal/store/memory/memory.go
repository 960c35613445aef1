// Package memory is an in-process bookmark store.
package memory

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/store"
	"github.com/MrSnakeDoc/pinsync/internal/utils"
)

// Store keeps bookmarks in a map keyed by URL.
type Store struct {
	mu        sync.RWMutex
	bookmarks map[string]*domain.Bookmark // URL -> Bookmark
	changes   *utils.Broadcaster[store.Change]
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		bookmarks: make(map[string]*domain.Bookmark),
		changes:   utils.NewBroadcaster[store.Change](16),
	}
}

func (s *Store) Get(_ context.Context, url string) (*domain.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookmarks[url]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b.Clone(), nil
}

func (s *Store) List(_ context.Context, f domain.Filter) ([]*domain.Bookmark, error) {
	s.mu.RLock()
	all := make([]*domain.Bookmark, 0, len(s.bookmarks))
	for _, b := range s.bookmarks {
		all = append(all, b.Clone())
	}
	s.mu.RUnlock()

	return domain.FilterBookmarks(all, f), nil
}

func (s *Store) Apply(_ context.Context, cs *store.Changeset) error {
	if cs.Len() == 0 {
		return nil
	}

	s.mu.Lock()
	for _, url := range cs.Deletes() {
		delete(s.bookmarks, url)
	}
	for _, b := range cs.Puts() {
		s.bookmarks[b.URL] = b.Clone()
	}
	s.mu.Unlock()

	s.changes.Publish(cs.Change())
	return nil
}

func (s *Store) Subscribe(ctx context.Context) (<-chan store.Change, error) {
	return s.changes.Subscribe(ctx), nil
}

// Count returns the number of stored bookmarks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bookmarks)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error {
	s.changes.Close()
	return nil
}
