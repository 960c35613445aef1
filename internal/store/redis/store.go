// Package redis is the Redis backed bookmark store. Each bookmark is a JSON
// blob under a per-URL key, indexed by a set of URLs.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
	"github.com/MrSnakeDoc/pinsync/internal/store"
)

// Store handles Redis operations for bookmarks
type Store struct {
	client *redis.Client
	logger logger.Logger
}

var _ store.Store = (*Store)(nil)

// NewStore creates a new Redis store. The client is owned by the caller.
func NewStore(client *redis.Client, log logger.Logger) *Store {
	return &Store{
		client: client,
		logger: log,
	}
}

// Get retrieves a bookmark by URL
func (s *Store) Get(ctx context.Context, url string) (*domain.Bookmark, error) {
	data, err := s.client.Get(ctx, BookmarkKey(url)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bookmark: %w", err)
	}
	return decode(data)
}

// List loads every bookmark with one MGET and filters in process.
func (s *Store) List(ctx context.Context, f domain.Filter) ([]*domain.Bookmark, error) {
	urls, err := s.client.SMembers(ctx, AllBookmarksKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark urls: %w", err)
	}
	if len(urls) == 0 {
		return []*domain.Bookmark{}, nil
	}

	keys := make([]string, len(urls))
	for i, url := range urls {
		keys[i] = BookmarkKey(url)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmarks: %w", err)
	}

	bookmarks := make([]*domain.Bookmark, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a blob: skip rather than fail the listing.
			s.logger.Warn("bookmark missing from index", logger.String("url", urls[i]))
			continue
		}
		b, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, b)
	}

	return domain.FilterBookmarks(bookmarks, f), nil
}

// Apply writes the changeset in one MULTI/EXEC block, then publishes it.
func (s *Store) Apply(ctx context.Context, cs *store.Changeset) error {
	if cs.Len() == 0 {
		return nil
	}

	puts := cs.Puts()
	blobs := make([][]byte, len(puts))
	for i, b := range puts {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal bookmark %s: %w", b.URL, err)
		}
		blobs[i] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, url := range cs.Deletes() {
			pipe.Del(ctx, BookmarkKey(url))
			pipe.SRem(ctx, AllBookmarksKey(), url)
		}
		for i, b := range puts {
			pipe.Set(ctx, BookmarkKey(b.URL), blobs[i], 0)
			pipe.SAdd(ctx, AllBookmarksKey(), b.URL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply changeset: %w", err)
	}

	payload, err := json.Marshal(cs.Change())
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	if err := s.client.Publish(ctx, ChannelChanges, payload).Err(); err != nil {
		// The write is committed; a lost notification only delays observers.
		s.logger.Warn("failed to publish change", logger.Error(err))
	}
	return nil
}

// Subscribe follows the change channel. Changes committed by other
// processes sharing the database are delivered too.
func (s *Store) Subscribe(ctx context.Context) (<-chan store.Change, error) {
	sub := s.client.Subscribe(ctx, ChannelChanges)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	out := make(chan store.Change, 16)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c store.Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					s.logger.Warn("dropping malformed change", logger.Error(err))
					continue
				}
				if c.Empty() {
					continue
				}
				select {
				case out <- c:
				default:
				}
			}
		}
	}()

	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op: the client is shared with other components.
func (s *Store) Close() error { return nil }

func decode(data []byte) (*domain.Bookmark, error) {
	var b domain.Bookmark
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bookmark: %w", err)
	}
	return &b, nil
}
