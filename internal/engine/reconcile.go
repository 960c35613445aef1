package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/pinboard"
	"github.com/MrSnakeDoc/pinsync/internal/store"
)

type reconcileStats struct {
	Created   int
	Updated   int
	Unchanged int
	Deleted   int
}

// reconcile makes the store equal to posts in one commit. A local record
// survives only if its fingerprint, after the remote fields are staged, is
// one the listing reported.
func reconcile(ctx context.Context, s store.Store, posts []pinboard.Post) (reconcileStats, error) {
	var stats reconcileStats

	tx := store.Begin(s)
	defer tx.Rollback()

	seen := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		seen[p.Fingerprint] = struct{}{}

		local, err := tx.Get(ctx, p.URL)
		switch {
		case err == nil && local.Fingerprint.Matches(p.Fingerprint):
			stats.Unchanged++
			continue
		case err == nil:
			stats.Updated++
		case errors.Is(err, domain.ErrNotFound):
			stats.Created++
		default:
			return stats, fmt.Errorf("load bookmark: %w", err)
		}
		tx.Put(p.Bookmark())
	}

	locals, err := s.List(ctx, domain.Filter{})
	if err != nil {
		return stats, fmt.Errorf("list bookmarks: %w", err)
	}
	for _, b := range locals {
		staged, err := tx.Get(ctx, b.URL)
		if err != nil {
			return stats, fmt.Errorf("load bookmark: %w", err)
		}
		if fp, ok := staged.Fingerprint.Value(); ok {
			if _, kept := seen[fp]; kept {
				continue
			}
		}
		tx.Delete(b.URL)
		stats.Deleted++
	}

	if err := tx.Commit(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}
