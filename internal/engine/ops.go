package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
	"github.com/MrSnakeDoc/pinsync/internal/store"
)

// NewBookmark is the input of Add.
type NewBookmark struct {
	URL         string
	Title       string
	Description string
	Tags        string
	Unread      bool
	Private     bool
}

// Add writes the bookmark locally right away, unconfirmed, then pushes it.
// If the push fails the local state is put back as it was.
func (e *Engine) Add(nb NewBookmark) *Task {
	return e.submit(OpAdd, func(ctx context.Context) error {
		return e.add(ctx, nb)
	})
}

func (e *Engine) add(ctx context.Context, nb NewBookmark) error {
	if strings.TrimSpace(nb.URL) == "" {
		return fmt.Errorf("%w: empty url", domain.ErrInvalidBookmark)
	}

	prior, err := e.store.Get(ctx, nb.URL)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load existing bookmark: %w", err)
	}

	b := &domain.Bookmark{
		URL:         nb.URL,
		Title:       nb.Title,
		Description: nb.Description,
		Tags:        nb.Tags,
		Unread:      nb.Unread,
		Private:     nb.Private,
		Date:        e.now(),
		Fingerprint: domain.Unconfirmed(),
	}

	optimistic := store.Begin(e.store)
	optimistic.Put(b)
	if err := optimistic.Commit(ctx); err != nil {
		return fmt.Errorf("write bookmark: %w", err)
	}

	if err := e.remote.AddOrUpdate(ctx, b); err != nil {
		undo := store.Begin(e.store)
		if prior != nil {
			undo.Put(prior)
		} else {
			undo.Delete(b.URL)
		}
		if uerr := undo.Commit(ctx); uerr != nil {
			e.logger.Error("failed to roll back optimistic add",
				logger.String("url", b.URL), logger.Error(uerr))
		}
		return serverError(err)
	}
	return nil
}

// Edit pushes b with the patch applied, then applies the patch locally.
// Fields the patch leaves nil keep b's values on the remote.
func (e *Engine) Edit(b domain.Bookmark, p domain.Patch) *Task {
	return e.submit(OpEdit, func(ctx context.Context) error {
		return e.edit(ctx, b, p)
	})
}

func (e *Engine) edit(ctx context.Context, b domain.Bookmark, p domain.Patch) error {
	merged := b.Clone()
	p.ApplyTo(merged)

	tx := store.Begin(e.store)
	defer tx.Rollback()

	if err := e.remote.AddOrUpdate(ctx, merged); err != nil {
		return serverError(err)
	}

	current, err := tx.Get(ctx, b.URL)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Gone locally since the caller read it; the remote has it again.
		current = merged
	case err != nil:
		return fmt.Errorf("load bookmark: %w", err)
	default:
		p.ApplyTo(current)
	}
	current.Date = e.now()

	tx.Put(current)
	return tx.Commit(ctx)
}

// Delete removes the bookmark remotely, then locally.
func (e *Engine) Delete(b domain.Bookmark) *Task {
	return e.submit(OpDelete, func(ctx context.Context) error {
		tx := store.Begin(e.store)
		defer tx.Rollback()

		if err := e.remote.Delete(ctx, b.URL); err != nil {
			return serverError(err)
		}
		tx.Delete(b.URL)
		return tx.Commit(ctx)
	})
}

// Sync mirrors the remote listing into the store. Within the rate limit
// interval of the previous full sync it succeeds without any remote call.
func (e *Engine) Sync() *Task {
	return e.submit(OpSync, e.sync)
}

func (e *Engine) sync(ctx context.Context) error {
	now := e.now()
	last := e.clock.LastFullSync()
	if !now.After(last.Add(e.rateLimit)) {
		e.logger.Debug("sync skipped, rate limited",
			logger.Time("last_full_sync", last),
			logger.Duration("interval", e.rateLimit))
		return nil
	}

	// Recorded before the download so a failing remote is not hammered.
	if err := e.clock.SetLastFullSync(now); err != nil {
		return fmt.Errorf("record sync time: %w", err)
	}

	posts, err := e.remote.ListAll(ctx)
	if err != nil {
		return serverError(err)
	}

	stats, err := reconcile(ctx, e.store, posts)
	if err != nil {
		return err
	}

	e.logger.Info("sync reconciled",
		logger.Int("remote", len(posts)),
		logger.Int("created", stats.Created),
		logger.Int("updated", stats.Updated),
		logger.Int("unchanged", stats.Unchanged),
		logger.Int("deleted", stats.Deleted))
	return nil
}

// Clear deletes every local bookmark. The remote is not contacted.
func (e *Engine) Clear() *Task {
	return e.submit(OpClear, func(ctx context.Context) error {
		all, err := e.store.List(ctx, domain.Filter{})
		if err != nil {
			return fmt.Errorf("list bookmarks: %w", err)
		}
		tx := store.Begin(e.store)
		for _, b := range all {
			tx.Delete(b.URL)
		}
		return tx.Commit(ctx)
	})
}
