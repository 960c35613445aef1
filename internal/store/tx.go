package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
)

var ErrTxDone = errors.New("store: transaction already committed or rolled back")

// Tx stages mutations over a Store. Reads see the staged state layered on
// the committed one; nothing reaches the store until Commit.
// A Tx is not safe for concurrent use.
type Tx struct {
	store Store
	cs    *Changeset
	done  bool
}

func Begin(s Store) *Tx {
	return &Tx{store: s, cs: NewChangeset()}
}

func (tx *Tx) Get(ctx context.Context, url string) (*domain.Bookmark, error) {
	if b, deleted, ok := tx.cs.staged(url); ok {
		if deleted {
			return nil, domain.ErrNotFound
		}
		return b.Clone(), nil
	}
	return tx.store.Get(ctx, url)
}

func (tx *Tx) Put(b *domain.Bookmark) { tx.cs.Put(b) }

func (tx *Tx) Delete(url string) { tx.cs.Delete(url) }

// Len is the number of staged mutations.
func (tx *Tx) Len() int { return tx.cs.Len() }

func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	if tx.cs.Len() == 0 {
		return nil
	}
	if err := tx.store.Apply(ctx, tx.cs); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards staged mutations. Safe to call after Commit.
func (tx *Tx) Rollback() {
	tx.done = true
	tx.cs = NewChangeset()
}
