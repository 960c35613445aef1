// Package sqlite is the SQLite backed bookmark store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/store"
	"github.com/MrSnakeDoc/pinsync/internal/utils"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - bookmarks table with folded search column
const currentSchemaVersion = 1

// searchSep joins the searchable fields so a query cannot match across two of them.
const searchSep = "\x1f"

// Store keeps bookmarks in one SQLite table keyed by URL.
type Store struct {
	db      *sql.DB
	changes *utils.Broadcaster[store.Change]
}

var _ store.Store = (*Store)(nil)

// Open creates or opens the database at path, applying pragmas and schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; with ":memory:" a second
	// connection would also see a different database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{
		db:      db,
		changes: utils.NewBroadcaster[store.Change](16),
	}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

const selectColumns = `SELECT url, title, description, tags, private, unread, date, fingerprint FROM bookmarks`

func (s *Store) Get(ctx context.Context, url string) (*domain.Bookmark, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE url = ?`, url)
	b, err := scanBookmark(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bookmark: %w", err)
	}
	return b, nil
}

// List pushes every criterion into SQL: the text query runs against the
// pre-folded search column.
func (s *Store) List(ctx context.Context, f domain.Filter) ([]*domain.Bookmark, error) {
	var (
		where []string
		args  []any
	)
	if text := domain.Fold(strings.TrimSpace(f.Text)); text != "" {
		where = append(where, `search LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(text)+"%")
	}
	if f.Unread != nil {
		where = append(where, `unread = ?`)
		args = append(args, *f.Unread)
	}
	if f.Private != nil {
		where = append(where, `private = ?`)
		args = append(args, *f.Private)
	}

	query := selectColumns
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY date DESC, url ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer utils.Close(rows)

	bookmarks := make([]*domain.Bookmark, 0)
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	return bookmarks, nil
}

const upsertSQL = `
INSERT INTO bookmarks (url, title, description, tags, private, unread, date, fingerprint, search)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
    title = excluded.title,
    description = excluded.description,
    tags = excluded.tags,
    private = excluded.private,
    unread = excluded.unread,
    date = excluded.date,
    fingerprint = excluded.fingerprint,
    search = excluded.search`

// Apply runs the changeset in one SQL transaction.
func (s *Store) Apply(ctx context.Context, cs *store.Changeset) error {
	if cs.Len() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, url := range cs.Deletes() {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bookmarks WHERE url = ?`, url); err != nil {
			return fmt.Errorf("failed to delete bookmark: %w", err)
		}
	}

	if puts := cs.Puts(); len(puts) > 0 {
		stmt, err := tx.PrepareContext(ctx, upsertSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer utils.Close(stmt)

		for _, b := range puts {
			if _, err := stmt.ExecContext(ctx,
				b.URL, b.Title, b.Description, b.Tags,
				b.Private, b.Unread, b.Date.UnixNano(),
				fingerprintValue(b.Fingerprint), searchText(b),
			); err != nil {
				return fmt.Errorf("failed to save bookmark %s: %w", b.URL, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.changes.Publish(cs.Change())
	return nil
}

func (s *Store) Subscribe(ctx context.Context) (<-chan store.Change, error) {
	return s.changes.Subscribe(ctx), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	s.changes.Close()
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row scanner) (*domain.Bookmark, error) {
	var (
		b    domain.Bookmark
		date int64
		fp   sql.NullString
	)
	if err := row.Scan(&b.URL, &b.Title, &b.Description, &b.Tags, &b.Private, &b.Unread, &date, &fp); err != nil {
		return nil, err
	}
	b.Date = time.Unix(0, date).UTC()
	if fp.Valid {
		b.Fingerprint = domain.Confirmed(fp.String)
	}
	return &b, nil
}

func fingerprintValue(f domain.Fingerprint) sql.NullString {
	v, ok := f.Value()
	return sql.NullString{String: v, Valid: ok}
}

func searchText(b *domain.Bookmark) string {
	return domain.Fold(b.Title) + searchSep + domain.Fold(b.URL) + searchSep + domain.Fold(b.Description)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
