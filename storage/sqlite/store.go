// Package sqlite is a persistent storage.Store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cyp0633/libagenda/lifecycle"
	"github.com/cyp0633/libagenda/recurrence"
	"github.com/cyp0633/libagenda/storage"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/samber/mo"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// fixed width so text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const columns = `id, kind, title, content, rrule, end_time, author_id, author,
	status, restore_requested, revision, created_at, updated_at`

// Store implements storage.Store on a SQLite database
type Store struct {
	db *sql.DB
	// writeMu orders writes and their change notifications
	writeMu sync.Mutex
	hub     *storage.Hub
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the clock used for CreatedAt/UpdatedAt
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens the database at path, creating parent directories, and runs migrations.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}

	s := &Store{
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := runMigrations(db, s.logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s.db = db
	s.hub = storage.NewHub(0, s.logger)
	s.logger.Info().Str("path", path).Msg("sqlite store opened")
	return s, nil
}

func runMigrations(db *sql.DB, logger zerolog.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// gooseLogger routes migration output through zerolog
type gooseLogger struct {
	logger zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(strings.TrimSpace(format), v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error().Msgf(strings.TrimSpace(format), v...)
}

func (s *Store) Create(ctx context.Context, item *lifecycle.Item) error {
	if item == nil || item.ID == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "item id is required"}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.now()
	stored := *item
	stored.Revision = 1
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		exists, err := rowExists(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if exists {
			return &storage.Error{Type: storage.ErrAlreadyExists, Message: "item already exists"}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO items (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stored.ID, string(stored.Kind), stored.Title, stored.Content, stored.RuleString,
			endTimeValue(stored.EndTime), stored.AuthorID, stored.Author,
			string(stored.Status), stored.RestoreRequested, stored.Revision,
			formatTime(stored.CreatedAt), formatTime(stored.UpdatedAt))
		return err
	})
	if err != nil {
		return wrapErr("create item", err)
	}

	*item = stored
	s.hub.Publish(storage.Change{Type: storage.ChangeCreated, Item: stored})
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*lifecycle.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "item not found"}
	}
	if err != nil {
		return nil, wrapErr("get item", err)
	}
	return item, nil
}

func (s *Store) Update(ctx context.Context, item *lifecycle.Item) error {
	if item == nil || item.ID == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "item id is required"}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	stored := *item
	stored.Revision = item.Revision + 1
	stored.UpdatedAt = s.now()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE items SET kind = ?, title = ?, content = ?, rrule = ?, end_time = ?,
				author_id = ?, author = ?, status = ?, restore_requested = ?,
				revision = ?, updated_at = ?
			WHERE id = ? AND revision = ?`,
			string(stored.Kind), stored.Title, stored.Content, stored.RuleString,
			endTimeValue(stored.EndTime), stored.AuthorID, stored.Author,
			string(stored.Status), stored.RestoreRequested,
			stored.Revision, formatTime(stored.UpdatedAt),
			item.ID, item.Revision)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 1 {
			return tx.QueryRowContext(ctx, `SELECT created_at FROM items WHERE id = ?`, item.ID).
				Scan(timeScanner{&stored.CreatedAt})
		}

		exists, err := rowExists(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if !exists {
			return &storage.Error{Type: storage.ErrNotFound, Message: "item not found"}
		}
		return &storage.Error{Type: storage.ErrConflict, Message: "item was modified concurrently"}
	})
	if err != nil {
		return wrapErr("update item", err)
	}

	*item = stored
	s.hub.Publish(storage.Change{Type: storage.ChangeUpdated, Item: stored})
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var deleted *lifecycle.Item
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		item, err := scanItem(tx.QueryRowContext(ctx, `SELECT `+columns+` FROM items WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return &storage.Error{Type: storage.ErrNotFound, Message: "item not found"}
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
			return err
		}
		deleted = item
		return nil
	})
	if err != nil {
		return wrapErr("delete item", err)
	}

	s.hub.Publish(storage.Change{Type: storage.ChangeDeleted, Item: *deleted})
	return nil
}

func (s *Store) List(ctx context.Context, opts storage.ListOptions) ([]lifecycle.Item, error) {
	var (
		where []string
		args  []any
	)
	if opts.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(opts.Kind))
	}
	if len(opts.Statuses) > 0 {
		marks := make([]string, len(opts.Statuses))
		for i, st := range opts.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if opts.AuthorID != "" {
		where = append(where, "author_id = ?")
		args = append(args, opts.AuthorID)
	}

	query := `SELECT ` + columns + ` FROM items`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list items", err)
	}
	defer rows.Close()

	var items []lifecycle.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, wrapErr("scan item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list items", err)
	}
	return items, nil
}

func (s *Store) Watch(ctx context.Context) (<-chan storage.Change, error) {
	return s.hub.Subscribe(ctx), nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.hub.Close()
	return s.db.Close()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func rowExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM items WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// wrapErr passes storage errors through and wraps driver errors
func wrapErr(op string, err error) error {
	var se *storage.Error
	if errors.As(err, &se) {
		return se
	}
	return fmt.Errorf("%s: %w", op, err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*lifecycle.Item, error) {
	var (
		item                 lifecycle.Item
		kind, status         string
		endTime              sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&item.ID, &kind, &item.Title, &item.Content, &item.RuleString, &endTime,
		&item.AuthorID, &item.Author, &status, &item.RestoreRequested, &item.Revision,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	item.Kind = lifecycle.Kind(kind)
	item.Status = lifecycle.Status(status)
	item.EndTime = mo.None[recurrence.TimeOfDay]()
	if endTime.Valid && endTime.String != "" {
		tod, err := recurrence.ParseTimeOfDay(endTime.String)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", item.ID, err)
		}
		item.EndTime = mo.Some(tod)
	}
	if item.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("item %s created_at: %w", item.ID, err)
	}
	if item.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("item %s updated_at: %w", item.ID, err)
	}
	return &item, nil
}

func endTimeValue(t mo.Option[recurrence.TimeOfDay]) sql.NullString {
	if v, ok := t.Get(); ok {
		return sql.NullString{String: v.String(), Valid: true}
	}
	return sql.NullString{}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timeScanner reads a formatted timestamp column
type timeScanner struct {
	t *time.Time
}

func (ts timeScanner) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("unexpected timestamp type %T", src)
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return err
	}
	*ts.t = t
	return nil
}
