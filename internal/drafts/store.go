// Package drafts keeps encoded photos in SQLite so a share started in one
// process can be picked up by another.
package drafts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/memohai/sharekit/internal/codec"
	"github.com/memohai/sharekit/internal/share"
)

// ErrNotFound is returned when a draft id is unknown.
var ErrNotFound = errors.New("draft not found")

// Draft is a stored photo with its bookkeeping.
type Draft struct {
	ID        string      `json:"id"`
	Photo     share.Photo `json:"photo"`
	CreatedAt time.Time   `json:"created_at"`
}

// Summary describes a draft without decoding it.
type Summary struct {
	ID        string    `json:"id"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps a SQLite database holding codec-encoded photos.
type Store struct {
	db     *sql.DB
	codec  *codec.Codec
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the database at path, ensures its directory
// exists, and runs schema migrations.
func Open(path string, c *codec.Codec, log *slog.Logger) (*Store, error) {
	if c == nil {
		c = codec.New()
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create drafts dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers in other processes proceed while one writes; the busy
	// timeout makes writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	s := &Store{
		db:     db,
		codec:  c,
		logger: log.With(slog.String("service", "drafts")),
		now:    func() time.Time { return time.Now().UTC() },
	}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS drafts (
    id TEXT PRIMARY KEY,
    schema_version INTEGER NOT NULL,
    payload BLOB NOT NULL,
    created_at TEXT NOT NULL
);
`)
	return err
}

// Save encodes p and stores it under a new id.
func (s *Store) Save(ctx context.Context, p share.Photo) (Draft, error) {
	payload, err := s.codec.Marshal(p)
	if err != nil {
		return Draft{}, fmt.Errorf("encode draft: %w", err)
	}
	d := Draft{
		ID:        uuid.NewString(),
		Photo:     p,
		CreatedAt: s.now().Truncate(time.Second),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, schema_version, payload, created_at) VALUES (?, ?, ?, ?)`,
		d.ID, codec.SchemaVersion, payload, d.CreatedAt.Format(time.RFC3339)); err != nil {
		return Draft{}, fmt.Errorf("insert draft: %w", err)
	}
	s.logger.Info("draft saved", slog.String("id", d.ID), slog.Int("size_bytes", len(payload)))
	return d, nil
}

// Get loads and decodes a draft.
func (s *Store) Get(ctx context.Context, id string) (Draft, error) {
	var payload []byte
	var createdAt string
	err := s.db.QueryRowContext(ctx, `SELECT payload, created_at FROM drafts WHERE id = ?`, id).
		Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Draft{}, err
	}
	photo, err := s.codec.Unmarshal(payload)
	if err != nil {
		return Draft{}, fmt.Errorf("decode draft %s: %w", id, err)
	}
	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Draft{}, fmt.Errorf("parse created_at of %s: %w", id, err)
	}
	return Draft{ID: id, Photo: photo, CreatedAt: created}, nil
}

// List returns all drafts, oldest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, length(payload), created_at FROM drafts ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var createdAt string
		if err := rows.Scan(&sum.ID, &sum.SizeBytes, &createdAt); err != nil {
			return nil, err
		}
		if sum.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes a draft.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.logger.Info("draft deleted", slog.String("id", id))
	return nil
}
