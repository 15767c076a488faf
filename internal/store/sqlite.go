// Package store keeps a catalogue of solver checkpoints in SQLite.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/yourusername/farklesolver/pkg/solver"
)

// ErrNotFound is returned when no checkpoint has the requested name.
var ErrNotFound = errors.New("checkpoint not found")

// Entry describes a stored checkpoint.
type Entry struct {
	Name        string
	Generation  int
	Fingerprint uint64 // solver.Fingerprint of the dice
	Size        int64  // Checkpoint size in bytes
	CreatedAt   time.Time
}

// SQLiteStore stores named checkpoints as blobs.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalogue at path. ":memory:" gives a
// private in-memory catalogue.
func Open(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("empty sqlite database path")
	}
	if path != ":memory:" {
		parent := filepath.Dir(path)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
    name TEXT PRIMARY KEY,
    generation INTEGER NOT NULL,
    fingerprint INTEGER NOT NULL,
    size_bytes INTEGER NOT NULL,
    data BLOB NOT NULL,
    created_at_ms INTEGER NOT NULL
)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores st under name, replacing any previous checkpoint of that name.
func (s *SQLiteStore) Save(ctx context.Context, name string, st *solver.Strategy) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("empty checkpoint name")
	}
	var buf bytes.Buffer
	if err := solver.WriteCheckpoint(&buf, st); err != nil {
		return fmt.Errorf("encode checkpoint %q: %w", name, err)
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO checkpoints (name, generation, fingerprint, size_bytes, data, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
    generation = excluded.generation,
    fingerprint = excluded.fingerprint,
    size_bytes = excluded.size_bytes,
    data = excluded.data,
    created_at_ms = excluded.created_at_ms
`, name, st.N(), int64(st.Fingerprint()), buf.Len(), buf.Bytes(), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("save checkpoint %q: %w", name, err)
	}
	log.Info().Str("name", name).Int("generation", st.N()).Int("bytes", buf.Len()).Msg("checkpoint-stored")
	return nil
}

// Load restores the checkpoint stored under name.
func (s *SQLiteStore) Load(ctx context.Context, name string) (*solver.Strategy, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM checkpoints WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %q: %w", name, err)
	}
	st, err := solver.ReadCheckpoint(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode checkpoint %q: %w", name, err)
	}
	return st, nil
}

// List returns every stored checkpoint, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name, generation, fingerprint, size_bytes, created_at_ms
FROM checkpoints
ORDER BY created_at_ms DESC, name ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			fp        int64
			createdMs int64
		)
		if err := rows.Scan(&e.Name, &e.Generation, &fp, &e.Size, &createdMs); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		e.Fingerprint = uint64(fp)
		e.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return out, nil
}

// Delete removes the checkpoint stored under name.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete checkpoint %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete checkpoint %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}
