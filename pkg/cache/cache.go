// Package cache persists per-block compile results keyed by content
// hash, so blocks that have not changed skip the interpreter on later
// runs.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	_ "modernc.org/sqlite"
)

// Status values for a cached block result.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is one cached block result.
type Entry struct {
	Hash      string
	File      string
	Name      string
	Mode      string
	Status    string
	Message   string
	CreatedAt time.Time
}

// Cache is a SQLite-backed block result store.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at path. ":memory:" gives
// a throwaway database.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if path == ":memory:" {
		// A pooled second connection would see its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS blocks (
			hash TEXT PRIMARY KEY NOT NULL,
			file TEXT NOT NULL,
			name TEXT NOT NULL,
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)
	`)
	return err
}

// Key derives the cache hash for a block from its reconstructed source
// and the inputs that change its compiled meaning. The source already
// encodes line geometry, so moving a block within its file changes the
// key; the file path is included because the interpreter embeds it in
// compile errors.
func Key(file, mode, source string) string {
	h := sha256.New()
	io.WriteString(h, file)
	h.Write([]byte{0})
	io.WriteString(h, mode)
	h.Write([]byte{0})
	io.WriteString(h, source)
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup returns the entry for hash, or nil when the cache has none.
func (c *Cache) Lookup(hash string) (*Entry, error) {
	row := c.db.QueryRow(`
		SELECT hash, file, name, mode, status, message, created_at
		FROM blocks
		WHERE hash = ?
	`, hash)

	var e Entry
	var created string
	err := row.Scan(&e.Hash, &e.File, &e.Name, &e.Mode, &e.Status, &e.Message, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying cache: %w", err)
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &e, nil
}

// Store inserts or replaces the result for a block hash.
func (c *Cache) Store(e *Entry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO blocks (hash, file, name, mode, status, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.Hash, e.File, e.Name, e.Mode, e.Status, e.Message, created.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
