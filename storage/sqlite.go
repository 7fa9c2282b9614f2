package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

// documentsTable holds one row per stored key in the SQL backends.
const documentsTable = "provisioning_documents"

const (
	sqliteDirPermissions = 0750
	sqliteBusyTimeoutMS  = 5000
)

// SQLiteBackend implements a storage backend on a single SQLite database file.
type SQLiteBackend struct {
	db          *sql.DB
	path        string
	log         *slog.Logger
	locationURI string
}

// NewSQLiteBackend opens (creating if needed) the database at dbPath and
// ensures the documents table exists.
func NewSQLiteBackend(ctx context.Context, dbPath string, log *slog.Logger) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), sqliteDirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", dbPath, sqliteBusyTimeoutMS)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+documentsTable+` (
		key        TEXT PRIMARY KEY,
		data       BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	return &SQLiteBackend{
		db:          db,
		path:        dbPath,
		log:         log,
		locationURI: fmt.Sprintf("sqlite://%s", dbPath),
	}, nil
}

// Fetch returns the document stored under key.
func (b *SQLiteBackend) Fetch(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM `+documentsTable+` WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %s: %w", key, err)
	}

	b.log.Debug("Fetched content from SQLite",
		slog.String("path", b.path),
		slog.String("key", key),
		slog.Int("size", len(data)))

	return data, nil
}

// Store upserts the document stored under key.
func (b *SQLiteBackend) Store(ctx context.Context, key string, data []byte) error {
	_, err := b.db.ExecContext(ctx, `INSERT INTO `+documentsTable+` (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storing document %s: %w", key, err)
	}

	b.log.Debug("Stored content in SQLite",
		slog.String("path", b.path),
		slog.String("key", key),
		slog.Int("size", len(data)))

	return nil
}

// Available pings the database.
func (b *SQLiteBackend) Available(ctx context.Context) bool {
	if err := b.db.PingContext(ctx); err != nil {
		b.log.Debug("SQLite backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *SQLiteBackend) Name() string {
	return fmt.Sprintf("sqlite-%s", filepath.Base(b.path))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *SQLiteBackend) LocationURI() string {
	return b.locationURI
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
