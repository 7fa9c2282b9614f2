package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

// PostgresBackend implements a storage backend on a PostgreSQL table.
type PostgresBackend struct {
	pool        *pgxpool.Pool
	database    string
	log         *slog.Logger
	locationURI string
}

// NewPostgresBackend connects to the database at connString and ensures the
// documents table exists. maskedURI is reported by LocationURI.
func NewPostgresBackend(ctx context.Context, connString, maskedURI string, log *slog.Logger) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+documentsTable+` (
		key        TEXT PRIMARY KEY,
		data       BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	return &PostgresBackend{
		pool:        pool,
		database:    pool.Config().ConnConfig.Database,
		log:         log,
		locationURI: maskedURI,
	}, nil
}

// Fetch returns the document stored under key.
func (b *PostgresBackend) Fetch(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.pool.QueryRow(ctx, `SELECT data FROM `+documentsTable+` WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, interfaces.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %s: %w", key, err)
	}

	b.log.Debug("Fetched content from Postgres",
		slog.String("database", b.database),
		slog.String("key", key),
		slog.Int("size", len(data)))

	return data, nil
}

// Store upserts the document stored under key.
func (b *PostgresBackend) Store(ctx context.Context, key string, data []byte) error {
	_, err := b.pool.Exec(ctx, `INSERT INTO `+documentsTable+` (key, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		key, data)
	if err != nil {
		return fmt.Errorf("storing document %s: %w", key, err)
	}

	b.log.Debug("Stored content in Postgres",
		slog.String("database", b.database),
		slog.String("key", key),
		slog.Int("size", len(data)))

	return nil
}

// Available pings the database.
func (b *PostgresBackend) Available(ctx context.Context) bool {
	if err := b.pool.Ping(ctx); err != nil {
		b.log.Debug("Postgres backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *PostgresBackend) Name() string {
	return fmt.Sprintf("postgres-%s", b.database)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *PostgresBackend) LocationURI() string {
	return b.locationURI
}

// Close closes the connection pool.
func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}
