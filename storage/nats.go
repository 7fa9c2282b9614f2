package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

// NATSBackend implements a storage backend on a NATS JetStream key-value bucket.
// The bucket is created on first use and keeps a short history of revisions.
type NATSBackend struct {
	nc          *nats.Conn
	kv          jetstream.KeyValue
	bucket      string
	log         *slog.Logger
	locationURI string
}

// NewNATSBackend connects to the NATS server at natsURL and opens bucket.
func NewNATSBackend(ctx context.Context, natsURL, bucket string, log *slog.Logger, opts ...nats.Option) (*NATSBackend, error) {
	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "SIP phone provisioning state",
		History:     5,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}

	return &NATSBackend{
		nc:          nc,
		kv:          kv,
		bucket:      bucket,
		log:         log,
		locationURI: fmt.Sprintf("nats://%s/%s", nc.ConnectedAddr(), bucket),
	}, nil
}

// Fetch returns the latest revision stored under key.
func (b *NATSBackend) Fetch(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()

	entry, err := b.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, interfaces.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	b.log.Debug("Fetched content from NATS KV",
		slog.String("bucket", b.bucket),
		slog.String("key", key),
		slog.Uint64("revision", entry.Revision()),
		slog.Duration("duration", time.Since(start)))

	return entry.Value(), nil
}

// Store puts a new revision under key.
func (b *NATSBackend) Store(ctx context.Context, key string, data []byte) error {
	revision, err := b.kv.Put(ctx, key, data)
	if err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}

	b.log.Debug("Stored content in NATS KV",
		slog.String("bucket", b.bucket),
		slog.String("key", key),
		slog.Uint64("revision", revision))

	return nil
}

// Available reports whether the connection to the NATS server is up.
func (b *NATSBackend) Available(ctx context.Context) bool {
	return b.nc.IsConnected()
}

// Name returns a unique identifier for this storage backend.
func (b *NATSBackend) Name() string {
	return fmt.Sprintf("nats-%s", b.bucket)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *NATSBackend) LocationURI() string {
	return b.locationURI
}

// Close drains the NATS connection.
func (b *NATSBackend) Close() error {
	return b.nc.Drain()
}
