package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/sip-provisioning-backend/cryptoutils"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

// DefaultSnapshotKey is the key the registry document is stored under.
const DefaultSnapshotKey = "provisioning-state.json"

// eventPublishTimeout bounds how long a mutation waits on event publishers.
const eventPublishTimeout = 500 * time.Millisecond

// Store is the process wide owner of device records and the shared settings.
// All reads and writes go through one mutex; every mutation rewrites the whole
// snapshot to the backend before returning.
type Store struct {
	mu       sync.Mutex
	devices  map[interfaces.DeviceID]interfaces.Device
	settings interfaces.Settings

	backend interfaces.StorageBackend
	key     string
	sealer  cryptoutils.CredentialSealer
	events  interfaces.EventPublisher
	seed    *interfaces.Settings
	now     func() time.Time
	log     *slog.Logger
}

var (
	_ interfaces.DeviceRegistry = (*Store)(nil)
	_ interfaces.SettingsStore  = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithSealer seals SIP passwords in the stored snapshot.
func WithSealer(sealer cryptoutils.CredentialSealer) Option {
	return func(s *Store) {
		if sealer != nil {
			s.sealer = sealer
		}
	}
}

// WithEventPublisher publishes registry changes.
func WithEventPublisher(events interfaces.EventPublisher) Option {
	return func(s *Store) {
		s.events = events
	}
}

// WithSeedSettings sets the settings used when the backend holds no snapshot yet.
func WithSeedSettings(seed interfaces.Settings) Option {
	return func(s *Store) {
		clone := seed.Clone()
		s.seed = &clone
	}
}

// WithSnapshotKey overrides DefaultSnapshotKey.
func WithSnapshotKey(key string) Option {
	return func(s *Store) {
		s.key = key
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open loads the registry snapshot from backend. A backend without a snapshot
// yields an empty registry with seed or default settings; any other fetch or
// decode failure is returned, so a broken backend is never overwritten with
// an empty document.
func Open(ctx context.Context, backend interfaces.StorageBackend, log *slog.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		devices: make(map[interfaces.DeviceID]interfaces.Device),
		backend: backend,
		key:     DefaultSnapshotKey,
		sealer:  cryptoutils.PlaintextSealer{},
		now:     func() time.Time { return time.Now().UTC() },
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := backend.Fetch(ctx, s.key)
	switch {
	case errors.Is(err, interfaces.ErrContentNotFound):
		s.settings = interfaces.DefaultSettings()
		if s.seed != nil {
			s.settings = s.seed.Clone()
		}
		s.log.Info("No registry snapshot found, starting empty",
			slog.String("backend", backend.Name()),
			slog.String("key", s.key))
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load registry snapshot: %w", err)
	}

	snapshot, err := DecodeSnapshot(data, s.sealer)
	if err != nil {
		return nil, fmt.Errorf("failed to decode registry snapshot: %w", err)
	}

	for _, device := range snapshot.Phones {
		if device.ID == "" {
			s.log.Warn("Skipping snapshot record without identity")
			continue
		}
		s.devices[device.ID] = device
	}
	s.settings = snapshot.GlobalConfig

	s.log.Info("Loaded registry snapshot",
		slog.String("backend", backend.Name()),
		slog.Int("devices", len(s.devices)),
		slog.Int("contacts", len(s.settings.Contacts)))
	return s, nil
}

// persistLocked writes the full snapshot. Callers hold s.mu.
func (s *Store) persistLocked(ctx context.Context, op string) error {
	snapshot := Snapshot{
		Version:      SnapshotVersion,
		Phones:       s.listLocked(),
		GlobalConfig: s.settings.Clone(),
	}

	data, err := EncodeSnapshot(snapshot, s.sealer)
	if err != nil {
		return &interfaces.PersistenceError{Op: op, Err: err}
	}

	if err := s.backend.Store(ctx, s.key, data); err != nil {
		s.log.Error("Failed to persist registry snapshot",
			slog.String("op", op),
			slog.String("backend", s.backend.Name()),
			"err", err)
		return &interfaces.PersistenceError{Op: op, Err: err}
	}
	return nil
}

func (s *Store) publish(ctx context.Context, eventType interfaces.EventType, id interfaces.DeviceID) {
	if s.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, eventPublishTimeout)
	defer cancel()

	event := interfaces.Event{Type: eventType, DeviceID: id, Time: s.now()}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("Failed to publish registry event",
			slog.String("type", string(eventType)),
			slog.String("deviceID", id.String()),
			"err", err)
	}
}
