package storage

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/ruteri/sip-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLocation(t *testing.T, uri string) interfaces.StorageBackendLocation {
	t.Helper()
	location, err := interfaces.NewStorageBackendLocation(uri)
	require.NoError(t, err)
	return location
}

func TestStorageBackendFactory_File(t *testing.T) {
	factory := NewStorageBackendFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))
	dir := t.TempDir()

	backend, err := factory.StorageBackendFor(mustLocation(t, "file://"+dir))
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, backend)
	assert.Equal(t, "file://"+dir, backend.LocationURI())
}

func TestStorageBackendFactory_SQLite(t *testing.T) {
	factory := NewStorageBackendFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))
	dbPath := filepath.Join(t.TempDir(), "state.db")

	backend, err := factory.StorageBackendFor(mustLocation(t, "sqlite://"+dbPath))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteBackend{}, backend)
	backend.(*SQLiteBackend).Close()
}

func TestStorageBackendFactory_InvalidLocations(t *testing.T) {
	factory := NewStorageBackendFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := factory.StorageBackendFor(interfaces.StorageBackendLocation{Raw: "ftp://example.com/x"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	_, err = factory.StorageBackendFor(mustLocation(t, "s3:///prefix"))
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	_, err = factory.StorageBackendFor(mustLocation(t, "ipfs://127.0.0.1:5001/dir?timeout=soon"))
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	_, err = interfaces.NewStorageBackendLocation("github://owner/repo")
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}

func TestStorageBackendFactory_CreateMultiBackend(t *testing.T) {
	factory := NewStorageBackendFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))

	single, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
		mustLocation(t, "file://"+t.TempDir()),
		{Raw: "ftp://ignored"},
	})
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, single)

	multi, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
		mustLocation(t, "file://"+t.TempDir()),
		mustLocation(t, "file://"+t.TempDir()),
	})
	require.NoError(t, err)
	assert.IsType(t, &MultiStorageBackend{}, multi)

	_, err = factory.CreateMultiBackend(nil)
	assert.Error(t, err)
}

func TestMaskURI(t *testing.T) {
	assert.Equal(t, "postgres://user:***@db:5432/prov", maskURI("postgres://user:secret@db:5432/prov"))
	assert.Equal(t, "vault://***@vault:8200/secret/sip", maskURI("vault://s.token@vault:8200/secret/sip"))
	assert.Equal(t, "file:///var/lib/sip", maskURI("file:///var/lib/sip"))
}
