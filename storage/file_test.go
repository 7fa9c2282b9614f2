package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/sip-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend, err := NewFileBackend(dir, logger)
	require.NoError(t, err)
	assert.True(t, backend.Available(context.Background()))
	assert.Equal(t, "file://"+dir, backend.LocationURI())

	_, err = backend.Fetch(context.Background(), "provisioning-state.json")
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.NoError(t, backend.Store(context.Background(), "provisioning-state.json", []byte(`{"version":1}`)))
	require.NoError(t, backend.Store(context.Background(), "provisioning-state.json", []byte(`{"version":2}`)))

	data, err := backend.Fetch(context.Background(), "provisioning-state.json")
	require.NoError(t, err)
	assert.Equal(t, `{"version":2}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileBackend_InvalidKey(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	for _, key := range []string{"", "..", "../escape.json", "nested/key.json"} {
		assert.Error(t, backend.Store(context.Background(), key, []byte("x")), key)
		_, err := backend.Fetch(context.Background(), key)
		assert.Error(t, err, key)
	}
}
