package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ruteri/sip-provisioning-backend/cryptoutils"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memBackend is an in-memory StorageBackend with switchable failures.
type memBackend struct {
	mu       sync.Mutex
	data     map[string][]byte
	stores   int
	storeErr error
	fetchErr error
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string][]byte)}
}

func (b *memBackend) Fetch(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	data, ok := b.data[key]
	if !ok {
		return nil, interfaces.ErrContentNotFound
	}
	return data, nil
}

func (b *memBackend) Store(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.storeErr != nil {
		return b.storeErr
	}
	b.stores++
	b.data[key] = append([]byte(nil), data...)
	return nil
}

func (b *memBackend) Available(ctx context.Context) bool { return true }
func (b *memBackend) Name() string                       { return "memory" }
func (b *memBackend) LocationURI() string                { return "memory://" }

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event interfaces.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedClock returns increasing timestamps one minute apart.
func fixedClock() func() time.Time {
	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
}

func validNewDevice() interfaces.NewDevice {
	return interfaces.NewDevice{
		MAC:         "00:04:F2:AC:2B:A0",
		Model:       interfaces.Model601,
		Label:       "Front desk",
		SIPServer:   "pbx.local",
		SIPUser:     "1001",
		SIPPassword: "secret",
		DisplayName: "Lobby",
	}
}

func openStore(t *testing.T, backend interfaces.StorageBackend, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock())}, opts...)
	store, err := Open(context.Background(), backend, testLogger(), opts...)
	require.NoError(t, err)
	return store
}

func TestOpen_EmptyBackend(t *testing.T) {
	store := openStore(t, newMemBackend())

	assert.Empty(t, store.List())
	assert.Equal(t, interfaces.DefaultSettings(), store.Settings())
}

func TestOpen_SeedSettings(t *testing.T) {
	seed := interfaces.Settings{SIPServer: "pbx.local", SIPPort: "5080", Contacts: []interfaces.Contact{{Name: "Reception", Extension: "100"}}}
	store := openStore(t, newMemBackend(), WithSeedSettings(seed))
	assert.Equal(t, seed, store.Settings())
}

func TestOpen_FetchErrorIsFatal(t *testing.T) {
	backend := newMemBackend()
	backend.fetchErr = errors.New("connection refused")

	_, err := Open(context.Background(), backend, testLogger())
	require.Error(t, err)
	assert.Equal(t, 0, backend.stores)
}

func TestOpen_CorruptSnapshotIsFatal(t *testing.T) {
	backend := newMemBackend()
	backend.data[DefaultSnapshotKey] = []byte("{not json")

	_, err := Open(context.Background(), backend, testLogger())
	require.Error(t, err)
}

func TestOpen_LegacyDataFile(t *testing.T) {
	backend := newMemBackend()
	backend.data[DefaultSnapshotKey] = []byte(`{
		// exported from the old installation
		"phones": [
			{"mac": "00:04:F2:AC:2B:A0", "model": "601", "label": "Desk", "sipUser": "1001", "sipPassword": "pw", "displayName": "Lobby", "createdAt": "2024-01-02T03:04:05.000Z"},
			{"mac": "", "model": "331"},
		],
		"globalConfig": {"sipServer": "pbx.local", "sipPort": "5060"}
	}`)

	store := openStore(t, backend)

	devices := store.List()
	require.Len(t, devices, 1)
	assert.Equal(t, interfaces.DeviceID("0004f2ac2ba0"), devices[0].ID)
	assert.Equal(t, "pw", devices[0].SIPPassword)

	settings := store.Settings()
	assert.Equal(t, "pbx.local", settings.SIPServer)
	assert.NotNil(t, settings.Contacts)
}

func TestCreate(t *testing.T) {
	backend := newMemBackend()
	store := openStore(t, backend)

	device, err := store.Create(context.Background(), validNewDevice())
	require.NoError(t, err)
	assert.Equal(t, interfaces.DeviceID("0004f2ac2ba0"), device.ID)
	assert.Equal(t, "00:04:F2:AC:2B:A0", device.ID.Display())
	assert.False(t, device.CreatedAt.IsZero())
	assert.Equal(t, 1, backend.stores)

	got, err := store.Get("0004f2ac2ba0")
	require.NoError(t, err)
	assert.Equal(t, device, got)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*interfaces.NewDevice)
		field  string
	}{
		{name: "missing mac", modify: func(d *interfaces.NewDevice) { d.MAC = "" }, field: "mac"},
		{name: "missing model", modify: func(d *interfaces.NewDevice) { d.Model = "" }, field: "model"},
		{name: "missing sip server", modify: func(d *interfaces.NewDevice) { d.SIPServer = "" }, field: "sipServer"},
		{name: "missing sip user", modify: func(d *interfaces.NewDevice) { d.SIPUser = "" }, field: "sipUser"},
		{name: "missing password", modify: func(d *interfaces.NewDevice) { d.SIPPassword = "" }, field: "sipPassword"},
		{name: "missing display name", modify: func(d *interfaces.NewDevice) { d.DisplayName = "" }, field: "displayName"},
		{name: "short mac", modify: func(d *interfaces.NewDevice) { d.MAC = "00:04:F2" }, field: "mac"},
		{name: "unknown model", modify: func(d *interfaces.NewDevice) { d.Model = "550" }, field: "model"},
		{name: "first missing field wins", modify: func(d *interfaces.NewDevice) {
			d.SIPUser = ""
			d.DisplayName = ""
		}, field: "sipUser"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newMemBackend()
			store := openStore(t, backend)

			fields := validNewDevice()
			tt.modify(&fields)

			_, err := store.Create(context.Background(), fields)
			var validationErr *interfaces.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
			assert.Empty(t, store.List())
			assert.Equal(t, 0, backend.stores)
		})
	}
}

func TestList_NewestFirst(t *testing.T) {
	store := openStore(t, newMemBackend())

	for _, mac := range []string{"000000000001", "000000000002", "000000000003"} {
		fields := validNewDevice()
		fields.MAC = mac
		_, err := store.Create(context.Background(), fields)
		require.NoError(t, err)
	}

	devices := store.List()
	require.Len(t, devices, 3)
	assert.Equal(t, interfaces.DeviceID("000000000003"), devices[0].ID)
	assert.Equal(t, interfaces.DeviceID("000000000001"), devices[2].ID)
}

func TestUpdate(t *testing.T) {
	store := openStore(t, newMemBackend())
	created, err := store.Create(context.Background(), validNewDevice())
	require.NoError(t, err)

	label := "Back office"
	model := interfaces.Model331
	empty := ""
	updated, err := store.Update(context.Background(), created.ID, interfaces.DeviceUpdate{
		Label:       &label,
		Model:       &model,
		SIPPassword: &empty,
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "Back office", updated.Label)
	assert.Equal(t, interfaces.Model331, updated.Model)
	assert.Equal(t, "secret", updated.SIPPassword)
	assert.Equal(t, "Lobby", updated.DisplayName)

	password := "new-secret"
	updated, err = store.Update(context.Background(), created.ID, interfaces.DeviceUpdate{SIPPassword: &password})
	require.NoError(t, err)
	assert.Equal(t, "new-secret", updated.SIPPassword)
}

func TestUpdate_Errors(t *testing.T) {
	store := openStore(t, newMemBackend())

	label := "x"
	_, err := store.Update(context.Background(), "0004f2ac2ba0", interfaces.DeviceUpdate{Label: &label})
	assert.ErrorIs(t, err, interfaces.ErrDeviceNotFound)

	model := interfaces.PhoneModel("999")
	_, err = store.Update(context.Background(), "0004f2ac2ba0", interfaces.DeviceUpdate{Model: &model})
	var validationErr *interfaces.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestDelete(t *testing.T) {
	backend := newMemBackend()
	store := openStore(t, backend)
	created, err := store.Create(context.Background(), validNewDevice())
	require.NoError(t, err)

	removed, err := store.Delete(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 2, backend.stores)

	removed, err = store.Delete(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 2, backend.stores, "deleting an unknown device must not persist")

	_, err = store.Get(created.ID)
	assert.ErrorIs(t, err, interfaces.ErrDeviceNotFound)
}

func TestAutoRegister(t *testing.T) {
	backend := newMemBackend()
	store := openStore(t, backend)

	device, err := store.AutoRegister(context.Background(), "0004f2ac2ba0")
	require.NoError(t, err)
	assert.Equal(t, interfaces.Model331, device.Model)
	assert.Equal(t, "Auto-registered 00:04:F2:AC:2B:A0", device.Label)
	assert.Equal(t, "Phone AC:2B:A0", device.DisplayName)
	assert.Empty(t, device.SIPUser)
	assert.Empty(t, device.SIPPassword)
	assert.Equal(t, 1, backend.stores)

	again, err := store.AutoRegister(context.Background(), "0004f2ac2ba0")
	require.NoError(t, err)
	assert.Equal(t, device, again)
	assert.Equal(t, 1, backend.stores)
	assert.Len(t, store.List(), 1)
}

func TestAutoRegister_KeepsExistingRecord(t *testing.T) {
	store := openStore(t, newMemBackend())
	created, err := store.Create(context.Background(), validNewDevice())
	require.NoError(t, err)

	device, err := store.AutoRegister(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, device)
}

func TestAutoRegister_ShortIdentity(t *testing.T) {
	store := openStore(t, newMemBackend())

	device, err := store.AutoRegister(context.Background(), "ac000")
	require.NoError(t, err)
	assert.Equal(t, "Auto-registered AC000", device.Label)
	assert.Equal(t, "Phone AC000", device.DisplayName)

	_, err = store.AutoRegister(context.Background(), "")
	var validationErr *interfaces.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestUpdateSettings(t *testing.T) {
	store := openStore(t, newMemBackend())

	server := "pbx.local"
	contacts := []interfaces.Contact{{Name: "Reception", Extension: "100"}, {Name: "Kitchen", Extension: "105"}}
	settings, err := store.UpdateSettings(context.Background(), interfaces.SettingsUpdate{
		SIPServer: &server,
		Contacts:  &contacts,
	})
	require.NoError(t, err)
	assert.Equal(t, "pbx.local", settings.SIPServer)
	assert.Equal(t, interfaces.DefaultSIPPort, settings.SIPPort)
	assert.Len(t, settings.Contacts, 2)

	contacts[0].Name = "mutated"
	assert.Equal(t, "Reception", store.Settings().Contacts[0].Name)

	port := "5080"
	settings, err = store.UpdateSettings(context.Background(), interfaces.SettingsUpdate{SIPPort: &port})
	require.NoError(t, err)
	assert.Equal(t, "pbx.local", settings.SIPServer)
	assert.Equal(t, "5080", settings.SIPPort)
	assert.Len(t, settings.Contacts, 2)

	empty := []interfaces.Contact{}
	settings, err = store.UpdateSettings(context.Background(), interfaces.SettingsUpdate{Contacts: &empty})
	require.NoError(t, err)
	assert.Empty(t, settings.Contacts)
}

func TestPersistenceFailure(t *testing.T) {
	backend := newMemBackend()
	store := openStore(t, backend)
	backend.storeErr = errors.New("disk full")

	_, err := store.Create(context.Background(), validNewDevice())
	var persistErr *interfaces.PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "create device", persistErr.Op)

	_, err = store.UpdateSettings(context.Background(), interfaces.SettingsUpdate{})
	require.ErrorAs(t, err, &persistErr)
}

func TestReopen(t *testing.T) {
	backend := newMemBackend()
	store := openStore(t, backend)

	created, err := store.Create(context.Background(), validNewDevice())
	require.NoError(t, err)
	_, err = store.AutoRegister(context.Background(), "001122334455")
	require.NoError(t, err)
	server := "pbx.local"
	_, err = store.UpdateSettings(context.Background(), interfaces.SettingsUpdate{SIPServer: &server})
	require.NoError(t, err)

	reopened := openStore(t, backend)
	assert.Equal(t, store.List(), reopened.List())
	assert.Equal(t, store.Settings(), reopened.Settings())

	got, err := reopened.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestSealedSnapshot(t *testing.T) {
	sealer, err := cryptoutils.NewPassphraseSealer("correct horse battery staple")
	require.NoError(t, err)

	backend := newMemBackend()
	store := openStore(t, backend, WithSealer(sealer))
	_, err = store.Create(context.Background(), validNewDevice())
	require.NoError(t, err)

	raw := string(backend.data[DefaultSnapshotKey])
	assert.NotContains(t, raw, `"secret"`)
	assert.Contains(t, raw, cryptoutils.SealedPrefix)

	reopened := openStore(t, backend, WithSealer(sealer))
	got, err := reopened.Get("0004f2ac2ba0")
	require.NoError(t, err)
	assert.Equal(t, "secret", got.SIPPassword)

	_, err = Open(context.Background(), backend, testLogger())
	assert.Error(t, err, "sealed snapshot must not load without the passphrase")
}

func TestReopenAfterUpdate(t *testing.T) {
	backend := newMemBackend()
	store := openStore(t, backend)

	_, err := store.Create(context.Background(), validNewDevice())
	require.NoError(t, err)
	password := "n3w:secret"
	label := "Back office"
	updated, err := store.Update(context.Background(), "0004f2ac2ba0", interfaces.DeviceUpdate{SIPPassword: &password, Label: &label})
	require.NoError(t, err)

	reopened := openStore(t, backend)
	got, err := reopened.Get("0004f2ac2ba0")
	require.NoError(t, err)
	assert.Equal(t, updated, got)
	assert.Equal(t, "n3w:secret", got.SIPPassword)
}

func TestReservedPasswordPrefix(t *testing.T) {
	backend := newMemBackend()
	store := openStore(t, backend)

	fields := validNewDevice()
	fields.SIPPassword = cryptoutils.SealedPrefix + "hunter2"
	_, err := store.Create(context.Background(), fields)
	var validationErr *interfaces.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "sipPassword", validationErr.Field)
	assert.Empty(t, store.List())

	_, err = store.Create(context.Background(), validNewDevice())
	require.NoError(t, err)
	password := cryptoutils.SealedPrefix + "hunter2"
	_, err = store.Update(context.Background(), "0004f2ac2ba0", interfaces.DeviceUpdate{SIPPassword: &password})
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "sipPassword", validationErr.Field)

	reopened := openStore(t, backend)
	got, err := reopened.Get("0004f2ac2ba0")
	require.NoError(t, err)
	assert.Equal(t, "secret", got.SIPPassword)
}

func TestSealedSnapshotPrefixedPassword(t *testing.T) {
	sealer, err := cryptoutils.NewPassphraseSealer("correct horse battery staple")
	require.NoError(t, err)

	// Hand-edited snapshots may still hold prefixed passwords.
	snapshot := Snapshot{
		Version: 1,
		Phones: []interfaces.Device{{
			ID:          "0004f2ac2ba0",
			Model:       interfaces.Model601,
			SIPServer:   "pbx.local",
			SIPUser:     "1001",
			SIPPassword: cryptoutils.SealedPrefix + "hunter2",
			DisplayName: "Lobby",
		}},
	}
	data, err := EncodeSnapshot(snapshot, sealer)
	require.NoError(t, err)
	decoded, err := DecodeSnapshot(data, sealer)
	require.NoError(t, err)
	require.Len(t, decoded.Phones, 1)
	assert.Equal(t, cryptoutils.SealedPrefix+"hunter2", decoded.Phones[0].SIPPassword)

	_, err = EncodeSnapshot(snapshot, cryptoutils.PlaintextSealer{})
	assert.ErrorIs(t, err, cryptoutils.ErrInvalidSealedValue)
}

func TestSnapshotDocument(t *testing.T) {
	backend := newMemBackend()
	store := openStore(t, backend)
	_, err := store.Create(context.Background(), validNewDevice())
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(backend.data[DefaultSnapshotKey], &doc))
	assert.JSONEq(t, "1", string(doc["version"]))
	assert.Contains(t, doc, "phones")
	assert.Contains(t, doc, "globalConfig")
	assert.True(t, strings.Contains(string(doc["globalConfig"]), `"contacts": []`))
}

func TestEvents(t *testing.T) {
	publisher := new(mockPublisher)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e interfaces.Event) bool {
		return e.Type == interfaces.EventDeviceAutoRegistered && e.DeviceID == "0004f2ac2ba0"
	})).Return(nil).Once()
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e interfaces.Event) bool {
		return e.Type == interfaces.EventSettingsUpdated
	})).Return(errors.New("broker down")).Once()

	store := openStore(t, newMemBackend(), WithEventPublisher(publisher))

	_, err := store.AutoRegister(context.Background(), "0004f2ac2ba0")
	require.NoError(t, err)
	_, err = store.AutoRegister(context.Background(), "0004f2ac2ba0")
	require.NoError(t, err)

	_, err = store.UpdateSettings(context.Background(), interfaces.SettingsUpdate{})
	require.NoError(t, err, "publish failures must not fail mutations")

	publisher.AssertExpectations(t)
}

func TestEventsBounded(t *testing.T) {
	publisher := new(mockPublisher)
	publisher.On("Publish", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= eventPublishTimeout
	}), mock.Anything).Return(context.DeadlineExceeded).Once()

	store := openStore(t, newMemBackend(), WithEventPublisher(publisher))
	_, err := store.Create(context.Background(), validNewDevice())
	require.NoError(t, err)

	publisher.AssertExpectations(t)
}

func TestConcurrentAutoRegister(t *testing.T) {
	backend := newMemBackend()
	store := openStore(t, backend)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AutoRegister(context.Background(), "0004f2ac2ba0")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, store.List(), 1)
	assert.Equal(t, 1, backend.stores)
}
