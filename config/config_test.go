package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruteri/sip-provisioning-backend/cryptoutils"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  listen_addr: "0.0.0.0:9000"
  drain_seconds: 5
storage:
  backends:
    - "file:///var/lib/sip-provisioning"
    - "sqlite:///var/lib/sip-provisioning/state.db"
events:
  mqtt:
    enabled: true
    broker: "tcp://broker:1883"
    qos: 2
settings:
  sip_server: "pbx.example"
  contacts:
    - name: "Reception"
      extension: "100"
`

const testTOML = `
[server]
listen_addr = "0.0.0.0:9000"

[storage]
backends = ["file:///var/lib/sip-provisioning"]

[events.nats]
enabled = true
url = "nats://nats:4222"

[settings]
sip_server = "pbx.example"
sip_port = "5070"

[[settings.contacts]]
name = "Reception"
extension = "100"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", testYAML))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
	assert.Equal(t, "127.0.0.1:8090", cfg.Server.MetricsAddr, "defaults survive a partial file")
	assert.Equal(t, 5*time.Second, cfg.DrainDuration())
	assert.Len(t, cfg.Storage.Backends, 2)
	assert.True(t, cfg.Events.MQTT.Enabled)
	assert.Equal(t, 2, cfg.Events.MQTT.QoS)
	assert.Equal(t, "provisioning", cfg.Events.MQTT.TopicPrefix)

	seed := cfg.Settings.Seed()
	assert.Equal(t, "pbx.example", seed.SIPServer)
	assert.Equal(t, "5060", seed.SIPPort)
	assert.Equal(t, []interfaces.Contact{{Name: "Reception", Extension: "100"}}, seed.Contacts)

	locations, err := cfg.StorageLocations()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", locations[1].Scheme)
}

func TestLoad_TOML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.toml", testTOML))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
	assert.True(t, cfg.Events.NATS.Enabled)
	assert.Equal(t, "nats://nats:4222", cfg.Events.NATS.URL)
	assert.Equal(t, "5070", cfg.Settings.Seed().SIPPort)
	assert.Equal(t, []interfaces.Contact{{Name: "Reception", Extension: "100"}}, cfg.Settings.Contacts)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, interfaces.DefaultSettings(), cfg.Settings.Seed())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SIPPROV_LISTEN_ADDR", ":7000")
	t.Setenv("SIPPROV_STORAGE", "file:///a, nats://nats:4222/bucket ,")
	t.Setenv("SIPPROV_CREDENTIAL_PASSPHRASE", "correct horse")
	t.Setenv("SIPPROV_SIP_SERVER", "pbx.env")

	cfg, err := Load(writeConfig(t, "config.yml", testYAML))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.ListenAddr)
	assert.Equal(t, []string{"file:///a", "nats://nats:4222/bucket"}, cfg.Storage.Backends)
	assert.Equal(t, "correct horse", cfg.Security.CredentialPassphrase)
	assert.Equal(t, "pbx.env", cfg.Settings.SIPServer)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")

	_, err = Load(writeConfig(t, "bad.yaml", "server: [unclosed"))
	assert.ErrorContains(t, err, "parsing config file")

	_, err = Load(writeConfig(t, "bad.toml", "server = ="))
	assert.ErrorContains(t, err, "parsing config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{
			name:    "no listen address",
			mutate:  func(c *Config) { c.Server.ListenAddr = "" },
			message: "server.listen_addr is required",
		},
		{
			name:    "no storage",
			mutate:  func(c *Config) { c.Storage.Backends = nil },
			message: "storage.backends requires at least one URI",
		},
		{
			name:    "unsupported storage scheme",
			mutate:  func(c *Config) { c.Storage.Backends = []string{"ftp://host/dir"} },
			message: "unsupported storage scheme",
		},
		{
			name: "mqtt qos out of range",
			mutate: func(c *Config) {
				c.Events.MQTT.Enabled = true
				c.Events.MQTT.QoS = 3
			},
			message: "events.mqtt.qos must be 0, 1, or 2",
		},
		{
			name: "influx without org",
			mutate: func(c *Config) {
				c.Events.InfluxDB.Enabled = true
			},
			message: "events.influxdb.org",
		},
		{
			name: "passphrase and shares",
			mutate: func(c *Config) {
				c.Security.CredentialPassphrase = "secret"
				c.Security.CredentialPassphraseShares = []string{"a", "b"}
			},
			message: "mutually exclusive",
		},
		{
			name:    "single share",
			mutate:  func(c *Config) { c.Security.CredentialPassphraseShares = []string{"a"} },
			message: "at least two shares",
		},
		{
			name:    "empty sip port",
			mutate:  func(c *Config) { c.Settings.SIPPort = "" },
			message: "settings.sip_port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.message)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestSecurityConfig_Passphrase(t *testing.T) {
	passphrase, err := SecurityConfig{}.Passphrase()
	require.NoError(t, err)
	assert.Empty(t, passphrase)

	passphrase, err = SecurityConfig{CredentialPassphrase: "secret"}.Passphrase()
	require.NoError(t, err)
	assert.Equal(t, "secret", passphrase)

	shares, err := cryptoutils.SplitPassphrase("split secret", 3, 2)
	require.NoError(t, err)
	t.Setenv("SIPPROV_CREDENTIAL_PASSPHRASE_SHARES", shares[0]+","+shares[2])

	cfg, err := Load("")
	require.NoError(t, err)
	passphrase, err = cfg.Security.Passphrase()
	require.NoError(t, err)
	assert.Equal(t, "split secret", passphrase)
}
