package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ruteri/sip-provisioning-backend/cryptoutils"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SIPPROV_"

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Storage  StorageConfig  `yaml:"storage" toml:"storage"`
	Events   EventsConfig   `yaml:"events" toml:"events"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Security SecurityConfig `yaml:"security" toml:"security"`
	Settings SettingsConfig `yaml:"settings" toml:"settings"`
}

// ServerConfig holds the HTTP listener settings. Durations are in seconds.
type ServerConfig struct {
	ListenAddr   string `yaml:"listen_addr" toml:"listen_addr"`
	MetricsAddr  string `yaml:"metrics_addr" toml:"metrics_addr"`
	EnablePprof  bool   `yaml:"pprof" toml:"pprof"`
	DrainSeconds int    `yaml:"drain_seconds" toml:"drain_seconds"`
	ReadTimeout  int    `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout" toml:"write_timeout"`
}

// StorageConfig lists the snapshot backends. With more than one URI the
// snapshot is written to all of them.
type StorageConfig struct {
	Backends    []string `yaml:"backends" toml:"backends"`
	SnapshotKey string   `yaml:"snapshot_key" toml:"snapshot_key"`
}

// EventsConfig enables the event sinks.
type EventsConfig struct {
	MQTT     MQTTConfig     `yaml:"mqtt" toml:"mqtt"`
	NATS     NATSConfig     `yaml:"nats" toml:"nats"`
	InfluxDB InfluxDBConfig `yaml:"influxdb" toml:"influxdb"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Broker      string `yaml:"broker" toml:"broker"`
	ClientID    string `yaml:"client_id" toml:"client_id"`
	Username    string `yaml:"username" toml:"username"`
	Password    string `yaml:"password" toml:"password"`
	TopicPrefix string `yaml:"topic_prefix" toml:"topic_prefix"`
	QoS         int    `yaml:"qos" toml:"qos"`
}

type NATSConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled"`
	URL           string `yaml:"url" toml:"url"`
	SubjectPrefix string `yaml:"subject_prefix" toml:"subject_prefix"`
}

type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	URL     string `yaml:"url" toml:"url"`
	Token   string `yaml:"token" toml:"token"`
	Org     string `yaml:"org" toml:"org"`
	Bucket  string `yaml:"bucket" toml:"bucket"`
}

type LoggingConfig struct {
	Debug   bool   `yaml:"debug" toml:"debug"`
	JSON    bool   `yaml:"json" toml:"json"`
	Service string `yaml:"service" toml:"service"`
}

// SecurityConfig configures sealing of SIP passwords in the stored snapshot.
// The passphrase is given either directly or as Shamir shares held by
// different operators. Without either, passwords are stored in plaintext.
type SecurityConfig struct {
	CredentialPassphrase       string   `yaml:"credential_passphrase" toml:"credential_passphrase"`
	CredentialPassphraseShares []string `yaml:"credential_passphrase_shares" toml:"credential_passphrase_shares"`
}

// Passphrase returns the configured sealing passphrase, combining shares when
// those are given. An empty result means sealing is disabled.
func (s SecurityConfig) Passphrase() (string, error) {
	if len(s.CredentialPassphraseShares) == 0 {
		return s.CredentialPassphrase, nil
	}
	return cryptoutils.CombinePassphrase(s.CredentialPassphraseShares)
}

// SettingsConfig seeds the shared settings of an empty registry.
type SettingsConfig struct {
	SIPServer string               `yaml:"sip_server" toml:"sip_server"`
	SIPPort   string               `yaml:"sip_port" toml:"sip_port"`
	Contacts  []interfaces.Contact `yaml:"contacts" toml:"contacts"`
}

// Seed returns the settings an empty registry starts from.
func (s SettingsConfig) Seed() interfaces.Settings {
	seed := interfaces.DefaultSettings()
	seed.SIPServer = s.SIPServer
	if s.SIPPort != "" {
		seed.SIPPort = s.SIPPort
	}
	seed.Contacts = append(seed.Contacts, s.Contacts...)
	return seed
}

// Load reads the configuration file at path. An empty path yields the
// defaults. Environment overrides are applied and the result validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration of a local single-node install.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:   "127.0.0.1:8080",
			MetricsAddr:  "127.0.0.1:8090",
			DrainSeconds: 45,
			ReadTimeout:  60,
			WriteTimeout: 30,
		},
		Storage: StorageConfig{
			Backends: []string{"file://./data"},
		},
		Events: EventsConfig{
			MQTT: MQTTConfig{
				Broker:      "tcp://localhost:1883",
				ClientID:    "sip-provisioning",
				TopicPrefix: "provisioning",
				QoS:         1,
			},
			NATS: NATSConfig{
				URL:           "nats://localhost:4222",
				SubjectPrefix: "provisioning",
			},
			InfluxDB: InfluxDBConfig{
				URL:    "http://localhost:8086",
				Bucket: "provisioning",
			},
		},
		Logging: LoggingConfig{
			Service: "sip-provisioning",
		},
		Settings: SettingsConfig{
			SIPPort: interfaces.DefaultSIPPort,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envPrefix + "LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv(envPrefix + "METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}

	if v := os.Getenv(envPrefix + "STORAGE"); v != "" {
		cfg.Storage.Backends = splitList(v)
	}
	if v := os.Getenv(envPrefix + "SNAPSHOT_KEY"); v != "" {
		cfg.Storage.SnapshotKey = v
	}

	if v := os.Getenv(envPrefix + "MQTT_BROKER"); v != "" {
		cfg.Events.MQTT.Broker = v
	}
	if v := os.Getenv(envPrefix + "MQTT_USERNAME"); v != "" {
		cfg.Events.MQTT.Username = v
	}
	if v := os.Getenv(envPrefix + "MQTT_PASSWORD"); v != "" {
		cfg.Events.MQTT.Password = v
	}
	if v := os.Getenv(envPrefix + "NATS_URL"); v != "" {
		cfg.Events.NATS.URL = v
	}
	if v := os.Getenv(envPrefix + "INFLUXDB_URL"); v != "" {
		cfg.Events.InfluxDB.URL = v
	}
	if v := os.Getenv(envPrefix + "INFLUXDB_TOKEN"); v != "" {
		cfg.Events.InfluxDB.Token = v
	}

	if v := os.Getenv(envPrefix + "CREDENTIAL_PASSPHRASE"); v != "" {
		cfg.Security.CredentialPassphrase = v
	}
	if v := os.Getenv(envPrefix + "CREDENTIAL_PASSPHRASE_SHARES"); v != "" {
		cfg.Security.CredentialPassphraseShares = splitList(v)
	}

	if v := os.Getenv(envPrefix + "SIP_SERVER"); v != "" {
		cfg.Settings.SIPServer = v
	}
	if v := os.Getenv(envPrefix + "SIP_PORT"); v != "" {
		cfg.Settings.SIPPort = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.ListenAddr == "" {
		errs = append(errs, "server.listen_addr is required")
	}
	if c.Server.DrainSeconds < 0 {
		errs = append(errs, "server.drain_seconds must not be negative")
	}

	if len(c.Storage.Backends) == 0 {
		errs = append(errs, "storage.backends requires at least one URI")
	}
	for _, uri := range c.Storage.Backends {
		if _, err := interfaces.NewStorageBackendLocation(uri); err != nil {
			errs = append(errs, fmt.Sprintf("storage.backends: %v", err))
		}
	}

	if c.Events.MQTT.Enabled {
		if c.Events.MQTT.Broker == "" {
			errs = append(errs, "events.mqtt.broker is required")
		}
		if c.Events.MQTT.QoS < 0 || c.Events.MQTT.QoS > 2 {
			errs = append(errs, "events.mqtt.qos must be 0, 1, or 2")
		}
	}
	if c.Events.NATS.Enabled && c.Events.NATS.URL == "" {
		errs = append(errs, "events.nats.url is required")
	}
	if c.Events.InfluxDB.Enabled {
		if c.Events.InfluxDB.URL == "" {
			errs = append(errs, "events.influxdb.url is required")
		}
		if c.Events.InfluxDB.Org == "" || c.Events.InfluxDB.Bucket == "" {
			errs = append(errs, "events.influxdb.org and events.influxdb.bucket are required")
		}
	}

	if c.Security.CredentialPassphrase != "" && len(c.Security.CredentialPassphraseShares) > 0 {
		errs = append(errs, "security.credential_passphrase and security.credential_passphrase_shares are mutually exclusive")
	}
	if n := len(c.Security.CredentialPassphraseShares); n == 1 {
		errs = append(errs, "security.credential_passphrase_shares needs at least two shares")
	}

	if c.Settings.SIPPort == "" {
		errs = append(errs, "settings.sip_port must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DrainDuration returns the drain wait as a Duration.
func (c *Config) DrainDuration() time.Duration {
	return time.Duration(c.Server.DrainSeconds) * time.Second
}

// ReadTimeout returns the HTTP read timeout as a Duration.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeout) * time.Second
}

// WriteTimeout returns the HTTP write timeout as a Duration.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeout) * time.Second
}

// StorageLocations parses the configured backend URIs.
func (c *Config) StorageLocations() ([]interfaces.StorageBackendLocation, error) {
	locations := make([]interfaces.StorageBackendLocation, 0, len(c.Storage.Backends))
	for _, uri := range c.Storage.Backends {
		loc, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}
