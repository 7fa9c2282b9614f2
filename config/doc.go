// Package config loads the provisioning server configuration.
//
// Configuration is read from a YAML or TOML file, chosen by extension
// (.toml is TOML, anything else YAML), layered over built-in defaults.
// Environment variables prefixed SIPPROV_ override individual values:
//
//	SIPPROV_LISTEN_ADDR, SIPPROV_METRICS_ADDR
//	SIPPROV_STORAGE (comma separated backend URIs), SIPPROV_SNAPSHOT_KEY
//	SIPPROV_MQTT_BROKER, SIPPROV_MQTT_USERNAME, SIPPROV_MQTT_PASSWORD
//	SIPPROV_NATS_URL, SIPPROV_INFLUXDB_URL, SIPPROV_INFLUXDB_TOKEN
//	SIPPROV_CREDENTIAL_PASSPHRASE, SIPPROV_CREDENTIAL_PASSPHRASE_SHARES (comma separated)
//	SIPPROV_SIP_SERVER, SIPPROV_SIP_PORT
//
// Secrets such as the credential passphrase and broker passwords should be
// passed through the environment rather than the file.
package config
