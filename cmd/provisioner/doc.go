// Package main (cmd/provisioner) runs the SIP desk phone provisioning server.
//
// The server keeps the device registry and the shared settings in memory,
// persists them as one JSON snapshot to the configured storage backends and
// serves per-device XML configuration files to booting phones alongside the
// JSON admin API. Health endpoints (/livez, /readyz, /drain, /undrain) and
// Prometheus metrics on a separate listener come from the httpserver package.
//
// Configuration comes from a YAML or TOML file (--config), SIPPROV_*
// environment variables and command line flags, in increasing precedence.
//
// Example usage:
//
//	sip-provisioner --listen-addr 0.0.0.0:8080 --storage file:///var/lib/sip-provisioning
//
//	SIPPROV_CREDENTIAL_PASSPHRASE=... sip-provisioner --config /etc/sip-provisioning.yaml \
//	    --storage sqlite:///var/lib/sip-provisioning/state.db \
//	    --storage s3://bucket/provisioning?region=eu-west-1
//
// The server shuts down gracefully on SIGINT and SIGTERM.
package main
