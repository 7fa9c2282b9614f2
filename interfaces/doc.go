// Package interfaces defines core interfaces and types for the SIP phone
// provisioning system, separating interface definitions from implementations.
//
// # Identity
//
// DeviceID is the canonical form of a phone hardware address: 12 lowercase hex
// characters. NormalizeMAC derives it from any raw string a device or an admin
// may send, FormatMAC derives the colon separated display form. The display form
// is never stored, so the two cannot diverge.
//
// # Registry Interfaces
//
// DeviceRegistry: Owns device records. Supports lookup, create, partial update,
// delete and the idempotent AutoRegister used by the unauthenticated device surface.
//
// SettingsStore: Owns the singleton Settings record shared by every device
// (SIP registration target and the shared speed-dial directory).
//
// # Storage Interfaces
//
// StorageBackend: Key-value persistence for the registry snapshot across multiple
// backend types (file, S3, Vault, IPFS, NATS, SQLite, Postgres).
//
// StorageBackendFactory: Creates storage backends from URI strings and manages
// multi-backend configurations for redundant storage.
//
// # Events
//
// EventPublisher: Fire-and-forget notifications about registrations and served
// artifacts (MQTT, NATS, InfluxDB).
//
// # Errors
//
// ValidationError, PersistenceError and the sentinel errors in this package form
// the error taxonomy every HTTP handler maps to status codes.
package interfaces
