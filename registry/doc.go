// Package registry owns the phone records and the shared settings of a
// provisioning installation.
//
// A Store keeps everything in memory behind a single mutex and writes the
// whole state as one JSON snapshot to an interfaces.StorageBackend after
// every mutation:
//
//	{
//	  "version": 1,
//	  "phones": [ { "id": "0004f2ac2ba0", "mac": "00:04:F2:AC:2B:A0", ... } ],
//	  "globalConfig": { "sipServer": "...", "sipPort": "5060", "contacts": [] }
//	}
//
// Snapshots may contain comments when edited by hand. Records written by
// older installations carry only a "mac" field and are keyed by its
// normalized form on load.
//
// SIP passwords can be sealed at rest by passing a cryptoutils.CredentialSealer
// with WithSealer. Mutations are published to an interfaces.EventPublisher
// when one is configured with WithEventPublisher; publish failures are logged
// and never fail the mutation.
//
// MockDeviceRegistry and MockSettingsStore are testify mocks for handler tests.
package registry
