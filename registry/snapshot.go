package registry

import (
	"encoding/json"
	"fmt"

	"github.com/ruteri/sip-provisioning-backend/cryptoutils"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
	"github.com/tidwall/jsonc"
)

// SnapshotVersion is written into every snapshot.
const SnapshotVersion = 1

// Snapshot is the persisted registry document. Field names follow the
// original phones-data.json layout so existing data files load unchanged.
type Snapshot struct {
	Version      int                 `json:"version"`
	Phones       []interfaces.Device `json:"phones"`
	GlobalConfig interfaces.Settings `json:"globalConfig"`
}

// EncodeSnapshot renders the snapshot as indented JSON with SIP passwords sealed.
func EncodeSnapshot(snapshot Snapshot, sealer cryptoutils.CredentialSealer) ([]byte, error) {
	phones := make([]interfaces.Device, len(snapshot.Phones))
	for i, device := range snapshot.Phones {
		sealed, err := sealer.Seal(device.SIPPassword)
		if err != nil {
			return nil, fmt.Errorf("sealing credentials of %s: %w", device.ID, err)
		}
		device.SIPPassword = sealed
		phones[i] = device
	}
	snapshot.Phones = phones

	if snapshot.GlobalConfig.Contacts == nil {
		snapshot.GlobalConfig.Contacts = []interfaces.Contact{}
	}

	return json.MarshalIndent(snapshot, "", "  ")
}

// DecodeSnapshot parses a snapshot, tolerating comments and trailing commas in
// hand-edited files, and opens sealed SIP passwords.
func DecodeSnapshot(data []byte, sealer cryptoutils.CredentialSealer) (Snapshot, error) {
	var raw struct {
		Version      int                  `json:"version"`
		Phones       []interfaces.Device  `json:"phones"`
		GlobalConfig *interfaces.Settings `json:"globalConfig"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return Snapshot{}, fmt.Errorf("invalid snapshot document: %w", err)
	}

	if raw.Version > SnapshotVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot version %d", raw.Version)
	}

	settings := interfaces.DefaultSettings()
	if raw.GlobalConfig != nil {
		settings = *raw.GlobalConfig
		if settings.Contacts == nil {
			settings.Contacts = []interfaces.Contact{}
		}
	}

	for i := range raw.Phones {
		opened, err := sealer.Open(raw.Phones[i].SIPPassword)
		if err != nil {
			return Snapshot{}, fmt.Errorf("opening credentials of %s: %w", raw.Phones[i].ID, err)
		}
		raw.Phones[i].SIPPassword = opened
	}

	return Snapshot{
		Version:      SnapshotVersion,
		Phones:       raw.Phones,
		GlobalConfig: settings,
	}, nil
}
