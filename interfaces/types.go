package interfaces

import (
	"encoding/json"
	"strings"
	"time"
)

// DeviceID is the canonical identity of a phone: its hardware address as
// 12 lowercase hex characters.
type DeviceID string

// NormalizeMAC strips every character that is not a hex digit and lowercases
// the remainder. The result is not length checked, see DeviceID.Valid.
func NormalizeMAC(raw string) DeviceID {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
			b.WriteByte(c)
		case c >= 'A' && c <= 'F':
			b.WriteByte(c + ('a' - 'A'))
		}
	}
	return DeviceID(b.String())
}

// FormatMAC returns the display form XX:XX:XX:XX:XX:XX of a raw hardware address.
// When fewer than 12 hex characters survive normalization the raw input is
// returned uppercased, so malformed addresses stay visible as such.
func FormatMAC(raw string) string {
	normalized := string(NormalizeMAC(raw))
	if len(normalized) < macHexLen {
		return strings.ToUpper(raw)
	}

	groups := make([]string, 0, (len(normalized)+1)/2)
	for i := 0; i < len(normalized); i += 2 {
		end := min(i+2, len(normalized))
		groups = append(groups, normalized[i:end])
	}
	return strings.ToUpper(strings.Join(groups, ":"))
}

const macHexLen = 12

// Valid reports whether the identity is exactly 12 lowercase hex characters.
func (id DeviceID) Valid() bool {
	return len(id) == macHexLen && NormalizeMAC(string(id)) == id
}

// String returns the canonical form.
func (id DeviceID) String() string {
	return string(id)
}

// Display returns the colon separated uppercase form.
func (id DeviceID) Display() string {
	return FormatMAC(string(id))
}

// PhoneModel enumerates the supported desk phone variants.
type PhoneModel string

const (
	// Model331 is the entry level variant and the default for auto-registered phones.
	Model331 PhoneModel = "331"
	// Model601 is the higher-end variant with a backlit display.
	Model601 PhoneModel = "601"
)

// PhoneModels lists the supported variants, the first one being the default.
var PhoneModels = []PhoneModel{Model331, Model601}

// Valid reports whether the model is one of the supported variants.
func (m PhoneModel) Valid() bool {
	for _, known := range PhoneModels {
		if m == known {
			return true
		}
	}
	return false
}

// HasBacklight reports whether the model carries the display backlight block.
func (m PhoneModel) HasBacklight() bool {
	return m == Model601
}

// Device is the provisioning record of a single phone.
type Device struct {
	ID          DeviceID
	Model       PhoneModel
	Label       string
	SIPServer   string
	SIPUser     string
	SIPPassword string
	DisplayName string
	CreatedAt   time.Time
}

type deviceJSON struct {
	ID          DeviceID   `json:"id"`
	MAC         string     `json:"mac"`
	Model       PhoneModel `json:"model"`
	Label       string     `json:"label"`
	SIPServer   string     `json:"sipServer,omitempty"`
	SIPUser     string     `json:"sipUser"`
	SIPPassword string     `json:"sipPassword,omitempty"`
	DisplayName string     `json:"displayName"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// MarshalJSON adds the derived display address under "mac".
func (d Device) MarshalJSON() ([]byte, error) {
	return json.Marshal(deviceJSON{
		ID:          d.ID,
		MAC:         d.ID.Display(),
		Model:       d.Model,
		Label:       d.Label,
		SIPServer:   d.SIPServer,
		SIPUser:     d.SIPUser,
		SIPPassword: d.SIPPassword,
		DisplayName: d.DisplayName,
		CreatedAt:   d.CreatedAt,
	})
}

// UnmarshalJSON accepts records keyed by "id" or, for older data files, only by "mac".
func (d *Device) UnmarshalJSON(data []byte) error {
	var raw deviceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id := NormalizeMAC(string(raw.ID))
	if id == "" {
		id = NormalizeMAC(raw.MAC)
	}

	*d = Device{
		ID:          id,
		Model:       raw.Model,
		Label:       raw.Label,
		SIPServer:   raw.SIPServer,
		SIPUser:     raw.SIPUser,
		SIPPassword: raw.SIPPassword,
		DisplayName: raw.DisplayName,
		CreatedAt:   raw.CreatedAt,
	}
	return nil
}

// Redacted returns a copy without the SIP password, for responses leaving
// the trusted admin context.
func (d Device) Redacted() Device {
	d.SIPPassword = ""
	return d
}

// NewDevice carries the fields of an explicit admin create.
type NewDevice struct {
	MAC         string     `json:"mac"`
	Model       PhoneModel `json:"model"`
	Label       string     `json:"label"`
	SIPServer   string     `json:"sipServer"`
	SIPUser     string     `json:"sipUser"`
	SIPPassword string     `json:"sipPassword"`
	DisplayName string     `json:"displayName"`
}

// DeviceUpdate is a partial update. Nil fields are left unchanged, and so is
// an empty SIPPassword.
type DeviceUpdate struct {
	Model       *PhoneModel `json:"model,omitempty"`
	Label       *string     `json:"label,omitempty"`
	SIPServer   *string     `json:"sipServer,omitempty"`
	SIPUser     *string     `json:"sipUser,omitempty"`
	SIPPassword *string     `json:"sipPassword,omitempty"`
	DisplayName *string     `json:"displayName,omitempty"`
}

// Contact is one entry of the shared speed-dial directory.
type Contact struct {
	Name      string `json:"name"`
	Extension string `json:"extension"`
}

// Settings is the singleton configuration shared by every device.
type Settings struct {
	SIPServer string    `json:"sipServer"`
	SIPPort   string    `json:"sipPort"`
	Contacts  []Contact `json:"contacts"`
}

// DefaultSIPPort is used when nothing else has been configured.
const DefaultSIPPort = "5060"

// DefaultSettings returns the settings of an empty installation.
func DefaultSettings() Settings {
	return Settings{SIPPort: DefaultSIPPort, Contacts: []Contact{}}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	contacts := make([]Contact, len(s.Contacts))
	copy(contacts, s.Contacts)
	s.Contacts = contacts
	return s
}

// SettingsUpdate is a shallow partial update. Contacts, when present,
// replace the whole directory.
type SettingsUpdate struct {
	SIPServer *string    `json:"sipServer,omitempty"`
	SIPPort   *string    `json:"sipPort,omitempty"`
	Contacts  *[]Contact `json:"contacts,omitempty"`
}
