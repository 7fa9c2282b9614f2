package registry

import (
	"context"

	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

// Settings returns a copy of the shared settings.
func (s *Store) Settings() interfaces.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone()
}

// UpdateSettings shallow-merges update into the shared settings. A contact
// list in update replaces the stored one wholesale.
func (s *Store) UpdateSettings(ctx context.Context, update interfaces.SettingsUpdate) (interfaces.Settings, error) {
	s.mu.Lock()
	if update.SIPServer != nil {
		s.settings.SIPServer = *update.SIPServer
	}
	if update.SIPPort != nil {
		s.settings.SIPPort = *update.SIPPort
	}
	if update.Contacts != nil {
		contacts := make([]interfaces.Contact, len(*update.Contacts))
		copy(contacts, *update.Contacts)
		s.settings.Contacts = contacts
	}
	settings := s.settings.Clone()
	err := s.persistLocked(ctx, "update settings")
	s.mu.Unlock()

	if err != nil {
		return interfaces.Settings{}, err
	}

	s.publish(ctx, interfaces.EventSettingsUpdated, "")
	return settings, nil
}
