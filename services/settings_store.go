package services

import (
	"sync"

	"signage-server/models"
)

// SettingsStore holds the current slideshow/theme configuration in
// memory. The stored document is opaque to the core; editors own its
// shape. In-memory state stays authoritative even when a persistence
// write fails.
type SettingsStore struct {
	mu   sync.RWMutex
	data models.Settings
}

func NewSettingsStore() *SettingsStore {
	return &SettingsStore{data: models.Settings{}}
}

// Seed installs the persisted settings on startup.
func (s *SettingsStore) Seed(data models.Settings) {
	if data == nil {
		return
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
}

// Get returns a shallow copy of the current settings, safe to serialize
// without holding the store lock.
func (s *SettingsStore) Get() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(models.Settings, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Replace swaps in a new settings document. Last write wins.
func (s *SettingsStore) Replace(data models.Settings) {
	if data == nil {
		data = models.Settings{}
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
}
