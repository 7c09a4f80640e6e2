package memory

import (
	"context"
	"sync"

	"github.com/webscout/webscout/internal/scout"
)

// SettingsStore keeps the mutable runtime settings. Batches snapshot the
// value at submission; later edits never affect in-flight work.
type SettingsStore struct {
	mu       sync.RWMutex
	settings scout.Settings
}

// NewSettingsStore constructs a SettingsStore seeded with defaults.
func NewSettingsStore(defaults scout.Settings) *SettingsStore {
	return &SettingsStore{settings: defaults}
}

// Get returns the current settings snapshot.
func (s *SettingsStore) Get(_ context.Context) (scout.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

// Put replaces the settings.
func (s *SettingsStore) Put(_ context.Context, settings scout.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}
