package memory

import (
	"context"
	"sync"
)

// ListStore holds the global whitelist and blacklist.
type ListStore struct {
	mu        sync.RWMutex
	whitelist []string
	blacklist []string
}

// NewListStore constructs a ListStore.
func NewListStore() *ListStore {
	return &ListStore{}
}

// GetWhitelist returns the global whitelist.
func (s *ListStore) GetWhitelist(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.whitelist...), nil
}

// GetBlacklist returns the global blacklist.
func (s *ListStore) GetBlacklist(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.blacklist...), nil
}

// PutWhitelist replaces the global whitelist.
func (s *ListStore) PutWhitelist(_ context.Context, domains []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist = append([]string(nil), domains...)
	return nil
}

// PutBlacklist replaces the global blacklist.
func (s *ListStore) PutBlacklist(_ context.Context, domains []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist = append([]string(nil), domains...)
	return nil
}
