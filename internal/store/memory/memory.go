// Package memory provides an in-memory RecordStore for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

// RecordStore keeps whitelist entries, settings and search history in maps.
// All methods are safe for concurrent use. Data does not survive a restart.
type RecordStore struct {
	mu        sync.RWMutex
	whitelist map[string]scout.WhitelistEntry
	settings  map[string]string
	history   []scout.SearchRecord
}

// NewRecordStore returns an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		whitelist: make(map[string]scout.WhitelistEntry),
		settings:  make(map[string]string),
	}
}

// AddWhitelist inserts an entry. Returns false when the user was already
// listed; the existing entry is left untouched.
func (s *RecordStore) AddWhitelist(_ context.Context, entry scout.WhitelistEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.whitelist[entry.UserID]; ok {
		return false, nil
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now().UTC()
	}
	s.whitelist[entry.UserID] = entry
	return true, nil
}

// RemoveWhitelist deletes an entry. Returns false when the user was not listed.
func (s *RecordStore) RemoveWhitelist(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.whitelist[userID]; !ok {
		return false, nil
	}
	delete(s.whitelist, userID)
	return true, nil
}

// IsWhitelisted reports whether the user is currently listed.
func (s *RecordStore) IsWhitelisted(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.whitelist[userID]
	return ok, nil
}

// ListWhitelist returns all entries ordered by when they were added.
func (s *RecordStore) ListWhitelist(_ context.Context) ([]scout.WhitelistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scout.WhitelistEntry, 0, len(s.whitelist))
	for _, entry := range s.whitelist {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out, nil
}

// GetSetting returns the value for key and whether it was present.
func (s *RecordStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

// SetSetting stores or overwrites a setting.
func (s *RecordStore) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

// DeleteSetting removes a setting. Returns false when the key was absent.
func (s *RecordStore) DeleteSetting(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.settings[key]; !ok {
		return false, nil
	}
	delete(s.settings, key)
	return true, nil
}

// AllSettings returns a copy of every stored setting.
func (s *RecordStore) AllSettings(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

// RecordSearch appends a history row.
func (s *RecordStore) RecordSearch(_ context.Context, rec scout.SearchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, rec)
	return nil
}

// History returns a copy of the recorded searches (test helper).
func (s *RecordStore) History() []scout.SearchRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]scout.SearchRecord(nil), s.history...)
}

// Close is a no-op for the in-memory store.
func (s *RecordStore) Close() error { return nil }
