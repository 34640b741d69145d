// Package store holds the credential pair over a durable keyring.
package store

import (
	"errors"
	"sync"

	"github.com/tallyhq-io/tally-client/internal/constants"
	"github.com/tallyhq-io/tally-client/pkg/tally"
)

// CredentialStore owns the access/refresh token pair. It is a pure data
// holder: no network calls, ever. Tokens are loaded from the keyring at
// construction and written back on every change; persistence failures are
// logged and never fail the calling request.
type CredentialStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
	keyring tally.Keyring
	logger  tally.Logger
}

// NewCredentialStore creates a store backed by keyring. logger may be nil.
func NewCredentialStore(keyring tally.Keyring, logger tally.Logger) *CredentialStore {
	credStore := &CredentialStore{
		keyring: keyring,
		logger:  logger,
	}

	if access, err := keyring.Get(constants.KeyringAccessToken); err == nil {
		credStore.access = access
	}

	if refresh, err := keyring.Get(constants.KeyringRefreshToken); err == nil {
		credStore.refresh = refresh
	}

	return credStore
}

// AccessToken returns the current access token, empty when absent.
func (s *CredentialStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.access
}

// RefreshToken returns the current refresh token, empty when absent.
func (s *CredentialStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.refresh
}

// SetTokens replaces the access token and, when refresh is non-empty, the
// refresh token. A refresh response without a new refresh token keeps the
// existing one.
func (s *CredentialStore) SetTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = access
	s.persistSet(constants.KeyringAccessToken, access)

	if refresh != "" {
		s.refresh = refresh
		s.persistSet(constants.KeyringRefreshToken, refresh)
	}
}

// ClearAccessToken drops the access token only. Used when a 401 is
// classified so a stale token is never re-sent.
func (s *CredentialStore) ClearAccessToken() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = ""
	s.persistDelete(constants.KeyringAccessToken)
}

// ClearRefreshToken drops the refresh token only. Used after a failed
// refresh attempt.
func (s *CredentialStore) ClearRefreshToken() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refresh = ""
	s.persistDelete(constants.KeyringRefreshToken)
}

// Clear destroys the credential pair. Used on logout and unrecoverable
// authorization failures.
func (s *CredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = ""
	s.refresh = ""
	s.persistDelete(constants.KeyringAccessToken)
	s.persistDelete(constants.KeyringRefreshToken)
}

// persistSet writes one keyring entry. Caller holds the lock.
func (s *CredentialStore) persistSet(key, value string) {
	err := s.keyring.Set(key, value)
	if err != nil && s.logger != nil {
		s.logger.Warn("failed to persist credential", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// persistDelete removes one keyring entry. Caller holds the lock.
func (s *CredentialStore) persistDelete(key string) {
	err := s.keyring.Delete(key)
	if err != nil && s.logger != nil {
		s.logger.Warn("failed to remove credential", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// ErrKeyringKeyNotFound is returned by MemoryKeyring for absent keys.
var ErrKeyringKeyNotFound = errors.New("keyring key not found")

// MemoryKeyring is a process-local tally.Keyring. Used when no durable
// keyring is configured and in tests.
type MemoryKeyring struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryKeyring creates an empty in-memory keyring.
func NewMemoryKeyring() *MemoryKeyring {
	return &MemoryKeyring{entries: make(map[string]string)}
}

// Get returns the value for key.
func (k *MemoryKeyring) Get(key string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	value, ok := k.entries[key]
	if !ok {
		return "", ErrKeyringKeyNotFound
	}

	return value, nil
}

// Set stores a value under key.
func (k *MemoryKeyring) Set(key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.entries[key] = value

	return nil
}

// Delete removes key.
func (k *MemoryKeyring) Delete(key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.entries, key)

	return nil
}
