package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq-io/tally-client/internal/store"
)

func TestCredentialStore_LoadsFromKeyring(t *testing.T) {
	t.Parallel()

	keyring := store.NewMemoryKeyring()
	require.NoError(t, keyring.Set("access_token", "atk"))
	require.NoError(t, keyring.Set("refresh_token", "rtk"))

	creds := store.NewCredentialStore(keyring, nil)

	assert.Equal(t, "atk", creds.AccessToken())
	assert.Equal(t, "rtk", creds.RefreshToken())
}

func TestCredentialStore_SetTokensPersists(t *testing.T) {
	t.Parallel()

	keyring := store.NewMemoryKeyring()
	creds := store.NewCredentialStore(keyring, nil)

	creds.SetTokens("new-access", "new-refresh")

	assert.Equal(t, "new-access", creds.AccessToken())
	assert.Equal(t, "new-refresh", creds.RefreshToken())

	// A fresh store over the same keyring sees the persisted pair.
	reloaded := store.NewCredentialStore(keyring, nil)
	assert.Equal(t, "new-access", reloaded.AccessToken())
	assert.Equal(t, "new-refresh", reloaded.RefreshToken())
}

func TestCredentialStore_EmptyRefreshKeepsExisting(t *testing.T) {
	t.Parallel()

	creds := store.NewCredentialStore(store.NewMemoryKeyring(), nil)
	creds.SetTokens("a1", "r1")

	// A refresh response without a rotated refresh token keeps the old one.
	creds.SetTokens("a2", "")

	assert.Equal(t, "a2", creds.AccessToken())
	assert.Equal(t, "r1", creds.RefreshToken())
}

func TestCredentialStore_ClearAccessTokenOnly(t *testing.T) {
	t.Parallel()

	keyring := store.NewMemoryKeyring()
	creds := store.NewCredentialStore(keyring, nil)
	creds.SetTokens("atk", "rtk")

	creds.ClearAccessToken()

	assert.Empty(t, creds.AccessToken())
	assert.Equal(t, "rtk", creds.RefreshToken())

	_, err := keyring.Get("access_token")
	require.Error(t, err)
}

func TestCredentialStore_ClearRefreshTokenOnly(t *testing.T) {
	t.Parallel()

	creds := store.NewCredentialStore(store.NewMemoryKeyring(), nil)
	creds.SetTokens("atk", "rtk")

	creds.ClearRefreshToken()

	assert.Equal(t, "atk", creds.AccessToken())
	assert.Empty(t, creds.RefreshToken())
}

func TestCredentialStore_Clear(t *testing.T) {
	t.Parallel()

	keyring := store.NewMemoryKeyring()
	creds := store.NewCredentialStore(keyring, nil)
	creds.SetTokens("atk", "rtk")

	creds.Clear()

	assert.Empty(t, creds.AccessToken())
	assert.Empty(t, creds.RefreshToken())

	_, err := keyring.Get("refresh_token")
	require.Error(t, err)
}

func TestMemoryKeyring(t *testing.T) {
	t.Parallel()

	keyring := store.NewMemoryKeyring()

	_, err := keyring.Get("absent")
	require.ErrorIs(t, err, store.ErrKeyringKeyNotFound)

	require.NoError(t, keyring.Set("key", "value"))

	value, err := keyring.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	require.NoError(t, keyring.Delete("key"))

	_, err = keyring.Get("key")
	require.Error(t, err)
}
