package tallyclient_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq-io/tally-client/internal/store"
	"github.com/tallyhq-io/tally-client/pkg/tally"
	"github.com/tallyhq-io/tally-client/pkg/tallyclient"
)

func TestNormalizeBaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare host", "api.tallyhq.io", "https://api.tallyhq.io/api"},
		{"http scheme kept", "http://localhost:3000", "http://localhost:3000/api"},
		{"trailing slash dropped", "https://api.tallyhq.io/", "https://api.tallyhq.io/api"},
		{"existing api suffix kept", "https://api.tallyhq.io/api", "https://api.tallyhq.io/api"},
		{"api suffix with slash", "https://api.tallyhq.io/api/", "https://api.tallyhq.io/api"},
		{"nested path", "https://pos.example.com/backend", "https://pos.example.com/backend/api"},
		{"whitespace trimmed", "  api.tallyhq.io  ", "https://api.tallyhq.io/api"},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			normalized, err := tallyclient.NormalizeBaseURL(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, normalized)
		})
	}
}

func TestNormalizeBaseURL_Invalid(t *testing.T) {
	t.Parallel()

	_, err := tallyclient.NormalizeBaseURL("")
	require.Error(t, err)

	_, err = tallyclient.NormalizeBaseURL("   ")
	require.Error(t, err)

	_, err = tallyclient.NormalizeBaseURL("https://")
	require.Error(t, err)
}

func TestResolveBaseURL_RuntimeWins(t *testing.T) {
	t.Parallel()

	keyring := store.NewMemoryKeyring()
	require.NoError(t, keyring.Set("api_url", "https://stored.example.com"))

	resolved, err := tallyclient.ResolveBaseURL("runtime.example.com", keyring)
	require.NoError(t, err)
	assert.Equal(t, "https://runtime.example.com/api", resolved)
}

func TestResolveBaseURL_KeyringFallback(t *testing.T) {
	t.Parallel()

	keyring := store.NewMemoryKeyring()
	require.NoError(t, keyring.Set("api_url", "https://stored.example.com"))

	resolved, err := tallyclient.ResolveBaseURL("", keyring)
	require.NoError(t, err)
	assert.Equal(t, "https://stored.example.com/api", resolved)
}

func TestResolveBaseURL_Default(t *testing.T) {
	t.Parallel()

	resolved, err := tallyclient.ResolveBaseURL("", store.NewMemoryKeyring())
	require.NoError(t, err)
	assert.Equal(t, "https://api.tallyhq.io/api", resolved)

	resolved, err = tallyclient.ResolveBaseURL("", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.tallyhq.io/api", resolved)
}

func TestNew_NilConfig(t *testing.T) {
	t.Parallel()

	_, err := tallyclient.New(nil)
	require.Error(t, err)
}

func TestNewWithToken(t *testing.T) {
	t.Parallel()

	client, err := tallyclient.NewWithToken("api.tallyhq.io", "seed-token", nil)
	require.NoError(t, err)
	assert.Equal(t, "seed-token", client.AccessToken())
}

func TestNew_KeyringTokenWinsOverSeed(t *testing.T) {
	t.Parallel()

	keyring := store.NewMemoryKeyring()
	require.NoError(t, keyring.Set("access_token", "persisted"))

	client, err := tallyclient.New(&tally.Config{
		BaseURL:     "api.tallyhq.io",
		AccessToken: "seed",
		Keyring:     keyring,
	})
	require.NoError(t, err)
	assert.Equal(t, "persisted", client.AccessToken())
}

func TestNew_CacheDisabled(t *testing.T) {
	t.Parallel()

	client, err := tallyclient.New(&tally.Config{
		BaseURL: "api.tallyhq.io",
		Cache:   &tally.CacheConfig{Type: tally.CacheTypeNone},
	})
	require.NoError(t, err)
	assert.Nil(t, client.CacheStats())
}
