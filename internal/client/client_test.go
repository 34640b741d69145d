package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq-io/tally-client/internal/client"
	"github.com/tallyhq-io/tally-client/internal/store"
	"github.com/tallyhq-io/tally-client/pkg/tally"
)

// newBackend fakes the Tally API: login/refresh endpoints plus one
// token-guarded business endpoint.
func newBackend(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()

	var productCalls int32

	mux := http.NewServeMux()

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		if payload["identifier"] != "cashier@example.com" || payload["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":        "valid-token",
			"refreshToken": "valid-refresh",
		})
	})

	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		if payload["refreshToken"] != "valid-refresh" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		_ = json.NewEncoder(w).Encode(map[string]string{"token": "valid-token"})
	})

	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&productCalls, 1)

		if r.Header.Get("Authorization") != "Bearer valid-token" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"products":["espresso"]}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server, &productCalls
}

func TestClient_LoginStoresTokens(t *testing.T) {
	t.Parallel()

	server, _ := newBackend(t)

	tallyClient, err := client.New(&tally.Config{BaseURL: server.URL})
	require.NoError(t, err)

	result, err := tallyClient.Login(context.Background(), "cashier@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "valid-token", result.Token)
	assert.Equal(t, "valid-token", tallyClient.AccessToken())
}

func TestClient_LoginRejected(t *testing.T) {
	t.Parallel()

	server, _ := newBackend(t)

	tallyClient, err := client.New(&tally.Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = tallyClient.Login(context.Background(), "cashier@example.com", "wrong")
	require.Error(t, err)
	assert.Empty(t, tallyClient.AccessToken())
}

func TestClient_LoginMissingCredentials(t *testing.T) {
	t.Parallel()

	server, _ := newBackend(t)

	tallyClient, err := client.New(&tally.Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = tallyClient.Login(context.Background(), "", "secret")
	require.Error(t, err)
}

func TestClient_GetAfterLogin(t *testing.T) {
	t.Parallel()

	server, _ := newBackend(t)

	tallyClient, err := client.New(&tally.Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = tallyClient.Login(context.Background(), "cashier@example.com", "secret")
	require.NoError(t, err)

	body, err := tallyClient.Get(context.Background(), "/products", nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"products":["espresso"]}`, string(body))
}

func TestClient_ExpiredTokenRefreshedTransparently(t *testing.T) {
	t.Parallel()

	server, productCalls := newBackend(t)

	// A stale access token with a valid refresh token: the first /products
	// call 401s, the refresh repairs it, and the replay succeeds.
	tallyClient, err := client.New(&tally.Config{
		BaseURL:      server.URL,
		AccessToken:  "expired-token",
		RefreshToken: "valid-refresh",
	})
	require.NoError(t, err)

	body, err := tallyClient.Get(context.Background(), "/products", nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"products":["espresso"]}`, string(body))
	assert.Equal(t, "valid-token", tallyClient.AccessToken())
	assert.Equal(t, int32(2), atomic.LoadInt32(productCalls))
}

func TestClient_StoredLoginReauthAfterFailedRefresh(t *testing.T) {
	t.Parallel()

	server, productCalls := newBackend(t)

	tallyClient, err := client.New(&tally.Config{
		BaseURL:      server.URL,
		Identifier:   "cashier@example.com",
		Password:     "secret",
		AccessToken:  "expired-token",
		RefreshToken: "dead-refresh",
	})
	require.NoError(t, err)

	body, err := tallyClient.Get(context.Background(), "/products", nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"products":["espresso"]}`, string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(productCalls))
}

func TestClient_UnrecoverableAuthFailure(t *testing.T) {
	t.Parallel()

	server, productCalls := newBackend(t)

	tallyClient, err := client.New(&tally.Config{
		BaseURL:     server.URL,
		AccessToken: "expired-token",
	})
	require.NoError(t, err)

	_, err = tallyClient.Get(context.Background(), "/products", nil, nil)
	require.Error(t, err)
	assert.True(t, tally.IsUnauthorized(err))
	assert.Empty(t, tallyClient.AccessToken())
	assert.Equal(t, int32(1), atomic.LoadInt32(productCalls))
}

func TestClient_LogoutClearsCredentialsAndCache(t *testing.T) {
	t.Parallel()

	server, productCalls := newBackend(t)

	keyring := store.NewMemoryKeyring()

	tallyClient, err := client.New(&tally.Config{BaseURL: server.URL, Keyring: keyring})
	require.NoError(t, err)

	_, err = tallyClient.Login(context.Background(), "cashier@example.com", "secret")
	require.NoError(t, err)

	// Prime the cache.
	_, err = tallyClient.Get(context.Background(), "/products", nil, &tally.RequestOptions{Cache: true})
	require.NoError(t, err)

	require.NoError(t, tallyClient.Logout(context.Background()))

	assert.Empty(t, tallyClient.AccessToken())

	_, err = keyring.Get("access_token")
	require.Error(t, err)

	// The cached entry is gone: the next call reaches the network and
	// fails for lack of a token.
	before := atomic.LoadInt32(productCalls)
	_, err = tallyClient.Get(context.Background(), "/products", nil, &tally.RequestOptions{Cache: true})
	require.Error(t, err)
	assert.Equal(t, before+1, atomic.LoadInt32(productCalls))
}

func TestClient_CacheStats(t *testing.T) {
	t.Parallel()

	server, _ := newBackend(t)

	tallyClient, err := client.New(&tally.Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = tallyClient.Login(context.Background(), "cashier@example.com", "secret")
	require.NoError(t, err)

	_, err = tallyClient.Get(context.Background(), "/products", nil, &tally.RequestOptions{Cache: true})
	require.NoError(t, err)

	_, err = tallyClient.Get(context.Background(), "/products", nil, &tally.RequestOptions{Cache: true})
	require.NoError(t, err)

	stats := tallyClient.CacheStats()
	require.NotNil(t, stats)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Sets)

	require.NoError(t, tallyClient.ClearCache(context.Background()))
}

func TestClient_NilConfig(t *testing.T) {
	t.Parallel()

	_, err := client.New(nil)
	require.Error(t, err)
}
