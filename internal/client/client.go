// Package client provides the concrete tally.Client implementation.
package client

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"

	"github.com/tallyhq-io/tally-client/internal/auth"
	"github.com/tallyhq-io/tally-client/internal/constants"
	"github.com/tallyhq-io/tally-client/internal/http"
	"github.com/tallyhq-io/tally-client/internal/store"
	"github.com/tallyhq-io/tally-client/pkg/tally"
)

// Client implements the tally.Client interface.
type Client struct {
	dispatcher *http.Client
	creds      *store.CredentialStore
	cache      *tally.CacheManager
	tokens     *auth.TokenClient
	sink       tally.NotificationSink
	logger     tally.Logger
}

// New creates a client from config. The base URL must already be resolved
// and normalized (see pkg/tallyclient).
func New(config *tally.Config) (*Client, error) {
	if config == nil {
		return nil, constants.ErrConfigRequired
	}

	if config.BaseURL == "" {
		return nil, constants.ErrBaseURLRequired
	}

	keyring := config.Keyring
	if keyring == nil {
		keyring = store.NewMemoryKeyring()
	}

	creds := store.NewCredentialStore(keyring, config.Logger)
	seedCredentials(creds, config)

	cacheManager, err := buildCacheManager(config)
	if err != nil {
		return nil, err
	}

	tokens := auth.NewTokenClient(config.BaseURL, config.Logger)

	reauth := config.Reauthenticator
	if reauth == nil && config.Identifier != "" && config.Password != "" {
		reauth = &storedLoginReauthenticator{
			tokens:     tokens,
			creds:      creds,
			identifier: config.Identifier,
			password:   config.Password,
			logger:     config.Logger,
		}
	}

	recovery := auth.NewRecoveryFlow(creds, tokens, reauth, config.Logger)

	dispatcher := http.NewClient(config.BaseURL, creds, dispatcherOptions(config, cacheManager, recovery)...)

	return &Client{
		dispatcher: dispatcher,
		creds:      creds,
		cache:      cacheManager,
		tokens:     tokens,
		sink:       config.NotificationSink,
		logger:     config.Logger,
	}, nil
}

// seedCredentials fills token gaps from config without overwriting values
// already persisted in the keyring.
func seedCredentials(creds *store.CredentialStore, config *tally.Config) {
	if creds.AccessToken() == "" && config.AccessToken != "" {
		creds.SetTokens(config.AccessToken, config.RefreshToken)

		return
	}

	if creds.RefreshToken() == "" && config.RefreshToken != "" {
		creds.SetTokens(creds.AccessToken(), config.RefreshToken)
	}
}

// buildCacheManager creates the cache manager, nil when caching is
// disabled outright.
func buildCacheManager(config *tally.Config) (*tally.CacheManager, error) {
	if config.Cache != nil && config.Cache.Type == tally.CacheTypeNone {
		return nil, nil
	}

	cache, err := tally.NewCacheFromConfig(config.Cache)
	if err != nil {
		return nil, fmt.Errorf("building cache: %w", err)
	}

	return tally.NewCacheManager(cache, config.Logger), nil
}

func dispatcherOptions(config *tally.Config, cache *tally.CacheManager, recovery *auth.RecoveryFlow) []http.Option {
	opts := []http.Option{
		http.WithRecovery(recovery),
	}

	if cache != nil {
		opts = append(opts, http.WithCache(cache))
	}

	if config.NotificationSink != nil {
		opts = append(opts, http.WithNotificationSink(config.NotificationSink))
	}

	if config.Logger != nil {
		opts = append(opts, http.WithLogger(config.Logger))
	}

	if config.Debug {
		opts = append(opts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		opts = append(opts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		opts = append(opts, http.WithTimeout(config.HTTPTimeout))
	}

	if config.RetryMax > 0 || config.RetryBaseDelay > 0 {
		opts = append(opts, http.WithRetryConfig(config.RetryMax, config.RetryBaseDelay))
	}

	return opts
}

// Login implements tally.Client.Login.
func (c *Client) Login(ctx context.Context, identifier, password string) (*tally.LoginResult, error) {
	if identifier == "" || password == "" {
		return nil, constants.ErrCredentialsMissing
	}

	result, err := c.tokens.Login(ctx, identifier, password)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}

	c.creds.SetTokens(result.Token, result.RefreshToken)

	return result, nil
}

// Logout implements tally.Client.Logout: it destroys the credential pair
// and drops all cached responses.
func (c *Client) Logout(ctx context.Context) error {
	c.creds.Clear()

	if c.cache != nil {
		err := c.cache.Clear(ctx)
		if err != nil {
			return fmt.Errorf("clearing cache on logout: %w", err)
		}
	}

	return nil
}

// Get implements tally.Client.Get.
func (c *Client) Get(ctx context.Context, path string, query url.Values, opts *tally.RequestOptions) ([]byte, error) {
	return c.request(ctx, nethttp.MethodGet, path, query, nil, opts)
}

// Post implements tally.Client.Post.
func (c *Client) Post(ctx context.Context, path string, body any, opts *tally.RequestOptions) ([]byte, error) {
	return c.request(ctx, nethttp.MethodPost, path, nil, body, opts)
}

// Put implements tally.Client.Put.
func (c *Client) Put(ctx context.Context, path string, body any, opts *tally.RequestOptions) ([]byte, error) {
	return c.request(ctx, nethttp.MethodPut, path, nil, body, opts)
}

// Patch implements tally.Client.Patch.
func (c *Client) Patch(ctx context.Context, path string, body any, opts *tally.RequestOptions) ([]byte, error) {
	return c.request(ctx, nethttp.MethodPatch, path, nil, body, opts)
}

// Delete implements tally.Client.Delete.
func (c *Client) Delete(ctx context.Context, path string, opts *tally.RequestOptions) ([]byte, error) {
	return c.request(ctx, nethttp.MethodDelete, path, nil, nil, opts)
}

// Upload implements tally.Client.Upload.
func (c *Client) Upload(ctx context.Context, path string, payload *tally.Multipart, opts *tally.RequestOptions) ([]byte, error) {
	return c.request(ctx, nethttp.MethodPost, path, nil, payload, opts)
}

// AccessToken implements tally.Client.AccessToken.
func (c *Client) AccessToken() string {
	return c.creds.AccessToken()
}

// CacheStats implements tally.Client.CacheStats.
func (c *Client) CacheStats() *tally.CacheStats {
	if c.cache == nil {
		return nil
	}

	return c.cache.GetStats()
}

// ClearCache implements tally.Client.ClearCache.
func (c *Client) ClearCache(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}

	err := c.cache.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	return nil
}

func (c *Client) request(ctx context.Context, method, path string, query url.Values, body any, opts *tally.RequestOptions) ([]byte, error) {
	req := &http.Request{
		Method: method,
		Path:   path,
		Query:  query,
		Body:   body,
	}

	if opts != nil {
		req.Cache = opts.Cache
		req.CacheTTL = opts.CacheTTL
		req.NotifySuccess = opts.NotifySuccess
		req.Quiet = opts.Quiet
		req.Headers = opts.Headers
	}

	resp, err := c.dispatcher.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

// storedLoginReauthenticator is the default last-resort re-auth step: a
// full login with the stored default credential pair.
type storedLoginReauthenticator struct {
	tokens     *auth.TokenClient
	creds      *store.CredentialStore
	identifier string
	password   string
	logger     tally.Logger
}

// EnsureAuthenticated implements tally.Reauthenticator.
func (r *storedLoginReauthenticator) EnsureAuthenticated(ctx context.Context) bool {
	result, err := r.tokens.Login(ctx, r.identifier, r.password)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("stored-login reauthentication failed", map[string]interface{}{
				"error": err.Error(),
			})
		}

		return false
	}

	r.creds.SetTokens(result.Token, result.RefreshToken)

	return true
}
