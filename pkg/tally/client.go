package tally

import (
	"context"
	"net/url"
	"time"
)

// Client is the outbound API surface of the SDK. Business endpoints are
// opaque paths; responses are returned as raw bytes for the caller to
// decode.
type Client interface {
	// Login authenticates with the backend and stores the returned
	// credential pair.
	Login(ctx context.Context, identifier, password string) (*LoginResult, error)

	// Logout destroys the credential pair and drops all cached responses.
	Logout(ctx context.Context) error

	// Get performs a GET request. Caching is honored when requested via
	// options.
	Get(ctx context.Context, path string, query url.Values, opts *RequestOptions) ([]byte, error)

	// Post performs a POST request with a JSON-serializable body.
	Post(ctx context.Context, path string, body any, opts *RequestOptions) ([]byte, error)

	// Put performs a PUT request with a JSON-serializable body.
	Put(ctx context.Context, path string, body any, opts *RequestOptions) ([]byte, error)

	// Patch performs a PATCH request with a JSON-serializable body.
	Patch(ctx context.Context, path string, body any, opts *RequestOptions) ([]byte, error)

	// Delete performs a DELETE request.
	Delete(ctx context.Context, path string, opts *RequestOptions) ([]byte, error)

	// Upload performs a POST request with a multipart payload. The payload
	// content type (including boundary) is forwarded untouched.
	Upload(ctx context.Context, path string, payload *Multipart, opts *RequestOptions) ([]byte, error)

	// AccessToken returns the currently held access token, empty when not
	// authenticated.
	AccessToken() string

	// CacheStats returns response cache statistics, nil when caching is
	// disabled.
	CacheStats() *CacheStats

	// ClearCache drops every cached response.
	ClearCache(ctx context.Context) error
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building a tally.Client.
//
// # Base URL resolution
//
// tallyclient.New resolves the backend endpoint from BaseURL (runtime
// override), then a persisted override in the Keyring ("api_url"), then the
// compile-time default. The resolved value is normalized to carry a scheme,
// no trailing slash, and a single "/api" suffix.
//
// # Credentials
//
// AccessToken/RefreshToken seed the credential store; tokens already
// persisted in the Keyring are loaded first and seeds only fill gaps. When
// Identifier and Password are set they double as the stored default login
// used by the last-resort re-authentication step, unless a custom
// Reauthenticator is provided.
type Config struct {
	// BaseURL is the runtime override for the backend endpoint.
	BaseURL string

	// Identifier is the login identifier for the default credential pair.
	Identifier string
	// Password is the login password for the default credential pair.
	Password string

	// AccessToken optionally seeds the credential store.
	AccessToken string
	// RefreshToken optionally seeds the credential store.
	RefreshToken string

	// Keyring persists credentials and overrides. When nil, an in-memory
	// keyring is used and nothing survives the process.
	Keyring Keyring

	// Reauthenticator overrides the default stored-login fallback invoked
	// after a failed token refresh.
	Reauthenticator Reauthenticator

	// NotificationSink receives advisory notifications. When nil they are
	// silently dropped.
	NotificationSink NotificationSink

	// Cache selects the response cache backend. Nil enables the default
	// in-memory cache.
	Cache *CacheConfig

	// HTTPTimeout is the per-request budget. Defaults to 30s.
	HTTPTimeout time.Duration
	// RetryMax is the number of retry attempts for transient failures.
	// Defaults to 3.
	RetryMax int
	// RetryBaseDelay is the initial backoff delay, doubled per attempt.
	// Defaults to 1s.
	RetryBaseDelay time.Duration

	// Debug enables verbose HTTP request/response logging when a Logger is
	// provided.
	Debug bool
	// Logger: optional structured logger used by the HTTP layer.
	Logger Logger
	// UserAgent overrides the default User-Agent header.
	UserAgent string
}
