package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the per-request budget armed by the dispatcher.
	DefaultHTTPTimeout = 30 * time.Second

	// AuthHTTPTimeout is the timeout for token refresh and login calls.
	AuthHTTPTimeout = 10 * time.Second
)

// Retry policy defaults.
const (
	// DefaultRetryMax is the default number of retry attempts for
	// transient failures.
	DefaultRetryMax = 3

	// DefaultRetryBaseDelay is the initial backoff delay; it doubles on
	// every subsequent attempt.
	DefaultRetryBaseDelay = 1 * time.Second

	// AuthRetryMax is the retry budget for the token endpoint client.
	AuthRetryMax = 2

	// DefaultRetryAfterSeconds is assumed when a 429 response carries no
	// Retry-After header or body hint.
	DefaultRetryAfterSeconds = 60
)

// Cache defaults.
const (
	// DefaultCacheSize is the maximum number of entries held by the
	// in-memory response cache.
	DefaultCacheSize = 1000

	// DefaultCacheTTL applies when a request enables caching without an
	// explicit TTL.
	DefaultCacheTTL = 5 * time.Minute

	// CacheKeyHashLength is the number of hex characters of the body hash
	// kept in derived cache keys.
	CacheKeyHashLength = 16
)

// Keyring entry names for persisted state.
const (
	// KeyringAccessToken is the keyring entry holding the access token.
	KeyringAccessToken = "access_token"

	// KeyringRefreshToken is the keyring entry holding the refresh token.
	KeyringRefreshToken = "refresh_token"

	// KeyringBaseURL is the keyring entry holding a persisted base URL
	// override.
	KeyringBaseURL = "api_url"
)

// Endpoint defaults.
const (
	// DefaultBaseURL is the compile-time default backend endpoint, used
	// when neither a runtime nor a persisted override is present.
	DefaultBaseURL = "https://api.tallyhq.io"

	// APIPathPrefix is the path prefix every resolved base URL ends with.
	APIPathPrefix = "/api"

	// RefreshPath is the token refresh endpoint.
	RefreshPath = "/auth/refresh"

	// LoginPath is the credential login endpoint.
	LoginPath = "/auth/login"
)

// Notification categories.
const (
	// NotificationCategoryAPI tags notifications emitted by the dispatcher.
	NotificationCategoryAPI = "api"

	// NotificationCategoryAuth tags notifications emitted by the recovery flow.
	NotificationCategoryAuth = "auth"
)
