package constants

import "errors"

// Configuration errors.
var (
	ErrConfigRequired   = errors.New("config is required")
	ErrBaseURLRequired  = errors.New("base URL is required")
	ErrNoHostInURL      = errors.New("no host specified in URL")
	ErrUnknownConfigKey = errors.New("unknown configuration key")
)

// Authentication errors.
var (
	ErrNoRefreshToken     = errors.New("no refresh token available, please log in again")
	ErrRefreshFailed      = errors.New("token refresh failed")
	ErrRefreshNoToken     = errors.New("refresh response did not contain a token")
	ErrLoginNoToken       = errors.New("login response did not contain a token")
	ErrNotAuthenticated   = errors.New("not authenticated, run 'tally login' first")
	ErrCredentialsMissing = errors.New("identifier and password are required")
)

// Cache errors.
var (
	ErrCacheKeyNotFound  = errors.New("key not found")
	ErrCacheEntryExpired = errors.New("cache entry expired")
	ErrCacheDisabled     = errors.New("cache disabled")
)
