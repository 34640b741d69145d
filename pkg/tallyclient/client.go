package tallyclient

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tallyhq-io/tally-client/internal/client"
	"github.com/tallyhq-io/tally-client/internal/constants"
	"github.com/tallyhq-io/tally-client/pkg/tally"
)

// New creates a new Tally API client from config. The base URL is
// resolved from config.BaseURL, then a persisted keyring override, then
// the built-in default, and normalized before use.
func New(config *tally.Config) (tally.Client, error) {
	if config == nil {
		return nil, constants.ErrConfigRequired
	}

	resolved := *config

	baseURL, err := ResolveBaseURL(config.BaseURL, config.Keyring)
	if err != nil {
		return nil, err
	}

	resolved.BaseURL = baseURL

	return client.New(&resolved)
}

// NewWithToken creates a client seeded with an existing access token.
// keyring may be nil for a process-local client.
func NewWithToken(baseURL, accessToken string, keyring tally.Keyring) (tally.Client, error) {
	return New(&tally.Config{
		BaseURL:     baseURL,
		AccessToken: accessToken,
		Keyring:     keyring,
	})
}

// NewWithPassword creates a client with a stored default credential pair.
// The pair is also used for last-resort re-authentication after a failed
// token refresh.
func NewWithPassword(baseURL, identifier, password string, keyring tally.Keyring) (tally.Client, error) {
	return New(&tally.Config{
		BaseURL:    baseURL,
		Identifier: identifier,
		Password:   password,
		Keyring:    keyring,
	})
}

// ResolveBaseURL picks the effective base URL: the runtime value wins,
// then a persisted override in the keyring, then the built-in default.
// The result is normalized.
func ResolveBaseURL(baseURL string, keyring tally.Keyring) (string, error) {
	if baseURL == "" && keyring != nil {
		stored, err := keyring.Get(constants.KeyringBaseURL)
		if err == nil && stored != "" {
			baseURL = stored
		}
	}

	if baseURL == "" {
		baseURL = constants.DefaultBaseURL
	}

	return NormalizeBaseURL(baseURL)
}

// NormalizeBaseURL brings an endpoint into canonical form: an https
// scheme is assumed when none is given, trailing slashes are dropped,
// and a single "/api" suffix is appended when missing.
func NormalizeBaseURL(baseURL string) (string, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return "", constants.ErrBaseURLRequired
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	if parsed.Host == "" {
		return "", fmt.Errorf("%w: %q", constants.ErrNoHostInURL, baseURL)
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(parsed.Path, constants.APIPathPrefix) {
		parsed.Path += constants.APIPathPrefix
	}

	parsed.RawQuery = ""
	parsed.Fragment = ""

	return parsed.String(), nil
}
