// Package auth implements the token endpoint client and the recovery flow
// that repairs authorization failures.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/tallyhq-io/tally-client/internal/constants"
	"github.com/tallyhq-io/tally-client/pkg/tally"
)

// TokenClient talks to the backend's auth endpoints. It is the only HTTP
// path that bypasses the dispatcher: refresh and login must not recurse
// into the recovery flow they serve.
type TokenClient struct {
	baseURL    string
	httpClient *retryablehttp.Client
	logger     tally.Logger
}

// NewTokenClient creates a token endpoint client for baseURL. logger may
// be nil.
func NewTokenClient(baseURL string, logger tally.Logger) *TokenClient {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = constants.AuthRetryMax
	httpClient.HTTPClient.Timeout = constants.AuthHTTPTimeout
	httpClient.Logger = nil

	return &TokenClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Refresh exchanges a refresh token for a new token pair.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (*tally.TokenPair, error) {
	body, status, err := c.post(ctx, constants.RefreshPath, map[string]string{
		"refreshToken": refreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("calling refresh endpoint: %w", err)
	}

	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: status %d", constants.ErrRefreshFailed, status)
	}

	var pair tally.TokenPair

	err = json.Unmarshal(body, &pair)
	if err != nil {
		return nil, fmt.Errorf("parsing refresh response: %w", err)
	}

	if pair.Token == "" {
		return nil, constants.ErrRefreshNoToken
	}

	return &pair, nil
}

// Login authenticates with identifier and password.
func (c *TokenClient) Login(ctx context.Context, identifier, password string) (*tally.LoginResult, error) {
	body, status, err := c.post(ctx, constants.LoginPath, map[string]string{
		"identifier": identifier,
		"password":   password,
	})
	if err != nil {
		return nil, fmt.Errorf("calling login endpoint: %w", err)
	}

	if status < 200 || status >= 300 {
		return nil, &tally.APIError{
			Kind:    tally.ErrorUnauthorized,
			Status:  status,
			Message: "Login failed. Check your identifier and password.",
		}
	}

	var result tally.LoginResult

	err = json.Unmarshal(body, &result)
	if err != nil {
		return nil, fmt.Errorf("parsing login response: %w", err)
	}

	if result.Token == "" {
		return nil, constants.ErrLoginNoToken
	}

	return &result, nil
}

// post sends a JSON body and returns the response body and status.
func (c *TokenClient) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("encoding request body: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("sending request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}

	return body, resp.StatusCode, nil
}
