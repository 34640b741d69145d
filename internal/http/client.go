// Package http implements the request dispatcher: the single path every
// outbound backend call takes. It layers caching, timeout enforcement,
// retry delegation, error classification, authorization recovery, cache
// invalidation, and advisory notifications over the standard transport.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tallyhq-io/tally-client/internal/auth"
	"github.com/tallyhq-io/tally-client/internal/constants"
	"github.com/tallyhq-io/tally-client/internal/retry"
	"github.com/tallyhq-io/tally-client/internal/store"
	"github.com/tallyhq-io/tally-client/pkg/tally"
)

// Recoverer repairs a 401 and reports whether the original request should
// be replayed.
type Recoverer interface {
	Recover(ctx context.Context) auth.State
}

// Request is a dispatcher request. Body is JSON-serializable, raw bytes,
// or *tally.Multipart.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Headers map[string]string

	// Cache enables response caching; GET only.
	Cache bool
	// CacheTTL overrides the default TTL when Cache is set.
	CacheTTL time.Duration
	// NotifySuccess emits a success notification after POST/PUT/DELETE.
	NotifySuccess bool
	// Quiet suppresses the error notification on failure.
	Quiet bool
}

// Response is a completed dispatcher response. Body is nil when the
// payload declared JSON but failed to parse.
type Response struct {
	StatusCode int
	Headers    nethttp.Header
	Body       []byte
}

// Client is the dispatcher.
type Client struct {
	baseURL    string
	creds      *store.CredentialStore
	cache      *tally.CacheManager
	recovery   Recoverer
	sink       tally.NotificationSink
	classifier *tally.Classifier
	httpClient *nethttp.Client
	logger     tally.Logger
	debug      bool
	userAgent  string
	timeout    time.Duration
	retryMax   int
	retryBase  time.Duration
}

// Option configures the dispatcher.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger tally.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithTimeout sets the per-request budget.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetryConfig sets the retry budget and base backoff delay.
func WithRetryConfig(retryMax int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if retryMax > 0 {
			c.retryMax = retryMax
		}

		if baseDelay > 0 {
			c.retryBase = baseDelay
		}
	}
}

// WithCache attaches a cache manager.
func WithCache(cache *tally.CacheManager) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithRecovery attaches the authorization recovery flow.
func WithRecovery(recovery Recoverer) Option {
	return func(c *Client) {
		c.recovery = recovery
	}
}

// WithNotificationSink attaches the advisory notification sink.
func WithNotificationSink(sink tally.NotificationSink) Option {
	return func(c *Client) {
		c.sink = sink
	}
}

// NewClient creates a dispatcher for baseURL using creds for header
// construction and 401 bookkeeping.
func NewClient(baseURL string, creds *store.CredentialStore, opts ...Option) *Client {
	client := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		creds:      creds,
		httpClient: &nethttp.Client{},
		timeout:    constants.DefaultHTTPTimeout,
		retryMax:   constants.DefaultRetryMax,
		retryBase:  constants.DefaultRetryBaseDelay,
		userAgent:  "tally-client/1",
	}

	for _, opt := range opts {
		opt(client)
	}

	client.classifier = tally.NewClassifier(creds)

	return client
}

// Do dispatches a request through the full policy stack.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = nethttp.MethodGet
	}

	bodyBytes, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	var cacheKey string

	cacheable := req.Cache && method == nethttp.MethodGet && c.cache != nil
	if cacheable {
		cacheKey = c.cache.GetCacheKey(method, req.Path, req.Query, bodyBytes)

		// A hit returns immediately: no network call, no timeout armed.
		if data, cacheErr := c.cache.Get(ctx, cacheKey); cacheErr == nil {
			if c.debug && c.logger != nil {
				c.logger.Debug("cache hit", map[string]interface{}{
					"method": method, "path": req.Path,
				})
			}

			return &Response{StatusCode: nethttp.StatusOK, Body: data}, nil
		}
	}

	resp, err := c.dispatch(ctx, req, method, bodyBytes, contentType, true)
	if err != nil {
		return nil, err
	}

	if cacheable {
		_ = c.cache.Set(ctx, cacheKey, resp.Body, req.CacheTTL)
	}

	if isMutation(method) {
		c.invalidateResource(ctx, req.Path)
		c.notifySuccess(req, method)
	}

	return resp, nil
}

// dispatch runs one network round of the request: timeout, retry engine,
// classification, and (once) authorization recovery with replay.
func (c *Client) dispatch(ctx context.Context, req *Request, method string, bodyBytes []byte, contentType string, allowRecovery bool) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := retry.Do(attemptCtx, func(ctx context.Context) (*Response, error) {
		return c.roundTrip(ctx, method, req, bodyBytes, contentType)
	}, retry.Options{
		Retries:   c.retryMax,
		BaseDelay: c.retryBase,
		Sink:      c.sink,
		Logger:    c.logger,
	})
	if err != nil {
		c.notifyError(req, err)

		return nil, err
	}

	if resp.StatusCode == nethttp.StatusUnauthorized && allowRecovery && c.recovery != nil {
		if c.recovery.Recover(ctx) == auth.StateRecovered {
			// Replay exactly once with fresh headers; the replay's
			// outcome flows through normal handling, without another
			// recovery round.
			return c.dispatch(ctx, req, method, bodyBytes, contentType, false)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := c.classifier.Classify(resp.StatusCode, resp.Headers, resp.Body)
		c.notifyError(req, apiErr)

		return nil, apiErr
	}

	return resp, nil
}

// roundTrip performs a single HTTP exchange. Server errors and rate
// limits return classified (retry-eligible) errors; every other response
// is handed back for the dispatch layer to judge.
func (c *Client) roundTrip(ctx context.Context, method string, req *Request, bodyBytes []byte, contentType string) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, method, req, bodyBytes, contentType)
	if err != nil {
		return nil, err
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": method,
			"url":    httpReq.URL.String(),
		})
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// An aborted request is a timeout, never a network error, and
		// surfaces immediately without entering the backoff path.
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, tally.NewTimeoutError()
		}

		return nil, tally.NewNetworkError(err)
	}

	defer func() {
		_ = httpResp.Body.Close()
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, tally.NewNetworkError(err)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"method":      method,
			"url":         httpReq.URL.String(),
			"status_code": httpResp.StatusCode,
		})
	}

	if httpResp.StatusCode >= nethttp.StatusInternalServerError || httpResp.StatusCode == nethttp.StatusTooManyRequests {
		return nil, c.classifier.Classify(httpResp.StatusCode, httpResp.Header, body)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       parseBody(httpResp.Header, body),
	}, nil
}

// buildRequest constructs the outgoing request with fresh headers. The
// access token is read per attempt so a replay after recovery carries the
// refreshed token.
func (c *Client) buildRequest(ctx context.Context, method string, req *Request, bodyBytes []byte, contentType string) (*nethttp.Request, error) {
	requestURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		requestURL += "?" + req.Query.Encode()
	}

	var body io.Reader
	if len(bodyBytes) > 0 {
		body = bytes.NewReader(bodyBytes)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	// Multipart payloads carry their own content type with the boundary;
	// overriding it with application/json would break the upload.
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if token := c.creds.AccessToken(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

// encodeBody serializes the request body once so retries and the recovery
// replay reuse identical bytes.
func encodeBody(body any) ([]byte, string, error) {
	switch payload := body.(type) {
	case nil:
		return nil, "application/json", nil
	case *tally.Multipart:
		return payload.Body, payload.ContentType, nil
	case []byte:
		return payload, "application/json", nil
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, "", fmt.Errorf("encoding request body: %w", err)
		}

		return data, "application/json", nil
	}
}

// parseBody validates a declared-JSON payload; a parse failure yields a
// nil body rather than an error. Non-JSON payloads pass through raw.
func parseBody(header nethttp.Header, body []byte) []byte {
	if len(body) == 0 {
		return nil
	}

	if strings.Contains(header.Get("Content-Type"), "application/json") && !json.Valid(body) {
		return nil
	}

	return body
}

// invalidateResource drops every cached entry sharing the mutated
// resource's first path segment. Coarse by design; the cache is an
// optimization, not a correctness mechanism.
func (c *Client) invalidateResource(ctx context.Context, path string) {
	if c.cache == nil {
		return
	}

	segment := firstPathSegment(path)
	if segment == "" {
		return
	}

	_, _ = c.cache.InvalidatePattern(ctx, segment)
}

func firstPathSegment(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ""
	}

	segment, _, _ := strings.Cut(trimmed, "/")

	return segment
}

func isMutation(method string) bool {
	switch method {
	case nethttp.MethodPost, nethttp.MethodPut, nethttp.MethodPatch, nethttp.MethodDelete:
		return true
	default:
		return false
	}
}

// notifyError emits the advisory error notification, honoring the 404
// suppression and the caller's opt-out.
func (c *Client) notifyError(req *Request, err error) {
	if req.Quiet {
		return
	}

	apiErr, ok := tally.AsAPIError(err)
	if !ok || apiErr.Kind == tally.ErrorNotFound {
		return
	}

	tally.Emit(c.sink, tally.Notification{
		Type:     tally.NotificationError,
		Title:    "Request failed",
		Message:  apiErr.Message,
		Category: constants.NotificationCategoryAPI,
	})
}

// notifySuccess emits the method-specific success notification.
func (c *Client) notifySuccess(req *Request, method string) {
	if !req.NotifySuccess {
		return
	}

	var message string

	switch method {
	case nethttp.MethodPost:
		message = "Created successfully."
	case nethttp.MethodPut:
		message = "Updated successfully."
	case nethttp.MethodDelete:
		message = "Deleted successfully."
	default:
		return
	}

	tally.Emit(c.sink, tally.Notification{
		Type:     tally.NotificationSuccess,
		Title:    "Success",
		Message:  message,
		Category: constants.NotificationCategoryAPI,
	})
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodGet, Path: path, Query: query})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: nethttp.MethodDelete, Path: path})
}
