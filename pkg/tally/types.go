package tally

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"time"
)

// RequestOptions carries the per-request policy flags consulted by the
// dispatcher. A nil options value means defaults: no caching, no success
// notification, error notifications enabled.
type RequestOptions struct {
	// Cache enables response caching for GET requests.
	Cache bool
	// CacheTTL overrides the default cache TTL when Cache is set.
	CacheTTL time.Duration
	// NotifySuccess emits a success notification after POST/PUT/DELETE.
	NotifySuccess bool
	// Quiet suppresses the error notification for failed requests. 404
	// responses are suppressed regardless.
	Quiet bool
	// Headers are merged into the outgoing request headers.
	Headers map[string]string
}

// Multipart is a pre-encoded multipart/form-data payload. Its content type
// carries the boundary and must reach the transport untouched; the
// dispatcher never applies the JSON content type to it.
type Multipart struct {
	ContentType string
	Body        []byte
}

// FilePart describes one file field of a multipart payload.
type FilePart struct {
	Field    string
	Filename string
	Content  []byte
}

// NewMultipart encodes form fields and files into a Multipart payload.
func NewMultipart(fields map[string]string, files ...FilePart) (*Multipart, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	for field, value := range fields {
		err := writer.WriteField(field, value)
		if err != nil {
			return nil, fmt.Errorf("writing field %q: %w", field, err)
		}
	}

	for _, file := range files {
		part, err := writer.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return nil, fmt.Errorf("creating form file %q: %w", file.Field, err)
		}

		_, err = io.Copy(part, bytes.NewReader(file.Content))
		if err != nil {
			return nil, fmt.Errorf("writing form file %q: %w", file.Field, err)
		}
	}

	err := writer.Close()
	if err != nil {
		return nil, fmt.Errorf("finalizing multipart payload: %w", err)
	}

	return &Multipart{
		ContentType: writer.FormDataContentType(),
		Body:        buf.Bytes(),
	}, nil
}

// LoginResult is the response of the login endpoint.
type LoginResult struct {
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken,omitempty"`
	User         json.RawMessage `json:"user,omitempty"`
}

// TokenPair is the response of the refresh endpoint.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Keyring is the durable key-value boundary used to persist credentials
// and configuration overrides.
type Keyring interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Reauthenticator is the last-resort re-authentication collaborator
// invoked when a token refresh fails. It reports whether a full credential
// re-acquisition succeeded.
type Reauthenticator interface {
	EnsureAuthenticated(ctx context.Context) bool
}
