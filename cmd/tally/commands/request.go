package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tallyhq-io/tally-client/pkg/tally"
)

// requestFlags collects the options shared by the raw request commands.
type requestFlags struct {
	data     string
	dataFile string
	query    []string
	cache    bool
	cacheTTL time.Duration
}

func (f *requestFlags) register(cmd *cobra.Command, withBody, withCache bool) {
	if withBody {
		cmd.Flags().StringVarP(&f.data, "data", "d", "", "request body as JSON")
		cmd.Flags().StringVar(&f.dataFile, "data-file", "", "read request body from file ('-' for stdin)")
	}

	if withCache {
		cmd.Flags().BoolVar(&f.cache, "cache", false, "serve from cache when fresh")
		cmd.Flags().DurationVar(&f.cacheTTL, "ttl", 0, "cache TTL for this request (default 5m)")
	}
}

func (f *requestFlags) options() *tally.RequestOptions {
	return &tally.RequestOptions{
		Cache:    f.cache,
		CacheTTL: f.cacheTTL,
	}
}

func (f *requestFlags) queryValues() (url.Values, error) {
	if len(f.query) == 0 {
		return nil, nil
	}

	values := url.Values{}

	for _, pair := range f.query {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid query parameter %q, expected key=value", pair)
		}

		values.Add(key, value)
	}

	return values, nil
}

func (f *requestFlags) body() (any, error) {
	raw := f.data

	if f.dataFile != "" {
		var (
			content []byte
			err     error
		)

		if f.dataFile == "-" {
			content, err = os.ReadFile("/dev/stdin")
		} else {
			content, err = os.ReadFile(filepath.Clean(f.dataFile))
		}

		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}

		raw = string(content)
	}

	if raw == "" {
		return nil, nil
	}

	var decoded json.RawMessage

	err := json.Unmarshal([]byte(raw), &decoded)
	if err != nil {
		return nil, fmt.Errorf("request body is not valid JSON: %w", err)
	}

	return decoded, nil
}

// NewGetCommand creates the raw GET command.
func NewGetCommand() *cobra.Command {
	flags := &requestFlags{}

	cmd := &cobra.Command{
		Use:   "get PATH",
		Short: "Perform a GET request",
		Long:  "Perform a GET request against the backend, optionally served from cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			query, err := flags.queryValues()
			if err != nil {
				return err
			}

			body, err := client.Get(context.Background(), args[0], query, flags.options())
			if err != nil {
				return err
			}

			return renderBody(body)
		},
	}

	flags.register(cmd, false, true)
	cmd.Flags().StringArrayVar(&flags.query, "query", nil, "query parameter (key=value, repeatable)")

	return cmd
}

// NewPostCommand creates the raw POST command.
func NewPostCommand() *cobra.Command {
	return newBodyCommand("post", "POST", func(ctx context.Context, client tally.Client, path string, body any, opts *tally.RequestOptions) ([]byte, error) {
		return client.Post(ctx, path, body, opts)
	})
}

// NewPutCommand creates the raw PUT command.
func NewPutCommand() *cobra.Command {
	return newBodyCommand("put", "PUT", func(ctx context.Context, client tally.Client, path string, body any, opts *tally.RequestOptions) ([]byte, error) {
		return client.Put(ctx, path, body, opts)
	})
}

// NewPatchCommand creates the raw PATCH command.
func NewPatchCommand() *cobra.Command {
	return newBodyCommand("patch", "PATCH", func(ctx context.Context, client tally.Client, path string, body any, opts *tally.RequestOptions) ([]byte, error) {
		return client.Patch(ctx, path, body, opts)
	})
}

func newBodyCommand(use, method string, send func(context.Context, tally.Client, string, any, *tally.RequestOptions) ([]byte, error)) *cobra.Command {
	flags := &requestFlags{}

	cmd := &cobra.Command{
		Use:   use + " PATH",
		Short: "Perform a " + method + " request",
		Long:  "Perform a " + method + " request with a JSON body against the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			body, err := flags.body()
			if err != nil {
				return err
			}

			responseBody, err := send(context.Background(), client, args[0], body, flags.options())
			if err != nil {
				return err
			}

			return renderBody(responseBody)
		},
	}

	flags.register(cmd, true, false)

	return cmd
}

// NewDeleteCommand creates the raw DELETE command.
func NewDeleteCommand() *cobra.Command {
	flags := &requestFlags{}

	cmd := &cobra.Command{
		Use:   "delete PATH",
		Short: "Perform a DELETE request",
		Long:  "Perform a DELETE request against the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			body, err := client.Delete(context.Background(), args[0], flags.options())
			if err != nil {
				return err
			}

			return renderBody(body)
		},
	}

	flags.register(cmd, false, false)

	return cmd
}

// NewUploadCommand creates the multipart upload command.
func NewUploadCommand() *cobra.Command {
	var (
		files  []string
		fields []string
	)

	cmd := &cobra.Command{
		Use:   "upload PATH",
		Short: "Upload files via multipart POST",
		Long:  "Perform a multipart POST request with file and form field parts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			payload, err := buildMultipart(fields, files)
			if err != nil {
				return err
			}

			body, err := client.Upload(context.Background(), args[0], payload, nil)
			if err != nil {
				return err
			}

			return renderBody(body)
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "file part (field=path, repeatable)")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "form field (key=value, repeatable)")

	return cmd
}

func buildMultipart(fields, files []string) (*tally.Multipart, error) {
	formFields := make(map[string]string, len(fields))

	for _, pair := range fields {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid form field %q, expected key=value", pair)
		}

		formFields[key] = value
	}

	fileParts := make([]tally.FilePart, 0, len(files))

	for _, pair := range files {
		field, path, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid file part %q, expected field=path", pair)
		}

		content, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("reading file part %q: %w", path, err)
		}

		fileParts = append(fileParts, tally.FilePart{
			Field:    field,
			Filename: filepath.Base(path),
			Content:  content,
		})
	}

	return tally.NewMultipart(formFields, fileParts...)
}
