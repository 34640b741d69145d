package tally

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/tallyhq-io/tally-client/internal/constants"
)

// NATSKVConfig configures the NATS JetStream KV cache backend.
type NATSKVConfig struct {
	// URL is the NATS server URL (e.g. nats://localhost:4222).
	URL string

	// Bucket is the KV bucket name. Created when missing.
	Bucket string

	// CredsFile is an optional NATS credentials file.
	CredsFile string

	// Replicas is the bucket replica count when the bucket is created.
	Replicas int
}

// NATSKVCache is a Cache backed by a NATS JetStream key-value bucket,
// letting multiple client processes share one response cache.
type NATSKVCache struct {
	conn *nats.Conn
	kv   nats.KeyValue
}

// NewNATSKVCache connects to NATS and binds (or creates) the KV bucket.
func NewNATSKVCache(config *NATSKVConfig) (*NATSKVCache, error) {
	var opts []nats.Option

	if config.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(config.CredsFile))
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("getting JetStream context: %w", err)
	}

	kv, err := js.KeyValue(config.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		replicas := config.Replicas
		if replicas <= 0 {
			replicas = 1
		}

		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:   config.Bucket,
			Replicas: replicas,
		})
	}

	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("binding KV bucket %q: %w", config.Bucket, err)
	}

	return &NATSKVCache{conn: conn, kv: kv}, nil
}

// Get returns the entry for key, evicting it when expired.
func (c *NATSKVCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	kvEntry, err := c.kv.Get(encodeKVKey(key))
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", constants.ErrCacheKeyNotFound, key)
		}

		return nil, fmt.Errorf("reading KV entry: %w", err)
	}

	var entry CacheEntry

	err = json.Unmarshal(kvEntry.Value(), &entry)
	if err != nil {
		return nil, fmt.Errorf("decoding KV entry: %w", err)
	}

	if entry.Expired() {
		_ = c.kv.Delete(encodeKVKey(key))

		return nil, fmt.Errorf("%w: %s", constants.ErrCacheEntryExpired, key)
	}

	return &entry, nil
}

// Set stores an entry.
func (c *NATSKVCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding KV entry: %w", err)
	}

	_, err = c.kv.Put(encodeKVKey(key), data)
	if err != nil {
		return fmt.Errorf("writing KV entry: %w", err)
	}

	return nil
}

// Delete removes an entry.
func (c *NATSKVCache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(encodeKVKey(key))
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("deleting KV entry: %w", err)
	}

	return nil
}

// Clear drops every entry in the bucket.
func (c *NATSKVCache) Clear(ctx context.Context) error {
	keys, err := c.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil
		}

		return fmt.Errorf("listing KV keys: %w", err)
	}

	for _, key := range keys {
		err := c.kv.Delete(key)
		if err != nil {
			return fmt.Errorf("deleting KV entry %q: %w", key, err)
		}
	}

	return nil
}

// Has reports whether a live entry exists for key.
func (c *NATSKVCache) Has(ctx context.Context, key string) bool {
	entry, err := c.Get(ctx, key)

	return err == nil && entry != nil
}

// Keys returns all current keys in manager form.
func (c *NATSKVCache) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("listing KV keys: %w", err)
	}

	decoded := make([]string, 0, len(keys))
	for _, key := range keys {
		decoded = append(decoded, decodeKVKey(key))
	}

	return decoded, nil
}

// Close releases the NATS connection.
func (c *NATSKVCache) Close() {
	c.conn.Close()
}

// NATS KV keys permit only [A-Za-z0-9_=/.-]. Derived cache keys contain
// ':' and query characters, so bytes outside the safe set are escaped as
// "=HH" (hex). The mapping is reversible so substring invalidation on path
// segments still works against decoded keys.
func encodeKVKey(key string) string {
	var builder strings.Builder

	for i := 0; i < len(key); i++ {
		char := key[i]
		if isKVSafe(char) && char != '=' {
			builder.WriteByte(char)

			continue
		}

		fmt.Fprintf(&builder, "=%02x", char)
	}

	return builder.String()
}

func decodeKVKey(key string) string {
	var builder strings.Builder

	for i := 0; i < len(key); i++ {
		if key[i] == '=' && i+2 < len(key) {
			char, err := strconv.ParseUint(key[i+1:i+3], 16, 8)
			if err == nil {
				builder.WriteByte(byte(char))
				i += 2

				continue
			}
		}

		builder.WriteByte(key[i])
	}

	return builder.String()
}

func isKVSafe(char byte) bool {
	switch {
	case char >= 'a' && char <= 'z', char >= 'A' && char <= 'Z', char >= '0' && char <= '9':
		return true
	case char == '_' || char == '-' || char == '/' || char == '.' || char == '=':
		return true
	default:
		return false
	}
}
