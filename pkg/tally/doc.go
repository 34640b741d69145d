// Package tally provides the public API for the Tally backend client: the
// Client interface, request options, typed errors and their classifier, the
// response cache with its backends, and the notification sink.
//
// The client is a resilient API layer for a single backend: every outbound
// request flows through one dispatcher that handles caching, retry with
// backoff, rate-limit cooldowns, timeout classification, and transparent
// credential recovery on authorization failures.
//
// Create clients with the tallyclient package:
//
//	client, err := tallyclient.New(&tally.Config{
//		BaseURL:    "https://api.example.com",
//		Identifier: "admin",
//		Password:   "secret",
//	})
//
// Business endpoints are opaque to this layer; responses are raw bytes for
// the caller to decode:
//
//	data, err := client.Get(ctx, "/products", nil, &tally.RequestOptions{
//		Cache:    true,
//		CacheTTL: 2 * time.Minute,
//	})
//
// Mutating verbs invalidate cached entries sharing the resource's first
// path segment, so a POST to /products/42/labels drops every cached
// /products read.
package tally
