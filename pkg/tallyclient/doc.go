// Package tallyclient provides the public entry points for creating a
// Tally API client.
//
// Basic usage with a stored credential pair:
//
//	client, err := tallyclient.NewWithPassword("api.tallyhq.io", "cashier@example.com", "secret", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	body, err := client.Get(ctx, "/products", nil, &tally.RequestOptions{Cache: true})
//
// The base URL is resolved from the runtime value, then a persisted
// override in the keyring, then the built-in default, and is normalized
// to carry a scheme and a single "/api" suffix.
package tallyclient
