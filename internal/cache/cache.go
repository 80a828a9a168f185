// Package cache stores whole rendered pages for a short time.
//
// The first GET of a page renders it normally and keeps the bytes; every
// later GET of the same page within the TTL is answered from the store,
// even if the posts behind it changed in the meantime. Nothing invalidates
// entries on writes. They expire, or staff clear the cache explicitly.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long a cached page is served.
const DefaultTTL = 20 * time.Second

// Store is a byte-oriented key/value store with per-entry expiry.
type Store interface {
	// Get returns (nil, false, nil) on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Clear drops every entry this store owns.
	Clear(ctx context.Context) error
	Close() error
}
