// Package cache provides the process-wide key/value store used for org
// watermarks and task results.
package cache

import (
	"context"
	"time"
)

// UpdateFunc maps the current value, if any, to the new one. Returning false
// keeps the current value.
type UpdateFunc func(current string, ok bool) (string, bool)

// Cache is a string key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Update atomically replaces the value with what fn returns, leaving it
	// untouched when fn reports no change.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error
	Close() error
}
