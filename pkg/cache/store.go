// Package cache holds the TTL stores shared by every section loader.
//
// Stores keep encoded bytes, never live Go values, so a value handed out by
// Get can be mutated freely without touching what is cached. Expiration is
// checked lazily on read; nothing sweeps in the background.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Store is a key/value store with per-entry expiration.
type Store interface {
	// Get returns the value if present and unexpired. An expired entry is
	// evicted and reported as absent. Reads never extend the TTL.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key, replacing any previous entry.
	// A ttl <= 0 selects the store default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Has reports presence with the same eviction rule as Get.
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix drops every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	Clear(ctx context.Context) error
}

// Key joins parts into a fully qualified cache key, e.g.
// Key("course", id, "announcements") => "course:<id>:announcements".
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Load decodes the JSON value stored under key.
// A decode failure is returned as an error with found=false.
func Load[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var zero T
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return zero, false, err
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return v, true, nil
}

// Save encodes v as JSON and stores it under key.
func Save[T any](ctx context.Context, s Store, key string, v T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return s.Set(ctx, key, raw, ttl)
}
