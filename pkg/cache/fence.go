package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

const fenceStripes = 64

// Fence orders cache writes against invalidations of the same key within
// one process. A writer takes a Ticket before it reads or fetches, and its
// later Set is skipped if the key was dropped through the fence in between.
//
// A nil *Fence is valid: Ticket returns 0, Set always writes and Drop only
// deletes.
type Fence struct {
	stripes [fenceStripes]fenceStripe
}

type fenceStripe struct {
	mu sync.Mutex
	// gen only holds keys that were dropped at least once.
	gen map[string]uint64
}

func NewFence() *Fence {
	f := &Fence{}
	for i := range f.stripes {
		f.stripes[i].gen = make(map[string]uint64)
	}
	return f
}

func (f *Fence) stripe(key string) *fenceStripe {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &f.stripes[h.Sum32()%fenceStripes]
}

// Ticket returns the current generation of key.
func (f *Fence) Ticket(key string) uint64 {
	if f == nil {
		return 0
	}
	st := f.stripe(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.gen[key]
}

// Set writes value under key only if key has not been dropped since ticket
// was taken. It reports whether the write happened.
func (f *Fence) Set(ctx context.Context, s Store, key string, ticket uint64, value []byte, ttl time.Duration) (bool, error) {
	if f == nil {
		return true, s.Set(ctx, key, value, ttl)
	}
	st := f.stripe(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.gen[key] != ticket {
		return false, nil
	}
	return true, s.Set(ctx, key, value, ttl)
}

// Drop moves every key to a new generation and deletes it from s.
func (f *Fence) Drop(ctx context.Context, s Store, keys ...string) error {
	if f == nil {
		return s.Delete(ctx, keys...)
	}
	for _, key := range keys {
		st := f.stripe(key)
		st.mu.Lock()
		st.gen[key]++
		err := s.Delete(ctx, key)
		st.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveAt is Save guarded by f. A write skipped because of a newer Drop is
// not an error.
func SaveAt[T any](ctx context.Context, s Store, f *Fence, key string, ticket uint64, v T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	_, err = f.Set(ctx, s, key, ticket, raw, ttl)
	return err
}
