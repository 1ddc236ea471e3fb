package cache

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is the process-wide in-memory Store.
//
// go-cache is built without a janitor, so expired entries linger until the
// next Get or Has on their key evicts them. mu serialises the
// read-then-evict step against Set so a fresh write is never evicted.
//
// An entry is expired from the instant now reaches its deadline. go-cache
// alone still serves it at exactly the deadline, so lookup checks the
// deadline itself.
type MemoryStore struct {
	mu    sync.Mutex
	items *gocache.Cache
	now   func() time.Time
}

func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		items: gocache.New(defaultTTL, 0),
		now:   time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, found := s.lookup(key)
	if !found {
		return nil, false, nil
	}
	return bytes.Clone(raw), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}

	s.mu.Lock()
	s.items.Set(key, bytes.Clone(value), ttl)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Has(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, found := s.lookup(key)
	return found, nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, key := range keys {
		s.items.Delete(key)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Items only reports unexpired entries; expired ones matching the
	// prefix are dropped by their next lookup anyway.
	for key := range s.items.Items() {
		if strings.HasPrefix(key, prefix) {
			s.items.Delete(key)
		}
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.items.Flush()
	s.mu.Unlock()
	return nil
}

// lookup must be called with mu held.
func (s *MemoryStore) lookup(key string) ([]byte, bool) {
	x, expires, found := s.items.GetWithExpiration(key)
	if !found || (!expires.IsZero() && !s.now().Before(expires)) {
		// go-cache hides expired entries from Get but keeps them; evict here.
		s.items.Delete(key)
		return nil, false
	}
	raw, ok := x.([]byte)
	if !ok {
		s.items.Delete(key)
		return nil, false
	}
	return raw, true
}
