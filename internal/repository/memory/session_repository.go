package memory

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// View is anything a user keeps open between requests.
type View interface {
	Close()
}

// SessionRepository holds one live view per user. Views idle for longer than
// the TTL are purged by the janitor and closed on the way out.
type SessionRepository[V View] struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewSessionRepository[V View](idleTTL time.Duration) *SessionRepository[V] {
	purge := idleTTL / 2
	if purge < time.Second {
		purge = time.Second
	}

	c := cache.New(idleTTL, purge)
	c.OnEvicted(func(_ string, x interface{}) {
		if v, ok := x.(V); ok {
			v.Close()
		}
	})
	return &SessionRepository[V]{cache: c}
}

// GetOrCreate returns the user's view, building it with create when absent.
// Every hit extends the idle window.
func (r *SessionRepository[V]) GetOrCreate(userID string, create func() V) V {
	r.mu.Lock()
	defer r.mu.Unlock()

	if x, found := r.cache.Get(userID); found {
		v := x.(V)
		r.cache.Set(userID, v, cache.DefaultExpiration)
		return v
	}

	// An expired entry the janitor has not reached yet is still stored;
	// Delete closes it before it is replaced.
	r.cache.Delete(userID)

	v := create()
	r.cache.Set(userID, v, cache.DefaultExpiration)
	return v
}

// Peek returns the view without extending its idle window.
func (r *SessionRepository[V]) Peek(userID string) (V, bool) {
	if x, found := r.cache.Get(userID); found {
		return x.(V), true
	}
	var zero V
	return zero, false
}

// Delete closes and forgets the user's view.
func (r *SessionRepository[V]) Delete(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(userID)
}

func (r *SessionRepository[V]) Len() int {
	return r.cache.ItemCount()
}

// Flush closes every view.
func (r *SessionRepository[V]) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.DeleteExpired()
	for userID := range r.cache.Items() {
		r.cache.Delete(userID)
	}
}
