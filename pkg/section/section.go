package section

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"learnlink-be/internal/pkg/logger"
	"learnlink-be/pkg/cache"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("learnlink-be/pkg/section")

// State is the externally visible state of one section.
type State[T any] struct {
	Data      []T       `json:"data"`
	IsLoading bool      `json:"is_loading"`
	Error     string    `json:"error,omitempty"`
	Run       uint64    `json:"run"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// FetchFunc performs the remote call behind a section.
type FetchFunc[T any] func(ctx context.Context) (Payload[T], error)

// Loader describes one independently fetched slice of a view.
type Loader[T any] struct {
	Name  string
	Fetch FetchFunc[T]
	// CacheKey must be fully qualified with the owning entity id.
	// Empty disables caching for the section.
	CacheKey string
	TTL      time.Duration
	Timeout  time.Duration
}

type Options struct {
	Store cache.Store
	// Flight collapses concurrent fetches of the same cache key.
	Flight *singleflight.Group
	// Fence keeps a fetch that began before an invalidation of the key from
	// writing its result back afterwards.
	Fence    *cache.Fence
	Logger   logger.ILogger
	OnChange func(name string, snapshot any)
}

// Section owns the State of one Loader. Only Load and Update write to it.
type Section[T any] struct {
	loader Loader[T]
	opts   Options

	mu    sync.Mutex
	state State[T]
	// latest is the newest run that started loading this section.
	latest uint64
	// epoch moves on every confirmed mutation; loads begun under an older
	// epoch are discarded.
	epoch uint64
}

func New[T any](loader Loader[T], opts Options) *Section[T] {
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return &Section[T]{
		loader: loader,
		opts:   opts,
		state:  State[T]{Data: []T{}},
	}
}

func (s *Section[T]) Name() string {
	return s.loader.Name
}

// Load runs the loader for the given orchestrator run. Failures end up in
// the section state and are never returned. Nothing is applied once ctx is
// done, or once a newer run or a mutation has superseded this one.
func (s *Section[T]) Load(ctx context.Context, run uint64) {
	ctx, span := tracer.Start(ctx, "section.load", trace.WithAttributes(
		attribute.String("section", s.loader.Name),
		attribute.Int64("run", int64(run)),
	))
	defer span.End()

	epoch, ok := s.begin(ctx, run)
	if !ok {
		span.SetAttributes(attribute.Bool("stale", true))
		return
	}

	key := s.loader.CacheKey
	ticket := s.opts.Fence.Ticket(key)
	if key != "" && s.opts.Store != nil {
		items, found, err := cache.Load[[]T](ctx, s.opts.Store, key)
		if err != nil {
			s.opts.Logger.Warn("Section", "Cache read failed, fetching fresh", map[string]interface{}{
				"section": s.loader.Name,
				"key":     key,
				"error":   err.Error(),
			})
		}
		if found {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			s.succeed(ctx, run, epoch, ticket, items, false)
			return
		}
	}

	items, err := s.fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.fail(ctx, run, epoch, err)
		return
	}
	s.succeed(ctx, run, epoch, ticket, items, key != "")
}

// Update applies a confirmed mutation to the section data. fn receives a
// copy of the current slice; elements must be replaced, not mutated in place.
//
// The cached entry and any shared fetch for the key are dropped in the same
// critical section as the epoch bump, so a load started after Update can
// only see data fetched after the mutation.
func (s *Section[T]) Update(fn func([]T) []T) {
	s.mu.Lock()
	data := fn(slices.Clone(s.state.Data))
	if data == nil {
		data = []T{}
	}
	s.epoch++
	s.dropCacheLocked()
	s.state.Data = data
	s.state.IsLoading = false
	s.state.UpdatedAt = time.Now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Snapshot returns a copy of the current state.
func (s *Section[T]) Snapshot() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Section[T]) begin(ctx context.Context, run uint64) (uint64, bool) {
	s.mu.Lock()
	if ctx.Err() != nil || run < s.latest {
		s.mu.Unlock()
		return 0, false
	}
	s.latest = run
	s.state.IsLoading = true
	s.state.Error = ""
	epoch := s.epoch
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return epoch, true
}

func (s *Section[T]) fetch(ctx context.Context) ([]T, error) {
	key := s.loader.CacheKey
	if key == "" || s.opts.Flight == nil {
		fetchCtx, cancel := s.withTimeout(ctx)
		defer cancel()

		payload, err := s.loader.Fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		return payload.Normalize(), nil
	}

	// The call may be shared with another session of the same user, so it
	// must not die with this section's lifetime.
	v, err, _ := s.opts.Flight.Do(key, func() (interface{}, error) {
		fetchCtx, cancel := s.withTimeout(context.WithoutCancel(ctx))
		defer cancel()

		payload, err := s.loader.Fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		return payload.Normalize(), nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]T)), nil
}

func (s *Section[T]) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.loader.Timeout > 0 {
		return context.WithTimeout(ctx, s.loader.Timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Section[T]) succeed(ctx context.Context, run, epoch, ticket uint64, items []T, writeCache bool) {
	if items == nil {
		items = []T{}
	}

	s.mu.Lock()
	if !s.currentLocked(ctx, run, epoch) {
		s.mu.Unlock()
		s.opts.Logger.Debug("Section", "Discarded stale result", map[string]interface{}{"section": s.loader.Name, "run": run})
		return
	}

	// Written under mu so a concurrent Update cannot be followed by a stale
	// write-back of pre-mutation data. The fence covers drops made outside
	// this section.
	if writeCache && s.opts.Store != nil {
		if err := cache.SaveAt(ctx, s.opts.Store, s.opts.Fence, s.loader.CacheKey, ticket, items, s.loader.TTL); err != nil {
			s.opts.Logger.Warn("Section", "Cache write failed", map[string]interface{}{
				"section": s.loader.Name,
				"key":     s.loader.CacheKey,
				"error":   err.Error(),
			})
		}
	}

	s.state = State[T]{
		Data:      items,
		IsLoading: false,
		Run:       run,
		UpdatedAt: time.Now(),
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Section[T]) fail(ctx context.Context, run, epoch uint64, err error) {
	s.mu.Lock()
	if !s.currentLocked(ctx, run, epoch) {
		s.mu.Unlock()
		return
	}

	// Previous data stays in place to avoid flicker on transient failures.
	s.state.IsLoading = false
	s.state.Error = fmt.Sprintf("Could not load %s: %v", s.loader.Name, err)
	s.state.Run = run
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.opts.Logger.Warn("Section", "Section load failed", map[string]interface{}{
		"section": s.loader.Name,
		"run":     run,
		"error":   err.Error(),
	})
	s.notify(snap)
}

func (s *Section[T]) dropCacheLocked() {
	key := s.loader.CacheKey
	if key == "" {
		return
	}
	if s.opts.Flight != nil {
		s.opts.Flight.Forget(key)
	}
	if s.opts.Store == nil {
		return
	}
	if err := s.opts.Fence.Drop(context.Background(), s.opts.Store, key); err != nil {
		s.opts.Logger.Warn("Section", "Cache drop after update failed", map[string]interface{}{
			"section": s.loader.Name,
			"key":     key,
			"error":   err.Error(),
		})
	}
}

func (s *Section[T]) currentLocked(ctx context.Context, run, epoch uint64) bool {
	return ctx.Err() == nil && run == s.latest && epoch == s.epoch
}

func (s *Section[T]) snapshotLocked() State[T] {
	snap := s.state
	snap.Data = slices.Clone(s.state.Data)
	if snap.Data == nil {
		snap.Data = []T{}
	}
	return snap
}

func (s *Section[T]) notify(snap State[T]) {
	if s.opts.OnChange != nil {
		s.opts.OnChange(s.loader.Name, snap)
	}
}
