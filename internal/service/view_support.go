package service

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"learnlink-be/internal/config"
	"learnlink-be/internal/dto"
	"learnlink-be/internal/pkg/logger"
	"learnlink-be/internal/upstream"
	"learnlink-be/pkg/cache"
	"learnlink-be/pkg/events"
	"learnlink-be/pkg/lifecycle"
	"learnlink-be/pkg/section"

	"golang.org/x/sync/singleflight"
)

// LiveDelivery pushes a message to every socket the user has open.
type LiveDelivery interface {
	Send(userID string, msg dto.LiveMessage)
}

// ViewDeps is what every per-user view shares with its siblings.
type ViewDeps struct {
	Store  cache.Store
	Flight *singleflight.Group
	Fence  *cache.Fence
	Events events.Publisher
	Live   LiveDelivery
	Logger logger.ILogger
	Config *config.Config
}

// viewBase carries the identity and plumbing common to all views.
type viewBase struct {
	name   string
	userID string
	token  atomic.Pointer[string]
	deps   ViewDeps
}

func (b *viewBase) SetToken(token string) {
	b.token.Store(&token)
}

// authed attaches the user's latest token for upstream calls.
func (b *viewBase) authed(ctx context.Context) context.Context {
	if t := b.token.Load(); t != nil {
		return upstream.WithToken(ctx, *t)
	}
	return ctx
}

func (b *viewBase) sectionOptions() section.Options {
	return section.Options{
		Store:    b.deps.Store,
		Flight:   b.deps.Flight,
		Fence:    b.deps.Fence,
		Logger:   b.deps.Logger,
		OnChange: b.pushSection,
	}
}

func (b *viewBase) newTracker(action string) *lifecycle.Tracker {
	t := lifecycle.NewTracker(action, b.deps.Config.Lifecycle.SettleDelay)
	t.OnChange(b.pushAction)
	return t
}

func (b *viewBase) pushSection(name string, snapshot any) {
	if b.deps.Live == nil {
		return
	}
	b.deps.Live.Send(b.userID, dto.LiveMessage{
		Type:    dto.LiveTypeSection,
		View:    b.name,
		Section: name,
		Data:    snapshot,
	})
}

func (b *viewBase) pushAction(action, target string, phase lifecycle.Phase) {
	if b.deps.Live == nil {
		return
	}
	b.deps.Live.Send(b.userID, dto.LiveMessage{
		Type:    dto.LiveTypeAction,
		View:    b.name,
		Section: action,
		Data:    dto.ActionPhase{Target: target, Phase: string(phase)},
	})
}

// invalidate drops cache entries and shared fetches once a mutation is
// confirmed, before any section sees the change. Loads already running for
// those keys cannot write their result back. It outlives the request so a
// disconnecting client cannot leave stale entries behind.
func (b *viewBase) invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if b.deps.Flight != nil {
		for _, key := range keys {
			b.deps.Flight.Forget(key)
		}
	}
	if b.deps.Store == nil {
		return
	}
	if err := b.deps.Fence.Drop(context.WithoutCancel(ctx), b.deps.Store, keys...); err != nil {
		b.deps.Logger.Warn("View", "Cache invalidation failed", map[string]interface{}{
			"view":    b.name,
			"user_id": b.userID,
			"keys":    keys,
			"error":   err.Error(),
		})
	}
}

func (b *viewBase) publish(ctx context.Context, event events.Event) {
	if b.deps.Events == nil {
		return
	}
	if err := b.deps.Events.Publish(context.WithoutCancel(ctx), event); err != nil {
		b.deps.Logger.Warn("View", "Failed to publish event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}

// cachedList returns the raw entry under key, fetching and storing it on a
// miss. Concurrent misses on the same key share one fetch.
func (b *viewBase) cachedList(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if raw, ok := b.cachedRaw(ctx, key); ok {
		return raw, nil
	}

	load := func() (any, error) {
		ticket := b.deps.Fence.Ticket(key)
		// A flight that just finished may have filled the entry.
		if raw, ok := b.cachedRaw(ctx, key); ok {
			return raw, nil
		}

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.deps.Config.Upstream.Timeout)
		defer cancel()
		raw, err := fetch(fctx)
		if err != nil {
			return nil, err
		}

		if b.deps.Store != nil {
			if _, err := b.deps.Fence.Set(fctx, b.deps.Store, key, ticket, raw, ttl); err != nil {
				b.deps.Logger.Warn("View", "Cache write failed", map[string]interface{}{
					"key":   key,
					"error": err.Error(),
				})
			}
		}
		return raw, nil
	}

	var (
		x   any
		err error
	)
	if b.deps.Flight != nil {
		x, err, _ = b.deps.Flight.Do(key, load)
	} else {
		x, err = load()
	}
	if err != nil {
		return nil, err
	}
	return slices.Clone(x.([]byte)), nil
}

func (b *viewBase) cachedRaw(ctx context.Context, key string) ([]byte, bool) {
	if b.deps.Store == nil {
		return nil, false
	}
	raw, found, err := b.deps.Store.Get(ctx, key)
	if err != nil || !found {
		return nil, false
	}
	return raw, true
}

func rawFetch[T any](authed func(context.Context) context.Context, call func(context.Context) ([]byte, error)) section.FetchFunc[T] {
	return func(ctx context.Context) (section.Payload[T], error) {
		raw, err := call(authed(ctx))
		if err != nil {
			return section.Payload[T]{}, err
		}
		return section.Raw[T](raw), nil
	}
}

func inFlight(trackers ...*lifecycle.Tracker) map[string]map[string]lifecycle.Phase {
	out := make(map[string]map[string]lifecycle.Phase, len(trackers))
	for _, t := range trackers {
		out[t.Name()] = t.Snapshot()
	}
	return out
}

// allFailed reports an error only when every key failed.
func allFailed(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	for _, err := range errs {
		if err == nil {
			return nil
		}
	}
	return errors.Join(errs...)
}

func findBy[T any](list []T, match func(T) bool) (T, bool) {
	for _, item := range list {
		if match(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func without[T any](list []T, match func(T) bool) []T {
	return slices.DeleteFunc(list, match)
}
