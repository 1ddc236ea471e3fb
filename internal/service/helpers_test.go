package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"learnlink-be/internal/config"
	"learnlink-be/internal/dto"
	"learnlink-be/internal/pkg/logger"
	"learnlink-be/internal/upstream"
	"learnlink-be/pkg/cache"
	"learnlink-be/pkg/events"

	"golang.org/x/sync/singleflight"
)

// fakeAPI answers by call name ("ListConnections", "GetCourseProgress:c1", ...).
type fakeAPI struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
	calls     map[string]int
	tokens    []string
	// gate, when set, blocks mutations until it is closed.
	gate chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		responses: map[string]string{},
		failures:  map[string]error{},
		calls:     map[string]int{},
	}
}

func (f *fakeAPI) set(call, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[call] = body
}

func (f *fakeAPI) fail(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[call] = err
}

func (f *fakeAPI) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call]
}

func (f *fakeAPI) answer(ctx context.Context, call string) ([]byte, error) {
	f.mu.Lock()
	f.calls[call]++
	f.tokens = append(f.tokens, upstream.TokenFrom(ctx))
	err := f.failures[call]
	body, ok := f.responses[call]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		body = "[]"
	}
	return []byte(body), nil
}

func (f *fakeAPI) mutate(ctx context.Context, call string) ([]byte, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.answer(ctx, call)
}

func (f *fakeAPI) ListConnections(ctx context.Context) ([]byte, error) {
	return f.answer(ctx, "ListConnections")
}

func (f *fakeAPI) ListPendingRequests(ctx context.Context) ([]byte, error) {
	return f.answer(ctx, "ListPendingRequests")
}

func (f *fakeAPI) ListSentRequests(ctx context.Context) ([]byte, error) {
	return f.answer(ctx, "ListSentRequests")
}

func (f *fakeAPI) ListSuggestions(ctx context.Context, limit int) ([]byte, error) {
	return f.answer(ctx, "ListSuggestions")
}

func (f *fakeAPI) SendRequest(ctx context.Context, targetID, kind string) ([]byte, error) {
	return f.mutate(ctx, "SendRequest:"+targetID)
}

func (f *fakeAPI) AcceptRequest(ctx context.Context, requestID string) ([]byte, error) {
	return f.mutate(ctx, "AcceptRequest:"+requestID)
}

func (f *fakeAPI) RejectRequest(ctx context.Context, requestID string) ([]byte, error) {
	return f.mutate(ctx, "RejectRequest:"+requestID)
}

func (f *fakeAPI) CancelRequest(ctx context.Context, requestID string) ([]byte, error) {
	return f.mutate(ctx, "CancelRequest:"+requestID)
}

func (f *fakeAPI) RemoveConnection(ctx context.Context, connectionID string) ([]byte, error) {
	return f.mutate(ctx, "RemoveConnection:"+connectionID)
}

func (f *fakeAPI) ListEnrolledCourses(ctx context.Context) ([]byte, error) {
	return f.answer(ctx, "ListEnrolledCourses")
}

func (f *fakeAPI) ListCourseAnnouncements(ctx context.Context, courseID string, limit int) ([]byte, error) {
	return f.answer(ctx, "ListCourseAnnouncements:"+courseID)
}

func (f *fakeAPI) ListUpcomingLiveSessions(ctx context.Context) ([]byte, error) {
	return f.answer(ctx, "ListUpcomingLiveSessions")
}

func (f *fakeAPI) GetCourseProgress(ctx context.Context, courseID string) ([]byte, error) {
	return f.answer(ctx, "GetCourseProgress:"+courseID)
}

func (f *fakeAPI) MarkAnnouncementRead(ctx context.Context, announcementID string) ([]byte, error) {
	return f.mutate(ctx, "MarkAnnouncementRead:"+announcementID)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

type recordedLive struct {
	mu       sync.Mutex
	messages []dto.LiveMessage
}

func (r *recordedLive) Send(_ string, msg dto.LiveMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordedLive) ofType(t string) []dto.LiveMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []dto.LiveMessage
	for _, m := range r.messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// hookedLive records like recordedLive and hands every message to hook
// after recording it.
type hookedLive struct {
	recordedLive
	hook func(msg dto.LiveMessage)
}

func (h *hookedLive) Send(userID string, msg dto.LiveMessage) {
	h.recordedLive.Send(userID, msg)
	if h.hook != nil {
		h.hook(msg)
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{Timeout: time.Second},
		Cache: config.CacheConfig{
			DefaultTTL:      time.Minute,
			ConnectionsTTL:  time.Minute,
			RequestsTTL:     time.Minute,
			SuggestionsTTL:  time.Minute,
			CoursesTTL:      time.Minute,
			AnnouncementTTL: time.Minute,
			LiveSessionsTTL: time.Minute,
			ProgressTTL:     time.Minute,
		},
		Feed: config.FeedConfig{
			MaxCourses:        5,
			AnnouncementLimit: 5,
			FeedSize:          5,
			SuggestionLimit:   20,
		},
	}
}

type testEnv struct {
	api    *fakeAPI
	store  *cache.MemoryStore
	fence  *cache.Fence
	events *recordedEvents
	live   *recordedLive
	deps   ViewDeps
}

func newTestEnv() *testEnv {
	env := &testEnv{
		api:    newFakeAPI(),
		store:  cache.NewMemoryStore(time.Minute),
		fence:  cache.NewFence(),
		events: &recordedEvents{},
		live:   &recordedLive{},
	}
	env.deps = ViewDeps{
		Store:  env.store,
		Flight: &singleflight.Group{},
		Fence:  env.fence,
		Events: env.events,
		Live:   env.live,
		Logger: logger.NewNopLogger(),
		Config: testConfig(),
	}
	return env
}

func (e *testEnv) cached(key string) bool {
	ok, err := e.store.Has(context.Background(), key)
	if err != nil {
		panic(fmt.Sprintf("store: %v", err))
	}
	return ok
}
