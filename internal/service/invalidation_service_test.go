package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"learnlink-be/internal/dto"
	"learnlink-be/internal/pkg/logger"
	"learnlink-be/pkg/events"
	"learnlink-be/pkg/invalidation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRefresh struct {
	mu    sync.Mutex
	calls map[string][]string
}

func (r *recordedRefresh) RefreshLive(_ context.Context, userID string, sections ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string][]string{}
	}
	r.calls[userID] = append(r.calls[userID], sections...)
}

func (r *recordedRefresh) sections(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls[userID]...)
}

func TestCounterpartInvalidation(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		want      []string
	}{
		{name: "sent", eventType: events.ConnectionRequestSent, want: []string{SectionPendingRequests, SectionSuggestions}},
		{name: "accepted", eventType: events.ConnectionRequestAccepted, want: []string{SectionSentRequests, SectionConnections, SectionSuggestions}},
		{name: "rejected", eventType: events.ConnectionRequestRejected, want: []string{SectionSentRequests, SectionSuggestions}},
		{name: "cancelled", eventType: events.ConnectionRequestCancelled, want: []string{SectionPendingRequests}},
		{name: "removed", eventType: events.ConnectionRemoved, want: []string{SectionConnections, SectionSuggestions}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := counterpartInvalidation(events.NewConnectionEvent(tt.eventType, "me", "u2", "r1"))
			require.True(t, ok)
			assert.Equal(t, "u2", msg.UserID)
			assert.Equal(t, ViewNetwork, msg.View)
			assert.Equal(t, tt.want, msg.Sections)
			assert.Equal(t, networkKeys("u2", tt.want...), msg.Keys)
		})
	}
}

func TestCounterpartInvalidationIgnoresOtherEvents(t *testing.T) {
	_, ok := counterpartInvalidation(events.BaseEvent{Type: "USER_LOGIN"})
	assert.False(t, ok)

	_, ok = counterpartInvalidation(events.NewConnectionEvent(events.ConnectionRemoved, "me", "", "e1"))
	assert.False(t, ok)
}

func TestInvalidationServiceAppliesCounterpartEvent(t *testing.T) {
	env := newTestEnv()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, name := range []string{SectionPendingRequests, SectionSuggestions, SectionConnections} {
		require.NoError(t, env.store.Set(ctx, networkKey("u2", name), []byte(`[]`), time.Minute))
	}

	bus := invalidation.NewBus(logger.NewNopLogger())
	defer bus.Close()
	refresher := &recordedRefresh{}
	svc := NewInvalidationService(bus, env.store, env.fence, env.deps.Flight, map[string]LiveRefresher{ViewNetwork: refresher}, env.live, logger.NewNopLogger())
	require.NoError(t, svc.Start(ctx))

	require.NoError(t, svc.HandleEvent(ctx, events.NewConnectionEvent(events.ConnectionRequestSent, "me", "u2", "r1")))

	require.Eventually(t, func() bool {
		return len(refresher.sections("u2")) == 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{SectionPendingRequests, SectionSuggestions}, refresher.sections("u2"))
	assert.False(t, env.cached(networkKey("u2", SectionPendingRequests)))
	assert.False(t, env.cached(networkKey("u2", SectionSuggestions)))
	assert.True(t, env.cached(networkKey("u2", SectionConnections)))

	hints := env.live.ofType(dto.LiveTypeSectionStale)
	require.Len(t, hints, 2)
	assert.Equal(t, SectionPendingRequests, hints[0].Section)
}
