package service

import (
	"context"
	"fmt"

	"learnlink-be/internal/dto"
	"learnlink-be/internal/pkg/logger"
	"learnlink-be/pkg/cache"
	"learnlink-be/pkg/events"
	"learnlink-be/pkg/invalidation"

	"golang.org/x/sync/singleflight"
)

// LiveRefresher reloads sections of a user's open view.
type LiveRefresher interface {
	RefreshLive(ctx context.Context, userID string, sections ...string)
}

type IInvalidationService interface {
	Start(ctx context.Context) error
	HandleEvent(ctx context.Context, event events.Event) error
}

type invalidationService struct {
	bus        *invalidation.Bus
	store      cache.Store
	fence      *cache.Fence
	flight     *singleflight.Group
	refreshers map[string]LiveRefresher
	live       LiveDelivery
	logger     logger.ILogger
}

func NewInvalidationService(
	bus *invalidation.Bus,
	store cache.Store,
	fence *cache.Fence,
	flight *singleflight.Group,
	refreshers map[string]LiveRefresher,
	live LiveDelivery,
	log logger.ILogger,
) IInvalidationService {
	return &invalidationService{
		bus:        bus,
		store:      store,
		fence:      fence,
		flight:     flight,
		refreshers: refreshers,
		live:       live,
		logger:     log,
	}
}

func (s *invalidationService) Start(ctx context.Context) error {
	return s.bus.Subscribe(ctx, s.handle)
}

// HandleEvent turns a connection event into an invalidation of the
// counterpart's sections. Events that touch nobody else are ignored.
func (s *invalidationService) HandleEvent(ctx context.Context, event events.Event) error {
	msg, ok := counterpartInvalidation(event)
	if !ok {
		return nil
	}
	return s.bus.Publish(ctx, msg)
}

func (s *invalidationService) handle(ctx context.Context, msg invalidation.Message) error {
	if len(msg.Keys) > 0 {
		if s.flight != nil {
			for _, key := range msg.Keys {
				s.flight.Forget(key)
			}
		}
		if err := s.fence.Drop(ctx, s.store, msg.Keys...); err != nil {
			return fmt.Errorf("delete %d keys for user %s: %w", len(msg.Keys), msg.UserID, err)
		}
	}

	if r, ok := s.refreshers[msg.View]; ok && len(msg.Sections) > 0 {
		r.RefreshLive(ctx, msg.UserID, msg.Sections...)
	}

	if s.live != nil {
		for _, name := range msg.Sections {
			s.live.Send(msg.UserID, dto.LiveMessage{
				Type:    dto.LiveTypeSectionStale,
				View:    msg.View,
				Section: name,
			})
		}
	}

	s.logger.Debug("Invalidation", "Applied", map[string]interface{}{
		"user_id":  msg.UserID,
		"view":     msg.View,
		"sections": msg.Sections,
		"reason":   msg.Reason,
	})
	return nil
}

// counterpartSections lists what each event changes for the other party.
var counterpartSections = map[string][]string{
	events.ConnectionRequestSent:      {SectionPendingRequests, SectionSuggestions},
	events.ConnectionRequestAccepted:  {SectionSentRequests, SectionConnections, SectionSuggestions},
	events.ConnectionRequestRejected:  {SectionSentRequests, SectionSuggestions},
	events.ConnectionRequestCancelled: {SectionPendingRequests},
	events.ConnectionRemoved:          {SectionConnections, SectionSuggestions},
}

func counterpartInvalidation(event events.Event) (invalidation.Message, bool) {
	sections, ok := counterpartSections[event.EventType()]
	if !ok {
		return invalidation.Message{}, false
	}
	userID := events.String(event, events.FieldCounterpartID)
	if userID == "" {
		return invalidation.Message{}, false
	}

	return invalidation.Message{
		UserID:   userID,
		View:     ViewNetwork,
		Keys:     networkKeys(userID, sections...),
		Sections: sections,
		Reason:   event.EventType(),
	}, true
}
