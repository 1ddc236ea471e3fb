package service

import (
	"context"
	"sync"
	"time"

	"learnlink-be/internal/dto"
	"learnlink-be/internal/entity"
	"learnlink-be/pkg/aggregate"
	"learnlink-be/pkg/events"
	"learnlink-be/pkg/lifecycle"
	"learnlink-be/pkg/section"
)

// NetworkAPI is the part of the portal the network view reads and mutates.
type NetworkAPI interface {
	ListConnections(ctx context.Context) ([]byte, error)
	ListPendingRequests(ctx context.Context) ([]byte, error)
	ListSentRequests(ctx context.Context) ([]byte, error)
	ListSuggestions(ctx context.Context, limit int) ([]byte, error)
	SendRequest(ctx context.Context, targetID, kind string) ([]byte, error)
	AcceptRequest(ctx context.Context, requestID string) ([]byte, error)
	RejectRequest(ctx context.Context, requestID string) ([]byte, error)
	CancelRequest(ctx context.Context, requestID string) ([]byte, error)
	RemoveConnection(ctx context.Context, connectionID string) ([]byte, error)
}

// Tracker names, also used as the action name on the live channel.
const (
	ActionSendRequest      = "sendRequest"
	ActionRespondRequest   = "respondRequest"
	ActionRemoveConnection = "removeConnection"
)

// NetworkView is one user's connections page: four sections loaded
// progressively, plus the mutations that change them.
type NetworkView struct {
	viewBase
	api NetworkAPI

	orch        *aggregate.Orchestrator
	connections *section.Section[entity.ConnectionEdge]
	pending     *section.Section[entity.ConnectionRequest]
	sent        *section.Section[entity.ConnectionRequest]
	suggestions *section.Section[entity.UserSummary]

	sends    *lifecycle.Tracker
	requests *lifecycle.Tracker
	removals *lifecycle.Tracker

	started sync.Once
}

func NewNetworkView(userID, token string, api NetworkAPI, deps ViewDeps) *NetworkView {
	v := &NetworkView{
		viewBase: viewBase{name: ViewNetwork, userID: userID, deps: deps},
		api:      api,
	}
	v.SetToken(token)

	cfg := deps.Config
	opts := v.sectionOptions()
	timeout := cfg.Upstream.Timeout

	v.connections = section.New(section.Loader[entity.ConnectionEdge]{
		Name:     SectionConnections,
		Fetch:    rawFetch[entity.ConnectionEdge](v.authed, api.ListConnections),
		CacheKey: networkKey(userID, SectionConnections),
		TTL:      cfg.Cache.ConnectionsTTL,
		Timeout:  timeout,
	}, opts)
	v.pending = section.New(section.Loader[entity.ConnectionRequest]{
		Name:     SectionPendingRequests,
		Fetch:    rawFetch[entity.ConnectionRequest](v.authed, api.ListPendingRequests),
		CacheKey: networkKey(userID, SectionPendingRequests),
		TTL:      cfg.Cache.RequestsTTL,
		Timeout:  timeout,
	}, opts)
	v.sent = section.New(section.Loader[entity.ConnectionRequest]{
		Name:     SectionSentRequests,
		Fetch:    rawFetch[entity.ConnectionRequest](v.authed, api.ListSentRequests),
		CacheKey: networkKey(userID, SectionSentRequests),
		TTL:      cfg.Cache.RequestsTTL,
		Timeout:  timeout,
	}, opts)
	v.suggestions = section.New(section.Loader[entity.UserSummary]{
		Name: SectionSuggestions,
		Fetch: rawFetch[entity.UserSummary](v.authed, func(ctx context.Context) ([]byte, error) {
			return api.ListSuggestions(ctx, cfg.Feed.SuggestionLimit)
		}),
		CacheKey: networkKey(userID, SectionSuggestions),
		TTL:      cfg.Cache.SuggestionsTTL,
		Timeout:  timeout,
	}, opts)

	v.orch = aggregate.New(deps.Logger, v.connections, v.pending, v.sent, v.suggestions)

	v.sends = v.newTracker(ActionSendRequest)
	v.requests = v.newTracker(ActionRespondRequest)
	v.removals = v.newTracker(ActionRemoveConnection)
	return v
}

// Open starts the first load once. Later calls are no-ops.
func (v *NetworkView) Open() {
	v.started.Do(func() { v.orch.Start() })
}

func (v *NetworkView) Refresh(ctx context.Context) (uint64, error) {
	v.started.Do(func() {})
	return v.orch.Refresh(ctx)
}

func (v *NetworkView) RefreshSections(ctx context.Context, names ...string) (uint64, error) {
	return v.orch.RefreshSections(ctx, names...)
}

func (v *NetworkView) Close() {
	v.orch.Close()
}

func (v *NetworkView) Snapshot() *dto.NetworkSnapshot {
	return &dto.NetworkSnapshot{
		InitialLoading:  v.orch.InitialLoading(),
		Run:             v.orch.LastRun(),
		Connections:     v.connections.Snapshot(),
		PendingRequests: v.pending.Snapshot(),
		SentRequests:    v.sent.Snapshot(),
		Suggestions:     v.suggestions.Snapshot(),
		InFlight:        inFlight(v.sends, v.requests, v.removals),
	}
}

// SendRequest asks targetID to connect. A second send to the same target
// is refused while the first is pending, and once the request is listed.
func (v *NetworkView) SendRequest(ctx context.Context, targetID string, kind entity.ConnectionKind) (*entity.ConnectionRequest, error) {
	if !v.orch.Active() {
		return nil, aggregate.ErrClosed
	}
	if targetID == v.userID {
		return nil, ErrSelfRequest
	}
	if kind == "" {
		kind = entity.ConnectionKindConnect
	}
	if v.sends.InFlight(targetID) {
		return nil, lifecycle.ErrInFlight
	}

	var created entity.ConnectionRequest
	err := v.sends.Do(ctx, targetID, func(ctx context.Context) error {
		// Checked while holding the target so two sends cannot both pass.
		if _, ok := findBy(v.sent.Snapshot().Data, pendingTo(targetID)); ok {
			return ErrAlreadyPending
		}
		if _, ok := findBy(v.connections.Snapshot().Data, edgeWith(targetID)); ok {
			return ErrAlreadyConnected
		}
		raw, err := v.api.SendRequest(v.authed(ctx), targetID, string(kind))
		if err != nil {
			return err
		}
		created = v.sentRequestFrom(raw, targetID, kind)
		return nil
	}, func() {
		v.invalidate(ctx, networkKeys(v.userID, SectionSentRequests, SectionSuggestions)...)
		v.sent.Update(func(list []entity.ConnectionRequest) []entity.ConnectionRequest {
			if created.ID != "" {
				list = without(list, requestWithID(created.ID))
			}
			return append(list, created)
		})
		v.suggestions.Update(func(list []entity.UserSummary) []entity.UserSummary {
			return without(list, func(u entity.UserSummary) bool { return u.ID == targetID })
		})
	})
	if err != nil {
		return nil, err
	}

	v.publish(ctx, events.NewConnectionEvent(events.ConnectionRequestSent, v.userID, targetID, created.ID))
	return &created, nil
}

func (v *NetworkView) AcceptRequest(ctx context.Context, requestID string) (*entity.ConnectionEdge, error) {
	if !v.orch.Active() {
		return nil, aggregate.ErrClosed
	}
	req, ok := findBy(v.pending.Snapshot().Data, requestWithID(requestID))
	if !ok {
		return nil, ErrRequestNotFound
	}

	var edge entity.ConnectionEdge
	err := v.requests.Do(ctx, requestID, func(ctx context.Context) error {
		if _, ok := findBy(v.pending.Snapshot().Data, requestWithID(requestID)); !ok {
			return ErrRequestNotFound
		}
		raw, err := v.api.AcceptRequest(v.authed(ctx), requestID)
		if err != nil {
			return err
		}
		edge = edgeFromAccept(raw, req)
		return nil
	}, func() {
		v.invalidate(ctx, networkKeys(v.userID, SectionPendingRequests, SectionConnections)...)
		v.pending.Update(func(list []entity.ConnectionRequest) []entity.ConnectionRequest {
			return without(list, requestWithID(requestID))
		})
		v.connections.Update(func(list []entity.ConnectionEdge) []entity.ConnectionEdge {
			if _, exists := findBy(list, edgeWith(edge.Counterpart.ID)); exists {
				return list
			}
			return append(list, edge)
		})
	})
	if err != nil {
		return nil, err
	}

	v.publish(ctx, events.NewConnectionEvent(events.ConnectionRequestAccepted, v.userID, req.Requester.ID, requestID))
	return &edge, nil
}

func (v *NetworkView) RejectRequest(ctx context.Context, requestID string) error {
	if !v.orch.Active() {
		return aggregate.ErrClosed
	}
	req, ok := findBy(v.pending.Snapshot().Data, requestWithID(requestID))
	if !ok {
		return ErrRequestNotFound
	}

	err := v.requests.Do(ctx, requestID, func(ctx context.Context) error {
		if _, ok := findBy(v.pending.Snapshot().Data, requestWithID(requestID)); !ok {
			return ErrRequestNotFound
		}
		_, err := v.api.RejectRequest(v.authed(ctx), requestID)
		return err
	}, func() {
		v.invalidate(ctx, networkKey(v.userID, SectionPendingRequests))
		v.pending.Update(func(list []entity.ConnectionRequest) []entity.ConnectionRequest {
			return without(list, requestWithID(requestID))
		})
	})
	if err != nil {
		return err
	}

	v.publish(ctx, events.NewConnectionEvent(events.ConnectionRequestRejected, v.userID, req.Requester.ID, requestID))
	return nil
}

// CancelRequest withdraws a request this user sent.
func (v *NetworkView) CancelRequest(ctx context.Context, requestID string) error {
	if !v.orch.Active() {
		return aggregate.ErrClosed
	}
	req, ok := findBy(v.sent.Snapshot().Data, requestWithID(requestID))
	if !ok {
		return ErrRequestNotFound
	}

	err := v.requests.Do(ctx, requestID, func(ctx context.Context) error {
		if _, ok := findBy(v.sent.Snapshot().Data, requestWithID(requestID)); !ok {
			return ErrRequestNotFound
		}
		_, err := v.api.CancelRequest(v.authed(ctx), requestID)
		return err
	}, func() {
		v.invalidate(ctx, networkKeys(v.userID, SectionSentRequests, SectionSuggestions)...)
		v.sent.Update(func(list []entity.ConnectionRequest) []entity.ConnectionRequest {
			return without(list, requestWithID(requestID))
		})
	})
	if err != nil {
		return err
	}

	v.publish(ctx, events.NewConnectionEvent(events.ConnectionRequestCancelled, v.userID, req.Recipient.ID, requestID))
	return nil
}

func (v *NetworkView) RemoveConnection(ctx context.Context, connectionID string) error {
	if !v.orch.Active() {
		return aggregate.ErrClosed
	}
	edge, ok := findBy(v.connections.Snapshot().Data, func(e entity.ConnectionEdge) bool { return e.ID == connectionID })
	if !ok {
		return ErrConnectionNotFound
	}

	err := v.removals.Do(ctx, connectionID, func(ctx context.Context) error {
		if _, ok := findBy(v.connections.Snapshot().Data, func(e entity.ConnectionEdge) bool { return e.ID == connectionID }); !ok {
			return ErrConnectionNotFound
		}
		_, err := v.api.RemoveConnection(v.authed(ctx), connectionID)
		return err
	}, func() {
		v.invalidate(ctx, networkKeys(v.userID, SectionConnections, SectionSuggestions)...)
		v.connections.Update(func(list []entity.ConnectionEdge) []entity.ConnectionEdge {
			return without(list, func(e entity.ConnectionEdge) bool { return e.ID == connectionID })
		})
	})
	if err != nil {
		return err
	}

	v.publish(ctx, events.NewConnectionEvent(events.ConnectionRemoved, v.userID, edge.Counterpart.ID, connectionID))
	return nil
}

// sentRequestFrom prefers the request the portal echoed back and fills in
// whatever it left out.
func (v *NetworkView) sentRequestFrom(raw []byte, targetID string, kind entity.ConnectionKind) entity.ConnectionRequest {
	req, _ := section.NormalizeOne[entity.ConnectionRequest](raw)
	if req.Requester.ID == "" {
		req.Requester = entity.UserSummary{ID: v.userID}
	}
	if req.Recipient.ID == "" {
		req.Recipient = entity.UserSummary{ID: targetID}
	}
	if req.Status == "" {
		req.Status = entity.RequestStatusPending
	}
	if req.Kind == "" {
		req.Kind = kind
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	// Keep the richer card from suggestions when the portal only sent an id.
	if req.Recipient.Name == "" {
		if u, ok := findBy(v.suggestions.Snapshot().Data, func(u entity.UserSummary) bool { return u.ID == targetID }); ok {
			req.Recipient = u
		}
	}
	return req
}

func edgeFromAccept(raw []byte, req entity.ConnectionRequest) entity.ConnectionEdge {
	edge, ok := section.NormalizeOne[entity.ConnectionEdge](raw)
	if ok && edge.ID != "" && edge.Counterpart.ID != "" {
		return edge
	}
	return entity.ConnectionEdge{
		ID:          req.ID,
		Counterpart: req.Requester,
		Kind:        req.Kind,
		CreatedAt:   time.Now(),
	}
}

func requestWithID(id string) func(entity.ConnectionRequest) bool {
	return func(r entity.ConnectionRequest) bool { return r.ID == id }
}

func pendingTo(targetID string) func(entity.ConnectionRequest) bool {
	return func(r entity.ConnectionRequest) bool { return r.Recipient.ID == targetID && r.IsPending() }
}

func edgeWith(userID string) func(entity.ConnectionEdge) bool {
	return func(e entity.ConnectionEdge) bool { return e.Counterpart.ID == userID }
}
