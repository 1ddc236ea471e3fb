package service

import (
	"context"
	"errors"

	"learnlink-be/internal/dto"
	"learnlink-be/internal/entity"
	"learnlink-be/internal/repository/memory"
	"learnlink-be/pkg/aggregate"
)

type INetworkService interface {
	GetSnapshot(ctx context.Context, userID, token string) *dto.NetworkSnapshot
	Refresh(ctx context.Context, userID, token string, sections []string) (*dto.NetworkSnapshot, error)
	SendRequest(ctx context.Context, userID, token string, req *dto.SendConnectionRequest) (*entity.ConnectionRequest, error)
	AcceptRequest(ctx context.Context, userID, token, requestID string) (*entity.ConnectionEdge, error)
	RejectRequest(ctx context.Context, userID, token, requestID string) error
	CancelRequest(ctx context.Context, userID, token, requestID string) error
	RemoveConnection(ctx context.Context, userID, token, connectionID string) error
	RefreshLive(ctx context.Context, userID string, sections ...string)
}

type networkService struct {
	api      NetworkAPI
	sessions *memory.SessionRepository[*NetworkView]
	deps     ViewDeps
}

func NewNetworkService(api NetworkAPI, sessions *memory.SessionRepository[*NetworkView], deps ViewDeps) INetworkService {
	return &networkService{
		api:      api,
		sessions: sessions,
		deps:     deps,
	}
}

func (s *networkService) view(userID, token string) *NetworkView {
	v := s.sessions.GetOrCreate(userID, func() *NetworkView {
		return NewNetworkView(userID, token, s.api, s.deps)
	})
	v.SetToken(token)
	return v
}

// GetSnapshot never waits: the first call starts loading and returns the
// shell with every section still loading.
func (s *networkService) GetSnapshot(ctx context.Context, userID, token string) *dto.NetworkSnapshot {
	v := s.view(userID, token)
	v.Open()
	return v.Snapshot()
}

// Refresh waits for the run or for ctx, whichever ends first. Sections still
// running when ctx ends keep going and show up in later snapshots.
func (s *networkService) Refresh(ctx context.Context, userID, token string, sections []string) (*dto.NetworkSnapshot, error) {
	v := s.view(userID, token)

	var err error
	if len(sections) > 0 {
		_, err = v.RefreshSections(ctx, sections...)
	} else {
		_, err = v.Refresh(ctx)
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, err
	}
	return v.Snapshot(), nil
}

func (s *networkService) SendRequest(ctx context.Context, userID, token string, req *dto.SendConnectionRequest) (*entity.ConnectionRequest, error) {
	return s.view(userID, token).SendRequest(ctx, req.TargetID, entity.ConnectionKind(req.Kind))
}

func (s *networkService) AcceptRequest(ctx context.Context, userID, token, requestID string) (*entity.ConnectionEdge, error) {
	return s.view(userID, token).AcceptRequest(ctx, requestID)
}

func (s *networkService) RejectRequest(ctx context.Context, userID, token, requestID string) error {
	return s.view(userID, token).RejectRequest(ctx, requestID)
}

func (s *networkService) CancelRequest(ctx context.Context, userID, token, requestID string) error {
	return s.view(userID, token).CancelRequest(ctx, requestID)
}

func (s *networkService) RemoveConnection(ctx context.Context, userID, token, connectionID string) error {
	return s.view(userID, token).RemoveConnection(ctx, connectionID)
}

// RefreshLive reloads sections of a view that is already open. Users with
// no open view are skipped; their next visit reads fresh data anyway.
func (s *networkService) RefreshLive(ctx context.Context, userID string, sections ...string) {
	v, ok := s.sessions.Peek(userID)
	if !ok {
		return
	}
	go refreshInBackground(context.WithoutCancel(ctx), s.deps, ViewNetwork, userID, sections, v.RefreshSections)
}

func refreshInBackground(ctx context.Context, deps ViewDeps, view, userID string, sections []string, refresh func(context.Context, ...string) (uint64, error)) {
	if _, err := refresh(ctx, sections...); err != nil && !errors.Is(err, aggregate.ErrClosed) {
		deps.Logger.Warn("View", "Live refresh failed", map[string]interface{}{
			"view":     view,
			"user_id":  userID,
			"sections": sections,
			"error":    err.Error(),
		})
	}
}
