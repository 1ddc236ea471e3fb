package service

import (
	"context"
	"errors"

	"learnlink-be/internal/dto"
	"learnlink-be/internal/repository/memory"
)

type IDashboardService interface {
	GetSnapshot(ctx context.Context, userID, token string) *dto.DashboardSnapshot
	Refresh(ctx context.Context, userID, token string, sections []string) (*dto.DashboardSnapshot, error)
	MarkAnnouncementRead(ctx context.Context, userID, token, announcementID string) error
	RefreshLive(ctx context.Context, userID string, sections ...string)
}

type dashboardService struct {
	api      LearningAPI
	sessions *memory.SessionRepository[*DashboardView]
	deps     ViewDeps
}

func NewDashboardService(api LearningAPI, sessions *memory.SessionRepository[*DashboardView], deps ViewDeps) IDashboardService {
	return &dashboardService{
		api:      api,
		sessions: sessions,
		deps:     deps,
	}
}

func (s *dashboardService) view(userID, token string) *DashboardView {
	v := s.sessions.GetOrCreate(userID, func() *DashboardView {
		return NewDashboardView(userID, token, s.api, s.deps)
	})
	v.SetToken(token)
	return v
}

func (s *dashboardService) GetSnapshot(ctx context.Context, userID, token string) *dto.DashboardSnapshot {
	v := s.view(userID, token)
	v.Open()
	return v.Snapshot()
}

func (s *dashboardService) Refresh(ctx context.Context, userID, token string, sections []string) (*dto.DashboardSnapshot, error) {
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

func (s *dashboardService) MarkAnnouncementRead(ctx context.Context, userID, token, announcementID string) error {
	return s.view(userID, token).MarkAnnouncementRead(ctx, announcementID)
}

func (s *dashboardService) RefreshLive(ctx context.Context, userID string, sections ...string) {
	v, ok := s.sessions.Peek(userID)
	if !ok {
		return
	}
	go refreshInBackground(context.WithoutCancel(ctx), s.deps, ViewDashboard, userID, sections, v.RefreshSections)
}
