package service

import (
	"context"
	"fmt"

	"learnlink-be/internal/pkg/logger"
	"learnlink-be/internal/repository/memory"
	"learnlink-be/pkg/cache"
)

type ISessionService interface {
	Logout(ctx context.Context, userID string) error
}

type sessionService struct {
	network   *memory.SessionRepository[*NetworkView]
	dashboard *memory.SessionRepository[*DashboardView]
	store     cache.Store
	logger    logger.ILogger
}

func NewSessionService(
	network *memory.SessionRepository[*NetworkView],
	dashboard *memory.SessionRepository[*DashboardView],
	store cache.Store,
	log logger.ILogger,
) ISessionService {
	return &sessionService{
		network:   network,
		dashboard: dashboard,
		store:     store,
		logger:    log,
	}
}

// Logout closes the user's views, so loads still in flight apply nothing,
// then drops every cache entry keyed by the user. Shared course entries stay.
func (s *sessionService) Logout(ctx context.Context, userID string) error {
	s.network.Delete(userID)
	s.dashboard.Delete(userID)

	if err := s.store.DeletePrefix(ctx, userPrefix(userID)); err != nil {
		return fmt.Errorf("clear cache for user %s: %w", userID, err)
	}

	s.logger.Info("Session", "User session closed", map[string]interface{}{"user_id": userID})
	return nil
}
