package dto

import (
	"learnlink-be/internal/entity"
	"learnlink-be/pkg/lifecycle"
	"learnlink-be/pkg/section"
)

type NetworkSnapshot struct {
	InitialLoading  bool                                    `json:"initial_loading"`
	Run             uint64                                  `json:"run"`
	Connections     section.State[entity.ConnectionEdge]    `json:"connections"`
	PendingRequests section.State[entity.ConnectionRequest] `json:"pending_requests"`
	SentRequests    section.State[entity.ConnectionRequest] `json:"sent_requests"`
	Suggestions     section.State[entity.UserSummary]       `json:"suggestions"`
	InFlight        map[string]map[string]lifecycle.Phase   `json:"in_flight"`
}

type SendConnectionRequest struct {
	TargetID string `json:"target_id" validate:"required"`
	Kind     string `json:"kind" validate:"omitempty,oneof=follow connect"`
}
