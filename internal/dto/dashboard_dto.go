package dto

import (
	"learnlink-be/internal/entity"
	"learnlink-be/pkg/lifecycle"
	"learnlink-be/pkg/section"
)

type DashboardSnapshot struct {
	InitialLoading bool                                  `json:"initial_loading"`
	Run            uint64                                `json:"run"`
	Announcements  section.State[entity.Announcement]    `json:"announcements"`
	LiveSessions   section.State[entity.LiveSession]     `json:"live_sessions"`
	Progress       section.State[entity.CourseProgress]  `json:"progress"`
	InFlight       map[string]map[string]lifecycle.Phase `json:"in_flight"`
}

type RefreshRequest struct {
	Sections []string `json:"sections" validate:"omitempty,dive,required"`
}
