package service

import "learnlink-be/pkg/cache"

const (
	ViewNetwork   = "network"
	ViewDashboard = "dashboard"
)

const (
	SectionConnections     = "connections"
	SectionPendingRequests = "pendingRequests"
	SectionSentRequests    = "sentRequests"
	SectionSuggestions     = "suggestions"

	SectionAnnouncements = "announcements"
	SectionLiveSessions  = "liveSessions"
	SectionProgress      = "progress"
)

// Cache keys always carry the owning entity id so one user's entries can
// never be served to another.

func networkKey(userID, section string) string {
	return cache.Key("user", userID, ViewNetwork, section)
}

func networkKeys(userID string, sections ...string) []string {
	keys := make([]string, len(sections))
	for i, s := range sections {
		keys[i] = networkKey(userID, s)
	}
	return keys
}

func dashboardKey(userID, section string) string {
	return cache.Key("user", userID, ViewDashboard, section)
}

func coursesKey(userID string) string {
	return cache.Key("user", userID, "courses")
}

// courseAnnouncementsKey is shared by every student of the course.
func courseAnnouncementsKey(courseID string) string {
	return cache.Key("course", courseID, "announcements")
}

func userPrefix(userID string) string {
	return cache.Key("user", userID) + ":"
}
