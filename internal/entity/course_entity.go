package entity

import "time"

type Course struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
	Code  string `json:"code,omitempty"`
}

type AnnouncementPriority string

const (
	PriorityLow    AnnouncementPriority = "low"
	PriorityMedium AnnouncementPriority = "medium"
	PriorityHigh   AnnouncementPriority = "high"
	PriorityUrgent AnnouncementPriority = "urgent"
)

type Announcement struct {
	ID        string               `json:"_id"`
	CourseID  string               `json:"course"`
	Title     string               `json:"title"`
	Content   string               `json:"content,omitempty"`
	Priority  AnnouncementPriority `json:"priority"`
	IsPinned  bool                 `json:"isPinned"`
	CreatedAt time.Time            `json:"createdAt"`
	ReadBy    []string             `json:"readBy"`
}

func (a Announcement) FeedID() string    { return a.ID }
func (a Announcement) Pinned() bool      { return a.IsPinned }
func (a Announcement) Posted() time.Time { return a.CreatedAt }

func (a Announcement) ReadByUser(userID string) bool {
	for _, id := range a.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

type LiveSession struct {
	ID              string    `json:"_id"`
	CourseID        string    `json:"course"`
	Title           string    `json:"title"`
	ScheduledAt     time.Time `json:"scheduledAt"`
	DurationMinutes int       `json:"duration,omitempty"`
	JoinURL         string    `json:"meetingLink,omitempty"`
}

type CourseProgress struct {
	CourseID         string    `json:"course"`
	CompletedLessons int       `json:"completedLessons"`
	TotalLessons     int       `json:"totalLessons"`
	Percentage       float64   `json:"progressPercentage"`
	LastAccessedAt   time.Time `json:"lastAccessedAt,omitempty"`
}
