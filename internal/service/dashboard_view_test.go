package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"learnlink-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedDashboard enrolls "me" in six courses. Each course has one
// announcement dated by its index; "x" is pinned and cross-listed in
// c1 and c3. c6 holds the newest item but is past the course cap.
func seedDashboard(api *fakeAPI) {
	api.set("ListEnrolledCourses", `{"data":[
		{"_id":"c1","title":"Algebra"},{"_id":"c2","title":"Biology"},
		{"_id":"c3","title":"Chemistry"},{"_id":"c4","title":"Drama"},
		{"_id":"c5","title":"Economics"},{"_id":"c6","title":"French"}]}`)

	pinned := `{"_id":"x","title":"Exam week","isPinned":true,"priority":"urgent","createdAt":"2024-12-01T00:00:00Z"}`
	for i := 1; i <= 6; i++ {
		id := fmt.Sprintf("c%d", i)
		item := fmt.Sprintf(`{"_id":"%s-a","title":"Week %d","priority":"low","createdAt":"2025-01-0%dT00:00:00Z"}`, id, i, i)
		if i == 6 {
			item = `{"_id":"c6-a","title":"Late","createdAt":"2025-02-01T00:00:00Z"}`
		}
		body := "[" + item + "]"
		if i == 1 || i == 3 {
			body = "[" + item + "," + pinned + "]"
		}
		api.set("ListCourseAnnouncements:"+id, body)
	}

	api.set("GetCourseProgress:c1", `{"data":{"completedLessons":3,"totalLessons":10,"progressPercentage":30}}`)
	api.set("GetCourseProgress:c2", `{"course":"c2","completedLessons":10,"totalLessons":10,"progressPercentage":100}`)
	api.set("ListUpcomingLiveSessions", `[{"_id":"l1","course":"c1","title":"Office hours","scheduledAt":"2025-03-01T09:00:00Z"}]`)
}

func loadedDashboardView(t *testing.T, env *testEnv) *DashboardView {
	t.Helper()
	v := NewDashboardView("me", "tok", env.api, env.deps)
	t.Cleanup(v.Close)

	_, err := v.Refresh(context.Background())
	require.NoError(t, err)
	return v
}

func announcementIDs(items []entity.Announcement) []string {
	ids := make([]string, len(items))
	for i, a := range items {
		ids[i] = a.ID
	}
	return ids
}

func TestDashboardCourseFeed(t *testing.T) {
	env := newTestEnv()
	seedDashboard(env.api)
	v := loadedDashboardView(t, env)

	feed := v.Snapshot().Announcements
	assert.Empty(t, feed.Error)
	assert.Equal(t, []string{"x", "c5-a", "c4-a", "c3-a", "c2-a"}, announcementIDs(feed.Data))
	assert.Equal(t, "c1", feed.Data[0].CourseID)

	assert.Zero(t, env.api.count("ListCourseAnnouncements:c6"))
	for i := 1; i <= 5; i++ {
		assert.True(t, env.cached(courseAnnouncementsKey(fmt.Sprintf("c%d", i))))
	}
	assert.True(t, env.cached(coursesKey("me")))
	assert.Equal(t, 1, env.api.count("ListEnrolledCourses"))
}

func TestDashboardCourseFeedToleratesFailedCourse(t *testing.T) {
	env := newTestEnv()
	seedDashboard(env.api)
	env.api.fail("ListCourseAnnouncements:c2", errors.New("timeout"))
	v := loadedDashboardView(t, env)

	feed := v.Snapshot().Announcements
	assert.Empty(t, feed.Error)
	assert.Equal(t, []string{"x", "c5-a", "c4-a", "c3-a", "c1-a"}, announcementIDs(feed.Data))
	assert.False(t, env.cached(courseAnnouncementsKey("c2")))
}

func TestDashboardCourseFeedFailsWhenEveryCourseFails(t *testing.T) {
	env := newTestEnv()
	env.api.set("ListEnrolledCourses", `[{"_id":"c1"}]`)
	env.api.fail("ListCourseAnnouncements:c1", errors.New("timeout"))
	v := loadedDashboardView(t, env)

	snap := v.Snapshot()
	assert.Contains(t, snap.Announcements.Error, "Could not load announcements")
	assert.Empty(t, snap.Announcements.Data)
	assert.Empty(t, snap.LiveSessions.Error)
}

func TestDashboardSectionsAreIndependent(t *testing.T) {
	env := newTestEnv()
	seedDashboard(env.api)
	env.api.fail("ListUpcomingLiveSessions", errors.New("502"))
	v := loadedDashboardView(t, env)

	snap := v.Snapshot()
	assert.NotEmpty(t, snap.LiveSessions.Error)
	assert.Len(t, snap.Announcements.Data, 5)
	assert.Len(t, snap.Progress.Data, 2)
}

func TestDashboardProgressPerCourse(t *testing.T) {
	env := newTestEnv()
	seedDashboard(env.api)
	v := loadedDashboardView(t, env)

	progress := v.Snapshot().Progress.Data
	require.Len(t, progress, 2)
	assert.Equal(t, "c1", progress[0].CourseID)
	assert.InDelta(t, 30.0, progress[0].Percentage, 0.001)
	assert.Equal(t, "c2", progress[1].CourseID)

	for i := 1; i <= 6; i++ {
		assert.Equal(t, 1, env.api.count(fmt.Sprintf("GetCourseProgress:c%d", i)))
	}
	assert.True(t, env.cached(dashboardKey("me", SectionProgress)))
}

func TestMarkAnnouncementRead(t *testing.T) {
	env := newTestEnv()
	seedDashboard(env.api)
	v := loadedDashboardView(t, env)

	require.NoError(t, v.MarkAnnouncementRead(context.Background(), "c2-a"))

	a, ok := findBy(v.Snapshot().Announcements.Data, func(a entity.Announcement) bool { return a.ID == "c2-a" })
	require.True(t, ok)
	assert.Equal(t, []string{"me"}, a.ReadBy)
	assert.False(t, env.cached(courseAnnouncementsKey("c2")))
	assert.True(t, env.cached(courseAnnouncementsKey("c3")))

	require.NoError(t, v.MarkAnnouncementRead(context.Background(), "c2-a"))
	assert.Equal(t, 1, env.api.count("MarkAnnouncementRead:c2-a"))
}

func TestMarkAnnouncementReadFailureKeepsState(t *testing.T) {
	env := newTestEnv()
	seedDashboard(env.api)
	env.api.fail("MarkAnnouncementRead:c2-a", errors.New("nope"))
	v := loadedDashboardView(t, env)

	require.Error(t, v.MarkAnnouncementRead(context.Background(), "c2-a"))

	a, _ := findBy(v.Snapshot().Announcements.Data, func(a entity.Announcement) bool { return a.ID == "c2-a" })
	assert.Empty(t, a.ReadBy)
	assert.True(t, env.cached(courseAnnouncementsKey("c2")))
}

func TestMarkUnknownAnnouncement(t *testing.T) {
	env := newTestEnv()
	seedDashboard(env.api)
	v := loadedDashboardView(t, env)

	err := v.MarkAnnouncementRead(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAnnouncementNotFound)
}
