package service

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"learnlink-be/internal/dto"
	"learnlink-be/internal/entity"
	"learnlink-be/pkg/aggregate"
	"learnlink-be/pkg/feed"
	"learnlink-be/pkg/lifecycle"
	"learnlink-be/pkg/section"
)

// LearningAPI is the part of the portal the student dashboard reads.
type LearningAPI interface {
	ListEnrolledCourses(ctx context.Context) ([]byte, error)
	ListCourseAnnouncements(ctx context.Context, courseID string, limit int) ([]byte, error)
	ListUpcomingLiveSessions(ctx context.Context) ([]byte, error)
	GetCourseProgress(ctx context.Context, courseID string) ([]byte, error)
	MarkAnnouncementRead(ctx context.Context, announcementID string) ([]byte, error)
}

const ActionMarkRead = "markAnnouncementRead"

// DashboardView is one student's landing page.
type DashboardView struct {
	viewBase
	api LearningAPI

	orch          *aggregate.Orchestrator
	announcements *section.Section[entity.Announcement]
	liveSessions  *section.Section[entity.LiveSession]
	progress      *section.Section[entity.CourseProgress]

	reads *lifecycle.Tracker

	started sync.Once
}

func NewDashboardView(userID, token string, api LearningAPI, deps ViewDeps) *DashboardView {
	v := &DashboardView{
		viewBase: viewBase{name: ViewDashboard, userID: userID, deps: deps},
		api:      api,
	}
	v.SetToken(token)

	cfg := deps.Config
	opts := v.sectionOptions()

	// The feed is assembled from per-course entries that are cached on
	// their own, so the section itself is not.
	v.announcements = section.New(section.Loader[entity.Announcement]{
		Name:    SectionAnnouncements,
		Fetch:   v.fetchAnnouncements,
		Timeout: cfg.Upstream.Timeout,
	}, opts)
	v.liveSessions = section.New(section.Loader[entity.LiveSession]{
		Name:     SectionLiveSessions,
		Fetch:    rawFetch[entity.LiveSession](v.authed, api.ListUpcomingLiveSessions),
		CacheKey: dashboardKey(userID, SectionLiveSessions),
		TTL:      cfg.Cache.LiveSessionsTTL,
		Timeout:  cfg.Upstream.Timeout,
	}, opts)
	v.progress = section.New(section.Loader[entity.CourseProgress]{
		Name:     SectionProgress,
		Fetch:    v.fetchProgress,
		CacheKey: dashboardKey(userID, SectionProgress),
		TTL:      cfg.Cache.ProgressTTL,
		Timeout:  cfg.Upstream.Timeout,
	}, opts)

	v.orch = aggregate.New(deps.Logger, v.announcements, v.liveSessions, v.progress)
	v.reads = v.newTracker(ActionMarkRead)
	return v
}

func (v *DashboardView) Open() {
	v.started.Do(func() { v.orch.Start() })
}

func (v *DashboardView) Refresh(ctx context.Context) (uint64, error) {
	v.started.Do(func() {})
	return v.orch.Refresh(ctx)
}

func (v *DashboardView) RefreshSections(ctx context.Context, names ...string) (uint64, error) {
	return v.orch.RefreshSections(ctx, names...)
}

func (v *DashboardView) Close() {
	v.orch.Close()
}

func (v *DashboardView) Snapshot() *dto.DashboardSnapshot {
	return &dto.DashboardSnapshot{
		InitialLoading: v.orch.InitialLoading(),
		Run:            v.orch.LastRun(),
		Announcements:  v.announcements.Snapshot(),
		LiveSessions:   v.liveSessions.Snapshot(),
		Progress:       v.progress.Snapshot(),
		InFlight:       inFlight(v.reads),
	}
}

// MarkAnnouncementRead records the read upstream, then adds the user to
// readBy. Marking an already read announcement does nothing.
func (v *DashboardView) MarkAnnouncementRead(ctx context.Context, announcementID string) error {
	if !v.orch.Active() {
		return aggregate.ErrClosed
	}
	a, ok := findBy(v.announcements.Snapshot().Data, func(a entity.Announcement) bool { return a.ID == announcementID })
	if !ok {
		return ErrAnnouncementNotFound
	}
	if a.ReadByUser(v.userID) {
		return nil
	}

	return v.reads.Do(ctx, announcementID, func(ctx context.Context) error {
		_, err := v.api.MarkAnnouncementRead(v.authed(ctx), announcementID)
		return err
	}, func() {
		v.invalidate(ctx, courseAnnouncementsKey(a.CourseID))
		v.announcements.Update(func(list []entity.Announcement) []entity.Announcement {
			for i, item := range list {
				if item.ID == announcementID && !item.ReadByUser(v.userID) {
					item.ReadBy = append(slices.Clone(item.ReadBy), v.userID)
					list[i] = item
				}
			}
			return list
		})
	})
}

// enrolledCourses is shared by the announcement and progress sections.
func (v *DashboardView) enrolledCourses(ctx context.Context) ([]entity.Course, error) {
	raw, err := v.cachedList(ctx, coursesKey(v.userID), v.deps.Config.Cache.CoursesTTL, func(ctx context.Context) ([]byte, error) {
		return v.api.ListEnrolledCourses(v.authed(ctx))
	})
	if err != nil {
		return nil, fmt.Errorf("enrolled courses: %w", err)
	}
	return section.Normalize[entity.Course](raw), nil
}

func (v *DashboardView) courseAnnouncements(ctx context.Context, course entity.Course) ([]entity.Announcement, error) {
	limit := v.deps.Config.Feed.AnnouncementLimit
	raw, err := v.cachedList(ctx, courseAnnouncementsKey(course.ID), v.deps.Config.Cache.AnnouncementTTL, func(ctx context.Context) ([]byte, error) {
		return v.api.ListCourseAnnouncements(v.authed(ctx), course.ID, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("course %s announcements: %w", course.ID, err)
	}

	items := section.Normalize[entity.Announcement](raw)
	for i := range items {
		if items[i].CourseID == "" {
			items[i].CourseID = course.ID
		}
	}
	return items, nil
}

// fetchAnnouncements merges the newest announcements of the first enrolled
// courses into one feed. It fails only when every course failed.
func (v *DashboardView) fetchAnnouncements(ctx context.Context) (section.Payload[entity.Announcement], error) {
	courses, err := v.enrolledCourses(ctx)
	if err != nil {
		return section.Payload[entity.Announcement]{}, err
	}
	courses = feed.Head(courses, v.deps.Config.Feed.MaxCourses)

	lists, errs := feed.Collect(ctx, courses, v.courseAnnouncements)
	if err := allFailed(errs); err != nil {
		return section.Payload[entity.Announcement]{}, err
	}
	v.logPartial(SectionAnnouncements, errs)

	return section.Items(feed.MergeFeed(lists, v.deps.Config.Feed.FeedSize)), nil
}

func (v *DashboardView) fetchProgress(ctx context.Context) (section.Payload[entity.CourseProgress], error) {
	courses, err := v.enrolledCourses(ctx)
	if err != nil {
		return section.Payload[entity.CourseProgress]{}, err
	}

	lists, errs := feed.Collect(ctx, courses, func(ctx context.Context, course entity.Course) ([]entity.CourseProgress, error) {
		raw, err := v.api.GetCourseProgress(v.authed(ctx), course.ID)
		if err != nil {
			return nil, fmt.Errorf("course %s progress: %w", course.ID, err)
		}
		p, ok := section.NormalizeOne[entity.CourseProgress](raw)
		if !ok {
			return nil, nil
		}
		if p.CourseID == "" {
			p.CourseID = course.ID
		}
		return []entity.CourseProgress{p}, nil
	})
	if err := allFailed(errs); err != nil {
		return section.Payload[entity.CourseProgress]{}, err
	}
	v.logPartial(SectionProgress, errs)

	return section.Items(slices.Concat(lists...)), nil
}

func (v *DashboardView) logPartial(name string, errs []error) {
	for _, err := range errs {
		if err != nil {
			v.deps.Logger.Warn("Dashboard", "Course skipped", map[string]interface{}{
				"section": name,
				"user_id": v.userID,
				"error":   err.Error(),
			})
		}
	}
}
