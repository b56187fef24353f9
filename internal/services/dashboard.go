package services

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DashboardData is the aggregate the dashboard view renders.
type DashboardData struct {
	Enrollments []Enrollment
	Progress    []CourseProgress
	Unread      int
}

// Dashboard aggregates per-service fetches the way the web client's dashboard
// page fans out its requests.
type Dashboard struct {
	courses       *Courses
	progress      *Progress
	notifications *Notifications
}

// NewDashboard creates a Dashboard aggregator.
func NewDashboard(courses *Courses, progress *Progress, notifications *Notifications) *Dashboard {
	return &Dashboard{
		courses:       courses,
		progress:      progress,
		notifications: notifications,
	}
}

// Load fetches enrollments, progress and the unread counter concurrently.
// The first classified failure cancels the remaining fetches and is returned.
func (d *Dashboard) Load(ctx context.Context) (*DashboardData, error) {
	var data DashboardData

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		enrollments, err := d.courses.MyEnrollments(gCtx)
		if err != nil {
			return err
		}
		data.Enrollments = enrollments
		return nil
	})

	g.Go(func() error {
		progress, err := d.progress.Overview(gCtx)
		if err != nil {
			return err
		}
		data.Progress = progress
		return nil
	})

	g.Go(func() error {
		unread, err := d.notifications.UnreadCount(gCtx)
		if err != nil {
			return err
		}
		data.Unread = unread
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &data, nil
}
