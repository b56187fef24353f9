package services

import (
	"context"
	"fmt"

	"github.com/O-G-W-A-L/doit-cli/internal/apiclient"
)

// CourseProgress summarizes a user's position in one course.
type CourseProgress struct {
	CourseID         int     `json:"course"`
	CompletedLessons int     `json:"completed_lessons"`
	TotalLessons     int     `json:"total_lessons"`
	Percent          float64 `json:"percent"`
	LastLessonID     int     `json:"last_lesson,omitempty"`
}

// Progress handles the progress-tracking endpoints.
type Progress struct {
	client *apiclient.Client
}

// NewProgress creates a Progress service.
func NewProgress(client *apiclient.Client) *Progress {
	return &Progress{client: client}
}

// ForCourse returns the current user's progress in one course.
func (p *Progress) ForCourse(ctx context.Context, courseID int) (*CourseProgress, error) {
	progress, err := apiclient.Get[CourseProgress](ctx, p.client, fmt.Sprintf("/api/progress/courses/%d/", courseID))
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// Overview returns progress across all enrolled courses.
func (p *Progress) Overview(ctx context.Context) ([]CourseProgress, error) {
	return apiclient.Get[[]CourseProgress](ctx, p.client, "/api/progress/overview/")
}

// CompleteLesson records a lesson as completed.
func (p *Progress) CompleteLesson(ctx context.Context, lessonID int) (*CourseProgress, error) {
	progress, err := apiclient.Post[CourseProgress](ctx, p.client, fmt.Sprintf("/api/progress/lessons/%d/complete/", lessonID), nil)
	if err != nil {
		return nil, err
	}
	return &progress, nil
}
