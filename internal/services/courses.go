package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/O-G-W-A-L/doit-cli/internal/apiclient"
)

// Course is the full course record.
type Course struct {
	ID          int     `json:"id"`
	Slug        string  `json:"slug"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Difficulty  string  `json:"difficulty"`
	Price       string  `json:"price"`
	Mentor      User    `json:"mentor"`
	Modules     []Mod   `json:"modules,omitempty"`
	Rating      float64 `json:"rating"`
	Enrolled    bool    `json:"is_enrolled"`
}

// Mod is a course module grouping lessons.
type Mod struct {
	ID      int      `json:"id"`
	Title   string   `json:"title"`
	Order   int      `json:"order"`
	Lessons []Lesson `json:"lessons,omitempty"`
}

// Lesson is a single unit of course content.
type Lesson struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Kind     string `json:"content_type"`
	Duration int    `json:"duration_minutes"`
	Order    int    `json:"order"`
}

// Enrollment links a user to a course.
type Enrollment struct {
	ID         int       `json:"id"`
	CourseID   int       `json:"course"`
	Status     string    `json:"status"`
	EnrolledAt time.Time `json:"enrolled_at"`
	Progress   float64   `json:"progress"`
}

// paginated is the DRF list envelope.
type paginated[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

// CourseSearchParams filters the catalog listing.
type CourseSearchParams struct {
	Search     string
	Category   string
	Difficulty string
	Page       int
}

func (p CourseSearchParams) values() url.Values {
	values := url.Values{}
	if p.Search != "" {
		values.Set("search", p.Search)
	}
	if p.Category != "" {
		values.Set("category", p.Category)
	}
	if p.Difficulty != "" {
		values.Set("difficulty", p.Difficulty)
	}
	if p.Page > 0 {
		values.Set("page", strconv.Itoa(p.Page))
	}
	return values
}

// catalogTTL mirrors the short-lived caching a browser tab gets for free from
// component state: repeated listings within a session don't re-fetch.
const catalogTTL = 30 * time.Second

// Courses handles the course catalog and enrollment endpoints.
type Courses struct {
	client *apiclient.Client
	cache  *gocache.Cache
}

// NewCourses creates a Courses service.
func NewCourses(client *apiclient.Client) *Courses {
	return &Courses{
		client: client,
		cache:  gocache.New(catalogTTL, time.Minute),
	}
}

// List returns the course catalog page matching the params. Unfiltered
// first-page listings are cached briefly.
func (c *Courses) List(ctx context.Context, params CourseSearchParams) ([]Course, error) {
	cacheable := params == CourseSearchParams{}
	if cacheable {
		if cached, ok := c.cache.Get("catalog"); ok {
			return cached.([]Course), nil
		}
	}

	page, err := apiclient.Get[paginated[Course]](ctx, c.client, "/api/courses/courses/",
		apiclient.WithQuery(params.values()))
	if err != nil {
		return nil, err
	}

	if cacheable {
		c.cache.SetDefault("catalog", page.Results)
	}
	return page.Results, nil
}

// Get returns a single course with full details by id or slug.
func (c *Courses) Get(ctx context.Context, slugOrID string) (*Course, error) {
	course, err := apiclient.Get[Course](ctx, c.client, "/api/courses/courses/"+url.PathEscape(slugOrID)+"/")
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// Create publishes a new course (mentor/admin only).
func (c *Courses) Create(ctx context.Context, fields map[string]any) (*Course, error) {
	course, err := apiclient.Post[Course](ctx, c.client, "/api/courses/courses/", fields)
	if err != nil {
		return nil, err
	}
	c.cache.Delete("catalog")
	return &course, nil
}

// Update applies a partial course update (mentor/admin only).
func (c *Courses) Update(ctx context.Context, id int, fields map[string]any) (*Course, error) {
	course, err := apiclient.Patch[Course](ctx, c.client, coursePath(id), fields)
	if err != nil {
		return nil, err
	}
	c.cache.Delete("catalog")
	return &course, nil
}

// Delete removes a course (admin only).
func (c *Courses) Delete(ctx context.Context, id int) error {
	if err := apiclient.Delete(ctx, c.client, coursePath(id)); err != nil {
		return err
	}
	c.cache.Delete("catalog")
	return nil
}

// UploadCover attaches a cover image to a course via multipart upload.
func (c *Courses) UploadCover(ctx context.Context, id int, cover apiclient.File, tags []string) (*Course, error) {
	body, err := apiclient.EncodeForm(map[string]any{
		"cover": cover,
		"tags":  tags,
	})
	if err != nil {
		return nil, err
	}

	course, err := apiclient.Patch[Course](ctx, c.client, coursePath(id), body)
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// Enroll enrolls the current user in a course. This is the contextual action
// class: an unrecoverable auth failure here comes back as
// ClassifiedError{Kind: auth, Contextual: true} and does not end the session,
// so the caller can prompt for login inline.
func (c *Courses) Enroll(ctx context.Context, id int) (*Enrollment, error) {
	enrollment, err := apiclient.Post[Enrollment](ctx, c.client, fmt.Sprintf("/api/courses/%d/enroll/", id), nil)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// MyEnrollments lists the current user's enrollments.
func (c *Courses) MyEnrollments(ctx context.Context) ([]Enrollment, error) {
	page, err := apiclient.Get[paginated[Enrollment]](ctx, c.client, "/api/courses/enrollments/")
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

func coursePath(id int) string {
	return fmt.Sprintf("/api/courses/courses/%d/", id)
}
