package services

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/O-G-W-A-L/doit-cli/internal/apiclient"
)

// Notification is a single user notification.
type Notification struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"message"`
	Kind      string    `json:"notification_type"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// unreadCountTTL keeps the badge counter from hammering the API; any
// read-state mutation invalidates it immediately.
const unreadCountTTL = 30 * time.Second

// Notifications handles the notification endpoints.
type Notifications struct {
	client *apiclient.Client
	cache  *gocache.Cache
}

// NewNotifications creates a Notifications service.
func NewNotifications(client *apiclient.Client) *Notifications {
	return &Notifications{
		client: client,
		cache:  gocache.New(unreadCountTTL, time.Minute),
	}
}

// List returns all notifications for the current user.
func (n *Notifications) List(ctx context.Context) ([]Notification, error) {
	return apiclient.Get[[]Notification](ctx, n.client, "/api/notifications/")
}

// UnreadCount returns the number of unread notifications, cached briefly.
func (n *Notifications) UnreadCount(ctx context.Context) (int, error) {
	if cached, ok := n.cache.Get("unread"); ok {
		return cached.(int), nil
	}

	count, err := apiclient.Get[int](ctx, n.client, "/api/notifications/unread-count/")
	if err != nil {
		return 0, err
	}

	n.cache.SetDefault("unread", count)
	return count, nil
}

// MarkRead marks one notification as read.
func (n *Notifications) MarkRead(ctx context.Context, id int) (*Notification, error) {
	notification, err := apiclient.Patch[Notification](ctx, n.client, fmt.Sprintf("/api/notifications/%d/read/", id), nil)
	if err != nil {
		return nil, err
	}
	n.cache.Delete("unread")
	return &notification, nil
}

// MarkAllRead marks every notification as read.
func (n *Notifications) MarkAllRead(ctx context.Context) error {
	if _, err := apiclient.Post[struct{}](ctx, n.client, "/api/notifications/mark-all-read/", nil); err != nil {
		return err
	}
	n.cache.Delete("unread")
	return nil
}

// Delete removes a notification.
func (n *Notifications) Delete(ctx context.Context, id int) error {
	if err := apiclient.Delete(ctx, n.client, fmt.Sprintf("/api/notifications/%d/", id)); err != nil {
		return err
	}
	n.cache.Delete("unread")
	return nil
}
