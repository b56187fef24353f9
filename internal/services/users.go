package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/O-G-W-A-L/doit-cli/internal/apiclient"
)

// UserSession is an active login session on a user's account.
type UserSession struct {
	ID        int       `json:"id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_activity"`
}

// LoginRecord is one entry in a user's login history.
type LoginRecord struct {
	ID        int       `json:"id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// UserBan records an account suspension.
type UserBan struct {
	ID        int        `json:"id"`
	UserID    int        `json:"user"`
	BanType   string     `json:"ban_type"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Active    bool       `json:"is_active"`
}

// UserPreferences holds per-account settings.
type UserPreferences struct {
	Language           string `json:"language"`
	Timezone           string `json:"timezone"`
	EmailNotifications bool   `json:"email_notifications"`
	PushNotifications  bool   `json:"push_notifications"`
}

// UserSearchParams filters the user listing.
type UserSearchParams struct {
	Search   string
	Page     int
	PageSize int
}

func (p UserSearchParams) values() url.Values {
	values := url.Values{}
	if p.Search != "" {
		values.Set("search", p.Search)
	}
	if p.Page > 0 {
		values.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		values.Set("page_size", strconv.Itoa(p.PageSize))
	}
	return values
}

// Users handles the user management endpoints. Most operations are admin-only;
// the server enforces that, the wrapper does not gate them.
type Users struct {
	client *apiclient.Client
}

// NewUsers creates a Users service.
func NewUsers(client *apiclient.Client) *Users {
	return &Users{client: client}
}

// List returns the user listing page matching the params (admin only).
func (u *Users) List(ctx context.Context, params UserSearchParams) ([]User, error) {
	page, err := apiclient.Get[paginated[User]](ctx, u.client, "/api/users/",
		apiclient.WithQuery(params.values()))
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

// Get returns a single user by id.
func (u *Users) Get(ctx context.Context, id int) (*User, error) {
	user, err := apiclient.Get[User](ctx, u.client, userPath(id))
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create creates a user account (admin only).
func (u *Users) Create(ctx context.Context, fields map[string]any) (*User, error) {
	user, err := apiclient.Post[User](ctx, u.client, "/api/users/", fields)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update applies a partial user update (admin only).
func (u *Users) Update(ctx context.Context, id int, fields map[string]any) (*User, error) {
	user, err := apiclient.Patch[User](ctx, u.client, userPath(id), fields)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete removes a user account (admin only).
func (u *Users) Delete(ctx context.Context, id int) error {
	return apiclient.Delete(ctx, u.client, userPath(id))
}

// Sessions lists a user's active login sessions.
func (u *Users) Sessions(ctx context.Context, id int) ([]UserSession, error) {
	return apiclient.Get[[]UserSession](ctx, u.client, userPath(id)+"sessions/")
}

// LoginHistory lists a user's past login attempts.
func (u *Users) LoginHistory(ctx context.Context, id int) ([]LoginRecord, error) {
	return apiclient.Get[[]LoginRecord](ctx, u.client, userPath(id)+"login-history/")
}

// Ban suspends a user account (admin only). A nil expiresAt bans permanently.
func (u *Users) Ban(ctx context.Context, id int, banType, reason string, expiresAt *time.Time) (*UserBan, error) {
	payload := map[string]any{
		"ban_type": banType,
		"reason":   reason,
	}
	if expiresAt != nil {
		payload["expires_at"] = expiresAt.Format(time.RFC3339)
	}

	ban, err := apiclient.Post[UserBan](ctx, u.client, userPath(id)+"ban/", payload)
	if err != nil {
		return nil, err
	}
	return &ban, nil
}

// Unban lifts a user's suspension (admin only).
func (u *Users) Unban(ctx context.Context, id int) (*UserBan, error) {
	ban, err := apiclient.Post[UserBan](ctx, u.client, userPath(id)+"unban/", nil)
	if err != nil {
		return nil, err
	}
	return &ban, nil
}

// Preferences returns the current user's preferences.
func (u *Users) Preferences(ctx context.Context) (*UserPreferences, error) {
	prefs, err := apiclient.Get[UserPreferences](ctx, u.client, "/api/users/preferences/")
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

// UpdatePreferences applies a partial preferences update.
func (u *Users) UpdatePreferences(ctx context.Context, fields map[string]any) (*UserPreferences, error) {
	prefs, err := apiclient.Patch[UserPreferences](ctx, u.client, "/api/users/preferences/", fields)
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

func userPath(id int) string {
	return fmt.Sprintf("/api/users/%d/", id)
}
