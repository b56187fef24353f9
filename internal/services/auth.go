package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/O-G-W-A-L/doit-cli/internal/apiclient"
	"github.com/O-G-W-A-L/doit-cli/internal/credstore"
)

// User is the authenticated account profile.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	Avatar    string `json:"avatar,omitempty"`
}

// LoginResult carries the minted token pair and the user it belongs to.
type LoginResult struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    User   `json:"user"`
}

// Auth handles authentication and account endpoints. Together with Logout it
// is one of the two top-level flows allowed to write the credential store;
// everything else only reads.
type Auth struct {
	client *apiclient.Client
	store  credstore.Store
}

// NewAuth creates an Auth service writing minted tokens into the given store.
func NewAuth(client *apiclient.Client, store credstore.Store) *Auth {
	return &Auth{client: client, store: store}
}

// Login exchanges credentials for a token pair and persists it.
func (a *Auth) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	result, err := apiclient.Post[LoginResult](ctx, a.client, "/api/auth/login/", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	if err := a.store.Set(ctx, credstore.KindAccess, result.Access); err != nil {
		return nil, fmt.Errorf("persisting access token: %w", err)
	}
	if err := a.store.Set(ctx, credstore.KindRefresh, result.Refresh); err != nil {
		return nil, fmt.Errorf("persisting refresh token: %w", err)
	}

	slog.InfoContext(ctx, "logged in", "username", result.User.Username, "scope", a.store.Scope())
	return &result, nil
}

// RegisterParams is the payload for account creation.
type RegisterParams struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

// Register creates a new account.
func (a *Auth) Register(ctx context.Context, params RegisterParams) (*User, error) {
	user, err := apiclient.Post[User](ctx, a.client, "/api/auth/registration/", params)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout revokes the session server-side, best effort, and always clears
// local credentials: even when the server call fails the local session ends.
func (a *Auth) Logout(ctx context.Context) error {
	if _, err := apiclient.Post[struct{}](ctx, a.client, "/api/auth/logout/", nil); err != nil {
		slog.WarnContext(ctx, "server-side logout failed, clearing local session anyway", "error", err)
	}
	return a.store.Clear(ctx)
}

// CurrentUser returns the profile of the authenticated user.
func (a *Auth) CurrentUser(ctx context.Context) (*User, error) {
	user, err := apiclient.Get[User](ctx, a.client, "/api/auth/user/")
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile applies a partial profile update.
func (a *Auth) UpdateProfile(ctx context.Context, fields map[string]any) (*User, error) {
	user, err := apiclient.Patch[User](ctx, a.client, "/api/auth/user/", fields)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword replaces the account password.
func (a *Auth) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	_, err := apiclient.Post[struct{}](ctx, a.client, "/api/auth/password/change/", map[string]string{
		"old_password":  oldPassword,
		"new_password":  newPassword,
		"new_password2": newPassword,
	})
	return err
}

// ResetPassword requests a password-reset email.
func (a *Auth) ResetPassword(ctx context.Context, email string) error {
	_, err := apiclient.Post[struct{}](ctx, a.client, "/api/auth/password/reset/", map[string]string{
		"email": email,
	})
	return err
}

// ConfirmPasswordReset completes a password reset with the emailed token.
func (a *Auth) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	_, err := apiclient.Post[struct{}](ctx, a.client, "/api/auth/password/reset/confirm/", map[string]string{
		"token":        token,
		"new_password": newPassword,
	})
	return err
}

// VerifyEmail confirms an email address with the emailed key.
func (a *Auth) VerifyEmail(ctx context.Context, key string) error {
	_, err := apiclient.Post[struct{}](ctx, a.client, "/api/auth/verify-email/", map[string]string{
		"key": key,
	})
	return err
}

// ResendVerification requests a new verification email.
func (a *Auth) ResendVerification(ctx context.Context, email string) error {
	_, err := apiclient.Post[struct{}](ctx, a.client, "/api/auth/resend-verification/", map[string]string{
		"email": email,
	})
	return err
}

// GoogleLogin exchanges a Google access token for a platform token pair and
// persists it.
func (a *Auth) GoogleLogin(ctx context.Context, accessToken string) (*LoginResult, error) {
	result, err := apiclient.Post[LoginResult](ctx, a.client, "/api/auth/google/", map[string]string{
		"access_token": accessToken,
	})
	if err != nil {
		return nil, err
	}

	if err := a.store.Set(ctx, credstore.KindAccess, result.Access); err != nil {
		return nil, fmt.Errorf("persisting access token: %w", err)
	}
	if err := a.store.Set(ctx, credstore.KindRefresh, result.Refresh); err != nil {
		return nil, fmt.Errorf("persisting refresh token: %w", err)
	}
	return &result, nil
}
