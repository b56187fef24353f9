package app

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/O-G-W-A-L/doit-cli/internal/apiclient"
	"github.com/O-G-W-A-L/doit-cli/internal/credstore"
	"github.com/O-G-W-A-L/doit-cli/internal/services"
	"github.com/O-G-W-A-L/doit-cli/internal/session"
)

// App wires the credential store, session broadcaster, API client and domain
// services together for one session scope.
type App struct {
	cfg *Config

	Store       credstore.Store
	Broadcaster *session.Broadcaster

	Auth          *services.Auth
	Courses       *services.Courses
	Notifications *services.Notifications
	Payments      *services.Payments
	Progress      *services.Progress
	Users         *services.Users
	Dashboard     *services.Dashboard
}

// New creates an App instance. The navigator receives the redirect-to-login
// side effect on unrecoverable auth failure; pass nil for none.
func New(cfg *Config, navigator session.Navigator) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// An isolated scope gets its own storage partition, minted fresh per
	// process the way the web client mints a per-tab id.
	scope := ""
	if cfg.Auth.Scope == SessionScopeIsolated {
		scope = uuid.NewString()
	}

	store, err := cfg.Auth.NewCredentialStore(scope)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	broadcaster, err := session.NewBroadcaster(store, navigator)
	if err != nil {
		return nil, fmt.Errorf("failed to create session broadcaster: %w", err)
	}

	client, err := apiclient.New(cfg.API.BaseURL, store, broadcaster,
		apiclient.WithTimeout(cfg.API.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	courses := services.NewCourses(client)
	progress := services.NewProgress(client)
	notifications := services.NewNotifications(client)

	return &App{
		cfg:           cfg,
		Store:         store,
		Broadcaster:   broadcaster,
		Auth:          services.NewAuth(client, store),
		Courses:       courses,
		Notifications: notifications,
		Payments:      services.NewPayments(client),
		Progress:      progress,
		Users:         services.NewUsers(client),
		Dashboard:     services.NewDashboard(courses, progress, notifications),
	}, nil
}
