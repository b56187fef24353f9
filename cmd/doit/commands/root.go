package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/O-G-W-A-L/doit-cli/internal/app"
	"github.com/O-G-W-A-L/doit-cli/internal/observability"
	"github.com/O-G-W-A-L/doit-cli/internal/session"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "doit",
		Usage: "Do-It learning platform client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "api--base-url",
				Usage: "platform API base URL",
				Value: app.DefaultConfigAPIBaseURL,
			},
			&cli.StringFlag{
				Name:  "auth--storage",
				Usage: "credential storage (memory|file|keyring|env)",
				Value: string(app.DefaultConfigAuthStorage),
			},
			&cli.StringFlag{
				Name:  "auth--scope",
				Usage: "session scope (shared|isolated)",
				Value: string(app.DefaultConfigAuthScope),
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			whoamiCommand(),
			coursesCommand(),
			notificationsCommand(),
			dashboardCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

// terminalNavigator is the CLI's login surface: there is no route to change,
// so "navigating" tells the user how to start a new session.
type terminalNavigator struct{}

// Compile-time check to ensure terminalNavigator implements session.Navigator
var _ session.Navigator = terminalNavigator{}

func (terminalNavigator) AtLogin() bool { return false }

func (terminalNavigator) ToLogin() {
	fmt.Fprintln(os.Stderr, "Your session has expired. Run 'doit login' to sign in again.")
}

// setup loads config, installs logging and wires the application.
// The returned shutdown function flushes exported logs.
func setup(cmd *cli.Command, navigator session.Navigator) (*app.App, func(context.Context) error, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	shutdown, err := observability.Instrument(cfg.LogLevel, string(cfg.LogFormat), string(cfg.LogExport))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	application, err := app.New(cfg, navigator)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create app: %w", err)
	}

	return application, shutdown, nil
}
