package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/O-G-W-A-L/doit-cli/internal/session"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "sign in and store the session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "platform username",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			// No navigator here: failing to log in must not print the
			// "session expired" hint mid-login.
			application, shutdown, err := setup(cmd, session.NopNavigator{})
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(ctx) }()

			username := cmd.String("username")
			if username == "" {
				fmt.Print("Username: ")
				if _, err := fmt.Scanln(&username); err != nil {
					return fmt.Errorf("reading username: %w", err)
				}
			}

			password, err := promptPassword()
			if err != nil {
				return err
			}

			result, err := application.Auth.Login(ctx, username, password)
			if err != nil {
				return err
			}

			fmt.Printf("Logged in as %s (%s)\n", result.User.Username, result.User.Email)
			return nil
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "end the session and clear stored credentials",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			application, shutdown, err := setup(cmd, session.NopNavigator{})
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(ctx) }()

			if err := application.Auth.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		},
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "show the authenticated user",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			application, shutdown, err := setup(cmd, terminalNavigator{})
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(ctx) }()

			user, err := application.Auth.CurrentUser(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("%s <%s>", user.Username, user.Email)
			if user.Role != "" {
				fmt.Printf(" [%s]", user.Role)
			}
			fmt.Println()
			return nil
		},
	}
}

// promptPassword reads a password without echo when stdin is a terminal,
// falling back to a plain line read (piped input, tests).
func promptPassword() (string, error) {
	fmt.Print("Password: ")

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(raw), nil
	}

	var password string
	if _, err := fmt.Scanln(&password); err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(password), nil
}
