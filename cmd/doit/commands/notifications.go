package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"
)

func notificationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "notifications",
		Usage: "read and manage notifications",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list notifications",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					application, shutdown, err := setup(cmd, terminalNavigator{})
					if err != nil {
						return err
					}
					defer func() { _ = shutdown(ctx) }()

					notifications, err := application.Notifications.List(ctx)
					if err != nil {
						return err
					}

					for _, n := range notifications {
						marker := " "
						if !n.Read {
							marker = "*"
						}
						fmt.Printf("%s %4d  %s  %s\n", marker, n.ID, n.CreatedAt.Format("2006-01-02"), n.Title)
					}
					return nil
				},
			},
			{
				Name:  "unread",
				Usage: "show the unread count",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					application, shutdown, err := setup(cmd, terminalNavigator{})
					if err != nil {
						return err
					}
					defer func() { _ = shutdown(ctx) }()

					count, err := application.Notifications.UnreadCount(ctx)
					if err != nil {
						return err
					}
					fmt.Println(count)
					return nil
				},
			},
			{
				Name:      "read",
				Usage:     "mark a notification as read (or all with --all)",
				ArgsUsage: "[id]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "mark every notification as read"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					application, shutdown, err := setup(cmd, terminalNavigator{})
					if err != nil {
						return err
					}
					defer func() { _ = shutdown(ctx) }()

					if cmd.Bool("all") {
						return application.Notifications.MarkAllRead(ctx)
					}

					if cmd.Args().Len() != 1 {
						return errors.New("expected a notification id or --all")
					}
					id, err := strconv.Atoi(cmd.Args().First())
					if err != nil {
						return fmt.Errorf("invalid notification id %q", cmd.Args().First())
					}

					_, err = application.Notifications.MarkRead(ctx, id)
					return err
				},
			},
		},
	}
}
