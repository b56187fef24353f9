package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func dashboardCommand() *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "show enrollments, progress and unread notifications",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			application, shutdown, err := setup(cmd, terminalNavigator{})
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(ctx) }()

			data, err := application.Dashboard.Load(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Enrollments: %d\n", len(data.Enrollments))
			for _, enrollment := range data.Enrollments {
				fmt.Printf("  course %d: %s (%.0f%%)\n", enrollment.CourseID, enrollment.Status, enrollment.Progress)
			}

			if len(data.Progress) > 0 {
				fmt.Println("Progress:")
				for _, progress := range data.Progress {
					fmt.Printf("  course %d: %d/%d lessons (%.0f%%)\n",
						progress.CourseID, progress.CompletedLessons, progress.TotalLessons, progress.Percent)
				}
			}

			fmt.Printf("Unread notifications: %d\n", data.Unread)
			return nil
		},
	}
}
