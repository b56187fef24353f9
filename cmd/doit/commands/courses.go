package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/O-G-W-A-L/doit-cli/internal/apiclient"
	"github.com/O-G-W-A-L/doit-cli/internal/services"
)

func coursesCommand() *cli.Command {
	return &cli.Command{
		Name:  "courses",
		Usage: "browse and enroll in courses",
		Commands: []*cli.Command{
			coursesListCommand(),
			coursesShowCommand(),
			coursesEnrollCommand(),
		},
	}
}

func coursesListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list the course catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "search", Usage: "full-text search"},
			&cli.StringFlag{Name: "category", Usage: "filter by category"},
			&cli.StringFlag{Name: "difficulty", Usage: "filter by difficulty"},
			&cli.IntFlag{Name: "page", Usage: "catalog page"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			application, shutdown, err := setup(cmd, terminalNavigator{})
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(ctx) }()

			courses, err := application.Courses.List(ctx, services.CourseSearchParams{
				Search:     cmd.String("search"),
				Category:   cmd.String("category"),
				Difficulty: cmd.String("difficulty"),
				Page:       int(cmd.Int("page")),
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tDIFFICULTY\tPRICE")
			for _, course := range courses {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					course.ID, course.Title, course.Category, course.Difficulty, course.Price)
			}
			return w.Flush()
		},
	}
}

func coursesShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "show one course",
		ArgsUsage: "<id|slug>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("expected exactly one course id or slug")
			}

			application, shutdown, err := setup(cmd, terminalNavigator{})
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(ctx) }()

			course, err := application.Courses.Get(ctx, cmd.Args().First())
			if err != nil {
				return err
			}

			fmt.Printf("%s (#%d)\n", course.Title, course.ID)
			fmt.Printf("  %s · %s · %s\n", course.Category, course.Difficulty, course.Price)
			fmt.Printf("  mentor: %s\n", course.Mentor.Username)
			if course.Description != "" {
				fmt.Printf("\n%s\n", course.Description)
			}
			for _, mod := range course.Modules {
				fmt.Printf("\n  %d. %s\n", mod.Order, mod.Title)
				for _, lesson := range mod.Lessons {
					fmt.Printf("     - %s (%d min)\n", lesson.Title, lesson.Duration)
				}
			}
			return nil
		},
	}
}

func coursesEnrollCommand() *cli.Command {
	return &cli.Command{
		Name:      "enroll",
		Usage:     "enroll in a course",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("expected exactly one course id")
			}
			id, err := strconv.Atoi(cmd.Args().First())
			if err != nil {
				return fmt.Errorf("invalid course id %q", cmd.Args().First())
			}

			application, shutdown, err := setup(cmd, terminalNavigator{})
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(ctx) }()

			enrollment, err := application.Courses.Enroll(ctx, id)
			if err != nil {
				// Enrollment auth failures are contextual: the session
				// survives, the user just needs to sign in first.
				var classified *apiclient.ClassifiedError
				if errors.As(err, &classified) && classified.Contextual {
					return errors.New("you need to log in to enroll: run 'doit login' and try again")
				}
				return err
			}

			fmt.Printf("Enrolled in course %d (status: %s)\n", enrollment.CourseID, enrollment.Status)
			return nil
		},
	}
}
