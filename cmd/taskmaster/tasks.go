package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"taskmaster/internal/config"
	"taskmaster/internal/domain"
)

func addCmd(conf func() *config.Config) *cobra.Command {
	var (
		desc, category, due string
		remind              float64
	)
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(args[0])
			if title == "" {
				return fmt.Errorf("title is required")
			}
			if remind < 0 {
				return fmt.Errorf("--remind must not be negative")
			}
			deadline, err := parseDeadline(due, time.Now())
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), conf(), func(ctx context.Context, a *app) error {
				t, err := a.service.InsertTask(ctx, domain.Task{
					Title:                title,
					Description:          desc,
					Category:             category,
					Deadline:             deadline,
					NotificationLeadTime: domain.LeadTime(remind),
				})
				if err != nil {
					return err
				}
				fmt.Printf("created task %d due %s\n", t.ID, t.Deadline.Format(time.RFC3339))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&desc, "description", "d", "", "task description")
	cmd.Flags().StringVarP(&category, "category", "g", "", "category label")
	cmd.Flags().StringVar(&due, "due", "+24h", "deadline: RFC3339 time or +duration from now")
	cmd.Flags().Float64VarP(&remind, "remind", "r", 0, "reminder lead time in hours (0.25 = 15 minutes, 0 = none)")
	return cmd
}

// parseDeadline accepts RFC3339, "2006-01-02 15:04" in local time, or a
// relative "+duration".
func parseDeadline(s string, now time.Time) (time.Time, error) {
	if strings.HasPrefix(s, "+") {
		d, err := time.ParseDuration(s[1:])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --due %q: %w", s, err)
		}
		return now.Add(d), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --due %q", s)
	}
	return t, nil
}

func listCmd(conf func() *config.Config) *cobra.Command {
	var (
		sortBy string
		all    bool
		group  bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := domain.ParseProjection(sortBy)
			if !ok {
				return fmt.Errorf("--sort must be created, deadline or category")
			}
			return withApp(cmd.Context(), conf(), func(ctx context.Context, a *app) error {
				tasks, err := a.service.List(ctx, p)
				if err != nil {
					return err
				}
				if !all {
					tasks = domain.Active(tasks)
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				defer w.Flush()
				if !group {
					printTasks(w, tasks)
					return nil
				}
				for _, g := range domain.GroupByCategory(tasks) {
					fmt.Fprintf(w, "Category: %s\n", g.Category)
					printTasks(w, g.Tasks)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sortBy, "sort", "s", "created", "created, deadline or category")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include completed tasks")
	cmd.Flags().BoolVar(&group, "group", false, "group by category")
	return cmd
}

func printTasks(w *tabwriter.Writer, tasks []domain.Task) {
	for _, t := range tasks {
		mark := " "
		if t.IsCompleted {
			mark = "x"
		}
		reminder := "-"
		if t.NotificationLeadTime.Enabled() {
			reminder = t.NotificationLeadTime.Label()
		}
		fmt.Fprintf(w, "[%s]\t%d\t%s\t%s\t%s\t%s\n", mark, t.ID, t.Title, t.Category, t.Deadline.Format("2006-01-02 15:04"), reminder)
	}
}

func doneCmd(conf func() *config.Config) *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "done [id]",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return withApp(cmd.Context(), conf(), func(ctx context.Context, a *app) error {
				_, err := a.service.SetCompleted(ctx, id, !undo)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "mark the task active again")
	return cmd
}

func rmCmd(conf func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a task and its reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return withApp(cmd.Context(), conf(), func(ctx context.Context, a *app) error {
				return a.service.DeleteByID(ctx, id)
			})
		},
	}
}

func withApp(ctx context.Context, cfg *config.Config, fn func(context.Context, *app) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
