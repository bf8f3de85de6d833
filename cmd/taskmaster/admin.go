package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"taskmaster/internal/config"
	"taskmaster/internal/store"
)

func migrateCmd(conf func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the task database to the current schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), conf(), func(ctx context.Context, a *app) error {
				v, err := store.SchemaVersion(ctx, a.db)
				if err != nil {
					return err
				}
				fmt.Printf("schema version %d\n", v)
				return nil
			})
		},
	}
}

func alertsCmd(conf func() *config.Config) *cobra.Command {
	var dismiss string
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Show delivered reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), conf(), func(ctx context.Context, a *app) error {
				if dismiss != "" {
					key, err := strconv.ParseInt(dismiss, 10, 64)
					if err != nil {
						return fmt.Errorf("invalid --dismiss %q", dismiss)
					}
					_, err = a.inbox.Dismiss(ctx, key)
					return err
				}
				alerts, err := a.inbox.List(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				defer w.Flush()
				for _, al := range alerts {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", al.Key, al.ShownAt.Format(time.RFC3339), al.Title, al.Body)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dismiss, "dismiss", "", "dismiss the alert for this task id")
	return cmd
}

func notifyTestCmd(conf func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a sample reminder through the configured alert surfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), conf(), func(ctx context.Context, a *app) error {
				return a.reminder.ShowTest(ctx)
			})
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "taskmaster.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	})
	return cmd
}
