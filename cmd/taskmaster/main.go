package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"taskmaster/internal/config"
)

var Version = "dev"

func main() {
	var cfgPath string
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "taskmaster",
		Short:         "Personal task manager with deadline reminders",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return nil
			}
			c, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			cfg = c
			setupLogging(cfg.Log)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "taskmaster.yaml", "config file")

	conf := func() *config.Config { return cfg }
	rootCmd.AddCommand(serveCmd(conf))
	rootCmd.AddCommand(migrateCmd(conf))
	rootCmd.AddCommand(addCmd(conf))
	rootCmd.AddCommand(listCmd(conf))
	rootCmd.AddCommand(doneCmd(conf))
	rootCmd.AddCommand(rmCmd(conf))
	rootCmd.AddCommand(alertsCmd(conf))
	rootCmd.AddCommand(notifyTestCmd(conf))
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(c config.LogConfig) {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
