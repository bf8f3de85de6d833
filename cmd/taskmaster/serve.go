package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"taskmaster/internal/api"
	"taskmaster/internal/config"
	"taskmaster/internal/reminder"
	"taskmaster/internal/scheduler"
	"taskmaster/internal/worker"
)

func serveCmd(conf func() *config.Config) *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and deliver reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := conf()
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Addr = addr
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.service.Reconcile(ctx); err != nil {
				log.Error().Err(err).Msg("reconcile reminders")
			}

			housekeeping := scheduler.NewService(a.jobs, cfg.Maintenance.Recover, cfg.Maintenance.Purge, cfg.Maintenance.PurgeAfter)
			housekeeping.RecoverStale(ctx)
			if err := housekeeping.Start(ctx); err != nil {
				return err
			}

			handlers := map[string]worker.Handler{
				reminder.Kind: a.reminder,
			}
			pool := worker.NewPool(a.jobs, handlers, cfg.Workers, cfg.Poll, cfg.Lease)
			poolDone := make(chan struct{})
			go func() {
				defer close(poolDone)
				pool.Run(ctx)
			}()

			srv := &http.Server{
				Addr:    cfg.Addr,
				Handler: api.NewServerWithDebug(a.service, a.inbox, a.jobs, debug),
				// Snapshot streams end when the process is told to stop.
				BaseContext: func(net.Listener) context.Context { return ctx },
			}
			go func() {
				log.Info().Str("addr", cfg.Addr).Msg("HTTP server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error().Err(err).Msg("http server")
					cancel()
				}
			}()

			<-ctx.Done()
			log.Info().Msg("shutting down")
			ctxTimeout, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelTimeout()
			_ = srv.Shutdown(ctxTimeout)
			<-poolDone
			return nil
		},
	}
	cmd.Flags().String("addr", "", "HTTP bind address (overrides config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "expose pprof handlers")
	return cmd
}
