package main

import (
	"context"
	"database/sql"

	"taskmaster/internal/alert"
	"taskmaster/internal/config"
	"taskmaster/internal/queue"
	"taskmaster/internal/reminder"
	"taskmaster/internal/service"
	"taskmaster/internal/store"
)

// app holds the components shared by every subcommand.
type app struct {
	db       *sql.DB
	jobs     queue.Repository
	inbox    *alert.Inbox
	reminder *reminder.Handler
	service  *service.Service
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := store.OpenDB(cfg.DB)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := queue.EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	inbox, err := alert.NewInbox(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	jobs := queue.NewSQLiteRepo(db)
	scheduler := reminder.NewScheduler(jobs, reminder.WithMaxAttempts(cfg.MaxAttempts))
	return &app{
		db:       db,
		jobs:     jobs,
		inbox:    inbox,
		reminder: reminder.NewHandler(st, surfaces(cfg.Alerts, inbox)),
		service:  service.New(st, scheduler),
	}, nil
}

func surfaces(c config.AlertsConfig, inbox *alert.Inbox) alert.Surface {
	var m alert.Multi
	if c.Inbox {
		m = append(m, inbox)
	}
	if c.Log {
		m = append(m, alert.Log{})
	}
	if c.Webhook != "" {
		w := alert.NewWebhook(c.Webhook, c.WebhookTimeout)
		w.Headers = c.WebhookHeaders
		m = append(m, w)
	}
	if len(c.Command) > 0 {
		m = append(m, alert.Command{Path: c.Command[0], Args: c.Command[1:]})
	}
	return m
}

func (a *app) Close() error { return a.db.Close() }
