// Package alert delivers user-visible reminders. Every surface treats
// Alert.Key as a dedupe key: a later alert with the same key replaces the
// earlier one.
package alert

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

type Alert struct {
	Key     int64     `json:"key"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	ShownAt time.Time `json:"shown_at"`
}

type Surface interface {
	Show(ctx context.Context, a Alert) error
}

// Multi shows an alert on every surface and joins their errors.
type Multi []Surface

func (m Multi) Show(ctx context.Context, a Alert) error {
	var errs []error
	for _, s := range m {
		if err := s.Show(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes alerts to the process log.
type Log struct{}

func (Log) Show(_ context.Context, a Alert) error {
	log.Info().Int64("task_id", a.Key).Str("title", a.Title).Str("body", a.Body).Msg("reminder")
	return nil
}
