// Package reminder turns a task's deadline and lead time into one deferred
// job per task, and shows the alert when that job fires.
//
// Jobs are tagged by task id. Scheduling again under the same tag replaces
// the pending job atomically, so a task never has two reminders in flight.
// The job carries a snapshot of the task, but the handler re-reads the task
// at fire time and stays quiet when it was deleted or completed meanwhile.
package reminder

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog/log"
	"taskmaster/internal/domain"
	"taskmaster/internal/queue"
)

// Kind routes reminder jobs to Handler in the worker pool.
const Kind = "reminder"

const tagPrefix = "task_reminder_"

func Tag(taskID int64) string { return tagPrefix + strconv.FormatInt(taskID, 10) }

// TaskID reverses Tag.
func TaskID(tag string) (int64, bool) {
	rest, ok := strings.CutPrefix(tag, tagPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	return id, err == nil
}

// Payload is the CBOR body of a reminder job.
type Payload struct {
	TaskID      int64   `cbor:"task_id"`
	Title       string  `cbor:"title"`
	Description string  `cbor:"description"`
	LeadTime    float64 `cbor:"lead_time"`
}

// Queue is the part of the durable job queue the scheduler needs.
type Queue interface {
	Enqueue(ctx context.Context, j queue.Job) (string, error)
	Cancel(ctx context.Context, tag string) (bool, error)
	ListPending(ctx context.Context) ([]queue.Job, error)
}

type Scheduler struct {
	jobs        Queue
	now         func() time.Time
	maxAttempts int
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// WithMaxAttempts bounds delivery retries for each reminder.
func WithMaxAttempts(n int) Option { return func(s *Scheduler) { s.maxAttempts = n } }

func NewScheduler(jobs Queue, opts ...Option) *Scheduler {
	s := &Scheduler{jobs: jobs, now: time.Now, maxAttempts: 5}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Schedule enqueues the reminder for t, replacing any pending one. It
// reports false without error when t needs no reminder: no lead time, a
// completed task, or a fire time that is not in the future.
func (s *Scheduler) Schedule(ctx context.Context, t domain.Task) (bool, error) {
	fireAt, ok := t.FireAt()
	if !ok {
		return false, nil
	}
	l := log.With().Int64("task_id", t.ID).Time("fire_at", fireAt).Logger()
	if t.IsCompleted {
		l.Debug().Msg("reminder skipped: task completed")
		return false, nil
	}
	if !fireAt.After(s.now()) {
		l.Debug().Msg("reminder skipped: fire time has passed")
		return false, nil
	}

	payload, err := cbor.Marshal(Payload{
		TaskID:      t.ID,
		Title:       t.Title,
		Description: t.Description,
		LeadTime:    float64(t.NotificationLeadTime),
	})
	if err != nil {
		return false, fmt.Errorf("encode reminder for task %d: %w", t.ID, err)
	}
	jobID, err := s.jobs.Enqueue(ctx, queue.Job{
		Tag:         Tag(t.ID),
		Kind:        Kind,
		Payload:     payload,
		RunAt:       fireAt,
		MaxAttempts: s.maxAttempts,
	})
	if err != nil {
		return false, fmt.Errorf("schedule reminder for task %d: %w", t.ID, err)
	}
	l.Info().Str("job_id", jobID).Str("lead", t.NotificationLeadTime.Label()).Msg("reminder scheduled")
	return true, nil
}

// Cancel drops the pending reminder for taskID. Nothing pending is not an error.
func (s *Scheduler) Cancel(ctx context.Context, taskID int64) error {
	removed, err := s.jobs.Cancel(ctx, Tag(taskID))
	if err != nil {
		return fmt.Errorf("cancel reminder for task %d: %w", taskID, err)
	}
	if removed {
		log.Info().Int64("task_id", taskID).Msg("reminder cancelled")
	}
	return nil
}

// Pending lists the ids of tasks that have a reminder queued or running.
func (s *Scheduler) Pending(ctx context.Context) ([]int64, error) {
	jobs, err := s.jobs.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	var ids []int64
	for _, j := range jobs {
		if j.Kind != Kind {
			continue
		}
		if id, ok := TaskID(j.Tag); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
