package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog/log"
	"taskmaster/internal/alert"
	"taskmaster/internal/domain"
	"taskmaster/internal/worker"
)

// TaskReader looks a task up at fire time.
type TaskReader interface {
	Get(ctx context.Context, id int64) (domain.Task, error)
}

// Handler runs fired reminder jobs.
type Handler struct {
	tasks  TaskReader
	alerts alert.Surface
	now    func() time.Time
}

type HandlerOption func(*Handler)

// WithAlertClock sets the source of Alert.ShownAt.
func WithAlertClock(now func() time.Time) HandlerOption { return func(h *Handler) { h.now = now } }

func NewHandler(tasks TaskReader, alerts alert.Surface, opts ...HandlerOption) *Handler {
	h := &Handler{tasks: tasks, alerts: alerts, now: time.Now}
	for _, o := range opts {
		o(h)
	}
	return h
}

var _ worker.Handler = (*Handler)(nil)

func (h *Handler) Handle(ctx context.Context, data []byte) error {
	var p Payload
	if err := cbor.Unmarshal(data, &p); err != nil {
		return worker.Permanent(fmt.Errorf("decode reminder payload: %w", err))
	}
	l := log.With().Int64("task_id", p.TaskID).Logger()

	t, err := h.tasks.Get(ctx, p.TaskID)
	if errors.Is(err, domain.ErrNotFound) {
		l.Debug().Msg("reminder suppressed: task deleted")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load task %d: %w", p.TaskID, err)
	}
	if t.IsCompleted {
		l.Debug().Msg("reminder suppressed: task completed")
		return nil
	}
	return h.alerts.Show(ctx, Build(t, domain.LeadTime(p.LeadTime), h.now()))
}

// Build renders the alert for t with the lead time it was scheduled with.
func Build(t domain.Task, lead domain.LeadTime, at time.Time) alert.Alert {
	return alert.Alert{
		Key:     t.ID,
		Title:   "Task Reminder: " + t.Title,
		Body:    "Due in " + lead.Label() + ": " + t.Description,
		ShownAt: at,
	}
}

// TestAlertKey is the key used by ShowTest.
const TestAlertKey = 999

// ShowTest displays a sample reminder so users can check their alert setup.
func (h *Handler) ShowTest(ctx context.Context) error {
	now := h.now()
	t := domain.Task{
		ID:          TestAlertKey,
		Title:       "Test Task",
		Description: "This is a test notification",
		Category:    "Test",
		Deadline:    now.Add(time.Minute),
	}
	return h.alerts.Show(ctx, Build(t, domain.Lead15Minutes, now))
}
