package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"taskmaster/internal/alert"
	"taskmaster/internal/domain"
	"taskmaster/internal/queue"
)

// Tasks is the task service as seen by the HTTP layer.
type Tasks interface {
	InsertTask(ctx context.Context, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteByID(ctx context.Context, id int64) error
	SetCompleted(ctx context.Context, id int64, done bool) (domain.Task, error)
	Get(ctx context.Context, id int64) (domain.Task, error)
	List(ctx context.Context, p domain.Projection) ([]domain.Task, error)
	Observe(ctx context.Context, p domain.Projection) <-chan []domain.Task
	Categories(ctx context.Context) ([]string, error)
}

type Alerts interface {
	List(ctx context.Context) ([]alert.Alert, error)
	Dismiss(ctx context.Context, key int64) (bool, error)
}

type Jobs interface {
	ListPending(ctx context.Context) ([]queue.Job, error)
}

type Server struct {
	r      *chi.Mux
	tasks  Tasks
	alerts Alerts
	jobs   Jobs
}

func NewServer(tasks Tasks, alerts Alerts, jobs Jobs) http.Handler {
	return NewServerWithDebug(tasks, alerts, jobs, false)
}

func NewServerWithDebug(tasks Tasks, alerts Alerts, jobs Jobs, enableDebug bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{r: r, tasks: tasks, alerts: alerts, jobs: jobs}

	r.Get("/health", s.health)
	r.Get("/api/tasks", s.listTasks)
	r.Post("/api/tasks", s.createTask)
	r.Get("/api/tasks/stream", s.streamTasks)
	r.Get("/api/tasks/{id}", s.getTask)
	r.Put("/api/tasks/{id}", s.updateTask)
	r.Delete("/api/tasks/{id}", s.deleteTask)
	r.Post("/api/tasks/{id}/complete", s.completeTask(true))
	r.Delete("/api/tasks/{id}/complete", s.completeTask(false))
	r.Get("/api/categories", s.categories)
	r.Get("/api/alerts", s.listAlerts)
	r.Delete("/api/alerts/{key}", s.dismissAlert)
	r.Get("/api/reminders", s.listReminders)

	if enableDebug {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
		r.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		r.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	}

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type taskReq struct {
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Category             string    `json:"category"`
	Deadline             time.Time `json:"deadline"`
	IsCompleted          bool      `json:"is_completed"`
	NotificationLeadTime float64   `json:"notification_lead_time"`
}

func (req taskReq) validate() error {
	switch {
	case req.Title == "":
		return errors.New("title is required")
	case req.Deadline.IsZero():
		return errors.New("deadline is required")
	case req.NotificationLeadTime < 0:
		return errors.New("notification_lead_time must not be negative")
	}
	return nil
}

func (req taskReq) task(id int64) domain.Task {
	return domain.Task{
		ID:                   id,
		Title:                req.Title,
		Description:          req.Description,
		Category:             req.Category,
		Deadline:             req.Deadline,
		IsCompleted:          req.IsCompleted,
		NotificationLeadTime: domain.LeadTime(req.NotificationLeadTime),
	}
}

type taskResp struct {
	ID                   int64     `json:"id"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Category             string    `json:"category"`
	Deadline             time.Time `json:"deadline"`
	IsCompleted          bool      `json:"is_completed"`
	CreatedAt            time.Time `json:"created_at"`
	NotificationLeadTime float64   `json:"notification_lead_time"`
	Reminder             string    `json:"reminder,omitempty"`
}

func toResp(t domain.Task) taskResp {
	resp := taskResp{
		ID:                   t.ID,
		Title:                t.Title,
		Description:          t.Description,
		Category:             t.Category,
		Deadline:             t.Deadline,
		IsCompleted:          t.IsCompleted,
		CreatedAt:            t.CreatedAt,
		NotificationLeadTime: float64(t.NotificationLeadTime),
	}
	if t.NotificationLeadTime.Enabled() {
		resp.Reminder = t.NotificationLeadTime.Label()
	}
	return resp
}

func toResps(tasks []domain.Task) []taskResp {
	out := make([]taskResp, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toResp(t))
	}
	return out
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	t, err := s.tasks.InsertTask(r.Context(), req.task(0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResp(t))
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, toResp(t))
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req taskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if err := s.tasks.UpdateTask(r.Context(), req.task(id)); err != nil {
		writeError(w, err)
		return
	}
	t, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, toResp(t))
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.tasks.DeleteByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) completeTask(done bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		t, err := s.tasks.SetCompleted(r.Context(), id, done)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, 200, toResp(t))
	}
}

// listTasks serves one snapshot. sort picks the projection, status filters
// active or completed tasks.
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	p, ok := domain.ParseProjection(r.URL.Query().Get("sort"))
	if !ok {
		http.Error(w, "sort must be created, deadline or category", 400)
		return
	}
	keep, ok := statusFilter(r.URL.Query().Get("status"))
	if !ok {
		http.Error(w, "status must be all, active or completed", 400)
		return
	}
	tasks, err := s.tasks.List(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, toResps(keep(tasks)))
}

// streamTasks pushes a full snapshot as a server-sent event after every change.
func (s *Server) streamTasks(w http.ResponseWriter, r *http.Request) {
	p, ok := domain.ParseProjection(r.URL.Query().Get("sort"))
	if !ok {
		http.Error(w, "sort must be created, deadline or category", 400)
		return
	}
	keep, ok := statusFilter(r.URL.Query().Get("status"))
	if !ok {
		http.Error(w, "status must be all, active or completed", 400)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", 500)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for snapshot := range s.tasks.Observe(r.Context(), p) {
		data, err := json.Marshal(toResps(keep(snapshot)))
		if err != nil {
			log.Error().Err(err).Msg("encode snapshot")
			return
		}
		if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
	}
}

func statusFilter(status string) (func([]domain.Task) []domain.Task, bool) {
	switch status {
	case "", "all":
		return func(t []domain.Task) []domain.Task { return t }, true
	case "active":
		return domain.Active, true
	case "completed":
		return domain.Completed, true
	}
	return nil, false
}

type categoriesResp struct {
	InUse       []string `json:"in_use"`
	Suggestions []string `json:"suggestions"`
}

func (s *Server) categories(w http.ResponseWriter, r *http.Request) {
	inUse, err := s.tasks.Categories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if inUse == nil {
		inUse = []string{}
	}
	writeJSON(w, 200, categoriesResp{InUse: inUse, Suggestions: domain.DefaultCategories})
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.alerts.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, alerts)
}

func (s *Server) dismissAlert(w http.ResponseWriter, r *http.Request) {
	key, ok := pathID(w, r, "key")
	if !ok {
		return
	}
	found, err := s.alerts.Dismiss(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		http.Error(w, "not found", 404)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reminderResp struct {
	Tag      string    `json:"tag"`
	JobID    string    `json:"job_id"`
	State    string    `json:"state"`
	FireAt   time.Time `json:"fire_at"`
	Attempts int       `json:"attempts"`
}

func (s *Server) listReminders(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]reminderResp, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, reminderResp{Tag: j.Tag, JobID: j.ID, State: j.State, FireAt: j.RunAt, Attempts: j.Attempts})
	}
	writeJSON(w, 200, out)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		http.Error(w, "invalid "+name, 400)
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "not found", 404)
		return
	}
	log.Error().Err(err).Msg("request failed")
	http.Error(w, err.Error(), 500)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
