package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskmaster/internal/domain"
)

const taskColumns = `id,title,description,category,deadline,is_completed,created_at,notification_lead_time`

var orderBy = map[domain.Projection]string{
	domain.ProjectionAll:        `created_at DESC, id DESC`,
	domain.ProjectionByDeadline: `deadline ASC, id ASC`,
	domain.ProjectionByCategory: `category COLLATE BINARY ASC, id ASC`,
}

// Store persists tasks and pushes fresh projections to observers after
// every mutation.
type Store struct {
	db  *sql.DB
	now func() time.Time

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type Option func(*Store)

// WithClock overrides the source of CreatedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open migrates db to CurrentVersion and returns a store over it. It
// refuses to return a store when any migration step fails.
func Open(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	s := &Store{db: db, now: time.Now, subs: map[*subscriber]struct{}{}}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// DB returns the underlying connection, shared with the job queue and alert inbox.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Insert(ctx context.Context, t domain.Task) (domain.Task, error) {
	t.ID = 0
	t.CreatedAt = time.UnixMilli(s.now().UnixMilli())
	t.Deadline = time.UnixMilli(t.Deadline.UnixMilli())
	res, err := s.db.ExecContext(ctx, `
INSERT INTO tasks (title,description,category,deadline,is_completed,created_at,notification_lead_time)
VALUES (?,?,?,?,?,?,?)`,
		t.Title, t.Description, t.Category, t.Deadline.UnixMilli(), t.IsCompleted, t.CreatedAt.UnixMilli(), float64(t.NotificationLeadTime))
	if err != nil {
		return domain.Task{}, &domain.ConstraintError{Op: "insert task", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Task{}, &domain.ConstraintError{Op: "insert task", Err: err}
	}
	t.ID = id
	s.changed()
	return t, nil
}

// Update replaces every mutable field of the row with t.ID. CreatedAt is kept.
func (s *Store) Update(ctx context.Context, t domain.Task) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE tasks SET title=?,description=?,category=?,deadline=?,is_completed=?,notification_lead_time=?
WHERE id=?`,
		t.Title, t.Description, t.Category, t.Deadline.UnixMilli(), t.IsCompleted, float64(t.NotificationLeadTime), t.ID)
	if err != nil {
		return &domain.ConstraintError{Op: "update task", Err: err}
	}
	if n, err := res.RowsAffected(); err != nil {
		return &domain.ConstraintError{Op: "update task", Err: err}
	} else if n == 0 {
		return fmt.Errorf("update task %d: %w", t.ID, domain.ErrNotFound)
	}
	s.changed()
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return &domain.ConstraintError{Op: "delete task", Err: err}
	}
	if n, err := res.RowsAffected(); err != nil {
		return &domain.ConstraintError{Op: "delete task", Err: err}
	} else if n == 0 {
		return fmt.Errorf("delete task %d: %w", id, domain.ErrNotFound)
	}
	s.changed()
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, fmt.Errorf("get task %d: %w", id, domain.ErrNotFound)
	}
	return t, err
}

// List reads one snapshot of the projection.
func (s *Store) List(ctx context.Context, p domain.Projection) ([]domain.Task, error) {
	order, ok := orderBy[p]
	if !ok {
		return nil, fmt.Errorf("unknown projection %d", p)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY `+order)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Categories returns the distinct non-blank categories in use.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT category FROM tasks WHERE trim(category) <> '' ORDER BY category COLLATE BINARY`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(r scanner) (domain.Task, error) {
	var (
		t                   domain.Task
		deadline, createdAt int64
		lead                float64
	)
	if err := r.Scan(&t.ID, &t.Title, &t.Description, &t.Category, &deadline, &t.IsCompleted, &createdAt, &lead); err != nil {
		return domain.Task{}, err
	}
	t.Deadline = time.UnixMilli(deadline)
	t.CreatedAt = time.UnixMilli(createdAt)
	t.NotificationLeadTime = domain.LeadTime(lead)
	return t, nil
}
