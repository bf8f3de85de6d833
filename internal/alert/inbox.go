package alert

import (
	"context"
	"database/sql"
	"time"
)

// Inbox keeps the latest alert per key in SQLite until it is dismissed.
type Inbox struct{ db *sql.DB }

func NewInbox(ctx context.Context, db *sql.DB) (*Inbox, error) {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS alerts (
  task_id INTEGER PRIMARY KEY,
  title TEXT NOT NULL,
  body TEXT NOT NULL,
  shown_at INTEGER NOT NULL
)`)
	if err != nil {
		return nil, err
	}
	return &Inbox{db: db}, nil
}

func (i *Inbox) Show(ctx context.Context, a Alert) error {
	if a.ShownAt.IsZero() {
		a.ShownAt = time.Now()
	}
	_, err := i.db.ExecContext(ctx, `
INSERT INTO alerts (task_id,title,body,shown_at) VALUES (?,?,?,?)
ON CONFLICT(task_id) DO UPDATE SET title=excluded.title, body=excluded.body, shown_at=excluded.shown_at`,
		a.Key, a.Title, a.Body, a.ShownAt.UnixMilli())
	return err
}

// List returns visible alerts, newest first.
func (i *Inbox) List(ctx context.Context) ([]Alert, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT task_id,title,body,shown_at FROM alerts ORDER BY shown_at DESC, task_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := []Alert{}
	for rows.Next() {
		var a Alert
		var shownAt int64
		if err := rows.Scan(&a.Key, &a.Title, &a.Body, &shownAt); err != nil {
			return nil, err
		}
		a.ShownAt = time.UnixMilli(shownAt)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Dismiss removes the alert for key. It reports whether one was visible.
func (i *Inbox) Dismiss(ctx context.Context, key int64) (bool, error) {
	res, err := i.db.ExecContext(ctx, `DELETE FROM alerts WHERE task_id=?`, key)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
