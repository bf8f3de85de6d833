package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"taskmaster/internal/domain"
)

// CurrentVersion is the task table shape this build reads and writes.
const CurrentVersion = 3

// Row is one task record keyed by column name, as read from the table
// being migrated.
type Row map[string]any

func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Migration rewrites every row from version From to version To. Transform
// must be pure; the runner handles tables and the version marker.
type Migration struct {
	From      int
	To        int
	Transform func(Row) (Row, error)
}

var migrations = []Migration{
	{From: 1, To: 2, Transform: priorityToCategory},
	{From: 2, To: 3, Transform: addNotificationLeadTime},
}

var columns = map[int][]string{
	1: {"id", "title", "description", "priority", "deadline", "is_completed", "created_at"},
	2: {"id", "title", "description", "category", "deadline", "is_completed", "created_at"},
	3: {"id", "title", "description", "category", "deadline", "is_completed", "created_at", "notification_lead_time"},
}

func createTable(version int, name string) string {
	body := []string{
		"id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL",
		"title TEXT NOT NULL",
		"description TEXT NOT NULL",
	}
	if version == 1 {
		body = append(body, "priority INTEGER NOT NULL")
	} else {
		body = append(body, "category TEXT NOT NULL")
	}
	body = append(body,
		"deadline INTEGER NOT NULL",
		"is_completed INTEGER NOT NULL DEFAULT 0",
		"created_at INTEGER NOT NULL",
	)
	if version >= 3 {
		body = append(body, "notification_lead_time REAL NOT NULL DEFAULT 0")
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", name, strings.Join(body, ",\n  "))
}

var priorityLabels = map[int64]string{
	1: "High",
	2: "Medium",
	3: "Normal",
	4: "Low",
	5: "Very Low",
}

// PriorityLabel maps a version 1 priority code to the category it becomes.
func PriorityLabel(code int64) string {
	if label, ok := priorityLabels[code]; ok {
		return label
	}
	return "Other"
}

func priorityToCategory(r Row) (Row, error) {
	out := r.clone()
	raw, ok := out["priority"]
	if !ok {
		return nil, errors.New("row has no priority column")
	}
	delete(out, "priority")
	label := "Other"
	switch v := raw.(type) {
	case int64:
		label = PriorityLabel(v)
	case float64:
		if v == float64(int64(v)) {
			label = PriorityLabel(int64(v))
		}
	}
	out["category"] = label
	return out, nil
}

func addNotificationLeadTime(r Row) (Row, error) {
	out := r.clone()
	out["notification_lead_time"] = float64(0)
	return out, nil
}

// Migrate brings the task table to CurrentVersion. A fresh database gets the
// current shape directly; a legacy table without a version marker counts as
// version 1.
func Migrate(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, migrations, CurrentVersion)
}

func migrate(ctx context.Context, db *sql.DB, steps []Migration, target int) error {
	version, err := ensureVersion(ctx, db, target)
	if err != nil {
		return &domain.MigrationError{From: version, To: target, Err: err}
	}
	if version > target {
		return &domain.MigrationError{From: version, To: target, Err: errors.New("database is newer than this build")}
	}
	for version < target {
		step, ok := findStep(steps, version)
		if !ok {
			return &domain.MigrationError{From: version, To: version + 1, Err: errors.New("no migration step")}
		}
		if err := applyStep(ctx, db, step); err != nil {
			return &domain.MigrationError{From: step.From, To: step.To, Err: err}
		}
		log.Info().Int("from", step.From).Int("to", step.To).Msg("task schema migrated")
		version = step.To
	}
	return nil
}

func findStep(steps []Migration, from int) (Migration, bool) {
	for _, s := range steps {
		if s.From == from && s.To == from+1 {
			return s, true
		}
	}
	return Migration{}, false
}

func ensureVersion(ctx context.Context, db *sql.DB, target int) (version int, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, err
	}
	err = tx.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	switch {
	case err == nil:
		return version, tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return 0, err
	}

	var n int
	if err = tx.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type='table' AND name='tasks'`).Scan(&n); err != nil {
		return 0, err
	}
	version = 1
	if n == 0 {
		version = target
		if _, err = tx.ExecContext(ctx, createTable(target, "tasks")); err != nil {
			return 0, err
		}
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return 0, err
	}
	return version, tx.Commit()
}

func applyStep(ctx context.Context, db *sql.DB, step Migration) (err error) {
	cols, ok := columns[step.To]
	if !ok {
		return fmt.Errorf("unknown schema version %d", step.To)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current int
	if err = tx.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&current); err != nil {
		return err
	}
	if current != step.From {
		return fmt.Errorf("schema is at version %d", current)
	}

	rows, err := readRows(ctx, tx)
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DROP TABLE IF EXISTS tasks_next`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, createTable(step.To, "tasks_next")); err != nil {
		return err
	}
	var seq sql.NullInt64
	if err = tx.QueryRowContext(ctx, `SELECT max(seq) FROM sqlite_sequence WHERE name='tasks'`).Scan(&seq); err != nil {
		return err
	}
	insert := fmt.Sprintf("INSERT INTO tasks_next (%s) VALUES (%s)",
		strings.Join(cols, ","), strings.TrimSuffix(strings.Repeat("?,", len(cols)), ","))
	for _, r := range rows {
		next, terr := step.Transform(r)
		if terr != nil {
			err = fmt.Errorf("row %v: %w", r["id"], terr)
			return err
		}
		args := make([]any, len(cols))
		for i, c := range cols {
			v, ok := next[c]
			if !ok {
				err = fmt.Errorf("row %v: transform dropped column %q", r["id"], c)
				return err
			}
			args[i] = v
		}
		if _, err = tx.ExecContext(ctx, insert, args...); err != nil {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, `DROP TABLE tasks`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `ALTER TABLE tasks_next RENAME TO tasks`); err != nil {
		return err
	}
	// Ids of rows deleted before the migration must stay retired.
	if seq.Valid {
		var res sql.Result
		res, err = tx.ExecContext(ctx, `UPDATE sqlite_sequence SET seq=max(seq, ?) WHERE name='tasks'`, seq.Int64)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err = tx.ExecContext(ctx, `INSERT INTO sqlite_sequence (name, seq) VALUES ('tasks', ?)`, seq.Int64); err != nil {
				return err
			}
		}
	}
	if _, err = tx.ExecContext(ctx, `UPDATE schema_version SET version=?`, step.To); err != nil {
		return err
	}
	return tx.Commit()
}

func readRows(ctx context.Context, tx *sql.Tx) ([]Row, error) {
	rows, err := tx.QueryContext(ctx, `SELECT * FROM tasks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := make(Row, len(names))
		for i, n := range names {
			r[n] = vals[i]
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SchemaVersion reports the version marker.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&v)
	return v, err
}
