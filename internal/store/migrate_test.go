package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"taskmaster/internal/domain"
)

func TestPriorityToCategory(t *testing.T) {
	tests := []struct {
		priority any
		want     string
	}{
		{int64(1), "High"},
		{int64(2), "Medium"},
		{int64(3), "Normal"},
		{int64(4), "Low"},
		{int64(5), "Very Low"},
		{int64(0), "Other"},
		{int64(99), "Other"},
		{int64(-1), "Other"},
		{float64(4), "Low"},
		{"2", "Other"},
	}
	for _, tt := range tests {
		in := Row{"id": int64(7), "title": "t", "priority": tt.priority}
		out, err := priorityToCategory(in)
		if err != nil {
			t.Fatalf("priority %v: %v", tt.priority, err)
		}
		if out["category"] != tt.want {
			t.Errorf("priority %v -> %v, want %q", tt.priority, out["category"], tt.want)
		}
		if _, ok := out["priority"]; ok {
			t.Errorf("priority %v: priority column survived", tt.priority)
		}
		if out["id"] != int64(7) || out["title"] != "t" {
			t.Errorf("other columns changed: %v", out)
		}
		if _, ok := in["category"]; ok {
			t.Error("transform mutated its input")
		}
	}
}

func TestAddNotificationLeadTime(t *testing.T) {
	in := Row{"id": int64(1), "category": "Work"}
	out, err := addNotificationLeadTime(in)
	if err != nil {
		t.Fatal(err)
	}
	if out["notification_lead_time"] != float64(0) || out["category"] != "Work" || len(out) != 3 {
		t.Errorf("got %v", out)
	}
}

func TestFreshDatabaseStartsAtCurrentVersion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := Open(ctx, db); err != nil {
		t.Fatalf("Open: %v", err)
	}
	v, err := SchemaVersion(ctx, db)
	if err != nil || v != CurrentVersion {
		t.Fatalf("SchemaVersion = %d, %v; want %d", v, err, CurrentVersion)
	}
	// Opening again is a no-op.
	if _, err := Open(ctx, db); err != nil {
		t.Fatalf("second Open: %v", err)
	}
}

type legacyRow struct {
	id          int64
	title, desc string
	priority    int64
	deadline    int64
	completed   bool
	createdAt   int64
}

func seedVersion1(t *testing.T, db *sql.DB, rows []legacyRow) {
	t.Helper()
	if _, err := db.Exec(createTable(1, "tasks")); err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO tasks (id,title,description,priority,deadline,is_completed,created_at) VALUES (?,?,?,?,?,?,?)`,
			r.id, r.title, r.desc, r.priority, r.deadline, r.completed, r.createdAt)
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestMigrateVersion1ToCurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedVersion1(t, db, []legacyRow{
		{1, "Pay rent", "before the 1st", 2, 1767600000000, false, 1767000000000},
		{2, "Odd", "", 99, 1767700000000, true, 1767000001000},
		{3, "Deleted later", "", 1, 1767800000000, false, 1767000002000},
		{4, "Gym", "legs", 5, 1767900000000, false, 1767000003000},
	})
	if _, err := db.Exec(`DELETE FROM tasks WHERE id=4`); err != nil {
		t.Fatal(err)
	}

	s, err := Open(ctx, db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if v, _ := SchemaVersion(ctx, db); v != CurrentVersion {
		t.Fatalf("version = %d, want %d", v, CurrentVersion)
	}

	tasks, err := s.List(ctx, domain.ProjectionByDeadline)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 {
		t.Fatalf("row count = %d, want 3", len(tasks))
	}
	want := map[int64]struct {
		category  string
		title     string
		completed bool
		deadline  int64
		createdAt int64
	}{
		1: {"Medium", "Pay rent", false, 1767600000000, 1767000000000},
		2: {"Other", "Odd", true, 1767700000000, 1767000001000},
		3: {"High", "Deleted later", false, 1767800000000, 1767000002000},
	}
	for _, got := range tasks {
		w, ok := want[got.ID]
		if !ok {
			t.Fatalf("unexpected id %d", got.ID)
		}
		if got.Category != w.category || got.Title != w.title || got.IsCompleted != w.completed {
			t.Errorf("task %d = %+v", got.ID, got)
		}
		if got.Deadline.UnixMilli() != w.deadline || got.CreatedAt.UnixMilli() != w.createdAt {
			t.Errorf("task %d timestamps changed: %v %v", got.ID, got.Deadline, got.CreatedAt)
		}
		if got.NotificationLeadTime != 0 {
			t.Errorf("task %d lead = %v, want 0", got.ID, got.NotificationLeadTime)
		}
	}

	next, err := s.Insert(ctx, domain.Task{Title: "after migration", Deadline: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if next.ID != 5 {
		t.Errorf("new id = %d, want 5 (id 4 was used before migration)", next.ID)
	}
}

func TestMigrateVersion2To3KeepsEveryField(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := db.Exec(createTable(2, "tasks")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE schema_version (version INTEGER NOT NULL); INSERT INTO schema_version VALUES (2)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO tasks (id,title,description,category,deadline,is_completed,created_at)
VALUES (10,'Dentist','bring card','Health',1767600000000,1,1767000000000)`); err != nil {
		t.Fatal(err)
	}

	s, err := Open(ctx, db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := s.Get(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Dentist" || got.Description != "bring card" || got.Category != "Health" || !got.IsCompleted ||
		got.Deadline.UnixMilli() != 1767600000000 || got.CreatedAt.UnixMilli() != 1767000000000 || got.NotificationLeadTime != 0 {
		t.Errorf("migrated row = %+v", got)
	}
}

func TestFailedStepLeavesPreviousVersion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedVersion1(t, db, []legacyRow{{1, "a", "", 3, 1, false, 1}})

	boom := errors.New("boom")
	steps := []Migration{
		{From: 1, To: 2, Transform: priorityToCategory},
		{From: 2, To: 3, Transform: func(Row) (Row, error) { return nil, boom }},
	}
	err := migrate(ctx, db, steps, 3)
	var me *domain.MigrationError
	if !errors.As(err, &me) {
		t.Fatalf("migrate error = %v, want MigrationError", err)
	}
	if me.From != 2 || me.To != 3 || !errors.Is(err, boom) {
		t.Errorf("MigrationError = %+v", me)
	}

	if v, _ := SchemaVersion(ctx, db); v != 2 {
		t.Errorf("version = %d, want 2", v)
	}
	var category string
	if err := db.QueryRow(`SELECT category FROM tasks WHERE id=1`).Scan(&category); err != nil || category != "Normal" {
		t.Errorf("version 2 row = %q, %v", category, err)
	}
	var n int
	if err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE name='tasks_next'`).Scan(&n); err != nil || n != 0 {
		t.Errorf("tasks_next left behind: %d, %v", n, err)
	}
}

func TestTransformDroppingColumnFails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedVersion1(t, db, []legacyRow{{1, "a", "", 3, 1, false, 1}})

	steps := []Migration{{From: 1, To: 2, Transform: func(r Row) (Row, error) { return r, nil }}}
	if err := migrate(ctx, db, steps, 2); err == nil {
		t.Fatal("expected error for missing category column")
	}
	if v, _ := SchemaVersion(ctx, db); v != 1 {
		t.Errorf("version = %d, want 1", v)
	}
}

func TestOpenRefusesNewerSchema(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := db.Exec(createTable(3, "tasks")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE schema_version (version INTEGER NOT NULL); INSERT INTO schema_version VALUES (9)`); err != nil {
		t.Fatal(err)
	}
	s, err := Open(ctx, db)
	var me *domain.MigrationError
	if s != nil || !errors.As(err, &me) {
		t.Fatalf("Open = %v, %v; want MigrationError", s, err)
	}
}

func TestMissingStepIsMigrationError(t *testing.T) {
	db := newTestDB(t)
	seedVersion1(t, db, nil)
	err := migrate(context.Background(), db, []Migration{{From: 2, To: 3, Transform: addNotificationLeadTime}}, 3)
	var me *domain.MigrationError
	if !errors.As(err, &me) || me.From != 1 || me.To != 2 {
		t.Fatalf("err = %v", err)
	}
}
