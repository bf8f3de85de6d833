package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"taskmaster/internal/queue"
	"taskmaster/internal/store"
)

func newRepo(t *testing.T) queue.Repository {
	t.Helper()
	db, err := store.OpenDB(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := queue.EnsureSchema(db); err != nil {
		t.Fatal(err)
	}
	return queue.NewSQLiteRepo(db)
}

func TestRecoverStaleRequeuesExpiredLeases(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	now := time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)
	if _, err := repo.Enqueue(ctx, queue.Job{Tag: "task_reminder_1", Kind: "reminder", RunAt: now.Add(-time.Minute), MaxAttempts: 3}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.LeaseNext(ctx, now, time.Minute); err != nil {
		t.Fatal(err)
	}

	s := NewService(repo, "@every 30s", "@hourly", time.Hour)
	s.now = func() time.Time { return now.Add(30 * time.Second) }
	if n := s.RecoverStale(ctx); n != 0 {
		t.Fatalf("recovered live lease: %d", n)
	}
	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	if n := s.RecoverStale(ctx); n != 1 {
		t.Fatalf("RecoverStale = %d, want 1", n)
	}
	j, ok, err := repo.Pending(ctx, "task_reminder_1")
	if err != nil || !ok || j.State != queue.StateQueued {
		t.Errorf("job = %+v, %v, %v", j, ok, err)
	}
}

func TestPurgeFailedHonoursRetention(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	now := time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)
	if _, err := repo.Enqueue(ctx, queue.Job{Tag: "task_reminder_2", Kind: "reminder", RunAt: now, MaxAttempts: 1}); err != nil {
		t.Fatal(err)
	}
	j, err := repo.LeaseNext(ctx, now, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Fail(ctx, j.ID, "boom", now); err != nil {
		t.Fatal(err)
	}

	s := NewService(repo, "@every 30s", "@hourly", 24*time.Hour)
	s.now = func() time.Time { return now.Add(time.Hour) }
	if n := s.PurgeFailed(ctx); n != 0 {
		t.Fatalf("purged inside retention: %d", n)
	}
	s.now = func() time.Time { return now.Add(25 * time.Hour) }
	if n := s.PurgeFailed(ctx); n != 1 {
		t.Fatalf("PurgeFailed = %d, want 1", n)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewService(newRepo(t), "every now and then", "@hourly", time.Hour)
	if err := s.Start(ctx); err == nil {
		t.Fatal("expected error for invalid recover schedule")
	}
}
