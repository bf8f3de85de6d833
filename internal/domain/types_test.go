package domain

import (
	"testing"
	"time"
)

func TestLeadTimeDuration(t *testing.T) {
	tests := []struct {
		lead LeadTime
		want time.Duration
	}{
		{LeadNone, 0},
		{-1, 0},
		{Lead15Minutes, 15 * time.Minute},
		{Lead2Hours, 2 * time.Hour},
		{Lead6Hours, 6 * time.Hour},
		{1.5, 90 * time.Minute},
		{24, 24 * time.Hour},
	}
	for _, tt := range tests {
		if got := tt.lead.Duration(); got != tt.want {
			t.Errorf("LeadTime(%v).Duration() = %v, want %v", float64(tt.lead), got, tt.want)
		}
	}
}

func TestLeadTimeLabel(t *testing.T) {
	tests := []struct {
		lead LeadTime
		want string
	}{
		{Lead15Minutes, "15 minutes"},
		{Lead2Hours, "2 hours"},
		{Lead6Hours, "6 hours"},
		{1, "1 hours"},
		{12, "12 hours"},
		{1.5, "1.5 hours"},
	}
	for _, tt := range tests {
		if got := tt.lead.Label(); got != tt.want {
			t.Errorf("LeadTime(%v).Label() = %q, want %q", float64(tt.lead), got, tt.want)
		}
	}
}

func TestTaskFireAt(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, ok := (Task{Deadline: deadline}).FireAt(); ok {
		t.Fatal("task without lead time reported a fire time")
	}

	got, ok := Task{Deadline: deadline, NotificationLeadTime: Lead15Minutes}.FireAt()
	if !ok || !got.Equal(deadline.Add(-15*time.Minute)) {
		t.Errorf("FireAt() = %v, %v; want %v", got, ok, deadline.Add(-15*time.Minute))
	}

	got, ok = Task{Deadline: deadline, NotificationLeadTime: Lead6Hours}.FireAt()
	if !ok || !got.Equal(deadline.Add(-6*time.Hour)) {
		t.Errorf("FireAt() = %v, %v; want %v", got, ok, deadline.Add(-6*time.Hour))
	}
}

func TestParseProjection(t *testing.T) {
	for _, p := range []Projection{ProjectionAll, ProjectionByDeadline, ProjectionByCategory} {
		got, ok := ParseProjection(p.String())
		if !ok || got != p {
			t.Errorf("ParseProjection(%q) = %v, %v", p.String(), got, ok)
		}
	}
	if _, ok := ParseProjection("priority"); ok {
		t.Error("ParseProjection accepted unknown name")
	}
}

func TestGroupByCategory(t *testing.T) {
	tasks := []Task{
		{ID: 1, Category: "Work"},
		{ID: 2, Category: ""},
		{ID: 3, Category: "Home"},
		{ID: 4, Category: "Work"},
		{ID: 5, Category: ""},
	}
	groups := GroupByCategory(tasks)
	want := []struct {
		category string
		ids      []int64
	}{
		{"Work", []int64{1, 4}},
		{Uncategorized, []int64{2, 5}},
		{"Home", []int64{3}},
	}
	if len(groups) != len(want) {
		t.Fatalf("got %d groups, want %d", len(groups), len(want))
	}
	for i, w := range want {
		if groups[i].Category != w.category {
			t.Errorf("group %d category = %q, want %q", i, groups[i].Category, w.category)
		}
		if len(groups[i].Tasks) != len(w.ids) {
			t.Fatalf("group %q has %d tasks, want %d", w.category, len(groups[i].Tasks), len(w.ids))
		}
		for j, id := range w.ids {
			if groups[i].Tasks[j].ID != id {
				t.Errorf("group %q task %d = %d, want %d", w.category, j, groups[i].Tasks[j].ID, id)
			}
		}
	}
}

func TestActiveCompleted(t *testing.T) {
	tasks := []Task{{ID: 1}, {ID: 2, IsCompleted: true}, {ID: 3}}
	if got := Active(tasks); len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("Active() = %+v", got)
	}
	if got := Completed(tasks); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("Completed() = %+v", got)
	}
}
