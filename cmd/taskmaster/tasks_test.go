package main

import (
	"testing"
	"time"
)

func TestParseDeadline(t *testing.T) {
	now := time.Date(2026, 5, 20, 10, 0, 0, 0, time.Local)
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"+24h", now.Add(24 * time.Hour), false},
		{"+90m", now.Add(90 * time.Minute), false},
		{"2026-06-01T09:30:00Z", time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC), false},
		{"2026-06-01 09:30", time.Date(2026, 6, 1, 9, 30, 0, 0, time.Local), false},
		{"+soon", time.Time{}, true},
		{"tomorrow", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseDeadline(tt.in, now)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDeadline(%q) error = %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseDeadline(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
