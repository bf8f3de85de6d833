package domain

import (
	"strconv"
	"time"
)

// LeadTime is how long before the deadline a reminder fires, in hours.
// Zero disables the reminder and 0.25 is reserved for fifteen minutes.
type LeadTime float64

const (
	LeadNone      LeadTime = 0
	Lead15Minutes LeadTime = 0.25
	Lead2Hours    LeadTime = 2
	Lead6Hours    LeadTime = 6
)

func (l LeadTime) Enabled() bool { return l > 0 }

// Duration converts the selector to wall-clock time. Non-positive values yield 0.
func (l LeadTime) Duration() time.Duration {
	switch {
	case l <= 0:
		return 0
	case l == Lead15Minutes:
		return 15 * time.Minute
	default:
		return time.Duration(float64(l) * float64(time.Hour))
	}
}

func (l LeadTime) Label() string {
	switch l {
	case Lead15Minutes:
		return "15 minutes"
	case Lead2Hours:
		return "2 hours"
	case Lead6Hours:
		return "6 hours"
	}
	return strconv.FormatFloat(float64(l), 'f', -1, 64) + " hours"
}

type Task struct {
	ID                   int64
	Title                string
	Description          string
	Category             string
	Deadline             time.Time
	IsCompleted          bool
	CreatedAt            time.Time
	NotificationLeadTime LeadTime
}

// FireAt is the instant the reminder for t is due. The boolean is false
// when t has no reminder.
func (t Task) FireAt() (time.Time, bool) {
	if !t.NotificationLeadTime.Enabled() {
		return time.Time{}, false
	}
	return t.Deadline.Add(-t.NotificationLeadTime.Duration()), true
}

// Projection selects the ordering of a task list.
type Projection int

const (
	ProjectionAll Projection = iota
	ProjectionByDeadline
	ProjectionByCategory
)

func (p Projection) String() string {
	switch p {
	case ProjectionByDeadline:
		return "deadline"
	case ProjectionByCategory:
		return "category"
	default:
		return "created"
	}
}

// ParseProjection accepts the names produced by String. Empty input means ProjectionAll.
func ParseProjection(s string) (Projection, bool) {
	switch s {
	case "", "created", "all":
		return ProjectionAll, true
	case "deadline":
		return ProjectionByDeadline, true
	case "category":
		return ProjectionByCategory, true
	}
	return ProjectionAll, false
}
