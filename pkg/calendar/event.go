package calendar

import (
	"time"
)

type EventType string

const (
	SingleDay EventType = "single_day"
	DateRange EventType = "date_range"
)

type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

type NotificationType string

const (
	AtEvent NotificationType = "at_event"
	Before  NotificationType = "before"
)

type Unit string

const (
	Minutes Unit = "minutes"
	Hours   Unit = "hours"
	Days    Unit = "days"
	Weeks   Unit = "weeks"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Event is a calendar entry. Dates are YYYY-MM-DD and times HH:MM strings so that
// ordering is plain string comparison.
type Event struct {
	UID           string
	Title         string
	Type          EventType
	StartDate     string
	EndDate       string
	StartTime     string
	EndTime       string
	IsAllDay      bool
	Visibility    Visibility
	OwnerUid      string
	Notifications []Notification
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Notification is a reminder offset relative to the event start.
// Value and Unit are only meaningful for Before.
type Notification struct {
	Type  NotificationType `json:"type"`
	Value int              `json:"value,omitempty"`
	Unit  Unit             `json:"unit,omitempty"`
}

// LastDate returns the end date of a date range event, or the start date otherwise.
func (e Event) LastDate() string {
	if e.Type == DateRange && e.EndDate != "" {
		return e.EndDate
	}
	return e.StartDate
}

// OccursOn reports whether the event takes place on the given date.
func (e Event) OccursOn(date string) bool {
	if e.Type != DateRange {
		return e.StartDate == date
	}
	return e.StartDate <= date && date <= e.LastDate()
}

// Overlaps reports whether the event intersects the inclusive date range [from, to].
func (e Event) Overlaps(from, to string) bool {
	return !(e.LastDate() < from || e.StartDate > to)
}
