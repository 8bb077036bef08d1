package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidEvent = errors.New("invalid event")

const (
	minNotificationValue = 1
	maxNotificationValue = 100
)

// ValidationError carries a message meant to be shown to the user as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidEvent
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ValidateEvent checks a candidate event before it is written. It returns the first
// violation found, as a *ValidationError.
func ValidateEvent(e Event) error {
	if strings.TrimSpace(e.Title) == "" {
		return invalid("event title is required")
	}

	if e.StartDate == "" {
		return invalid("start date is required")
	}
	if !isDate(e.StartDate) {
		return invalid("start date must use the YYYY-MM-DD format")
	}

	switch e.Type {
	case SingleDay:
	case DateRange:
		if e.EndDate == "" {
			return invalid("end date is required for a date range event")
		}
		if !isDate(e.EndDate) {
			return invalid("end date must use the YYYY-MM-DD format")
		}
		if e.EndDate < e.StartDate {
			return invalid("end date must not be before start date")
		}
	default:
		return invalid("unknown event type %q", e.Type)
	}

	if e.Visibility != Public && e.Visibility != Private {
		return invalid("unknown visibility %q", e.Visibility)
	}

	if !e.IsAllDay {
		if e.StartTime == "" {
			return invalid("start time is required")
		}
		if !isClock(e.StartTime) {
			return invalid("start time must use the HH:MM format")
		}
		if e.EndTime != "" && !isClock(e.EndTime) {
			return invalid("end time must use the HH:MM format")
		}
		if e.Type == SingleDay && e.EndTime != "" && e.EndTime <= e.StartTime {
			return invalid("end time must be after start time")
		}
	}

	for i, n := range e.Notifications {
		if err := validateNotification(i, n); err != nil {
			return err
		}
	}
	return nil
}

func validateNotification(index int, n Notification) error {
	switch n.Type {
	case AtEvent:
		return nil
	case Before:
		if n.Value < minNotificationValue || n.Value > maxNotificationValue {
			return invalid("invalid notification value at index %d (%d-%d)", index, minNotificationValue, maxNotificationValue)
		}
		if _, ok := unitDurations[n.Unit]; !ok {
			return invalid("invalid notification unit at index %d", index)
		}
		return nil
	default:
		return invalid("invalid notification type at index %d", index)
	}
}

func isDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// isClock requires the zero padded HH:MM form so that clock times order as strings.
func isClock(s string) bool {
	if len(s) != len(TimeLayout) {
		return false
	}
	_, err := time.Parse(TimeLayout, s)
	return err == nil
}
