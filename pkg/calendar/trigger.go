package calendar

import (
	"fmt"
	"time"
)

var unitDurations = map[Unit]time.Duration{
	Minutes: time.Minute,
	Hours:   time.Hour,
	Days:    24 * time.Hour,
	Weeks:   7 * 24 * time.Hour,
}

// EventDateTime combines the start date with the start time, or midnight when there is none,
// in loc.
func EventDateTime(e Event, loc *time.Location) (time.Time, error) {
	clock := e.StartTime
	if clock == "" {
		clock = "00:00"
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, e.StartDate+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start of event %s: %w", e.UID, err)
	}
	return t, nil
}

// CalculateNotificationTime subtracts the notification offset from eventTime. Units are fixed
// lengths, so a "1 day" reminder is always exactly 24 hours earlier. An at-event notification
// or an unknown unit yields eventTime itself.
func CalculateNotificationTime(eventTime time.Time, n Notification) time.Time {
	if n.Type != Before {
		return eventTime
	}
	unit, ok := unitDurations[n.Unit]
	if !ok {
		return eventTime
	}
	return eventTime.Add(-time.Duration(n.Value) * unit)
}

// TriggerTime is the instant at which notification n of event e should fire.
func TriggerTime(e Event, n Notification, loc *time.Location) (time.Time, error) {
	if n.Type != AtEvent && n.Type != Before {
		return time.Time{}, fmt.Errorf("unknown notification type %q", n.Type)
	}
	eventTime, err := EventDateTime(e, loc)
	if err != nil {
		return time.Time{}, err
	}
	return CalculateNotificationTime(eventTime, n), nil
}

// OffsetMinutes is the notification offset expressed in minutes before the event start.
func OffsetMinutes(n Notification) int {
	if n.Type != Before {
		return 0
	}
	return int(unitDurations[n.Unit] / time.Minute * time.Duration(n.Value))
}
