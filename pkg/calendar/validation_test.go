package calendar

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEvent(t *testing.T) {
	valid := func() Event {
		e := timedEvent("owner", "Team meeting", "2026-03-10", "09:00")
		e.EndTime = "10:00"
		e.Notifications = []Notification{{Type: AtEvent}, {Type: Before, Value: 10, Unit: Minutes}}
		return e
	}

	testCases := []struct {
		name    string
		mutate  func(e *Event)
		wantErr string
	}{
		{name: "valid timed event", mutate: func(e *Event) {}},
		{name: "valid all day range", mutate: func(e *Event) {
			*e = rangeEvent("owner", "Holidays", "2026-07-01", "2026-07-15")
		}},
		{name: "range on a single date", mutate: func(e *Event) {
			*e = rangeEvent("owner", "Holidays", "2026-07-01", "2026-07-01")
		}},
		{name: "padded morning times", mutate: func(e *Event) {
			e.StartTime = "09:30"
			e.EndTime = "10:00"
		}},
		{name: "all day event without time", mutate: func(e *Event) {
			e.IsAllDay = true
			e.StartTime = ""
			e.EndTime = ""
		}},
		{name: "date range end time may precede start time", mutate: func(e *Event) {
			e.Type = DateRange
			e.EndDate = "2026-03-11"
			e.StartTime = "22:00"
			e.EndTime = "08:00"
		}},
		{name: "empty title", mutate: func(e *Event) { e.Title = "" }, wantErr: "event title is required"},
		{name: "blank title", mutate: func(e *Event) { e.Title = "   " }, wantErr: "event title is required"},
		{name: "missing start date", mutate: func(e *Event) { e.StartDate = "" }, wantErr: "start date is required"},
		{name: "malformed start date", mutate: func(e *Event) { e.StartDate = "10/03/2026" }, wantErr: "start date must use the YYYY-MM-DD format"},
		{name: "unknown type", mutate: func(e *Event) { e.Type = "weekly" }, wantErr: `unknown event type "weekly"`},
		{name: "range without end date", mutate: func(e *Event) {
			e.Type = DateRange
		}, wantErr: "end date is required for a date range event"},
		{name: "range ending before start", mutate: func(e *Event) {
			e.Type = DateRange
			e.EndDate = "2026-03-09"
		}, wantErr: "end date must not be before start date"},
		{name: "unknown visibility", mutate: func(e *Event) { e.Visibility = "friends" }, wantErr: `unknown visibility "friends"`},
		{name: "timed event without start time", mutate: func(e *Event) { e.StartTime = "" }, wantErr: "start time is required"},
		{name: "malformed start time", mutate: func(e *Event) { e.StartTime = "9h" }, wantErr: "start time must use the HH:MM format"},
		{name: "unpadded start time", mutate: func(e *Event) {
			e.StartTime = "9:30"
			e.EndTime = "10:00"
		}, wantErr: "start time must use the HH:MM format"},
		{name: "unpadded end time", mutate: func(e *Event) {
			e.StartTime = "10:00"
			e.EndTime = "9:30"
		}, wantErr: "end time must use the HH:MM format"},
		{name: "end time earlier in the morning", mutate: func(e *Event) {
			e.StartTime = "10:00"
			e.EndTime = "09:30"
		}, wantErr: "end time must be after start time"},
		{name: "end time equal to start time", mutate: func(e *Event) { e.EndTime = "09:00" }, wantErr: "end time must be after start time"},
		{name: "end time before start time", mutate: func(e *Event) { e.EndTime = "08:59" }, wantErr: "end time must be after start time"},
		{name: "notification value zero", mutate: func(e *Event) {
			e.Notifications[1].Value = 0
		}, wantErr: "invalid notification value at index 1 (1-100)"},
		{name: "notification value above maximum", mutate: func(e *Event) {
			e.Notifications[1].Value = 101
		}, wantErr: "invalid notification value at index 1 (1-100)"},
		{name: "notification unit unknown", mutate: func(e *Event) {
			e.Notifications[1].Unit = "months"
		}, wantErr: "invalid notification unit at index 1"},
		{name: "notification type unknown", mutate: func(e *Event) {
			e.Notifications[0].Type = "after"
		}, wantErr: "invalid notification type at index 0"},
		{name: "boundary values accepted", mutate: func(e *Event) {
			e.Notifications = []Notification{{Type: Before, Value: 1, Unit: Weeks}, {Type: Before, Value: 100, Unit: Hours}}
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			event := valid()
			tc.mutate(&event)

			err := ValidateEvent(event)

			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEvent)
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tc.wantErr, validationErr.Message)
		})
	}
}
