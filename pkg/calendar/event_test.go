package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func timedEvent(ownerUid, title, date, startTime string) Event {
	return Event{
		Title:         title,
		Type:          SingleDay,
		StartDate:     date,
		StartTime:     startTime,
		Visibility:    Public,
		OwnerUid:      ownerUid,
		Notifications: []Notification{},
	}
}

func rangeEvent(ownerUid, title, from, to string) Event {
	return Event{
		Title:         title,
		Type:          DateRange,
		StartDate:     from,
		EndDate:       to,
		IsAllDay:      true,
		Visibility:    Public,
		OwnerUid:      ownerUid,
		Notifications: []Notification{},
	}
}

// assertSameContent compares the user supplied fields, ignoring identity and timestamps.
func assertSameContent(t *testing.T, expected, actual Event) {
	t.Helper()
	assert.Equal(t, expected.Title, actual.Title)
	assert.Equal(t, expected.Type, actual.Type)
	assert.Equal(t, expected.StartDate, actual.StartDate)
	assert.Equal(t, expected.EndDate, actual.EndDate)
	assert.Equal(t, expected.StartTime, actual.StartTime)
	assert.Equal(t, expected.EndTime, actual.EndTime)
	assert.Equal(t, expected.IsAllDay, actual.IsAllDay)
	assert.Equal(t, expected.Visibility, actual.Visibility)
	assert.Equal(t, expected.OwnerUid, actual.OwnerUid)
	assert.Equal(t, expected.Notifications, actual.Notifications)
}

func titles(events []Event) []string {
	result := make([]string, 0, len(events))
	for _, e := range events {
		result = append(result, e.Title)
	}
	return result
}

func TestEvent_OccursOn(t *testing.T) {
	single := timedEvent("u", "single", "2026-02-10", "10:00")
	multi := rangeEvent("u", "range", "2026-02-10", "2026-02-12")

	testCases := []struct {
		name  string
		event Event
		date  string
		want  bool
	}{
		{"single day on its date", single, "2026-02-10", true},
		{"single day on another date", single, "2026-02-11", false},
		{"range on first day", multi, "2026-02-10", true},
		{"range in the middle", multi, "2026-02-11", true},
		{"range on last day", multi, "2026-02-12", true},
		{"range after last day", multi, "2026-02-13", false},
		{"range before first day", multi, "2026-02-09", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.event.OccursOn(tc.date))
		})
	}
}

func TestEvent_Overlaps(t *testing.T) {
	multi := rangeEvent("u", "range", "2026-02-10", "2026-02-12")
	single := timedEvent("u", "single", "2026-02-10", "10:00")

	assert.True(t, multi.Overlaps("2026-02-01", "2026-02-10"))
	assert.True(t, multi.Overlaps("2026-02-12", "2026-02-20"))
	assert.True(t, multi.Overlaps("2026-02-11", "2026-02-11"))
	assert.False(t, multi.Overlaps("2026-02-13", "2026-02-20"))
	assert.False(t, multi.Overlaps("2026-02-01", "2026-02-09"))
	assert.True(t, single.Overlaps("2026-02-10", "2026-02-10"))
	assert.False(t, single.Overlaps("2026-02-11", "2026-02-12"))
}
