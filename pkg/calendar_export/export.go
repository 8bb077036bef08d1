package calendar_export

import (
	"fmt"
	"time"

	"github.com/agendazk/agendazk/pkg/calendar"
	ics "github.com/arran4/golang-ical"
	log "github.com/sirupsen/logrus"
)

const productId = "-//AgendaZK//Shared Calendar//EN"

// Render writes events as an iCalendar document. Clock times are read in loc.
func Render(events []calendar.Event, loc *time.Location, now time.Time) (string, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productId)

	for _, e := range events {
		if err := addEvent(cal, e, loc, now); err != nil {
			return "", err
		}
	}
	return cal.Serialize(), nil
}

func addEvent(cal *ics.Calendar, e calendar.Event, loc *time.Location, now time.Time) error {
	vevent := cal.AddEvent(e.UID + "@agendazk")
	vevent.SetDtStampTime(now)
	if !e.CreatedAt.IsZero() {
		vevent.SetCreatedTime(e.CreatedAt)
	}
	if !e.UpdatedAt.IsZero() {
		vevent.SetModifiedAt(e.UpdatedAt)
	}
	vevent.SetSummary(e.Title)

	if e.IsAllDay || e.StartTime == "" {
		start, err := time.ParseInLocation(calendar.DateLayout, e.StartDate, loc)
		if err != nil {
			return fmt.Errorf("invalid start date of event %s: %w", e.UID, err)
		}
		last, err := time.ParseInLocation(calendar.DateLayout, e.LastDate(), loc)
		if err != nil {
			return fmt.Errorf("invalid end date of event %s: %w", e.UID, err)
		}
		vevent.SetAllDayStartAt(start)
		// DTEND of a date value is exclusive.
		vevent.SetAllDayEndAt(last.AddDate(0, 0, 1))
	} else {
		start, err := calendar.EventDateTime(e, loc)
		if err != nil {
			return err
		}
		vevent.SetStartAt(start)
		if e.EndTime != "" {
			end, err := time.ParseInLocation(calendar.DateLayout+" "+calendar.TimeLayout, e.LastDate()+" "+e.EndTime, loc)
			if err != nil {
				return fmt.Errorf("invalid end of event %s: %w", e.UID, err)
			}
			vevent.SetEndAt(end)
		}
	}

	if e.Visibility == calendar.Private {
		vevent.SetClass(ics.ClassificationPrivate)
	} else {
		vevent.SetClass(ics.ClassificationPublic)
	}

	for _, n := range e.Notifications {
		if n.Type != calendar.AtEvent && n.Type != calendar.Before {
			log.Debugf("skipping alarm of event %s with type %q", e.UID, n.Type)
			continue
		}
		alarm := vevent.AddAlarm()
		alarm.SetAction(ics.ActionDisplay)
		alarm.SetTrigger(alarmTrigger(n))
		alarm.SetProperty(ics.ComponentPropertyDescription, e.Title)
	}
	return nil
}

func alarmTrigger(n calendar.Notification) string {
	minutes := calendar.OffsetMinutes(n)
	if minutes == 0 {
		return "PT0M"
	}
	return fmt.Sprintf("-PT%dM", minutes)
}
