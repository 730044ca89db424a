package app

import (
	"fmt"
	"time"
)

// WorkingHours describes the support availability window. Outside the window
// tickets are still created; the requester just gets an auto-notice with the
// next opening time appended.
type WorkingHours struct {
	Enabled   bool
	Location  *time.Location
	StartHour int
	EndHour   int
}

// Within reports whether t falls inside the support window (weekdays,
// StartHour inclusive to EndHour exclusive).
func (w WorkingHours) Within(t time.Time) bool {
	if !w.Enabled {
		return true
	}
	local := t.In(w.loc())
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	return local.Hour() >= w.StartHour && local.Hour() < w.EndHour
}

// OffHoursNotice renders the auto-response appended to intake confirmations
// outside working hours.
func (w WorkingHours) OffHoursNotice(t time.Time) string {
	return fmt.Sprintf(
		"🕐 Сейчас нерабочее время. Часы работы поддержки: %d:00–%d:00 (пн-пт).\nМы ответим вам %s.",
		w.StartHour, w.EndHour, w.nextOpening(t),
	)
}

func (w WorkingHours) nextOpening(t time.Time) string {
	local := t.In(w.loc())
	if local.Weekday() != time.Saturday && local.Weekday() != time.Sunday && local.Hour() < w.StartHour {
		return fmt.Sprintf("сегодня в %d:00", w.StartHour)
	}

	daysAhead := 1
	next := local.AddDate(0, 0, daysAhead)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		daysAhead++
		next = local.AddDate(0, 0, daysAhead)
	}

	switch daysAhead {
	case 1:
		return fmt.Sprintf("завтра в %d:00", w.StartHour)
	case 2:
		return fmt.Sprintf("послезавтра в %d:00", w.StartHour)
	}
	names := map[time.Weekday]string{
		time.Monday:    "понедельник",
		time.Tuesday:   "вторник",
		time.Wednesday: "среду",
		time.Thursday:  "четверг",
		time.Friday:    "пятницу",
	}
	return fmt.Sprintf("в %s в %d:00", names[next.Weekday()], w.StartHour)
}

func (w WorkingHours) loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}
