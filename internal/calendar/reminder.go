// Package calendar builds the weekly journaling reminder and its
// calendar-provider deep link.
package calendar

import (
	"net/url"
	"time"
)

const (
	// ProviderURL is the event-creation endpoint of the calendar provider.
	ProviderURL = "https://calendar.google.com/calendar/render"

	// WeeklyOnFriday repeats the reminder every Friday.
	WeeklyOnFriday = "RRULE:FREQ=WEEKLY;BYDAY=FR"

	DefaultTitle           = "Weekly Career Journal"
	DefaultDescription     = "Take 15 minutes to reflect on your career progress, wins, challenges, and learnings."
	DefaultDurationMinutes = 15

	// BasicFormat is the compact UTC form used in the dates parameter.
	BasicFormat = "20060102T150405Z"

	reminderHour = 17
)

// Event describes a calendar entry. It is built on demand and never stored.
type Event struct {
	Title           string
	Description     string
	Start           time.Time
	DurationMinutes int
	Recurrence      string
}

// End returns Start plus the event duration.
func (e Event) End() time.Time {
	return e.Start.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// NextFridayAt17 returns the next Friday at 17:00:00.000 in now's location.
//
// A Friday always rolls over to the following week, even before 17:00, so
// calling it on Friday morning yields a date seven days out.
func NextFridayAt17(now time.Time) time.Time {
	days := (int(time.Friday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	y, m, d := now.Date()
	return time.Date(y, m, d+days, reminderHour, 0, 0, 0, now.Location())
}

// WeeklyReminder builds the default journaling reminder relative to now.
func WeeklyReminder(now time.Time) Event {
	return Event{
		Title:           DefaultTitle,
		Description:     DefaultDescription,
		Start:           NextFridayAt17(now),
		DurationMinutes: DefaultDurationMinutes,
		Recurrence:      WeeklyOnFriday,
	}
}

// BuildReminderURL renders the provider link for event. The builder does not
// know whether the link is ever opened.
func BuildReminderURL(event Event) string {
	params := url.Values{}
	params.Set("action", "TEMPLATE")
	params.Set("text", event.Title)
	params.Set("details", event.Description)
	params.Set("dates", FormatBasic(event.Start)+"/"+FormatBasic(event.End()))
	if event.Recurrence != "" {
		params.Set("recur", event.Recurrence)
	}
	return ProviderURL + "?" + params.Encode()
}

// FormatBasic formats t in UTC as YYYYMMDDTHHMMSSZ.
func FormatBasic(t time.Time) string {
	return t.UTC().Format(BasicFormat)
}
