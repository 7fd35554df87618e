package ics

import (
	"time"

	"github.com/teambition/rrule-go"

	"tutorgrid/internal/model"
)

// Custom properties carrying grid data that has no iCalendar equivalent.
const (
	propLane        = "X-TUTORGRID-LANE"
	propSubject     = "X-TUTORGRID-SUBJECT"
	propEnrollments = "X-TUTORGRID-ENROLLMENTS"
)

// rruleWeekdays shares the grid numbering: index 0 is Monday.
var rruleWeekdays = [...]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// firstStart returns the first instant on or after termStart that falls on
// the session's weekday at its start minute, in loc.
func firstStart(s model.Session, termStart time.Time, loc *time.Location) time.Time {
	day := termStart.In(loc)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	offset := (int(s.Weekday.TimeWeekday()) - int(day.Weekday()) + 7) % 7
	day = day.AddDate(0, 0, offset)
	return time.Date(day.Year(), day.Month(), day.Day(), s.Interval.Start/60, s.Interval.Start%60, 0, 0, loc)
}

// weeklyOption is the recurrence of a session. weeks <= 0 means unbounded.
func weeklyOption(s model.Session, weeks int) rrule.ROption {
	opt := rrule.ROption{
		Freq:     rrule.WEEKLY,
		Interval: 1,
	}
	if s.Weekday.Valid() {
		opt.Byweekday = []rrule.Weekday{rruleWeekdays[s.Weekday]}
	}
	if weeks > 0 {
		opt.Count = weeks
	}
	return opt
}

// weeklyRule builds the rule anchored at dtstart.
func weeklyRule(s model.Session, weeks int, dtstart time.Time) (*rrule.RRule, error) {
	opt := weeklyOption(s, weeks)
	opt.Dtstart = dtstart
	return rrule.NewRRule(opt)
}
