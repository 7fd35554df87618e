package ics

import (
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"tutorgrid/internal/model"
	"tutorgrid/internal/schedule"
)

const (
	icsLocalLayout = "20060102T150405"
	productID      = "-//tutorgrid//weekly timetable//EN"
)

// ExportConfig controls how the weekly grid is written as iCalendar.
type ExportConfig struct {
	// Location is the timezone the grid's minutes are expressed in. If nil,
	// time.Local is used.
	Location *time.Location

	// TermStart anchors the recurrence: each session starts on its first
	// weekday on or after this date.
	TermStart time.Time

	// Weeks is the COUNT of each weekly RRULE. Zero leaves it unbounded.
	Weeks int

	// Name is written as X-WR-CALNAME when set.
	Name string

	// Now stamps DTSTAMP. Zero means time.Now().
	Now time.Time
}

// Export renders one recurring VEVENT per session. Lane and payload travel
// in X-TUTORGRID-* properties so Parse can restore the grid.
func Export(sessions []model.Session, lookups schedule.Lookups, cfg ExportConfig) ([]byte, error) {
	if cfg.TermStart.IsZero() {
		return nil, errors.New("export: TermStart is required")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if cfg.Name != "" {
		cal.SetXWRCalName(cfg.Name)
	}
	tzid := tzidFor(cfg.Location)
	if tzid != "" {
		cal.SetXWRTimezone(tzid)
	}

	labeler := schedule.NewLabeler(lookups)

	for _, s := range sessions {
		start := firstStart(s, cfg.TermStart, cfg.Location)
		end := start.Add(s.Interval.Duration())

		ev := cal.AddEvent(s.ID)
		ev.SetDtStampTime(cfg.Now)
		ev.SetSummary(labeler.Label(s))
		if s.Payload.Note != "" {
			ev.SetDescription(s.Payload.Note)
		}
		setTime(ev, ical.ComponentPropertyDtStart, start, tzid)
		setTime(ev, ical.ComponentPropertyDtEnd, end, tzid)

		opt := weeklyOption(s, cfg.Weeks)
		ev.AddRrule(opt.RRuleString())

		ev.SetProperty(ical.ComponentProperty(propLane), strconv.Itoa(s.Lane))
		if s.Payload.SubjectID != "" {
			ev.SetProperty(ical.ComponentProperty(propSubject), s.Payload.SubjectID)
		}
		if len(s.Payload.EnrollmentIDs) > 0 {
			ev.SetProperty(ical.ComponentProperty(propEnrollments), strings.Join(s.Payload.EnrollmentIDs, ","))
		}
	}

	return []byte(cal.Serialize()), nil
}

// tzidFor returns an IANA name usable as TZID, or "" when the location has
// no portable name and times must be written in UTC.
func tzidFor(loc *time.Location) string {
	name := loc.String()
	if name == "" || name == "Local" {
		return ""
	}
	return name
}

func setTime(ev *ical.VEvent, prop ical.ComponentProperty, t time.Time, tzid string) {
	if tzid == "" {
		ev.SetProperty(prop, t.UTC().Format(icsLocalLayout+"Z"))
		return
	}
	ev.SetProperty(prop, t.Format(icsLocalLayout), ical.WithTZID(tzid))
}
