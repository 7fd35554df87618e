package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "tutorgrid/internal/log"
	"tutorgrid/internal/model"
)

// Parse reads a calendar written by Export (or any calendar of weekly
// timed events) back into grid sessions. Weekday and minutes come from
// DTSTART/DTEND interpreted in loc; the lane comes from X-TUTORGRID-LANE
// and defaults to 1.
//
// Events that cannot be represented on the weekly grid are logged and
// skipped; the rest are returned.
func Parse(body []byte, loc *time.Location) ([]model.Session, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	sessions := make([]model.Session, 0)
	for _, ve := range cal.Events() {
		s, perr := parseVEvent(ve, loc)
		if perr != nil {
			appLog.Error("ics vevent skipped", perr, "uid", propValue(ve, ical.ComponentPropertyUniqueId))
			continue
		}
		sessions = append(sessions, s)
	}

	appLog.Info("ics parse completed", "session_count", len(sessions))
	return sessions, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.Session, error) {
	var out model.Session

	out.ID = propValue(ve, ical.ComponentPropertyUniqueId)
	if out.ID == "" {
		return out, errors.New("missing UID")
	}

	if dt := ve.GetProperty(ical.ComponentPropertyDtStart); dt == nil || !strings.Contains(dt.Value, "T") {
		return out, errors.New("all-day or missing DTSTART")
	}
	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, fmt.Errorf("DTEND: %w", err)
	}

	if raw := propValue(ve, ical.ComponentPropertyRrule); raw != "" {
		opt, err := rrule.StrToROption(raw)
		if err != nil {
			return out, fmt.Errorf("RRULE %q: %w", raw, err)
		}
		if opt.Freq != rrule.WEEKLY || opt.Interval > 1 {
			return out, fmt.Errorf("RRULE %q is not a plain weekly rule", raw)
		}
		// BYDAY is read in DTSTART's own zone.
		if err := checkByDay(opt.Byweekday, start.Weekday()); err != nil {
			return out, fmt.Errorf("RRULE %q: %w", raw, err)
		}
	}

	start = start.In(loc)
	end = end.In(loc)

	startMin := start.Hour()*60 + start.Minute()
	endMin := startMin + int(end.Sub(start)/time.Minute)
	out.Weekday = model.WeekdayFromTime(start.Weekday())
	out.Interval = model.Interval{Start: startMin, End: endMin}
	if err := out.Interval.Validate(); err != nil {
		return out, err
	}

	out.Lane = 1
	if v := propValue(ve, ical.ComponentProperty(propLane)); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 1 {
			return out, fmt.Errorf("%s %q: %w", propLane, v, model.ErrInvalidLane)
		}
		out.Lane = n
	}

	out.Payload.SubjectID = propValue(ve, ical.ComponentProperty(propSubject))
	if v := propValue(ve, ical.ComponentProperty(propEnrollments)); v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out.Payload.EnrollmentIDs = append(out.Payload.EnrollmentIDs, id)
			}
		}
	}
	out.Payload.Note = propValue(ve, ical.ComponentPropertyDescription)

	return out, nil
}

// checkByDay accepts an empty BYDAY or a single plain weekday equal to the
// DTSTART weekday. A session occupies exactly one weekday column.
func checkByDay(days []rrule.Weekday, start time.Weekday) error {
	switch {
	case len(days) == 0:
		return nil
	case len(days) > 1:
		return fmt.Errorf("BYDAY lists %d weekdays", len(days))
	case days[0].N() != 0:
		return errors.New("BYDAY with an ordinal is not weekly")
	case model.Weekday(days[0].Day()) != model.WeekdayFromTime(start):
		return fmt.Errorf("BYDAY %s does not match DTSTART weekday %s",
			model.Weekday(days[0].Day()), model.WeekdayFromTime(start))
	}
	return nil
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}
