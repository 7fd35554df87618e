package ics

import (
	"cmp"
	"errors"
	"slices"
	"time"

	appLog "tutorgrid/internal/log"
	"tutorgrid/internal/model"
	"tutorgrid/internal/schedule"
)

const (
	defaultMaxOccurrencesPerSession = 5000
)

// ExpandConfig controls how the weekly grid is expanded into dated
// occurrences.
type ExpandConfig struct {
	// Location is the timezone of the grid and of the resulting
	// occurrences. If nil, time.Local is used.
	Location *time.Location

	// TermStart anchors every session's recurrence, as in ExportConfig.
	TermStart time.Time

	// Weeks bounds each recurrence. Zero leaves it unbounded; the range
	// still limits the output.
	Weeks int

	// RangeStart / RangeEnd define the inclusive window for occurrence starts.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerSession is a safety cap. If zero,
	// defaultMaxOccurrencesPerSession is used.
	MaxOccurrencesPerSession int

	// Lookups fills Occurrence.Label. Optional.
	Lookups schedule.Lookups
}

// ExpandResult wraps the expanded occurrences and the sessions whose
// expansion hit the cap.
type ExpandResult struct {
	Occurrences []model.Occurrence
	Truncated   []string
}

// ExpandOccurrences turns each session's weekly recurrence into concrete
// occurrences inside [RangeStart, RangeEnd], sorted by start time, then
// weekday lane, then session ID.
func ExpandOccurrences(sessions []model.Session, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.TermStart.IsZero() {
		return result, errors.New("expand: TermStart is required")
	}
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerSession <= 0 {
		cfg.MaxOccurrencesPerSession = defaultMaxOccurrencesPerSession
	}

	labeler := schedule.NewLabeler(cfg.Lookups)
	out := make([]model.Occurrence, 0)

	for _, s := range sessions {
		if !s.Weekday.Valid() || s.Interval.Validate() != nil {
			appLog.Error("expand: skipping invalid session", model.ErrInvalidInterval,
				"id", s.ID, "weekday", int(s.Weekday), "interval", s.Interval.String())
			continue
		}

		dtstart := firstStart(s, cfg.TermStart, cfg.Location)
		r, err := weeklyRule(s, cfg.Weeks, dtstart)
		if err != nil {
			appLog.Error("expand: failed to build rule", err, "id", s.ID)
			continue
		}

		starts := r.Between(cfg.RangeStart.In(cfg.Location), cfg.RangeEnd.In(cfg.Location), true)
		if len(starts) > cfg.MaxOccurrencesPerSession {
			starts = starts[:cfg.MaxOccurrencesPerSession]
			result.Truncated = append(result.Truncated, s.ID)
			appLog.Error("expand: truncated occurrences for session due to cap",
				errors.New("max occurrences reached"),
				"id", s.ID,
				"cap", cfg.MaxOccurrencesPerSession,
			)
		}

		label := labeler.Label(s)
		for _, st := range starts {
			out = append(out, makeOccurrence(s, label, st, cfg.Location))
		}
	}

	slices.SortFunc(out, func(a, b model.Occurrence) int {
		return cmp.Or(
			a.Start.Compare(b.Start),
			cmp.Compare(a.Lane, b.Lane),
			cmp.Compare(a.SessionID, b.SessionID),
		)
	})

	result.Occurrences = out
	return result, nil
}

func makeOccurrence(s model.Session, label string, start time.Time, loc *time.Location) model.Occurrence {
	start = start.In(loc)
	// Wall-clock end.
	end := time.Date(start.Year(), start.Month(), start.Day(), 0, s.Interval.End, 0, 0, loc)
	return model.Occurrence{
		SessionID:   s.ID,
		Label:       label,
		InstanceKey: s.ID + "@" + start.Format(time.RFC3339),
		Weekday:     s.Weekday,
		Lane:        s.Lane,
		Start:       start,
		End:         end,
	}
}
