package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidInterval = errors.New("interval start must be before end")
	ErrInvalidWeekday  = errors.New("weekday must be within 0..6")
	ErrInvalidLane     = errors.New("lane must be a positive integer")
)

// MinutesPerDay bounds the minute values of an Interval.
const MinutesPerDay = 24 * 60

// Weekday is a column of the weekly grid. 0 is Monday, 6 is Sunday.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func (d Weekday) String() string {
	if !d.Valid() {
		return "Weekday(" + strconv.Itoa(int(d)) + ")"
	}
	return weekdayNames[d]
}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

// TimeWeekday converts the grid weekday to the standard library's Sunday-first
// numbering.
func (d Weekday) TimeWeekday() time.Weekday {
	return time.Weekday((int(d) + 1) % 7)
}

// WeekdayFromTime converts a standard library weekday to the grid numbering.
func WeekdayFromTime(w time.Weekday) Weekday {
	return Weekday((int(w) + 6) % 7)
}

// ParseWeekday accepts either a number (0..6) or a case-insensitive name
// prefix ("mon", "Tuesday").
func ParseWeekday(s string) (Weekday, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		d := Weekday(n)
		if !d.Valid() {
			return 0, ErrInvalidWeekday
		}
		return d, nil
	}
	if len(s) >= 3 {
		prefix := strings.ToLower(s[:3])
		for i, name := range weekdayNames {
			if strings.ToLower(name) == prefix {
				return Weekday(i), nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}

// Interval is a half-open [Start, End) range in minutes since midnight.
type Interval struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// Overlaps reports whether a and b share any minute. Intervals that merely
// touch (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

func (iv Interval) Overlaps(o Interval) bool {
	return Overlaps(iv, o)
}

func (iv Interval) Duration() time.Duration {
	return time.Duration(iv.End-iv.Start) * time.Minute
}

// Validate is for callers of the engine; the engine itself assumes valid input.
func (iv Interval) Validate() error {
	if iv.Start < 0 || iv.End > MinutesPerDay || iv.Start >= iv.End {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, iv)
	}
	return nil
}

func (iv Interval) String() string {
	return FormatClock(iv.Start) + "-" + FormatClock(iv.End)
}

// ParseClock parses "HH:MM" into minutes since midnight. "24:00" is accepted
// as the end of the day.
func ParseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("clock %q: expected HH:MM", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("clock %q: %w", s, err)
	}
	mm, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("clock %q: %w", s, err)
	}
	if hh < 0 || mm < 0 || mm > 59 || hh*60+mm > MinutesPerDay {
		return 0, fmt.Errorf("clock %q: out of range", s)
	}
	return hh*60 + mm, nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Payload is carried through the layout engine untouched.
type Payload struct {
	SubjectID     string   `yaml:"subject_id,omitempty" json:"subject_id,omitempty"`
	EnrollmentIDs []string `yaml:"enrollment_ids,omitempty" json:"enrollment_ids,omitempty"`
	Note          string   `yaml:"note,omitempty" json:"note,omitempty"`
}

// Session is one recurring weekly class placed on the grid.
type Session struct {
	ID       string   `yaml:"id" json:"id"`
	Weekday  Weekday  `yaml:"weekday" json:"weekday"`
	Interval Interval `yaml:"interval" json:"interval"`
	// Lane is the 1-based vertical slot inside the weekday column.
	Lane    int     `yaml:"lane" json:"lane"`
	Payload Payload `yaml:"payload,omitempty" json:"payload,omitempty"`
}

// Enrollment links a student to a subject. Only used for display labels.
type Enrollment struct {
	ID        string `yaml:"id" json:"id"`
	Student   string `yaml:"student" json:"student"`
	SubjectID string `yaml:"subject_id" json:"subject_id"`
}

type Subject struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}
