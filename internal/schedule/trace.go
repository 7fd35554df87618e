package schedule

import (
	"strings"

	"tutorgrid/internal/model"
)

type EventKind string

const (
	EventDisplaced  EventKind = "displaced"
	EventPlaced     EventKind = "placed"
	EventRoundLimit EventKind = "round_limit"
	EventCompacted  EventKind = "compacted"
	EventRemoved    EventKind = "removed"
)

// TraceEvent describes one step taken by the engine. Compaction events carry
// no session, only the lane renumbering.
type TraceEvent struct {
	Kind      EventKind
	SessionID string
	// Label is a human readable description built from the lookup tables,
	// e.g. "Algebra / Kim, Lee".
	Label    string
	Weekday  model.Weekday
	FromLane int
	ToLane   int
	Round    int
}

// TraceFunc receives engine events. A nil TraceFunc disables tracing.
type TraceFunc func(TraceEvent)

// Lookups are the auxiliary tables used only to label trace events.
type Lookups struct {
	Enrollments []model.Enrollment
	Subjects    []model.Subject
}

type tracer struct {
	fn      TraceFunc
	lookups Lookups
	labeler *Labeler
}

func newTracer(fn TraceFunc, lookups Lookups) *tracer {
	return &tracer{fn: fn, lookups: lookups}
}

func (t *tracer) emit(ev TraceEvent, s *model.Session) {
	if t == nil || t.fn == nil {
		return
	}
	if s != nil {
		if t.labeler == nil {
			t.labeler = NewLabeler(t.lookups)
		}
		ev.Label = t.labeler.Label(*s)
	}
	t.fn(ev)
}

// Labeler formats sessions for diagnostics from a fixed set of lookups.
type Labeler struct {
	subjects    map[string]string
	enrollments map[string]model.Enrollment
}

func NewLabeler(lookups Lookups) *Labeler {
	lb := &Labeler{
		subjects:    make(map[string]string, len(lookups.Subjects)),
		enrollments: make(map[string]model.Enrollment, len(lookups.Enrollments)),
	}
	for _, sub := range lookups.Subjects {
		lb.subjects[sub.ID] = sub.Name
	}
	for _, en := range lookups.Enrollments {
		lb.enrollments[en.ID] = en
	}
	return lb
}

// Label is the subject name followed by the student names, e.g.
// "Algebra / Kim, Lee". It falls back to the session ID when nothing is
// known about the session.
func (lb *Labeler) Label(s model.Session) string {
	subject := lb.subjects[s.Payload.SubjectID]
	if subject == "" {
		subject = s.Payload.SubjectID
	}

	students := make([]string, 0, len(s.Payload.EnrollmentIDs))
	for _, id := range s.Payload.EnrollmentIDs {
		if en, ok := lb.enrollments[id]; ok && en.Student != "" {
			students = append(students, en.Student)
		}
	}

	switch {
	case subject == "" && len(students) == 0:
		return s.ID
	case len(students) == 0:
		return subject
	case subject == "":
		return strings.Join(students, ", ")
	}
	return subject + " / " + strings.Join(students, ", ")
}
