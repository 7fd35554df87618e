package schedule

import (
	"slices"

	"tutorgrid/internal/model"
)

// DefaultMaxRounds bounds the cascade. It is a heuristic, not a proof of
// termination: a chain longer than this is left with residual overlap and
// reported through an EventRoundLimit trace.
const DefaultMaxRounds = 20

type Options struct {
	// MaxRounds caps displacement rounds per call. Zero means DefaultMaxRounds.
	MaxRounds int
	Trace     TraceFunc
}

// Engine lays out sessions on the weekly grid. It holds no state between
// calls and is safe for concurrent use.
type Engine struct {
	opts Options
}

func New(opts Options) *Engine {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	return &Engine{opts: opts}
}

// WithTrace returns a copy of e that reports to fn.
func (e *Engine) WithTrace(fn TraceFunc) *Engine {
	opts := e.opts
	opts.Trace = fn
	return &Engine{opts: opts}
}

// MaxRounds is the effective round cap.
func (e *Engine) MaxRounds() int {
	return e.opts.MaxRounds
}

// Request describes where a session is being dropped, resized or inserted.
type Request struct {
	SessionID string
	Weekday   model.Weekday
	Interval  model.Interval
	Lane      int
	// Payload is used only when SessionID is not in the snapshot.
	Payload *model.Payload
}

// Reposition returns a new snapshot with the session placed at the requested
// weekday and interval and every conflict on that weekday resolved.
//
// A session already in the snapshot claims the requested lane; sessions it
// overlaps are pushed down one lane, and the push cascades along real
// conflicts. A session that is not in the snapshot is inserted at the first
// lane at or below the requested one where it fits, displacing nothing.
//
// The target weekday is always compacted, and so is the source weekday when
// the session changes weekday. Sessions on other weekdays are returned as is.
// The input slice is never modified.
func (e *Engine) Reposition(sessions []model.Session, lookups Lookups, req Request) []model.Session {
	tr := newTracer(e.opts.Trace, lookups)
	lane := max(req.Lane, 1)

	srcPos := slices.IndexFunc(sessions, func(s model.Session) bool {
		return s.ID == req.SessionID
	})
	inserting := srcPos < 0

	target := buildLaneIndex(sessions, req.Weekday)
	var source *laneIndex

	moving := &entry{}
	if inserting {
		moving.session.ID = req.SessionID
		if req.Payload != nil {
			moving.session.Payload = clonePayload(*req.Payload)
		}
	} else {
		moving.session = sessions[srcPos]
		if from := moving.session.Weekday; from != req.Weekday {
			source = buildLaneIndex(sessions, from)
			source.remove(req.SessionID)
		}
	}
	target.remove(req.SessionID)

	fromLane := moving.session.Lane
	moving.session.Weekday = req.Weekday
	moving.session.Interval = req.Interval

	var res cascadeResult
	if inserting {
		res = target.yield(moving, lane, e.opts.MaxRounds, tr)
	} else {
		res = target.claim(moving, lane, e.opts.MaxRounds, tr)
	}
	moving.wave = 1
	target.insert(res.lane, moving)
	tr.emit(TraceEvent{
		Kind:      EventPlaced,
		SessionID: moving.session.ID,
		Weekday:   req.Weekday,
		FromLane:  fromLane,
		ToLane:    res.lane,
		Round:     res.rounds,
	}, &moving.session)

	target.compact(tr)
	if source != nil {
		source.compact(tr)
	}

	out := assemble(sessions, "", target, source)
	if inserting {
		out = append(out, moving.session)
	}
	return out
}

// Remove drops the session with the given ID and compacts its weekday. It
// reports false, returning an unchanged copy, when the ID is unknown.
func (e *Engine) Remove(sessions []model.Session, lookups Lookups, id string) ([]model.Session, bool) {
	pos := slices.IndexFunc(sessions, func(s model.Session) bool { return s.ID == id })
	if pos < 0 {
		return slices.Clone(sessions), false
	}

	tr := newTracer(e.opts.Trace, lookups)
	removed := sessions[pos]
	ix := buildLaneIndex(sessions, removed.Weekday)
	ix.remove(id)
	tr.emit(TraceEvent{
		Kind:      EventRemoved,
		SessionID: id,
		Weekday:   removed.Weekday,
		FromLane:  removed.Lane,
	}, &removed)
	ix.compact(tr)

	return assemble(sessions, id, ix), true
}

// Compact renumbers the lanes of one weekday without moving anything else.
func (e *Engine) Compact(sessions []model.Session, lookups Lookups, weekday model.Weekday) []model.Session {
	ix := buildLaneIndex(sessions, weekday)
	ix.compact(newTracer(e.opts.Trace, lookups))
	return assemble(sessions, "", ix)
}

// assemble rebuilds a full snapshot in input order. Sessions held by one of
// the indexes take their resolved placement; skip is dropped; everything else
// is copied through.
func assemble(sessions []model.Session, skip string, indexes ...*laneIndex) []model.Session {
	placed := make(map[string]model.Session)
	touched := make(map[model.Weekday]bool)
	for _, ix := range indexes {
		if ix == nil {
			continue
		}
		touched[ix.weekday] = true
		for _, e := range ix.entries() {
			placed[e.session.ID] = e.session
		}
	}

	out := make([]model.Session, 0, len(sessions)+1)
	for _, s := range sessions {
		if skip != "" && s.ID == skip {
			continue
		}
		if p, ok := placed[s.ID]; ok {
			out = append(out, p)
			delete(placed, s.ID)
			continue
		}
		if touched[s.Weekday] {
			// Only duplicate IDs land here; the index already emitted one copy.
			continue
		}
		out = append(out, s)
	}
	return out
}

func clonePayload(p model.Payload) model.Payload {
	p.EnrollmentIDs = slices.Clone(p.EnrollmentIDs)
	return p
}

// Reposition runs a default Engine. It mirrors the call made by the grid's
// drag-and-drop and edit-save handlers.
func Reposition(
	sessions []model.Session,
	enrollments []model.Enrollment,
	subjects []model.Subject,
	weekday model.Weekday,
	start, end, lane int,
	sessionID string,
) []model.Session {
	return New(Options{}).Reposition(sessions, Lookups{
		Enrollments: enrollments,
		Subjects:    subjects,
	}, Request{
		SessionID: sessionID,
		Weekday:   weekday,
		Interval:  model.Interval{Start: start, End: end},
		Lane:      lane,
	})
}
