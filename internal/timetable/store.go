package timetable

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	appLog "tutorgrid/internal/log"
	"tutorgrid/internal/model"
	"tutorgrid/internal/schedule"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrMissingID = errors.New("session id is required")
)

// Placement is where a session sits on the grid.
type Placement struct {
	Weekday  model.Weekday  `json:"weekday"`
	Interval model.Interval `json:"interval"`
	Lane     int            `json:"lane"`
}

// Change records a session whose placement differs between two snapshots.
// From is nil for inserted sessions and To is nil for removed ones.
type Change struct {
	ID   string     `json:"id"`
	From *Placement `json:"from,omitempty"`
	To   *Placement `json:"to,omitempty"`
}

// Result is the outcome of one reposition, taken under the same lock as
// the edit.
type Result struct {
	Session model.Session `json:"session"`
	Label   string        `json:"label"`
	Changes []Change      `json:"changes"`
}

// Diff lists placement changes from before to after, in after's order
// followed by removals in before's order.
func Diff(before, after []model.Session) []Change {
	old := make(map[string]model.Session, len(before))
	for _, s := range before {
		old[s.ID] = s
	}

	var out []Change
	seen := make(map[string]bool, len(after))
	for _, s := range after {
		seen[s.ID] = true
		to := placementOf(s)
		prev, ok := old[s.ID]
		if !ok {
			out = append(out, Change{ID: s.ID, To: &to})
			continue
		}
		from := placementOf(prev)
		if from != to {
			out = append(out, Change{ID: s.ID, From: &from, To: &to})
		}
	}
	for _, s := range before {
		if !seen[s.ID] {
			from := placementOf(s)
			out = append(out, Change{ID: s.ID, From: &from})
		}
	}
	return out
}

func placementOf(s model.Session) Placement {
	return Placement{Weekday: s.Weekday, Interval: s.Interval, Lane: s.Lane}
}

// ValidateRequest checks the preconditions the engine leaves to its callers.
func ValidateRequest(req schedule.Request) error {
	if req.SessionID == "" {
		return ErrMissingID
	}
	if !req.Weekday.Valid() {
		return fmt.Errorf("%w: %d", model.ErrInvalidWeekday, req.Weekday)
	}
	if req.Lane < 1 {
		return fmt.Errorf("%w: %d", model.ErrInvalidLane, req.Lane)
	}
	return req.Interval.Validate()
}

// Store is the file-backed timetable. Edits are serialised so each one runs
// the engine against the latest snapshot.
type Store struct {
	mu     sync.Mutex
	path   string
	engine *schedule.Engine
	hook   TraceHook
	now    func() time.Time
	snap   *Snapshot
}

// TraceHook supplies the engine trace for one edit, so events can be tied to
// the caller's context.
type TraceHook func(ctx context.Context) schedule.TraceFunc

// Open loads the snapshot at path. A missing file starts an empty timetable;
// it is created on the first edit.
func Open(path string, engine *schedule.Engine) (*Store, error) {
	snap, err := Load(path)
	if err != nil {
		return nil, err
	}
	if engine == nil {
		engine = schedule.New(schedule.Options{})
	}
	return &Store{
		path:   path,
		engine: engine,
		now:    time.Now,
		snap:   snap,
	}, nil
}

func (s *Store) Path() string {
	return s.path
}

// SetTraceHook installs hook for subsequent edits. A nil hook restores the
// engine's own trace.
func (s *Store) SetTraceHook(hook TraceHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// engineFor must be called with s.mu held.
func (s *Store) engineFor(ctx context.Context) *schedule.Engine {
	if s.hook == nil {
		return s.engine
	}
	return s.engine.WithTrace(s.hook(ctx))
}

// Snapshot returns a copy of the current timetable.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Reposition validates req, runs the engine and persists the result. The
// returned Result holds the session as placed by this edit.
func (s *Store) Reposition(ctx context.Context, req schedule.Request) (Result, error) {
	if err := ValidateRequest(req); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.snap.Sessions
	lookups := s.snap.Lookups()
	after := s.engineFor(ctx).Reposition(before, lookups, req)
	changes := Diff(before, after)
	if err := s.commit(after); err != nil {
		return Result{}, err
	}

	res := Result{Changes: changes}
	for _, sess := range s.snap.Sessions {
		if sess.ID == req.SessionID {
			sess.Payload.EnrollmentIDs = slices.Clone(sess.Payload.EnrollmentIDs)
			res.Session = sess
			res.Label = schedule.NewLabeler(lookups).Label(sess)
			break
		}
	}

	appLog.Info("session repositioned",
		"id", req.SessionID,
		"weekday", req.Weekday,
		"interval", req.Interval,
		"lane", res.Session.Lane,
		"changes", len(changes),
	)
	return res, nil
}

// Remove deletes a session and compacts its weekday.
func (s *Store) Remove(ctx context.Context, id string) ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.snap.Sessions
	after, ok := s.engineFor(ctx).Remove(before, s.snap.Lookups(), id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	changes := Diff(before, after)
	if err := s.commit(after); err != nil {
		return nil, err
	}

	appLog.Info("session removed", "id", id, "changes", len(changes))
	return changes, nil
}

// Import places each incoming session through the engine as an insert, so
// the result is conflict-free whatever lanes the source used. With replace,
// existing sessions are dropped first; otherwise sessions with a known ID are
// moved to the imported placement.
func (s *Store) Import(ctx context.Context, sessions []model.Session, replace bool) ([]Change, error) {
	for _, in := range sessions {
		req := schedule.Request{
			SessionID: in.ID,
			Weekday:   in.Weekday,
			Interval:  in.Interval,
			Lane:      max(in.Lane, 1),
		}
		if err := ValidateRequest(req); err != nil {
			return nil, fmt.Errorf("import %q: %w", in.ID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.snap.Sessions
	current := before
	if replace {
		current = nil
	}
	lookups := s.snap.Lookups()
	engine := s.engineFor(ctx)
	for _, in := range sessions {
		payload := in.Payload
		current = engine.Reposition(current, lookups, schedule.Request{
			SessionID: in.ID,
			Weekday:   in.Weekday,
			Interval:  in.Interval,
			Lane:      max(in.Lane, 1),
			Payload:   &payload,
		})
	}

	changes := Diff(before, current)
	if err := s.commit(current); err != nil {
		return nil, err
	}
	appLog.Info("timetable imported", "sessions", len(sessions), "replace", replace, "changes", len(changes))
	return changes, nil
}

// commit must be called with s.mu held.
func (s *Store) commit(sessions []model.Session) error {
	next := s.snap.Clone()
	next.Sessions = sessions
	next.UpdatedAt = s.now().UTC()
	if err := Save(s.path, &next); err != nil {
		return fmt.Errorf("timetable: save: %w", err)
	}
	s.snap = &next
	return nil
}
