package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tutorgrid/internal/ics"
	"tutorgrid/internal/jobs"
	appLog "tutorgrid/internal/log"
	"tutorgrid/internal/model"
	"tutorgrid/internal/schedule"
	"tutorgrid/internal/timetable"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// sessionDTO is a JSON-friendly view of a placed session.
type sessionDTO struct {
	ID          string        `json:"id"`
	Weekday     model.Weekday `json:"weekday"`
	WeekdayName string        `json:"weekday_name"`
	Start       string        `json:"start"`
	End         string        `json:"end"`
	Lane        int           `json:"lane"`
	Label       string        `json:"label"`
	Payload     model.Payload `json:"payload"`
}

func toSessionDTO(ss model.Session, label string) sessionDTO {
	return sessionDTO{
		ID:          ss.ID,
		Weekday:     ss.Weekday,
		WeekdayName: ss.Weekday.String(),
		Start:       model.FormatClock(ss.Interval.Start),
		End:         model.FormatClock(ss.Interval.End),
		Lane:        ss.Lane,
		Label:       label,
		Payload:     ss.Payload,
	}
}

type dayDTO struct {
	Weekday  model.Weekday `json:"weekday"`
	Name     string        `json:"name"`
	Lanes    int           `json:"lanes"`
	Sessions []sessionDTO  `json:"sessions"`
}

type sessionsResponse struct {
	WeekStart string    `json:"week_start"`
	UpdatedAt time.Time `json:"updated_at"`
	Days      []dayDTO  `json:"days"`
}

// handleSessions returns the grid grouped by weekday in display order.
//
// GET /api/sessions?weekday=tue
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	days := s.cfg.Weekdays()
	if q := r.URL.Query().Get("weekday"); q != "" {
		d, err := model.ParseWeekday(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		days = []model.Weekday{d}
	}

	snap := s.store.Snapshot()
	lb := schedule.NewLabeler(snap.Lookups())

	resp := sessionsResponse{
		WeekStart: s.cfg.WeekStart,
		UpdatedAt: snap.UpdatedAt,
		Days:      make([]dayDTO, 0, len(days)),
	}
	for _, d := range days {
		day := dayDTO{Weekday: d, Name: d.String(), Sessions: []sessionDTO{}}
		for _, ss := range schedule.Day(snap.Sessions, d) {
			day.Sessions = append(day.Sessions, toSessionDTO(ss, lb.Label(ss)))
			day.Lanes = max(day.Lanes, ss.Lane)
		}
		resp.Days = append(resp.Days, day)
	}
	writeJSON(w, http.StatusOK, resp)
}

// repositionRequest is the body of POST /api/reposition. Weekday accepts a
// name ("tue") or an index ("1"); Start and End are "HH:MM".
type repositionRequest struct {
	SessionID string         `json:"session_id"`
	Weekday   string         `json:"weekday"`
	Start     string         `json:"start"`
	End       string         `json:"end"`
	Lane      int            `json:"lane"`
	Payload   *model.Payload `json:"payload,omitempty"`
}

type repositionResponse struct {
	SessionID string             `json:"session_id"`
	Session   *sessionDTO        `json:"session,omitempty"`
	Changes   []timetable.Change `json:"changes"`
}

func (rr repositionRequest) toRequest() (schedule.Request, error) {
	day, err := model.ParseWeekday(rr.Weekday)
	if err != nil {
		return schedule.Request{}, err
	}
	start, err := model.ParseClock(rr.Start)
	if err != nil {
		return schedule.Request{}, fmt.Errorf("%w: start: %v", model.ErrInvalidInterval, err)
	}
	end, err := model.ParseClock(rr.End)
	if err != nil {
		return schedule.Request{}, fmt.Errorf("%w: end: %v", model.ErrInvalidInterval, err)
	}
	lane := rr.Lane
	if lane == 0 {
		lane = 1
	}
	return schedule.Request{
		SessionID: rr.SessionID,
		Weekday:   day,
		Interval:  model.Interval{Start: start, End: end},
		Lane:      lane,
		Payload:   rr.Payload,
	}, nil
}

// handleReposition moves, resizes or inserts a session. An empty session_id
// inserts a new session under a generated ID.
//
// POST /api/reposition
func (s *Server) handleReposition(w http.ResponseWriter, r *http.Request) {
	var body repositionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.SessionID == "" {
		body.SessionID = uuid.NewString()
	}

	req, err := body.toRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.store.Reposition(r.Context(), req)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp := repositionResponse{SessionID: req.SessionID, Changes: res.Changes}
	if resp.Changes == nil {
		resp.Changes = []timetable.Change{}
	}
	dto := toSessionDTO(res.Session, res.Label)
	resp.Session = &dto
	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteSession removes a session and compacts its weekday.
//
// DELETE /api/sessions/{id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	changes, err := s.store.Remove(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repositionResponse{SessionID: id, Changes: changes})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timetable.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidInterval),
		errors.Is(err, model.ErrInvalidWeekday),
		errors.Is(err, model.ErrInvalidLane),
		errors.Is(err, timetable.ErrMissingID):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("timetable edit failed", err)
		writeError(w, http.StatusInternalServerError, "failed to update timetable")
	}
}

// occurrenceDTO is a JSON-friendly view of occurrences.
type occurrenceDTO struct {
	SessionID   string    `json:"session_id"`
	InstanceKey string    `json:"instance_key"`
	Label       string    `json:"label"`
	Lane        int       `json:"lane"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

type occurrencesResponse struct {
	Occurrences     []occurrenceDTO `json:"occurrences"`
	Truncated       []string        `json:"truncated,omitempty"`
	RangeStart      time.Time       `json:"range_start"`
	RangeEnd        time.Time       `json:"range_end"`
	DisplayTimeZone string          `json:"display_timezone"`
}

// handleOccurrences expands the weekly grid into dated occurrences.
//
// GET /api/occurrences?days=7&backfill=0
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), 7)
	if days <= 0 {
		days = 7
	}
	backfill := max(parseIntDefault(q.Get("backfill"), 0), 0)

	loc := s.cfg.Location()
	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	rangeStart := today.AddDate(0, 0, -backfill)
	rangeEnd := today.AddDate(0, 0, days)

	snap := s.store.Snapshot()
	res, err := ics.ExpandOccurrences(snap.Sessions, ics.ExpandConfig{
		Location:   loc,
		TermStart:  s.cfg.TermStart(now),
		Weeks:      s.cfg.Export.Weeks,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		Lookups:    snap.Lookups(),
	})
	if err != nil {
		appLog.Error("api occurrences: expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand occurrences")
		return
	}

	dtos := make([]occurrenceDTO, 0, len(res.Occurrences))
	for _, occ := range res.Occurrences {
		dtos = append(dtos, occurrenceDTO{
			SessionID:   occ.SessionID,
			InstanceKey: occ.InstanceKey,
			Label:       occ.Label,
			Lane:        occ.Lane,
			Start:       occ.Start,
			End:         occ.End,
		})
	}

	writeJSON(w, http.StatusOK, occurrencesResponse{
		Occurrences:     dtos,
		Truncated:       res.Truncated,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: loc.String(),
	})
}

// handleCalendar serves the timetable as an iCalendar feed.
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	body, err := jobs.Calendar(s.store.Snapshot(), s.cfg, s.now())
	if err != nil {
		appLog.Error("calendar export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="timetable.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleExportStatus(w http.ResponseWriter, _ *http.Request) {
	if s.job == nil {
		writeError(w, http.StatusNotFound, "export job not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.job.Status())
}

func (s *Server) handleExportRun(w http.ResponseWriter, r *http.Request) {
	if s.job == nil {
		writeError(w, http.StatusNotFound, "export job not configured")
		return
	}
	if err := s.job.RunOnce(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "export failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.job.Status())
}
