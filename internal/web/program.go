package web

import (
	"errors"
	"net/http"

	"confprog/internal/catalog"
	"confprog/internal/ics"
	appLog "confprog/internal/log"
	"confprog/internal/model"
)

type dayDTO struct {
	Label        string `json:"label"`
	Date         string `json:"date"`
	SessionCount int    `json:"session_count"`
}

// programResponse is the JSON response shape for /api/program.
type programResponse struct {
	Days     []dayDTO `json:"days"`
	Rooms    []string `json:"rooms"`
	AllRooms string   `json:"all_rooms"`
	Timezone string   `json:"timezone"`
}

func (s *Server) handleProgram(w http.ResponseWriter, _ *http.Request) {
	days := s.catalog.Days()
	resp := programResponse{
		Days:     make([]dayDTO, 0, len(days)),
		Rooms:    s.catalog.Rooms(),
		AllRooms: catalog.AllRooms,
		Timezone: s.loc.String(),
	}
	for _, d := range days {
		resp.Days = append(resp.Days, dayDTO{Label: d.Label, Date: d.Date, SessionCount: len(d.Sessions)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// sessionDTO is a session as listed to a visitor.
type sessionDTO struct {
	model.Session
	Favorite bool `json:"favorite"`
}

// sessionsResponse is the JSON response shape for /api/sessions.
type sessionsResponse struct {
	Day      string       `json:"day"`
	Date     string       `json:"date,omitempty"`
	Room     string       `json:"room"`
	Query    string       `json:"query,omitempty"`
	Sessions []sessionDTO `json:"sessions"`
}

// handleSessions lists the sessions of one day.
//
// GET /api/sessions?day=Miércoles%2020&room=Auditorio&q=luz
//   - day:  day label (default: first day of the program)
//   - room: exact room or "Todos" (default)
//   - q:    case-insensitive match on title, speakers and entity
//
// A bearer token, when present, marks the caller's favorites.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dayLabel := q.Get("day")
	if dayLabel == "" {
		if labels := s.catalog.DayLabels(); len(labels) > 0 {
			dayLabel = labels[0]
		}
	}
	room := q.Get("room")
	if room == "" {
		room = catalog.AllRooms
	}
	query := q.Get("q")

	resp := sessionsResponse{Day: dayLabel, Room: room, Query: query}
	if d, ok := s.catalog.Day(dayLabel); ok {
		resp.Date = d.Date
	}

	var favs func(model.Session) bool
	if c, ok := s.clientFromRequest(r); ok {
		favs = c.favorites.Contains
	}

	matched := s.catalog.Filter(dayLabel, room, query)
	resp.Sessions = make([]sessionDTO, 0, len(matched))
	for _, sess := range matched {
		dto := sessionDTO{Session: sess}
		if favs != nil {
			dto.Favorite = favs(sess)
		}
		resp.Sessions = append(resp.Sessions, dto)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSessionCalendar downloads one session as an .ics file.
func (s *Server) handleSessionCalendar(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	day, sess, err := s.catalog.Lookup(id)
	if err != nil {
		writeError(w, http.StatusNotFound, codeSessionNotFound, "session not found")
		return
	}

	payload, filename, err := s.encoder.Encode(sess, day.Date, s.loc)
	if err != nil {
		s.writeEncodeError(w, err, "session", id)
		return
	}
	writeCalendar(w, filename, payload)
}

func (s *Server) writeEncodeError(w http.ResponseWriter, err error, kv ...any) {
	appLog.Error("calendar export failed", err, kv...)
	if errors.Is(err, ics.ErrMalformedSession) {
		writeError(w, http.StatusUnprocessableEntity, codeMalformedSession, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, codeMalformedSession, "calendar export failed")
}
