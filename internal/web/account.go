package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"confprog/internal/auth"
	"confprog/internal/favorites"
	appLog "confprog/internal/log"
	"confprog/internal/model"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type favoritesDay struct {
	Date     string              `json:"date"`
	Label    string              `json:"label"`
	Sessions model.FavoritesList `json:"sessions"`
}

// favoritesResponse is the JSON response shape for /api/favorites.
type favoritesResponse struct {
	Days  []favoritesDay `json:"days"`
	Count int            `json:"count"`
	// Unavailable is set when the last load from the store failed and the
	// list shown is the empty fallback.
	Unavailable bool `json:"unavailable,omitempty"`
}

// authResponse describes a client's auth state.
type authResponse struct {
	Status    string             `json:"status"`
	User      *auth.Identity     `json:"user,omitempty"`
	Favorites *favoritesResponse `json:"favorites,omitempty"`
}

type newClientResponse struct {
	Token string `json:"token"`
	authResponse
}

type toggleResponse struct {
	Added     bool              `json:"added"`
	Favorites favoritesResponse `json:"favorites"`
}

type toggleFailure struct {
	errorResponse
	toggleResponse
}

type toggleRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) favoritesView(c *clientSession) favoritesResponse {
	groups := c.favorites.Grouped(s.catalog.DayOrder())
	resp := favoritesResponse{
		Days:        make([]favoritesDay, 0, len(groups)),
		Unavailable: c.favorites.LoadError() != nil,
	}
	for _, g := range groups {
		resp.Days = append(resp.Days, favoritesDay{
			Date:     g.Day,
			Label:    s.catalog.LabelForDate(g.Day),
			Sessions: g.Sessions,
		})
		resp.Count += len(g.Sessions)
	}
	return resp
}

func (s *Server) authView(c *clientSession) authResponse {
	st := c.favorites.State()
	resp := authResponse{Status: st.Status.String(), User: c.auth.Current()}
	if st.Status == auth.StatusSignedIn {
		fav := s.favoritesView(c)
		resp.Favorites = &fav
	}
	return resp
}

// handleNewClient creates a guest client session.
func (s *Server) handleNewClient(w http.ResponseWriter, r *http.Request) {
	c, token := s.newClientSession(r.Context())
	writeJSON(w, http.StatusCreated, newClientResponse{Token: token, authResponse: s.authView(c)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, c *clientSession) {
	s.handleCredentials(w, r, c, c.auth.Register)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, c *clientSession) {
	s.handleCredentials(w, r, c, c.auth.SignIn)
}

func (s *Server) handleCredentials(
	w http.ResponseWriter,
	r *http.Request,
	c *clientSession,
	op func(ctx context.Context, email, password string) (auth.Identity, error),
) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, codeMissingRequiredField, "email and password are required")
		return
	}

	if _, err := op(r.Context(), req.Email, req.Password); err != nil {
		code := auth.CodeOf(err)
		switch code {
		case "":
			appLog.Error("identity provider failed", err, "request_id", requestIDFrom(r.Context()))
			writeError(w, http.StatusServiceUnavailable, codeIdentityUnavailable, auth.Translate(code))
		case auth.CodeEmailInUse:
			writeError(w, http.StatusConflict, code, auth.Translate(code))
		default:
			writeError(w, http.StatusBadRequest, code, auth.Translate(code))
		}
		return
	}
	writeJSON(w, http.StatusOK, s.authView(c))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, c *clientSession) {
	c.auth.SignOut(r.Context())
	writeJSON(w, http.StatusOK, s.authView(c))
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, c *clientSession) {
	writeJSON(w, http.StatusOK, s.authView(c))
}

func (s *Server) handleFavorites(w http.ResponseWriter, _ *http.Request, c *clientSession) {
	if c.favorites.State().Status != auth.StatusSignedIn {
		writeError(w, http.StatusUnauthorized, codeAuthenticationRequired, msgAuthenticationRequired)
		return
	}
	writeJSON(w, http.StatusOK, s.favoritesView(c))
}

// handleToggle flips one session in the caller's favorites.
//
// POST /api/favorites/toggle {"session_id": "..."}
//   - 401 authentication_required while signed out; nothing changes
//   - 503 persistence_unavailable when the store write failed; the local
//     change is kept and returned
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request, c *clientSession) {
	var req toggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, codeMissingRequiredField, "session_id is required")
		return
	}
	day, sess, err := s.catalog.Lookup(req.SessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, codeSessionNotFound, "session not found")
		return
	}

	_, added, err := c.favorites.Toggle(r.Context(), sess, day)
	switch {
	case errors.Is(err, favorites.ErrAuthenticationRequired):
		writeError(w, http.StatusUnauthorized, codeAuthenticationRequired, msgAuthenticationRequired)
	case errors.Is(err, favorites.ErrPersistenceUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, toggleFailure{
			errorResponse:  errorResponse{Error: msgPersistenceUnavailable, Code: codePersistenceUnavailable},
			toggleResponse: toggleResponse{Added: added, Favorites: s.favoritesView(c)},
		})
	case err != nil:
		appLog.Error("favorites toggle failed", err, "request_id", requestIDFrom(r.Context()))
		writeError(w, http.StatusInternalServerError, codePersistenceUnavailable, msgPersistenceUnavailable)
	default:
		writeJSON(w, http.StatusOK, toggleResponse{Added: added, Favorites: s.favoritesView(c)})
	}
}

const favoritesFilename = "favoritos.ics"

// handleFavoritesCalendar downloads every favorite as one .ics file.
func (s *Server) handleFavoritesCalendar(w http.ResponseWriter, r *http.Request, c *clientSession) {
	if c.favorites.State().Status != auth.StatusSignedIn {
		writeError(w, http.StatusUnauthorized, codeAuthenticationRequired, msgAuthenticationRequired)
		return
	}
	payload, err := s.encoder.EncodeAll(c.favorites.List(), s.loc)
	if err != nil {
		s.writeEncodeError(w, err, "request_id", requestIDFrom(r.Context()))
		return
	}
	writeCalendar(w, favoritesFilename, payload)
}
