package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confprog/internal/auth"
	"confprog/internal/catalog"
	"confprog/internal/config"
	"confprog/internal/favorites"
	"confprog/internal/ics"
	"confprog/internal/model"
	"confprog/internal/store"
)

const programYAML = `
days:
  - label: "Miércoles 20"
    date: "2026-05-20"
    sessions:
      - time: "09:30"
        title: "Keynote, Part 1"
        speakers: ["Ana Puig"]
        entity: "CEI"
        room: "Auditorio"
        durationMinutes: 45
      - time: "11:00"
        title: "Alumbrado adaptativo"
        speakers: ["Marta López"]
        room: "Polivalente"
  - label: "Jueves 21"
    date: "2026-05-21"
    sessions:
      - time: "10:00"
        title: "Mesa redonda"
        room: "Auditorio"
`

// flakyStore is a memory store that records favorites writes and can be
// switched to fail them.
type flakyStore struct {
	*store.Memory
	mu        sync.Mutex
	favWrites [][]byte
	failSets  bool
}

func (s *flakyStore) Set(ctx context.Context, key string, body []byte) error {
	s.mu.Lock()
	fail := s.failSets
	if strings.HasPrefix(key, "favorites/") {
		s.favWrites = append(s.favWrites, append([]byte(nil), body...))
	}
	s.mu.Unlock()
	if fail {
		return errors.New("store offline")
	}
	return s.Memory.Set(ctx, key, body)
}

func (s *flakyStore) writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.favWrites...)
}

type testEnv struct {
	h    http.Handler
	cat  *catalog.Catalog
	docs *flakyStore
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	cat, err := catalog.Parse([]byte(programYAML))
	require.NoError(t, err)

	docs := &flakyStore{Memory: store.NewMemory()}
	cfg := config.DefaultConfig()
	enc := ics.NewEncoder(cfg.Calendar.ProductID, cfg.Calendar.UIDDomain)
	enc.Now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }

	srv := NewServer(cfg, Deps{
		Catalog:   cat,
		Provider:  auth.NewLocalProvider(docs, cfg.Auth.MinPasswordLength).WithArgon2Params(auth.Argon2Params{Time: 1, MemoryKiB: 64, Threads: 1, KeyLen: 16, SaltLen: 8}),
		Favorites: favorites.NewRepository(docs),
		Encoder:   enc,
		Location:  time.UTC,
	})
	return testEnv{h: srv.Handler(), cat: cat, docs: docs}
}

func (e testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e testEnv) newClient(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/client", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody[newClientResponse](t, rec)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "signed_out", resp.Status)
	return resp.Token
}

func (e testEnv) signedInClient(t *testing.T, email string) string {
	t.Helper()
	token := e.newClient(t)
	rec := e.do(t, http.MethodPost, "/api/auth/register", token, credentialsRequest{Email: email, Password: "secreto"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return token
}

func (e testEnv) sessionID(t *testing.T, title string) string {
	t.Helper()
	for _, d := range e.cat.Days() {
		for _, s := range d.Sessions {
			if s.Title == title {
				return s.ID
			}
		}
	}
	t.Fatalf("no session %q", title)
	return ""
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestID_Propagated(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestProgram(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/program", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[programResponse](t, rec)
	require.Len(t, resp.Days, 2)
	assert.Equal(t, dayDTO{Label: "Miércoles 20", Date: "2026-05-20", SessionCount: 2}, resp.Days[0])
	assert.Equal(t, []string{"Auditorio", "Polivalente"}, resp.Rooms)
	assert.Equal(t, "Todos", resp.AllRooms)
	assert.Equal(t, "UTC", resp.Timezone)
}

func TestSessions_Filtering(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name   string
		path   string
		titles []string
	}{
		{"default day", "/api/sessions", []string{"Keynote, Part 1", "Alumbrado adaptativo"}},
		{"explicit day", "/api/sessions?day=Jueves%2021", []string{"Mesa redonda"}},
		{"room", "/api/sessions?room=Polivalente", []string{"Alumbrado adaptativo"}},
		{"all rooms", "/api/sessions?room=Todos", []string{"Keynote, Part 1", "Alumbrado adaptativo"}},
		{"speaker query", "/api/sessions?q=puig", []string{"Keynote, Part 1"}},
		{"unknown day", "/api/sessions?day=Domingo", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, tt.path, "", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			resp := decodeBody[sessionsResponse](t, rec)
			titles := make([]string, 0, len(resp.Sessions))
			for _, s := range resp.Sessions {
				titles = append(titles, s.Title)
				assert.False(t, s.Favorite)
			}
			assert.Equal(t, tt.titles, titles)
		})
	}
}

func TestSessionCalendar(t *testing.T) {
	e := newTestEnv(t)
	id := e.sessionID(t, "Keynote, Part 1")

	rec := e.do(t, http.MethodGet, "/api/sessions/"+id+"/calendar.ics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Keynote__Part_1.ics"`, rec.Header().Get("Content-Disposition"))

	body := rec.Body.String()
	assert.Contains(t, body, `SUMMARY:Keynote\, Part 1`)
	assert.Contains(t, body, "DTSTART:20260520T093000Z")
	assert.Contains(t, body, "DTEND:20260520T101500Z")

	rec = e.do(t, http.MethodGet, "/api/sessions/nope/calendar.ics", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeSessionNotFound, decodeBody[errorResponse](t, rec).Code)
}

func TestClientSessionRequired(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/api/auth/me", "/api/favorites"} {
		rec := e.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, codeClientSessionRequired, decodeBody[errorResponse](t, rec).Code)

		rec = e.do(t, http.MethodGet, path, "not-a-token", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestGuestToggleRejected(t *testing.T) {
	e := newTestEnv(t)
	token := e.newClient(t)

	rec := e.do(t, http.MethodPost, "/api/favorites/toggle", token, toggleRequest{SessionID: e.sessionID(t, "Mesa redonda")})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	errResp := decodeBody[errorResponse](t, rec)
	assert.Equal(t, codeAuthenticationRequired, errResp.Code)
	assert.Equal(t, "Debes iniciar sesión para guardar favoritos", errResp.Error)
	assert.Empty(t, e.docs.writes())

	rec = e.do(t, http.MethodGet, "/api/favorites", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/favorites/calendar.ics", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterLoginLogout(t *testing.T) {
	e := newTestEnv(t)
	token := e.signedInClient(t, "ana@example.org")

	rec := e.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[authResponse](t, rec)
	assert.Equal(t, "signed_in", me.Status)
	require.NotNil(t, me.User)
	assert.Equal(t, "ana@example.org", me.User.Email)
	require.NotNil(t, me.Favorites)
	assert.Zero(t, me.Favorites.Count)

	rec = e.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "signed_out", decodeBody[authResponse](t, rec).Status)

	rec = e.do(t, http.MethodPost, "/api/auth/login", token, credentialsRequest{Email: "ANA@example.org", Password: "secreto"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "signed_in", decodeBody[authResponse](t, rec).Status)
}

func TestCredentialErrors(t *testing.T) {
	e := newTestEnv(t)
	e.signedInClient(t, "ana@example.org")
	token := e.newClient(t)

	tests := []struct {
		name   string
		path   string
		req    credentialsRequest
		status int
		code   string
		text   string
	}{
		{"email in use", "/api/auth/register", credentialsRequest{"ana@example.org", "secreto"}, http.StatusConflict, auth.CodeEmailInUse, "Este correo ya está registrado."},
		{"weak password", "/api/auth/register", credentialsRequest{"luis@example.org", "123"}, http.StatusBadRequest, auth.CodeWeakPassword, "La contraseña debe tener al menos 6 caracteres."},
		{"invalid email", "/api/auth/register", credentialsRequest{"luis", "secreto"}, http.StatusBadRequest, auth.CodeInvalidEmail, "El formato del correo no es válido."},
		{"wrong password", "/api/auth/login", credentialsRequest{"ana@example.org", "incorrecta"}, http.StatusBadRequest, auth.CodeInvalidCredential, "Correo o contraseña incorrectos."},
		{"missing fields", "/api/auth/login", credentialsRequest{"", ""}, http.StatusBadRequest, codeMissingRequiredField, "email and password are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, tt.path, token, tt.req)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decodeBody[errorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.text, resp.Error)
		})
	}

	rec := e.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, "signed_out", decodeBody[authResponse](t, rec).Status, "failures leave the client signed out")
}

func TestToggleTwice_PersistsTwiceAndRestores(t *testing.T) {
	e := newTestEnv(t)
	token := e.signedInClient(t, "ana@example.org")
	id := e.sessionID(t, "Keynote, Part 1")

	rec := e.do(t, http.MethodPost, "/api/favorites/toggle", token, toggleRequest{SessionID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeBody[toggleResponse](t, rec)
	assert.True(t, first.Added)
	assert.Equal(t, 1, first.Favorites.Count)
	require.Len(t, first.Favorites.Days, 1)
	assert.Equal(t, "Miércoles 20", first.Favorites.Days[0].Label)

	rec = e.do(t, http.MethodGet, "/api/sessions", token, nil)
	listed := decodeBody[sessionsResponse](t, rec)
	assert.True(t, listed.Sessions[0].Favorite)
	assert.False(t, listed.Sessions[1].Favorite)

	rec = e.do(t, http.MethodPost, "/api/favorites/toggle", token, toggleRequest{SessionID: id})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody[toggleResponse](t, rec)
	assert.False(t, second.Added)
	assert.Zero(t, second.Favorites.Count)

	writes := e.docs.writes()
	require.Len(t, writes, 2)
	var doc model.FavoritesDocument
	require.NoError(t, json.Unmarshal(writes[1], &doc))
	assert.Empty(t, doc.Sessions)
}

func TestToggle_PersistFailureKeepsLocalList(t *testing.T) {
	e := newTestEnv(t)
	token := e.signedInClient(t, "ana@example.org")

	e.docs.mu.Lock()
	e.docs.failSets = true
	e.docs.mu.Unlock()

	rec := e.do(t, http.MethodPost, "/api/favorites/toggle", token, toggleRequest{SessionID: e.sessionID(t, "Mesa redonda")})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeBody[toggleFailure](t, rec)
	assert.Equal(t, codePersistenceUnavailable, resp.Code)
	assert.True(t, resp.Added)
	assert.Equal(t, 1, resp.Favorites.Count)

	rec = e.do(t, http.MethodGet, "/api/favorites", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[favoritesResponse](t, rec).Count)
}

func TestToggle_BadRequests(t *testing.T) {
	e := newTestEnv(t)
	token := e.signedInClient(t, "ana@example.org")

	rec := e.do(t, http.MethodPost, "/api/favorites/toggle", token, toggleRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/favorites/toggle", token, toggleRequest{SessionID: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/favorites/toggle", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+token)
	raw := httptest.NewRecorder()
	e.h.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
	assert.Equal(t, codeInvalidRequestBody, decodeBody[errorResponse](t, raw).Code)
}

func TestFavorites_GroupedAndCalendar(t *testing.T) {
	e := newTestEnv(t)
	token := e.signedInClient(t, "ana@example.org")

	for _, title := range []string{"Mesa redonda", "Alumbrado adaptativo"} {
		rec := e.do(t, http.MethodPost, "/api/favorites/toggle", token, toggleRequest{SessionID: e.sessionID(t, title)})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := e.do(t, http.MethodGet, "/api/favorites", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fav := decodeBody[favoritesResponse](t, rec)
	require.Len(t, fav.Days, 2)
	assert.Equal(t, "2026-05-20", fav.Days[0].Date, "catalog order, not toggle order")
	assert.Equal(t, "2026-05-21", fav.Days[1].Date)

	rec = e.do(t, http.MethodGet, "/api/favorites/calendar.ics", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="favoritos.ics"`, rec.Header().Get("Content-Disposition"))

	events, err := ics.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestFavorites_SurviveNewClientSession(t *testing.T) {
	e := newTestEnv(t)
	first := e.signedInClient(t, "ana@example.org")
	rec := e.do(t, http.MethodPost, "/api/favorites/toggle", first, toggleRequest{SessionID: e.sessionID(t, "Mesa redonda")})
	require.Equal(t, http.StatusOK, rec.Code)

	second := e.newClient(t)
	rec = e.do(t, http.MethodPost, "/api/auth/login", second, credentialsRequest{Email: "ana@example.org", Password: "secreto"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[authResponse](t, rec)
	require.NotNil(t, resp.Favorites)
	assert.Equal(t, 1, resp.Favorites.Count)
}

func TestMethodNotAllowed(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodDelete, "/api/program", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
