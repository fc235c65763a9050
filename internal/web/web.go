package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"confprog/internal/auth"
	"confprog/internal/catalog"
	"confprog/internal/config"
	"confprog/internal/favorites"
	"confprog/internal/ics"
	appLog "confprog/internal/log"
)

// Server provides the program, account and favorites HTTP API.
type Server struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	provider  auth.Provider
	favorites *favorites.Repository
	encoder   *ics.Encoder
	loc       *time.Location
	mux       *http.ServeMux

	// clients maps bearer tokens to browser sessions.
	clients *auth.Sessions[*clientSession]
}

// clientSession is one browser: its auth state and its favorites view.
type clientSession struct {
	auth      *auth.Client
	favorites *favorites.Mirror
}

// Deps are the collaborators of a Server.
type Deps struct {
	Catalog   *catalog.Catalog
	Provider  auth.Provider
	Favorites *favorites.Repository
	Encoder   *ics.Encoder
	// Location is the zone of the program's wall-clock times; nil means
	// time.Local.
	Location *time.Location
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	enc := deps.Encoder
	if enc == nil {
		enc = ics.NewEncoder(cfg.Calendar.ProductID, cfg.Calendar.UIDDomain)
	}
	s := &Server{
		cfg:       cfg,
		catalog:   deps.Catalog,
		provider:  deps.Provider,
		favorites: deps.Favorites,
		encoder:   enc,
		loc:       loc,
		mux:       http.NewServeMux(),
		clients:   auth.NewSessions[*clientSession](cfg.SessionTTL()),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return requestID(requestLogger(s.mux))
}

// Clients exposes the client session table so it can be swept.
func (s *Server) Clients() auth.Purger {
	return s.clients
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("stopping HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/program", s.handleProgram)
	s.mux.HandleFunc("GET /api/sessions", s.handleSessions)
	s.mux.HandleFunc("GET /api/sessions/{id}/calendar.ics", s.handleSessionCalendar)

	s.mux.HandleFunc("POST /api/client", s.handleNewClient)
	s.mux.HandleFunc("POST /api/auth/register", s.withClient(s.handleRegister))
	s.mux.HandleFunc("POST /api/auth/login", s.withClient(s.handleLogin))
	s.mux.HandleFunc("POST /api/auth/logout", s.withClient(s.handleLogout))
	s.mux.HandleFunc("GET /api/auth/me", s.withClient(s.handleMe))

	s.mux.HandleFunc("GET /api/favorites", s.withClient(s.handleFavorites))
	s.mux.HandleFunc("POST /api/favorites/toggle", s.withClient(s.handleToggle))
	s.mux.HandleFunc("GET /api/favorites/calendar.ics", s.withClient(s.handleFavoritesCalendar))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// clientFromRequest resolves the bearer token of r.
func (s *Server) clientFromRequest(r *http.Request) (*clientSession, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return nil, false
	}
	return s.clients.Lookup(token)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type clientHandler func(w http.ResponseWriter, r *http.Request, c *clientSession)

// withClient rejects requests without a live client session token.
func (s *Server) withClient(next clientHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := s.clientFromRequest(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="confprog"`)
			writeError(w, http.StatusUnauthorized, codeClientSessionRequired, "client session required")
			return
		}
		next(w, r, c)
	}
}

func (s *Server) newClientSession(ctx context.Context) (*clientSession, string) {
	c := &clientSession{
		auth:      auth.NewClient(s.provider),
		favorites: favorites.NewMirror(s.favorites),
	}
	c.favorites.Attach(ctx, c.auth)
	c.auth.Resolve(ctx)
	return c, s.clients.Issue(c)
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeCalendar(w http.ResponseWriter, filename string, payload []byte) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
