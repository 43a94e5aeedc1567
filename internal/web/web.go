package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"studycal/internal/calsync"
	"studycal/internal/capture"
	"studycal/internal/config"
	"studycal/internal/gesture"
	"studycal/internal/ics"
	"studycal/internal/ingest"
	appLog "studycal/internal/log"
	"studycal/internal/metrics"
	"studycal/internal/model"
	"studycal/internal/planner"
	"studycal/internal/session"
	"studycal/internal/store"
	"studycal/internal/view"
)

// maxJSONBody caps JSON request bodies. ICS bodies get their own limit.
const maxJSONBody = 1 << 20

// Deps are the collaborators a Server drives. Only Sessions is required;
// a missing collaborator turns its endpoints into 503 responses.
type Deps struct {
	Sessions *session.Manager
	Planner  *planner.Service
	Ingest   *ingest.Client
	Pusher   calsync.Pusher
	Fetcher  *ics.Fetcher
	Capturer capture.Capturer
	Metrics  *metrics.Metrics
}

// Server provides the workspace API and the rendered /calendar page.
type Server struct {
	cfg   *config.Config
	debug bool
	mux   *http.ServeMux
	loc   *time.Location

	sessions *session.Manager
	composer view.Composer
	planner  *planner.Service
	ingest   *ingest.Client
	pusher   calsync.Pusher
	fetcher  *ics.Fetcher
	capturer capture.Capturer
	metrics  *metrics.Metrics
	validate *requestValidator
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, debug bool, deps Deps) *Server {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", cfg.Timezone)
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewManager(session.Options{Location: loc, WeekStart: cfg.FirstWeekday()})
	}
	if deps.Fetcher == nil {
		deps.Fetcher = ics.NewFetcher(0)
	}

	s := &Server{
		cfg:      cfg,
		debug:    debug,
		mux:      http.NewServeMux(),
		loc:      loc,
		sessions: deps.Sessions,
		composer: view.NewComposer(deps.Sessions.Grid()),
		planner:  deps.Planner,
		ingest:   deps.Ingest,
		pusher:   deps.Pusher,
		fetcher:  deps.Fetcher,
		capturer: deps.Capturer,
		metrics:  deps.Metrics,
		validate: newRequestValidator(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.metrics != nil {
		h = metrics.Middleware(s.metrics, h)
	}
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="StudyCal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.mux.HandleFunc("POST /api/workspaces", s.handleCreateWorkspace)

	s.mux.HandleFunc("GET /api/workspaces/{id}/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/workspaces/{id}/events", s.handleAddEvent)
	s.mux.HandleFunc("GET /api/workspaces/{id}/events/{eventID}", s.handleGetEvent)
	s.mux.HandleFunc("PATCH /api/workspaces/{id}/events/{eventID}", s.handleUpdateEvent)
	s.mux.HandleFunc("DELETE /api/workspaces/{id}/events/{eventID}", s.handleRemoveEvent)

	s.mux.HandleFunc("POST /api/workspaces/{id}/drag/start", s.handleDragStart)
	s.mux.HandleFunc("POST /api/workspaces/{id}/drag/over", s.handleDragOver)
	s.mux.HandleFunc("POST /api/workspaces/{id}/drag/leave", s.handleDragLeave)
	s.mux.HandleFunc("POST /api/workspaces/{id}/drag/drop", s.handleDrop)
	s.mux.HandleFunc("POST /api/workspaces/{id}/resize/start", s.handleResizeStart)
	s.mux.HandleFunc("POST /api/workspaces/{id}/resize/move", s.handleResizeMove)
	s.mux.HandleFunc("POST /api/workspaces/{id}/pointerup", s.handlePointerUp)
	s.mux.HandleFunc("GET /api/workspaces/{id}/gesture", s.handleGesture)

	s.mux.HandleFunc("GET /api/workspaces/{id}/view", s.handleView)
	s.mux.HandleFunc("POST /api/workspaces/{id}/nav", s.handleNav)

	s.mux.HandleFunc("POST /api/workspaces/{id}/upload", s.handleUpload)
	s.mux.HandleFunc("POST /api/workspaces/{id}/plan", s.handlePlan)
	s.mux.HandleFunc("POST /api/workspaces/{id}/sync", s.handleSync)
	s.mux.HandleFunc("GET /api/workspaces/{id}/export.ics", s.handleExportICS)
	s.mux.HandleFunc("POST /api/workspaces/{id}/import.ics", s.handleImportICS)
	s.mux.HandleFunc("GET /api/workspaces/{id}/snapshot.png", s.handleSnapshot)

	s.mux.HandleFunc("POST /api/schedule", s.handleSchedule)

	s.mux.HandleFunc("GET /calendar", s.handleCalendar)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// workspace resolves the {id} path value, writing a 404 when it is unknown.
func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*session.Workspace, bool) {
	ws, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return nil, false
	}
	return ws, true
}

// decodeJSON reads a size-limited JSON body into v and validates it. An
// empty body leaves v untouched.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if errs := s.validate.Check(v); errs != nil {
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Error: "validation failed", Fields: errs})
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateID),
		errors.Is(err, gesture.ErrNotDragging),
		errors.Is(err, gesture.ErrNotResizing):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidRange),
		errors.Is(err, model.ErrInvalidTime),
		errors.Is(err, model.ErrInvalidDay):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gesture.ErrInvalidEdge),
		errors.Is(err, gesture.ErrInvalidPoint),
		errors.Is(err, ics.ErrEmptyBody),
		errors.Is(err, ics.ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrNotPDF):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ingest.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, planner.ErrNotConfigured),
		errors.Is(err, ingest.ErrNotConfigured),
		errors.Is(err, calsync.ErrNotConfigured),
		errors.Is(err, errNoCapturer):
		return http.StatusServiceUnavailable
	case errors.Is(err, planner.ErrInvalidResponse),
		errors.Is(err, ingest.ErrUpstream),
		errors.Is(err, calsync.ErrRejected),
		errors.Is(err, ics.ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the mapped status. Internal errors are logged and
// hidden from the client.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case errors.Is(err, planner.ErrInvalidResponse):
		msg = "AI response was not valid JSON"
	case status == http.StatusInternalServerError:
		appLog.Error("request failed", err)
		msg = "internal error"
	}
	writeError(w, status, msg)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseEventID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("eventID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid event id %q", r.PathValue("eventID"))
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
