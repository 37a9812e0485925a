package proctor

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mcdev12/proctor/go/internal/apperr"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// Service exposes the App over HTTP
type Service struct {
	app       *App
	authorize func(r *http.Request) bool
}

// NewService creates a new proctor HTTP service. An empty adminToken leaves the admin routes open.
func NewService(app *App, adminToken string) *Service {
	return &Service{
		app:       app,
		authorize: AdminAuthorizer(adminToken),
	}
}

// RegisterRoutes registers the public and admin HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", s.HandleStatus)
	mux.HandleFunc("POST /api/login", s.HandleLogin)
	mux.HandleFunc("POST /api/submit", s.HandleSubmit)
	mux.HandleFunc("POST /api/heartbeat", s.HandleHeartbeat)
	mux.HandleFunc("GET /api/students/{phone}/results", s.HandleStudentResults)

	mux.HandleFunc("POST /admin/configure", s.requireAdmin(s.HandleConfigure))
	mux.HandleFunc("POST /admin/start", s.requireAdmin(s.HandleStart))
	mux.HandleFunc("POST /admin/stop", s.requireAdmin(s.HandleStop))
	mux.HandleFunc("POST /admin/reset", s.requireAdmin(s.HandleReset))
	mux.HandleFunc("GET /admin/students", s.requireAdmin(s.HandleListStudents))
	mux.HandleFunc("GET /admin/participants", s.requireAdmin(s.HandleParticipants))

	mux.HandleFunc("GET /{$}", s.HandleIndex)
}

// AdminAuthorizer returns a check for the admin bearer token. Browsers cannot
// set headers on WebSocket upgrades, so a token query parameter is accepted
// as well. An empty token allows every request.
func AdminAuthorizer(adminToken string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if adminToken == "" {
			return true
		}

		token := r.URL.Query().Get("token")
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
		return subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) == 1
	}
}

// AuthorizeAdmin reports whether r carries the admin token
func (s *Service) AuthorizeAdmin(r *http.Request) bool {
	return s.authorize(r)
}

func (s *Service) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.AuthorizeAdmin(r) {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: ErrorBody{
				Kind:    "unauthorized",
				Message: "admin token required",
			}})
			return
		}
		next(w, r)
	}
}

// HandleStatus handles GET /api/status
func (s *Service) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Status())
}

// HandleLogin handles POST /api/login
func (s *Service) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := s.app.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSubmit handles POST /api/submit
func (s *Service) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := s.app.Submit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHeartbeat handles POST /api/heartbeat. Malformed bodies are ignored.
func (s *Service) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req HeartbeatRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Debug().Err(err).Msg("ignoring malformed heartbeat")
	} else {
		s.app.Heartbeat(r.Context(), req)
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// HandleStudentResults handles GET /api/students/{phone}/results
func (s *Service) HandleStudentResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.app.GetStudentResults(r.Context(), r.PathValue("phone"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// HandleConfigure handles POST /admin/configure
func (s *Service) HandleConfigure(w http.ResponseWriter, r *http.Request) {
	var req ConfigureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := s.app.Configure(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleStart handles POST /admin/start
func (s *Service) HandleStart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Start(r.Context()))
}

// HandleStop handles POST /admin/stop
func (s *Service) HandleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Stop(r.Context()))
}

// HandleReset handles POST /admin/reset
func (s *Service) HandleReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Reset(r.Context()))
}

// HandleListStudents handles GET /admin/students
func (s *Service) HandleListStudents(w http.ResponseWriter, r *http.Request) {
	list, err := s.app.ListStudents(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleParticipants handles GET /admin/participants
func (s *Service) HandleParticipants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Participants())
}

// HandleIndex lists the available endpoints
func (s *Service) HandleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "exam server running",
		"endpoints": map[string]string{
			"status":    "/api/status",
			"login":     "/api/login",
			"submit":    "/api/submit",
			"heartbeat": "/api/heartbeat",
			"admin":     "/admin/students",
			"dashboard": "/ws/admin",
			"health":    "/health",
		},
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return &apperr.Error{Kind: apperr.KindValidation, Message: "request body must be valid JSON", Err: err}
	}
	return nil
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusForKind(kind)

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")

	writeJSON(w, status, ErrorResponse{Error: ErrorBody{
		Kind:    string(kind),
		Message: apperr.MessageOf(err),
	}})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(fmt.Errorf("encode response: %w", err)).Msg("failed to write response")
	}
}
