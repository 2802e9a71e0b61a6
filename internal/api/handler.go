package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stawikopa-del/fitfly-sub001/internal/engine"
	"github.com/stawikopa-del/fitfly-sub001/internal/models"
	"github.com/stawikopa-del/fitfly-sub001/internal/service"
	"github.com/stawikopa-del/fitfly-sub001/pkg/logger"
)

// Handler holds all HTTP handlers
type Handler struct {
	sessions  *service.SessionService
	logger    *logger.Logger
	rateLimit int
}

// NewHandler creates a new handler. A rateLimit of zero disables per-IP
// limiting.
func NewHandler(sessions *service.SessionService, log *logger.Logger, rateLimit int) *Handler {
	return &Handler{
		sessions:  sessions,
		logger:    log,
		rateLimit: rateLimit,
	}
}

// Routes sets up all routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if h.rateLimit > 0 {
			r.Use(RateLimitMiddleware(h.rateLimit))
		}

		r.Get("/presets", h.ListPresets)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.StartSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Post("/play", h.control(service.ActionPlay))
				r.Post("/pause", h.control(service.ActionPause))
				r.Post("/skip-forward", h.control(service.ActionSkipForward))
				r.Post("/skip-backward", h.control(service.ActionSkipBackward))
				r.Post("/goto", h.GoToStep)
				r.Post("/tick", h.Tick)
				r.Post("/exit", h.ExitSession)
			})
		})

		r.Get("/users/{userID}/sessions", h.ListUserSessions)
		r.Get("/users/{userID}/completions", h.ListCompletions)
	})

	return r
}

// Health handles health check requests
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListPresets returns the preset catalog
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.sessions.Presets())
}

// StartSession handles session start requests
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	requestID := GetRequestID(r.Context())
	h.logger.Info("Starting session",
		logger.F("user_id", req.UserID),
		logger.F("preset", req.Preset),
		logger.F("request_id", requestID))

	session, err := h.sessions.StartSession(r.Context(), req)
	if err != nil {
		h.fail(w, r, "failed to start session", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, session)
}

// GetSession returns a session with its latest timer state
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, "failed to get session", err)
		return
	}
	h.respondJSON(w, http.StatusOK, session)
}

func (h *Handler) control(action service.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := h.sessions.Control(r.Context(), chi.URLParam(r, "sessionID"), action, 0)
		if err != nil {
			h.fail(w, r, "failed to "+string(action), err)
			return
		}
		h.respondJSON(w, http.StatusOK, session)
	}
}

// GoToStep jumps to the requested step; index -1 returns to the overview
func (h *Handler) GoToStep(w http.ResponseWriter, r *http.Request) {
	var req models.GoToStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Index == nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", "index is required")
		return
	}

	session, err := h.sessions.Control(r.Context(), chi.URLParam(r, "sessionID"), service.ActionGoTo, *req.Index)
	if err != nil {
		h.fail(w, r, "failed to go to step", err)
		return
	}
	h.respondJSON(w, http.StatusOK, session)
}

// Tick delivers client-driven seconds. An empty body counts as one tick.
func (h *Handler) Tick(w http.ResponseWriter, r *http.Request) {
	var req models.TickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	session, err := h.sessions.Tick(r.Context(), chi.URLParam(r, "sessionID"), req.Count)
	if err != nil {
		h.fail(w, r, "failed to tick", err)
		return
	}
	h.respondJSON(w, http.StatusOK, session)
}

// ExitSession handles session exit requests
func (h *Handler) ExitSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	h.logger.Info("Exiting session",
		logger.F("session_id", sessionID),
		logger.F("request_id", GetRequestID(r.Context())))

	session, err := h.sessions.ExitSession(r.Context(), sessionID)
	if err != nil {
		h.fail(w, r, "failed to exit session", err)
		return
	}
	h.respondJSON(w, http.StatusOK, session)
}

// ListUserSessions returns every session a user has started
func (h *Handler) ListUserSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.ListUserSessions(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, "failed to list sessions", err)
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	h.respondJSON(w, http.StatusOK, sessions)
}

// ListCompletions returns a user's completion history and points
func (h *Handler) ListCompletions(w http.ResponseWriter, r *http.Request) {
	resp, err := h.sessions.ListCompletions(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, "failed to list completions", err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// fail maps a service error to a status code and logs server-side failures
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, errorMsg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(errorMsg, logger.Err(err), logger.F("request_id", GetRequestID(r.Context())))
	}
	h.respondError(w, status, errorMsg, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUserIDRequired),
		errors.Is(err, service.ErrInvalidSteps),
		errors.Is(err, service.ErrUnknownPreset),
		errors.Is(err, service.ErrUnknownAction),
		errors.Is(err, engine.ErrInvalidStepIndex):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrActiveSession),
		errors.Is(err, service.ErrSessionNotActive),
		errors.Is(err, service.ErrClientTicksDisabled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON sends a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data)
}

// respondError sends an error response
func (h *Handler) respondError(w http.ResponseWriter, status int, errorMsg, message string) {
	writeJSON(w, status, models.ErrorResponse{
		Error:   errorMsg,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
