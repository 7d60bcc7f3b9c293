package signup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/career-journal-signup/pkg/logging"
)

// Wizard is the part of Machine the HTTP layer drives.
type Wizard interface {
	Start(ctx context.Context, utm UTM, timezone string) (Render, error)
	Render(ctx context.Context, id string) (Render, error)
	Dispatch(ctx context.Context, id string, cmd Command) (Render, error)
	ReminderURL(ctx context.Context, id string) (string, error)
}

// Handler serves the wizard over JSON.
type Handler struct {
	wizard Wizard
	logger *logging.Logger
}

// NewHandler creates a signup handler.
func NewHandler(wizard Wizard, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{wizard: wizard, logger: logger.Component("signup_http")}
}

// Routes mounts the session endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/sessions", h.StartSession)
	r.Get("/sessions/{sessionID}", h.GetSession)
	r.Post("/sessions/{sessionID}/commands", h.PostCommand)
	r.Get("/sessions/{sessionID}/reminder", h.GetReminder)
	return r
}

// StartSessionResponse is returned by POST /signup/sessions.
type StartSessionResponse struct {
	SessionID string `json:"session_id"`
	Render    Render `json:"render"`
}

// ReminderResponse is returned by GET /signup/sessions/{id}/reminder.
type ReminderResponse struct {
	URL string `json:"url"`
}

// StartSession handles POST /signup/sessions. UTM parameters and the
// visitor's timezone come from the query string.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	render, err := h.wizard.Start(r.Context(), UTMFromQuery(q), q.Get("tz"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, StartSessionResponse{SessionID: render.SessionID, Render: render})
}

// GetSession handles GET /signup/sessions/{sessionID}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	render, err := h.wizard.Render(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, render)
}

// PostCommand handles POST /signup/sessions/{sessionID}/commands.
func (h *Handler) PostCommand(w http.ResponseWriter, r *http.Request) {
	var cmd Command
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10))
	if err := dec.Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	render, err := h.wizard.Dispatch(r.Context(), chi.URLParam(r, "sessionID"), cmd)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, render)
}

// GetReminder handles GET /signup/sessions/{sessionID}/reminder.
func (h *Handler) GetReminder(w http.ResponseWriter, r *http.Request) {
	url, err := h.wizard.ReminderURL(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReminderResponse{URL: url})
}

// StatusFor maps wizard errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTransitionInFlight):
		return http.StatusConflict
	case errors.Is(err, ErrWrongStep):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnknownCommand), errors.Is(err, ErrUnknownProvider):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("signup request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
