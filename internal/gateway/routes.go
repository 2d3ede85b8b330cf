package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/soyeahso/billable/internal/domain"
)

// maxBodyBytes caps request bodies. Email bodies dominate the payload and
// stay well under this.
const maxBodyBytes = 1 << 20 // 1MB

// registerRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/sessions", s.handleStartSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/activity", s.handleActivity)
	mux.HandleFunc("POST /api/sessions/{id}/stop", s.handleStopSession)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Clients int    `json:"clients,omitempty"`
	Active  int    `json:"activeSessions,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.Count(),
		Active:  len(s.tracker.Active()),
	})
}

type startSessionRequest struct {
	UserID string           `json:"userId"`
	Email  domain.EmailData `json:"emailData"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	sess, err := s.tracker.StartSession(req.UserID, req.Email)
	if err != nil {
		s.log.Error().Err(err).Str("userId", req.UserID).Msg("start session failed")
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type activityRequest struct {
	Kind    domain.ActivityKind `json:"kind"`
	Payload map[string]any      `json:"payload,omitempty"`
}

// handleActivity ingests one activity signal. The capture layer fires these
// at keystroke cadence, so the response is 202 and per-session errors other
// than a malformed request are reported in the body, never as failures.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req activityRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	err := s.tracker.ReportActivity(id, req.Kind, req.Payload)
	resp := map[string]any{"accepted": err == nil}
	if err != nil {
		resp["reason"] = err.Error()
	}
	writeJSON(w, http.StatusAccepted, resp)
}

type stopSessionRequest struct {
	FinalText     string `json:"finalText,omitempty"`
	SendRequested bool   `json:"sendRequested,omitempty"`
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req stopSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.tracker.StopSession(r.Context(), id, req.FinalText, req.SendRequested)
	if err != nil {
		s.log.Error().Err(err).Str("sessionId", id).Msg("stop session failed")
		writeError(w, http.StatusInternalServerError, "failed to stop session")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sess, err := s.tracker.Session(id)
	if err != nil {
		s.log.Error().Err(err).Str("sessionId", id).Msg("get session failed")
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := s.tracker.Sessions(userID, limit)
	if err != nil {
		s.log.Error().Err(err).Str("userId", userID).Msg("list sessions failed")
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"userId":   userID,
		"sessions": sessions,
	})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(target); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
