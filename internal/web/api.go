package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/akontos/sirena/internal/event"
	"github.com/akontos/sirena/internal/registry"
	"github.com/akontos/sirena/internal/silent"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Device sessions
	mux.HandleFunc("POST /api/sessions/activate", s.activateSession)
	mux.HandleFunc("POST /api/sessions/deactivate", s.deactivateSession)
	mux.HandleFunc("POST /api/sessions/sweep", s.sweepSessions)
	mux.HandleFunc("GET /api/sessions", s.listSessions)
	mux.HandleFunc("GET /api/sessions/{user}", s.getSession)

	// Broadcast entry points for the dispatch workflow
	mux.HandleFunc("POST /api/notify/status", s.notifyStatus)
	mux.HandleFunc("POST /api/notify/location", s.notifyLocation)
	mux.HandleFunc("POST /api/notify/provider-assigned", s.notifyProviderAssigned)
	mux.HandleFunc("POST /api/notify/provider-arrived", s.notifyProviderArrived)
	mux.HandleFunc("POST /api/notify/request-confirmed", s.notifyRequestConfirmed)
	mux.HandleFunc("POST /api/notify/agent-assignment", s.notifyAgentAssignment)
	mux.HandleFunc("POST /api/notify/role-status", s.notifyRoleStatus)

	// Ops
	mux.HandleFunc("GET /api/connections", s.listConnections)
	mux.HandleFunc("GET /api/audit/events", s.listAuditEvents)
	mux.HandleFunc("GET /api/audit/requests/{id}", s.auditByRequest)
}

func (s *Server) activateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID          string `json:"user_id"`
		RequestID       string `json:"request_id"`
		Platform        string `json:"platform"`
		DurationMinutes int    `json:"duration_minutes"`
		RestoreMode     string `json:"restore_mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.UserID == "" {
		jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	platform, ok := silent.ParsePlatform(body.Platform)
	if !ok {
		jsonError(w, "unsupported platform", http.StatusBadRequest)
		return
	}

	session, err := s.manager.Activate(r.Context(), body.UserID, body.RequestID, platform,
		time.Duration(body.DurationMinutes)*time.Minute, body.RestoreMode)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	jsonResponse(w, session)
}

func (s *Server) deactivateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID      string `json:"user_id"`
		RequestID   string `json:"request_id"`
		RestoreMode string `json:"restore_mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.UserID == "" {
		jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	session, err := s.manager.Deactivate(r.Context(), body.UserID, body.RequestID, body.RestoreMode)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	jsonResponse(w, session)
}

func (s *Server) sweepSessions(w http.ResponseWriter, r *http.Request) {
	reclaimed, err := s.manager.Sweep(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]int{"reclaimed": reclaimed})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.manager.ListActive(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, sessions)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.manager.Status(r.Context(), r.PathValue("user"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	jsonResponse(w, session)
}

func (s *Server) notifyStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequestID string `json:"request_id"`
		Status    string `json:"status"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RequestID == "" {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.bcast.SendStatusUpdate(body.RequestID, body.Status, body.Message)
	jsonResponse(w, map[string]string{"status": "sent"})
}

func (s *Server) notifyLocation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequestID            string         `json:"request_id"`
		Location             event.GeoPoint `json:"location"`
		EstimatedArrivalTime string         `json:"estimated_arrival_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RequestID == "" {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.bcast.SendLocationUpdate(body.RequestID, body.Location, body.EstimatedArrivalTime)
	jsonResponse(w, map[string]string{"status": "sent"})
}

func (s *Server) notifyProviderAssigned(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequestID      string `json:"request_id"`
		ProviderID     string `json:"provider_id"`
		ProviderName   string `json:"provider_name"`
		VehicleDetails string `json:"vehicle_details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RequestID == "" {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.bcast.SendProviderAssigned(body.RequestID, body.ProviderID, body.ProviderName, body.VehicleDetails)
	jsonResponse(w, map[string]string{"status": "sent"})
}

func (s *Server) notifyProviderArrived(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequestID      string `json:"request_id"`
		ProviderID     string `json:"provider_id"`
		VehicleDetails string `json:"vehicle_details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RequestID == "" {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.bcast.SendProviderArrived(body.RequestID, body.ProviderID, body.VehicleDetails)
	jsonResponse(w, map[string]string{"status": "sent"})
}

func (s *Server) notifyRequestConfirmed(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID    string `json:"user_id"`
		RequestID string `json:"request_id"`
		Status    string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.bcast.SendRequestConfirmed(body.UserID, body.RequestID, body.Status)
	jsonResponse(w, map[string]string{"status": "sent"})
}

func (s *Server) notifyAgentAssignment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AgentID   string `json:"agent_id"`
		RequestID string `json:"request_id"`
		Summary   string `json:"summary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AgentID == "" {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.bcast.SendAgentAssignment(body.AgentID, body.RequestID, body.Summary)
	jsonResponse(w, map[string]string{"status": "sent"})
}

func (s *Server) notifyRoleStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role      string `json:"role"`
		RequestID string `json:"request_id"`
		Status    string `json:"status"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RequestID == "" {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	role, ok := registry.ParseRole(body.Role)
	if !ok {
		jsonError(w, "unknown role", http.StatusBadRequest)
		return
	}
	s.bcast.SendRoleStatusUpdate(role, body.RequestID, body.Status, body.Message)
	jsonResponse(w, map[string]string{"status": "sent"})
}

func (s *Server) listConnections(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, s.reg.Connected())
}

func (s *Server) listAuditEvents(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		jsonError(w, "audit trail disabled", http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.audit.Recent(limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, entries)
}

func (s *Server) auditByRequest(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		jsonError(w, "audit trail disabled", http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.audit.ByRequest(r.PathValue("id"), limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, entries)
}

// writeSessionError maps the silent-session domain errors onto HTTP
// status codes for the collaborator caller.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, silent.ErrNoActiveSession):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, silent.ErrRequestIDMismatch):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, silent.ErrUnsupportedPlatform):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}
