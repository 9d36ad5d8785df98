package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Tsury/ha-tsuryphone/internal/coordinator"
	"github.com/Tsury/ha-tsuryphone/internal/device"
)

// handleHealth returns the adapter's health, including device availability.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.coord.Health()

	status := "ok"
	if !health.Available {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"device":  health,
	})
}

// stateResponse is the payload for GET /api/state.
type stateResponse struct {
	Available bool           `json:"available"`
	UpdatedAt string         `json:"updated_at,omitempty"`
	State     map[string]any `json:"state"`
}

// handleGetState returns the latest snapshot. When the device is
// unavailable the stale snapshot is still served, flagged by a 503 status
// and available=false in the body.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	snap := s.coord.CurrentState()
	resp := stateResponse{
		Available: s.coord.Health().Available,
		State:     snap.Fields(),
	}
	if !snap.IsZero() {
		resp.UpdatedAt = snap.UpdatedAt().Format("2006-01-02T15:04:05Z07:00")
	}

	status := http.StatusOK
	if !resp.Available {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// actionRequest is the payload for POST /api/action.
type actionRequest struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// handleAction sends an action to the device.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Action == "" {
		writeBadRequest(w, "action is required")
		return
	}

	pending, err := s.coord.RequestAction(r.Context(), req.Action, req.Params)
	if err != nil {
		switch {
		case errors.Is(err, coordinator.ErrUnknownAction):
			writeBadRequest(w, err.Error())
		case errors.Is(err, device.ErrDeviceRejected):
			writeError(w, http.StatusUnprocessableEntity, ErrCodeRejected, err.Error())
		default:
			writeError(w, http.StatusBadGateway, ErrCodeUnavailable, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, pending)
}

// handleRefresh arms the fast polling window and queues an immediate poll.
func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.coord.TriggerFastRefresh()
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "refreshing"})
}

// handleRefreshSection polls one on-demand device section and returns the
// refreshed snapshot's copy of it.
func (s *Server) handleRefreshSection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := s.coord.RefreshSection(r.Context(), name); err != nil {
		switch {
		case errors.Is(err, device.ErrProtocol):
			writeBadRequest(w, err.Error())
		default:
			writeError(w, http.StatusBadGateway, ErrCodeUnavailable, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"section": name,
		"data":    s.coord.CurrentState().Section(name),
	})
}

// handleWebhook receives an event pushed by the device. Every event
// triggers a fast refresh; the payload, if any, is forwarded to the event
// sink.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	event := chi.URLParam(r, "event")

	var payload map[string]any
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "read body: "+err.Error())
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			writeBadRequest(w, "invalid JSON body: "+err.Error())
			return
		}
	}

	s.coord.TriggerFastRefresh()

	if s.events != nil {
		if err := s.events.PublishEvent(event, payload); err != nil {
			// The refresh is already queued; a failed forward is not the
			// device's problem.
			s.logger.Warn("event forward failed", "event", event, "error", err)
		}
	}

	s.logger.Debug("webhook received", "event", event)
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}
