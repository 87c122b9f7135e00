package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hub/internal/integrations/nanoleaf"
)

// CreatePairingRequest starts pairing with a Nanoleaf controller.
// The controller's power button must be held for 5-7 seconds first.
type CreatePairingRequest struct {
	Host string `json:"host"`
	Port int    `json:"port,omitempty"`
	Name string `json:"name,omitempty"`
}

// handleListPairings returns all paired Nanoleaf controllers.
// Auth tokens are never included.
func (s *Server) handleListPairings(w http.ResponseWriter, r *http.Request) {
	pairings, err := s.pairings.ListPairings(r.Context())
	if err != nil {
		s.logger.Error("listing nanoleaf pairings", "error", err)
		writeInternalError(w, "failed to list pairings")
		return
	}
	if pairings == nil {
		pairings = []nanoleaf.Pairing{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pairings": pairings, "count": len(pairings)})
}

// handleCreatePairing obtains a token from the controller, stores the
// pairing and refreshes Nanoleaf so the new panels appear.
func (s *Server) handleCreatePairing(w http.ResponseWriter, r *http.Request) {
	var req CreatePairingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.Host = strings.TrimSpace(req.Host)
	if req.Host == "" {
		writeValidationError(w, "host is required")
		return
	}

	p, err := s.pairer.Pair(r.Context(), req.Host, req.Port, req.Name)
	if err != nil {
		if errors.Is(err, nanoleaf.ErrPairingRefused) {
			writeError(w, http.StatusConflict, ErrCodeValidation, err.Error())
			return
		}
		s.logger.Warn("nanoleaf pairing failed", "host", req.Host, "error", err)
		writeUnavailable(w, "controller did not respond to pairing")
		return
	}

	if err := s.pairings.SavePairing(r.Context(), p); err != nil {
		if errors.Is(err, nanoleaf.ErrInvalidPairing) {
			writeValidationError(w, err.Error())
			return
		}
		s.logger.Error("saving nanoleaf pairing", "device_id", p.DeviceID, "error", err)
		writeInternalError(w, "failed to save pairing")
		return
	}

	s.logger.Info("nanoleaf controller paired", "device_id", p.DeviceID, "host", p.Host)
	s.devices.TriggerImmediateRefresh(p.DeviceID)
	writeJSON(w, http.StatusCreated, p)
}

// handleDeletePairing forgets a controller and drops it from the cache.
// Remaining controllers are refreshed.
func (s *Server) handleDeletePairing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.pairings.DeletePairing(r.Context(), id); err != nil {
		if errors.Is(err, nanoleaf.ErrPairingNotFound) {
			writeNotFound(w, "pairing not found")
			return
		}
		s.logger.Error("deleting nanoleaf pairing", "device_id", id, "error", err)
		writeInternalError(w, "failed to delete pairing")
		return
	}

	s.devices.RemoveDevice(id)
	s.devices.TriggerImmediateRefresh(id)
	w.WriteHeader(http.StatusNoContent)
}
