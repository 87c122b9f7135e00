package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// handleListDevices returns every cached device, with optional filters.
//
// Query parameters:
//   - type: filter by vendor (hue, nanoleaf, switchbot)
//   - room_id: filter by assigned room
//   - include_hidden: "true" also returns hidden devices
//
// Listing never triggers a poll. Before the first cycle completes, or
// while no client is connected and nothing has been polled yet, the
// result is empty.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	vendor := device.Vendor(q.Get("type"))
	if vendor != "" && !vendor.Valid() {
		writeBadRequest(w, "type must be one of hue, nanoleaf, switchbot")
		return
	}
	roomID := q.Get("room_id")
	includeHidden := q.Get("include_hidden") == "true"

	all := s.devices.GetAllDevices(r.Context())
	devices := make([]device.EnrichedDevice, 0, len(all))
	for _, d := range all {
		if vendor != "" && d.Vendor != vendor {
			continue
		}
		if roomID != "" && (d.RoomID == nil || *d.RoomID != roomID) {
			continue
		}
		if d.Hidden && !includeHidden {
			continue
		}
		devices = append(devices, d)
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single cached device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.devices.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleRefreshDevice asks the poller owning the device to poll now.
//
// The refresh is asynchronous: the new state arrives as a devices.changed
// WebSocket event. While polling is idle this is accepted but does nothing.
func (s *Server) handleRefreshDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.devices.TriggerImmediateRefresh(id)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"device_id": id,
		"vendor":    device.VendorForID(id),
		"polling":   s.devices.IsPolling(),
	})
}
