package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// handleRateLimit reports quota usage per rate-limited vendor.
// Only SwitchBot is metered.
func (s *Server) handleRateLimit(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		string(device.VendorSwitchBot): s.devices.RateLimitStats(),
	})
}
