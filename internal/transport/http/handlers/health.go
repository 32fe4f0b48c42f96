package handlers

import (
	"net/http"
)

// Health reports liveness with process uptime in seconds.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	now := h.now().UTC()

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "UP",
		Timestamp: now,
		Uptime:    now.Sub(h.startedAt).Seconds(),
	})
}
