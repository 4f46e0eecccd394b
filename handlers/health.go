package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse reports which storage backend is serving requests.
type HealthResponse struct {
	Status    string `json:"status"`
	Storage   string `json:"storage"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// Health handles GET /healthz. The fallback store counts as healthy but is reported.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Storage:   h.storage.Mode().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.storage.Ping(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
