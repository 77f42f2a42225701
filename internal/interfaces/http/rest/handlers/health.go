package handlers

import (
	"net/http"
	"time"

	"savethespice-backend/pkg/api"
)

// Health answers liveness probes.
func Health(started time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		api.JSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"version": version,
			"uptime":  time.Since(started).Round(time.Second).String(),
		})
	}
}
