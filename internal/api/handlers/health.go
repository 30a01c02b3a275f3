package handlers

import (
	"botdesk/internal/app"
	"botdesk/internal/logger"
	"net/http"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// pinger is implemented by databases that can report connectivity
type pinger interface {
	Ping() error
}

// HealthHandler reports process and database health
func HealthHandler(config *app.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := config.DB.(pinger)
		if !ok {
			writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
			return
		}

		if err := p.Ping(); err != nil {
			logger.Log.WithError(err).Error("Health check: database unreachable")
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Database: "down"})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Database: "up"})
	}
}
