package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"marketpulse/internal/api/handlers"
	"marketpulse/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	dashboard *handlers.DashboardHandler,
	actions *handlers.ActionHandler,
	hub *Hub,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", dashboard.Health).Methods("GET")

	// Push stream
	r.HandleFunc("/ws", hub.ServeWS).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Read endpoints
	api.HandleFunc("/dashboard", dashboard.GetDashboard).Methods("GET")
	api.HandleFunc("/symbols", dashboard.GetSymbols).Methods("GET")
	api.HandleFunc("/alerts", dashboard.GetAlerts).Methods("GET")
	api.HandleFunc("/anomalies", dashboard.GetAnomalies).Methods("GET")
	api.HandleFunc("/gaps", dashboard.GetGaps).Methods("GET")
	api.HandleFunc("/trend", dashboard.GetTrend).Methods("GET")

	// Lifecycle actions
	api.HandleFunc("/refresh", dashboard.Refresh).Methods("POST")
	api.HandleFunc("/alerts/acknowledge-all", actions.AcknowledgeAll).Methods("POST")
	api.HandleFunc("/alerts/{id}/acknowledge", actions.AcknowledgeAlert).Methods("POST")
	api.HandleFunc("/gaps/repair-all", actions.RepairAllGaps).Methods("POST")
	api.HandleFunc("/gaps/{id}/repair", actions.RepairGap).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
