package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"marketpulse/internal/backend"
	"marketpulse/internal/monitor"
	"marketpulse/pkg/logger"
)

// ActionHandler serves the alert and gap lifecycle actions
type ActionHandler struct {
	engine *monitor.Engine
	logger *logger.Logger
}

// NewActionHandler creates a new action handler
func NewActionHandler(engine *monitor.Engine, log *logger.Logger) *ActionHandler {
	return &ActionHandler{
		engine: engine,
		logger: log,
	}
}

// AcknowledgeAlert acknowledges one alert
// POST /api/alerts/{id}/acknowledge
func (h *ActionHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		respondError(w, http.StatusBadRequest, "Missing alert id")
		return
	}

	if err := h.engine.Acknowledge(r.Context(), id); err != nil {
		respondError(w, actionStatus(err), "Failed to acknowledge alert")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "acknowledged", "id": id})
}

// AcknowledgeAll acknowledges every visible alert. Partial backend
// failures still clear the local list; the response reports the split.
// POST /api/alerts/acknowledge-all
func (h *ActionHandler) AcknowledgeAll(w http.ResponseWriter, r *http.Request) {
	res := h.engine.AcknowledgeAll(r.Context())
	respondJSON(w, http.StatusOK, res)
}

// RepairGap requests a backfill repair for one gap
// POST /api/gaps/{id}/repair
func (h *ActionHandler) RepairGap(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		respondError(w, http.StatusBadRequest, "Missing gap id")
		return
	}

	if err := h.engine.RepairGap(r.Context(), id); err != nil {
		respondError(w, actionStatus(err), "Failed to repair gap")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "repair_requested", "id": id})
}

// RepairAllGaps requests a backfill repair for every known gap
// POST /api/gaps/repair-all
func (h *ActionHandler) RepairAllGaps(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.RepairAllGaps(r.Context()); err != nil {
		respondError(w, actionStatus(err), "Failed to repair gaps")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "repair_requested"})
}

// actionStatus maps a backend action failure to an HTTP status
func actionStatus(err error) int {
	if backend.IsTransport(err) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
