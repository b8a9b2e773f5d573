package handlers

import (
	"net/http"

	"marketpulse/internal/monitor"
	"marketpulse/internal/quality"
	"marketpulse/pkg/logger"
)

// DashboardHandler serves the aggregate quality state
type DashboardHandler struct {
	engine        *monitor.Engine
	defaultWindow quality.Window
	logger        *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(engine *monitor.Engine, defaultWindow quality.Window, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		engine:        engine,
		defaultWindow: defaultWindow,
		logger:        log,
	}
}

// DashboardResponse is the full aggregate state plus cycle phase
type DashboardResponse struct {
	monitor.View
	State  monitor.State `json:"state"`
	Loaded bool          `json:"loaded"`
}

// GetDashboard returns the current quality snapshot and derived sets
// GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	view, loaded := h.engine.View()

	respondJSON(w, http.StatusOK, DashboardResponse{
		View:   view,
		State:  h.engine.State(),
		Loaded: loaded,
	})
}

// GetSymbols returns the filtered per-symbol quality list
// GET /api/symbols?symbol=&severity=&type=
func (h *DashboardHandler) GetSymbols(w http.ResponseWriter, r *http.Request) {
	h.applyCriteria(r)
	fv := h.engine.Filtered()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": fv.Symbols,
		"empty":   fv.SymbolsEmpty,
	})
}

// GetAlerts returns the filtered unacknowledged alert list
// GET /api/alerts?symbol=&severity=
func (h *DashboardHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	h.applyCriteria(r)
	fv := h.engine.Filtered()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": fv.Alerts,
		"empty":  fv.AlertsEmpty,
	})
}

// GetAnomalies returns the filtered anomaly feed
// GET /api/anomalies?symbol=&severity=&type=
func (h *DashboardHandler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	h.applyCriteria(r)
	fv := h.engine.Filtered()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"anomalies": fv.Anomalies,
		"empty":     fv.AnomaliesEmpty,
	})
}

// GetGaps returns the current gap list
// GET /api/gaps
func (h *DashboardHandler) GetGaps(w http.ResponseWriter, r *http.Request) {
	view, _ := h.engine.View()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"gaps":  view.Gaps,
		"empty": len(view.Gaps) == 0,
	})
}

// GetTrend returns bucketed score points for the requested window
// GET /api/trend?window=24h
func (h *DashboardHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	window := h.defaultWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		window = quality.ParseWindow(raw)
	}

	points, err := h.engine.Trend(r.Context(), window)
	if err != nil {
		h.logger.WithError(err).Error("Failed to build trend")
		respondError(w, http.StatusInternalServerError, "Failed to build trend")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"window": window,
		"points": points,
	})
}

// Refresh triggers an immediate refresh cycle. The refresh runs in the
// background; any in-flight request is superseded.
// POST /api/refresh
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.engine.Refresh()
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

// Health returns server liveness and engine phase
// GET /health
func (h *DashboardHandler) Health(w http.ResponseWriter, r *http.Request) {
	view, loaded := h.engine.View()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "marketpulse",
		"state":     h.engine.State(),
		"loaded":    loaded,
		"synthetic": view.Synthetic,
	})
}

// applyCriteria updates the engine filter criteria when the request
// carries any filter query parameter. A request without parameters
// reads through the criteria already in effect.
func (h *DashboardHandler) applyCriteria(r *http.Request) {
	q := r.URL.Query()
	if !q.Has("symbol") && !q.Has("severity") && !q.Has("type") {
		return
	}

	c := quality.DefaultCriteria()
	c.SymbolQuery = q.Get("symbol")

	if s := q.Get("severity"); s != "" && !equalsAll(s) {
		c.Severity = quality.ParseSeverity(s)
	}
	if t := q.Get("type"); t != "" && !equalsAll(t) {
		c.Type = quality.ParseAnomalyType(t)
	}

	h.engine.SetCriteria(c)
}

func equalsAll(s string) bool {
	return s == "all" || s == "All" || s == "ALL"
}
