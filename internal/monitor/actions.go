package monitor

import (
	"context"
	"fmt"
	"time"
)

// ActionResult reports the outcome of a bulk action
type ActionResult struct {
	Attempted int `json:"attempted"`
	Failed    int `json:"failed"`
}

// Acknowledge acknowledges one alert on the backend and, on success,
// removes it locally. On failure the alert stays visible; no local
// state changes.
func (e *Engine) Acknowledge(ctx context.Context, id string) error {
	if err := e.source.AcknowledgeAnomaly(ctx, id); err != nil {
		e.logger.WithError(err).WithField("alert_id", id).Error("Acknowledge failed")
		return fmt.Errorf("acknowledge alert %s: %w", id, err)
	}

	e.mu.Lock()
	e.removeAlertLocked(id)
	view := e.viewLocked()
	e.mu.Unlock()

	e.notify(view)
	return nil
}

// AcknowledgeAll acknowledges every visible alert on the backend, one
// request per alert, then clears the local alert list regardless of
// per-item failures. Failed items resurface on the next full refresh
// once their pending-removal entries expire; until then the cleared
// list stands. The result reports how many calls were attempted and
// how many failed.
func (e *Engine) AcknowledgeAll(ctx context.Context) ActionResult {
	e.mu.Lock()
	alerts := make([]string, 0, len(e.alerts))
	for _, a := range e.alerts {
		alerts = append(alerts, a.ID)
	}
	e.mu.Unlock()

	res := ActionResult{Attempted: len(alerts)}
	for _, id := range alerts {
		if err := e.source.AcknowledgeAnomaly(ctx, id); err != nil {
			res.Failed++
			e.logger.WithError(err).WithField("alert_id", id).Warn("Acknowledge failed during bulk clear")
		}
	}

	e.mu.Lock()
	for _, id := range alerts {
		e.removeAlertLocked(id)
	}
	view := e.viewLocked()
	e.mu.Unlock()

	e.notify(view)

	if res.Failed > 0 {
		e.logger.WithField("attempted", res.Attempted).WithField("failed", res.Failed).
			Warn("Bulk acknowledge cleared locally with backend failures")
	}
	return res
}

// RepairGap requests a backend repair for one gap and, on success,
// removes it locally. Repair is asynchronous on the backend side; the
// pending-removal entry keeps the gap hidden while it completes.
func (e *Engine) RepairGap(ctx context.Context, id string) error {
	if err := e.source.RepairGap(ctx, id); err != nil {
		e.logger.WithError(err).WithField("gap_id", id).Error("Gap repair failed")
		return fmt.Errorf("repair gap %s: %w", id, err)
	}

	e.mu.Lock()
	e.removeGapLocked(id)
	view := e.viewLocked()
	e.mu.Unlock()

	e.notify(view)
	return nil
}

// RepairAllGaps requests a backend repair for every known gap and, on
// success, clears the local gap list
func (e *Engine) RepairAllGaps(ctx context.Context) error {
	if err := e.source.RepairAllGaps(ctx); err != nil {
		e.logger.WithError(err).Error("Bulk gap repair failed")
		return fmt.Errorf("repair all gaps: %w", err)
	}

	e.mu.Lock()
	for _, g := range e.gaps {
		e.markPendingLocked(g.ID)
	}
	e.gaps = e.gaps[:0]
	if e.snap != nil {
		e.snap.GapStats.TotalGaps = 0
	}
	view := e.viewLocked()
	e.mu.Unlock()

	e.notify(view)
	return nil
}

// removeAlertLocked drops one alert, adjusts the unacknowledged count,
// and shields the id from resurrection by in-flight refreshes
func (e *Engine) removeAlertLocked(id string) {
	for i, a := range e.alerts {
		if a.ID == id {
			e.alerts = append(e.alerts[:i], e.alerts[i+1:]...)
			break
		}
	}
	if e.snap != nil && e.snap.AnomalyStats.Unacknowledged > 0 {
		e.snap.AnomalyStats.Unacknowledged--
	}
	e.markPendingLocked(id)
}

// removeGapLocked drops one gap, adjusts the gap count, and shields the
// id from resurrection by in-flight refreshes
func (e *Engine) removeGapLocked(id string) {
	for i, g := range e.gaps {
		if g.ID == id {
			e.gaps = append(e.gaps[:i], e.gaps[i+1:]...)
			break
		}
	}
	if e.snap != nil && e.snap.GapStats.TotalGaps > 0 {
		e.snap.GapStats.TotalGaps--
	}
	e.markPendingLocked(id)
}

// markPendingLocked records an id as locally removed for two refresh
// intervals, long enough for the backend to catch up
func (e *Engine) markPendingLocked(id string) {
	e.pending[id] = time.Now().Add(e.pendingTTL)
}
