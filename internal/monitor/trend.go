package monitor

import (
	"context"
	"time"

	"marketpulse/internal/quality"
)

// Trend returns bucketed overall-score points for one window. Real
// history is preferred; when the engine is degraded, no history store
// is wired, or the store has nothing for the window, a deterministic
// synthetic trend fills in so the chart is never empty.
func (e *Engine) Trend(ctx context.Context, w quality.Window) ([]quality.TrendPoint, error) {
	e.mu.Lock()
	degraded := e.synthetic || !e.loaded
	e.mu.Unlock()

	now := time.Now()

	if !degraded && e.history != nil {
		points, err := e.history.TrendPoints(ctx, w, now)
		if err != nil {
			e.logger.WithError(err).WithField("window", string(w)).Warn("Trend query failed, using synthetic trend")
		} else if len(points) > 0 {
			return points, nil
		}
	}

	return quality.SyntheticTrend(now, w), nil
}
