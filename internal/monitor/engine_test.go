package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/quality"
	"marketpulse/pkg/config"
	"marketpulse/pkg/logger"
	"marketpulse/pkg/redis"
)

type fakeSource struct {
	mu             sync.Mutex
	fetchFn        func(ctx context.Context) (*quality.Bundle, error)
	ackErrs        map[string]error
	acked          []string
	repairErr      error
	repaired       []string
	repairAllErr   error
	repairAllCalls int
}

func (f *fakeSource) FetchBundle(ctx context.Context) (*quality.Bundle, error) {
	f.mu.Lock()
	fn := f.fetchFn
	f.mu.Unlock()
	if fn == nil {
		return testBundle(90), nil
	}
	return fn(ctx)
}

func (f *fakeSource) AcknowledgeAnomaly(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, id)
	if err, ok := f.ackErrs[id]; ok {
		return err
	}
	return nil
}

func (f *fakeSource) RepairGap(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.repairErr != nil {
		return f.repairErr
	}
	f.repaired = append(f.repaired, id)
	return nil
}

func (f *fakeSource) RepairAllGaps(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repairAllCalls++
	return f.repairAllErr
}

func (f *fakeSource) setFetch(fn func(ctx context.Context) (*quality.Bundle, error)) {
	f.mu.Lock()
	f.fetchFn = fn
	f.mu.Unlock()
}

func (f *fakeSource) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

// testBundle builds a bundle with one gap and two unacknowledged alerts
func testBundle(score float64) *quality.Bundle {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	return &quality.Bundle{
		Snapshot: &quality.QualitySnapshot{
			OverallScore:        score,
			Grade:               quality.GradeOf(score),
			Status:              quality.StatusOf(score),
			CompletenessPercent: 98.5,
			AverageLatencyMs:    42,
			GapStats:            quality.GapStats{TotalGaps: 1},
			AnomalyStats:        quality.AnomalyStats{Unacknowledged: 2, Total: 2},
			GeneratedAt:         now,
		},
		Gaps: []quality.Gap{
			{ID: "BTC-USD:2026-08-29T10:00:00Z", Symbol: "BTC-USD", Start: now.Add(-2 * time.Hour), End: now.Add(-90 * time.Minute)},
		},
		Anomalies: []quality.Anomaly{
			{ID: "a1", Symbol: "ETH-USD", Type: quality.AnomalyVolumeSpike, Severity: quality.SeverityWarning, DetectedAt: now},
			{ID: "a2", Symbol: "SOL-USD", Type: quality.AnomalyStaleData, Severity: quality.SeverityError, DetectedAt: now},
		},
	}
}

func newTestEngine(src Source) (*Engine, chan View) {
	e := New(src, time.Minute, logger.NewNop())
	applied := make(chan View, 16)
	e.OnApply(func(v View) { applied <- v })
	return e, applied
}

func waitApply(t *testing.T, applied chan View) View {
	t.Helper()
	select {
	case v := <-applied:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state application")
		return View{}
	}
}

func TestRefreshAppliesBundle(t *testing.T) {
	src := &fakeSource{}
	e, applied := newTestEngine(src)

	_, loaded := e.View()
	assert.False(t, loaded, "state must be empty before the first refresh")

	e.Refresh()
	view := waitApply(t, applied)

	assert.False(t, view.Synthetic)
	assert.Equal(t, float64(90), view.Snapshot.OverallScore)
	assert.Equal(t, quality.GradeA, view.Snapshot.Grade)
	assert.Len(t, view.Gaps, 1)
	assert.Len(t, view.Alerts, 2)

	_, loaded = e.View()
	assert.True(t, loaded)
	assert.Equal(t, StateIdle, e.State())
}

func TestRefreshSkipsAcknowledgedAlerts(t *testing.T) {
	src := &fakeSource{}
	src.setFetch(func(context.Context) (*quality.Bundle, error) {
		b := testBundle(90)
		b.Anomalies[0].Acknowledged = true
		return b, nil
	})
	e, applied := newTestEngine(src)

	e.Refresh()
	view := waitApply(t, applied)

	require.Len(t, view.Alerts, 1)
	assert.Equal(t, "a2", view.Alerts[0].ID)
	assert.Len(t, view.Anomalies, 2, "full anomaly set keeps acknowledged entries")
}

func TestRefreshSupersedesInflightRequest(t *testing.T) {
	src := &fakeSource{}
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var callMu sync.Mutex

	src.setFetch(func(ctx context.Context) (*quality.Bundle, error) {
		callMu.Lock()
		calls++
		n := calls
		callMu.Unlock()

		if n == 1 {
			close(started)
			<-release
			// Late response from a superseded request
			return testBundle(40), nil
		}
		return testBundle(95), nil
	})

	e, applied := newTestEngine(src)

	e.Refresh()
	<-started
	e.Refresh()

	view := waitApply(t, applied)
	assert.Equal(t, float64(95), view.Snapshot.OverallScore)

	close(release)
	time.Sleep(50 * time.Millisecond)

	view, _ = e.View()
	assert.Equal(t, float64(95), view.Snapshot.OverallScore,
		"late first response must not overwrite the newer one")
	select {
	case v := <-applied:
		t.Fatalf("superseded request applied a view: %+v", v.Snapshot)
	default:
	}
}

func TestRefreshDegradesToSyntheticOnFirstFailure(t *testing.T) {
	src := &fakeSource{}
	src.setFetch(func(context.Context) (*quality.Bundle, error) {
		return nil, errors.New("connection refused")
	})
	e, applied := newTestEngine(src)

	e.Refresh()
	view := waitApply(t, applied)

	assert.True(t, view.Synthetic)
	assert.NotEmpty(t, view.Snapshot.Symbols)
	assert.NotEmpty(t, view.Gaps)
	assert.NotEmpty(t, view.Alerts)

	_, loaded := e.View()
	assert.True(t, loaded, "synthetic data still counts as loaded")
}

func TestRefreshKeepsLastGoodOnFailure(t *testing.T) {
	src := &fakeSource{}
	e, applied := newTestEngine(src)

	e.Refresh()
	view := waitApply(t, applied)
	require.False(t, view.Synthetic)

	src.setFetch(func(context.Context) (*quality.Bundle, error) {
		return nil, errors.New("backend down")
	})
	e.Refresh()
	view = waitApply(t, applied)

	assert.False(t, view.Synthetic, "a real snapshot must survive a failed refresh")
	assert.Equal(t, float64(90), view.Snapshot.OverallScore)
}

func TestRefreshRecoversFromSynthetic(t *testing.T) {
	src := &fakeSource{}
	src.setFetch(func(context.Context) (*quality.Bundle, error) {
		return nil, errors.New("backend down")
	})
	e, applied := newTestEngine(src)

	e.Refresh()
	view := waitApply(t, applied)
	require.True(t, view.Synthetic)

	src.setFetch(nil)
	e.Refresh()
	view = waitApply(t, applied)

	assert.False(t, view.Synthetic)
	assert.Equal(t, float64(90), view.Snapshot.OverallScore)
}

func TestAcknowledgeRemovesAlert(t *testing.T) {
	src := &fakeSource{}
	e, applied := newTestEngine(src)
	e.Refresh()
	waitApply(t, applied)

	err := e.Acknowledge(context.Background(), "a1")
	require.NoError(t, err)
	view := waitApply(t, applied)

	require.Len(t, view.Alerts, 1)
	assert.Equal(t, "a2", view.Alerts[0].ID)
	assert.Equal(t, 1, view.Snapshot.AnomalyStats.Unacknowledged)
	assert.Equal(t, []string{"a1"}, src.ackedIDs())
}

func TestAcknowledgeFailureKeepsAlert(t *testing.T) {
	src := &fakeSource{ackErrs: map[string]error{"a1": errors.New("boom")}}
	e, applied := newTestEngine(src)
	e.Refresh()
	waitApply(t, applied)

	err := e.Acknowledge(context.Background(), "a1")
	require.Error(t, err)

	view, _ := e.View()
	assert.Len(t, view.Alerts, 2, "failed acknowledge must not change local state")
	assert.Equal(t, 2, view.Snapshot.AnomalyStats.Unacknowledged)
}

func TestAcknowledgeAllClearsDespiteFailures(t *testing.T) {
	src := &fakeSource{ackErrs: map[string]error{"a2": errors.New("boom")}}
	e, applied := newTestEngine(src)
	e.Refresh()
	waitApply(t, applied)

	res := e.AcknowledgeAll(context.Background())
	view := waitApply(t, applied)

	assert.Equal(t, ActionResult{Attempted: 2, Failed: 1}, res)
	assert.Empty(t, view.Alerts, "bulk clear empties the list even on partial failure")
	assert.Equal(t, 0, view.Snapshot.AnomalyStats.Unacknowledged)
}

func TestRepairGapRemovesGap(t *testing.T) {
	src := &fakeSource{}
	e, applied := newTestEngine(src)
	e.Refresh()
	waitApply(t, applied)

	gapID := "BTC-USD:2026-08-29T10:00:00Z"
	err := e.RepairGap(context.Background(), gapID)
	require.NoError(t, err)
	view := waitApply(t, applied)

	assert.Empty(t, view.Gaps)
	assert.Equal(t, 0, view.Snapshot.GapStats.TotalGaps)
}

func TestRepairGapFailureKeepsGap(t *testing.T) {
	src := &fakeSource{repairErr: errors.New("boom")}
	e, applied := newTestEngine(src)
	e.Refresh()
	waitApply(t, applied)

	err := e.RepairGap(context.Background(), "BTC-USD:2026-08-29T10:00:00Z")
	require.Error(t, err)

	view, _ := e.View()
	assert.Len(t, view.Gaps, 1)
}

func TestRepairAllGapsClearsGaps(t *testing.T) {
	src := &fakeSource{}
	e, applied := newTestEngine(src)
	e.Refresh()
	waitApply(t, applied)

	err := e.RepairAllGaps(context.Background())
	require.NoError(t, err)
	view := waitApply(t, applied)

	assert.Empty(t, view.Gaps)
	assert.Equal(t, 0, view.Snapshot.GapStats.TotalGaps)
	assert.Equal(t, 1, src.repairAllCalls)
}

func TestPendingRemovalBlocksResurrection(t *testing.T) {
	src := &fakeSource{}
	e, applied := newTestEngine(src)
	e.Refresh()
	waitApply(t, applied)

	require.NoError(t, e.Acknowledge(context.Background(), "a1"))
	waitApply(t, applied)

	gapID := "BTC-USD:2026-08-29T10:00:00Z"
	require.NoError(t, e.RepairGap(context.Background(), gapID))
	waitApply(t, applied)

	// Backend still reports both until its own state catches up
	e.Refresh()
	view := waitApply(t, applied)

	assert.Empty(t, view.Gaps, "repaired gap resurrected by stale refresh")
	require.Len(t, view.Alerts, 1)
	assert.Equal(t, "a2", view.Alerts[0].ID, "acknowledged alert resurrected by stale refresh")
}

func TestPendingRemovalExpires(t *testing.T) {
	src := &fakeSource{}
	e, applied := newTestEngine(src)
	e.pendingTTL = 10 * time.Millisecond

	e.Refresh()
	waitApply(t, applied)

	require.NoError(t, e.Acknowledge(context.Background(), "a1"))
	waitApply(t, applied)

	time.Sleep(20 * time.Millisecond)

	// After the TTL the backend is authoritative again
	e.Refresh()
	view := waitApply(t, applied)
	assert.Len(t, view.Alerts, 2)
}

func TestFilteredAppliesCriteria(t *testing.T) {
	src := &fakeSource{}
	e, applied := newTestEngine(src)
	e.Refresh()
	waitApply(t, applied)

	e.SetCriteria(quality.Criteria{
		SymbolQuery: "eth",
		Severity:    quality.SeverityAll,
		Type:        quality.AnomalyTypeAll,
	})

	fv := e.Filtered()
	require.Len(t, fv.Alerts, 1)
	assert.Equal(t, "a1", fv.Alerts[0].ID)
	assert.False(t, fv.AlertsEmpty)

	e.SetCriteria(quality.Criteria{
		SymbolQuery: "eth",
		Severity:    quality.SeverityCritical,
		Type:        quality.AnomalyTypeAll,
	})
	fv = e.Filtered()
	assert.Empty(t, fv.Alerts)
	assert.True(t, fv.AlertsEmpty)
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{}
	e, applied := newTestEngine(src)

	e.Start()
	waitApply(t, applied)
	e.Stop()

	view, loaded := e.View()
	assert.True(t, loaded)
	assert.Equal(t, float64(90), view.Snapshot.OverallScore)

	// Idempotent
	e.Stop()
}

func TestRefreshAfterStopIsNoop(t *testing.T) {
	src := &fakeSource{}
	e, applied := newTestEngine(src)

	e.Start()
	waitApply(t, applied)
	e.Stop()

	// Late triggers (an HTTP refresh racing shutdown) must not start
	// new work after Stop has begun waiting.
	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					e.Refresh()
				}
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh calls after stop did not return")
	}

	select {
	case v := <-applied:
		t.Fatalf("refresh after stop applied a view: %+v", v.Snapshot)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, StateIdle, e.State())
}

func TestStartWithDisabledCache(t *testing.T) {
	src := &fakeSource{}
	e, applied := newTestEngine(src)

	cacheClient, err := redis.New(&config.Config{})
	require.NoError(t, err)
	e.WithCache(redis.NewCache(cacheClient, "marketpulse"))

	e.Start()
	defer e.Stop()

	// A disabled cache must not produce a hydration apply; the first
	// view comes from the backend.
	view := waitApply(t, applied)
	assert.False(t, view.Synthetic)
	assert.Equal(t, float64(90), view.Snapshot.OverallScore)
}

func TestViewReturnsCopies(t *testing.T) {
	src := &fakeSource{}
	e, applied := newTestEngine(src)
	e.Refresh()
	waitApply(t, applied)

	v1, _ := e.View()
	v1.Alerts[0].ID = "mutated"
	v1.Gaps[0].Symbol = "mutated"

	v2, _ := e.View()
	assert.Equal(t, "a1", v2.Alerts[0].ID)
	assert.Equal(t, "BTC-USD", v2.Gaps[0].Symbol)
}

func TestTrendFallsBackToSynthetic(t *testing.T) {
	src := &fakeSource{}
	e, applied := newTestEngine(src)
	e.Refresh()
	waitApply(t, applied)

	points, err := e.Trend(context.Background(), quality.Window24h)
	require.NoError(t, err)
	assert.NotEmpty(t, points, "no history store wired, synthetic trend expected")
	for i, p := range points {
		assert.NotEmpty(t, p.Label, fmt.Sprintf("point %d has no label", i))
		assert.GreaterOrEqual(t, p.Score, float64(0))
		assert.LessOrEqual(t, p.Score, float64(100))
	}
}
