package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"marketpulse/internal/history"
	"marketpulse/internal/quality"
	"marketpulse/pkg/logger"
	"marketpulse/pkg/redis"
)

// Source is the backend the engine polls and acts against
type Source interface {
	FetchBundle(ctx context.Context) (*quality.Bundle, error)
	AcknowledgeAnomaly(ctx context.Context, id string) error
	RepairGap(ctx context.Context, id string) error
	RepairAllGaps(ctx context.Context) error
}

// History persists refresh scores and serves trend buckets
type History interface {
	InsertScore(ctx context.Context, rec history.ScoreRecord) error
	TrendPoints(ctx context.Context, w quality.Window, now time.Time) ([]quality.TrendPoint, error)
}

// State names the refresh cycle phase
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
)

// View is one atomic read of the aggregate state. Slices are copies;
// callers may hold them across refreshes.
type View struct {
	Snapshot  quality.QualitySnapshot `json:"snapshot"`
	Synthetic bool                    `json:"synthetic"`
	FetchedAt time.Time               `json:"fetched_at"`
	Gaps      []quality.Gap           `json:"gaps"`
	Alerts    []quality.Anomaly       `json:"alerts"`
	Anomalies []quality.Anomaly       `json:"anomalies"`
}

// FilteredView is the filter pipeline output for the current criteria
type FilteredView struct {
	Criteria       quality.Criteria        `json:"criteria"`
	Symbols        []quality.SymbolQuality `json:"symbols"`
	SymbolsEmpty   bool                    `json:"symbols_empty"`
	Alerts         []quality.Anomaly       `json:"alerts"`
	AlertsEmpty    bool                    `json:"alerts_empty"`
	Anomalies      []quality.Anomaly       `json:"anomalies"`
	AnomaliesEmpty bool                    `json:"anomalies_empty"`
}

// Listener receives every applied view (real, cached, or synthetic)
type Listener func(View)

const cacheKeyLastGood = "snapshot:last_good"

// cachedBundle is the redis representation of the last good refresh
type cachedBundle struct {
	Bundle    quality.Bundle `json:"bundle"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Engine owns the aggregate state: the current snapshot, the gap and
// alert sets, the filter criteria, and the refresh cycle that feeds
// them. All mutation happens under one mutex; every backend fetch is
// cancellable and superseded by the next one.
type Engine struct {
	source   Source
	logger   *logger.Logger
	interval time.Duration

	cache   *redis.Cache
	history History

	mu          sync.Mutex
	state       State
	snap        *quality.QualitySnapshot
	synthetic   bool
	fetchedAt   time.Time
	gaps        []quality.Gap
	alerts      []quality.Anomaly
	anomalies   []quality.Anomaly
	criteria    quality.Criteria
	pending     map[string]time.Time // id -> removal expiry
	pendingTTL  time.Duration
	generation  uint64
	cancelFetch context.CancelFunc
	loaded      bool

	runCtx    context.Context
	runCancel context.CancelFunc
	running   bool
	stopped   bool
	wg        sync.WaitGroup

	listenerMu sync.Mutex
	listeners  []Listener
}

// New creates an engine polling src every interval
func New(src Source, interval time.Duration, log *logger.Logger) *Engine {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Engine{
		source:     src,
		logger:     log,
		interval:   interval,
		state:      StateIdle,
		criteria:   quality.DefaultCriteria(),
		pending:    make(map[string]time.Time),
		pendingTTL: 2 * interval,
	}
}

// WithCache enables the last-known-good snapshot cache
func (e *Engine) WithCache(cache *redis.Cache) *Engine {
	e.cache = cache
	return e
}

// WithHistory enables score persistence and real trend buckets
func (e *Engine) WithHistory(h History) *Engine {
	e.history = h
	return e
}

// OnApply registers a listener invoked after every state application
func (e *Engine) OnApply(fn Listener) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Start begins the refresh loop. Safe to call once per engine.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.runCtx, e.runCancel = context.WithCancel(context.Background())
	ctx := e.runCtx
	e.mu.Unlock()

	e.wg.Add(1)
	go e.loop(ctx)
}

// Stop cancels any in-flight fetch and waits for the loop to exit
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.stopped = true
	cancel := e.runCancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.logger.Info("Monitor engine stopped")
}

// loop drives the refresh cadence
func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()

	e.hydrateFromCache(ctx)
	e.Refresh()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Refresh()
		}
	}
}

// Refresh issues a new refresh cycle. A still-running previous request
// is cancelled first: the latest requested refresh always wins, even
// when responses arrive out of order. Timer ticks and manual refreshes
// share this path and therefore the same cancellation.
func (e *Engine) Refresh() {
	e.mu.Lock()
	// Once stopped, late callers (an HTTP trigger racing shutdown, a
	// final ticker fire) must not add to the WaitGroup being waited on.
	if e.stopped {
		e.mu.Unlock()
		return
	}
	if e.cancelFetch != nil {
		e.cancelFetch()
	}
	e.generation++
	gen := e.generation

	parent := e.runCtx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	e.cancelFetch = cancel
	e.state = StateRequesting
	e.wg.Add(1)
	e.mu.Unlock()

	go e.doRefresh(ctx, cancel, gen)
}

// doRefresh runs one fetch and applies its result unless superseded
func (e *Engine) doRefresh(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer e.wg.Done()
	defer cancel()

	bundle, err := e.source.FetchBundle(ctx)

	// A superseded request must not apply its stale result; its
	// cancellation is expected control flow, not an error.
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return
	}

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	e.cancelFetch = nil
	e.state = StateIdle

	var view View
	if err != nil {
		view = e.degradeLocked(err)
	} else {
		view = e.applyLocked(bundle, false, time.Now())
	}
	e.mu.Unlock()

	e.notify(view)

	if err == nil {
		e.persist(view)
	}
}

// degradeLocked handles a failed refresh: keep the last known good
// snapshot if there is one, otherwise fabricate a synthetic one so the
// display is never blank.
func (e *Engine) degradeLocked(cause error) View {
	e.logger.WithError(cause).Warn("Refresh failed, entering degraded mode")

	if e.loaded && !e.synthetic {
		// Last known good stays on screen
		return e.viewLocked()
	}

	now := time.Now()
	return e.applyLocked(quality.SyntheticBundle(now), true, now)
}

// applyLocked replaces the aggregate state wholesale with one bundle,
// merging the pending-removal set so locally repaired gaps and
// acknowledged alerts are not resurrected by a stale response.
func (e *Engine) applyLocked(bundle *quality.Bundle, synthetic bool, now time.Time) View {
	e.prunePendingLocked(now)

	e.snap = bundle.Snapshot
	e.synthetic = synthetic
	e.fetchedAt = now
	e.loaded = true

	gaps := make([]quality.Gap, 0, len(bundle.Gaps))
	for _, g := range bundle.Gaps {
		if _, removed := e.pending[g.ID]; removed {
			continue
		}
		gaps = append(gaps, g)
	}
	e.gaps = gaps

	alerts := make([]quality.Anomaly, 0, len(bundle.Anomalies))
	for _, a := range bundle.Anomalies {
		if a.Acknowledged {
			continue
		}
		if _, removed := e.pending[a.ID]; removed {
			continue
		}
		alerts = append(alerts, a)
	}
	e.alerts = alerts

	e.anomalies = append([]quality.Anomaly(nil), bundle.Anomalies...)

	return e.viewLocked()
}

// prunePendingLocked drops pending removals past their TTL; after that
// a full refresh reconciles with whatever the backend reports
func (e *Engine) prunePendingLocked(now time.Time) {
	for id, expiry := range e.pending {
		if now.After(expiry) {
			delete(e.pending, id)
		}
	}
}

// viewLocked snapshots the current state into an immutable View
func (e *Engine) viewLocked() View {
	view := View{
		Synthetic: e.synthetic,
		FetchedAt: e.fetchedAt,
		Gaps:      append([]quality.Gap(nil), e.gaps...),
		Alerts:    append([]quality.Anomaly(nil), e.alerts...),
		Anomalies: append([]quality.Anomaly(nil), e.anomalies...),
	}
	if e.snap != nil {
		view.Snapshot = *e.snap
	}
	return view
}

// View returns the current aggregate state. The second return is false
// until the first refresh (or cache hydration) has completed.
func (e *Engine) View() (View, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked(), e.loaded
}

// State returns the refresh cycle phase
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetCriteria replaces the filter criteria
func (e *Engine) SetCriteria(c quality.Criteria) {
	e.mu.Lock()
	e.criteria = c
	e.mu.Unlock()
}

// Criteria returns the current filter criteria
func (e *Engine) Criteria() quality.Criteria {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.criteria
}

// Filtered runs the filter pipeline over the current state. Pure in
// (state, criteria): identical inputs give identical output order.
func (e *Engine) Filtered() FilteredView {
	e.mu.Lock()
	c := e.criteria
	view := e.viewLocked()
	e.mu.Unlock()

	fv := FilteredView{Criteria: c}
	fv.Symbols, fv.SymbolsEmpty = quality.FilterSymbols(view.Snapshot.Symbols, c)
	fv.Alerts, fv.AlertsEmpty = quality.FilterAlerts(view.Alerts, c)
	fv.Anomalies, fv.AnomaliesEmpty = quality.FilterAnomalies(view.Anomalies, c)
	return fv
}

// hydrateFromCache seeds the state with the last good snapshot from a
// previous run, so a cold start against a dead backend shows real data
// before the synthetic fallback kicks in.
func (e *Engine) hydrateFromCache(ctx context.Context) {
	if e.cache == nil {
		return
	}

	getCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var cached cachedBundle
	found, err := e.cache.Get(getCtx, cacheKeyLastGood, &cached)
	if err != nil {
		e.logger.WithError(err).Warn("Snapshot cache read failed")
		return
	}
	if !found || cached.Bundle.Snapshot == nil {
		return
	}

	e.mu.Lock()
	if e.loaded {
		e.mu.Unlock()
		return
	}
	view := e.applyLocked(&cached.Bundle, false, cached.FetchedAt)
	e.mu.Unlock()

	e.logger.WithField("fetched_at", cached.FetchedAt).Info("Hydrated snapshot from cache")
	e.notify(view)
}

// persist records a successful refresh in the history store and in the
// last-known-good cache. Failures are logged, never propagated: the
// refresh already succeeded.
func (e *Engine) persist(view View) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if e.history != nil {
		rec := history.ScoreRecord{
			RecordedAt:          view.FetchedAt,
			OverallScore:        view.Snapshot.OverallScore,
			CompletenessPercent: view.Snapshot.CompletenessPercent,
			AverageLatencyMs:    view.Snapshot.AverageLatencyMs,
		}
		if err := e.history.InsertScore(ctx, rec); err != nil {
			e.logger.WithError(err).Warn("History insert failed")
		}
	}

	if e.cache != nil {
		cached := cachedBundle{
			Bundle: quality.Bundle{
				Snapshot:  &view.Snapshot,
				Gaps:      view.Gaps,
				Anomalies: view.Anomalies,
			},
			FetchedAt: view.FetchedAt,
		}
		if err := e.cache.Set(ctx, cacheKeyLastGood, cached, redis.TTLSnapshot); err != nil {
			e.logger.WithError(err).Warn("Snapshot cache write failed")
		}
	}
}

// notify fans a view out to the registered listeners
func (e *Engine) notify(view View) {
	e.listenerMu.Lock()
	listeners := append([]Listener(nil), e.listeners...)
	e.listenerMu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
}
