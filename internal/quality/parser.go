package quality

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseError signals that a backend payload envelope could not be
// decoded at all. Individual malformed fields never produce one; they
// fall back to documented defaults so a single bad field cannot blank
// the whole snapshot.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseDashboard converts the raw /api/quality/dashboard payload into a
// QualitySnapshot. now becomes the snapshot's GeneratedAt.
func ParseDashboard(data []byte, now time.Time) (*QualitySnapshot, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{What: "dashboard", Err: err}
	}

	snap := &QualitySnapshot{GeneratedAt: now}

	rtm := getMap(raw, "realTimeMetrics", "real_time_metrics")
	snap.OverallScore = scaleScore(getFloat(rtm, "overallHealthScore", "overall_health_score"))
	snap.AverageLatencyMs = getFloat(rtm, "averageLatencyMs", "average_latency_ms")
	snap.Grade = GradeOf(snap.OverallScore)
	snap.Status = StatusOf(snap.OverallScore)

	for _, item := range getSlice(rtm, "symbolHealth", "symbol_health") {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		snap.Symbols = append(snap.Symbols, parseSymbolQuality(m))
	}

	completeness := getMap(raw, "completenessStats", "completeness_stats")
	snap.CompletenessPercent = scaleScore(getFloat(completeness, "averageScore", "average_score"))

	gapStats := getMap(raw, "gapStats", "gap_stats")
	snap.GapStats = GapStats{
		TotalGaps: int(getFloat(gapStats, "totalGaps", "total_gaps")),
	}

	anomalyStats := getMap(raw, "anomalyStats", "anomaly_stats")
	snap.AnomalyStats = AnomalyStats{
		Unacknowledged: int(getFloat(anomalyStats, "unacknowledgedCount", "unacknowledged_count")),
		Total:          int64(getFloat(anomalyStats, "totalAnomalies", "total_anomalies")),
	}
	if byType := getMap(anomalyStats, "anomaliesByType", "anomalies_by_type"); len(byType) > 0 {
		snap.AnomalyStats.ByType = make(map[AnomalyType]int, len(byType))
		for k, v := range byType {
			snap.AnomalyStats.ByType[ParseAnomalyType(k)] += int(asFloat(v))
		}
	}

	return snap, nil
}

// parseSymbolQuality reads one symbolHealth entry. Every field is
// optional-with-default; an unparseable score yields 0 and Unknown.
func parseSymbolQuality(m map[string]interface{}) SymbolQuality {
	score := scaleScore(getFloat(m, "healthScore", "health_score", "score"))

	sq := SymbolQuality{
		Symbol:      strings.ToUpper(getString(m, "symbol")),
		Score:       score,
		Grade:       GradeOf(score),
		Status:      ParseHealthState(lookup(m, "status", "healthState", "health_state")),
		LastEventAt: getTime(m, "lastEventAt", "last_event_at", "lastEventTime", "lastUpdate"),
	}

	issues := getSlice(m, "activeIssues", "active_issues", "issues")
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		if s, ok := issue.(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		if s := getString(m, "activeIssues", "active_issues"); s != "" {
			parts = append(parts, s)
		}
	}
	sq.ActiveIssues = joinIssues(parts)

	return sq
}

// joinIssues renders the issue list as a single display string
func joinIssues(parts []string) string {
	if len(parts) == 0 {
		return "—"
	}
	return strings.Join(parts, ", ")
}

// ParseGaps converts the raw /api/quality/gaps payload
func ParseGaps(data []byte) ([]Gap, error) {
	var raw []map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{What: "gaps", Err: err}
	}

	gaps := make([]Gap, 0, len(raw))
	for _, m := range raw {
		g := Gap{
			ID:                     getString(m, "id", "gapId", "gap_id"),
			Symbol:                 strings.ToUpper(getString(m, "symbol")),
			Start:                  getTime(m, "gapStart", "gap_start", "start"),
			End:                    getTime(m, "gapEnd", "gap_end", "end"),
			EstimatedMissingEvents: int64(getFloat(m, "estimatedMissedEvents", "estimated_missed_events", "estimatedMissingEvents")),
		}
		if g.ID == "" {
			// Stable identity when the backend omits one
			g.ID = fmt.Sprintf("%s:%s", g.Symbol, g.Start.UTC().Format(time.RFC3339))
		}
		g.DurationBucket = DurationBucket(g.Duration())
		gaps = append(gaps, g)
	}

	return gaps, nil
}

// ParseAnomalies converts the raw /api/quality/anomalies payload
func ParseAnomalies(data []byte) ([]Anomaly, error) {
	var raw []map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{What: "anomalies", Err: err}
	}

	anomalies := make([]Anomaly, 0, len(raw))
	for _, m := range raw {
		a := Anomaly{
			ID:           getString(m, "id", "anomalyId", "anomaly_id"),
			Symbol:       strings.ToUpper(getString(m, "symbol")),
			Type:         ParseAnomalyType(lookup(m, "type", "anomalyType", "anomaly_type")),
			Severity:     ParseSeverity(lookup(m, "severity")),
			Description:  getString(m, "description"),
			DetectedAt:   getTime(m, "detectedAt", "detected_at"),
			Acknowledged: getBool(m, "acknowledged", "isAcknowledged"),
		}
		if a.ID == "" {
			a.ID = fmt.Sprintf("%s:%s:%s", a.Symbol, a.Type, a.DetectedAt.UTC().Format(time.RFC3339))
		}
		anomalies = append(anomalies, a)
	}

	return anomalies, nil
}

// ParseLatency converts the raw /api/quality/latency/statistics payload
func ParseLatency(data []byte) (LatencyStats, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return LatencyStats{}, &ParseError{What: "latency statistics", Err: err}
	}

	return LatencyStats{
		P50Ms:  getFloat(raw, "globalP50Ms", "global_p50_ms", "p50Ms"),
		MeanMs: getFloat(raw, "globalMeanMs", "global_mean_ms", "meanMs"),
		P90Ms:  getFloat(raw, "globalP90Ms", "global_p90_ms", "p90Ms"),
		P99Ms:  getFloat(raw, "globalP99Ms", "global_p99_ms", "p99Ms"),
	}, nil
}

// scaleScore converts a backend fractional score in [0,1] to [0,100]
func scaleScore(fraction float64) float64 {
	return ClampScore(fraction * 100)
}

// Loose-field accessors. The backend renames fields between versions,
// so every read tries the known aliases and defaults on a miss.

func lookup(m map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return nil
}

func getMap(m map[string]interface{}, keys ...string) map[string]interface{} {
	if v, ok := lookup(m, keys...).(map[string]interface{}); ok {
		return v
	}
	return nil
}

func getSlice(m map[string]interface{}, keys ...string) []interface{} {
	if v, ok := lookup(m, keys...).([]interface{}); ok {
		return v
	}
	return nil
}

func getString(m map[string]interface{}, keys ...string) string {
	if v, ok := lookup(m, keys...).(string); ok {
		return v
	}
	return ""
}

func getBool(m map[string]interface{}, keys ...string) bool {
	if v, ok := lookup(m, keys...).(bool); ok {
		return v
	}
	return false
}

func getFloat(m map[string]interface{}, keys ...string) float64 {
	return asFloat(lookup(m, keys...))
}

func asFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
	}
	return 0
}

func getTime(m map[string]interface{}, keys ...string) time.Time {
	s, ok := lookup(m, keys...).(string)
	if !ok {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
