package quality

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Grade is a letter grade derived from a health score
type Grade string

const (
	GradeAPlus  Grade = "A+"
	GradeA      Grade = "A"
	GradeAMinus Grade = "A-"
	GradeBPlus  Grade = "B+"
	GradeB      Grade = "B"
	GradeBMinus Grade = "B-"
	GradeCPlus  Grade = "C+"
	GradeC      Grade = "C"
	GradeCMinus Grade = "C-"
	GradeD      Grade = "D"
	GradeF      Grade = "F"
)

// Status classifies an overall health score into a coarse display band
type Status int

const (
	StatusCritical Status = iota
	StatusWarning
	StatusHealthy
	StatusExcellent
)

var statusNames = []string{"Critical", "Warning", "Healthy", "Excellent"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "Critical"
	}
	return statusNames[s]
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	v, err := enumFromJSON(data, statusNames)
	if err != nil {
		return err
	}
	*s = Status(v)
	return nil
}

// HealthState is the per-symbol health classification
type HealthState int

const (
	HealthHealthy HealthState = iota
	HealthDegraded
	HealthUnhealthy
	HealthStale
	HealthUnknown
)

var healthNames = []string{"Healthy", "Degraded", "Unhealthy", "Stale", "Unknown"}

func (h HealthState) String() string {
	if h < 0 || int(h) >= len(healthNames) {
		return "Unknown"
	}
	return healthNames[h]
}

func (h HealthState) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *HealthState) UnmarshalJSON(data []byte) error {
	v, err := enumFromJSON(data, healthNames)
	if err != nil {
		return err
	}
	*h = HealthState(v)
	return nil
}

// ParseHealthState accepts a name or a numeric index; anything else is Unknown
func ParseHealthState(v interface{}) HealthState {
	if idx, ok := enumIndex(v, healthNames); ok {
		return HealthState(idx)
	}
	return HealthUnknown
}

// Severity orders anomalies by operational urgency
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical

	// SeverityAll is a filter sentinel matching every severity
	SeverityAll Severity = -1
)

var severityNames = []string{"Info", "Warning", "Error", "Critical"}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return "Info"
	}
	return severityNames[s]
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	v, err := enumFromJSON(data, severityNames)
	if err != nil {
		return err
	}
	*s = Severity(v)
	return nil
}

// ParseSeverity accepts a name or a numeric index; anything else is Info
func ParseSeverity(v interface{}) Severity {
	if idx, ok := enumIndex(v, severityNames); ok {
		return Severity(idx)
	}
	return SeverityInfo
}

// AnomalyType labels the kind of data-quality violation detected.
// The set is closed; the parser falls back to the raw text for values
// outside the name table so nothing is silently dropped from display.
type AnomalyType string

const (
	AnomalyPriceSpike         AnomalyType = "PriceSpike"
	AnomalyPriceDrop          AnomalyType = "PriceDrop"
	AnomalyVolumeSpike        AnomalyType = "VolumeSpike"
	AnomalyVolumeDrop         AnomalyType = "VolumeDrop"
	AnomalySpreadWide         AnomalyType = "SpreadWide"
	AnomalyStaleData          AnomalyType = "StaleData"
	AnomalyRapidPriceChange   AnomalyType = "RapidPriceChange"
	AnomalyAbnormalVolatility AnomalyType = "AbnormalVolatility"
	AnomalyMissingData        AnomalyType = "MissingData"
	AnomalyDuplicateData      AnomalyType = "DuplicateData"
	AnomalyCrossedMarket      AnomalyType = "CrossedMarket"
	AnomalyInvalidPrice       AnomalyType = "InvalidPrice"
	AnomalyInvalidVolume      AnomalyType = "InvalidVolume"

	// AnomalyTypeAll is a filter sentinel matching every type
	AnomalyTypeAll AnomalyType = "All"
)

// anomalyTypeNames is the fixed index table used for numeric enum decoding
var anomalyTypeNames = []AnomalyType{
	AnomalyPriceSpike,
	AnomalyPriceDrop,
	AnomalyVolumeSpike,
	AnomalyVolumeDrop,
	AnomalySpreadWide,
	AnomalyStaleData,
	AnomalyRapidPriceChange,
	AnomalyAbnormalVolatility,
	AnomalyMissingData,
	AnomalyDuplicateData,
	AnomalyCrossedMarket,
	AnomalyInvalidPrice,
	AnomalyInvalidVolume,
}

// ParseAnomalyType accepts a canonical name (case-insensitive) or a
// numeric index into the fixed name table. Out-of-range indexes and
// unrecognized names keep the raw textual representation.
func ParseAnomalyType(v interface{}) AnomalyType {
	switch t := v.(type) {
	case string:
		for _, name := range anomalyTypeNames {
			if strings.EqualFold(string(name), t) {
				return name
			}
		}
		return AnomalyType(t)
	case float64:
		idx := int(t)
		if idx >= 0 && idx < len(anomalyTypeNames) {
			return anomalyTypeNames[idx]
		}
		return AnomalyType(fmt.Sprintf("%v", v))
	case int:
		if t >= 0 && t < len(anomalyTypeNames) {
			return anomalyTypeNames[t]
		}
		return AnomalyType(fmt.Sprintf("%d", t))
	case nil:
		return ""
	default:
		return AnomalyType(fmt.Sprintf("%v", v))
	}
}

// QualitySnapshot is one complete, internally consistent set of quality
// metrics, replaced wholesale on each successful refresh.
type QualitySnapshot struct {
	OverallScore        float64             `json:"overall_score"`
	Grade               Grade               `json:"grade"`
	Status              Status              `json:"status"`
	CompletenessPercent float64             `json:"completeness_percent"`
	AverageLatencyMs    float64             `json:"average_latency_ms"`
	Symbols             []SymbolQuality     `json:"symbols"`
	GapStats            GapStats            `json:"gap_stats"`
	AnomalyStats        AnomalyStats        `json:"anomaly_stats"`
	Latency             LatencyStats        `json:"latency"`
	GeneratedAt         time.Time           `json:"generated_at"`
}

// GapStats aggregates gap counts across all symbols
type GapStats struct {
	TotalGaps int `json:"total_gaps"`
}

// AnomalyStats aggregates anomaly counts across all symbols
type AnomalyStats struct {
	Unacknowledged int                 `json:"unacknowledged"`
	Total          int64               `json:"total"`
	ByType         map[AnomalyType]int `json:"by_type,omitempty"`
}

// LatencyStats carries the global latency percentiles
type LatencyStats struct {
	P50Ms  float64 `json:"p50_ms"`
	MeanMs float64 `json:"mean_ms"`
	P90Ms  float64 `json:"p90_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// SymbolQuality is the per-symbol health record
type SymbolQuality struct {
	Symbol       string      `json:"symbol"`
	Score        float64     `json:"score"`
	Grade        Grade       `json:"grade"`
	Status       HealthState `json:"status"`
	ActiveIssues string      `json:"active_issues"`
	LastEventAt  time.Time   `json:"last_event_at"`
}

// Gap is a detected interval of missing expected market-data events
type Gap struct {
	ID                     string    `json:"id"`
	Symbol                 string    `json:"symbol"`
	Start                  time.Time `json:"start"`
	End                    time.Time `json:"end"`
	EstimatedMissingEvents int64     `json:"estimated_missing_events"`
	DurationBucket         string    `json:"duration_bucket"`
}

// Duration returns the gap span, never negative even when the backend
// reports end before start.
func (g Gap) Duration() time.Duration {
	if g.End.Before(g.Start) {
		return 0
	}
	return g.End.Sub(g.Start)
}

// Anomaly is a detected data-quality violation. Alerts are the
// acknowledgeable subset surfaced to an operator.
type Anomaly struct {
	ID           string      `json:"id"`
	Symbol       string      `json:"symbol"`
	Type         AnomalyType `json:"type"`
	Severity     Severity    `json:"severity"`
	Description  string      `json:"description"`
	DetectedAt   time.Time   `json:"detected_at"`
	Acknowledged bool        `json:"acknowledged"`
}

// TrendPoint is one bucketed score sample for the trend display.
// Ephemeral: recomputed per window selection, never persisted.
type TrendPoint struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

// Bundle is everything one refresh cycle fetches from the backend
type Bundle struct {
	Snapshot  *QualitySnapshot `json:"snapshot"`
	Gaps      []Gap            `json:"gaps"`
	Anomalies []Anomaly        `json:"anomalies"`
}

// Window selects the trend time range
type Window string

const (
	Window1h  Window = "1h"
	Window24h Window = "24h"
	Window7d  Window = "7d"
	Window30d Window = "30d"
)

// ParseWindow returns the window named by s, defaulting to 24h
func ParseWindow(s string) Window {
	switch strings.ToLower(s) {
	case "1h":
		return Window1h
	case "24h", "":
		return Window24h
	case "7d":
		return Window7d
	case "30d":
		return Window30d
	default:
		return Window24h
	}
}

// Duration returns the time range the window covers
func (w Window) Duration() time.Duration {
	switch w {
	case Window1h:
		return time.Hour
	case Window7d:
		return 7 * 24 * time.Hour
	case Window30d:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Step returns the bucket width used when sampling the window
func (w Window) Step() time.Duration {
	switch w {
	case Window1h:
		return 5 * time.Minute
	case Window7d:
		return 24 * time.Hour
	case Window30d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// Label formats a bucket timestamp for the window's granularity
func (w Window) Label(t time.Time) string {
	if w == Window1h || w == Window24h {
		return t.Format("15:04")
	}
	return t.Format("Jan 2")
}

// enumIndex resolves a loosely-typed enum value against a name table
func enumIndex[T ~string](v interface{}, names []T) (int, bool) {
	switch t := v.(type) {
	case string:
		for i, name := range names {
			if strings.EqualFold(string(name), t) {
				return i, true
			}
		}
	case float64:
		idx := int(t)
		if idx >= 0 && idx < len(names) {
			return idx, true
		}
	case int:
		if t >= 0 && t < len(names) {
			return t, true
		}
	}
	return 0, false
}

// enumFromJSON decodes a JSON enum that may be a name or an index
func enumFromJSON[T ~string](data []byte, names []T) (int, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, err
	}
	if idx, ok := enumIndex(raw, names); ok {
		return idx, nil
	}
	return 0, nil
}
