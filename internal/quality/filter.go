package quality

import "strings"

// Criteria is the user-selected filter state. The zero value of
// SymbolQuery matches everything; SeverityAll and AnomalyTypeAll are
// the sentinels for the two selectors.
type Criteria struct {
	SymbolQuery string      `json:"symbol_query"`
	Severity    Severity    `json:"severity"`
	Type        AnomalyType `json:"type"`
}

// DefaultCriteria matches everything
func DefaultCriteria() Criteria {
	return Criteria{
		Severity: SeverityAll,
		Type:     AnomalyTypeAll,
	}
}

// matchSymbol is a case-insensitive substring match on the symbol
func matchSymbol(symbol, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(symbol), strings.ToLower(query))
}

// FilterSymbols derives the displayed symbol subset. Output order is
// the insertion order of the input; running it twice with identical
// inputs yields identical output.
func FilterSymbols(symbols []SymbolQuality, c Criteria) ([]SymbolQuality, bool) {
	out := make([]SymbolQuality, 0, len(symbols))
	for _, s := range symbols {
		if matchSymbol(s.Symbol, c.SymbolQuery) {
			out = append(out, s)
		}
	}
	return out, len(out) == 0
}

// FilterAlerts derives the displayed alert subset by symbol and severity
func FilterAlerts(alerts []Anomaly, c Criteria) ([]Anomaly, bool) {
	out := make([]Anomaly, 0, len(alerts))
	for _, a := range alerts {
		if !matchSymbol(a.Symbol, c.SymbolQuery) {
			continue
		}
		if c.Severity != SeverityAll && a.Severity != c.Severity {
			continue
		}
		out = append(out, a)
	}
	return out, len(out) == 0
}

// FilterAnomalies derives the displayed anomaly feed by symbol,
// severity, and anomaly type
func FilterAnomalies(anomalies []Anomaly, c Criteria) ([]Anomaly, bool) {
	out := make([]Anomaly, 0, len(anomalies))
	for _, a := range anomalies {
		if !matchSymbol(a.Symbol, c.SymbolQuery) {
			continue
		}
		if c.Severity != SeverityAll && a.Severity != c.Severity {
			continue
		}
		if c.Type != AnomalyTypeAll && c.Type != "" && a.Type != c.Type {
			continue
		}
		out = append(out, a)
	}
	return out, len(out) == 0
}
