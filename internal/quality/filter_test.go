package quality

import (
	"reflect"
	"testing"
	"time"
)

func testSymbols() []SymbolQuality {
	return []SymbolQuality{
		{Symbol: "BTC-USD", Score: 97},
		{Symbol: "ETH-USD", Score: 88},
		{Symbol: "AAPL", Score: 72},
		{Symbol: "MSFT", Score: 95},
	}
}

func testAnomalies() []Anomaly {
	at := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	return []Anomaly{
		{ID: "a1", Symbol: "BTC-USD", Type: AnomalyVolumeSpike, Severity: SeverityWarning, DetectedAt: at},
		{ID: "a2", Symbol: "ETH-USD", Type: AnomalyStaleData, Severity: SeverityError, DetectedAt: at},
		{ID: "a3", Symbol: "AAPL", Type: AnomalyPriceSpike, Severity: SeverityCritical, DetectedAt: at},
		{ID: "a4", Symbol: "BTC-USD", Type: AnomalyPriceDrop, Severity: SeverityInfo, DetectedAt: at},
	}
}

func TestFilterSymbols(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		want      []string
		wantEmpty bool
	}{
		{"no query matches all", "", []string{"BTC-USD", "ETH-USD", "AAPL", "MSFT"}, false},
		{"substring match", "usd", []string{"BTC-USD", "ETH-USD"}, false},
		{"case insensitive", "aApL", []string{"AAPL"}, false},
		{"no match", "DOGE", []string{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultCriteria()
			c.SymbolQuery = tt.query

			got, empty := FilterSymbols(testSymbols(), c)
			if empty != tt.wantEmpty {
				t.Errorf("empty = %v, want %v", empty, tt.wantEmpty)
			}

			symbols := make([]string, 0, len(got))
			for _, s := range got {
				symbols = append(symbols, s.Symbol)
			}
			if len(symbols) != len(tt.want) {
				t.Fatalf("got %v, want %v", symbols, tt.want)
			}
			for i := range tt.want {
				if symbols[i] != tt.want[i] {
					t.Errorf("got %v, want %v", symbols, tt.want)
					break
				}
			}
		})
	}
}

func TestFilterAlertsBySeverity(t *testing.T) {
	c := DefaultCriteria()
	c.Severity = SeverityError

	got, empty := FilterAlerts(testAnomalies(), c)
	if empty {
		t.Fatal("expected matches")
	}
	if len(got) != 1 || got[0].ID != "a2" {
		t.Errorf("expected only a2, got %v", got)
	}

	// The All sentinel matches everything
	c.Severity = SeverityAll
	got, _ = FilterAlerts(testAnomalies(), c)
	if len(got) != 4 {
		t.Errorf("expected 4 alerts with SeverityAll, got %d", len(got))
	}
}

func TestFilterAnomaliesByType(t *testing.T) {
	c := DefaultCriteria()
	c.Type = AnomalyPriceDrop

	got, _ := FilterAnomalies(testAnomalies(), c)
	if len(got) != 1 || got[0].ID != "a4" {
		t.Errorf("expected only a4, got %v", got)
	}
}

func TestFilterCombinedCriteria(t *testing.T) {
	c := Criteria{SymbolQuery: "btc", Severity: SeverityWarning, Type: AnomalyTypeAll}

	got, empty := FilterAnomalies(testAnomalies(), c)
	if empty || len(got) != 1 || got[0].ID != "a1" {
		t.Errorf("expected only a1, got %v", got)
	}
}

// Running the pipeline twice with unchanged state and criteria must
// yield identical output, order included.
func TestFilterIdempotence(t *testing.T) {
	c := Criteria{SymbolQuery: "usd", Severity: SeverityAll, Type: AnomalyTypeAll}
	anomalies := testAnomalies()

	first, firstEmpty := FilterAnomalies(anomalies, c)
	second, secondEmpty := FilterAnomalies(anomalies, c)

	if !reflect.DeepEqual(first, second) || firstEmpty != secondEmpty {
		t.Errorf("filter is not idempotent: %v vs %v", first, second)
	}

	symFirst, _ := FilterSymbols(testSymbols(), c)
	symSecond, _ := FilterSymbols(testSymbols(), c)
	if !reflect.DeepEqual(symFirst, symSecond) {
		t.Errorf("symbol filter is not idempotent")
	}
}

func TestFilterEmptySignal(t *testing.T) {
	c := DefaultCriteria()
	c.SymbolQuery = "nothing-matches"

	_, symEmpty := FilterSymbols(testSymbols(), c)
	_, alertEmpty := FilterAlerts(testAnomalies(), c)
	_, anomalyEmpty := FilterAnomalies(testAnomalies(), c)

	if !symEmpty || !alertEmpty || !anomalyEmpty {
		t.Error("expected all empty signals to be true")
	}

	// Empty input is empty output, not nil panic
	got, empty := FilterAlerts(nil, DefaultCriteria())
	if !empty || len(got) != 0 {
		t.Error("expected empty result for nil input")
	}
}
