package quality

import (
	"testing"
	"time"
)

func TestGradeOf(t *testing.T) {
	tests := []struct {
		score float64
		want  Grade
	}{
		{100, GradeAPlus},
		{95, GradeAPlus},
		{94.9, GradeA},
		{90, GradeA},
		{89.9, GradeAMinus},
		{85, GradeAMinus},
		{80, GradeBPlus},
		{75, GradeB},
		{70, GradeBMinus},
		{65, GradeCPlus},
		{60, GradeC},
		{55, GradeCMinus},
		{50, GradeD},
		{49.9, GradeF},
		{0, GradeF},
		{-10, GradeF},     // clamped
		{150, GradeAPlus}, // clamped
	}

	for _, tt := range tests {
		if got := GradeOf(tt.score); got != tt.want {
			t.Errorf("GradeOf(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		score float64
		want  Status
	}{
		{100, StatusExcellent},
		{90, StatusExcellent},
		{89.9, StatusHealthy},
		{75, StatusHealthy},
		{74.9, StatusWarning},
		{50, StatusWarning},
		{49.9, StatusCritical},
		{0, StatusCritical},
	}

	for _, tt := range tests {
		if got := StatusOf(tt.score); got != tt.want {
			t.Errorf("StatusOf(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

// Every value in [0,100] must map to exactly one grade and one status:
// the bands are contiguous and non-overlapping with no gaps.
func TestBandsPartitionScoreRange(t *testing.T) {
	for s := 0.0; s <= 100.0; s += 0.1 {
		grade := GradeOf(s)
		if grade == "" {
			t.Fatalf("GradeOf(%v) returned empty grade", s)
		}

		status := StatusOf(s)
		if status < StatusCritical || status > StatusExcellent {
			t.Fatalf("StatusOf(%v) = %v out of range", s, status)
		}
	}
}

func TestSeverityClass(t *testing.T) {
	tests := []struct {
		sev  Severity
		want string
	}{
		{SeverityCritical, "error"},
		{SeverityError, "error"},
		{SeverityWarning, "warning"},
		{SeverityInfo, "info"},
	}

	for _, tt := range tests {
		if got := SeverityClass(tt.sev); got != tt.want {
			t.Errorf("SeverityClass(%v) = %q, want %q", tt.sev, got, tt.want)
		}
	}
}

func TestDurationBucket(t *testing.T) {
	tests := []struct {
		name string
		span time.Duration
		want string
	}{
		{"36h takes the days branch", 36 * time.Hour, "1 days"},
		{"exactly 24h is a day", 24 * time.Hour, "1 days"},
		{"just under 24h stays hours", 24*time.Hour - time.Minute, "23 hours"},
		{"90 minutes floors to 1 hour", 90 * time.Minute, "1 hours"},
		{"sub-hour in minutes", 45 * time.Minute, "45 mins"},
		{"90 seconds floors to 1 min", 90 * time.Second, "1 mins"},
		{"zero", 0, "0 mins"},
		{"negative treated as zero", -time.Hour, "0 mins"},
		{"multi-day", 73 * time.Hour, "3 days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DurationBucket(tt.span); got != tt.want {
				t.Errorf("DurationBucket(%v) = %q, want %q", tt.span, got, tt.want)
			}
		})
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{55.5, 55.5},
		{100, 100},
		{120, 100},
	}

	for _, tt := range tests {
		if got := ClampScore(tt.in); got != tt.want {
			t.Errorf("ClampScore(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
