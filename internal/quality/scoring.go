package quality

import (
	"fmt"
	"time"
)

// Scoring and classification are the single source of truth for every
// grade, status, and severity band in the system. No call site may
// hardcode a threshold independently.

// ClampScore bounds a score to [0, 100]
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// GradeOf maps a score in [0, 100] to a letter grade
func GradeOf(score float64) Grade {
	score = ClampScore(score)
	switch {
	case score >= 95:
		return GradeAPlus
	case score >= 90:
		return GradeA
	case score >= 85:
		return GradeAMinus
	case score >= 80:
		return GradeBPlus
	case score >= 75:
		return GradeB
	case score >= 70:
		return GradeBMinus
	case score >= 65:
		return GradeCPlus
	case score >= 60:
		return GradeC
	case score >= 55:
		return GradeCMinus
	case score >= 50:
		return GradeD
	default:
		return GradeF
	}
}

// StatusOf maps a score in [0, 100] to a display status band
func StatusOf(score float64) Status {
	score = ClampScore(score)
	switch {
	case score >= 90:
		return StatusExcellent
	case score >= 75:
		return StatusHealthy
	case score >= 50:
		return StatusWarning
	default:
		return StatusCritical
	}
}

// SeverityClass maps a severity to its display class
func SeverityClass(sev Severity) string {
	switch sev {
	case SeverityCritical, SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// DurationBucket renders a span in its largest applicable unit.
// Values are floored, not rounded, to avoid overstating elapsed time.
func DurationBucket(span time.Duration) string {
	if span < 0 {
		span = 0
	}
	switch {
	case span >= 24*time.Hour:
		return fmt.Sprintf("%d days", int(span.Hours())/24)
	case span >= time.Hour:
		return fmt.Sprintf("%d hours", int(span.Hours()))
	default:
		return fmt.Sprintf("%d mins", int(span.Minutes()))
	}
}
