package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"marketpulse/internal/quality"
)

// ScoreRecord is one persisted refresh result
type ScoreRecord struct {
	RecordedAt          time.Time `json:"recorded_at"`
	OverallScore        float64   `json:"overall_score"`
	CompletenessPercent float64   `json:"completeness_percent"`
	AverageLatencyMs    float64   `json:"average_latency_ms"`
}

// Repository handles quality score persistence
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new history repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the score table if it does not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS quality_scores (
			recorded_at          TIMESTAMPTZ PRIMARY KEY,
			overall_score        DOUBLE PRECISION NOT NULL,
			completeness_percent DOUBLE PRECISION NOT NULL,
			average_latency_ms   DOUBLE PRECISION NOT NULL
		)
	`

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create quality_scores table: %w", err)
	}

	return nil
}

// InsertScore records one refresh result. Re-recording the same
// timestamp overwrites the previous row.
func (r *Repository) InsertScore(ctx context.Context, rec ScoreRecord) error {
	query := `
		INSERT INTO quality_scores (
			recorded_at, overall_score, completeness_percent, average_latency_ms
		) VALUES ($1, $2, $3, $4)
		ON CONFLICT (recorded_at) DO UPDATE SET
			overall_score = EXCLUDED.overall_score,
			completeness_percent = EXCLUDED.completeness_percent,
			average_latency_ms = EXCLUDED.average_latency_ms
	`

	_, err := r.pool.Exec(ctx, query,
		rec.RecordedAt, rec.OverallScore, rec.CompletenessPercent, rec.AverageLatencyMs,
	)

	if err != nil {
		return fmt.Errorf("failed to insert quality score: %w", err)
	}

	return nil
}

// TrendPoints returns the average overall score per bucket over the
// window ending at now. Buckets with no samples are omitted.
func (r *Repository) TrendPoints(ctx context.Context, w quality.Window, now time.Time) ([]quality.TrendPoint, error) {
	step := int64(w.Step().Seconds())

	query := `
		SELECT
			to_timestamp(floor(extract(epoch FROM recorded_at) / $3) * $3) AS bucket,
			avg(overall_score) AS score
		FROM quality_scores
		WHERE recorded_at >= $1 AND recorded_at <= $2
		GROUP BY bucket
		ORDER BY bucket
	`

	rows, err := r.pool.Query(ctx, query, now.Add(-w.Duration()), now, step)
	if err != nil {
		return nil, fmt.Errorf("failed to query trend points: %w", err)
	}
	defer rows.Close()

	var points []quality.TrendPoint
	for rows.Next() {
		var bucket time.Time
		var score float64
		if err := rows.Scan(&bucket, &score); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		points = append(points, quality.TrendPoint{
			Score: quality.ClampScore(score),
			Label: w.Label(bucket.Local()),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trend points: %w", err)
	}

	return points, nil
}

// Prune deletes score rows older than the retention period
func (r *Repository) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	query := `DELETE FROM quality_scores WHERE recorded_at < $1`

	tag, err := r.pool.Exec(ctx, query, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to prune quality scores: %w", err)
	}

	return tag.RowsAffected(), nil
}
