package backend

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"marketpulse/internal/quality"
	"marketpulse/pkg/config"
	"marketpulse/pkg/httputil"
	"marketpulse/pkg/logger"
)

// Client handles communication with the quality backend API
type Client struct {
	httpClient   *httputil.Client
	logger       *logger.Logger
	baseURL      string
	gapCount     int
	anomalyCount int
	limiter      *rate.Limiter
}

// NewClient creates a new quality backend client
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	limit := cfg.Backend.RateLimit
	if limit <= 0 {
		limit = 5
	}
	burst := cfg.Backend.RateBurst
	if burst <= 0 {
		burst = 10
	}

	return &Client{
		httpClient:   httpClient,
		logger:       log,
		baseURL:      strings.TrimRight(cfg.Backend.BaseURL, "/"),
		gapCount:     cfg.Backend.GapCount,
		anomalyCount: cfg.Backend.AnomalyCount,
		limiter:      rate.NewLimiter(rate.Limit(limit), burst),
	}
}

// FetchBundle fetches everything one refresh cycle needs. Any transport
// failure fails the whole bundle so the caller degrades as a unit.
func (c *Client) FetchBundle(ctx context.Context) (*quality.Bundle, error) {
	dashboard, err := c.getBody(ctx, "/api/quality/dashboard")
	if err != nil {
		return nil, err
	}

	snap, err := quality.ParseDashboard(dashboard, time.Now())
	if err != nil {
		return nil, fmt.Errorf("dashboard payload: %w", err)
	}

	gapsBody, err := c.getBody(ctx, fmt.Sprintf("/api/quality/gaps?count=%d", c.gapCount))
	if err != nil {
		return nil, err
	}
	gaps, err := quality.ParseGaps(gapsBody)
	if err != nil {
		return nil, fmt.Errorf("gaps payload: %w", err)
	}

	anomaliesBody, err := c.getBody(ctx, fmt.Sprintf("/api/quality/anomalies?count=%d", c.anomalyCount))
	if err != nil {
		return nil, err
	}
	anomalies, err := quality.ParseAnomalies(anomaliesBody)
	if err != nil {
		return nil, fmt.Errorf("anomalies payload: %w", err)
	}

	// Latency percentiles are supplementary; a missing endpoint must
	// not take the refresh down with it.
	if latencyBody, err := c.getBody(ctx, "/api/quality/latency/statistics"); err == nil {
		if stats, perr := quality.ParseLatency(latencyBody); perr == nil {
			snap.Latency = stats
		}
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	} else {
		c.logger.WithError(err).Debug("Latency statistics unavailable")
	}

	return &quality.Bundle{
		Snapshot:  snap,
		Gaps:      gaps,
		Anomalies: anomalies,
	}, nil
}

// AcknowledgeAnomaly marks one anomaly acknowledged on the backend
func (c *Client) AcknowledgeAnomaly(ctx context.Context, id string) error {
	return c.post(ctx, fmt.Sprintf("/api/quality/anomalies/%s/acknowledge", id))
}

// RepairGap asks the backend to start repairing one gap. The repair
// itself runs asynchronously server-side; success means "initiated".
func (c *Client) RepairGap(ctx context.Context, id string) error {
	return c.post(ctx, fmt.Sprintf("/api/quality/gaps/%s/repair", id))
}

// RepairAllGaps asks the backend to start repairing every known gap
func (c *Client) RepairAllGaps(ctx context.Context) error {
	return c.post(ctx, "/api/quality/gaps/repair-all")
}

// getBody performs a rate-limited GET and returns the response body
func (c *Client) getBody(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := c.baseURL + path
	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	return body, nil
}

// post performs a rate-limited POST with no body
func (c *Client) post(ctx context.Context, path string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	url := c.baseURL + path
	resp, err := c.httpClient.PostJSON(ctx, url, nil)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
