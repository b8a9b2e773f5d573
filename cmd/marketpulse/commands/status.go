package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"marketpulse/internal/backend"
	"marketpulse/internal/quality"
	"marketpulse/pkg/config"
	"marketpulse/pkg/httputil"
	"marketpulse/pkg/logger"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "One-shot quality check",
	Long: `Fetches the quality API once and prints a scored summary.

Displayed:
- Overall score, grade, and status band
- Per-symbol health
- Open gaps and unacknowledged alerts

Example:
  go run ./cmd/marketpulse status
  go run ./cmd/marketpulse status --timeout 5s`,
	RunE: runStatus,
}

var (
	statusTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(statusCmd)

	// Flags
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 10*time.Second, "fetch timeout")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	source := backend.NewClient(cfg, httputil.New(cfg, log), log)

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	bundle, err := source.FetchBundle(ctx)
	if err != nil {
		return fmt.Errorf("fetch quality data from %s: %w", cfg.Backend.BaseURL, err)
	}

	displayStatus(bundle)
	return nil
}

func displayStatus(bundle *quality.Bundle) {
	snap := bundle.Snapshot

	fmt.Println("=== MarketPulse Quality Status ===")
	fmt.Println()
	fmt.Printf("%-18s %8.1f\n", "Overall score:", snap.OverallScore)
	fmt.Printf("%-18s %8s\n", "Grade:", snap.Grade)
	fmt.Printf("%-18s %8s\n", "Status:", snap.Status)
	fmt.Printf("%-18s %7.1f%%\n", "Completeness:", snap.CompletenessPercent)
	fmt.Printf("%-18s %6.1fms\n", "Avg latency:", snap.AverageLatencyMs)
	fmt.Println()

	if len(snap.Symbols) > 0 {
		fmt.Println("Symbols")
		fmt.Println("----------------------------------------")
		for _, s := range snap.Symbols {
			fmt.Printf("%-12s %6.1f  %-3s %s\n", s.Symbol, s.Score, s.Grade, s.Status)
		}
		fmt.Println()
	}

	fmt.Printf("%-18s %8d\n", "Open gaps:", len(bundle.Gaps))
	for _, g := range bundle.Gaps {
		fmt.Printf("  %-12s %s (%s)\n", g.Symbol, g.Start.Format("2006-01-02 15:04"), g.DurationBucket)
	}
	fmt.Println()

	unacked := 0
	for _, a := range bundle.Anomalies {
		if !a.Acknowledged {
			unacked++
		}
	}
	fmt.Printf("%-18s %8d\n", "Open alerts:", unacked)
	for _, a := range bundle.Anomalies {
		if a.Acknowledged {
			continue
		}
		fmt.Printf("  %-12s %-20s %-8s [%s]\n", a.Symbol, a.Type, a.Severity, quality.SeverityClass(a.Severity))
	}
}
