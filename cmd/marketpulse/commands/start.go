package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"marketpulse/internal/api"
	"marketpulse/internal/api/handlers"
	"marketpulse/internal/backend"
	"marketpulse/internal/history"
	"marketpulse/internal/monitor"
	"marketpulse/internal/quality"
	"marketpulse/internal/scheduler"
	"marketpulse/internal/scheduler/jobs"
	"marketpulse/pkg/config"
	"marketpulse/pkg/database"
	"marketpulse/pkg/httputil"
	"marketpulse/pkg/logger"
	"marketpulse/pkg/redis"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the monitor and API server",
	Long: `Starts the quality monitor.

This command:
- Polls the quality API on the configured cadence
- Serves the aggregate state over REST
- Pushes every refresh to websocket clients
- Persists scores for the trend view when a database is configured

Endpoints:
  GET  /health                        - Health check
  GET  /api/dashboard                 - Full quality snapshot
  GET  /api/symbols                   - Per-symbol quality (filterable)
  GET  /api/alerts                    - Unacknowledged alerts (filterable)
  GET  /api/anomalies                 - Anomaly feed (filterable)
  GET  /api/gaps                      - Detected gaps
  GET  /api/trend?window=24h          - Score trend
  POST /api/refresh                   - Trigger immediate refresh
  POST /api/alerts/{id}/acknowledge   - Acknowledge one alert
  POST /api/alerts/acknowledge-all    - Acknowledge every alert
  POST /api/gaps/{id}/repair          - Repair one gap
  POST /api/gaps/repair-all           - Repair every gap
  GET  /ws                            - Push stream

Example:
  go run ./cmd/marketpulse start
  go run ./cmd/marketpulse start --port 8090`,
	RunE: runStart,
}

var (
	startPort string
)

func init() {
	rootCmd.AddCommand(startCmd)

	// Flags
	startCmd.Flags().StringVar(&startPort, "port", "", "API server port (overrides PORT)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if startPort != "" {
		cfg.Port = startPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port":     cfg.Port,
		"env":      cfg.Env,
		"backend":  cfg.Backend.BaseURL,
		"interval": cfg.Refresh.Interval,
	}).Info("Initializing quality monitor")

	// 3. Create backend client
	httpClient := httputil.New(cfg, log)
	source := backend.NewClient(cfg, httpClient, log)

	// 4. Create monitor engine
	engine := monitor.New(source, cfg.Refresh.Interval, log)

	// 5. Connect to Redis (optional)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	if redisClient.Enabled() {
		engine.WithCache(redis.NewCache(redisClient, "marketpulse"))
		log.Info("Snapshot cache enabled")
	}

	// 6. Connect to database (optional)
	sched := scheduler.New(log)

	if cfg.Database.Enabled {
		db, err := database.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		repo := history.NewRepository(db.Pool)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := repo.EnsureSchema(ctx); err != nil {
			cancel()
			return fmt.Errorf("ensure history schema: %w", err)
		}
		cancel()

		engine.WithHistory(repo)

		if err := sched.AddJob(jobs.NewRetentionJob(repo, cfg.Database.RetentionDays, log)); err != nil {
			return fmt.Errorf("schedule retention job: %w", err)
		}

		log.Info("Score history enabled")
	}

	// 7. Create push hub
	hub := api.NewHub(log)
	engine.OnApply(hub.Broadcast)

	// 8. Create router and server
	router := api.NewRouter(
		handlers.NewDashboardHandler(engine, quality.ParseWindow(cfg.Refresh.TrendWindow), log),
		handlers.NewActionHandler(engine, log),
		hub,
		log,
	)
	server := api.New(cfg, log, router)

	// 9. Start everything
	engine.Start()
	sched.Start()

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("Quality monitor started")
	fmt.Printf("Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	sched.Stop()
	engine.Stop()
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Stopped")
	return nil
}
