package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tenderwatch/scanner/internal/config"
	"tenderwatch/scanner/internal/database"
	"tenderwatch/scanner/internal/extract"
	"tenderwatch/scanner/internal/models"
	"tenderwatch/scanner/internal/notify"
	"tenderwatch/scanner/internal/scan"
	"tenderwatch/scanner/internal/server"
	"tenderwatch/scanner/internal/store"
)

// cycleTimeout bounds one full pass over all keywords.
const cycleTimeout = 20 * time.Minute

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func main() {
	cfg := config.DefaultConfig()

	startCmd := flag.NewFlagSet("start", flag.ExitOnError)
	startCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("SCANNER_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: SCANNER_DB_PATH)")
	startCmd.StringVar(&cfg.WebhookURL, "webhook", config.GetEnvString("SCANNER_WEBHOOK_URL", ""),
		"Webhook URL for new-tender alerts (env: SCANNER_WEBHOOK_URL)")
	startCmd.StringVar(&cfg.KeywordsPath, "keywords-file", config.GetEnvString("SCANNER_KEYWORDS_FILE", config.DefaultKeywordsPath),
		"Path to a newline-delimited keywords file (env: SCANNER_KEYWORDS_FILE)")

	var keywordsCSV string
	startCmd.StringVar(&keywordsCSV, "keywords", config.GetEnvString("SCANNER_KEYWORDS", ""),
		"Comma-separated keyword list, overrides the keywords file (env: SCANNER_KEYWORDS)")

	var intervalMinutes int
	startCmd.IntVar(&intervalMinutes, "interval", config.GetEnvInt("SCANNER_INTERVAL", config.DefaultInterval),
		"Interval in minutes between scan cycles, 0 for one-shot mode (env: SCANNER_INTERVAL)")

	var headful bool
	startCmd.BoolVar(&headful, "headful", config.GetEnvBool("SCANNER_HEADFUL", false),
		"Run the browser with a visible window, for debugging (env: SCANNER_HEADFUL)")

	var startLogLevelStr string
	startCmd.StringVar(&startLogLevelStr, "log-level", config.GetEnvString("SCANNER_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: SCANNER_LOG_LEVEL)")

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	serverCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("SCANNER_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: SCANNER_DB_PATH)")
	serverCmd.StringVar(&cfg.ServerHost, "host", config.GetEnvString("SCANNER_HOST", config.DefaultServerHost),
		"Host to bind the server to (env: SCANNER_HOST)")
	serverCmd.IntVar(&cfg.ServerPort, "port", config.GetEnvInt("SCANNER_PORT", config.DefaultServerPort),
		"Port to listen on (env: SCANNER_PORT)")

	var serverLogLevelStr string
	serverCmd.StringVar(&serverLogLevelStr, "log-level", config.GetEnvString("SCANNER_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: SCANNER_LOG_LEVEL)")

	notifyTestCmd := flag.NewFlagSet("notify-test", flag.ExitOnError)
	notifyTestCmd.StringVar(&cfg.WebhookURL, "webhook", config.GetEnvString("SCANNER_WEBHOOK_URL", ""),
		"Webhook URL for new-tender alerts (env: SCANNER_WEBHOOK_URL)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		startCmd.Parse(os.Args[2:])

		// Handle log level parsing separately since it needs conversion
		if level, err := zerolog.ParseLevel(startLogLevelStr); err == nil {
			cfg.LogLevel = level
		}

		cfg.Interval = time.Duration(intervalMinutes) * time.Minute

		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := cfg.ResolveKeywords(keywordsCSV); err != nil {
			log.Error().Err(err).Msg("Failed to resolve keywords")
			os.Exit(1)
		}

		if err := runStart(cfg, headful); err != nil {
			log.Error().Err(err).Msg("Scanner failed")
			os.Exit(1)
		}

	case "server":
		serverCmd.Parse(os.Args[2:])

		if level, err := zerolog.ParseLevel(serverLogLevelStr); err == nil {
			cfg.LogLevel = level
		}

		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runServer(cfg); err != nil {
			log.Error().Err(err).Msg("Server failed")
			os.Exit(1)
		}

	case "notify-test":
		notifyTestCmd.Parse(os.Args[2:])

		if err := runNotifyTest(cfg); err != nil {
			log.Error().Err(err).Msg("Test alert failed")
			os.Exit(1)
		}

	case "-h", "--help", "help":
		printUsage()
		os.Exit(0)

	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: scanner [command] [options]")
	fmt.Println("Commands: start, server, notify-test")
	fmt.Println("\nFor command-specific options, use: scanner [command] -h")
}

// runStart executes the scan pipeline either once or periodically based on configuration.
func runStart(cfg *config.Config, headful bool) error {
	if cfg.Interval <= 0 {
		log.Info().Msg("Running in one-shot mode")
	} else {
		log.Info().Int64("interval_minutes", int64(cfg.Interval.Minutes())).Msg("Running in periodic mode")
	}
	if cfg.WebhookURL == "" {
		log.Warn().Msg("No webhook URL configured, new tenders will be stored but not announced")
	}

	dbCfg := database.NewConfig(cfg.DBPath)
	db, err := database.NewDB(dbCfg)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	sessionCfg := scan.DefaultSessionConfig(config.ListingURL)
	sessionCfg.Headless = !headful

	runner, err := scan.NewRunner(
		store.New(db),
		extract.New(config.BaseOrigin, config.ListingURL),
		notify.New(cfg.WebhookURL),
		func() scan.Session { return scan.NewBrowserSession(sessionCfg) },
		cfg.Keywords,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize scan runner: %w", err)
	}

	log.Info().
		Int("keywords", len(cfg.Keywords)).
		Str("listing_url", config.ListingURL).
		Msg("Scanner initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-shutdown
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel() // Cancel the context to stop the current cycle
	}()

	if err := runScanCycle(ctx, runner); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Scan cycle canceled by shutdown signal")
			return nil
		}
		// Cycle-level failures are logged and absorbed; the next tick retries.
		log.Error().Err(err).Msg("Scan cycle failed")
	}

	if cfg.Interval == 0 {
		log.Info().Msg("One-shot scan completed, exiting")
		return nil
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", cfg.Interval).
		Time("next_run", time.Now().Add(cfg.Interval)).
		Msg("Waiting for next scan cycle")

	for {
		select {
		case <-ticker.C:
			log.Info().Msg("Starting scheduled scan cycle")

			if err := runScanCycle(ctx, runner); err != nil {
				if errors.Is(err, context.Canceled) {
					log.Info().Msg("Scan cycle canceled by shutdown signal")
					return nil
				}
				log.Error().Err(err).Msg("Scan cycle failed")
				// Continue to the next cycle rather than exiting
			}

			log.Info().
				Time("next_run", time.Now().Add(cfg.Interval)).
				Msg("Waiting for next scan cycle")

		case <-ctx.Done():
			log.Info().Msg("Shutting down periodic scanning")
			return nil
		}
	}
}

// runScanCycle executes a single scan cycle with a bounded deadline.
func runScanCycle(ctx context.Context, runner *scan.Runner) error {
	cycleCtx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()

	startTime := time.Now()
	stats, err := runner.RunCycle(cycleCtx)
	log.Info().
		Dur("duration", time.Since(startTime)).
		Int("new_tenders", stats.NewTenders).
		Msg("Scan cycle finished")

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err() // Propagate cancellation
		}
		return fmt.Errorf("scan error: %w", err)
	}
	return nil
}

// runServer starts the triage HTTP API with the provided configuration.
// The server needs write access for status updates only.
func runServer(cfg *config.Config) error {
	dbCfg := database.NewConfig(cfg.DBPath)

	db, err := database.NewDB(dbCfg)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to initialize database")
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	return server.RunServer(db, cfg.ListenAddr(), log.Logger, cfg.APIKey)
}

// runNotifyTest sends one sample alert through the real notifier to verify
// webhook wiring.
func runNotifyTest(cfg *config.Config) error {
	if cfg.WebhookURL == "" {
		return fmt.Errorf("webhook URL is required (flag -webhook or env SCANNER_WEBHOOK_URL)")
	}

	sample := models.NewTender()
	sample.BidID = "GEM/2025/B/0000000"
	sample.MatchedKeyword = "test"
	sample.Items = "Sample Item (webhook wiring check)"
	sample.Department = "Test Department"
	sample.StartDate = "01-01-2025"
	sample.EndDate = "15-01-2025"
	sample.Link = config.ListingURL

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := notify.New(cfg.WebhookURL).Notify(ctx, sample); err != nil {
		return err
	}
	log.Info().Msg("Test alert delivered")
	return nil
}
