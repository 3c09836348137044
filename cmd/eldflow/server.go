package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensass/eldflow/internal/assistant"
	"github.com/opensass/eldflow/internal/clock"
	"github.com/opensass/eldflow/internal/config"
	"github.com/opensass/eldflow/internal/dashboard"
	"github.com/opensass/eldflow/internal/metrics"
	"github.com/opensass/eldflow/internal/places"
	"github.com/opensass/eldflow/internal/retention"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/opensass/eldflow/internal/storage/bolt"
	"github.com/opensass/eldflow/internal/storage/mongo"
	"github.com/opensass/eldflow/internal/storage/redis"
	"github.com/opensass/eldflow/internal/systemd"
	"github.com/opensass/eldflow/internal/unsplash"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start ELDFlow server",
	Long:  `Start the ELDFlow dashboard, its JSON API, the retention job and the metrics endpoint.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting ELDFlow")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("sessions", cfg.Sessions.Backend).
		Msg("Storage initialized")

	clk := clock.Real{}

	// External services. Missing keys only disable the feature.
	placesClient, err := places.New(cfg.Google, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Google Maps client: %w", err)
	}
	coverClient, err := unsplash.New(cfg.Unsplash, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Unsplash client: %w", err)
	}
	gemini, err := assistant.NewGemini(cfg.Gemini, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	chat := assistant.NewService(store, gemini, cfg.Gemini.CacheSize, parseDuration(cfg.Gemini.CacheTTL, 2*time.Hour), logger)

	for name, key := range map[string]string{
		"google.maps_api_key": cfg.Google.MapsAPIKey,
		"unsplash.access_key": cfg.Unsplash.AccessKey,
		"gemini.api_key":      cfg.Gemini.APIKey,
	} {
		if key == "" {
			logger.Warn().Str("key", name).Msg("API key not configured, feature disabled")
		}
	}

	// Initialize Dashboard
	jwtSecret := cfg.Dashboard.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = generateSecret()
		if err != nil {
			return fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		logger.Warn().Msg("dashboard.jwt_secret is not set, sessions will not survive a restart")
	}

	dashboardAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)
	dashboardServer, err := dashboard.NewServer(dashboard.Config{
		ListenAddr:      dashboardAddr,
		JWTSecret:       jwtSecret,
		TokenExpiration: parseDuration(cfg.Dashboard.SessionTimeout, dashboard.DefaultTokenExpiration),
		RateLimit:       cfg.Dashboard.RateLimit,
		RateLimitWindow: parseDuration(cfg.Dashboard.RateLimitWindow, time.Minute),
		AllowedOrigins:  cfg.Dashboard.AllowedOrigins,
		PanelCacheSize:  cfg.Dashboard.PanelCacheSize,
		SecureCookies:   cfg.Dashboard.SecureCookies,
		ShutdownTimeout: parseDuration(cfg.Server.ShutdownTimeout, 10*time.Second),
	}, dashboard.Dependencies{
		Store:  store,
		Chat:   chat,
		Places: placesClient,
		Covers: coverClient,
		Clock:  clk,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Dashboard: %w", err)
	}

	// Use systemd socket-activated listener if available
	if err := dashboardServer.Start(sdListeners.Dashboard); err != nil {
		return fmt.Errorf("failed to start Dashboard: %w", err)
	}

	// Initialize Retention Scheduler
	retentionScheduler, err := retention.NewScheduler(store, cfg.Retention, clk, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Retention Scheduler: %w", err)
	}
	retentionScheduler.Start()
	logger.Info().Str("run_time", cfg.Retention.RunTime).Msg("Retention Scheduler initialized")

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 || sdListeners.Metrics != nil {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
		metricsServer = metrics.NewServer(metricsAddr, logger)

		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}

		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
		logger.Info().Msgf("Metrics: http://%s/metrics", metricsAddr)
	}

	logger.Info().Msg("ELDFlow startup complete")
	logger.Info().Msgf("Dashboard: http://%s", dashboardAddr)

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else if systemd.IsSystemdService() {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	watchdogCtx, stopWatchdog := context.WithCancel(context.Background())
	defer stopWatchdog()
	if err := systemd.StartWatchdog(watchdogCtx); err != nil {
		logger.Warn().Err(err).Msg("Failed to start systemd watchdog")
	}

	// Wait for signals (shutdown or reload)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			logger.Info().Msg("Shutdown signal received, gracefully stopping...")
			break
		}

		logger.Info().Msg("SIGHUP received, reloading log level...")
		reloaded, err := config.Load(configPath)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to reload configuration")
			continue
		}
		zerolog.SetGlobalLevel(parseLevel(reloaded.Logging.Level))
		logger.Info().Str("level", zerolog.GlobalLevel().String()).Msg("Log level reloaded")
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop servers
	retentionScheduler.Stop()

	if err := dashboardServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping Dashboard")
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	logger.Info().Msg("ELDFlow stopped")

	return nil
}

// openStorage opens the configured document store and, when sessions live
// in Redis, routes them there.
func openStorage(cfg *config.Config) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)

	switch cfg.Storage.Type {
	case "", "bolt":
		store, err = bolt.Open(cfg.Storage.Path)
	case "mongo":
		store, err = mongo.Open(cfg.Storage.Mongo)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (expected 'bolt' or 'mongo')", cfg.Storage.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Sessions.Backend != "redis" {
		return store, nil
	}

	sessions, err := redis.Open(cfg.Sessions.Redis)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return storage.WithSessions(store, sessions), nil
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
