// Package main provides the entrypoint for the ShiftWake API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftwake/shiftwake/internal/alarm"
	"github.com/shiftwake/shiftwake/internal/api"
	"github.com/shiftwake/shiftwake/internal/api/handler"
	"github.com/shiftwake/shiftwake/internal/api/middleware"
	"github.com/shiftwake/shiftwake/internal/auth"
	"github.com/shiftwake/shiftwake/internal/database"
	"github.com/shiftwake/shiftwake/internal/duty"
	"github.com/shiftwake/shiftwake/internal/prefs"
	"github.com/shiftwake/shiftwake/internal/push"
	"github.com/shiftwake/shiftwake/internal/telemetry"
	"github.com/shiftwake/shiftwake/internal/timer"
	"github.com/shiftwake/shiftwake/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "shiftwake-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting ShiftWake API")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	// Duty times are wall-clock values in the user's zone.
	loc := time.Local
	if tz := os.Getenv("SHIFTWAKE_TIMEZONE"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			log.Fatal().Err(err).Str("timezone", tz).Msg("invalid timezone")
		}
		loc = l
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryCfg := telemetry.ConfigFromEnv(serviceName, Version)

	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Storage: Postgres by default, in-memory for local development.
	var (
		dutyRepo  duty.Repository
		prefsRepo prefs.Repository
		db        handler.Pinger
	)
	if os.Getenv("STORAGE_BACKEND") == "memory" {
		dutyRepo = duty.NewInMemoryRepository()
		prefsRepo = prefs.NewInMemoryRepository()
		log.Warn().Msg("using in-memory storage - state is lost on restart")
	} else {
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		dutyRepo = duty.NewPostgresRepository(pool)
		prefsRepo = prefs.NewPostgresRepository(pool)
		db = pool
	}

	dutyService := duty.NewService(dutyRepo)

	prefsProvider := prefs.NewProvider(prefs.ProviderConfig{
		Repository: prefsRepo,
		Logger:     log,
	})

	// Timer facility and scheduling core
	facility := timer.NewMemoryFacility(log, nil)
	defer facility.Close()

	planner := alarm.NewPlanner(alarm.PlannerConfig{Location: loc})

	scheduler := alarm.NewScheduler(alarm.SchedulerConfig{
		Duties:   dutyRepo,
		Prefs:    prefsProvider,
		Facility: facility,
		Planner:  planner,
		Logger:   log,
	})

	sessions := alarm.NewSnoozeSessions(alarm.SnoozeSessionsConfig{
		Facility:  facility,
		Scheduler: scheduler,
		Logger:    log,
	})

	// Push delivery gateway
	deliveryMetrics, err := push.NewDeliveryMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize delivery metrics")
		os.Exit(1)
	}

	gatewayURL := os.Getenv("PUSH_GATEWAY_URL")
	if gatewayURL == "" {
		gatewayURL = "http://localhost:8090"
		log.Warn().Msg("PUSH_GATEWAY_URL not set - using local push gateway")
	}

	gateway := push.NewGateway(push.GatewayConfig{
		BaseURL: gatewayURL,
		APIKey:  os.Getenv("PUSH_GATEWAY_API_KEY"),
		Metrics: deliveryMetrics,
		Logger:  log,
	})

	dispatcher := alarm.NewDispatcher(alarm.DispatcherConfig{
		Duties:    dutyRepo,
		Prefs:     prefsProvider,
		Facility:  facility,
		Sessions:  sessions,
		Deliverer: gateway,
		Logger:    log,
		Location:  loc,
	})
	facility.SetHandler(dispatcher)

	// Auth service (get signing key from environment)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	authService := auth.NewService(auth.Config{
		SigningKey: jwtSigningKey,
		Issuer:     "https://api.shiftwake.dev",
		Audience:   "shiftwake-api",
	})
	log.Info().Msg("auth service initialized")

	// Replay every upcoming duty against the timer facility so triggers
	// lost to a restart are re-registered before traffic arrives.
	recovery := worker.NewRecoveryJob(worker.RecoveryConfigFromEnv(), dutyRepo, scheduler, log)
	recoverCtx, cancelRecover := context.WithTimeout(ctx, 2*time.Minute)
	if _, err := recovery.Run(recoverCtx); err != nil {
		log.Warn().Err(err).Msg("startup trigger recovery incomplete")
	}
	cancelRecover()

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		AuthService:    authService,
		DutyService:    dutyService,
		DutyRepository: dutyRepo,
		Preferences:    prefsProvider,
		Scheduler:      scheduler,
		Dispatcher:     dispatcher,
		Sessions:       sessions,
		DB:             db,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
