// Package main provides the entrypoint for the ShiftWake background worker.
// The worker consumes recovery jobs from Pub/Sub and rebuilds device
// trigger registrations from stored duties.
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
	"github.com/shiftwake/shiftwake/internal/database"
	"github.com/shiftwake/shiftwake/internal/duty"
	"github.com/shiftwake/shiftwake/internal/prefs"
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
	const serviceName = "shiftwake-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting ShiftWake worker")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	loc := time.Local
	if tz := os.Getenv("SHIFTWAKE_TIMEZONE"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			log.Fatal().Err(err).Str("timezone", tz).Msg("invalid timezone")
		}
		loc = l
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.ConfigFromEnv(serviceName, Version)
	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	dutyRepo := duty.NewPostgresRepository(pool)
	prefsProvider := prefs.NewProvider(prefs.ProviderConfig{
		Repository: prefs.NewPostgresRepository(pool),
		Logger:     log,
	})

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

	recovery := worker.NewRecoveryJob(worker.RecoveryConfigFromEnv(), dutyRepo, scheduler, log)

	// Health check endpoint for Cloud Run
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","version":"` + Version + `"}`))
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server error")
		}
	}()

	// One recovery pass at boot, then consume jobs from the queue.
	bootCtx, cancelBoot := context.WithTimeout(ctx, 2*time.Minute)
	if _, err := recovery.Run(bootCtx); err != nil {
		log.Warn().Err(err).Msg("boot recovery run incomplete")
	}
	cancelBoot()

	pubsubCfg := worker.PubSubConfig{
		ProjectID:      os.Getenv("PUBSUB_PROJECT_ID"),
		SubscriptionID: os.Getenv("PUBSUB_SUBSCRIPTION_ID"),
	}
	if pubsubCfg.SubscriptionID == "" {
		pubsubCfg.SubscriptionID = "shiftwake-worker-jobs"
	}

	jobHandler, err := worker.NewPubSubHandler(ctx, pubsubCfg, recovery, dutyRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}
	defer func() {
		if closeErr := jobHandler.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close pubsub client")
		}
	}()

	go func() {
		if err := jobHandler.Listen(ctx); err != nil && ctx.Err() == nil {
			log.Fatal().Err(err).Msg("pubsub receive error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
