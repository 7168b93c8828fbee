// Package api provides the HTTP API for ShiftWake.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/shiftwake/shiftwake/internal/alarm"
	"github.com/shiftwake/shiftwake/internal/api/handler"
	"github.com/shiftwake/shiftwake/internal/api/middleware"
	"github.com/shiftwake/shiftwake/internal/auth"
	"github.com/shiftwake/shiftwake/internal/duty"
	"github.com/shiftwake/shiftwake/internal/prefs"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version        string
	BuildTime      string
	Logger         zerolog.Logger
	ServiceName    string
	Metrics        *middleware.Metrics
	AuthService    *auth.Service
	DutyService    *duty.Service
	DutyRepository duty.Repository
	Preferences    *prefs.Provider
	Scheduler      *alarm.Scheduler
	Dispatcher     *alarm.Dispatcher
	Sessions       *alarm.SnoozeSessions
	DB             handler.Pinger
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "shiftwake-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS)
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB)
	dutyHandler := handler.NewDutyHandler(cfg.DutyService)
	prefsHandler := handler.NewPreferencesHandler(cfg.Preferences)
	scheduleHandler := handler.NewScheduleHandler(cfg.Scheduler, cfg.DutyRepository)
	triggerHandler := handler.NewTriggerHandler(cfg.Dispatcher, cfg.Sessions)

	authMiddleware := middleware.Auth(cfg.AuthService)

	scheduleRateLimit := middleware.RateLimitByDevice(middleware.ScheduleRateLimit)
	triggerRateLimit := middleware.RateLimitByDevice(middleware.TriggerRateLimit)
	standardRateLimit := middleware.RateLimitByDevice(middleware.StandardRateLimit)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Duty management (authenticated)
		r.Route("/duties", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)

			r.Get("/", dutyHandler.ListDuties)
			r.Post("/", dutyHandler.CreateDuty)

			r.Route("/{dutyId}", func(r chi.Router) {
				r.Get("/", dutyHandler.GetDuty)
				r.Put("/", dutyHandler.UpdateDuty)
				r.Delete("/", dutyHandler.DeleteDuty)

				// Scheduling cancels/registers exact timers; tighter limit
				r.With(scheduleRateLimit).Post("/schedule", scheduleHandler.Schedule)
				r.With(scheduleRateLimit).Post("/reschedule", scheduleHandler.Reschedule)
				r.With(scheduleRateLimit).Delete("/alarms", scheduleHandler.CancelAlarms)
				r.Get("/plan", scheduleHandler.GetPlan)
			})
		})

		// Preferences (authenticated)
		r.Route("/me/preferences", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Get("/", prefsHandler.GetPreferences)
			r.Put("/", prefsHandler.PutPreferences)
		})

		// Trigger delivery and snooze actions (authenticated)
		r.Route("/triggers", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(triggerRateLimit)

			r.Post("/fire", triggerHandler.Fire)

			r.Route("/{dutyId}/wake/{slot}", func(r chi.Router) {
				r.Get("/", triggerHandler.State)
				r.Post("/snooze", triggerHandler.Snooze)
				r.Post("/dismiss", triggerHandler.Dismiss)
				r.Post("/delete-future", triggerHandler.DeleteFuture)
			})
		})
	})

	return r
}
