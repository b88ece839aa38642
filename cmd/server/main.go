package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"rumbo/internal/app"
	"rumbo/internal/bus"
	"rumbo/internal/config"
	"rumbo/internal/handler"
	"rumbo/internal/logging"
	internalRedis "rumbo/internal/redis"
	"rumbo/internal/repository/postgres"
	"rumbo/internal/routing"
	"rumbo/internal/service"
	"rumbo/internal/ws"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.WithError(err).Warn("failed to initialize New Relic")
		} else {
			log.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	// Wire dependencies.
	server := wireServer(db, redisClient, nrApp, cfg, log)

	// Start server in goroutine.
	go func() {
		log.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, log *logrus.Logger) *http.Server {
	// Initialize repositories.
	rideRepo := postgres.NewRideRepository(db)
	driverRepo := postgres.NewDriverRepository(db)

	// Initialize Redis-backed driver directory.
	directory := internalRedis.NewDirectory(redisClient)

	// Notification bus.
	eventBus := bus.NewInMemoryBus()

	// Route estimator, simulated when no API key is configured.
	var estimator routing.Estimator = routing.NoopEstimator{}
	if cfg.Routing.GoogleMapsAPIKey != "" {
		googleEstimator, err := routing.NewGoogleEstimator(cfg.Routing.GoogleMapsAPIKey)
		if err != nil {
			log.WithError(err).Warn("google maps client init failed, using simulated estimates")
		} else {
			estimator = googleEstimator
		}
	}

	// Initialize services.
	states := service.NewStateMachine(rideRepo, driverRepo, directory, eventBus, log)
	dispatcher := service.NewDispatcher(states, rideRepo, directory, eventBus, log)
	tracker := service.NewTracker(directory, rideRepo, estimator, eventBus, log)
	estimates := service.NewEstimateService(estimator, log)

	// Initialize handlers.
	rideHandler := handler.NewRideHandler(dispatcher, states, estimates, tracker)
	driverHandler := handler.NewDriverHandler(tracker)
	hub := ws.NewHub(eventBus, dispatcher, tracker, cfg.Auth.JWTSecret, log)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		RideHandler:   rideHandler,
		DriverHandler: driverHandler,
		Hub:           hub,
		RedisClient:   redisClient,
		NewRelicApp:   nrApp,
		JWTSecret:     cfg.Auth.JWTSecret,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
