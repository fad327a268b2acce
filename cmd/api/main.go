package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/villanet/booking/internal/app"
	"github.com/villanet/booking/internal/broker"
	"github.com/villanet/booking/internal/clock"
	"github.com/villanet/booking/internal/config"
	"github.com/villanet/booking/internal/directory"
	"github.com/villanet/booking/internal/logging"
	"github.com/villanet/booking/internal/storage/postgres"
	"github.com/villanet/booking/internal/tracing"
	transporthttp "github.com/villanet/booking/internal/transport/http"
	"github.com/villanet/booking/migrations"
)

const (
	serviceName     = "booking-api"
	shutdownTimeout = 10 * time.Second
	startupTimeout  = 5 * time.Second
)

func main() {
	cfg := config.Load(logrus.StandardLogger())

	logger, logCloser := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	defer logCloser.Close()

	shutdownTracing, err := tracing.Setup(serviceName, cfg.JaegerEndpoint)
	if err != nil {
		logger.WithError(err).Fatal("setup tracing")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.WithError(err).Warn("tracing shutdown")
		}
	}()

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("connect to db")
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.WithError(err).Fatal("db ping")
	}
	if err := migrations.Apply(startupCtx, pool, logger); err != nil {
		logger.WithError(err).Fatal("apply migrations")
	}

	reservationRepo := postgres.NewReservationRepository(pool)
	propertyRepo := postgres.NewPropertyRepository(pool)
	emails := directory.NewCached(postgres.NewUserRepository(pool), cfg.EmailCacheTTL)
	defer emails.Stop()

	publisher := broker.NewPublisher(
		broker.NewWriter(cfg.Kafka.Brokers),
		broker.Topics{Created: cfg.Kafka.CreatedTopic, Canceled: cfg.Kafka.CanceledTopic},
		logger,
		broker.WithPublishTimeout(cfg.Kafka.PublishTimeout),
	)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.WithError(err).Warn("close publisher")
		}
	}()

	svc := app.NewReservationService(
		reservationRepo,
		propertyRepo,
		emails,
		publisher,
		clock.NewSystem(),
		logger,
		app.WithMinCancelDays(cfg.MinCancelDays),
	)

	router := transporthttp.NewRouter(svc, logger, pool.Ping)

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", transporthttp.UserIDHeader}),
	)
	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(logger), handlers.PrintRecoveryStack(true))
	handler := transporthttp.RequestLogger(recovery(cors(router)), logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Infof("api listening on :%s", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Error("server shutdown")
	}
	logger.Info("server stopped")
}
