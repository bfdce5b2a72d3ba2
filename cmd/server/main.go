package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trackbook/internal/api"
	"trackbook/internal/config"
	"trackbook/internal/database"
	"trackbook/internal/events"
	"trackbook/internal/export"
	"trackbook/internal/gateway"
	"trackbook/internal/logging"
	"trackbook/internal/mail"
	"trackbook/internal/metrics"
	"trackbook/internal/models"
	"trackbook/internal/notify"
	"trackbook/internal/repository"
	"trackbook/internal/service"
	"trackbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := baseLogger.With().Str("component", "server-main").Logger()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := initCache(ctx, cfg, &logger)
	eventBus := events.NewEventBus()

	notifier, err := notify.NewPublisher(cfg.AMQP, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("notification publisher unavailable, continuing without it")
		notifier = nil
	}
	defer notifier.Close()

	mailer := mail.NewSender(cfg.SMTP, &logger)
	gatewayClient := gateway.NewClient(cfg.Gateway, &logger)

	reservationService := service.NewReservationService(db, cache, eventBus, notifier, &logger)
	businessService := service.NewBusinessService(db, &logger)
	paymentService := service.NewPaymentService(
		db, gatewayClient, cache, eventBus, notifier, mailer,
		cfg.Gateway.WebhookSecret,
		cfg.Gateway.PlatformFeePct, cfg.Gateway.GatewayFeePct,
		&logger,
	)
	exporter := export.NewExporter(db, cfg.Exports.Path, &logger)

	if cfg.Sweeper.Enabled {
		sweeper := worker.NewSweeper(
			db, eventBus, worker.RetryPolicy{},
			time.Duration(cfg.Sweeper.LifecycleIntervalMin)*time.Minute,
			time.Duration(cfg.Sweeper.PurgeIntervalHours)*time.Hour,
			time.Duration(cfg.Sweeper.RetentionHours)*time.Hour,
			&logger,
		)
		go sweeper.Start(ctx)
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go serveMetrics(cfg.Monitoring.PrometheusPort, &logger)
	}

	apiServer := api.NewHTTPServer(cfg.API.Port, reservationService, businessService, paymentService, exporter, &logger)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("API server error")
		}
	}()

	logger.Info().Str("env", cfg.App.Environment).Msg("server started")
	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return apiServer.Shutdown(shutdownCtx)
}

func initCache(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) repository.AvailabilityCache {
	availabilityTTL := models.AvailabilityCacheTTL * time.Second
	sessionTTL := models.SessionCacheTTL * time.Second

	memory := repository.NewMemoryAvailabilityCache(availabilityTTL, sessionTTL)
	if cfg.Redis.Address == "" {
		logger.Warn().Msg("redis not configured, using in-memory cache")
		return memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Error().Err(err).Msg("redis unavailable, using in-memory cache")
		return memory
	}

	primary := repository.NewRedisAvailabilityCache(client, availabilityTTL, sessionTTL)
	return repository.NewFailoverAvailabilityCache(primary, memory, logger)
}

func serveMetrics(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("metrics listener started")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics listener error")
	}
}
