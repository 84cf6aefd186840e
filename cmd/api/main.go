package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salonbook/internal/api"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/export"
	"salonbook/internal/google"
	"salonbook/internal/logging"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/internal/repository"
	"salonbook/internal/schedule"
	"salonbook/internal/service"
	"salonbook/internal/storage"
	"salonbook/internal/tracing"
	"salonbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, appVersion(cfg))
	if err != nil {
		logger.Error().Err(err).Msg("init tracing")
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	store, sqliteDB, err := storage.Open(ctx, cfg.Database, &logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return err
	}
	defer store.Close()

	salonService := service.NewSalonService(store, logging.Component(&logger, "salons"))
	if err := seedSalons(ctx, salonService, &logger); err != nil {
		return err
	}

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	eventBus := events.NewEventBus()
	startKafkaRelay(ctx, cfg, eventBus, &logger)

	journal, calendar := initGoogle(ctx, cfg, &logger)
	retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
	syncWorker := worker.NewSyncWorker(store, journal, calendar, redisClient, retryPolicy, logging.Component(&logger, "sync-worker"))
	go syncWorker.Start(ctx)

	provider := schedule.NewProvider(store, cfg.Booking.Location(), logging.Component(&logger, "schedule"))
	bookingService := service.NewBookingService(
		store,
		provider,
		eventBus,
		syncWorker,
		initLimiter(redisClient, &logger),
		service.BookingOptions{
			Serializable:     cfg.Booking.SerializableSubmit,
			MaxAdvanceDays:   cfg.Booking.MaxAdvanceDays,
			SubmitRateLimit:  cfg.Booking.SubmitRateLimit,
			SubmitRateWindow: cfg.Booking.SubmitRateWindow,
		},
		logging.Component(&logger, "booking"),
	)

	services := api.Services{
		Availability: service.NewAvailabilityService(provider, store, logging.Component(&logger, "availability")),
		Booking:      bookingService,
		Salons:       salonService,
		Exporter:     export.NewExporter(store, provider, cfg.Exports.Path, logging.Component(&logger, "export")),
	}

	if sqliteDB != nil && cfg.Backup.Enabled {
		backupService := database.NewBackupService(sqliteDB.Path(), cfg.Backup, logging.Component(&logger, "backup"))
		go backupService.Start(ctx)
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	grpcServer, err := api.NewGRPCServer(&cfg.API, services, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("create grpc server")
		return err
	}
	httpServer := api.NewHTTPServer(cfg.API, services, &logger)

	startMetrics(ctx, cfg, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func appVersion(cfg *config.Config) string {
	if cfg.App.Version != "" {
		return cfg.App.Version
	}
	return version
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func seedSalons(ctx context.Context, salons *service.SalonService, logger *zerolog.Logger) error {
	salonsPath := os.Getenv("SALONS_PATH")
	if salonsPath == "" {
		salonsPath = "configs/salons.yaml"
	}

	seed, err := config.LoadSalons(salonsPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info().Str("salons_path", salonsPath).Msg("no salon seed file, skipping")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Str("salons_path", salonsPath).Msg("load salons")
		return err
	}
	return salons.Seed(ctx, seed)
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = repository.Close(redisClient)
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initLimiter(redisClient *redis.Client, logger *zerolog.Logger) domain.SubmissionLimiter {
	memory := repository.NewMemorySubmissionLimiter()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverSubmissionLimiter(
		repository.NewRedisSubmissionLimiter(redisClient),
		memory,
		logging.Component(logger, "limiter"),
	)
}

func startKafkaRelay(ctx context.Context, cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	brokers := cfg.Kafka.BrokerList()
	if len(brokers) == 0 || cfg.Kafka.Topic == "" {
		return
	}

	relay := events.NewKafkaRelay(events.NewKafkaWriter(brokers, cfg.Kafka.Topic), models.WorkerQueueSize, logging.Component(logger, "kafka"))
	bus.SubscribeAll(relay.Handle)
	go relay.Start(ctx)
	logger.Info().Strs("brokers", brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka relay started")
}

func initGoogle(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.JournalWriter, domain.CalendarWriter) {
	var (
		journal  domain.JournalWriter
		calendar domain.CalendarWriter
	)
	if cfg.Google.GoogleCredentialsFile == "" {
		return nil, nil
	}

	if cfg.Google.JournalSpreadSheetID != "" {
		svc, err := google.NewJournalService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.JournalSpreadSheetID)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("google sheets init failed, continuing without journal")
		default:
			if err := svc.WarmUpCache(ctx); err != nil {
				logger.Warn().Err(err).Msg("journal cache warm-up failed")
			}
			journal = svc
			logger.Info().Msg("google sheets journal connected")
		}
	}

	if cfg.Google.CalendarID != "" {
		svc, err := google.NewCalendarService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.CalendarID)
		if err != nil {
			logger.Warn().Err(err).Msg("google calendar init failed, continuing without calendar")
		} else {
			calendar = svc
			logger.Info().Msg("google calendar connected")
		}
	}

	return journal, calendar
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	go func() {
		if err := grpcServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Str("grpc_addr", grpcServer.Addr()).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Shutdown(shutdownCtx)
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
