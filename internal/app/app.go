package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/locagame/internal/config"
	"github.com/utafrali/locagame/internal/event"
	handler "github.com/utafrali/locagame/internal/handler/http"
	"github.com/utafrali/locagame/internal/repository"
	"github.com/utafrali/locagame/internal/repository/breaker"
	"github.com/utafrali/locagame/internal/repository/memory"
	"github.com/utafrali/locagame/internal/repository/postgres"
	"github.com/utafrali/locagame/internal/repository/redis"
	"github.com/utafrali/locagame/internal/service"
	"github.com/utafrali/locagame/migrations"
	"github.com/utafrali/locagame/pkg/database"
	"github.com/utafrali/locagame/pkg/health"
	pkgkafka "github.com/utafrali/locagame/pkg/kafka"
	"github.com/utafrali/locagame/pkg/middleware"
	"github.com/utafrali/locagame/pkg/tracing"
)

const (
	serviceName         = "rental-stock-service"
	idempotencyTTL      = 24 * time.Hour
	idempotencyPrefix   = "rental-stock:processed:"
	startupTimeout      = 15 * time.Second
	httpShutdownTimeout = 5 * time.Second
)

// App wires together all dependencies and runs the rental stock service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	cancelled      *pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// On error every dependency opened so far is closed again.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeDependencies()
		}
	}()

	// Initialize OpenTelemetry tracing.
	a.tracerShutdown, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	healthHandler := health.NewHandler()

	store, err := a.openStore(ctx, reg, healthHandler)
	if err != nil {
		return nil, err
	}

	if cfg.BreakerEnabled {
		bcfg := breaker.DefaultConfig("stock-store")
		bcfg.Timeout = time.Duration(cfg.BreakerTimeoutSec) * time.Second
		bcfg.FailureRatio = cfg.BreakerFailureRatio
		bcfg.MinRequests = cfg.BreakerMinRequests
		b, err := breaker.New(bcfg, reg, logger)
		if err != nil {
			return nil, fmt.Errorf("create storage breaker: %w", err)
		}
		store = breaker.NewStore(store, b)
	}

	if cfg.CacheEnabled() {
		a.redis, err = database.NewRedisClient(ctx, database.RedisConfig{
			Host:        cfg.RedisHost,
			Port:        cfg.RedisPort,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: 5 * time.Second,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
		store = redis.NewStore(store, a.redis, cfg.ProductCacheTTL(), logger)
		logger.Info("product cache enabled", slog.String("addr", fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)))
	}

	// Event publishing.
	var (
		publisher    pkgkafka.Publisher = pkgkafka.NopPublisher{Logger: logger}
		kafkaMetrics *pkgkafka.Metrics
	)
	if cfg.EventsEnabled {
		kafkaMetrics = pkgkafka.NewMetrics(reg)
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), kafkaMetrics, logger)
		publisher = a.producer
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		if err := a.producer.Ping(ctx); err != nil {
			logger.Warn("kafka unreachable at startup, continuing in degraded mode",
				slog.String("error", err.Error()),
			)
		}
	}

	// Build the dependency graph.
	metrics := service.NewMetrics(reg)
	svcCfg := service.AvailabilityConfig{
		MaxRangeDays:      cfg.MaxRangeDays,
		FilterConcurrency: cfg.FilterConcurrency,
	}
	availability := service.NewAvailabilityService(store, metrics, logger, svcCfg)
	booking := service.NewBookingService(store, event.NewProducer(publisher, logger), metrics, logger, svcCfg)

	if cfg.EventsEnabled {
		a.cancelled = a.newCancelledConsumer(booking, kafkaMetrics)
	}

	router := handler.NewRouter(handler.RouterConfig{
		Availability: availability,
		Booking:      booking,
		Health:       healthHandler,
		Registry:     reg,
		CORS:         middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
		Logger:       logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// openStore returns the storage backend named by STORAGE_DRIVER.
func (a *App) openStore(ctx context.Context, reg prometheus.Registerer, hh *health.Handler) (repository.Store, error) {
	cfg, logger := a.cfg, a.logger

	if cfg.StorageDriver == config.DriverMemory {
		store := memory.NewStore()
		if cfg.DemoSeed {
			products, err := memory.Seed(ctx, store, memory.DemoCatalogue, time.Now())
			if err != nil {
				return nil, fmt.Errorf("seed demo catalogue: %w", err)
			}
			logger.Info("demo catalogue seeded", slog.Int("products", len(products)))
		}
		logger.Warn("using in-memory stock store, data is lost on restart")
		return store, nil
	}

	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RegisterPoolMetrics(reg, pool, serviceName); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	hh.RegisterCritical("postgres", pool.Ping)
	return postgres.NewStore(pool), nil
}

// newCancelledConsumer releases held stock when the storefront cancels a
// reservation. Redis backs the idempotency store when the cache is on.
func (a *App) newCancelledConsumer(booking *service.BookingService, metrics *pkgkafka.Metrics) *pkgkafka.Consumer {
	var seen pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
	if a.redis != nil {
		seen = pkgkafka.NewRedisIdempotencyStore(a.redis, idempotencyPrefix, idempotencyTTL)
	}
	a.dlq = pkgkafka.NewDLQProducer(a.cfg.KafkaBrokers, a.logger)

	handle := event.ReservationCancelledHandler(booking, a.logger)
	return pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  a.cfg.KafkaBrokers,
		GroupID:  a.cfg.KafkaGroupID,
		Topic:    event.TopicReservationCancelled,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, pkgkafka.IdempotentHandler(seen, handle, a.logger), a.logger,
		pkgkafka.WithDeadLetter(a.dlq),
		pkgkafka.WithMetrics(metrics),
	)
}

// Run starts the HTTP server and the Kafka consumer, then blocks until the
// context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.cancelled != nil {
		go func() {
			if err := a.cancelled.Start(ctx); err != nil {
				errCh <- fmt.Errorf("reservation cancelled consumer: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("component failed, shutting down", slog.String("error", runErr.Error()))
	}

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components in order: HTTP server, tracer,
// Kafka consumer and producers, then the Redis client and PostgreSQL pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// Drain in-flight HTTP requests.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Flush spans after the drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}

	errs = append(errs, a.closeDependencies())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeDependencies closes whatever NewApp managed to open.
func (a *App) closeDependencies() error {
	var errs []error
	closeOne := func(name string, fn func() error) {
		if err := fn(); err != nil {
			a.logger.Error(name+" close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.cancelled != nil {
		closeOne("reservation cancelled consumer", a.cancelled.Close)
	}
	if a.dlq != nil {
		closeOne("kafka dlq producer", a.dlq.Close)
	}
	if a.producer != nil {
		closeOne("kafka producer", a.producer.Close)
	}
	if a.redis != nil {
		closeOne("redis", a.redis.Close)
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracerShutdown != nil {
		closeOne("tracer", func() error { return a.tracerShutdown(context.Background()) })
	}
	return errors.Join(errs...)
}
