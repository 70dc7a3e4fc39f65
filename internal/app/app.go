package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Swiftdaops/QuickClean/internal/backend"
	"github.com/Swiftdaops/QuickClean/internal/config"
	"github.com/Swiftdaops/QuickClean/internal/event"
	handler "github.com/Swiftdaops/QuickClean/internal/handler/http"
	"github.com/Swiftdaops/QuickClean/internal/realtime"
	"github.com/Swiftdaops/QuickClean/internal/repository"
	"github.com/Swiftdaops/QuickClean/internal/repository/postgres"
	redisrepo "github.com/Swiftdaops/QuickClean/internal/repository/redis"
	"github.com/Swiftdaops/QuickClean/internal/service"
	"github.com/Swiftdaops/QuickClean/migrations"
	"github.com/Swiftdaops/QuickClean/pkg/database"
	"github.com/Swiftdaops/QuickClean/pkg/health"
	"github.com/Swiftdaops/QuickClean/pkg/httpclient"
	pkgkafka "github.com/Swiftdaops/QuickClean/pkg/kafka"
	"github.com/Swiftdaops/QuickClean/pkg/tracing"
)

const (
	serviceName    = "storefront"
	serviceVersion = "0.1.0"

	// idempotencyTTL covers Kafka redelivery after a consumer restart.
	idempotencyTTL = 24 * time.Hour
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	redis          *redis.Client
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	statusConsumer *pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error

	done      chan struct{}
	closeOnce sync.Once
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		Insecure:       true,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Redis holds session state and carries order-status Pub/Sub.
	redisCfg := database.DefaultRedisConfig()
	redisCfg.Addr = cfg.RedisAddr
	redisCfg.Password = cfg.RedisPass
	redisCfg.DB = cfg.RedisDB
	rdb, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		a.closeTracer()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = rdb
	logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))

	// PostgreSQL receipt ledger.
	var receipts repository.ReceiptRepository
	if cfg.ReceiptsEnabled {
		pool, err := a.openPostgres(ctx)
		if err != nil {
			a.closeStores()
			a.closeTracer()
			return nil, err
		}
		a.pool = pool
		receipts = postgres.NewReceiptRepository(pool)
	} else {
		logger.Info("receipt ledger disabled")
	}

	// Kafka producer with connection validation and retry.
	var publisher pkgkafka.Publisher = pkgkafka.NopPublisher{}
	brokers := cfg.Brokers()
	if len(brokers) > 0 {
		producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(brokers), logger)
		if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
			logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("kafka producer initialized", slog.Any("brokers", brokers))
		}
		a.producer = producer
		publisher = producer
	} else {
		logger.Info("no kafka brokers configured, storefront events are discarded")
	}

	// Booking backend client behind a circuit breaker.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.BackendTimeout
	cbClient := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig("booking-backend"),
		logger,
	)
	backendClient := backend.New(cfg.BackendURL, cbClient, logger)

	// Build the dependency graph.
	stateStore := redisrepo.NewClientStateStore(rdb, cfg.SessionTTLDuration())
	hub := realtime.NewHub(rdb, logger)
	eventProducer := event.NewProducer(publisher, logger)

	reconciler := service.NewReconciler(backendClient, logger)
	cartService := service.NewCartService(stateStore, reconciler, eventProducer, logger)
	bookingService := service.NewBookingService(backendClient, cartService, stateStore, service.BookingDeps{
		Receipts:     receipts,
		Events:       eventProducer,
		AdminContact: cfg.AdminWhatsApp,
	}, logger)
	trackerService := service.NewTrackerService(backendClient, hub, stateStore, logger)

	// Status relay: backend status events from Kafka fan out through Redis.
	if cfg.StatusRelayEnabled {
		relay := event.NewStatusRelay(hub, logger)
		store := pkgkafka.NewRedisIdempotencyStore(rdb, "storefront:events:", idempotencyTTL)
		a.statusConsumer = event.NewStatusConsumer(brokers, cfg.KafkaStatusTopic, relay, store, logger)
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if a.pool != nil {
		pool := a.pool
		healthHandler.RegisterOptional("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
	}
	if a.producer != nil {
		producer := a.producer
		healthHandler.RegisterOptional("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
	}
	healthHandler.RegisterOptional("backend", backendClient.Ping)

	// HTTP router.
	router := handler.NewRouter(handler.Services{
		Catalog:  backendClient,
		Carts:    cartService,
		Bookings: bookingService,
		Tracker:  trackerService,
	}, healthHandler, handler.RouterConfig{
		Session: handler.SessionConfig{
			TTL:    cfg.SessionTTLDuration(),
			Secure: cfg.CookieSecure,
		},
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		RequestTimeout:   cfg.RequestTimeout,
		BookingRateLimit: cfg.BookingRateLimitRPS,
		BookingBurst:     cfg.BookingRateLimitBurst,
		Done:             a.done,
	}, logger)

	// Event streams clear their own write deadline.
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

// openPostgres connects the receipt pool, registers its metrics and migrates.
func (a *App) openPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	cfg := a.cfg
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

	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}
	return pool, nil
}

// Run starts the HTTP server and the status relay, then blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Start the status relay consumer.
	if a.statusConsumer != nil {
		go func() {
			if err := a.statusConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("status relay consumer: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		if shutdownErr := a.Shutdown(); shutdownErr != nil {
			return errors.Join(err, shutdownErr)
		}
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests, event streams end with their clients)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumer
// 4. Kafka producer
// 5. PostgreSQL pool and Redis client
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// Stops rate limiter cleanup.
	a.closeOnce.Do(func() { close(a.done) })

	// 1. Drain in-flight HTTP requests (5s).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if err := a.closeTracer(); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 3. Close the Kafka consumer.
	if a.statusConsumer != nil {
		if err := a.statusConsumer.Close(); err != nil {
			a.logger.Error("status relay consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close the Kafka producer.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 5. Close stores.
	if err := a.closeStores(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeTracer() error {
	if a.tracerShutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := a.tracerShutdown(ctx)
	a.tracerShutdown = nil
	return err
}

func (a *App) closeStores() error {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.redis == nil {
		return nil
	}
	err := a.redis.Close()
	a.redis = nil
	return err
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		err := producer.Ping(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < 2 {
			base := time.Duration(1<<uint(attempt)) * time.Second
			jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
			wait := base + jitter
			logger.Warn("kafka producer ping failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", 3),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("kafka producer ping failed after 3 attempts: %w", lastErr)
}
