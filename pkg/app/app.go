package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/submission"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/delivery"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/orchestrator"
	"github.com/Ramsey-B/clover/pkg/recordstore"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/routes/deliveries"
	"github.com/Ramsey-B/clover/pkg/routes/forms"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/routes/status"
	"github.com/Ramsey-B/clover/pkg/sections"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	DependencyTracing    = "tracing"
	DependencyDatabase   = "database"
	DependencyMigrations = "migrations"
	DependencyRehydrate  = "rehydrate"
	DependencyRedis      = "redis"
	DependencyProducer   = "kafka-producer"
	DependencyConsumer   = "kafka-consumer"

	shutdownTimeout = 15 * time.Second
)

// App owns every long lived component of the service.
type App struct {
	config       *config.Config
	logger       ectologger.Logger
	orchestrator *orchestrator.Orchestrator
	echo         *echo.Echo
	health       *health.Checker
	startup      *startup.Startup

	tracer   *tracing.Provider
	db       database.DB
	redis    *redis.Client
	dlq      *redis.DeadLetterQueue
	producer *kafka.Producer
	consumer *kafka.Consumer
	verifier middleware.TokenVerifier
}

// New builds the service from config. Nothing dials out until Start.
func New(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (*App, error) {
	a := &App{
		config:  cfg,
		logger:  logger,
		health:  health.NewChecker(cfg.Version),
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
	}

	tracer, err := tracing.NewProvider(ctx, tracing.ProviderConfig{
		ServiceName: cfg.AppName,
		Endpoint:    cfg.OtelExporterEndpoint,
		Protocol:    cfg.OtelExporterProtocol,
		Insecure:    cfg.OtelExporterInsecure,
		Timeout:     cfg.OtelExporterTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}
	a.tracer = tracer

	orch, err := a.buildOrchestrator()
	if err != nil {
		return nil, err
	}
	a.orchestrator = orch

	if cfg.KafkaConsumerEnabled {
		a.consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaInputTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		}, logger, orch.HandleMessage)
	}

	if cfg.AuthEnabled() {
		a.verifier = middleware.NewIssuerVerifier(cfg.AuthIssuerURL, cfg.AuthClientID)
	}

	a.registerDependencies()
	a.registerHealthChecks()
	a.echo = a.buildServer()

	return a, nil
}

func (a *App) buildOrchestrator() (*orchestrator.Orchestrator, error) {
	cfg := a.config

	store := recordstore.New()
	matcher, err := matching.NewMatcher(store, cfg.Matching(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create matcher: %w", err)
	}

	clientConfig := httpclient.DefaultConfig()
	clientConfig.Timeout = cfg.DeliveryTimeout
	sender := delivery.NewWebhookSender(cfg.Delivery(), httpclient.NewClient(clientConfig, a.logger), a.logger)

	opts := []orchestrator.Option{
		orchestrator.WithExplanationCacheSize(cfg.ExplanationCacheSize),
	}

	if cfg.DatabaseEnabled() {
		db, err := database.Open(DatabaseConfig(cfg), a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.db = db
		opts = append(opts, orchestrator.WithArchive(submission.NewRepository(db, a.logger)))
	}

	if cfg.RedisEnabled() {
		a.redis = redis.Open(RedisConfig(cfg), a.logger)
		a.dlq = redis.NewDeadLetterQueue(a.redis, cfg.RedisDLQStream, a.logger)
		opts = append(opts,
			orchestrator.WithDeadLetters(a.dlq),
			orchestrator.WithLedger(redis.NewDeliveryLedger(a.redis, cfg.RedisLedgerPrefix, cfg.RedisLedgerTTL)),
		)
	}

	if cfg.KafkaEventsEnabled {
		a.producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, a.logger)
		opts = append(opts, orchestrator.WithEmitter(events.NewEmitter(a.producer, a.logger)))
	}

	return orchestrator.New(a.logger, store, matcher, merging.NewEngine(a.logger), sections.NewRegistry(), sender, opts...)
}

func (a *App) registerDependencies() {
	a.startup.AddDependency(&startup.Dependency{
		Name:   DependencyTracing,
		OnStop: a.tracer.Shutdown,
	})

	var consumerRequires []string

	if a.db != nil {
		migrations := database.NewMigrator(a.logger, MigrationConfig(a.config))

		a.startup.AddDependency(&startup.Dependency{
			Name:    DependencyDatabase,
			OnStart: a.db.PingContext,
			OnStop:  func(context.Context) error { return a.db.Close() },
		})
		a.startup.AddDependency(&startup.Dependency{
			Name:     DependencyMigrations,
			Requires: []string{DependencyDatabase},
			OnStart: func(ctx context.Context) error {
				return migrations.Up(ctx, a.db, a.config.DatabaseName)
			},
		})
		if a.config.DatabaseRehydrateOnStart {
			a.startup.AddDependency(&startup.Dependency{
				Name:     DependencyRehydrate,
				Requires: []string{DependencyMigrations},
				OnStart: func(ctx context.Context) error {
					_, err := a.orchestrator.Rehydrate(ctx)
					return err
				},
			})
			consumerRequires = append(consumerRequires, DependencyRehydrate)
		} else {
			consumerRequires = append(consumerRequires, DependencyMigrations)
		}
	}

	if a.redis != nil {
		a.startup.AddDependency(&startup.Dependency{
			Name:    DependencyRedis,
			OnStart: a.redis.Ping,
			OnStop:  func(context.Context) error { return a.redis.Close() },
		})
		consumerRequires = append(consumerRequires, DependencyRedis)
	}

	if a.producer != nil {
		a.startup.AddDependency(&startup.Dependency{
			Name:   DependencyProducer,
			OnStop: func(context.Context) error { return a.producer.Close() },
		})
		consumerRequires = append(consumerRequires, DependencyProducer)
	}

	if a.consumer != nil {
		a.startup.AddDependency(&startup.Dependency{
			Name:     DependencyConsumer,
			Requires: consumerRequires,
			OnStart:  a.consumer.Start,
			OnStop:   func(context.Context) error { return a.consumer.Stop() },
		})
	}
}

func (a *App) registerHealthChecks() {
	if a.db != nil {
		a.health.AddCheck(DependencyDatabase, a.db.PingContext, true)
	}
	if a.redis != nil {
		a.health.AddCheck(DependencyRedis, a.redis.Ping, false)
	}
	if a.consumer != nil {
		a.health.AddCheck(DependencyConsumer, func(context.Context) error {
			if !a.consumer.Health() {
				return errors.New("consumer is not reading")
			}
			return nil
		}, false)
	}
}

func (a *App) buildServer() *echo.Echo {
	cfg := a.config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)

	e.Use(echomw.Recover())
	if cfg.OtelExporterEndpoint != "" {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))

	a.health.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	var operator []echo.MiddlewareFunc
	if a.verifier != nil {
		operator = append(operator, middleware.Authentication(a.logger, a.verifier))
	}

	g := e.Group("")
	forms.NewHandler(a.orchestrator).Register(g)
	status.NewHandler(a.orchestrator, status.DeliveryInfo{
		Enabled:           cfg.DeliveryEnabled,
		WebhookConfigured: cfg.DeliveryWebhookURL != "",
		Threshold:         cfg.MatchThreshold,
	}, cfg.Version).Register(g, operator...)

	var dlq deliveries.DeadLetterReader
	if a.dlq != nil {
		dlq = a.dlq
	}
	deliveries.NewHandler(dlq).Register(g, operator...)

	return e
}

// Orchestrator exposes the core for the CLI.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orchestrator
}

// Handler is the HTTP surface, for mounting or testing.
func (a *App) Handler() http.Handler {
	return a.echo
}

// Start brings every configured dependency up and marks the service ready.
func (a *App) Start(ctx context.Context) error {
	if err := a.startup.Start(ctx); err != nil {
		return err
	}
	a.health.SetReady(true)
	return nil
}

// Stop marks the service unready and tears dependencies down.
func (a *App) Stop(ctx context.Context) error {
	a.health.SetReady(false)
	return a.startup.Stop(ctx)
}

// Run starts the service and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	cfg := a.config
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           a.echo,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.WithField("port", cfg.Port).Info("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case runErr = <-serverErr:
		a.logger.WithError(runErr).Error("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}
	if err := a.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}

	a.logger.Info("Shutdown complete")
	return runErr
}

func DatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}
}

func MigrationConfig(cfg *config.Config) database.MigrationConfig {
	return database.MigrationConfig{
		FolderPath:   cfg.DatabaseMigrationFolderPath,
		Version:      uint(cfg.DatabaseMigrationVersion),
		Force:        cfg.DatabaseMigrationForce,
		AutoRollback: cfg.DatabaseMigrationAutoRollback,
	}
}

func RedisConfig(cfg *config.Config) redis.Config {
	return redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
