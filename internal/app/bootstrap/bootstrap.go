package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ordersservice "courier/contexts/notifications/orders-service"
	postgresadapter "courier/contexts/notifications/orders-service/adapters/postgres"
	redisadapter "courier/contexts/notifications/orders-service/adapters/redis"
	"courier/contexts/notifications/orders-service/application/workers"
	"courier/internal/platform/config"
	"courier/internal/platform/db"
	"courier/internal/platform/httpserver"
	"courier/internal/platform/messaging"
	"courier/internal/platform/observability"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const logModule = "internal/app/bootstrap"

type APIApp struct {
	server          *httpserver.Server
	postgres        *db.Postgres
	shutdownTracing observability.ShutdownFunc
	logger          *slog.Logger
}

type WorkerApp struct {
	postgres        *db.Postgres
	redis           *redis.Client
	producer        *messaging.Producer
	subscriber      *messaging.Subscriber
	module          ordersservice.Module
	pollInterval    time.Duration
	shutdownTracing observability.ShutdownFunc
	logger          *slog.Logger
}

// StandaloneApp runs intake, dispatch and result consumption in one process
// on the in-memory store and bus.
type StandaloneApp struct {
	server       *httpserver.Server
	bus          *messaging.Bus
	module       ordersservice.Module
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.LogLevel).With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	pg, err := db.Connect(cfg.PostgresDSN, db.DefaultPoolOptions())
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	if err := repo.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, err
	}
	if err := provisionTopics(ctx, cfg.Kafka, workers.Topics{}, logger); err != nil {
		_ = pg.Close()
		return nil, err
	}

	module := ordersservice.NewModule(ordersservice.Dependencies{
		Orders:      repo,
		Feed:        repo,
		Clock:       postgresadapter.SystemClock{},
		IDGenerator: postgresadapter.UUIDGenerator{},
		Logger:      logger,
	})

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:          server,
		postgres:        pg,
		shutdownTracing: shutdownTracing,
		logger:          logger,
	}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.LogLevel).With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	pg, err := db.Connect(cfg.PostgresDSN, db.DefaultPoolOptions())
	if err != nil {
		return nil, err
	}
	app := &WorkerApp{
		postgres:        pg,
		pollInterval:    cfg.Dispatch.PollInterval,
		shutdownTracing: shutdownTracing,
		logger:          logger,
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	if err := repo.Migrate(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	app.redis = redisadapter.NewClient(cfg.Redis.Addr)
	if err := redisadapter.Ping(ctx, app.redis); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	topics := workers.Topics{}
	if err := provisionTopics(ctx, cfg.Kafka, topics, logger); err != nil {
		_ = app.Close()
		return nil, err
	}

	saramaCfg := messaging.NewSaramaConfig(cfg.Kafka)
	asyncProducer, err := sarama.NewAsyncProducer(cfg.Kafka.Brokers, saramaCfg)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	app.producer = messaging.NewProducer(asyncProducer, messaging.ProducerOptions{
		Logger:  logger,
		KeyFunc: messaging.EnvelopePartitionKey,
	})
	app.subscriber = messaging.NewSubscriber(cfg.Kafka.Brokers, saramaCfg, logger)

	dedup := redisadapter.NewDedupStore(app.redis)
	app.module = ordersservice.NewModule(ordersservice.Dependencies{
		Orders:            repo,
		Feed:              repo,
		Dedup:             dedup,
		Clock:             postgresadapter.SystemClock{},
		IDGenerator:       postgresadapter.UUIDGenerator{},
		Publisher:         app.producer,
		Subscriber:        app.subscriber,
		Topics:            topics,
		DispatchBatchSize: cfg.Dispatch.BatchSize,
		ConsumerGroup:     cfg.Kafka.ConsumerGroup,
		DedupTTL:          cfg.Redis.DedupTTL,
		Logger:            logger,
	})
	return app, nil
}

// BuildStandalone needs no external infrastructure; state lives in memory.
func BuildStandalone() (*StandaloneApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.LogLevel).With("service", cfg.ServiceName, "process", "standalone")
	bus := messaging.NewBus(logger)
	module := ordersservice.NewInMemoryModule(logger)
	module.DispatchRelay.Publisher = bus
	module.DispatchRelay.BatchSize = cfg.Dispatch.BatchSize
	module.ResultConsumer.Subscriber = bus
	module.ResultConsumer.ConsumerGroup = cfg.Kafka.ConsumerGroup

	return &StandaloneApp{
		server:       httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort)),
		bus:          bus,
		module:       module,
		pollInterval: cfg.Dispatch.PollInterval,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", logModule,
			"layer", "platform",
		)
	}
	return serve(ctx, a.server)
}

func (a *APIApp) Close() error {
	var errs []error
	if a.shutdownTracing != nil {
		errs = append(errs, a.shutdownTracing(context.Background()))
	}
	if a.postgres != nil {
		errs = append(errs, a.postgres.Close())
	}
	return errors.Join(errs...)
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.module.ResultConsumer.Start(ctx); err != nil {
		return err
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", logModule,
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)
	return runRelay(ctx, w.module.DispatchRelay, w.pollInterval, w.logger)
}

func (w *WorkerApp) Close() error {
	var errs []error
	if w.subscriber != nil {
		errs = append(errs, w.subscriber.Close())
	}
	if w.producer != nil {
		errs = append(errs, w.producer.Close())
	}
	if w.redis != nil {
		errs = append(errs, w.redis.Close())
	}
	if w.shutdownTracing != nil {
		errs = append(errs, w.shutdownTracing(context.Background()))
	}
	if w.postgres != nil {
		errs = append(errs, w.postgres.Close())
	}
	return errors.Join(errs...)
}

func (s *StandaloneApp) Run(ctx context.Context) error {
	if err := s.module.ResultConsumer.Start(ctx); err != nil {
		return err
	}
	s.logger.Info("standalone app started",
		"event", "bootstrap_standalone_started",
		"module", logModule,
		"layer", "platform",
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serve(ctx, s.server)
	})
	g.Go(func() error {
		return runRelay(ctx, s.module.DispatchRelay, s.pollInterval, s.logger)
	})
	return g.Wait()
}

func (s *StandaloneApp) Close() error {
	return nil
}

// serve runs the server until ctx ends, then drains in-flight requests.
func serve(ctx context.Context, server *httpserver.Server) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// runRelay ticks the dispatch relay. A failed cycle is logged and retried on
// the next tick; the loop ends only with ctx.
func runRelay(ctx context.Context, relay workers.DispatchRelay, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := relay.RunOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("dispatch cycle failed",
				"event", "bootstrap_dispatch_cycle_failed",
				"module", logModule,
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func provisionTopics(ctx context.Context, cfg config.KafkaConfig, topics workers.Topics, logger *slog.Logger) error {
	admin, err := sarama.NewClusterAdmin(cfg.Brokers, messaging.NewSaramaConfig(cfg))
	if err != nil {
		return fmt.Errorf("create kafka admin: %w", err)
	}
	defer func() { _ = admin.Close() }()

	specs := make([]messaging.TopicSpec, 0, len(topics.All()))
	for _, name := range topics.All() {
		specs = append(specs, messaging.TopicSpec{
			Name:              name,
			Partitions:        cfg.TopicPartitions,
			ReplicationFactor: cfg.TopicReplication,
		})
	}
	return messaging.EnsureTopics(ctx, admin, specs, logger)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
