package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers"
	"staybook/internal/app/lifecycle"
	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/sweeper"
	"staybook/internal/app/uow"
	"staybook/internal/domain/property"
	"staybook/internal/infra/authz"
	"staybook/internal/infra/broker/kafka"
	"staybook/internal/infra/broker/rabbitmq"
	rediscache "staybook/internal/infra/cache/redis"
	"staybook/internal/infra/config"
	mongodb "staybook/internal/infra/db/mongo"
	"staybook/internal/infra/db/postgres"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/obs"
	"staybook/internal/infra/outbox"
	"staybook/internal/infra/storage/memory"
	"staybook/internal/infra/storage/s3"
	"staybook/internal/infra/validation"
)

const idempotencyTTL = 7 * 24 * time.Hour

type application struct {
	handlers ginserver.Handlers
	health   obs.HealthHandlers
	relay    *outbox.Worker
	memory   *memory.Store
	closers  []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{health: obs.HealthHandlers{Checks: map[string]obs.Check{}, Timeout: 2 * time.Second}}

	var (
		factory     uow.UoWFactory
		properties  property.Reader
		relayStore  outbox.Store
		idempotency middleware.IdempotencyStore = memory.NewIdempotencyStore()
	)
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		factory = postgres.Factory{DB: db}
		properties = postgres.NewPropertyRepository(db)
		relayStore = &postgres.OutboxStore{DB: db}
		app.health.Checks["postgres"] = pingDB(db)
	default:
		store := memory.NewStore()
		app.memory = store
		factory = store
		properties = store
		relayStore = store
	}

	if cfg.RedisAddr != "" {
		client, err := rediscache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		properties = &rediscache.PropertyReader{Next: properties, Client: client, TTL: cfg.PropertyCacheTTL, Logger: logger}
		app.health.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	if cfg.MongoURI != "" {
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		app.closers = append(app.closers, func() { _ = client.Close(context.Background()) })
		store, err := mongodb.NewIdempotencyStore(ctx, client.DB, idempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("mongo idempotency: %w", err)
		}
		idempotency = store
		app.health.Checks["mongo"] = client.Ping
	}

	engine, err := lifecycle.NewEngine(factory, properties, cfg.Lifecycle, lifecycle.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var proofs policies.ProofStorage = s3.Unconfigured{}
	if cfg.S3Endpoint != "" && cfg.S3Bucket != "" {
		store, err := s3.NewProofStore(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, logger)
		if err != nil {
			return nil, err
		}
		proofs = store
	}

	authorizer, err := authz.New(engine, properties, nil, logger)
	if err != nil {
		return nil, err
	}
	deps := handlers.Deps{
		Engine:       engine,
		Sweeper:      sweeper.New(engine, cfg.SweepBatchSize, logger),
		ProofStorage: proofs,
		Logger:       logger,
	}
	commandBus := commands.NewInMemoryBus()
	handlers.RegisterCommands(commandBus, deps)
	queryBus := queries.NewInMemoryBus()
	handlers.RegisterQueries(queryBus, deps)

	v := validation.New()
	cmds := middleware.ChainCommands(commandBus,
		middleware.Authorization(authorizer),
		middleware.Validation(v),
		middleware.Idempotency(idempotency, middleware.JSONResultCodec{}),
	)
	qs := middleware.ChainQueries(queryBus,
		middleware.QueryAuthorization(authorizer),
		middleware.QueryValidation(v),
	)

	app.handlers = ginserver.Handlers{
		Booking:        ginserver.BookingHandler{Commands: cmds, Queries: qs, Logger: logger},
		Property:       ginserver.PropertyHandler{Queries: qs, Logger: logger},
		Admin:          ginserver.AdminHandler{Commands: cmds, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Secret: []byte(cfg.JWTSecret), Logger: logger}.Handle,
	}

	producer, err := newProducer(cfg)
	if err != nil {
		return nil, err
	}
	if producer != nil {
		app.closers = append(app.closers, func() { _ = producer.Close() })
		app.relay = &outbox.Worker{
			Store:       relayStore,
			Producer:    producer,
			Breaker:     outbox.NewBreaker("outbox-"+cfg.EventBroker, logger),
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.TopicPrefix,
			Source:      "staybook",
			Backoff:     cfg.RetryBackoff,
			Logger:      logger,
		}
	}
	return app, nil
}

type closingProducer interface {
	outbox.Producer
	Close() error
}

func newProducer(cfg config.Config) (closingProducer, error) {
	switch cfg.EventBroker {
	case config.BrokerKafka:
		p, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		return p, nil
	case config.BrokerRabbitMQ:
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq publisher: %w", err)
		}
		return p, nil
	default:
		return nil, nil
	}
}

func pingDB(db *sql.DB) obs.Check {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}
