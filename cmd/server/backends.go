package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"directory/internal/directory/cache"
	"directory/internal/directory/events"
	"directory/internal/directory/models"
	"directory/internal/directory/service"
	"directory/internal/directory/store/memory"
	"directory/internal/directory/store/postgres"
	"directory/internal/platform/config"
	"directory/internal/platform/kafka"
	"directory/internal/platform/redis"
)

// storage is the data source the services run on.
type storage struct {
	locations service.Repository[models.Location]
	services  service.Repository[models.Service]
	workers   service.Repository[models.Worker]
	tx        service.Transactor
	health    func(ctx context.Context) error
	close     func() error
}

func openStorage(ctx context.Context, cfg config.Server, log *slog.Logger) (*storage, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		db := memory.New()
		return &storage{
			locations: db.Locations(),
			services:  db.Services(),
			workers:   db.Workers(),
			tx:        db,
			health:    func(context.Context) error { return nil },
			close:     func() error { return nil },
		}, nil
	}

	pg, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("connected to postgres")
	return &storage{
		locations: pg.Locations(),
		services:  pg.Services(),
		workers:   pg.Workers(),
		tx:        pg,
		health:    pg.Health,
		close:     pg.Close,
	}, nil
}

// cacheBackend is the cache store plus its lifecycle hooks.
type cacheBackend struct {
	store  cache.Store
	health func(ctx context.Context) error
	close  func() error
}

func openCache(ctx context.Context, cfg config.Server, log *slog.Logger) (*cacheBackend, error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Info("REDIS_URL not set, caching in process")
		return &cacheBackend{
			store:  cache.NewMemoryStore(),
			health: func(context.Context) error { return nil },
			close:  func() error { return nil },
		}, nil
	}
	log.Info("connected to redis")
	return &cacheBackend{
		store:  cache.NewRedisStore(client.Client),
		health: client.Health,
		close:  client.Close,
	}, nil
}

// eventSink is the change-event publisher. run is nil when nothing runs in the background.
type eventSink struct {
	publisher events.Publisher
	run       func(ctx context.Context) error
	close     func()
}

func openEvents(ctx context.Context, cfg config.Server, log *slog.Logger) (*eventSink, error) {
	client, err := kafka.New(ctx, cfg.Kafka, log)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Info("KAFKA_BROKERS not set, logging change events")
		return &eventSink{publisher: events.NewLogPublisher(log), close: func() {}}, nil
	}
	if err := events.EnsureTopic(ctx, client, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
		client.Close()
		return nil, err
	}
	log.Info("publishing change events to kafka", "topic", cfg.Kafka.Topic)
	async := events.NewAsync(events.NewKafkaPublisher(client, cfg.Kafka.Topic), cfg.Kafka.BufferSize, log)
	return &eventSink{
		publisher: async,
		run:       async.Run,
		close:     closeKafka(async, client),
	}, nil
}

func closeKafka(async *events.AsyncPublisher, client *kgo.Client) func() {
	return func() {
		async.Close()
		client.Close()
	}
}
