package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"directory/internal/directory/cache"
	"directory/internal/directory/events"
	"directory/internal/directory/metrics"
	"directory/internal/directory/models"
	"directory/internal/directory/store/memory"
)

// fixture wires every service over the in-memory store and cache.
type fixture struct {
	db        *memory.DB
	store     *cache.MemoryStore
	cache     *cache.Cache
	events    *events.Recorder
	metrics   *metrics.Metrics
	locations *Locations
	services  *Services
	workers   *Workers
	transfers *TransferEngine
}

func newFixture(extra ...Option) *fixture {
	f := &fixture{
		db:      memory.New(),
		store:   cache.NewMemoryStore(),
		events:  events.NewRecorder(),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.cache = cache.New(f.store, 5*time.Minute, cache.WithLogger(logger), cache.WithMetrics(f.metrics))
	opts := append([]Option{
		WithLogger(logger),
		WithMetrics(f.metrics),
		WithPublisher(f.events),
	}, extra...)

	f.locations = NewLocations(f.db.Locations(), f.cache, opts...)
	f.services = NewServices(f.db.Services(), f.cache, opts...)
	f.workers = NewWorkers(f.db.Workers(), f.db.Locations(), f.db.Services(), f.cache, opts...)
	f.transfers = NewTransferEngine(f.workers, f.db, opts...)
	return f
}

func (f *fixture) location(ctx context.Context, city string) models.Location {
	l, err := f.locations.Create(ctx, models.Location{City: city})
	if err != nil {
		panic(err)
	}
	return l
}

func (f *fixture) service(ctx context.Context, name string) models.Service {
	s, err := f.services.Create(ctx, models.Service{Name: name})
	if err != nil {
		panic(err)
	}
	return s
}

func newWorker(n int, locationID, serviceID int64) models.Worker {
	return models.Worker{
		FirstName:   fmt.Sprintf("Jean%d", n),
		LastName:    fmt.Sprintf("Dupont%d", n),
		Email:       fmt.Sprintf("jean%d@example.com", n),
		PhoneFixed:  "02 99 00 00 00",
		PhoneMobile: "+33 6 12 34 56",
		LocationID:  locationID,
		ServiceID:   serviceID,
	}
}

func (f *fixture) worker(ctx context.Context, n int, locationID, serviceID int64) models.Worker {
	w, err := f.workers.Create(ctx, newWorker(n, locationID, serviceID))
	if err != nil {
		panic(err)
	}
	return w
}

func ptr[T any](v T) *T { return &v }
