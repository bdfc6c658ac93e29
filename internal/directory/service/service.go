// Package service implements the directory use cases: CRUD over locations,
// services and workers with cached, projected, paginated reads, and the bulk
// worker transfer.
package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"directory/internal/directory/events"
	"directory/internal/directory/metrics"
	"directory/internal/directory/query"
)

// Repository is the data source for one entity kind.
//
// Stores report missing rows with sentinel.ErrNotFound, natural-key
// collisions with sentinel.ErrAlreadyUsed, missing foreign-key targets with
// sentinel.ErrDangling and deletes blocked by dependents with
// sentinel.ErrReferenced.
type Repository[T any] interface {
	query.Source[T]
	FindByID(ctx context.Context, id int64) (T, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
	ExistsByNaturalKey(ctx context.Context, key string, excludeID int64) (bool, error)
	Insert(ctx context.Context, v T) (T, error)
	Update(ctx context.Context, v T) error
	Delete(ctx context.Context, id int64) error
	CountDependents(ctx context.Context, id int64) (int, error)
}

// Existence answers whether a row with id exists.
type Existence interface {
	ExistsByID(ctx context.Context, id int64) (bool, error)
}

// Transactor runs fn atomically. Repositories called with the ctx handed to
// fn take part in the transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ListParams are the caller-facing list inputs.
type ListParams struct {
	SearchTerm *string
	Fields     string
	PageNumber int
	PageSize   int
}

type options struct {
	logger          *slog.Logger
	metrics         *metrics.Metrics
	publisher       events.Publisher
	tracer          trace.Tracer
	pager           query.Pager
	now             func() time.Time
	transferTimeout time.Duration
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithPublisher sets where change events go. Without one no events are published.
func WithPublisher(p events.Publisher) Option {
	return func(o *options) {
		o.publisher = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithMaxPageSize caps list page sizes. Non-positive values keep the default.
func WithMaxPageSize(n int) Option {
	return func(o *options) {
		o.pager = query.NewPager(n)
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithTransferTimeout bounds a whole transfer batch. Zero disables the bound.
func WithTransferTimeout(d time.Duration) Option {
	return func(o *options) {
		o.transferTimeout = d
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: otel.Tracer("directory/internal/directory/service"),
		pager:  query.NewPager(query.DefaultMaxPageSize),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
