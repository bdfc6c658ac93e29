// Package handler exposes the directory services over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"directory/internal/directory/models"
	"directory/internal/directory/projection"
	"directory/internal/directory/service"
	dErrors "directory/pkg/domain-errors"
	"directory/pkg/platform/httputil"
	"directory/pkg/requestcontext"
)

// writer is the write and existence surface shared by every entity kind.
type writer[T any] interface {
	Create(ctx context.Context, v T) (T, error)
	Update(ctx context.Context, id int64, v T) error
	Delete(ctx context.Context, id int64) error
	ExistsByID(ctx context.Context, id int64) (bool, error)
	ExistsByNaturalKey(ctx context.Context, key string) (bool, error)
}

// CatalogService is implemented by the location and service services.
type CatalogService[T any] interface {
	writer[T]
	GetFiltered(ctx context.Context, p service.ListParams) (service.ListResult[T], error)
	GetByID(ctx context.Context, id int64, fields string) (projection.View[T], error)
}

// WorkerService reads workers with optional relation filters.
type WorkerService interface {
	writer[models.Worker]
	GetFiltered(ctx context.Context, p service.ListParams, f service.WorkerFilter) (service.ListResult[models.Worker], error)
	GetByID(ctx context.Context, id int64, fields string, f service.WorkerFilter) (projection.View[models.Worker], error)
}

// TransferService moves batches of workers.
type TransferService interface {
	Transfer(ctx context.Context, req service.TransferRequest) (service.TransferResult, error)
}

// Handler serves the location, service and worker endpoints.
type Handler struct {
	logger      *slog.Logger
	locations   CatalogService[models.Location]
	services    CatalogService[models.Service]
	workers     WorkerService
	transfers   TransferService
	maxPageSize int
}

// New creates a Handler. maxPageSize is the page size used when a list
// request does not name one.
func New(
	locations CatalogService[models.Location],
	services CatalogService[models.Service],
	workers WorkerService,
	transfers TransferService,
	logger *slog.Logger,
	maxPageSize int,
) *Handler {
	return &Handler{
		logger:      logger,
		locations:   locations,
		services:    services,
		workers:     workers,
		transfers:   transfers,
		maxPageSize: maxPageSize,
	}
}

// Register mounts the directory routes under /api.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/location", func(r chi.Router) {
		catalogRoutes[models.Location](h, r, h.locations, locationID)
	})
	r.Route("/api/service", func(r chi.Router) {
		catalogRoutes[models.Service](h, r, h.services, serviceID)
	})
	r.Route("/api/worker", func(r chi.Router) {
		r.Get("/", h.handleListWorkers)
		r.Post("/", handleCreate[models.Worker](h, h.workers))
		r.Post("/transfer", h.handleTransfer)
		r.Get("/exists-by-id/{id}", handleExistsByID[models.Worker](h, h.workers))
		r.Get("/exists/{key}", handleExistsByKey[models.Worker](h, h.workers))
		r.Get("/{id}", h.handleGetWorker)
		r.Put("/{id}", handleUpdate[models.Worker](h, h.workers, workerID))
		r.Delete("/{id}", handleDelete[models.Worker](h, h.workers))
	})
}

func catalogRoutes[T any, PT entity[T]](h *Handler, r chi.Router, svc CatalogService[T], id idField[T]) {
	r.Get("/", handleList(h, svc))
	r.Post("/", handleCreate[T, PT](h, svc))
	r.Get("/exists-by-id/{id}", handleExistsByID[T](h, svc))
	r.Get("/exists/{key}", handleExistsByKey[T](h, svc))
	r.Get("/{id}", handleGet(h, svc))
	r.Put("/{id}", handleUpdate[T, PT](h, svc, id))
	r.Delete("/{id}", handleDelete[T](h, svc))
}

// writeError logs unexpected failures and writes the error envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal || code == dErrors.CodeUnavailable {
		h.logger.ErrorContext(ctx, "request failed",
			"request_id", requestcontext.RequestID(ctx),
			"client_ip", requestcontext.ClientIP(ctx),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
