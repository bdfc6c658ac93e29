package service

import (
	"context"
	"fmt"

	"directory/internal/directory/cache"
	"directory/internal/directory/models"
	"directory/internal/directory/projection"
	"directory/internal/directory/query"
	dErrors "directory/pkg/domain-errors"
)

// WorkerFilter narrows worker reads to one location and/or service.
type WorkerFilter struct {
	LocationID *int64
	ServiceID  *int64
}

func (f WorkerFilter) equals() ([]query.Equal, error) {
	var eq []query.Equal
	if f.LocationID != nil {
		if err := models.ValidateID(*f.LocationID); err != nil {
			return nil, err
		}
		eq = append(eq, query.Equal{Field: models.FieldLocationID, Value: *f.LocationID})
	}
	if f.ServiceID != nil {
		if err := models.ValidateID(*f.ServiceID); err != nil {
			return nil, err
		}
		eq = append(eq, query.Equal{Field: models.FieldServiceID, Value: *f.ServiceID})
	}
	return eq, nil
}

func (f WorkerFilter) matches(w models.Worker) bool {
	if f.LocationID != nil && w.LocationID != *f.LocationID {
		return false
	}
	if f.ServiceID != nil && w.ServiceID != *f.ServiceID {
		return false
	}
	return true
}

// Workers manages directory entries. Every write checks that the worker's
// location and service exist.
type Workers struct {
	*Core[models.Worker]
	locations Existence
	services  Existence
}

func NewWorkers(repo Repository[models.Worker], locations, services Existence, c *cache.Cache, opts ...Option) *Workers {
	w := &Workers{locations: locations, services: services}
	w.Core = newCore(rules[models.Worker]{
		kind:       models.KindWorker,
		schema:     models.WorkerSchema,
		keyField:   models.FieldEmail,
		id:         func(w models.Worker) int64 { return w.ID },
		naturalKey: func(w models.Worker) string { return w.Email },
		normalize:  (*models.Worker).Normalize,
		validate:   models.Worker.Validate,
		references: w.checkReferences,
	}, repo, c, opts)
	return w
}

// GetFiltered returns one page of workers matching the filter.
func (w *Workers) GetFiltered(ctx context.Context, p ListParams, f WorkerFilter) (ListResult[models.Worker], error) {
	eq, err := f.equals()
	if err != nil {
		return ListResult[models.Worker]{}, err
	}
	return w.list(ctx, p, eq)
}

// GetByID returns the worker with id. A worker outside the filter is reported
// as not found.
func (w *Workers) GetByID(ctx context.Context, id int64, fields string, f WorkerFilter) (projection.View[models.Worker], error) {
	if _, err := f.equals(); err != nil {
		return projection.View[models.Worker]{}, err
	}
	sel, worker, err := w.get(ctx, id, fields)
	if err != nil {
		return projection.View[models.Worker]{}, err
	}
	if !f.matches(worker) {
		return projection.View[models.Worker]{}, w.notFound(id)
	}
	return sel.ApplyOne(worker), nil
}

func (w *Workers) checkReferences(ctx context.Context, worker models.Worker) error {
	if err := mustExist(ctx, w.services, models.KindService, worker.ServiceID); err != nil {
		return err
	}
	return mustExist(ctx, w.locations, models.KindLocation, worker.LocationID)
}

func mustExist(ctx context.Context, e Existence, kind models.Kind, id int64) error {
	ok, err := e.ExistsByID(ctx, id)
	if err != nil {
		return fmt.Errorf("check %s %d: %w", kind, id, err)
	}
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "%s with ID %d not found", kind.Title(), id)
	}
	return nil
}
