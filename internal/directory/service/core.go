package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"directory/internal/directory/cache"
	"directory/internal/directory/events"
	"directory/internal/directory/models"
	"directory/internal/directory/projection"
	"directory/internal/directory/query"
	dErrors "directory/pkg/domain-errors"
	"directory/pkg/platform/sentinel"
	"directory/pkg/requestcontext"
)

// ListResult is one projected page.
type ListResult[T any] struct {
	Items      projection.Result[T] `json:"items"`
	TotalCount int                  `json:"total_count"`
	PageNumber int                  `json:"page_number"`
	PageSize   int                  `json:"page_size"`
}

// rules describe what differs between entity kinds.
type rules[T any] struct {
	kind       models.Kind
	schema     *projection.Schema[T]
	keyField   string
	id         func(T) int64
	naturalKey func(T) string
	normalize  func(*T)
	validate   func(T) error
	// references checks that foreign keys point at existing rows. Optional.
	references func(ctx context.Context, v T) error
	// dependents names what blocks a delete, e.g. "workers". Empty when nothing can.
	dependents string
}

// Core implements create, read, update and delete for one entity kind. Reads
// go through the result cache; writes invalidate it.
type Core[T any] struct {
	options
	rules rules[T]
	repo  Repository[T]
	cache *cache.Cache
}

func newCore[T any](r rules[T], repo Repository[T], c *cache.Cache, opts []Option) *Core[T] {
	return &Core[T]{
		options: buildOptions(opts),
		rules:   r,
		repo:    repo,
		cache:   c,
	}
}

// Kind returns the entity kind served.
func (c *Core[T]) Kind() models.Kind {
	return c.rules.kind
}

// Create validates v, checks its natural key is free and its references
// exist, then stores it.
func (c *Core[T]) Create(ctx context.Context, v T) (created T, err error) {
	ctx, finish := c.start(ctx, "create")
	defer func() { finish(err) }()

	c.rules.normalize(&v)
	if err := c.check(ctx, v, 0); err != nil {
		return created, err
	}
	created, err = c.repo.Insert(ctx, v)
	if err != nil {
		return created, c.translateWrite(err, v)
	}

	id := c.rules.id(created)
	c.invalidate(ctx, 0)
	c.metrics.RecordWrite(string(c.rules.kind), string(events.ActionCreated))
	c.publish(ctx, events.ActionCreated, id, created)
	c.logger.InfoContext(ctx, "entity created",
		"entity", c.rules.kind,
		"id", id,
	)
	return created, nil
}

// GetFiltered returns one page of matching entities, projected to fields.
func (c *Core[T]) GetFiltered(ctx context.Context, p ListParams) (ListResult[T], error) {
	return c.list(ctx, p, nil)
}

func (c *Core[T]) list(ctx context.Context, p ListParams, equals []query.Equal) (res ListResult[T], err error) {
	ctx, finish := c.start(ctx, "list")
	defer func() { finish(err) }()

	sel, err := c.rules.schema.Select(p.Fields)
	if err != nil {
		return res, err
	}
	req, err := c.pager.Normalize(query.Request{
		SearchTerm: p.SearchTerm,
		PageNumber: p.PageNumber,
		PageSize:   p.PageSize,
		Equals:     equals,
	})
	if err != nil {
		return res, err
	}

	key := cache.ListKey(string(c.rules.kind), cache.ListKeyParams{
		SearchTerm:   req.SearchTerm,
		SelectionKey: sel.Key(),
		PageNumber:   req.PageNumber,
		PageSize:     req.PageSize,
		Equals:       equals,
	})
	page, err := cache.Fetch(ctx, c.cache, key, func(ctx context.Context) (query.Page[T], error) {
		return query.Execute[T](ctx, c.pager, c.repo, req)
	})
	if err != nil {
		return res, err
	}

	return ListResult[T]{
		Items:      sel.Apply(page.Items),
		TotalCount: page.TotalCount,
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
	}, nil
}

// GetByID returns the entity projected to fields.
func (c *Core[T]) GetByID(ctx context.Context, id int64, fields string) (projection.View[T], error) {
	sel, v, err := c.get(ctx, id, fields)
	if err != nil {
		return projection.View[T]{}, err
	}
	return sel.ApplyOne(v), nil
}

func (c *Core[T]) get(ctx context.Context, id int64, fields string) (sel projection.Selection[T], v T, err error) {
	ctx, finish := c.start(ctx, "get", attribute.Int64("directory.id", id))
	defer func() { finish(err) }()

	if err := models.ValidateID(id); err != nil {
		return sel, v, err
	}
	sel, err = c.rules.schema.Select(fields)
	if err != nil {
		return sel, v, err
	}
	v, err = cache.Fetch(ctx, c.cache, cache.EntityKey(string(c.rules.kind), id), func(ctx context.Context) (T, error) {
		return c.load(ctx, id)
	})
	return sel, v, err
}

// ExistsByID reports whether a row with id exists. It bypasses the cache.
func (c *Core[T]) ExistsByID(ctx context.Context, id int64) (bool, error) {
	if err := models.ValidateID(id); err != nil {
		return false, err
	}
	ok, err := c.repo.ExistsByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check %s %d: %w", c.rules.kind, id, err)
	}
	return ok, nil
}

// ExistsByNaturalKey reports whether key is taken, ignoring case and
// surrounding spaces.
func (c *Core[T]) ExistsByNaturalKey(ctx context.Context, key string) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, dErrors.Newf(dErrors.CodeValidation, "%s: must not be empty", c.rules.keyField)
	}
	ok, err := c.repo.ExistsByNaturalKey(ctx, key, 0)
	if err != nil {
		return false, fmt.Errorf("check %s %s: %w", c.rules.kind, c.rules.keyField, err)
	}
	return ok, nil
}

// Update replaces the entity with id. v must carry the same id.
func (c *Core[T]) Update(ctx context.Context, id int64, v T) error {
	return c.update(ctx, id, v, true)
}

func (c *Core[T]) update(ctx context.Context, id int64, v T, publish bool) (err error) {
	ctx, finish := c.start(ctx, "update", attribute.Int64("directory.id", id))
	defer func() { finish(err) }()

	if err := models.ValidateID(id); err != nil {
		return err
	}
	if c.rules.id(v) != id {
		return dErrors.New(dErrors.CodeValidation, "the ID in the URL does not match the provided entity ID")
	}
	c.rules.normalize(&v)
	if err := c.check(ctx, v, id); err != nil {
		return err
	}
	if err := c.repo.Update(ctx, v); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return c.notFound(id)
		}
		return c.translateWrite(err, v)
	}

	c.invalidate(ctx, id)
	c.metrics.RecordWrite(string(c.rules.kind), string(events.ActionUpdated))
	if publish {
		c.publish(ctx, events.ActionUpdated, id, v)
	}
	c.logger.InfoContext(ctx, "entity updated",
		"entity", c.rules.kind,
		"id", id,
	)
	return nil
}

// Delete removes the entity with id unless other rows still reference it.
func (c *Core[T]) Delete(ctx context.Context, id int64) (err error) {
	ctx, finish := c.start(ctx, "delete", attribute.Int64("directory.id", id))
	defer func() { finish(err) }()

	if err := models.ValidateID(id); err != nil {
		return err
	}
	existing, err := c.load(ctx, id)
	if err != nil {
		return err
	}
	if c.rules.dependents != "" {
		n, err := c.repo.CountDependents(ctx, id)
		if err != nil {
			return fmt.Errorf("count %s dependents: %w", c.rules.kind, err)
		}
		if n > 0 {
			return c.linked()
		}
	}
	if err := c.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return c.notFound(id)
		case errors.Is(err, sentinel.ErrReferenced):
			return c.linked()
		}
		return fmt.Errorf("delete %s %d: %w", c.rules.kind, id, err)
	}

	c.invalidate(ctx, id)
	c.metrics.RecordWrite(string(c.rules.kind), string(events.ActionDeleted))
	c.publish(ctx, events.ActionDeleted, id, existing)
	c.logger.InfoContext(ctx, "entity deleted",
		"entity", c.rules.kind,
		"id", id,
	)
	return nil
}

// check runs field validation, the natural-key uniqueness check and then the
// reference checks. excludeID is the row being updated, 0 on create.
func (c *Core[T]) check(ctx context.Context, v T, excludeID int64) error {
	if err := c.rules.validate(v); err != nil {
		return err
	}
	key := c.rules.naturalKey(v)
	taken, err := c.repo.ExistsByNaturalKey(ctx, key, excludeID)
	if err != nil {
		return fmt.Errorf("check %s %s: %w", c.rules.kind, c.rules.keyField, err)
	}
	if taken {
		return c.duplicate(key)
	}
	if c.rules.references != nil {
		return c.rules.references(ctx, v)
	}
	return nil
}

// load reads straight from the repository.
func (c *Core[T]) load(ctx context.Context, id int64) (T, error) {
	v, err := c.repo.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return v, c.notFound(id)
	}
	if err != nil {
		return v, fmt.Errorf("load %s %d: %w", c.rules.kind, id, err)
	}
	return v, nil
}

func (c *Core[T]) translateWrite(err error, v T) error {
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return c.duplicate(c.rules.naturalKey(v))
	case errors.Is(err, sentinel.ErrDangling):
		// A referenced row vanished between the check and the write.
		return dErrors.Wrap(err, dErrors.CodeNotFound, "a referenced entity no longer exists")
	}
	return fmt.Errorf("write %s: %w", c.rules.kind, err)
}

func (c *Core[T]) notFound(id int64) error {
	return dErrors.Newf(dErrors.CodeNotFound, "%s with ID %d not found", c.rules.kind.Title(), id)
}

func (c *Core[T]) duplicate(key string) error {
	return dErrors.Newf(dErrors.CodeConflict, "a %s with the %s '%s' already exists", c.rules.kind, c.rules.keyField, key)
}

func (c *Core[T]) linked() error {
	return dErrors.Newf(dErrors.CodeConflict, "cannot delete a %s linked to %s", c.rules.kind, c.rules.dependents)
}

// invalidate drops the entity entry for id (when id > 0) and every list page
// of the kind. Failures are logged; the write has already happened.
func (c *Core[T]) invalidate(ctx context.Context, id int64) {
	kind := string(c.rules.kind)
	var err error
	if id > 0 {
		err = c.cache.InvalidateEntity(ctx, kind, id)
	} else {
		err = c.cache.InvalidateList(ctx, kind)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "cache invalidation failed",
			"entity", kind,
			"id", id,
			"error", err,
		)
	}
}

func (c *Core[T]) publish(ctx context.Context, action events.Action, id int64, payload any) {
	publish(ctx, c.options, c.rules.kind, action, id, payload)
}

func publish(ctx context.Context, o options, kind models.Kind, action events.Action, id int64, payload any) {
	if o.publisher == nil {
		return
	}
	e, err := events.New(kind, action, id, payload, o.now())
	if err == nil {
		e.RequestID = requestcontext.RequestID(ctx)
		err = o.publisher.Publish(ctx, e)
	}
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to publish directory event",
			"type", events.TypeOf(kind, action),
			"id", id,
			"error", err,
		)
	}
}

// start opens a span for op and returns a func that ends it and records the
// duration. Pass the operation's final error to the returned func.
func (c *Core[T]) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	return startSpan(ctx, c.options, string(c.rules.kind), op, attrs...)
}

func startSpan(ctx context.Context, o options, kind, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	begin := time.Now()
	attrs = append(attrs, attribute.String("directory.kind", kind))
	ctx, span := o.tracer.Start(ctx, "directory."+kind+"."+op)
	span.SetAttributes(attrs...)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		o.metrics.ObserveOperation(kind, op, begin)
	}
}
