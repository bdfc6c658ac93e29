package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"directory/internal/directory/events"
	"directory/internal/directory/models"
	dErrors "directory/pkg/domain-errors"
)

// TransferRequest moves workers to a new location and/or service.
type TransferRequest struct {
	WorkerIDs     []int64 `json:"workerIds"`
	NewLocationID *int64  `json:"newLocationId,omitempty"`
	NewServiceID  *int64  `json:"newServiceId,omitempty"`
	AllowPartial  bool    `json:"allowPartialTransfer"`
}

// TransferError is the failure of one worker in a partial transfer.
type TransferError struct {
	WorkerID int64  `json:"workerId"`
	Message  string `json:"message"`
}

// TransferResult summarises a batch. Errors follow input order.
type TransferResult struct {
	Total        int             `json:"total"`
	SuccessCount int             `json:"successCount"`
	Errors       []TransferError `json:"errors"`
}

// Validate checks the request shape without touching storage.
func (r TransferRequest) Validate() error {
	_, err := validateTransfer(r)
	return err
}

const unexpectedErrorMessage = "an unexpected error occurred"

// TransferEngine reassigns batches of workers.
//
// Without AllowPartial the batch runs in one transaction: the first failing
// worker aborts it and every earlier update of the batch is rolled back.
// With AllowPartial each worker commits on its own and failures are reported
// per worker.
type TransferEngine struct {
	options
	workers *Workers
	tx      Transactor
}

func NewTransferEngine(workers *Workers, tx Transactor, opts ...Option) *TransferEngine {
	return &TransferEngine{
		options: buildOptions(opts),
		workers: workers,
		tx:      tx,
	}
}

// Transfer processes req.WorkerIDs sequentially in input order. Duplicate ids
// are processed once.
func (e *TransferEngine) Transfer(ctx context.Context, req TransferRequest) (res TransferResult, err error) {
	mode := "atomic"
	if req.AllowPartial {
		mode = "partial"
	}
	ctx, finish := startSpan(ctx, e.options, string(models.KindWorker), "transfer",
		attribute.Int("directory.transfer.size", len(req.WorkerIDs)),
		attribute.String("directory.transfer.mode", mode),
	)
	defer func() { finish(err) }()

	ids, err := validateTransfer(req)
	if err != nil {
		return res, err
	}
	if e.transferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.transferTimeout)
		defer cancel()
	}
	if err := e.requireAnyWorker(ctx, ids); err != nil {
		return res, err
	}

	res = TransferResult{Total: len(ids), Errors: []TransferError{}}
	if req.AllowPartial {
		e.runPartial(ctx, ids, req, &res)
	} else {
		err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
			return e.runAtomic(ctx, ids, req, &res)
		})
		// Reads during the transaction may have cached rows that were rolled back.
		if ierr := e.workers.cache.InvalidateAll(context.WithoutCancel(ctx), string(models.KindWorker)); ierr != nil {
			e.logger.ErrorContext(ctx, "cache invalidation failed after transfer",
				"entity", models.KindWorker,
				"error", ierr,
			)
		}
		if err != nil {
			e.metrics.RecordTransfer(mode, "aborted", 0, 1)
			e.logger.WarnContext(ctx, "worker transfer aborted",
				"total", res.Total,
				"error", err,
			)
			return TransferResult{}, timeoutError(err)
		}
	}

	outcome := "completed"
	if len(res.Errors) > 0 {
		outcome = "partial"
	}
	e.metrics.RecordTransfer(mode, outcome, res.SuccessCount, len(res.Errors))
	publish(ctx, e.options, models.KindWorker, events.ActionTransferred, 0, transferSummary{
		WorkerIDs:     ids,
		NewLocationID: req.NewLocationID,
		NewServiceID:  req.NewServiceID,
		Result:        res,
	})
	e.logger.InfoContext(ctx, "worker transfer finished",
		"mode", mode,
		"total", res.Total,
		"succeeded", res.SuccessCount,
		"failed", len(res.Errors),
	)
	return res, nil
}

type transferSummary struct {
	WorkerIDs     []int64        `json:"workerIds"`
	NewLocationID *int64         `json:"newLocationId,omitempty"`
	NewServiceID  *int64         `json:"newServiceId,omitempty"`
	Result        TransferResult `json:"result"`
}

func (e *TransferEngine) runAtomic(ctx context.Context, ids []int64, req TransferRequest, res *TransferResult) error {
	for _, id := range ids {
		if err := e.transferOne(ctx, id, req); err != nil {
			e.logger.WarnContext(ctx, "worker transfer failed, rolling back batch",
				"worker_id", id,
				"error", err,
			)
			return err
		}
		res.SuccessCount++
	}
	return nil
}

func (e *TransferEngine) runPartial(ctx context.Context, ids []int64, req TransferRequest, res *TransferResult) {
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			for _, rest := range ids[i:] {
				res.Errors = append(res.Errors, TransferError{WorkerID: rest, Message: err.Error()})
			}
			return
		}
		if err := e.transferOne(ctx, id, req); err != nil {
			e.logger.WarnContext(ctx, "worker transfer failed",
				"worker_id", id,
				"error", err,
			)
			res.Errors = append(res.Errors, TransferError{WorkerID: id, Message: transferMessage(err)})
			continue
		}
		res.SuccessCount++
	}
}

// transferOne loads the worker, applies the new ids and runs the regular
// update, which re-validates fields and references.
func (e *TransferEngine) transferOne(ctx context.Context, id int64, req TransferRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w, err := e.workers.load(ctx, id)
	if err != nil {
		return err
	}
	if req.NewLocationID != nil {
		w.LocationID = *req.NewLocationID
	}
	if req.NewServiceID != nil {
		w.ServiceID = *req.NewServiceID
	}
	return e.workers.update(ctx, id, w, false)
}

func (e *TransferEngine) requireAnyWorker(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		ok, err := e.workers.repo.ExistsByID(ctx, id)
		if err != nil {
			return fmt.Errorf("check worker %d: %w", id, err)
		}
		if ok {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeValidation, "none of the requested workers exist")
}

// validateTransfer checks the request shape and returns the distinct worker
// ids in first-occurrence order.
func validateTransfer(req TransferRequest) ([]int64, error) {
	if len(req.WorkerIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "workerIds: at least one worker ID is required")
	}
	if req.NewLocationID == nil && req.NewServiceID == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "a new location or a new service is required")
	}
	if req.NewLocationID != nil {
		if err := models.ValidateID(*req.NewLocationID); err != nil {
			return nil, err
		}
	}
	if req.NewServiceID != nil {
		if err := models.ValidateID(*req.NewServiceID); err != nil {
			return nil, err
		}
	}
	seen := make(map[int64]struct{}, len(req.WorkerIDs))
	ids := make([]int64, 0, len(req.WorkerIDs))
	for _, id := range req.WorkerIDs {
		if err := models.ValidateID(id); err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// transferMessage keeps expected failures verbatim and hides internal ones.
func transferMessage(err error) string {
	if dErrors.CodeOf(err) == dErrors.CodeInternal &&
		!errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return unexpectedErrorMessage
	}
	return err.Error()
}

func timeoutError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "worker transfer timed out")
	}
	return err
}
