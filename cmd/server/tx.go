package main

import (
	"context"
	"time"

	"directory/internal/directory/service"
	dErrors "directory/pkg/domain-errors"
)

// boundedTx gives transactions without a caller deadline one of timeout and
// refuses to start a transaction for an already cancelled context. A
// non-positive timeout adds no deadline.
type boundedTx struct {
	next    service.Transactor
	timeout time.Duration
}

func newBoundedTx(next service.Transactor, timeout time.Duration) *boundedTx {
	return &boundedTx{next: next, timeout: timeout}
}

func (t *boundedTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.next.RunInTx(ctx, fn)
}
