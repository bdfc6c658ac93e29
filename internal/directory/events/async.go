package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrBufferFull is returned when the async buffer cannot take another event.
var ErrBufferFull = errors.New("event buffer full")

// AsyncPublisher hands events to a background worker so a slow broker does
// not hold up request handling. Events are dropped when the buffer is full.
type AsyncPublisher struct {
	next   Publisher
	inbox  chan Event
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewAsync wraps next with a buffer of size events.
func NewAsync(next Publisher, size int, logger *slog.Logger) *AsyncPublisher {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncPublisher{
		next:   next,
		inbox:  make(chan Event, size),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Publish enqueues e without blocking.
func (p *AsyncPublisher) Publish(_ context.Context, e Event) error {
	select {
	case <-p.done:
		return errors.New("event publisher closed")
	default:
	}
	select {
	case p.inbox <- e:
		return nil
	default:
		return ErrBufferFull
	}
}

// Run forwards buffered events until ctx is cancelled or Close is called,
// then drains what is left.
func (p *AsyncPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.drain(context.WithoutCancel(ctx))
			return nil
		case <-p.done:
			p.drain(context.WithoutCancel(ctx))
			return nil
		case e := <-p.inbox:
			p.forward(ctx, e)
		}
	}
}

// Close stops accepting events. Run drains the buffer and returns.
func (p *AsyncPublisher) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

func (p *AsyncPublisher) drain(ctx context.Context) {
	for {
		select {
		case e := <-p.inbox:
			p.forward(ctx, e)
		default:
			return
		}
	}
}

func (p *AsyncPublisher) forward(ctx context.Context, e Event) {
	if err := p.next.Publish(ctx, e); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish directory event",
			"event_id", e.ID.String(),
			"type", e.Type,
			"error", err,
		)
	}
}
