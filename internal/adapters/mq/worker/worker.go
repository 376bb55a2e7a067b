// Package worker runs the single dispatcher that applies intents in order.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/mapty/internal/domain/model"
	"github.com/okian/mapty/pkg/logger"
	"github.com/okian/mapty/pkg/metrics"
)

// Event is what the dispatcher reads off the queue.
type Event = model.Event

// Queue defines how the dispatcher receives events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Handler applies one intent.
type Handler interface {
	Handle(ctx context.Context, e Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, e Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) }

// Dispatcher drains a queue on exactly one goroutine so that handlers never
// run concurrently with each other.
type Dispatcher struct {
	queue   Queue
	handler Handler
	name    string
	logger  logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	shutdown  chan struct{}
	done      chan struct{}
}

// NewDispatcher creates a dispatcher over q.
func NewDispatcher(q Queue, h Handler, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:    q,
		handler:  h,
		name:     "dispatcher",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().Named(d.name)
	}
	return d
}

// Start runs the loop on its own goroutine. Subsequent calls do nothing.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.Run(ctx)
	})
}

// Run processes events until the queue closes, ctx is done or Shutdown is called.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	events := d.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			d.dispatch(ctx, e)
		}
	}
}

// Done is closed once the loop has exited.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Shutdown stops the loop and waits for the in-flight event to finish.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.shutdown) })

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, e Event) {
	start := time.Now()
	defer func() {
		metrics.RecordDispatchLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := d.safeHandle(ctx, e); err != nil {
		metrics.RecordDispatch(string(e.Kind), "error")
		d.logger.Error(ctx, "intent failed",
			logger.String("intent_id", e.ID),
			logger.String("kind", string(e.Kind)),
			logger.Error(err),
		)
		return
	}
	metrics.RecordDispatch(string(e.Kind), "ok")
}

func (d *Dispatcher) safeHandle(ctx context.Context, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return d.handler.Handle(ctx, e)
}
