package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBufferFull is returned by Send when the dispatcher queue is full.
var ErrBufferFull = errors.New("notify: dispatcher buffer full")

// Dispatcher delivers events on a background worker. Send never blocks.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
	timeout  time.Duration

	buffer   chan Event
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	running  bool
	mu       sync.Mutex
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger used for delivery failures.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithTimeout bounds each Notify call.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithBufferSize sets the queue capacity.
func WithBufferSize(n int) DispatcherOption {
	return func(d *Dispatcher) { d.buffer = make(chan Event, n) }
}

// NewDispatcher creates a Dispatcher for n. Call Start before Send.
func NewDispatcher(n Notifier, opts ...DispatcherOption) *Dispatcher {
	if n == nil {
		n = Nop
	}
	d := &Dispatcher{
		notifier: n,
		logger:   slog.Default(),
		timeout:  10 * time.Second,
		buffer:   make(chan Event, 1024),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.running = true
	d.wg.Add(1)
	go d.worker()
}

// Send queues evt for delivery. If the dispatcher is not running the event
// is delivered synchronously.
func (d *Dispatcher) Send(ctx context.Context, evt Event) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		d.deliver(context.WithoutCancel(ctx), evt)
		return nil
	}

	// Enqueue under mu so Stop cannot begin its drain in between.
	select {
	case d.buffer <- evt:
		d.mu.Unlock()
		return nil
	default:
		d.mu.Unlock()
		d.logger.Warn("notification dropped",
			"kind", evt.Kind,
			"investor_id", evt.InvestorID.String(),
		)
		return ErrBufferFull
	}
}

// Stop drains queued events and stops the worker.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()

		close(d.stopChan)
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopChan:
			// Final drain
			for {
				select {
				case evt := <-d.buffer:
					d.deliver(context.Background(), evt)
				default:
					return
				}
			}

		case evt := <-d.buffer:
			d.deliver(context.Background(), evt)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, evt Event) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, evt); err != nil {
		d.logger.Warn("notification failed",
			"kind", evt.Kind,
			"investor_id", evt.InvestorID.String(),
			"investment_id", evt.InvestmentID.String(),
			"error", err,
		)
	}
}
