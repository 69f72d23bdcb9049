// Package analytics turns individual cart actions into immediate business
// events and periodic summary reports.
package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/MouadFiali/gke-cloud-project/models"
)

const defaultEventBuffer = 1024

// Sweeper is per-key state that can drop entries idle for longer than maxAge.
type Sweeper interface {
	Sweep(maxAge time.Duration) int
}

type Options struct {
	FlushInterval          time.Duration
	LargeCartThreshold     int
	LargeQuantityThreshold int32
	TopProducts            int

	// Sweepers are swept after every timer flush; entries older than
	// SweepMaxAge are dropped.
	Sweepers    []Sweeper
	SweepMaxAge time.Duration

	// EventBuffer bounds events queued for asynchronous delivery once Start
	// has been called.
	EventBuffer int

	Clock clockwork.Clock
}

// DefaultOptions mirrors the production defaults.
func DefaultOptions() Options {
	return Options{
		FlushInterval:          5 * time.Minute,
		LargeCartThreshold:     10,
		LargeQuantityThreshold: 5,
		TopProducts:            5,
		EventBuffer:            defaultEventBuffer,
	}
}

// Aggregator owns the rolling statistics window. All methods are safe for
// concurrent use. Observe* only touch memory; sink I/O happens in Flush or on
// the event dispatcher.
type Aggregator struct {
	sink   ReportSink
	logger *zap.Logger
	opts   Options
	clock  clockwork.Clock

	mu     sync.Mutex
	window *window

	// stateMu guards running and serializes sends on events with Shutdown.
	stateMu      sync.RWMutex
	running      bool
	events       chan models.BusinessEvent
	stop         chan struct{}
	wg           sync.WaitGroup
	startOnce    sync.Once
	shutdownOnce sync.Once
}

func NewAggregator(sink ReportSink, logger *zap.Logger, opts Options) *Aggregator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	if opts.TopProducts <= 0 {
		opts.TopProducts = 5
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Minute
	}
	return &Aggregator{
		sink:   sink,
		logger: logger,
		opts:   opts,
		clock:  opts.Clock,
		window: newWindow(opts.Clock.Now()),
		events: make(chan models.BusinessEvent, opts.EventBuffer),
		stop:   make(chan struct{}),
	}
}

func (a *Aggregator) ObserveView(ctx context.Context, userID string, totalItems int) {
	a.mu.Lock()
	a.window.view(userID)
	a.mu.Unlock()

	if totalItems > a.opts.LargeCartThreshold {
		a.emit(ctx, models.BusinessEvent{
			EventType:  models.EventLargeCartView,
			UserID:     userID,
			CartID:     userID,
			TotalItems: &totalItems,
		})
	}
}

func (a *Aggregator) ObserveAdd(ctx context.Context, userID, productID string, quantity int32) {
	a.mu.Lock()
	a.window.add(userID, productID, int64(quantity))
	a.mu.Unlock()

	if quantity > a.opts.LargeQuantityThreshold {
		a.emit(ctx, models.BusinessEvent{
			EventType: models.EventLargeQuantityAddition,
			UserID:    userID,
			ProductID: productID,
			Quantity:  &quantity,
		})
	}
}

func (a *Aggregator) ObserveEmpty(_ context.Context, userID string) {
	a.mu.Lock()
	a.window.empty(userID)
	a.mu.Unlock()
}

// ObserveError emits "<eventType>_error" immediately and leaves the window alone.
func (a *Aggregator) ObserveError(ctx context.Context, eventType, userID, detail string) {
	a.emit(ctx, models.BusinessEvent{
		EventType:    eventType + "_error",
		UserID:       userID,
		ErrorDetails: detail,
	})
}

func (a *Aggregator) emit(ctx context.Context, ev models.BusinessEvent) {
	ev.ID = uuid.NewString()
	ev.Timestamp = a.clock.Now().UTC()

	a.stateMu.RLock()
	if a.running {
		select {
		case a.events <- ev:
			a.stateMu.RUnlock()
			return
		default:
			a.logger.Warn("Business event buffer full, delivering inline",
				zap.String("event_type", ev.EventType))
		}
	}
	a.stateMu.RUnlock()

	a.deliver(ctx, ev)
}

func (a *Aggregator) deliver(ctx context.Context, ev models.BusinessEvent) {
	if err := guard(func() error { return a.sink.EmitEvent(ctx, ev) }); err != nil {
		a.logger.Error("Failed to emit business event",
			zap.String("event_type", ev.EventType),
			zap.String("user_id", ev.UserID),
			zap.Error(err),
		)
	}
}

// guard turns a panicking sink call into an error.
func guard(emit func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return emit()
}

// Flush reports and resets the window. An idle window is left untouched and
// nothing is emitted. When the sink fails, the flushed counters are merged
// back so the next flush reports them.
func (a *Aggregator) Flush(ctx context.Context) error {
	now := a.clock.Now()

	a.mu.Lock()
	if a.window.idle() {
		a.mu.Unlock()
		return nil
	}
	flushed := a.window
	a.window = newWindow(now)
	a.mu.Unlock()

	report := flushed.report(now, a.opts.TopProducts)
	if err := guard(func() error { return a.sink.EmitReport(ctx, report) }); err != nil {
		a.mu.Lock()
		flushed.absorb(a.window)
		a.window = flushed
		a.mu.Unlock()
		return err
	}
	return nil
}

// Snapshot copies the live window.
func (a *Aggregator) Snapshot() WindowSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.window.snapshot()
}

// Start launches the flush timer and the event dispatcher. Calling it more
// than once has no effect.
func (a *Aggregator) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		a.stateMu.Lock()
		a.running = true
		a.stateMu.Unlock()

		deliverCtx := context.WithoutCancel(ctx)
		a.wg.Add(2)
		go a.dispatch(deliverCtx)
		go a.run(ctx)

		a.logger.Info("Statistics aggregator started",
			zap.Duration("flush_interval", a.opts.FlushInterval))
	})
}

func (a *Aggregator) run(ctx context.Context) {
	defer a.wg.Done()

	ticker := a.clock.NewTicker(a.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		case <-ticker.Chan():
			if err := a.Flush(ctx); err != nil {
				a.logger.Error("Statistics flush failed, window kept for next flush", zap.Error(err))
			}
			a.sweep()
		}
	}
}

func (a *Aggregator) sweep() {
	if a.opts.SweepMaxAge <= 0 {
		return
	}
	for _, sw := range a.opts.Sweepers {
		if n := sw.Sweep(a.opts.SweepMaxAge); n > 0 {
			a.logger.Debug("Swept idle entries", zap.Int("removed", n))
		}
	}
}

func (a *Aggregator) dispatch(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case ev := <-a.events:
			a.deliver(ctx, ev)
		case <-a.stop:
			for {
				select {
				case ev := <-a.events:
					a.deliver(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

// Shutdown stops the timer, drains queued events and performs a final
// synchronous flush. Start has no effect after Shutdown.
func (a *Aggregator) Shutdown(ctx context.Context) error {
	a.startOnce.Do(func() {})
	a.shutdownOnce.Do(func() {
		a.stateMu.Lock()
		wasRunning := a.running
		a.running = false
		a.stateMu.Unlock()

		if !wasRunning {
			return
		}
		close(a.stop)

		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			a.logger.Warn("Timed out waiting for event dispatcher", zap.Error(ctx.Err()))
		}
	})

	if err := a.Flush(ctx); err != nil {
		a.logger.Error("Final statistics flush failed", zap.Error(err))
		return err
	}
	return nil
}
