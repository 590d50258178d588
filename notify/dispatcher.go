package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/onnwee/streamwatch/presence"
	"github.com/onnwee/streamwatch/telemetry"
)

// ErrDispatcherClosed is returned by Emit after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	QueueSize       int
	DeliveryTimeout time.Duration
	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32
	// BreakerCooldown is how long the breaker stays open before a trial delivery.
	BreakerCooldown time.Duration
	Logger          *slog.Logger
}

// Namer is implemented by sinks that report a stable name for logs and metrics.
type Namer interface {
	SinkName() string
}

// Dispatcher implements presence.Emitter. Emit only enqueues; one worker
// renders and delivers. Each sink of a Multi gets its own breaker and
// timeout so a dead sink never blocks the healthy ones.
type Dispatcher struct {
	sinks   []*guardedSink
	timeout time.Duration
	logger  *slog.Logger

	queue chan presence.Event
	mu    sync.RWMutex
	// closed guards sends on queue after Close.
	closed bool
	done   chan struct{}
}

func NewDispatcher(n Notifier, o DispatcherOptions) *Dispatcher {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.DeliveryTimeout <= 0 {
		o.DeliveryTimeout = 10 * time.Second
	}
	if o.BreakerFailures == 0 {
		o.BreakerFailures = 5
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	logger := o.Logger.With(slog.String("component", "notify"))

	d := &Dispatcher{
		timeout: o.DeliveryTimeout,
		logger:  logger,
		queue:   make(chan presence.Event, o.QueueSize),
		done:    make(chan struct{}),
	}
	members, ok := n.(Multi)
	if !ok {
		members = Multi{n}
	}
	for i, member := range members {
		name := fmt.Sprintf("sink%d", i)
		if named, ok := member.(Namer); ok {
			name = named.SinkName()
		}
		d.sinks = append(d.sinks, newGuardedSink(name, member, o, logger))
	}
	go d.run()
	return d
}

// guardedSink is one notifier behind its own circuit breaker.
type guardedSink struct {
	name     string
	notifier Notifier
	breaker  *gobreaker.CircuitBreaker
}

func newGuardedSink(name string, n Notifier, o DispatcherOptions, logger *slog.Logger) *guardedSink {
	failures := o.BreakerFailures
	return &guardedSink{
		name:     name,
		notifier: n,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: o.BreakerCooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("notification circuit breaker state changed", slog.String("sink", name),
					slog.String("from", from.String()), slog.String("to", to.String()))
				telemetry.UpdateCircuitGauge(name, to == gobreaker.StateOpen)
			},
		}),
	}
}

// Emit queues ev for delivery. It blocks only while the queue is full.
func (d *Dispatcher) Emit(ctx context.Context, ev presence.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- ev:
		telemetry.ObserveNotification(ev.Provider, "emitted")
		return nil
	case <-ctx.Done():
		telemetry.ObserveNotification(ev.Provider, "dropped")
		return ctx.Err()
	}
}

// Close stops accepting events, delivers what is queued and waits for the worker.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev presence.Event) {
	msg := Render(ev)
	log := d.logger.With(slog.String("provider", ev.Provider), slog.String("streamer", ev.Name))
	for _, sink := range d.sinks {
		d.deliverTo(sink, ev.Provider, msg, log.With(slog.String("sink", sink.name)))
	}
}

// deliverTo counts one delivered or failed notification per sink.
func (d *Dispatcher) deliverTo(sink *guardedSink, provider string, msg Message, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.ObserveNotification(provider, "failed")
			log.Error("notification delivery panic", slog.Any("panic", r))
		}
	}()

	// Delivery outlives the poll cycle that produced the event.
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	_, err := sink.breaker.Execute(func() (interface{}, error) {
		return nil, sink.notifier.Deliver(ctx, msg)
	})
	if err != nil {
		telemetry.ObserveNotification(provider, "failed")
		log.Warn("notification delivery failed", slog.Any("err", err))
		return
	}
	telemetry.ObserveNotification(provider, "delivered")
	log.Info("notification delivered")
}
