// Package notify renders went-live events and delivers them to sinks
// (Discord webhooks, Twitch chat, Redis pub/sub, the log).
//
// Delivery is asynchronous and best-effort: the Dispatcher queues events,
// renders them, and hands them to every sink, each behind its own circuit
// breaker.
// Failures are logged and counted but never reported back to the poller.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Message is a rendered notification.
type Message struct {
	Provider string  `json:"provider"`
	Streamer string  `json:"streamer"`
	URL      string  `json:"url"`
	Content  string  `json:"content"`
	Embeds   []Embed `json:"embeds,omitempty"`
}

// Embed is a rich card; the shape follows Discord embeds.
type Embed struct {
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	URL          string     `json:"url,omitempty"`
	Color        int        `json:"color,omitempty"`
	Fields       []Field    `json:"fields,omitempty"`
	ThumbnailURL string     `json:"-"`
	ImageURL     string     `json:"-"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
}

// Field is a name/value row of an embed.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Notifier delivers a rendered message to one sink.
type Notifier interface {
	Deliver(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) Deliver(ctx context.Context, msg Message) error { return f(ctx, msg) }

// ErrDelivery matches any *DeliveryError via errors.Is.
var ErrDelivery = errors.New("notification delivery failed")

// DeliveryError reports a failed delivery to one sink.
type DeliveryError struct {
	Sink string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver via %s: %v", e.Sink, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }

// Multi delivers to every notifier and joins their errors. One failing sink
// does not stop the others.
type Multi []Notifier

func (m Multi) Deliver(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Deliver(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
