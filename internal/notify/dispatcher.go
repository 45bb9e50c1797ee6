// Package notify delivers run summaries to external channels. A failing
// channel is logged and recorded; it never stops the other channels.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/harrison/suiterun/internal/models"
)

// DefaultTimeout bounds a single channel delivery.
const DefaultTimeout = 30 * time.Second

// Channel is a notification target.
type Channel interface {
	Name() string
	// Ready reports whether the channel is enabled and configured. When it
	// is not, reason says why.
	Ready() (ok bool, reason string)
	Send(ctx context.Context, summary models.RunSummary) error
}

// Logger receives dispatcher progress lines.
type Logger interface {
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// DeliveryStatus is the result of one channel attempt.
type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliverySkipped DeliveryStatus = "skipped"
	DeliveryFailed  DeliveryStatus = "failed"
)

// DeliveryError wraps a failed channel send.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Delivery records what happened to one channel.
type Delivery struct {
	Channel  string
	Status   DeliveryStatus
	Reason   string // skip reason
	Err      error  // *DeliveryError when Status is failed
	Duration time.Duration
}

// Dispatcher sends a summary to every channel in turn.
type Dispatcher struct {
	logger  Logger
	timeout time.Duration
	observe func(channel string, ok bool)
}

// NewDispatcher creates a dispatcher. logger may be nil.
func NewDispatcher(logger Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{logger: logger, timeout: timeout}
}

// OnDelivery registers a callback invoked after every attempted send.
func (d *Dispatcher) OnDelivery(fn func(channel string, ok bool)) {
	d.observe = fn
}

// Dispatch delivers summary to each channel and reports one Delivery per
// channel, in order. It never returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, summary models.RunSummary, channels []Channel) []Delivery {
	deliveries := make([]Delivery, 0, len(channels))
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		name := ch.Name()

		if ok, reason := ch.Ready(); !ok {
			d.warn(fmt.Sprintf("[WARNING] %s notification skipped: %s", name, reason))
			deliveries = append(deliveries, Delivery{Channel: name, Status: DeliverySkipped, Reason: reason})
			continue
		}

		start := time.Now()
		err := d.send(ctx, ch, summary)
		delivery := Delivery{Channel: name, Duration: time.Since(start)}
		if err != nil {
			delivery.Status = DeliveryFailed
			delivery.Err = &DeliveryError{Channel: name, Err: err}
			d.error(fmt.Sprintf("[ERROR] %s notification failed: %v", name, err))
		} else {
			delivery.Status = DeliverySent
			d.info(fmt.Sprintf("[OK] %s notification sent", name))
		}
		if d.observe != nil {
			d.observe(name, err == nil)
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, summary models.RunSummary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return ch.Send(sendCtx, summary)
}

func (d *Dispatcher) info(msg string) {
	if d.logger != nil {
		d.logger.LogInfo(msg)
	}
}

func (d *Dispatcher) warn(msg string) {
	if d.logger != nil {
		d.logger.LogWarn(msg)
	}
}

func (d *Dispatcher) error(msg string) {
	if d.logger != nil {
		d.logger.LogError(msg)
	}
}
