// Package notify turns reservation events into owner emails.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/villanet/booking/internal/broker"
	"github.com/villanet/booking/internal/domain"
	"github.com/villanet/booking/internal/events"
	"github.com/villanet/booking/internal/mail"
)

const (
	DefaultFetchBackoff = time.Second
	commitTimeout       = 5 * time.Second
)

// Source yields messages of one topic. Fetch blocks until a message arrives
// or ctx is done.
type Source interface {
	Fetch(ctx context.Context) (broker.Message, error)
	Commit(ctx context.Context, m broker.Message) error
}

// Consumer reads one topic and emails the property owner for every event.
// A message that cannot be decoded or delivered is logged and committed, so it
// is not retried.
type Consumer[T any] struct {
	kind    string
	source  Source
	sender  mail.Sender
	decode  func([]byte) (T, error)
	render  func(T) (mail.Email, error)
	key     func(T) int64
	dedup   Deduplicator
	backoff time.Duration
	log     logrus.FieldLogger
	tracer  trace.Tracer
}

type Option func(*options)

type options struct {
	dedup   Deduplicator
	backoff time.Duration
}

// WithDedup skips events whose notification was already sent.
func WithDedup(d Deduplicator) Option {
	return func(o *options) { o.dedup = d }
}

func WithFetchBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.backoff = d
		}
	}
}

func NewCreatedConsumer(source Source, sender mail.Sender, logger logrus.FieldLogger, opts ...Option) *Consumer[domain.ReservationCreated] {
	return newConsumer("created", source, sender, events.DecodeCreated, RenderCreated,
		func(ev domain.ReservationCreated) int64 { return ev.ReservationID }, logger, opts)
}

func NewCanceledConsumer(source Source, sender mail.Sender, logger logrus.FieldLogger, opts ...Option) *Consumer[domain.ReservationCanceled] {
	return newConsumer("canceled", source, sender, events.DecodeCanceled, RenderCanceled,
		func(ev domain.ReservationCanceled) int64 { return ev.ReservationID }, logger, opts)
}

func newConsumer[T any](
	kind string,
	source Source,
	sender mail.Sender,
	decode func([]byte) (T, error),
	render func(T) (mail.Email, error),
	key func(T) int64,
	logger logrus.FieldLogger,
	opts []Option,
) *Consumer[T] {
	o := options{backoff: DefaultFetchBackoff}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Consumer[T]{
		kind:    kind,
		source:  source,
		sender:  sender,
		decode:  decode,
		render:  render,
		key:     key,
		dedup:   o.dedup,
		backoff: o.backoff,
		log:     logger.WithFields(logrus.Fields{"component": "notifier", "event": kind}),
		tracer:  otel.Tracer("github.com/villanet/booking/internal/notify"),
	}
}

// Run consumes until ctx is done and then returns nil.
func (c *Consumer[T]) Run(ctx context.Context) error {
	c.log.Info("consumer started")
	defer c.log.Info("consumer stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := c.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.WithError(err).Error("fetch message")
			if !sleep(ctx, c.backoff) {
				return nil
			}
			continue
		}

		c.handle(ctx, msg)

		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		err = c.source.Commit(commitCtx, msg)
		cancel()
		if err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{"topic": msg.Topic, "offset": msg.Offset}).Error("commit message")
		}
	}
}

func (c *Consumer[T]) handle(ctx context.Context, msg broker.Message) {
	ctx, span := c.tracer.Start(msg.Context(ctx), "consume "+msg.Topic, trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.source.name", msg.Topic),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
		))
	defer span.End()

	log := c.log.WithFields(logrus.Fields{"topic": msg.Topic, "partition": msg.Partition, "offset": msg.Offset})

	ev, err := c.decode(msg.Value)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		log.WithError(err).Warn("drop undecodable message")
		return
	}
	reservationID := c.key(ev)
	span.SetAttributes(attribute.Int64("reservation.id", reservationID))
	log = log.WithField("reservation_id", reservationID)

	dedupKey := fmt.Sprintf("%s:%d", c.kind, reservationID)
	if c.dedup != nil {
		seen, err := c.dedup.Seen(ctx, dedupKey)
		if err != nil {
			log.WithError(err).Warn("dedup lookup failed; sending anyway")
		} else if seen {
			log.Info("notification already sent; skipping")
			return
		}
	}

	email, err := c.render(ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render")
		log.WithError(err).Error("render email")
		return
	}
	if err := c.sender.Send(ctx, email); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send")
		log.WithError(err).Error("send email")
		return
	}
	log.WithField("to", email.To).Info("notification sent")

	if c.dedup != nil {
		if err := c.dedup.Mark(ctx, dedupKey); err != nil {
			log.WithError(err).Warn("dedup mark failed")
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
