package broker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/villanet/booking/internal/domain"
	"github.com/villanet/booking/internal/events"
)

const DefaultPublishTimeout = 10 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter returns a Kafka writer that routes by key hash, so every event of
// one reservation lands on the same partition. The topic is set per message.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            5,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

type Topics struct {
	Created  string
	Canceled string
}

// Publisher encodes reservation events and writes them to their topics.
// It satisfies app.EventPublisher.
type Publisher struct {
	writer  messageWriter
	topics  Topics
	timeout time.Duration
	log     logrus.FieldLogger
	tracer  trace.Tracer
	newID   func() string
}

type PublisherOption func(*Publisher)

func WithPublishTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPublisher(w messageWriter, topics Topics, logger logrus.FieldLogger, opts ...PublisherOption) *Publisher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &Publisher{
		writer:  w,
		topics:  topics,
		timeout: DefaultPublishTimeout,
		log:     logger.WithField("component", "publisher"),
		tracer:  otel.Tracer("github.com/villanet/booking/internal/broker"),
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) PublishCreated(ctx context.Context, ev domain.ReservationCreated) error {
	return p.publish(ctx, p.topics.Created, events.TypeCreated, ev.ReservationID, events.EncodeCreated(ev))
}

func (p *Publisher) PublishCanceled(ctx context.Context, ev domain.ReservationCanceled) error {
	return p.publish(ctx, p.topics.Canceled, events.TypeCanceled, ev.ReservationID, events.EncodeCanceled(ev))
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) publish(ctx context.Context, topic, eventType string, reservationID int64, payload []byte) error {
	ctx, span := p.tracer.Start(ctx, "publish "+topic, trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", topic),
			attribute.Int64("reservation.id", reservationID),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := p.buildMessage(ctx, topic, eventType, reservationID, payload)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("publish %s: %w", eventType, err)
	}

	p.log.WithFields(logrus.Fields{
		"topic":          topic,
		"reservation_id": reservationID,
		"message_id":     string(headerValue(msg.Headers, HeaderMessageID)),
	}).Debug("event published")
	return nil
}

func (p *Publisher) buildMessage(ctx context.Context, topic, eventType string, reservationID int64, payload []byte) kafka.Message {
	headers := propagation.MapCarrier{
		HeaderMessageID: p.newID(),
		HeaderEventType: eventType,
	}
	otel.GetTextMapPropagator().Inject(ctx, headers)

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(strconv.FormatInt(reservationID, 10)),
		Value:   payload,
		Headers: toHeaders(headers),
	}
}

func headerValue(headers []kafka.Header, key string) []byte {
	for _, h := range headers {
		if h.Key == key {
			return h.Value
		}
	}
	return nil
}
