// Package broker moves reservation events over Kafka.
package broker

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	HeaderMessageID = "message-id"
	HeaderEventType = "event-type"
)

// Message is one record read from a topic.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Time      time.Time
}

// Context returns ctx carrying the trace context propagated in the headers, if any.
func (m Message) Context(ctx context.Context) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(m.Headers))
}

func fromKafka(km kafka.Message) Message {
	headers := make(map[string]string, len(km.Headers))
	for _, h := range km.Headers {
		headers[h.Key] = string(h.Value)
	}
	return Message{
		Topic:     km.Topic,
		Partition: km.Partition,
		Offset:    km.Offset,
		Key:       km.Key,
		Value:     km.Value,
		Headers:   headers,
		Time:      km.Time,
	}
}

// commitRef carries the fields kafka-go needs to commit an offset.
func (m Message) commitRef() kafka.Message {
	return kafka.Message{Topic: m.Topic, Partition: m.Partition, Offset: m.Offset}
}

func toHeaders(values map[string]string) []kafka.Header {
	headers := make([]kafka.Header, 0, len(values))
	for k, v := range values {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
