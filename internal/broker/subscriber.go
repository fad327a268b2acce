package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type SubscriberConfig struct {
	Brokers []string
	GroupID string
	Topic   string
}

// Subscriber reads one topic as a member of a consumer group. A group with no
// committed offset starts from the earliest message.
type Subscriber struct {
	reader messageReader
	topic  string
}

func NewSubscriber(cfg SubscriberConfig) *Subscriber {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	return newSubscriber(r, cfg.Topic)
}

func newSubscriber(r messageReader, topic string) *Subscriber {
	return &Subscriber{reader: r, topic: topic}
}

func (s *Subscriber) Topic() string {
	return s.topic
}

// Fetch blocks until a message is available or ctx is done.
func (s *Subscriber) Fetch(ctx context.Context) (Message, error) {
	km, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("fetch from %s: %w", s.topic, err)
	}
	return fromKafka(km), nil
}

// Commit marks m and everything before it on its partition as consumed.
func (s *Subscriber) Commit(ctx context.Context, m Message) error {
	if err := s.reader.CommitMessages(ctx, m.commitRef()); err != nil {
		return fmt.Errorf("commit %s/%d@%d: %w", m.Topic, m.Partition, m.Offset, err)
	}
	return nil
}

func (s *Subscriber) Close() error {
	return s.reader.Close()
}
