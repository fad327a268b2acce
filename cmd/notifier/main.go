package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/villanet/booking/internal/broker"
	"github.com/villanet/booking/internal/config"
	"github.com/villanet/booking/internal/logging"
	"github.com/villanet/booking/internal/mail"
	"github.com/villanet/booking/internal/notify"
	"github.com/villanet/booking/internal/tracing"
)

const (
	serviceName     = "reservation-notifier"
	shutdownTimeout = 10 * time.Second
)

type runner interface {
	Run(ctx context.Context) error
}

func main() {
	cfg := config.Load(logrus.StandardLogger())

	logger, logCloser := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	defer logCloser.Close()

	shutdownTracing, err := tracing.Setup(serviceName, cfg.JaegerEndpoint)
	if err != nil {
		logger.WithError(err).Fatal("setup tracing")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.WithError(err).Warn("tracing shutdown")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender := mail.NewBreakerDispatcher(
		mail.NewSMTPDispatcher(mail.SMTPConfig{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			User:        cfg.SMTP.User,
			Pass:        cfg.SMTP.Pass,
			FromName:    cfg.SMTP.FromName,
			FromAddress: cfg.SMTP.FromAddress,
		}),
		uint32(cfg.MailBreakerFailures),
		cfg.MailBreakerTimeout,
		logger,
	)

	var opts []notify.Option
	if cfg.DedupRedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.DedupRedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("dedup redis unreachable, duplicates may be delivered")
		}
		opts = append(opts, notify.WithDedup(notify.NewRedisDedup(client, cfg.DedupTTL)))
		logger.WithField("addr", cfg.DedupRedisAddr).Info("notification dedup enabled")
	}

	created := broker.NewSubscriber(broker.SubscriberConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   cfg.Kafka.CreatedTopic,
	})
	canceled := broker.NewSubscriber(broker.SubscriberConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   cfg.Kafka.CanceledTopic,
	})
	defer closeSubscriber(logger, created)
	defer closeSubscriber(logger, canceled)

	consumers := []runner{
		notify.NewCreatedConsumer(created, sender, logger, opts...),
		notify.NewCanceledConsumer(canceled, sender, logger, opts...),
	}

	logger.WithFields(logrus.Fields{
		"group":  cfg.Kafka.GroupID,
		"topics": []string{created.Topic(), canceled.Topic()},
	}).Info("notifier running")

	var wg sync.WaitGroup
	for _, c := range consumers {
		wg.Add(1)
		go func(c runner) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil {
				logger.WithError(err).Error("consumer stopped with error")
			}
		}(c)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received, waiting for consumers")
	wg.Wait()
	logger.Info("notifier stopped")
}

func closeSubscriber(logger logrus.FieldLogger, s *broker.Subscriber) {
	if err := s.Close(); err != nil {
		logger.WithError(err).WithField("topic", s.Topic()).Warn("close subscriber")
	}
}
