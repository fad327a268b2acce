package mail

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const (
	DefaultBreakerFailures = 5
	DefaultBreakerTimeout  = 30 * time.Second
)

// BreakerDispatcher stops calling the SMTP server after a run of consecutive
// failures. While open, Send returns gobreaker.ErrOpenState without dialing.
type BreakerDispatcher struct {
	next Sender
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerDispatcher(next Sender, failures uint32, timeout time.Duration, logger logrus.FieldLogger) *BreakerDispatcher {
	if failures == 0 {
		failures = DefaultBreakerFailures
	}
	if timeout <= 0 {
		timeout = DefaultBreakerTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("component", "mail_breaker")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "smtp",
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	})
	return &BreakerDispatcher{next: next, cb: cb}
}

func (b *BreakerDispatcher) Send(ctx context.Context, e Email) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Send(ctx, e)
	})
	return err
}

func (b *BreakerDispatcher) State() gobreaker.State {
	return b.cb.State()
}
