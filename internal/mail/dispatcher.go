// Package mail delivers notification emails over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Email is a single HTML message to one recipient.
type Email struct {
	To       string
	Subject  string
	HTMLBody string
}

type Sender interface {
	Send(ctx context.Context, e Email) error
}

type SMTPConfig struct {
	Host        string
	Port        int
	User        string
	Pass        string
	FromName    string
	FromAddress string
}

// SMTPDispatcher opens a fresh SMTP session for every message.
type SMTPDispatcher struct {
	cfg  SMTPConfig
	send func(m *gomail.Message) error
}

func NewSMTPDispatcher(cfg SMTPConfig) *SMTPDispatcher {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	return &SMTPDispatcher{cfg: cfg, send: func(m *gomail.Message) error {
		return d.DialAndSend(m)
	}}
}

func (d *SMTPDispatcher) Send(ctx context.Context, e Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.To == "" {
		return errors.New("send email: empty recipient")
	}
	if err := d.send(d.buildMessage(e)); err != nil {
		return fmt.Errorf("send email to %s: %w", e.To, err)
	}
	return nil
}

func (d *SMTPDispatcher) buildMessage(e Email) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", d.cfg.FromAddress, d.cfg.FromName)
	m.SetHeader("To", e.To)
	m.SetHeader("Subject", e.Subject)
	m.SetBody("text/html", e.HTMLBody)
	return m
}
