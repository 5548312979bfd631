package core

import (
	"context"

	"github.com/sirupsen/logrus"
)

// EmailSender delivers outbound mail. Delivery reliability is the
// implementation's problem; callers treat a send as fire-and-forget.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogEmailSender is the development fallback: it logs the message
// instead of delivering it.
type LogEmailSender struct {
	Log logrus.FieldLogger
}

func (s LogEmailSender) Send(_ context.Context, to, subject, body string) error {
	s.Log.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info("email suppressed (log sender): " + body)
	return nil
}
