package core

import (
	"context"

	"github.com/sirupsen/logrus"
)

// AuthEventLogger records security-relevant authentication events to an
// external sink. Implementations should be non-blocking and best-effort;
// the flow never fails because auditing did.
type AuthEventLogger interface {
	LogLogin(ctx context.Context, username, clientID string, success bool, remoteIP string) error
}

// LogrusAuthEvents writes auth events to the structured log.
type LogrusAuthEvents struct {
	Log logrus.FieldLogger
}

func (l LogrusAuthEvents) LogLogin(_ context.Context, username, clientID string, success bool, remoteIP string) error {
	entry := l.Log.WithFields(logrus.Fields{
		"event":     "login",
		"username":  username,
		"client_id": clientID,
		"success":   success,
		"remote_ip": remoteIP,
	})
	if success {
		entry.Info("login succeeded")
	} else {
		entry.Warn("login failed")
	}
	return nil
}
