package mailer

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogNotifier writes password reset links to the log instead of sending mail.
// Used when MAIL_SEND_ENABLED=false.
type LogNotifier struct {
	Logger *logrus.Logger
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, to, _ string, resetURL string) error {
	if n.Logger != nil {
		n.Logger.WithFields(logrus.Fields{"to": to, "reset_url": resetURL}).Warn("mail sending disabled; password reset link not emailed")
	}
	return nil
}
