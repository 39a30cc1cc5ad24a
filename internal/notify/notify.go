// Package notify delivers admin notifications for accepted contact messages.
package notify

import (
	"context"
	"fmt"
	"strings"

	"buildcore/pkg/domain"

	"go.uber.org/zap"
)

// Message is a plain-text notification.
type Message struct {
	Subject string
	Body    string
	ReplyTo string
}

// Notifier sends a notification.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// ContactNotification formats the admin mail for a contact message.
func ContactNotification(m domain.ContactMessage) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "New contact message received.\n\n")
	fmt.Fprintf(&b, "Name: %s\n", m.Name)
	fmt.Fprintf(&b, "Email: %s\n", m.Email)
	if m.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", m.Phone)
	}
	if !m.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Received: %s\n", m.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	fmt.Fprintf(&b, "\n%s\n", m.Message)
	return Message{
		Subject: "New contact message from " + m.Name,
		Body:    b.String(),
		ReplyTo: m.Email,
	}
}

// LogNotifier records notifications in the log; used when SMTP is not configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a LogNotifier writing to logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Send implements Notifier.
func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.logger.Info("contact notification",
		zap.String("subject", msg.Subject),
		zap.String("reply_to", msg.ReplyTo),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return nil
}
