package notification

import (
	"context"
	"log/slog"
)

// Message is a user-facing notification derived from a payment event.
type Message struct {
	UserID    string
	PaymentID string
	Subject   string
	Body      string
}

// Notifier delivers a message to the user. Delivery failures are logged
// and dropped; payment processing never depends on notification success.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications to the structured log. It stands in
// for an email or push provider in development and tests.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.logger.Info("notification dispatched",
		"user_id", msg.UserID,
		"payment_id", msg.PaymentID,
		"subject", msg.Subject,
		"body", msg.Body)
	return nil
}
