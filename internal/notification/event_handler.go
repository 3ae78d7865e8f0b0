package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rentora/payments/internal/core/events"
)

// EventHandler turns payment lifecycle events into user notifications.
type EventHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

func NewEventHandler(notifier Notifier, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		notifier: notifier,
		logger:   logger,
	}
}

func (h *EventHandler) HandlePaymentCaptured(ctx context.Context, event events.Event) error {
	captured, ok := event.(*events.PaymentCapturedEvent)
	if !ok {
		h.logger.Error("invalid event type for payment captured handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentCapturedEvent, got %T", event)
	}

	return h.notifier.Notify(ctx, Message{
		UserID:    captured.UserID,
		PaymentID: captured.PaymentID,
		Subject:   "Payment received",
		Body: fmt.Sprintf("Your payment of %s %.2f was processed successfully.",
			captured.Currency, float64(captured.Amount)/100),
	})
}

func (h *EventHandler) HandlePaymentFailed(ctx context.Context, event events.Event) error {
	failed, ok := event.(*events.PaymentFailedEvent)
	if !ok {
		h.logger.Error("invalid event type for payment failed handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentFailedEvent, got %T", event)
	}

	// retryable failures stay internal, the user only hears about final ones
	if failed.WillRetry {
		h.logger.Info("suppressing notification for retryable failure",
			"payment_id", failed.PaymentID,
			"retry_count", failed.RetryCount)
		return nil
	}

	return h.notifier.Notify(ctx, Message{
		UserID:    failed.UserID,
		PaymentID: failed.PaymentID,
		Subject:   "Payment failed",
		Body: fmt.Sprintf("Your payment of %s %.2f could not be processed: %s.",
			failed.Currency, float64(failed.Amount)/100, failed.FailureReason),
	})
}

func (h *EventHandler) HandlePaymentRefunded(ctx context.Context, event events.Event) error {
	refunded, ok := event.(*events.PaymentRefundedEvent)
	if !ok {
		h.logger.Error("invalid event type for payment refunded handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentRefundedEvent, got %T", event)
	}

	return h.notifier.Notify(ctx, Message{
		UserID:    refunded.UserID,
		PaymentID: refunded.PaymentID,
		Subject:   "Refund issued",
		Body: fmt.Sprintf("Your payment of %s %.2f has been refunded.",
			refunded.Currency, float64(refunded.Amount)/100),
	})
}

func (h *EventHandler) HandlePaymentDisputed(ctx context.Context, event events.Event) error {
	disputed, ok := event.(*events.PaymentDisputedEvent)
	if !ok {
		h.logger.Error("invalid event type for payment disputed handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentDisputedEvent, got %T", event)
	}

	return h.notifier.Notify(ctx, Message{
		UserID:    disputed.UserID,
		PaymentID: disputed.PaymentID,
		Subject:   "Payment disputed",
		Body:      fmt.Sprintf("A chargeback was opened for one of your payments: %s.", disputed.Reason),
	})
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypePaymentCaptured, h.HandlePaymentCaptured)
	eventBus.Subscribe(events.EventTypePaymentFailed, h.HandlePaymentFailed)
	eventBus.Subscribe(events.EventTypePaymentRefunded, h.HandlePaymentRefunded)
	eventBus.Subscribe(events.EventTypePaymentDisputed, h.HandlePaymentDisputed)

	h.logger.Info("notification event handlers registered",
		"handlers", []string{
			events.EventTypePaymentCaptured,
			events.EventTypePaymentFailed,
			events.EventTypePaymentRefunded,
			events.EventTypePaymentDisputed,
		})
}
