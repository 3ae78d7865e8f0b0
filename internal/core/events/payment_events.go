package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentCaptured = "payment.captured"
	EventTypePaymentFailed   = "payment.failed"
	EventTypePaymentRefunded = "payment.refunded"
	EventTypePaymentDisputed = "payment.disputed"
)

type PaymentCapturedEvent struct {
	BaseEvent
	PaymentID        string `json:"payment_id"`
	UserID           string `json:"user_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	GatewayReference string `json:"gateway_reference"`
}

func NewPaymentCapturedEvent(paymentID, userID string, amount int64, currency, gatewayReference string) *PaymentCapturedEvent {
	return &PaymentCapturedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentCaptured,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":        paymentID,
				"user_id":           userID,
				"amount":            amount,
				"currency":          currency,
				"gateway_reference": gatewayReference,
			},
		},
		PaymentID:        paymentID,
		UserID:           userID,
		Amount:           amount,
		Currency:         currency,
		GatewayReference: gatewayReference,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	PaymentID     string `json:"payment_id"`
	UserID        string `json:"user_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	FailureReason string `json:"failure_reason"`
	RetryCount    int    `json:"retry_count"`
	WillRetry     bool   `json:"will_retry"`
}

func NewPaymentFailedEvent(paymentID, userID string, amount int64, currency, failureReason string, retryCount int, willRetry bool) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"user_id":        userID,
				"amount":         amount,
				"currency":       currency,
				"failure_reason": failureReason,
				"retry_count":    retryCount,
				"will_retry":     willRetry,
			},
		},
		PaymentID:     paymentID,
		UserID:        userID,
		Amount:        amount,
		Currency:      currency,
		FailureReason: failureReason,
		RetryCount:    retryCount,
		WillRetry:     willRetry,
	}
}

type PaymentRefundedEvent struct {
	BaseEvent
	PaymentID        string `json:"payment_id"`
	UserID           string `json:"user_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	GatewayReference string `json:"gateway_reference"`
}

func NewPaymentRefundedEvent(paymentID, userID string, amount int64, currency, gatewayReference string) *PaymentRefundedEvent {
	return &PaymentRefundedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentRefunded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":        paymentID,
				"user_id":           userID,
				"amount":            amount,
				"currency":          currency,
				"gateway_reference": gatewayReference,
			},
		},
		PaymentID:        paymentID,
		UserID:           userID,
		Amount:           amount,
		Currency:         currency,
		GatewayReference: gatewayReference,
	}
}

type PaymentDisputedEvent struct {
	BaseEvent
	PaymentID string `json:"payment_id"`
	UserID    string `json:"user_id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
}

func NewPaymentDisputedEvent(paymentID, userID string, amount int64, reason string) *PaymentDisputedEvent {
	return &PaymentDisputedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentDisputed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id": paymentID,
				"user_id":    userID,
				"amount":     amount,
				"reason":     reason,
			},
		},
		PaymentID: paymentID,
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
	}
}
