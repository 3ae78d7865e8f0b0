package payment

import (
	"time"

	errors "github.com/rentora/payments/internal"
	"github.com/rentora/payments/internal/core/common/validation"
	"github.com/rentora/payments/internal/core/datamodel/payment"
)

// CreatePaymentRequest is the payload for POST /payments. Amount is in
// minor units; the payment method reference may be supplied here or later
// at process time.
type CreatePaymentRequest struct {
	UserID           string  `json:"user_id"`
	ApplicationID    *string `json:"application_id,omitempty"`
	Amount           int64   `json:"amount"`
	Currency         string  `json:"currency"`
	PaymentType      string  `json:"payment_type"`
	PaymentMethodRef string  `json:"payment_method_ref,omitempty"`
	IdempotencyKey   string  `json:"idempotency_key"`
}

func (r *CreatePaymentRequest) Validate(supportedCurrencies []string) error {
	validator := validation.NewValidator()

	validator.Field("user_id", r.UserID).Required()
	validator.Field("amount", r.Amount).Positive(errors.ErrCodeInvalidAmount)
	validator.Field("currency", r.Currency).Required().OneOf(supportedCurrencies, errors.ErrCodeUnsupportedCurrency)
	validator.Field("payment_type", r.PaymentType).Required().OneOf(payment.KnownTypes(), errors.ErrCodeInvalidPaymentType)
	validator.Field("idempotency_key", r.IdempotencyKey).Required().MaxLength(128)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// ProcessPaymentRequest is the payload for POST /payments/{id}/process.
type ProcessPaymentRequest struct {
	PaymentMethodRef string `json:"payment_method_ref"`
}

// PaymentView is the external representation of a payment. The payment
// method reference is intentionally absent.
type PaymentView struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	ApplicationID *string    `json:"application_id,omitempty"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	PaymentType   string     `json:"payment_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func ToView(p *payment.Payment) *PaymentView {
	return &PaymentView{
		ID:            p.ID,
		UserID:        p.UserID,
		ApplicationID: p.ApplicationID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		PaymentType:   p.PaymentType,
		Status:        p.Status,
		RetryCount:    p.RetryCount,
		NextRetryAt:   p.NextRetryAt,
		FailureReason: p.LastFailureReason,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type TransactionView struct {
	ID               string    `json:"id"`
	TxType           string    `json:"tx_type"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	GatewayReference *string   `json:"gateway_reference,omitempty"`
	Outcome          string    `json:"outcome"`
	ReasonCode       *string   `json:"reason_code,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type AuditEntryView struct {
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Version        int64     `json:"version"`
	ActorID        *string   `json:"actor_id,omitempty"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
}

// PaymentStatusView is the full lifecycle picture: the payment, each
// gateway attempt and the audit trail.
type PaymentStatusView struct {
	Payment      *PaymentView      `json:"payment"`
	Transactions []TransactionView `json:"transactions"`
	AuditTrail   []AuditEntryView  `json:"audit_trail"`
}

func toStatusView(p *payment.Payment, txns []*payment.Transaction, entries []*payment.AuditEntry) *PaymentStatusView {
	view := &PaymentStatusView{
		Payment:      ToView(p),
		Transactions: make([]TransactionView, 0, len(txns)),
		AuditTrail:   make([]AuditEntryView, 0, len(entries)),
	}
	for _, t := range txns {
		view.Transactions = append(view.Transactions, TransactionView{
			ID:               t.ID,
			TxType:           t.TxType,
			Amount:           t.Amount,
			Currency:         t.Currency,
			GatewayReference: t.GatewayReference,
			Outcome:          t.Outcome,
			ReasonCode:       t.ReasonCode,
			CreatedAt:        t.CreatedAt,
		})
	}
	for _, e := range entries {
		view.AuditTrail = append(view.AuditTrail, AuditEntryView{
			PreviousStatus: e.PreviousStatus,
			NewStatus:      e.NewStatus,
			Version:        e.Version,
			ActorID:        e.ActorID,
			Reason:         e.Reason,
			CreatedAt:      e.CreatedAt,
		})
	}
	return view
}
