package paymentgateway

import (
	"encoding/json"
	"errors"
)

// Outcome tags a gateway call result. Financial failures are values, not
// errors, so callers are forced to branch on them explicitly.
type Outcome string

const (
	OutcomeSucceeded      Outcome = "succeeded"
	OutcomeDeclined       Outcome = "declined"
	OutcomeTransientError Outcome = "transient_error"
	OutcomePermanentError Outcome = "permanent_error"
)

// Result is the normalized outcome of a charge, refund or retrieve call.
// Reference is set for succeeded outcomes; ReasonCode carries the
// structured failure code ("card_declined", "gateway_timeout", ...). Raw
// holds the gateway response body with sensitive fields redacted.
type Result struct {
	Outcome    Outcome         `json:"outcome"`
	Reference  string          `json:"reference,omitempty"`
	ReasonCode string          `json:"reason_code,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

func Succeeded(reference string, raw json.RawMessage) *Result {
	return &Result{Outcome: OutcomeSucceeded, Reference: reference, Raw: raw}
}

func Declined(reasonCode string, raw json.RawMessage) *Result {
	return &Result{Outcome: OutcomeDeclined, ReasonCode: reasonCode, Raw: raw}
}

func TransientError(reasonCode string, raw json.RawMessage) *Result {
	return &Result{Outcome: OutcomeTransientError, ReasonCode: reasonCode, Raw: raw}
}

func PermanentError(reasonCode string, raw json.RawMessage) *Result {
	return &Result{Outcome: OutcomePermanentError, ReasonCode: reasonCode, Raw: raw}
}

// Retriable reports whether the attempt may be re-driven automatically.
func (r *Result) Retriable() bool {
	return r.Outcome == OutcomeTransientError
}

func (r *Result) Failed() bool {
	return r.Outcome != OutcomeSucceeded
}

// ChargeRequest carries everything a charge call needs. The idempotency key
// is forwarded to the gateway so it can de-duplicate on its side as a
// second line of defense.
type ChargeRequest struct {
	PaymentMethodRef string `json:"payment_method_ref"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	IdempotencyKey   string `json:"idempotency_key"`
}

func (r *ChargeRequest) Validate() error {
	if r.PaymentMethodRef == "" {
		return errors.New("payment_method_ref is required")
	}
	if r.Amount <= 0 {
		return errors.New("amount must be greater than 0")
	}
	if r.Currency == "" {
		return errors.New("currency is required")
	}
	if r.IdempotencyKey == "" {
		return errors.New("idempotency_key is required")
	}
	return nil
}
