package payment

import (
	"encoding/json"
	"time"
)

// Payment lifecycle statuses. Transitions happen exclusively through the
// state machine in internal/payment; rows are never deleted.
const (
	StatusPending     = "pending"
	StatusAuthorizing = "authorizing"
	StatusCaptured    = "captured"
	StatusFailed      = "failed"
	StatusRefunded    = "refunded"
	StatusDisputed    = "disputed"
)

const (
	TypeApplicationFee  = "application_fee"
	TypeSecurityDeposit = "security_deposit"
	TypeRent            = "rent"
	TypeCommission      = "commission"
	TypeLateFee         = "late_fee"
)

const (
	TxTypePayment    = "payment"
	TxTypeRefund     = "refund"
	TxTypeChargeback = "chargeback"
)

const (
	TxOutcomeSuccess = "success"
	TxOutcomeFailure = "failure"
)

func KnownTypes() []string {
	return []string{TypeApplicationFee, TypeSecurityDeposit, TypeRent, TypeCommission, TypeLateFee}
}

// transitions lists every legal status edge. failed→authorizing is the
// retry edge and is additionally bounded by the retry budget.
var transitions = map[string][]string{
	StatusPending:     {StatusAuthorizing},
	StatusFailed:      {StatusAuthorizing},
	StatusAuthorizing: {StatusCaptured, StatusFailed},
	StatusCaptured:    {StatusRefunded, StatusDisputed},
}

func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Payment represents one logical charge obligation. Amounts are fixed-point
// minor units; the version column drives optimistic concurrency.
type Payment struct {
	ID                string          `gorm:"primaryKey;column:id"`
	UserID            string          `gorm:"column:user_id;not null;uniqueIndex:idx_payments_user_idem_key"`
	ApplicationID     *string         `gorm:"column:application_id"`
	PaymentMethodRef  string          `gorm:"column:payment_method_ref"`
	Amount            int64           `gorm:"column:amount;not null"`
	Currency          string          `gorm:"column:currency;not null"`
	PaymentType       string          `gorm:"column:payment_type;not null"`
	Status            string          `gorm:"column:status;default:pending"`
	IdempotencyKey    string          `gorm:"column:idempotency_key;not null;uniqueIndex:idx_payments_user_idem_key"`
	Version           int64           `gorm:"column:version;default:1"`
	RetryCount        int             `gorm:"column:retry_count;default:0"`
	NextRetryAt       *time.Time      `gorm:"column:next_retry_at"`
	LastFailureReason *string         `gorm:"column:last_failure_reason"`
	PaidAt            *time.Time      `gorm:"column:paid_at"`
	CreatedAt         time.Time       `gorm:"column:created_at;default:now()"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;default:now()"`
}

func (Payment) TableName() string {
	return "payments"
}

// Processable reports whether a charge attempt may be started from the
// current status.
func (p *Payment) Processable() bool {
	return p.Status == StatusPending || p.Status == StatusFailed
}

func (p *Payment) CanRetry(maxRetries int) bool {
	return p.Status == StatusFailed && p.RetryCount < maxRetries
}

// RetryDue reports whether an automatic retry is scheduled and due.
func (p *Payment) RetryDue(now time.Time) bool {
	return p.Status == StatusFailed && p.NextRetryAt != nil && !p.NextRetryAt.After(now)
}

// Transaction records one attempt to move a Payment toward a terminal
// state: a single gateway call and its outcome. Immutable once written.
type Transaction struct {
	ID               string          `gorm:"primaryKey;column:id"`
	PaymentID        string          `gorm:"column:payment_id;not null;index"`
	TxType           string          `gorm:"column:tx_type;not null"`
	Amount           int64           `gorm:"column:amount;not null"`
	Currency         string          `gorm:"column:currency;not null"`
	GatewayReference *string         `gorm:"column:gateway_reference"`
	Outcome          string          `gorm:"column:outcome;not null"`
	ReasonCode       *string         `gorm:"column:reason_code"`
	GatewayResponse  json.RawMessage `gorm:"column:gateway_response;type:jsonb"`
	CreatedAt        time.Time       `gorm:"column:created_at;default:now()"`
}

func (Transaction) TableName() string {
	return "payment_transactions"
}

// AuditEntry is the append-only record of a single observed transition.
// Version is the payment version the transition was written at, which gives
// a strict per-payment ordering even when timestamps collide.
type AuditEntry struct {
	ID             int64     `gorm:"primaryKey;column:id"`
	PaymentID      string    `gorm:"column:payment_id;not null;index"`
	PreviousStatus string    `gorm:"column:previous_status;not null"`
	NewStatus      string    `gorm:"column:new_status;not null"`
	Version        int64     `gorm:"column:version;not null"`
	ActorID        *string   `gorm:"column:actor_id"`
	Reason         string    `gorm:"column:reason"`
	CreatedAt      time.Time `gorm:"column:created_at;default:now()"`
}

func (AuditEntry) TableName() string {
	return "payment_audit_entries"
}

// ReplayStatus folds an ordered audit trail into the status it produces,
// starting from the pre-creation empty status.
func ReplayStatus(entries []*AuditEntry) string {
	status := ""
	for _, e := range entries {
		status = e.NewStatus
	}
	return status
}
