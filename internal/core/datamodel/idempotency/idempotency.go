package idempotency

import (
	"encoding/json"
	"time"
)

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Record maps (user_id, idempotency_key) to the payment a prior request
// produced, plus a snapshot of its result. Insertion is atomic and
// exclusive per key via the unique index; rows past ExpiresAt are treated
// as absent.
type Record struct {
	ID             int64           `gorm:"primaryKey;column:id"`
	UserID         string          `gorm:"column:user_id;not null;uniqueIndex:idx_idempotency_user_key"`
	IdempotencyKey string          `gorm:"column:idempotency_key;not null;uniqueIndex:idx_idempotency_user_key"`
	PaymentID      string          `gorm:"column:payment_id;not null"`
	Status         string          `gorm:"column:status;default:in_progress"`
	ResultSnapshot json.RawMessage `gorm:"column:result_snapshot;type:jsonb"`
	ExpiresAt      time.Time       `gorm:"column:expires_at;not null;index"`
	CreatedAt      time.Time       `gorm:"column:created_at;default:now()"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;default:now()"`
}

func (Record) TableName() string {
	return "idempotency_records"
}

func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
