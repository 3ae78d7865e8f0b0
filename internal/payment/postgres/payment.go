package postgres

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/rentora/payments/internal/core/datamodel/payment"
	paymentpkg "github.com/rentora/payments/internal/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) paymentpkg.RepositoryAPI {
	return &PaymentRepository{
		db: db,
	}
}

// Create inserts the payment together with its creation audit entry in one
// transaction. A duplicate (user_id, idempotency_key) insert is translated
// to ErrDuplicateIdempotencyKey so the caller can return the earlier row.
func (r *PaymentRepository) Create(p *payment.Payment, audit *payment.AuditEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			if isDuplicateKey(err) {
				return paymentpkg.ErrDuplicateIdempotencyKey
			}
			return err
		}
		audit.PaymentID = p.ID
		audit.Version = p.Version
		return tx.Create(audit).Error
	})
}

func (r *PaymentRepository) GetByID(id string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, paymentpkg.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByUserAndKey(userID, idempotencyKey string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.Where("user_id = ? AND idempotency_key = ?", userID, idempotencyKey).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, paymentpkg.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByGatewayReference resolves a payment from a gateway charge reference
// recorded on one of its transactions, used by the webhook path.
func (r *PaymentRepository) GetByGatewayReference(reference string) (*payment.Payment, error) {
	var txn payment.Transaction
	err := r.db.Where("gateway_reference = ?", reference).Order("created_at DESC").First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, paymentpkg.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(txn.PaymentID)
}

// CASTransition applies the in-memory mutation of p as a single logically
// atomic update: a version-conditioned payment UPDATE, the audit append
// and (when the attempt produced one) the transaction insert all commit or
// roll back together. p.Version must hold the version the caller loaded;
// zero rows matched means someone else won the race and the caller gets
// ErrVersionConflict without any write. A nil audit bumps the version
// without appending to the trail, for updates that change no status.
func (r *PaymentRepository) CASTransition(p *payment.Payment, audit *payment.AuditEntry, txn *payment.Transaction) error {
	if audit != nil && !payment.CanTransition(audit.PreviousStatus, audit.NewStatus) {
		return fmt.Errorf("illegal status transition %s -> %s", audit.PreviousStatus, audit.NewStatus)
	}

	loadedVersion := p.Version

	return r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":              p.Status,
			"payment_method_ref":  p.PaymentMethodRef,
			"retry_count":         p.RetryCount,
			"next_retry_at":       p.NextRetryAt,
			"last_failure_reason": p.LastFailureReason,
			"paid_at":             p.PaidAt,
			"version":             loadedVersion + 1,
			"updated_at":          time.Now(),
		}

		result := tx.Model(&payment.Payment{}).
			Where("id = ? AND version = ?", p.ID, loadedVersion).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return paymentpkg.ErrVersionConflict
		}

		p.Version = loadedVersion + 1

		if audit != nil {
			audit.PaymentID = p.ID
			audit.Version = p.Version
			if err := tx.Create(audit).Error; err != nil {
				return err
			}
		}

		if txn != nil {
			txn.PaymentID = p.ID
			if err := tx.Create(txn).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// ListStuckAuthorizing returns payments sitting in authorizing since before
// the cutoff, oldest first, for the reconciliation sweeper.
func (r *PaymentRepository) ListStuckAuthorizing(cutoff time.Time, limit int) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.
		Where("status = ? AND updated_at < ?", payment.StatusAuthorizing, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// ListDueRetries returns failed payments whose scheduled retry is due.
func (r *PaymentRepository) ListDueRetries(now time.Time, limit int) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", payment.StatusFailed, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// LatestGatewayReference returns the most recent gateway reference recorded
// for the payment, or empty when no attempt ever reached the gateway.
func (r *PaymentRepository) LatestGatewayReference(paymentID string) (string, error) {
	var txn payment.Transaction
	err := r.db.
		Where("payment_id = ? AND gateway_reference IS NOT NULL", paymentID).
		Order("created_at DESC").
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if txn.GatewayReference == nil {
		return "", nil
	}
	return *txn.GatewayReference, nil
}

func (r *PaymentRepository) ListTransactions(paymentID string) ([]*payment.Transaction, error) {
	var txns []*payment.Transaction
	err := r.db.Where("payment_id = ?", paymentID).Order("created_at ASC").Find(&txns).Error
	return txns, err
}

// ListAuditEntries returns the audit trail ordered by the version each
// transition was written at.
func (r *PaymentRepository) ListAuditEntries(paymentID string) ([]*payment.AuditEntry, error) {
	var entries []*payment.AuditEntry
	err := r.db.Where("payment_id = ?", paymentID).Order("version ASC").Find(&entries).Error
	return entries, err
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
