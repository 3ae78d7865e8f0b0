package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	idempotencymodel "github.com/rentora/payments/internal/core/datamodel/idempotency"
)

// Store persists idempotency reservations. Reserve is a single atomic
// insert-if-absent: the unique (user_id, idempotency_key) index is the
// arbiter under concurrent callers.
type Store struct {
	db     *gorm.DB
	ttl    time.Duration
	logger *slog.Logger
}

func NewStore(db *gorm.DB, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{db: db, ttl: ttl, logger: logger}
}

// Lookup returns the live record for the key, or nil when absent or expired.
func (s *Store) Lookup(ctx context.Context, userID, key string) (*idempotencymodel.Record, error) {
	var record idempotencymodel.Record
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	if record.Expired(time.Now()) {
		return nil, nil
	}
	return &record, nil
}

// Reserve inserts a reservation for (userID, key) pointing at paymentID.
// It returns (nil, nil) when the reservation was freshly taken, or the
// existing live record when another request already holds the key. Expired
// rows are cleared inside the same transaction so the key can be reused.
func (s *Store) Reserve(ctx context.Context, userID, key, paymentID string) (*idempotencymodel.Record, error) {
	now := time.Now()
	record := &idempotencymodel.Record{
		UserID:         userID,
		IdempotencyKey: key,
		PaymentID:      paymentID,
		Status:         idempotencymodel.StatusInProgress,
		ExpiresAt:      now.Add(s.ttl),
	}

	var existing *idempotencymodel.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("user_id = ? AND idempotency_key = ? AND expires_at <= ?", userID, key, now).
			Delete(&idempotencymodel.Record{}).Error; err != nil {
			return fmt.Errorf("expired key cleanup failed: %w", err)
		}

		err := tx.Create(record).Error
		if err == nil {
			return nil
		}
		if !isDuplicateKey(err) {
			return fmt.Errorf("key reservation failed: %w", err)
		}

		var found idempotencymodel.Record
		if err := tx.
			Where("user_id = ? AND idempotency_key = ?", userID, key).
			First(&found).Error; err != nil {
			return fmt.Errorf("reserved key readback failed: %w", err)
		}
		existing = &found
		return nil
	})
	if err != nil {
		return nil, err
	}

	if existing != nil {
		s.logger.Debug("idempotency key already reserved",
			"user_id", userID,
			"payment_id", existing.PaymentID,
			"status", existing.Status)
	}
	return existing, nil
}

// Complete attaches the final result snapshot once the operation's outcome
// is known.
func (s *Store) Complete(ctx context.Context, userID, key string, snapshot json.RawMessage) error {
	result := s.db.WithContext(ctx).
		Model(&idempotencymodel.Record{}).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		Updates(map[string]interface{}{
			"status":          idempotencymodel.StatusCompleted,
			"result_snapshot": snapshot,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("idempotency completion failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("idempotency record not found for completion")
	}
	return nil
}

// PurgeExpired deletes records past their TTL to bound storage growth.
// Run periodically by the reconciliation sweeper.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", time.Now()).
		Delete(&idempotencymodel.Record{})
	if result.Error != nil {
		return 0, fmt.Errorf("idempotency purge failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// isDuplicateKey detects unique-index violations across gorm's translated
// error, postgres (23505) and the sqlite driver used in tests.
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
