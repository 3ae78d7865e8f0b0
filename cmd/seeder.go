package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	paymentmodel "github.com/rentora/payments/internal/core/datamodel/payment"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample payments for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gormDB, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		if clearData {
			for _, table := range []string{"payment_audit_entries", "payment_transactions", "idempotency_records", "payments"} {
				if err := gormDB.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing payment data")
		}

		samples := []struct {
			userID      string
			appID       string
			amount      int64
			currency    string
			paymentType string
		}{
			{"11111111-1111-1111-1111-111111111111", "aaaaaaaa-0000-0000-0000-000000000001", 150000, "USD", paymentmodel.TypeSecurityDeposit},
			{"11111111-1111-1111-1111-111111111111", "aaaaaaaa-0000-0000-0000-000000000002", 4500, "USD", paymentmodel.TypeApplicationFee},
			{"22222222-2222-2222-2222-222222222222", "aaaaaaaa-0000-0000-0000-000000000003", 220000, "EUR", paymentmodel.TypeRent},
		}

		now := time.Now()
		for _, s := range samples {
			key := uuid.NewString()
			var exists int64
			gormDB.Raw("SELECT COUNT(1) FROM payments WHERE user_id = ? AND application_id = ?", s.userID, s.appID).Scan(&exists)
			if exists > 0 {
				fmt.Printf("payment for application %s already exists, skipping\n", s.appID)
				continue
			}

			appID := s.appID
			p := &paymentmodel.Payment{
				ID:               uuid.NewString(),
				UserID:           s.userID,
				ApplicationID:    &appID,
				Amount:           s.amount,
				Currency:         s.currency,
				PaymentType:      s.paymentType,
				PaymentMethodRef: "pm_seed_" + key[:8],
				Status:           paymentmodel.StatusPending,
				IdempotencyKey:   key,
				Version:          1,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := gormDB.Create(p).Error; err != nil {
				log.Fatalf("failed to seed payment: %v", err)
			}
			fmt.Printf("Seeded payment %s (%s %d %s)\n", p.ID, p.PaymentType, p.Amount, p.Currency)
		}
	},
}
