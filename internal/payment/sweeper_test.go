package payment_test

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/rentora/payments/internal/core/datamodel/payment"
	gatewaytypes "github.com/rentora/payments/internal/core/datamodel/paymentgateway"
	"github.com/rentora/payments/internal/core/events"
	paymentPkg "github.com/rentora/payments/internal/payment"
)

var _ = ginkgo.Describe("Sweeper", func() {
	var (
		sweeper  *paymentPkg.Sweeper
		service  *paymentPkg.Service
		mockRepo *mockPaymentRepository
		gateway  *mockGateway
		breakers *mockBreaker
		idem     *mockIdempotencyStore
		logger   *slog.Logger
		ctx      context.Context
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockPaymentRepository()
		gateway = &mockGateway{}
		breakers = &mockBreaker{}
		idem = newMockIdempotencyStore()
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		ctx = context.Background()

		service = paymentPkg.NewService(mockRepo, gateway, breakers, idem, events.NewEventBus(logger), paymentPkg.ServiceConfig{
			SupportedCurrencies: []string{"USD"},
			MaxRetries:          3,
			BaseDelay:           5 * time.Second,
			MaxDelay:            5 * time.Minute,
		}, logger)

		sweeper = paymentPkg.NewSweeper(service, mockRepo, idem, paymentPkg.SweeperConfig{
			Interval:           time.Second,
			StalenessThreshold: time.Minute,
			BatchSize:          10,
		}, logger)
	})

	// seed inserts a payment directly in the given status, bypassing the
	// service, the way a crashed process would have left it.
	seed := func(status string, opts func(*payment.Payment)) *payment.Payment {
		p := &payment.Payment{
			ID:               "pay-" + status,
			UserID:           "user-1",
			Amount:           150000,
			Currency:         "USD",
			PaymentType:      payment.TypeRent,
			PaymentMethodRef: "pm_test_visa",
			Status:           status,
			IdempotencyKey:   "key-" + status,
			Version:          1,
		}
		if opts != nil {
			opts(p)
		}
		mockRepo.payments[p.ID] = p
		return p
	}

	ginkgo.Describe("stuck authorizing payments", func() {
		ginkgo.It("should capture a stuck payment the gateway reports as succeeded", func() {
			p := seed(payment.StatusAuthorizing, func(p *payment.Payment) {
				p.UpdatedAt = time.Now().Add(-5 * time.Minute)
			})
			ref := "ch_stuck"
			mockRepo.txns[p.ID] = []*payment.Transaction{{
				PaymentID:        p.ID,
				TxType:           payment.TxTypePayment,
				GatewayReference: &ref,
			}}
			gateway.retrieveRes = gatewaytypes.Succeeded(ref, nil)

			sweeper.SweepOnce(ctx)

			stored, _ := mockRepo.GetByID(p.ID)
			gomega.Expect(stored.Status).To(gomega.Equal(payment.StatusCaptured))
		})

		ginkgo.It("should fail a stuck payment the gateway reports as declined", func() {
			p := seed(payment.StatusAuthorizing, func(p *payment.Payment) {
				p.UpdatedAt = time.Now().Add(-5 * time.Minute)
			})
			ref := "ch_stuck"
			mockRepo.txns[p.ID] = []*payment.Transaction{{
				PaymentID:        p.ID,
				TxType:           payment.TxTypePayment,
				GatewayReference: &ref,
			}}
			gateway.retrieveRes = gatewaytypes.Declined("card_declined", nil)

			sweeper.SweepOnce(ctx)

			stored, _ := mockRepo.GetByID(p.ID)
			gomega.Expect(stored.Status).To(gomega.Equal(payment.StatusFailed))
			gomega.Expect(stored.NextRetryAt).To(gomega.BeNil())
		})

		ginkgo.It("should schedule a retry for a stuck payment with no gateway reference", func() {
			p := seed(payment.StatusAuthorizing, func(p *payment.Payment) {
				p.UpdatedAt = time.Now().Add(-5 * time.Minute)
			})

			sweeper.SweepOnce(ctx)

			stored, _ := mockRepo.GetByID(p.ID)
			gomega.Expect(stored.Status).To(gomega.Equal(payment.StatusFailed))
			gomega.Expect(stored.RetryCount).To(gomega.Equal(1))
			gomega.Expect(stored.NextRetryAt).ToNot(gomega.BeNil())
		})

		ginkgo.It("should leave the row untouched while the gateway is unreachable", func() {
			p := seed(payment.StatusAuthorizing, func(p *payment.Payment) {
				p.UpdatedAt = time.Now().Add(-5 * time.Minute)
			})
			ref := "ch_stuck"
			mockRepo.txns[p.ID] = []*payment.Transaction{{
				PaymentID:        p.ID,
				TxType:           payment.TxTypePayment,
				GatewayReference: &ref,
			}}
			gateway.retrieveRes = gatewaytypes.TransientError("gateway_timeout", nil)

			sweeper.SweepOnce(ctx)

			stored, _ := mockRepo.GetByID(p.ID)
			gomega.Expect(stored.Status).To(gomega.Equal(payment.StatusAuthorizing))
			gomega.Expect(stored.Version).To(gomega.Equal(int64(1)))
		})

		ginkgo.It("should not touch a recently updated authorizing payment", func() {
			p := seed(payment.StatusAuthorizing, func(p *payment.Payment) {
				p.UpdatedAt = time.Now()
			})

			sweeper.SweepOnce(ctx)

			stored, _ := mockRepo.GetByID(p.ID)
			gomega.Expect(stored.Status).To(gomega.Equal(payment.StatusAuthorizing))
		})
	})

	ginkgo.Describe("scheduled retries", func() {
		ginkgo.It("should re-drive a failed payment whose retry is due", func() {
			due := time.Now().Add(-time.Second)
			p := seed(payment.StatusFailed, func(p *payment.Payment) {
				p.RetryCount = 1
				p.NextRetryAt = &due
			})
			gateway.chargeResults = []*gatewaytypes.Result{gatewaytypes.Succeeded("ch_retry", nil)}

			sweeper.SweepOnce(ctx)

			stored, _ := mockRepo.GetByID(p.ID)
			gomega.Expect(stored.Status).To(gomega.Equal(payment.StatusCaptured))
			gomega.Expect(gateway.chargeCalls).To(gomega.Equal(1))
		})

		ginkgo.It("should not touch a failed payment whose retry is still in the future", func() {
			due := time.Now().Add(time.Hour)
			p := seed(payment.StatusFailed, func(p *payment.Payment) {
				p.RetryCount = 1
				p.NextRetryAt = &due
			})

			sweeper.SweepOnce(ctx)

			stored, _ := mockRepo.GetByID(p.ID)
			gomega.Expect(stored.Status).To(gomega.Equal(payment.StatusFailed))
			gomega.Expect(gateway.chargeCalls).To(gomega.Equal(0))
		})

		ginkgo.It("should keep sweeping after one retry attempt fails", func() {
			due := time.Now().Add(-time.Second)
			seed(payment.StatusFailed, func(p *payment.Payment) {
				p.ID = "pay-a"
				p.IdempotencyKey = "key-a"
				p.RetryCount = 1
				p.NextRetryAt = &due
			})
			seed(payment.StatusFailed, func(p *payment.Payment) {
				p.ID = "pay-b"
				p.IdempotencyKey = "key-b"
				p.RetryCount = 1
				p.NextRetryAt = &due
			})
			gateway.chargeResults = []*gatewaytypes.Result{gatewaytypes.TransientError("gateway_timeout", nil)}

			sweeper.SweepOnce(ctx)

			gomega.Expect(gateway.chargeCalls).To(gomega.Equal(2))
		})
	})
})
