package breaker_test

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/rentora/payments/internal/breaker"
	gatewaytypes "github.com/rentora/payments/internal/core/datamodel/paymentgateway"
)

func TestBreakerRegistry(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Breaker Registry Suite")
}

var _ = ginkgo.Describe("Registry", func() {
	var (
		registry *breaker.Registry
		logger   *slog.Logger
	)

	succeed := func() (*gatewaytypes.Result, error) {
		return gatewaytypes.Succeeded("ch_1", nil), nil
	}
	transient := func() (*gatewaytypes.Result, error) {
		return gatewaytypes.TransientError("gateway_timeout", nil), nil
	}
	declined := func() (*gatewaytypes.Result, error) {
		return gatewaytypes.Declined("card_declined", nil), nil
	}

	ginkgo.BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		registry = breaker.NewRegistry(breaker.Config{
			MinRequests:  3,
			FailureRatio: 0.5,
			Interval:     time.Minute,
			Cooldown:     100 * time.Millisecond,
		}, logger)
	})

	ginkgo.Context("while the gateway behaves", func() {
		ginkgo.It("should pass results through and stay closed", func() {
			for i := 0; i < 10; i++ {
				res, err := registry.Do(breaker.OpCharge, succeed)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(res.Outcome).To(gomega.Equal(gatewaytypes.OutcomeSucceeded))
			}
			gomega.Expect(registry.State(breaker.OpCharge)).To(gomega.Equal("closed"))
		})

		ginkgo.It("should not count declines as failures", func() {
			for i := 0; i < 20; i++ {
				res, err := registry.Do(breaker.OpCharge, declined)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(res.Outcome).To(gomega.Equal(gatewaytypes.OutcomeDeclined))
			}
			gomega.Expect(registry.State(breaker.OpCharge)).To(gomega.Equal("closed"))
		})
	})

	ginkgo.Context("when transient failures accumulate", func() {
		ginkgo.It("should return the transient outcome to the caller while counting it", func() {
			res, err := registry.Do(breaker.OpCharge, transient)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(res.Outcome).To(gomega.Equal(gatewaytypes.OutcomeTransientError))
			gomega.Expect(registry.Counts(breaker.OpCharge).TotalFailures).To(gomega.Equal(uint32(1)))
		})

		ginkgo.It("should trip open once the failure ratio is reached", func() {
			for i := 0; i < 3; i++ {
				_, err := registry.Do(breaker.OpCharge, transient)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
			}
			gomega.Expect(registry.State(breaker.OpCharge)).To(gomega.Equal("open"))
		})

		ginkgo.It("should fast-fail without invoking the call while open", func() {
			for i := 0; i < 3; i++ {
				_, _ = registry.Do(breaker.OpCharge, transient)
			}

			invoked := false
			_, err := registry.Do(breaker.OpCharge, func() (*gatewaytypes.Result, error) {
				invoked = true
				return succeed()
			})
			gomega.Expect(errors.Is(err, breaker.ErrCircuitOpen)).To(gomega.BeTrue())
			gomega.Expect(invoked).To(gomega.BeFalse())
		})

		ginkgo.It("should not trip below the minimum request floor", func() {
			for i := 0; i < 2; i++ {
				_, _ = registry.Do(breaker.OpCharge, transient)
			}
			gomega.Expect(registry.State(breaker.OpCharge)).To(gomega.Equal("closed"))
		})
	})

	ginkgo.Context("after the cooldown elapses", func() {
		ginkgo.BeforeEach(func() {
			for i := 0; i < 3; i++ {
				_, _ = registry.Do(breaker.OpCharge, transient)
			}
			gomega.Expect(registry.State(breaker.OpCharge)).To(gomega.Equal("open"))
			time.Sleep(150 * time.Millisecond)
		})

		ginkgo.It("should close again after a successful trial call", func() {
			res, err := registry.Do(breaker.OpCharge, succeed)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(res.Outcome).To(gomega.Equal(gatewaytypes.OutcomeSucceeded))
			gomega.Expect(registry.State(breaker.OpCharge)).To(gomega.Equal("closed"))
		})

		ginkgo.It("should reopen when the trial call fails", func() {
			_, err := registry.Do(breaker.OpCharge, transient)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(registry.State(breaker.OpCharge)).To(gomega.Equal("open"))
		})
	})

	ginkgo.Context("across operation classes", func() {
		ginkgo.It("should keep refunds flowing while charges are shorted out", func() {
			for i := 0; i < 3; i++ {
				_, _ = registry.Do(breaker.OpCharge, transient)
			}
			gomega.Expect(registry.State(breaker.OpCharge)).To(gomega.Equal("open"))

			res, err := registry.Do(breaker.OpRefund, succeed)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(res.Outcome).To(gomega.Equal(gatewaytypes.OutcomeSucceeded))
			gomega.Expect(registry.State(breaker.OpRefund)).To(gomega.Equal("closed"))
		})
	})
})
