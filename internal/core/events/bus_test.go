package events_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/rentora/payments/internal/core/events"
)

func TestEventBus(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Event Bus Suite")
}

var _ = ginkgo.Describe("EventBus", func() {
	var (
		bus *events.EventBus
		ctx context.Context
	)

	ginkgo.BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		bus = events.NewEventBus(logger)
		ctx = context.Background()
	})

	ginkgo.Describe("Publish", func() {
		ginkgo.It("should dispatch to every subscriber of the event type", func() {
			var (
				mu       sync.Mutex
				received []string
				done     = make(chan struct{}, 2)
			)
			handler := func(ctx context.Context, ev events.Event) error {
				mu.Lock()
				received = append(received, ev.EventID())
				mu.Unlock()
				done <- struct{}{}
				return nil
			}
			bus.Subscribe(events.EventTypePaymentCaptured, handler)
			bus.Subscribe(events.EventTypePaymentCaptured, handler)

			ev := events.NewPaymentCapturedEvent("pay-1", "user-1", 150000, "USD", "ch_1")
			gomega.Expect(bus.Publish(ctx, ev)).To(gomega.Succeed())

			<-done
			<-done
			mu.Lock()
			defer mu.Unlock()
			gomega.Expect(received).To(gomega.HaveLen(2))
			gomega.Expect(received[0]).To(gomega.Equal(ev.EventID()))
		})

		ginkgo.It("should not propagate handler failures to the publisher", func() {
			done := make(chan struct{}, 1)
			bus.Subscribe(events.EventTypePaymentFailed, func(ctx context.Context, ev events.Event) error {
				done <- struct{}{}
				return errors.New("consumer broke")
			})

			ev := events.NewPaymentFailedEvent("pay-1", "user-1", 150000, "USD", "card_declined", 1, false)
			gomega.Expect(bus.Publish(ctx, ev)).To(gomega.Succeed())
			<-done
		})

		ginkgo.It("should be a no-op without subscribers", func() {
			ev := events.NewPaymentRefundedEvent("pay-1", "user-1", 150000, "USD", "rf_1")
			gomega.Expect(bus.Publish(ctx, ev)).To(gomega.Succeed())
		})
	})

	ginkgo.Describe("PublishSync", func() {
		ginkgo.It("should run handlers inline in subscription order", func() {
			var order []string
			bus.Subscribe(events.EventTypePaymentDisputed, func(ctx context.Context, ev events.Event) error {
				order = append(order, "first")
				return nil
			})
			bus.Subscribe(events.EventTypePaymentDisputed, func(ctx context.Context, ev events.Event) error {
				order = append(order, "second")
				return nil
			})

			ev := events.NewPaymentDisputedEvent("pay-1", "user-1", 150000, "chargeback")
			gomega.Expect(bus.PublishSync(ctx, ev)).To(gomega.Succeed())
			gomega.Expect(order).To(gomega.Equal([]string{"first", "second"}))
		})

		ginkgo.It("should stop at the first handler failure and surface it", func() {
			calls := 0
			bus.Subscribe(events.EventTypePaymentDisputed, func(ctx context.Context, ev events.Event) error {
				calls++
				return errors.New("consumer broke")
			})
			bus.Subscribe(events.EventTypePaymentDisputed, func(ctx context.Context, ev events.Event) error {
				calls++
				return nil
			})

			ev := events.NewPaymentDisputedEvent("pay-1", "user-1", 150000, "chargeback")
			err := bus.PublishSync(ctx, ev)

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(calls).To(gomega.Equal(1))
		})
	})
})
