package payment_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	internalerrors "github.com/rentora/payments/internal"
	paymentPkg "github.com/rentora/payments/internal/payment"
)

type mockCallbackService struct {
	received []*paymentPkg.GatewayCallback
	err      error
}

func (m *mockCallbackService) HandleGatewayCallback(ctx context.Context, ev *paymentPkg.GatewayCallback) error {
	m.received = append(m.received, ev)
	return m.err
}

var _ = ginkgo.Describe("WebhookHandler", func() {
	const secret = "test-webhook-secret"

	var (
		handler *paymentPkg.WebhookHandler
		service *mockCallbackService
		logger  *slog.Logger
	)

	sign := func(body []byte) string {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		return hex.EncodeToString(mac.Sum(nil))
	}

	post := func(body []byte, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/gateway/callback", bytes.NewReader(body))
		if signature != "" {
			req.Header.Set("X-Gateway-Signature", signature)
		}
		rec := httptest.NewRecorder()
		handler.HandleCallback(rec, req)
		return rec
	}

	ginkgo.BeforeEach(func() {
		service = &mockCallbackService{}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler = paymentPkg.NewWebhookHandler(service, secret, logger)
	})

	ginkgo.Context("when the signature is valid", func() {
		ginkgo.It("should decode the event and acknowledge", func() {
			body := []byte(`{"event_id":"evt_1","event_type":"charge.succeeded","payment_id":"pay_1","gateway_reference":"ch_1"}`)

			rec := post(body, sign(body))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(service.received).To(gomega.HaveLen(1))
			gomega.Expect(service.received[0].EventType).To(gomega.Equal(paymentPkg.CallbackChargeSucceeded))
			gomega.Expect(service.received[0].PaymentID).To(gomega.Equal("pay_1"))
		})

		ginkgo.It("should redact sensitive fields from the stored body", func() {
			body := []byte(`{"event_id":"evt_1","event_type":"charge.succeeded","payment_id":"pay_1","gateway_reference":"ch_1","payment_method":"pm_SECRET_4242"}`)

			rec := post(body, sign(body))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(service.received).To(gomega.HaveLen(1))
			raw := string(service.received[0].Raw)
			gomega.Expect(raw).ToNot(gomega.ContainSubstring("pm_SECRET_4242"))
			gomega.Expect(raw).To(gomega.ContainSubstring(`"payment_method":"[REDACTED]"`))
			gomega.Expect(raw).To(gomega.ContainSubstring("evt_1"))
		})
	})

	ginkgo.Context("when the signature is missing or wrong", func() {
		ginkgo.It("should reject an unsigned request", func() {
			body := []byte(`{"event_id":"evt_1","event_type":"charge.succeeded"}`)

			rec := post(body, "")

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(service.received).To(gomega.BeEmpty())
		})

		ginkgo.It("should reject a request signed with the wrong key", func() {
			body := []byte(`{"event_id":"evt_1","event_type":"charge.succeeded"}`)
			mac := hmac.New(sha256.New, []byte("wrong-secret"))
			mac.Write(body)

			rec := post(body, hex.EncodeToString(mac.Sum(nil)))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(service.received).To(gomega.BeEmpty())
		})

		ginkgo.It("should reject a tampered body", func() {
			body := []byte(`{"event_id":"evt_1","event_type":"charge.succeeded"}`)
			signature := sign(body)
			tampered := []byte(`{"event_id":"evt_1","event_type":"charge.declined"}`)

			rec := post(tampered, signature)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(service.received).To(gomega.BeEmpty())
		})
	})

	ginkgo.Context("when the payload is malformed", func() {
		ginkgo.It("should reject invalid JSON", func() {
			body := []byte(`{not json`)

			rec := post(body, sign(body))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
		})

		ginkgo.It("should reject a missing event_type", func() {
			body := []byte(`{"event_id":"evt_1"}`)

			rec := post(body, sign(body))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Context("when processing fails", func() {
		ginkgo.It("should surface a version conflict so the gateway redelivers", func() {
			service.err = internalerrors.ErrConcurrentModification
			body := []byte(`{"event_id":"evt_1","event_type":"charge.succeeded","payment_id":"pay_1"}`)

			rec := post(body, sign(body))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusConflict))
		})

		ginkgo.It("should return not found for unknown payments", func() {
			service.err = internalerrors.ErrPaymentNotFound
			body := []byte(`{"event_id":"evt_1","event_type":"charge.succeeded","payment_id":"missing"}`)

			rec := post(body, sign(body))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNotFound))
		})
	})
})
