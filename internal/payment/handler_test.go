package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/go-chi/chi"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/rentora/payments/internal"
	"github.com/rentora/payments/internal/core/datamodel/payment"
	paymentPkg "github.com/rentora/payments/internal/payment"
)

type mockHandlerService struct {
	createErr     error
	processErr    error
	getErr        error
	statusErr     error
	refundErr     error
	createdWith   *paymentPkg.CreatePaymentRequest
	processedWith string
	payment       *payment.Payment
	statusView    *paymentPkg.PaymentStatusView
}

func (m *mockHandlerService) CreatePayment(ctx context.Context, req *paymentPkg.CreatePaymentRequest) (*payment.Payment, error) {
	m.createdWith = req
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.payment, nil
}

func (m *mockHandlerService) ProcessPayment(ctx context.Context, paymentID, paymentMethodRef, actorID string) (*payment.Payment, error) {
	m.processedWith = paymentID
	if m.processErr != nil {
		return nil, m.processErr
	}
	return m.payment, nil
}

func (m *mockHandlerService) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.payment, nil
}

func (m *mockHandlerService) GetPaymentStatus(ctx context.Context, id string) (*paymentPkg.PaymentStatusView, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return m.statusView, nil
}

func (m *mockHandlerService) RefundPayment(ctx context.Context, paymentID, actorID string) (*payment.Payment, error) {
	if m.refundErr != nil {
		return nil, m.refundErr
	}
	return m.payment, nil
}

func requestWithUser(method, target string, body []byte, userID string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(internal.ContextWithUserID(req.Context(), userID))
	}
	return req
}

func withRouteParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

var _ = ginkgo.Describe("Handler", func() {
	var (
		service  *mockHandlerService
		handler  *paymentPkg.Handler
		recorder *httptest.ResponseRecorder
	)

	ginkgo.BeforeEach(func() {
		service = &mockHandlerService{
			payment: &payment.Payment{
				ID:          "pay-1",
				UserID:      "user-1",
				Amount:      150000,
				Currency:    "USD",
				PaymentType: payment.TypeRent,
				Status:      payment.StatusPending,
				Version:     1,
			},
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler = paymentPkg.NewHandler(service, logger)
		recorder = httptest.NewRecorder()
	})

	ginkgo.Context("CreatePayment", func() {
		ginkgo.It("should create a payment and return 201", func() {
			body, _ := json.Marshal(map[string]interface{}{
				"amount":          150000,
				"currency":        "USD",
				"payment_type":    "rent",
				"idempotency_key": "key-1",
			})
			req := requestWithUser("POST", "/api/v1/payments", body, "user-1")

			handler.CreatePayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusCreated))
			var view paymentPkg.PaymentView
			gomega.Expect(json.Unmarshal(recorder.Body.Bytes(), &view)).To(gomega.Succeed())
			gomega.Expect(view.ID).To(gomega.Equal("pay-1"))
			gomega.Expect(view.Status).To(gomega.Equal(payment.StatusPending))
		})

		ginkgo.It("should take the caller identity from the request context", func() {
			body, _ := json.Marshal(map[string]interface{}{
				"user_id":         "someone-else",
				"amount":          150000,
				"currency":        "USD",
				"payment_type":    "rent",
				"idempotency_key": "key-1",
			})
			req := requestWithUser("POST", "/api/v1/payments", body, "user-1")

			handler.CreatePayment(recorder, req)

			gomega.Expect(service.createdWith.UserID).To(gomega.Equal("user-1"))
		})

		ginkgo.It("should fall back to the Idempotency-Key header", func() {
			body, _ := json.Marshal(map[string]interface{}{
				"amount":       150000,
				"currency":     "USD",
				"payment_type": "rent",
			})
			req := requestWithUser("POST", "/api/v1/payments", body, "user-1")
			req.Header.Set("Idempotency-Key", "header-key")

			handler.CreatePayment(recorder, req)

			gomega.Expect(service.createdWith.IdempotencyKey).To(gomega.Equal("header-key"))
		})

		ginkgo.It("should reject an invalid JSON body", func() {
			req := requestWithUser("POST", "/api/v1/payments", []byte("not json"), "user-1")

			handler.CreatePayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
		})

		ginkgo.It("should return 401 when no identity is present", func() {
			body, _ := json.Marshal(map[string]interface{}{"amount": 150000})
			req := requestWithUser("POST", "/api/v1/payments", body, "")

			handler.CreatePayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should pass service errors through with their status", func() {
			service.createErr = internal.NewValidationError("unsupported currency", internal.ErrCodeUnsupportedCurrency)
			body, _ := json.Marshal(map[string]interface{}{
				"amount":          150000,
				"currency":        "JPY",
				"payment_type":    "rent",
				"idempotency_key": "key-1",
			})
			req := requestWithUser("POST", "/api/v1/payments", body, "user-1")

			handler.CreatePayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Context("ProcessPayment", func() {
		ginkgo.It("should process the payment by id and return 200", func() {
			service.payment.Status = payment.StatusCaptured
			req := requestWithUser("POST", "/api/v1/payments/pay-1/process", nil, "user-1")
			req = withRouteParam(req, "id", "pay-1")

			handler.ProcessPayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(service.processedWith).To(gomega.Equal("pay-1"))
		})

		ginkgo.It("should map a declined attempt to 402", func() {
			service.processErr = internal.NewDeclinedError("card_declined")
			req := requestWithUser("POST", "/api/v1/payments/pay-1/process", nil, "user-1")
			req = withRouteParam(req, "id", "pay-1")

			handler.ProcessPayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusPaymentRequired))
		})

		ginkgo.It("should map an open circuit to 503 with a Retry-After header", func() {
			service.processErr = internal.NewCircuitOpenError(30)
			req := requestWithUser("POST", "/api/v1/payments/pay-1/process", nil, "user-1")
			req = withRouteParam(req, "id", "pay-1")

			handler.ProcessPayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusServiceUnavailable))
			gomega.Expect(recorder.Header().Get("Retry-After")).To(gomega.Equal("30"))
		})

		ginkgo.It("should reject a request without a payment id", func() {
			req := requestWithUser("POST", "/api/v1/payments//process", nil, "user-1")

			handler.ProcessPayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Context("GetPayment", func() {
		ginkgo.It("should return the payment view", func() {
			req := httptest.NewRequest("GET", "/api/v1/payments/pay-1", nil)
			req = withRouteParam(req, "id", "pay-1")

			handler.GetPayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			var view paymentPkg.PaymentView
			gomega.Expect(json.Unmarshal(recorder.Body.Bytes(), &view)).To(gomega.Succeed())
			gomega.Expect(view.ID).To(gomega.Equal("pay-1"))
		})

		ginkgo.It("should return 404 for an unknown payment", func() {
			service.getErr = internal.ErrPaymentNotFound
			req := httptest.NewRequest("GET", "/api/v1/payments/missing", nil)
			req = withRouteParam(req, "id", "missing")

			handler.GetPayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusNotFound))
		})
	})

	ginkgo.Context("GetPaymentStatus", func() {
		ginkgo.It("should return the full lifecycle view", func() {
			service.statusView = &paymentPkg.PaymentStatusView{
				Payment:      paymentPkg.ToView(service.payment),
				Transactions: []paymentPkg.TransactionView{{ID: "txn-1", TxType: payment.TxTypePayment}},
				AuditTrail:   []paymentPkg.AuditEntryView{{NewStatus: payment.StatusPending, Version: 1}},
			}
			req := httptest.NewRequest("GET", "/api/v1/payments/pay-1/status", nil)
			req = withRouteParam(req, "id", "pay-1")

			handler.GetPaymentStatus(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			var view paymentPkg.PaymentStatusView
			gomega.Expect(json.Unmarshal(recorder.Body.Bytes(), &view)).To(gomega.Succeed())
			gomega.Expect(view.Transactions).To(gomega.HaveLen(1))
			gomega.Expect(view.AuditTrail).To(gomega.HaveLen(1))
		})
	})

	ginkgo.Context("RefundPayment", func() {
		ginkgo.It("should refund and return the updated payment", func() {
			service.payment.Status = payment.StatusRefunded
			req := requestWithUser("POST", "/api/v1/payments/pay-1/refund", nil, "user-1")
			req = withRouteParam(req, "id", "pay-1")

			handler.RefundPayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			var view paymentPkg.PaymentView
			gomega.Expect(json.Unmarshal(recorder.Body.Bytes(), &view)).To(gomega.Succeed())
			gomega.Expect(view.Status).To(gomega.Equal(payment.StatusRefunded))
		})

		ginkgo.It("should reject a refund of a payment that never captured", func() {
			service.refundErr = internal.NewInvalidStateError("only captured payments can be refunded")
			req := requestWithUser("POST", "/api/v1/payments/pay-1/refund", nil, "user-1")
			req = withRouteParam(req, "id", "pay-1")

			handler.RefundPayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusConflict))
		})

		ginkgo.It("should return 401 when no identity is present", func() {
			req := requestWithUser("POST", "/api/v1/payments/pay-1/refund", nil, "")
			req = withRouteParam(req, "id", "pay-1")

			handler.RefundPayment(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})
})
