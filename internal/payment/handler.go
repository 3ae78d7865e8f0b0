package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	internalerrors "github.com/rentora/payments/internal"
	"github.com/rentora/payments/internal/core/datamodel/payment"
	"github.com/rentora/payments/internal/transport"
)

type ServiceAPI interface {
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*payment.Payment, error)
	ProcessPayment(ctx context.Context, paymentID, paymentMethodRef, actorID string) (*payment.Payment, error)
	GetPayment(ctx context.Context, id string) (*payment.Payment, error)
	GetPaymentStatus(ctx context.Context, id string) (*PaymentStatusView, error)
	RefundPayment(ctx context.Context, paymentID, actorID string) (*payment.Payment, error)
}

type Handler struct {
	transport.BaseHandler
	PaymentService ServiceAPI
	Logger         *slog.Logger
}

func NewHandler(paymentService ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler:    *transport.NewBaseHandler(logger),
		PaymentService: paymentService,
		Logger:         logger,
	}
}

// CreatePayment handles POST /api/v1/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	userID := h.requireUserID(w, r)
	if userID == "" {
		return
	}

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("CreatePayment: failed to parse request body", "error", err)
		h.HandleError(w, internalerrors.NewValidationError("invalid request body", internalerrors.ErrCodeValidationFailed))
		return
	}
	req.UserID = userID
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	p, err := h.PaymentService.CreatePayment(r.Context(), &req)
	if err != nil {
		h.Logger.Error("CreatePayment: service error", "error", err, "user_id", userID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreatePayment: payment created",
		"payment_id", p.ID,
		"user_id", userID,
		"amount", p.Amount,
		"currency", p.Currency)

	h.WriteJSON(w, http.StatusCreated, ToView(p))
}

// ProcessPayment handles POST /api/v1/payments/{id}/process
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	userID := h.requireUserID(w, r)
	if userID == "" {
		return
	}

	paymentID := chi.URLParam(r, "id")
	if paymentID == "" {
		h.HandleError(w, internalerrors.NewValidationError("payment id is required", internalerrors.ErrCodeValidationFailed))
		return
	}

	var req ProcessPaymentRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.Logger.Error("ProcessPayment: failed to parse request body", "error", err)
			h.HandleError(w, internalerrors.NewValidationError("invalid request body", internalerrors.ErrCodeValidationFailed))
			return
		}
	}

	p, err := h.PaymentService.ProcessPayment(r.Context(), paymentID, req.PaymentMethodRef, userID)
	if err != nil {
		h.Logger.Warn("ProcessPayment: attempt did not capture",
			"error", err,
			"payment_id", paymentID,
			"user_id", userID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("ProcessPayment: payment captured",
		"payment_id", p.ID,
		"user_id", userID)

	h.WriteJSON(w, http.StatusOK, ToView(p))
}

// GetPayment handles GET /api/v1/payments/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "id")
	if paymentID == "" {
		h.HandleError(w, internalerrors.NewValidationError("payment id is required", internalerrors.ErrCodeValidationFailed))
		return
	}

	p, err := h.PaymentService.GetPayment(r.Context(), paymentID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToView(p))
}

// GetPaymentStatus handles GET /api/v1/payments/{id}/status
func (h *Handler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "id")
	if paymentID == "" {
		h.HandleError(w, internalerrors.NewValidationError("payment id is required", internalerrors.ErrCodeValidationFailed))
		return
	}

	status, err := h.PaymentService.GetPaymentStatus(r.Context(), paymentID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, status)
}

// RefundPayment handles POST /api/v1/payments/{id}/refund
func (h *Handler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	userID := h.requireUserID(w, r)
	if userID == "" {
		return
	}

	paymentID := chi.URLParam(r, "id")
	if paymentID == "" {
		h.HandleError(w, internalerrors.NewValidationError("payment id is required", internalerrors.ErrCodeValidationFailed))
		return
	}

	p, err := h.PaymentService.RefundPayment(r.Context(), paymentID, userID)
	if err != nil {
		h.Logger.Warn("RefundPayment: refund failed",
			"error", err,
			"payment_id", paymentID,
			"user_id", userID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("RefundPayment: payment refunded",
		"payment_id", p.ID,
		"user_id", userID)

	h.WriteJSON(w, http.StatusOK, ToView(p))
}

func (h *Handler) requireUserID(w http.ResponseWriter, r *http.Request) string {
	userID := internalerrors.UserIDFromContext(r.Context())
	if userID == "" {
		h.Logger.Error("user not found in context")
		h.HandleError(w, internalerrors.NewUnauthorizedError("authentication required", internalerrors.ErrCodeUnauthorized))
		return ""
	}
	return userID
}
