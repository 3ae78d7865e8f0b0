package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	internalerrors "github.com/rentora/payments/internal"
	"github.com/rentora/payments/internal/paymentgateway"
	"github.com/rentora/payments/internal/transport"
)

const signatureHeader = "X-Gateway-Signature"

// maxCallbackBody caps the webhook payload size at 1 MiB.
const maxCallbackBody = 1 << 20

type CallbackServiceAPI interface {
	HandleGatewayCallback(ctx context.Context, ev *GatewayCallback) error
}

// WebhookHandler receives asynchronous status events pushed by the
// gateway. Payloads are authenticated with an HMAC-SHA256 signature over
// the raw body before any decoding happens.
type WebhookHandler struct {
	transport.BaseHandler
	service CallbackServiceAPI
	secret  []byte
	logger  *slog.Logger
}

func NewWebhookHandler(service CallbackServiceAPI, webhookSecret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: *transport.NewBaseHandler(logger),
		service:     service,
		secret:      []byte(webhookSecret),
		logger:      logger,
	}
}

type callbackResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleCallback handles POST /api/v1/payments/gateway/callback
func (h *WebhookHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		h.logger.Error("failed to read callback body", "error", err)
		h.HandleError(w, internalerrors.NewValidationError("unreadable request body", internalerrors.ErrCodeValidationFailed))
		return
	}

	if !h.verifySignature(body, r.Header.Get(signatureHeader)) {
		h.logger.Warn("callback signature verification failed",
			"remote_addr", r.RemoteAddr)
		h.HandleError(w, internalerrors.ErrWebhookSignature)
		return
	}

	var ev GatewayCallback
	if err := json.Unmarshal(body, &ev); err != nil {
		h.logger.Error("invalid callback payload", "error", err)
		h.HandleError(w, internalerrors.NewValidationError("invalid request body", internalerrors.ErrCodeValidationFailed))
		return
	}
	// the stored body must never carry method references or account data
	ev.Raw = paymentgateway.Redact(body)

	if ev.EventType == "" {
		h.HandleError(w, internalerrors.NewValidationError("event_type is required", internalerrors.ErrCodeValidationFailed))
		return
	}

	h.logger.Info("received gateway callback",
		"event_id", ev.EventID,
		"event_type", ev.EventType,
		"payment_id", ev.PaymentID,
		"gateway_reference", ev.GatewayReference)

	if err := h.service.HandleGatewayCallback(r.Context(), &ev); err != nil {
		if errors.Is(err, internalerrors.ErrConcurrentModification) {
			// tell the gateway to redeliver, the row moved under us
			h.HandleServiceError(w, err)
			return
		}
		if appErr, ok := internalerrors.IsAppError(err); ok && appErr.StatusCode < http.StatusInternalServerError {
			h.HandleServiceError(w, err)
			return
		}
		h.logger.Error("failed to process gateway callback",
			"error", err,
			"event_id", ev.EventID,
			"event_type", ev.EventType)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, callbackResponse{
		Status:  "success",
		Message: "callback processed",
	})
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}
