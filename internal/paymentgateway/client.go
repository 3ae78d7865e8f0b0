package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	paymentgatewaytypes "github.com/rentora/payments/internal/core/datamodel/paymentgateway"
)

// redactedFields are stripped from stored gateway responses. The client
// never holds raw card data, but the gateway may echo method references and
// account fragments we do not want in our tables or logs.
var redactedFields = []string{
	"payment_method_ref",
	"payment_method",
	"card",
	"account_number",
	"cvv",
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is a thin adapter over the external payment gateway's HTTP API.
// Every call returns a normalized Result; transport failures and 5xx
// responses come back as transient outcomes rather than errors so the
// caller's state machine records them like any other attempt.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Charge submits a charge. The idempotency key rides along as a header so
// the gateway de-duplicates on its side as a second line of defense. The
// call runs on a context detached from the caller: once a charge is
// submitted it must run to completion, cancelling the local request must
// never diverge our records from the gateway's.
func (c *Client) Charge(ctx context.Context, req *paymentgatewaytypes.ChargeRequest) (*paymentgatewaytypes.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	payload := map[string]interface{}{
		"payment_method_ref": req.PaymentMethodRef,
		"amount":             req.Amount,
		"currency":           req.Currency,
	}

	c.logger.Info("submitting charge",
		"amount", req.Amount,
		"currency", req.Currency,
		"idempotency_key", req.IdempotencyKey)

	return c.do(ctx, http.MethodPost, "/v1/charges", payload, req.IdempotencyKey)
}

// Refund reverses a captured charge by gateway reference.
func (c *Client) Refund(ctx context.Context, gatewayReference string, amount int64, currency string) (*paymentgatewaytypes.Result, error) {
	if gatewayReference == "" {
		return nil, fmt.Errorf("gateway reference is required")
	}

	payload := map[string]interface{}{
		"charge_reference": gatewayReference,
		"amount":           amount,
		"currency":         currency,
	}

	c.logger.Info("submitting refund",
		"gateway_reference", gatewayReference,
		"amount", amount)

	return c.do(ctx, http.MethodPost, "/v1/refunds", payload, "refund-"+gatewayReference)
}

// Retrieve queries the current state of a previously submitted charge,
// used by the reconciliation sweeper for payments stuck mid-flight.
func (c *Client) Retrieve(ctx context.Context, gatewayReference string) (*paymentgatewaytypes.Result, error) {
	if gatewayReference == "" {
		return nil, fmt.Errorf("gateway reference is required")
	}

	return c.do(ctx, http.MethodGet, "/v1/charges/"+gatewayReference, nil, "")
}

func (c *Client) do(ctx context.Context, method, path string, payload map[string]interface{}, idempotencyKey string) (*paymentgatewaytypes.Result, error) {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	// fire-and-confirm: detach from the caller's cancellation, keep only
	// the hard per-call timeout
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Warn("gateway call failed", "method", method, "path", path, "error", err)
		return paymentgatewaytypes.TransientError("gateway_unreachable", nil), nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return paymentgatewaytypes.TransientError("gateway_read_error", nil), nil
	}

	return c.classify(resp.StatusCode, respBody), nil
}

// gatewayResponse is the subset of the gateway's response body we care
// about; the rest is retained (redacted) for the transaction record.
type gatewayResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ReasonCode string `json:"reason_code"`
}

func (c *Client) classify(statusCode int, body []byte) *paymentgatewaytypes.Result {
	raw := Redact(body)

	var parsed gatewayResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		parsed = gatewayResponse{}
	}

	switch {
	case statusCode == http.StatusOK || statusCode == http.StatusCreated:
		if parsed.Status == "declined" {
			return paymentgatewaytypes.Declined(reasonOrDefault(parsed.ReasonCode, "card_declined"), raw)
		}
		return paymentgatewaytypes.Succeeded(parsed.ID, raw)

	case statusCode == http.StatusPaymentRequired:
		return paymentgatewaytypes.Declined(reasonOrDefault(parsed.ReasonCode, "card_declined"), raw)

	case statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError:
		return paymentgatewaytypes.TransientError(reasonOrDefault(parsed.ReasonCode, fmt.Sprintf("gateway_%d", statusCode)), raw)

	default:
		// 4xx other than decline: validation or fraud rejection, never retried
		return paymentgatewaytypes.PermanentError(reasonOrDefault(parsed.ReasonCode, fmt.Sprintf("gateway_rejected_%d", statusCode)), raw)
	}
}

func reasonOrDefault(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}

// Redact removes sensitive fields from a gateway response body before it is
// persisted or logged. Non-JSON bodies are dropped entirely.
func Redact(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}

	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil
	}

	for _, field := range redactedFields {
		if _, ok := data[field]; ok {
			data[field] = "[REDACTED]"
		}
	}

	redacted, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return redacted
}
