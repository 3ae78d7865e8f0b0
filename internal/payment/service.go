package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	internalerrors "github.com/rentora/payments/internal"
	"github.com/rentora/payments/internal/breaker"
	idempotencymodel "github.com/rentora/payments/internal/core/datamodel/idempotency"
	"github.com/rentora/payments/internal/core/datamodel/payment"
	paymentgatewaytypes "github.com/rentora/payments/internal/core/datamodel/paymentgateway"
	"github.com/rentora/payments/internal/core/events"
)

// Repository sentinels, translated by the service into caller-visible
// AppErrors.
var (
	ErrNotFound                = errors.New("payment not found")
	ErrVersionConflict         = errors.New("payment version conflict")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

const actorSystem = "system"

// RepositoryAPI is the persistence contract of the state machine. All
// status changes go through CASTransition, which is version-conditioned:
// the payment row's version is the unit of mutual exclusion.
type RepositoryAPI interface {
	Create(p *payment.Payment, audit *payment.AuditEntry) error
	GetByID(id string) (*payment.Payment, error)
	GetByUserAndKey(userID, idempotencyKey string) (*payment.Payment, error)
	GetByGatewayReference(reference string) (*payment.Payment, error)
	CASTransition(p *payment.Payment, audit *payment.AuditEntry, txn *payment.Transaction) error
	ListStuckAuthorizing(cutoff time.Time, limit int) ([]*payment.Payment, error)
	ListDueRetries(now time.Time, limit int) ([]*payment.Payment, error)
	LatestGatewayReference(paymentID string) (string, error)
	ListTransactions(paymentID string) ([]*payment.Transaction, error)
	ListAuditEntries(paymentID string) ([]*payment.AuditEntry, error)
}

// GatewayAPI wraps the external payment gateway.
type GatewayAPI interface {
	Charge(ctx context.Context, req *paymentgatewaytypes.ChargeRequest) (*paymentgatewaytypes.Result, error)
	Refund(ctx context.Context, gatewayReference string, amount int64, currency string) (*paymentgatewaytypes.Result, error)
	Retrieve(ctx context.Context, gatewayReference string) (*paymentgatewaytypes.Result, error)
}

// BreakerAPI gates gateway calls per operation class.
type BreakerAPI interface {
	Do(class string, fn func() (*paymentgatewaytypes.Result, error)) (*paymentgatewaytypes.Result, error)
	Cooldown() time.Duration
}

type IdempotencyAPI interface {
	Lookup(ctx context.Context, userID, key string) (*idempotencymodel.Record, error)
	Reserve(ctx context.Context, userID, key, paymentID string) (*idempotencymodel.Record, error)
	Complete(ctx context.Context, userID, key string, snapshot json.RawMessage) error
}

type ServiceConfig struct {
	SupportedCurrencies []string
	MaxRetries          int
	BaseDelay           time.Duration
	MaxDelay            time.Duration
}

// Service drives payments through their lifecycle: it validates input,
// consults the idempotency store, performs version-checked transitions,
// invokes the gateway through the circuit breaker and records every
// attempt as a transaction plus audit entry. The sweeper owns all
// time-delayed transitions; the synchronous path only performs the
// immediate attempt and stamps next_retry_at for the sweeper to pick up.
type Service struct {
	repo        RepositoryAPI
	gateway     GatewayAPI
	breakers    BreakerAPI
	idempotency IdempotencyAPI
	bus         *events.EventBus
	cfg         ServiceConfig
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(repo RepositoryAPI, gateway GatewayAPI, breakers BreakerAPI, idempotency IdempotencyAPI, bus *events.EventBus, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 5 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Minute
	}
	if len(cfg.SupportedCurrencies) == 0 {
		cfg.SupportedCurrencies = []string{"USD", "EUR", "GBP", "CAD"}
	}
	return &Service{
		repo:        repo,
		gateway:     gateway,
		breakers:    breakers,
		idempotency: idempotency,
		bus:         bus,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// CreatePayment validates the request and inserts a payment in pending,
// version 1, with its creation audit entry. Repeating the call with the
// same (user, idempotency key) returns the earlier payment unchanged.
func (s *Service) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*payment.Payment, error) {
	if err := req.Validate(s.cfg.SupportedCurrencies); err != nil {
		return nil, err
	}

	record, err := s.idempotency.Lookup(ctx, req.UserID, req.IdempotencyKey)
	if err != nil {
		return nil, internalerrors.NewInternalError("idempotency lookup failed", err)
	}
	if record != nil {
		existing, err := s.repo.GetByID(record.PaymentID)
		if err != nil {
			return nil, internalerrors.NewInternalError("failed to load payment for replayed key", err)
		}
		s.logger.Info("replayed idempotency key, returning existing payment",
			"user_id", req.UserID,
			"payment_id", existing.ID)
		return existing, nil
	}

	p := &payment.Payment{
		ID:               uuid.NewString(),
		UserID:           req.UserID,
		ApplicationID:    req.ApplicationID,
		PaymentMethodRef: req.PaymentMethodRef,
		Amount:           req.Amount,
		Currency:         req.Currency,
		PaymentType:      req.PaymentType,
		Status:           payment.StatusPending,
		IdempotencyKey:   req.IdempotencyKey,
		Version:          1,
	}
	actor := req.UserID
	audit := &payment.AuditEntry{
		PreviousStatus: "",
		NewStatus:      payment.StatusPending,
		ActorID:        &actor,
		Reason:         "payment created",
	}

	err = s.repo.Create(p, audit)
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		// raced a concurrent create with the same key; the unique index
		// picked the winner
		existing, err := s.repo.GetByUserAndKey(req.UserID, req.IdempotencyKey)
		if err != nil {
			return nil, internalerrors.NewInternalError("failed to load payment after key race", err)
		}
		return existing, nil
	}
	if err != nil {
		return nil, internalerrors.NewInternalError("failed to create payment", err)
	}

	if _, err := s.idempotency.Reserve(ctx, req.UserID, req.IdempotencyKey, p.ID); err != nil {
		// the payments unique index already guarantees exclusivity, the
		// record is only the fast path for replays
		s.logger.Warn("idempotency reservation failed", "error", err, "payment_id", p.ID)
	} else {
		snapshot, _ := json.Marshal(ToView(p))
		if err := s.idempotency.Complete(ctx, req.UserID, req.IdempotencyKey, snapshot); err != nil {
			s.logger.Warn("idempotency completion failed", "error", err, "payment_id", p.ID)
		}
	}

	s.logger.Info("payment created",
		"payment_id", p.ID,
		"user_id", p.UserID,
		"amount", p.Amount,
		"currency", p.Currency,
		"payment_type", p.PaymentType)

	return p, nil
}

// ProcessPayment drives a single charge attempt. Exactly one caller wins
// the version-conditioned transition into authorizing; the loser gets
// ErrConcurrentModification and never reaches the gateway.
func (s *Service) ProcessPayment(ctx context.Context, paymentID, paymentMethodRef, actorID string) (*payment.Payment, error) {
	p, err := s.loadPayment(paymentID)
	if err != nil {
		return nil, err
	}

	if !p.Processable() {
		return nil, internalerrors.NewInvalidStateError(
			fmt.Sprintf("payment in status %q cannot be processed", p.Status))
	}
	if p.Status == payment.StatusFailed && !p.CanRetry(s.cfg.MaxRetries) {
		return nil, internalerrors.NewMaxRetriesExceededError(p.RetryCount)
	}

	if paymentMethodRef != "" {
		p.PaymentMethodRef = paymentMethodRef
	}
	if p.PaymentMethodRef == "" {
		return nil, internalerrors.NewValidationError("payment_method_ref is required", internalerrors.ErrCodeValidationFailed)
	}

	prev := p.Status
	p.Status = payment.StatusAuthorizing
	p.NextRetryAt = nil
	if err := s.repo.CASTransition(p, s.auditEntry(prev, payment.StatusAuthorizing, actorID, "charge attempt started"), nil); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, internalerrors.ErrConcurrentModification
		}
		return nil, internalerrors.NewInternalError("failed to start charge attempt", err)
	}

	res, err := s.breakers.Do(breaker.OpCharge, func() (*paymentgatewaytypes.Result, error) {
		return s.gateway.Charge(ctx, &paymentgatewaytypes.ChargeRequest{
			PaymentMethodRef: p.PaymentMethodRef,
			Amount:           p.Amount,
			Currency:         p.Currency,
			IdempotencyKey:   p.IdempotencyKey,
		})
	})

	circuitOpen := errors.Is(err, breaker.ErrCircuitOpen)
	switch {
	case circuitOpen:
		res = paymentgatewaytypes.TransientError("circuit_open", nil)
	case err != nil:
		s.logger.Error("gateway charge call errored", "error", err, "payment_id", p.ID)
		res = paymentgatewaytypes.TransientError("gateway_call_error", nil)
	}

	updated, outcomeErr := s.applyOutcome(ctx, p, res, actorID)
	if circuitOpen {
		// the failed attempt is recorded like any other transient failure,
		// but the caller learns the dependency is shorted out
		return updated, internalerrors.NewCircuitOpenError(int(s.breakers.Cooldown().Seconds()))
	}
	return updated, outcomeErr
}

func (s *Service) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	return s.loadPayment(id)
}

func (s *Service) GetPaymentStatus(ctx context.Context, id string) (*PaymentStatusView, error) {
	p, err := s.loadPayment(id)
	if err != nil {
		return nil, err
	}
	txns, err := s.repo.ListTransactions(p.ID)
	if err != nil {
		return nil, internalerrors.NewInternalError("failed to load transactions", err)
	}
	entries, err := s.repo.ListAuditEntries(p.ID)
	if err != nil {
		return nil, internalerrors.NewInternalError("failed to load audit trail", err)
	}
	return toStatusView(p, txns, entries), nil
}

// RefundPayment reverses a captured payment in full through the refund
// breaker class. A failed refund is recorded as a failure transaction but
// leaves the payment captured.
func (s *Service) RefundPayment(ctx context.Context, paymentID, actorID string) (*payment.Payment, error) {
	p, err := s.loadPayment(paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != payment.StatusCaptured {
		return nil, internalerrors.NewInvalidStateError(
			fmt.Sprintf("payment in status %q cannot be refunded", p.Status))
	}

	ref, err := s.repo.LatestGatewayReference(p.ID)
	if err != nil {
		return nil, internalerrors.NewInternalError("failed to resolve gateway reference", err)
	}
	if ref == "" {
		return nil, internalerrors.NewInvalidStateError("payment has no gateway reference to refund against")
	}

	res, err := s.breakers.Do(breaker.OpRefund, func() (*paymentgatewaytypes.Result, error) {
		return s.gateway.Refund(ctx, ref, p.Amount, p.Currency)
	})
	if errors.Is(err, breaker.ErrCircuitOpen) {
		return nil, internalerrors.NewCircuitOpenError(int(s.breakers.Cooldown().Seconds()))
	}
	if err != nil {
		return nil, internalerrors.NewInternalError("gateway refund call errored", err)
	}

	txn := &payment.Transaction{
		ID:              uuid.NewString(),
		TxType:          payment.TxTypeRefund,
		Amount:          p.Amount,
		Currency:        p.Currency,
		GatewayResponse: res.Raw,
	}

	if !res.Failed() {
		txn.Outcome = payment.TxOutcomeSuccess
		if res.Reference != "" {
			reference := res.Reference
			txn.GatewayReference = &reference
		}
		p.Status = payment.StatusRefunded
		if err := s.repo.CASTransition(p, s.auditEntry(payment.StatusCaptured, payment.StatusRefunded, actorID, "gateway refund succeeded"), txn); err != nil {
			return nil, s.translateCASError(err, "failed to record refund")
		}
		s.bus.Publish(ctx, events.NewPaymentRefundedEvent(p.ID, p.UserID, p.Amount, p.Currency, res.Reference))
		s.logger.Info("payment refunded", "payment_id", p.ID, "gateway_reference", res.Reference)
		return p, nil
	}

	reason := res.ReasonCode
	txn.Outcome = payment.TxOutcomeFailure
	txn.ReasonCode = &reason
	// refund failed: the payment stays captured and the status does not
	// change, so only the failure transaction is recorded. The version
	// still bumps to serialize concurrent refund attempts.
	if err := s.repo.CASTransition(p, nil, txn); err != nil {
		return nil, s.translateCASError(err, "failed to record refund failure")
	}
	return p, internalerrors.NewGatewayError(fmt.Sprintf("refund failed: %s", reason))
}

// Callback event types pushed by the gateway.
const (
	CallbackChargeSucceeded = "charge.succeeded"
	CallbackChargeDeclined  = "charge.declined"
	CallbackChargeFailed    = "charge.failed"
	CallbackChargeError     = "charge.error"
	CallbackChargeback      = "charge.chargeback"
)

// GatewayCallback is an asynchronous status event from the gateway, e.g. a
// delayed ACH settlement or a chargeback notification.
type GatewayCallback struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	PaymentID        string          `json:"payment_id"`
	GatewayReference string          `json:"gateway_reference"`
	ReasonCode       string          `json:"reason_code"`
	Raw              json.RawMessage `json:"-"`
}

// HandleGatewayCallback applies a pushed gateway event through the same
// version-checked outcome path as ProcessPayment. Replayed events for a
// payment that already left authorizing are acknowledged without effect;
// only a version conflict is surfaced so the gateway retries delivery.
func (s *Service) HandleGatewayCallback(ctx context.Context, ev *GatewayCallback) error {
	var p *payment.Payment
	var err error
	switch {
	case ev.PaymentID != "":
		p, err = s.repo.GetByID(ev.PaymentID)
	case ev.GatewayReference != "":
		p, err = s.repo.GetByGatewayReference(ev.GatewayReference)
	default:
		return internalerrors.NewValidationError("callback carries neither payment_id nor gateway_reference", internalerrors.ErrCodeValidationFailed)
	}
	if errors.Is(err, ErrNotFound) {
		return internalerrors.ErrPaymentNotFound
	}
	if err != nil {
		return internalerrors.NewInternalError("failed to load payment for callback", err)
	}

	if ev.EventType == CallbackChargeback {
		return s.applyChargeback(ctx, p, ev)
	}

	if p.Status != payment.StatusAuthorizing {
		s.logger.Info("ignoring callback for settled payment",
			"payment_id", p.ID,
			"status", p.Status,
			"event_type", ev.EventType)
		return nil
	}

	_, err = s.applyOutcome(ctx, p, callbackResult(ev), "")
	if err == nil {
		return nil
	}
	if appErr, ok := internalerrors.IsAppError(err); ok {
		if appErr.Code == internalerrors.ErrCodeConcurrentModification {
			return err
		}
		// declined / transient outcomes were recorded, the callback is done
		return nil
	}
	return err
}

func (s *Service) applyChargeback(ctx context.Context, p *payment.Payment, ev *GatewayCallback) error {
	if p.Status != payment.StatusCaptured {
		s.logger.Info("ignoring chargeback for payment not in captured",
			"payment_id", p.ID,
			"status", p.Status)
		return nil
	}

	reason := ev.ReasonCode
	if reason == "" {
		reason = "chargeback"
	}
	txn := &payment.Transaction{
		ID:              uuid.NewString(),
		TxType:          payment.TxTypeChargeback,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Outcome:         payment.TxOutcomeSuccess,
		ReasonCode:      &reason,
		GatewayResponse: ev.Raw,
	}
	if ev.GatewayReference != "" {
		reference := ev.GatewayReference
		txn.GatewayReference = &reference
	}

	p.Status = payment.StatusDisputed
	if err := s.repo.CASTransition(p, s.auditEntry(payment.StatusCaptured, payment.StatusDisputed, "", fmt.Sprintf("chargeback received: %s", reason)), txn); err != nil {
		return s.translateCASError(err, "failed to record chargeback")
	}
	s.bus.Publish(ctx, events.NewPaymentDisputedEvent(p.ID, p.UserID, p.Amount, reason))
	s.logger.Warn("payment disputed", "payment_id", p.ID, "reason", reason)
	return nil
}

// applyOutcome is the single outcome-handling step shared by the
// synchronous path, the webhook and the sweeper: it records the attempt as
// a transaction, moves the payment out of authorizing with a
// version-conditioned update and publishes the lifecycle event.
func (s *Service) applyOutcome(ctx context.Context, p *payment.Payment, res *paymentgatewaytypes.Result, actorID string) (*payment.Payment, error) {
	now := s.now()
	txn := &payment.Transaction{
		ID:              uuid.NewString(),
		TxType:          payment.TxTypePayment,
		Amount:          p.Amount,
		Currency:        p.Currency,
		GatewayResponse: res.Raw,
	}

	switch res.Outcome {
	case paymentgatewaytypes.OutcomeSucceeded:
		txn.Outcome = payment.TxOutcomeSuccess
		if res.Reference != "" {
			reference := res.Reference
			txn.GatewayReference = &reference
		}
		p.Status = payment.StatusCaptured
		p.PaidAt = &now
		p.LastFailureReason = nil
		p.NextRetryAt = nil
		if err := s.repo.CASTransition(p, s.auditEntry(payment.StatusAuthorizing, payment.StatusCaptured, actorID, "gateway charge succeeded"), txn); err != nil {
			return nil, s.translateCASError(err, "failed to record capture")
		}
		s.bus.Publish(ctx, events.NewPaymentCapturedEvent(p.ID, p.UserID, p.Amount, p.Currency, res.Reference))
		s.logger.Info("payment captured",
			"payment_id", p.ID,
			"gateway_reference", res.Reference,
			"amount", p.Amount)
		return p, nil

	case paymentgatewaytypes.OutcomeDeclined, paymentgatewaytypes.OutcomePermanentError:
		reason := res.ReasonCode
		txn.Outcome = payment.TxOutcomeFailure
		txn.ReasonCode = &reason
		p.Status = payment.StatusFailed
		p.RetryCount++
		p.NextRetryAt = nil
		p.LastFailureReason = &reason
		if err := s.repo.CASTransition(p, s.auditEntry(payment.StatusAuthorizing, payment.StatusFailed, actorID, fmt.Sprintf("gateway rejected charge: %s", reason)), txn); err != nil {
			return nil, s.translateCASError(err, "failed to record rejection")
		}
		s.bus.Publish(ctx, events.NewPaymentFailedEvent(p.ID, p.UserID, p.Amount, p.Currency, reason, p.RetryCount, false))
		s.logger.Warn("payment rejected by gateway",
			"payment_id", p.ID,
			"reason", reason,
			"outcome", res.Outcome)
		if res.Outcome == paymentgatewaytypes.OutcomeDeclined {
			return p, internalerrors.NewDeclinedError(reason)
		}
		return p, internalerrors.NewGatewayError(fmt.Sprintf("payment rejected: %s", reason))

	default:
		reason := res.ReasonCode
		txn.Outcome = payment.TxOutcomeFailure
		txn.ReasonCode = &reason
		p.Status = payment.StatusFailed
		p.RetryCount++
		p.LastFailureReason = &reason

		willRetry := p.RetryCount < s.cfg.MaxRetries
		if willRetry {
			due := now.Add(s.backoffDelay(p.RetryCount))
			p.NextRetryAt = &due
		} else {
			p.NextRetryAt = nil
		}

		if err := s.repo.CASTransition(p, s.auditEntry(payment.StatusAuthorizing, payment.StatusFailed, actorID, fmt.Sprintf("transient gateway failure: %s", reason)), txn); err != nil {
			return nil, s.translateCASError(err, "failed to record transient failure")
		}
		s.bus.Publish(ctx, events.NewPaymentFailedEvent(p.ID, p.UserID, p.Amount, p.Currency, reason, p.RetryCount, willRetry))
		s.logger.Warn("transient gateway failure",
			"payment_id", p.ID,
			"reason", reason,
			"retry_count", p.RetryCount,
			"will_retry", willRetry)

		if !willRetry {
			return p, internalerrors.NewMaxRetriesExceededError(p.RetryCount)
		}
		return p, internalerrors.NewGatewayError(fmt.Sprintf("transient gateway failure: %s, retry scheduled", reason))
	}
}

// ResolveStuck re-queries the gateway for a payment stuck in authorizing
// and re-enters the outcome-handling step, used by the sweeper. If the
// gateway cannot be reached the row is left for the next pass.
func (s *Service) ResolveStuck(ctx context.Context, paymentID string) error {
	p, err := s.loadPayment(paymentID)
	if err != nil {
		return err
	}
	if p.Status != payment.StatusAuthorizing {
		return nil
	}

	ref, err := s.repo.LatestGatewayReference(p.ID)
	if err != nil {
		return internalerrors.NewInternalError("failed to resolve gateway reference", err)
	}

	var res *paymentgatewaytypes.Result
	if ref != "" {
		res, err = s.breakers.Do(breaker.OpRetrieve, func() (*paymentgatewaytypes.Result, error) {
			return s.gateway.Retrieve(ctx, ref)
		})
		if errors.Is(err, breaker.ErrCircuitOpen) {
			return internalerrors.NewCircuitOpenError(int(s.breakers.Cooldown().Seconds()))
		}
		if err != nil {
			return internalerrors.NewInternalError("gateway retrieve call errored", err)
		}
		if res.Retriable() {
			// the charge's true state is still unknown, leave the row stuck
			return nil
		}
	} else {
		// the attempt never recorded a reference: treat as transient, the
		// gateway's own idempotency-key de-duplication makes a retry safe
		res = paymentgatewaytypes.TransientError("authorizing_timeout", nil)
	}

	_, err = s.applyOutcome(ctx, p, res, "")
	if err == nil {
		return nil
	}
	if appErr, ok := internalerrors.IsAppError(err); ok && appErr.Code != internalerrors.ErrCodeConcurrentModification {
		// the outcome was recorded, nothing left to resolve
		return nil
	}
	return err
}

func (s *Service) loadPayment(id string) (*payment.Payment, error) {
	p, err := s.repo.GetByID(id)
	if errors.Is(err, ErrNotFound) {
		return nil, internalerrors.ErrPaymentNotFound
	}
	if err != nil {
		return nil, internalerrors.NewInternalError("failed to load payment", err)
	}
	return p, nil
}

func (s *Service) auditEntry(prev, next, actorID, reason string) *payment.AuditEntry {
	actor := actorID
	if actor == "" {
		actor = actorSystem
	}
	return &payment.AuditEntry{
		PreviousStatus: prev,
		NewStatus:      next,
		ActorID:        &actor,
		Reason:         reason,
	}
}

func (s *Service) translateCASError(err error, message string) error {
	if errors.Is(err, ErrVersionConflict) {
		return internalerrors.ErrConcurrentModification
	}
	return internalerrors.NewInternalError(message, err)
}

// backoffDelay is the delay before retry attempt number attempt, doubling
// from the base and capped at the configured maximum.
func (s *Service) backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := s.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.cfg.MaxDelay {
			return s.cfg.MaxDelay
		}
	}
	if delay > s.cfg.MaxDelay {
		delay = s.cfg.MaxDelay
	}
	return delay
}

func callbackResult(ev *GatewayCallback) *paymentgatewaytypes.Result {
	switch ev.EventType {
	case CallbackChargeSucceeded:
		return paymentgatewaytypes.Succeeded(ev.GatewayReference, ev.Raw)
	case CallbackChargeDeclined:
		return paymentgatewaytypes.Declined(reasonOr(ev.ReasonCode, "card_declined"), ev.Raw)
	case CallbackChargeFailed:
		return paymentgatewaytypes.PermanentError(reasonOr(ev.ReasonCode, "gateway_rejected"), ev.Raw)
	default:
		return paymentgatewaytypes.TransientError(reasonOr(ev.ReasonCode, "gateway_error"), ev.Raw)
	}
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}
