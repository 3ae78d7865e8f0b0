package breaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	paymentgatewaytypes "github.com/rentora/payments/internal/core/datamodel/paymentgateway"
)

// Operation classes. Each class gets its own breaker so a flaky charge
// endpoint cannot take refunds offline with it.
const (
	OpCharge   = "charge"
	OpRefund   = "refund"
	OpRetrieve = "retrieve"
)

// ErrCircuitOpen is returned without contacting the gateway while the
// breaker for the operation class is open (or half-open and already probing).
var ErrCircuitOpen = errors.New("circuit open")

// errTransientOutcome marks a transient gateway outcome as a failure for
// the breaker's counters. It never escapes Do.
var errTransientOutcome = errors.New("transient gateway outcome")

type Config struct {
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	Cooldown     time.Duration
}

// Registry holds one circuit breaker per operation class, created lazily
// from a shared config. Injected into the state machine rather than kept as
// package-level state.
type Registry struct {
	cfg      Config
	logger   *slog.Logger
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 10
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Registry{
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (r *Registry) breaker(class string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[class]; ok {
		return cb
	}

	cfg := r.cfg
	settings := gobreaker.Settings{
		Name: class,
		// one trial call while half-open
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change",
				"operation", name,
				"from", from.String(),
				"to", to.String())
		},
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	r.breakers[class] = cb
	return cb
}

// Do runs fn through the breaker for the operation class. Transport errors
// and transient gateway outcomes count as breaker failures; declines and
// permanent rejections are financial answers, not dependency failures, and
// leave the breaker closed.
func (r *Registry) Do(class string, fn func() (*paymentgatewaytypes.Result, error)) (*paymentgatewaytypes.Result, error) {
	cb := r.breaker(class)

	out, err := cb.Execute(func() (interface{}, error) {
		res, err := fn()
		if err != nil {
			return nil, err
		}
		if res.Outcome == paymentgatewaytypes.OutcomeTransientError {
			return res, errTransientOutcome
		}
		return res, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, ErrCircuitOpen
	case errors.Is(err, errTransientOutcome):
		// the breaker counted the failure, the caller still gets the outcome
		return out.(*paymentgatewaytypes.Result), nil
	case err != nil:
		return nil, err
	}

	return out.(*paymentgatewaytypes.Result), nil
}

// State reports the breaker state for an operation class ("closed",
// "half-open", "open"), creating the breaker if it does not exist yet.
func (r *Registry) State(class string) string {
	return r.breaker(class).State().String()
}

// Counts exposes the rolling counters for health reporting.
func (r *Registry) Counts(class string) gobreaker.Counts {
	return r.breaker(class).Counts()
}

// Cooldown is the configured open-state duration, surfaced to callers as a
// retry-after hint.
func (r *Registry) Cooldown() time.Duration {
	return r.cfg.Cooldown
}
