package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	internalerrors "github.com/rentora/payments/internal"
)

type SweeperConfig struct {
	Interval           time.Duration
	StalenessThreshold time.Duration
	BatchSize          int
}

type idempotencyPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper is the background reconciliation process. It owns every
// time-delayed transition: payments stuck in authorizing past the
// staleness threshold are resolved against the gateway, and failed
// payments whose scheduled retry is due are re-driven through the state
// machine. Crashes mid-call therefore never lose a payment permanently.
type Sweeper struct {
	service     *Service
	repo        RepositoryAPI
	idempotency idempotencyPurger
	cfg         SweeperConfig
	logger      *slog.Logger
	now         func() time.Time
}

func NewSweeper(service *Service, repo RepositoryAPI, idempotency idempotencyPurger, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = 2 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Sweeper{
		service:     service,
		repo:        repo,
		idempotency: idempotency,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Run loops until the context is cancelled. The in-flight pass always
// completes before Run returns.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("reconciliation sweeper started",
		"interval", s.cfg.Interval,
		"staleness_threshold", s.cfg.StalenessThreshold,
		"batch_size", s.cfg.BatchSize)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reconciliation sweeper stopping")
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single reconciliation pass.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	s.resolveStuckAuthorizing(ctx)
	s.driveDueRetries(ctx)
	s.purgeIdempotency(ctx)
}

func (s *Sweeper) resolveStuckAuthorizing(ctx context.Context) {
	cutoff := s.now().Add(-s.cfg.StalenessThreshold)
	stuck, err := s.repo.ListStuckAuthorizing(cutoff, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("failed to list stuck payments", "error", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	s.logger.Info("reconciling stuck payments", "count", len(stuck))
	for _, p := range stuck {
		if ctx.Err() != nil {
			return
		}
		if err := s.service.ResolveStuck(ctx, p.ID); err != nil {
			if errors.Is(err, internalerrors.ErrConcurrentModification) {
				// a live request won the row back, nothing to do
				continue
			}
			s.logger.Error("failed to resolve stuck payment",
				"error", err,
				"payment_id", p.ID)
		}
	}
}

func (s *Sweeper) driveDueRetries(ctx context.Context) {
	due, err := s.repo.ListDueRetries(s.now(), s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("failed to list due retries", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	s.logger.Info("driving scheduled retries", "count", len(due))
	for _, p := range due {
		if ctx.Err() != nil {
			return
		}
		_, err := s.service.ProcessPayment(ctx, p.ID, "", "")
		if err == nil {
			continue
		}
		if errors.Is(err, internalerrors.ErrConcurrentModification) {
			continue
		}
		if appErr, ok := internalerrors.IsAppError(err); ok {
			// failed attempts are recorded by the state machine; the next
			// pass picks the payment up again if a retry is still scheduled
			s.logger.Warn("scheduled retry attempt failed",
				"payment_id", p.ID,
				"code", appErr.Code,
				"retry_count", p.RetryCount+1)
			continue
		}
		s.logger.Error("scheduled retry errored", "error", err, "payment_id", p.ID)
	}
}

func (s *Sweeper) purgeIdempotency(ctx context.Context) {
	if s.idempotency == nil {
		return
	}
	purged, err := s.idempotency.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("idempotency purge failed", "error", err)
		return
	}
	if purged > 0 {
		s.logger.Info("purged expired idempotency records", "count", purged)
	}
}
