package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rentora/payments/internal/breaker"
	"github.com/rentora/payments/internal/core/events"
	"github.com/rentora/payments/internal/idempotency"
	"github.com/rentora/payments/internal/notification"
	"github.com/rentora/payments/internal/payment"
	paymentpostgres "github.com/rentora/payments/internal/payment/postgres"
	"github.com/rentora/payments/internal/paymentgateway"
	"github.com/rentora/payments/pkg/logger"

	"github.com/spf13/cobra"
)

var sweeperCmd = &cobra.Command{
	Use:   "sweeper",
	Short: "Start the reconciliation sweeper",
	Long:  `Start the background reconciliation process that resolves stuck payments against the gateway, drives scheduled retries and purges expired idempotency records.`,
	Run: func(cmd *cobra.Command, args []string) {
		startSweeper()
	},
}

var (
	sweepInterval time.Duration
	sweepBatch    int
)

func init() {
	sweeperCmd.Flags().DurationVar(&sweepInterval, "interval", 0, "Sweep interval (overrides config)")
	sweeperCmd.Flags().IntVar(&sweepBatch, "batch-size", 0, "Rows per sweep pass (overrides config)")
}

func startSweeper() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(config.Observability.Logging.Format, config.Observability.Logging.Level)
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	gormDB, err := initGorm(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize orm: %v\n", err)
		os.Exit(1)
	}

	eventBus := events.NewEventBus(log)
	notification.NewEventHandler(notification.NewLogNotifier(log), log).RegisterEventHandlers(eventBus)

	breakers := breaker.NewRegistry(breaker.Config{
		MinRequests:  config.Breaker.MinRequests,
		FailureRatio: config.Breaker.FailureRatio,
		Interval:     config.Breaker.Interval,
		Cooldown:     config.Breaker.Cooldown,
	}, log)

	gatewayClient := paymentgateway.NewClient(paymentgateway.Config{
		BaseURL: config.Gateway.BaseURL,
		APIKey:  config.Gateway.APIKey,
		Timeout: config.Gateway.Timeout,
	}, log)

	idemStore := idempotency.NewStore(gormDB, config.Idempotency.TTL, log)
	repo := paymentpostgres.NewPaymentRepository(gormDB)

	service := payment.NewService(repo, gatewayClient, breakers, idemStore, eventBus, payment.ServiceConfig{
		SupportedCurrencies: config.Payment.SupportedCurrencies,
		MaxRetries:          config.Retry.MaxRetries,
		BaseDelay:           config.Retry.BaseDelay,
		MaxDelay:            config.Retry.MaxDelay,
	}, log)

	sweeper := payment.NewSweeper(service, repo, idemStore, payment.SweeperConfig{
		Interval:           getDurationFlag(sweepInterval, config.Sweeper.Interval),
		StalenessThreshold: config.Sweeper.StalenessThreshold,
		BatchSize:          getIntFlag(sweepBatch, config.Sweeper.BatchSize),
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = sweeper.Run(ctx)
		close(done)
	}()

	log.Info("sweeper is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	log.Info("received signal, shutting down sweeper", "signal", sig)
	cancel()

	select {
	case <-done:
		log.Info("sweeper shutdown complete")
	case <-time.After(30 * time.Second):
		log.Warn("shutdown timeout reached, forcing exit")
	}
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func getDurationFlag(flagValue, configValue time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}
