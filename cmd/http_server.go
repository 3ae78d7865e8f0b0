package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rentora/payments/internal"
	"github.com/rentora/payments/internal/breaker"
	"github.com/rentora/payments/internal/core/events"
	"github.com/rentora/payments/internal/idempotency"
	"github.com/rentora/payments/internal/notification"
	"github.com/rentora/payments/internal/payment"
	paymentpostgres "github.com/rentora/payments/internal/payment/postgres"
	"github.com/rentora/payments/internal/paymentgateway"
	"github.com/rentora/payments/internal/transport/rest"
	"github.com/rentora/payments/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle payment API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config         *internal.Config
	DB             *sqlx.DB
	GormDB         *gorm.DB
	Router         *chi.Mux
	Breakers       *breaker.Registry
	PaymentHandler *payment.Handler
	WebhookHandler *payment.WebhookHandler
	Logger         *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func setupRoutes(deps *Dependencies) {
	breakerStates := func() map[string]string {
		return map[string]string{
			breaker.OpCharge:   deps.Breakers.State(breaker.OpCharge),
			breaker.OpRefund:   deps.Breakers.State(breaker.OpRefund),
			breaker.OpRetrieve: deps.Breakers.State(breaker.OpRetrieve),
		}
	}
	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, breakerStates, deps.PaymentHandler, deps.WebhookHandler, deps.Logger)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Format, config.Observability.Logging.Level)
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
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

	paymentHandler := payment.NewHandler(service, log)
	webhookHandler := payment.NewWebhookHandler(service, config.Gateway.WebhookSecret, log)

	return &Dependencies{
		Config:         config,
		DB:             db,
		GormDB:         gormDB,
		Router:         chi.NewRouter(),
		Breakers:       breakers,
		PaymentHandler: paymentHandler,
		WebhookHandler: webhookHandler,
		Logger:         log,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm layers gorm over the already-open pgx connection pool so both
// the repositories and the raw health check share one pool.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
}
