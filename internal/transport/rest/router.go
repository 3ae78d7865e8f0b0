package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/rentora/payments/internal/payment"
	"github.com/rentora/payments/internal/transport/middleware"
	"github.com/rentora/payments/internal/transport/swagger"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, breakerStates BreakerStateFunc, paymentHandler *payment.Handler, webhookHandler *payment.WebhookHandler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, breakerStates)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check routes
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Gateway callbacks authenticate by signature, not user identity
		if webhookHandler != nil {
			r.Post("/payments/gateway/callback", webhookHandler.HandleCallback)
		}

		if paymentHandler != nil {
			r.Group(func(pr chi.Router) {
				pr.Use(middleware.Identity)

				pr.Route("/payments", func(pmr chi.Router) {
					pmr.Post("/", paymentHandler.CreatePayment)            // POST /payments
					pmr.Get("/{id}", paymentHandler.GetPayment)            // GET /payments/:id
					pmr.Get("/{id}/status", paymentHandler.GetPaymentStatus) // GET /payments/:id/status
					pmr.Post("/{id}/process", paymentHandler.ProcessPayment) // POST /payments/:id/process
					pmr.Post("/{id}/refund", paymentHandler.RefundPayment)   // POST /payments/:id/refund
				})
			})
		}
	})
}
