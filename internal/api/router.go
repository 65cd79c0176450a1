package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/smehubhq/payments-service/internal/config"
	"github.com/smehubhq/payments-service/internal/metrics"
	"github.com/smehubhq/payments-service/internal/middleware"
	"github.com/smehubhq/payments-service/internal/services"
)

func NewRouter(cfg config.Config, recon *services.ReconciliationService, initiation *services.InitiationService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	wh := NewWebhookHandler(recon, cfg.SignatureHeader)
	ph := NewPaymentsHandler(initiation)

	r.Route("/api/v1", func(r chi.Router) {
		// provider callback; authenticated by HMAC signature, not by session
		r.Post("/webhooks/payments", wh.ServePaymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.UserContext(cfg.JWTSecret))
			r.Post("/payments/initiate", ph.Initiate)
			r.Get("/payments/{reference}", ph.GetByReference)
		})
	})

	return r
}
