package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/smehubhq/payments-service/internal/api"
	"github.com/smehubhq/payments-service/internal/config"
	"github.com/smehubhq/payments-service/internal/db"
	"github.com/smehubhq/payments-service/internal/logger"
	"github.com/smehubhq/payments-service/internal/metrics"
	"github.com/smehubhq/payments-service/internal/notifier"
	"github.com/smehubhq/payments-service/internal/payments"
	"github.com/smehubhq/payments-service/internal/provider"
	"github.com/smehubhq/payments-service/internal/repository/postgres"
	"github.com/smehubhq/payments-service/internal/services"
	"github.com/smehubhq/payments-service/internal/webhook"
	"github.com/smehubhq/payments-service/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded")
	}
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Migrate {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	repos := postgres.NewRepositories(pool)
	wp := worker.NewPool(4)
	defer wp.Stop()

	refs, err := payments.NewReferenceGenerator()
	if err != nil {
		log.Error("reference generator", "err", err)
		os.Exit(1)
	}

	var events notifier.Publisher = notifier.Noop{}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kp := notifier.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		defer kp.Close()
		events = kp
	}

	reconSvc := services.NewReconciliationService(
		webhook.NewVerifier(cfg.WebhookSecret),
		repos.Transactions,
		repos.WebhookAudits,
		wp,
		events,
		services.RetryPolicy{Attempts: cfg.StoreRetryAttempts, Backoff: cfg.StoreRetryBackoff},
	)
	initSvc := services.NewInitiationService(
		repos.Transactions,
		refs,
		provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderSecretKey),
		payments.Limits{Min: cfg.MinAmount, Max: cfg.MaxAmount},
		cfg.FeeBps,
	)

	metrics.Init()
	r := api.NewRouter(cfg, reconSvc, initSvc)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
