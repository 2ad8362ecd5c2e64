package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/application/services"
	"github.com/ssekandi/safiri-payments/internal/config"
	"github.com/ssekandi/safiri-payments/internal/infrastructure/persistence/postgres"
	"github.com/ssekandi/safiri-payments/internal/interfaces/rest/handlers"
	"github.com/ssekandi/safiri-payments/internal/interfaces/rest/middleware"
	"github.com/ssekandi/safiri-payments/internal/interfaces/rest/webhooks"
	"github.com/ssekandi/safiri-payments/internal/notify"
	"github.com/ssekandi/safiri-payments/internal/provider"
	"github.com/ssekandi/safiri-payments/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payments engine",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
		"force_aggregator", cfg.Flags.ForceAggregator,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	paymentRepo := postgres.NewPaymentRepository(db.Pool)
	payoutRepo := postgres.NewPayoutRepository(db.Pool)
	refundRepo := postgres.NewRefundRepository(db.Pool)

	router := application.NewProviderRouter(cfg.Flags.ForceAggregator,
		provider.NewMTNClient(cfg.MTN),
		provider.NewAirtelClient(cfg.Airtel),
		provider.NewRelworxClient(cfg.Relworx),
	)

	var notifier application.Notifier = notify.Noop{}
	if cfg.Notifier.BaseURL != "" {
		notifier = notify.NewHTTPNotifier(cfg.Notifier, logger)
	}

	reconciler := services.NewReconciler(paymentRepo, payoutRepo, refundRepo, notifier, logger)
	statusService := services.NewStatusService(paymentRepo, payoutRepo, refundRepo, router, reconciler, logger)

	poller := worker.NewPoller(statusService, cfg.Poller.Ceiling, logger)

	payinService := services.NewPayinService(paymentRepo, router, poller, cfg.Primary.Currency, logger)
	payoutService := services.NewPayoutService(payoutRepo, router, poller, cfg.Primary.Currency, logger)
	refundService := services.NewRefundService(refundRepo, paymentRepo, router, poller, logger)

	h := handlers.NewHandlers(payinService, payoutService, refundService, statusService, logger)
	wh := webhooks.NewWebhooks(statusService, logger)

	mux := chi.NewRouter()
	h.RegisterRoutes(mux)
	wh.RegisterRoutes(mux)

	handler := middleware.Recovery(logger)(mux)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Timeout(cfg.Server.ReadTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	retryWorker := worker.NewRetryWorker(
		payoutRepo,
		payoutService,
		poller,
		cfg.Retry.Interval,
		cfg.Retry.BatchSize,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go retryWorker.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()
	poller.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
