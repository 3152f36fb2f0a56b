package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"altarfunds/internal/amqp"
	"altarfunds/internal/api"
	"altarfunds/internal/config"
	applog "altarfunds/internal/log"
	"altarfunds/internal/services"
	"altarfunds/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	logger.Info("Starting giving-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewCacheStore(cfg.CacheDBPath)
	if err != nil {
		logger.Error("Failed to open cache store", "error", err, "path", cfg.CacheDBPath)
		os.Exit(1)
	}
	defer store.Close()

	apiClient := api.NewClient(cfg.APIBaseURL,
		api.WithTokenSource(api.StaticToken(cfg.APIToken)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Warm the entity caches so offline reads have something to serve.
	logger.Info("Refreshing entity caches")
	services.NewEntityRefresher(store, apiClient, cfg.DefaultChurchID).RefreshAll(ctx)

	sweeper := services.NewVerificationSweeper(store, apiClient, services.SweeperConfig{
		SweepInterval: cfg.SweepInterval,
		MinAge:        cfg.SweepMinAge,
	})
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start verification sweeper", "error", err)
		os.Exit(1)
	}

	// AMQP is optional; without a URL the worker runs the sweeper alone.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		resultHandler := newResultHandler(store, apiClient)
		go func() {
			if err := amqpClient.ConsumePaymentResults(ctx, resultHandler.handle); err != nil {
				if err != context.Canceled {
					logger.Error("Payment result consumption failed", "error", err)
				}
				cancel()
			}
		}()
		logger.Info("Consuming payment results", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided, running sweeper only")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := sweeper.Stop(stopCtx); err != nil {
		logger.Error("Sweeper shutdown error", "error", err)
	}

	logger.Info("Worker stopped gracefully")
}

// resultHandler applies published payment outcomes to the local cache so
// reads reflect a completed payment without waiting for the next full
// refresh.
type resultHandler struct {
	store *storage.CacheStore
	api   *api.Client
}

func newResultHandler(store *storage.CacheStore, apiClient *api.Client) *resultHandler {
	return &resultHandler{store: store, api: apiClient}
}

func (h *resultHandler) handle(ctx context.Context, msg *amqp.PaymentResultMessage) error {
	txs, err := h.store.GetAllTransactions(ctx)
	if err != nil {
		return err
	}
	for _, tx := range txs {
		if tx.ID != msg.Reference {
			continue
		}
		tx.Status = msg.Status
		tx.Receipt = msg.Receipt
		if err := h.store.PutTransaction(ctx, tx); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Payment result applied to cache",
			"transaction_id", msg.Reference, "status", string(msg.Status))
		return nil
	}

	// Unknown reference: the transaction never reached this cache. Pull a
	// fresh history so the record appears.
	fresh, err := h.api.ListTransactions(ctx, 50)
	if err != nil {
		slog.WarnContext(ctx, "Cache refresh after unknown payment result failed",
			"transaction_id", msg.Reference, "error", err)
		return nil
	}
	if err := h.store.ReplaceAllTransactions(ctx, fresh); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Cache refreshed after unknown payment result",
		"transaction_id", msg.Reference)
	return nil
}
