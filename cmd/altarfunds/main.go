package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"altarfunds/internal/amqp"
	"altarfunds/internal/api"
	"altarfunds/internal/config"
	apphttp "altarfunds/internal/http"
	applog "altarfunds/internal/log"
	"altarfunds/internal/services"
	"altarfunds/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

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

	// AMQP is optional; without a URL payment results are not published.
	var events services.ResultPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		events = amqpClient
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	payments := services.NewPaymentManager(apiClient, store, events, services.VerifyConfig{
		PollInterval: cfg.VerifyPollInterval,
		MaxAttempts:  cfg.VerifyMaxAttempts,
	}, cfg.DefaultChurchID)

	dashboard := services.NewDashboardAggregator(apiClient, store)

	srv := apphttp.NewServer(":"+cfg.Port, dashboard, payments, apiClient, store, cfg.DashboardCacheTTL)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting altarfunds server", "port", cfg.Port, "api_url", cfg.APIBaseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
