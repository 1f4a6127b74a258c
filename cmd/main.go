package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paymux"
	"paymux/config"
	"paymux/handler"
)

func main() {
	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	var logger *zap.Logger
	if cfg.Server.Env == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Payment Client ---
	cfg.Client.Logger = logger
	client := paymux.New(cfg.Client)
	gateways := client.ConfiguredGateways()
	if len(gateways) == 0 {
		logger.Fatal("No payment gateway credentials configured")
	}
	logger.Info("Payment gateways configured", zap.Strings("gateways", gateways))

	// --- Webhook Deduper (Redis with in-memory fallback) ---
	deduper, dedupeErr := handler.NewEventDeduper(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		24*time.Hour,
	)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for webhook dedup, using in-memory fallback", zap.Error(dedupeErr))
	}

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	handler.NewWebhookHandler(client, logger).WithDeduper(deduper).Register(e)

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting webhook server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
