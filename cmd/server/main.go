package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/nekogravitycat/court-reservation/internal/app"
	"github.com/nekogravitycat/court-reservation/internal/config"
	"github.com/nekogravitycat/court-reservation/internal/db"
	"github.com/nekogravitycat/court-reservation/internal/logging"
	"github.com/nekogravitycat/court-reservation/internal/payment"
	"github.com/nekogravitycat/court-reservation/internal/pkg/clock"
	"github.com/nekogravitycat/court-reservation/internal/reservation"
)

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	env := "dev"
	if cfg.IsProduction {
		env = config.PROD_STRING
	}
	logger := logging.New(logging.Options{
		Service:    "court-reservation",
		Env:        env,
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	slog.SetDefault(logger)

	// Connect DB
	pool, err := db.NewPool(ctx, cfg.DBDSN, cfg.DBMaxConns)
	if err != nil {
		logger.Error("failed to connect to db", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.DBAutoMigrate {
		if err := db.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to apply schema", "err", err)
			os.Exit(1)
		}
		logger.Info("database schema applied")
	}

	// Payment signals
	var notifier payment.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		notifier = payment.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaPaymentTopic)
		logger.Info("payment signals go to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaPaymentTopic)
	} else {
		notifier = payment.NewLogNotifier(logger)
		logger.Warn("no kafka brokers configured, payment signals are only logged")
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Error("failed to close payment notifier", "err", err)
		}
	}()

	container := app.NewContainer(app.Config{
		IsProduction:  cfg.IsProduction,
		ProdOrigins:   cfg.ProdOrigins,
		DBPool:        pool,
		JWTSecret:     cfg.JWTSecret,
		JWTTTL:        cfg.JWTAccessTokenTTL,
		Logger:        logger,
		Notifier:      notifier,
		Clock:         clock.Real(),
		InitialStatus: reservation.Status(cfg.BookingInitialStatus),
	})

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in separate goroutine
	go func() {
		logger.Info("server running", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}

	logger.Info("server exited gracefully")
}
