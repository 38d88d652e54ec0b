package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/affiliate-ledger/internal/api"
	"github.com/ignite/affiliate-ledger/internal/app"
	"github.com/ignite/affiliate-ledger/internal/auth"
	"github.com/ignite/affiliate-ledger/internal/config"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
	"github.com/ignite/affiliate-ledger/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  Affiliate Ledger API Server (cmd/server/main.go)         ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.Redact())

	if cfg.Auth.JWTSecret == "" && !cfg.Auth.DevHeaders {
		logger.Error("JWT_SECRET is required unless AUTH_DEV_HEADERS is enabled")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("initialize backend", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Without a shared database no separate worker process can see this
	// server's conversions, so attribution runs here.
	if a.InMemory {
		w := worker.NewAttributionWorker(a.Recorder, a.Commissions, nil,
			cfg.Attribution.Interval(), cfg.Attribution.BatchSize)
		go w.Start(ctx)
		logger.Info("in-process attribution worker started", "interval", cfg.Attribution.Interval().String())
	}

	health := api.NewHealthChecker(a.DB, a.Redis).WithBacklog(a.Recorder)
	handlers := api.NewHandlers(api.Services{
		Recorder:    a.Recorder,
		Commissions: a.Commissions,
		Ledger:      a.Ledger,
		Withdrawals: a.Withdrawals,
		Review:      a.Review,
		Analytics:   a.Analytics,
	}, health)
	server := api.NewServer(cfg.Server, handlers, auth.NewAuthManager(cfg.Auth))

	go func() {
		logger.Info("API server listening", "addr", cfg.Server.Addr(), "in_memory", a.InMemory)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down API server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
