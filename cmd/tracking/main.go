package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/affiliate-ledger/internal/config"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
	"github.com/ignite/affiliate-ledger/internal/tracking"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.Redact())

	if cfg.Tracking.SQSQueueURL == "" {
		logger.Error("TRACKING_SQS_QUEUE_URL is required")
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Tracking.Region))
	if err != nil {
		logger.Error("aws config", "error", err)
		os.Exit(1)
	}

	sqsClient := sqs.NewFromConfig(awsCfg)
	pub := tracking.NewPublisher(sqsClient, cfg.Tracking.SQSQueueURL)
	handler := tracking.NewHandler(pub)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Tracking.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("tracking intake listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down tracking intake")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
