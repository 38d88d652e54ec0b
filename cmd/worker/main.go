package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/affiliate-ledger/internal/app"
	"github.com/ignite/affiliate-ledger/internal/audit"
	"github.com/ignite/affiliate-ledger/internal/config"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
	"github.com/ignite/affiliate-ledger/internal/tracking"
	"github.com/ignite/affiliate-ledger/internal/worker"
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
	logger.Info("Starting affiliate ledger worker...")

	if cfg.Database.URL == "" {
		logger.Error("DATABASE_URL is required; the in-memory store only runs inside cmd/server")
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

	var wg sync.WaitGroup
	run := func(name string, start func(ctx context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start(ctx)
		}()
		logger.Info(name + " started")
	}

	attributionWorker := worker.NewAttributionWorker(a.Recorder, a.Commissions,
		a.Lock("attribution-worker", cfg.Attribution.LockTTL()),
		cfg.Attribution.Interval(), cfg.Attribution.BatchSize)
	run("Attribution worker", attributionWorker.Start)

	reconcileWorker := worker.NewReconcileWorker(a.Ledger,
		a.Lock("reconcile-worker", cfg.Attribution.LockTTL()), cfg.Reconcile.Interval())
	run("Reconcile worker", reconcileWorker.Start)

	if cfg.Audit.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Audit.Region))
		if err != nil {
			logger.Error("aws config for audit export", "error", err)
			os.Exit(1)
		}
		exporter := audit.NewExporter(a.Entries, s3.NewFromConfig(awsCfg), cfg.Audit.S3Bucket, cfg.Audit.S3Prefix)
		exportWorker := worker.NewExportWorker(exporter,
			a.Lock("audit-export-worker", cfg.Attribution.LockTTL()), worker.DefaultExportInterval)
		run("Audit export worker", exportWorker.Start)
	} else {
		logger.Info("Audit export disabled (AUDIT_S3_BUCKET not set)")
	}

	var consumer *tracking.Consumer
	if cfg.Tracking.SQSQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Tracking.Region))
		if err != nil {
			logger.Error("aws config for tracking consumer", "error", err)
			os.Exit(1)
		}
		consumer = tracking.NewConsumer(sqs.NewFromConfig(awsCfg), cfg.Tracking.SQSQueueURL, a.Recorder)
		consumer.Start(ctx)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")

	if consumer != nil {
		consumer.Stop()
	}
	cancel()
	wg.Wait()
	logger.Info("Worker stopped")
}
