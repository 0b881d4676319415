package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/whatsapp-clinic-bot/cmd/mainconfig"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/app/bootstrap"
	appconfig "github.com/wolfman30/whatsapp-clinic-bot/internal/config"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/inbound"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/reports"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if strings.TrimSpace(cfg.InboundQueueURL) == "" {
		logger.Error("INBOUND_QUEUE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	generator, closeGenerator, err := bootstrap.BuildGenerator(ctx, cfg, &awsConfig, logger)
	if err != nil {
		logger.Error("failed to build generator", "error", err)
		os.Exit(1)
	}
	defer closeGenerator()

	var archive reports.S3API
	if cfg.ReportsBucket != "" {
		archive = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWSEndpointOverride != ""
		})
	}

	pipeline, err := bootstrap.BuildPipeline(bootstrap.PipelineDeps{
		Config:    cfg,
		DB:        pool,
		Redis:     redisClient,
		S3:        archive,
		Generator: generator,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	opts := []inbound.WorkerOption{
		inbound.WithWorkerCount(cfg.WorkerCount),
		inbound.WithReceiveWaitSeconds(20),
		inbound.WithReceiveBatchSize(10),
	}
	if redisClient != nil {
		opts = append(opts, inbound.WithDeduper(inbound.NewRedisDeduper(redisClient, inbound.DefaultDedupTTL)))
	}

	queue := inbound.NewSQSQueue(sqs.NewFromConfig(awsConfig), cfg.InboundQueueURL)
	if !queue.FIFO() {
		logger.Warn("inbound queue is not FIFO; per-patient order only holds within this process",
			"queue", cfg.InboundQueueURL)
	}
	worker := inbound.NewWorker(pipeline.Router, queue, logger, opts...)
	worker.Start(ctx)
	logger.Info("inbound worker started", "workers", cfg.WorkerCount, "queue", cfg.InboundQueueURL)

	scheduler := bootstrap.BuildReminderScheduler(cfg, pool, pipeline.WhatsApp, redisClient, nil, logger)
	if scheduler != nil {
		scheduler.Start(ctx)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down inbound worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		if scheduler != nil {
			scheduler.Wait()
		}
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("inbound worker stopped")
	case <-doneCtx.Done():
		logger.Error("inbound worker shutdown timed out", "error", doneCtx.Err())
	}
}
