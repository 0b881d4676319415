package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/whatsapp-clinic-bot/cmd/mainconfig"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/api/router"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/app/bootstrap"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/chatlog"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/clinic"
	appconfig "github.com/wolfman30/whatsapp-clinic-bot/internal/config"
	httpmiddleware "github.com/wolfman30/whatsapp-clinic-bot/internal/http/middleware"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/inbound"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/livechat"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/messaging"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/reminders"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/reports"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting whatsapp-clinic-bot API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"memory_queue", cfg.UseMemoryQueue,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	var awsCfg *aws.Config
	if loaded, err := mainconfig.LoadAWSConfig(ctx, cfg); err != nil {
		logger.Warn("AWS config unavailable; SQS, S3 and Bedrock disabled", "error", err)
	} else {
		awsCfg = &loaded
	}

	metricsHandler, botMetrics := setupMetrics()
	hub := livechat.NewHub(httpmiddleware.CheckOrigin(cfg.CORSAllowedOrigins), logger)

	generator, closeGenerator, err := bootstrap.BuildGenerator(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build generator", "error", err)
		os.Exit(1)
	}
	defer closeGenerator()

	pipeline, err := bootstrap.BuildPipeline(bootstrap.PipelineDeps{
		Config:    cfg,
		DB:        pool,
		Redis:     redisClient,
		S3:        setupReportArchive(cfg, awsCfg),
		Generator: generator,
		Logger:    logger,
		Metrics:   botMetrics,
		Listeners: []chatlog.Listener{hub},
	})
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	publisher, memoryQueue, err := setupInbound(cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to set up inbound queue", "error", err)
		os.Exit(1)
	}
	worker := setupInlineWorker(ctx, cfg, logger, pipeline.Router, memoryQueue, setupDeduper(redisClient))

	// With an external queue the inbound-worker process owns the reminder jobs.
	var scheduler *reminders.Scheduler
	if cfg.UseMemoryQueue {
		scheduler = bootstrap.BuildReminderScheduler(cfg, pool, pipeline.WhatsApp, redisClient, botMetrics, logger)
	}
	if scheduler != nil {
		scheduler.Start(ctx)
	}

	webhook := messaging.NewWebhookHandler(cfg.WhatsAppVerifyToken, pipeline.Doctors, publisher,
		messaging.WithLogger(logger),
		messaging.WithMetrics(botMetrics),
	)

	r := router.New(&router.Config{
		Logger:             logger,
		Webhook:            webhook,
		MissedCall:         messaging.NewMissedCallHandler(pipeline.Doctors, pipeline.Dispatcher, logger),
		LiveChat:           livechat.NewHandler(pipeline.Messages, pipeline.Patients, pipeline.Doctors, pipeline.WhatsApp, hub, logger),
		Clinic:             clinic.NewHandler(pipeline.Clinic, logger),
		Health:             messaging.Health(healthChecks(pool, redisClient)...),
		MetricsHandler:     metricsHandler,
		WhatsAppAppSecret:  cfg.WhatsAppAppSecret,
		DashboardJWTSecret: cfg.DashboardJWTSecret,
		WebhookRateLimit:   cfg.WebhookRateLimit,
		WebhookRateBurst:   cfg.WebhookRateBurst,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// WriteTimeout is left unset so live-chat websockets stay open.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Stop the inline worker after the server so accepted webhooks drain.
	cancel()
	waitForInlineWorker(worker, logger)
	if scheduler != nil {
		scheduler.Wait()
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *metrics.BotMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBotMetrics(reg)
}

func setupReportArchive(cfg *appconfig.Config, awsCfg *aws.Config) reports.S3API {
	if awsCfg == nil || strings.TrimSpace(cfg.ReportsBucket) == "" {
		return nil
	}
	return s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	})
}

// setupInbound returns the publisher the webhook enqueues to. The memory
// queue is returned only when events are processed in this process.
func setupInbound(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (*inbound.Publisher, *inbound.MemoryQueue, error) {
	if cfg.UseMemoryQueue {
		queue := inbound.NewMemoryQueue(1024)
		return inbound.NewPublisher(queue, logger), queue, nil
	}
	if awsCfg == nil {
		return nil, nil, fmt.Errorf("aws config required when USE_MEMORY_QUEUE=false")
	}
	if strings.TrimSpace(cfg.InboundQueueURL) == "" {
		return nil, nil, fmt.Errorf("INBOUND_QUEUE_URL required when USE_MEMORY_QUEUE=false")
	}
	queue := inbound.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.InboundQueueURL)
	return inbound.NewPublisher(queue, logger), nil, nil
}

func setupDeduper(client *redis.Client) inbound.Deduper {
	if client == nil {
		return nil
	}
	return inbound.NewRedisDeduper(client, inbound.DefaultDedupTTL)
}

func setupInlineWorker(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, handler inbound.Handler, queue *inbound.MemoryQueue, deduper inbound.Deduper) *inbound.Worker {
	if !cfg.UseMemoryQueue || queue == nil {
		return nil
	}
	opts := []inbound.WorkerOption{inbound.WithWorkerCount(cfg.WorkerCount)}
	if deduper != nil {
		opts = append(opts, inbound.WithDeduper(deduper))
	}
	worker := inbound.NewWorker(handler, queue, logger, opts...)
	worker.Start(ctx)
	logger.Info("inline inbound worker started", "workers", cfg.WorkerCount)
	return worker
}

func waitForInlineWorker(worker *inbound.Worker, logger *logging.Logger) {
	if worker == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("inline inbound worker stopped")
	case <-time.After(30 * time.Second):
		logger.Error("inline inbound worker shutdown timed out")
	}
}

func healthChecks(pool *pgxpool.Pool, redisClient *redis.Client) []messaging.HealthCheck {
	var checks []messaging.HealthCheck
	if pool != nil {
		checks = append(checks, messaging.HealthCheck{Name: "postgres", Check: pool.Ping})
	}
	if redisClient != nil {
		checks = append(checks, messaging.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	return checks
}
