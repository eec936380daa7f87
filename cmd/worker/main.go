package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/duongtq7/CapstoneProject/internal/core/pipeline"
	"github.com/duongtq7/CapstoneProject/internal/infra/config"
	"github.com/duongtq7/CapstoneProject/internal/infra/email"
	"github.com/duongtq7/CapstoneProject/internal/infra/metrics"
	miniostorage "github.com/duongtq7/CapstoneProject/internal/infra/minio"
	"github.com/duongtq7/CapstoneProject/internal/infra/onnx"
	"github.com/duongtq7/CapstoneProject/internal/infra/postgres"
	"github.com/duongtq7/CapstoneProject/internal/infra/rabbitmq"
	"github.com/duongtq7/CapstoneProject/internal/infra/tracing"
	"github.com/duongtq7/CapstoneProject/internal/infra/video"
	"github.com/duongtq7/CapstoneProject/internal/usecase"
	"github.com/duongtq7/CapstoneProject/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting keyframe-extraction-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	// Migrations
	err = postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath)
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		UploadBucket: cfg.MinIOUploadBucket,
		FramesBucket: cfg.MinIOFramesBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// ONNX runtime and models
	fatalOnErr(onnx.Initialize(cfg.ONNXLibraryPath), "init onnx runtime")
	defer onnx.Destroy()

	scorer, err := onnx.NewTransitionScorer(cfg.TransNetModelPath, log)
	fatalOnErr(err, "load transition scorer model")
	defer scorer.Close()

	embedder, err := onnx.NewImageEmbedder(cfg.CLIPModelPath, log)
	fatalOnErr(err, "load image embedder model")
	defer embedder.Close()

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	repo := postgres.NewJobRepository(pool)
	keyframeStore := postgres.NewKeyframeStore(pool)
	opener := video.NewOpener(cfg.ScoringWidth, cfg.ScoringHeight, log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)
	pipe := pipeline.New(scorer, embedder, log)

	// Use case
	uc := usecase.NewExtractKeyframesUseCase(
		repo, storage, opener, pipe, embedder, keyframeStore,
		statusPub, dlqPub, notifier,
		log,
		usecase.ExtractKeyframesConfig{
			TempDir:    cfg.TempDir,
			MaxRetries: cfg.MaxRetries,
			JobTimeout: time.Duration(cfg.JobTimeoutSec) * time.Second,
			Pipeline: pipeline.Options{
				Threshold:      cfg.BoundaryThreshold,
				ChunkSize:      cfg.BoundaryChunkSize,
				MinClusterSize: cfg.ClusterMinClusterSize,
			},
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQExtractionQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("keyframe-extraction-service started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("keyframe-extraction-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
