package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/duongtq7/CapstoneProject/internal/core/pipeline"
	"github.com/duongtq7/CapstoneProject/internal/domain/entity"
	"github.com/duongtq7/CapstoneProject/internal/domain/port"
	"github.com/duongtq7/CapstoneProject/internal/infra/metrics"
)

// KeyframePipeline runs the extraction over one opened video.
type KeyframePipeline interface {
	Run(ctx context.Context, source port.VideoSource, opts pipeline.Options, sink port.FrameSink) (*entity.ExtractionResult, error)
}

type ExtractKeyframesUseCase struct {
	repo      port.JobRepository
	storage   port.VideoStorage
	opener    port.VideoOpener
	pipeline  KeyframePipeline
	embedder  port.EmbeddingProvider
	keyframes port.KeyframeStore
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger     *zap.Logger
	tempDir    string
	maxRetry   int
	jobTimeout time.Duration
	opts       pipeline.Options
}

type ExtractKeyframesConfig struct {
	TempDir    string
	MaxRetries int
	JobTimeout time.Duration
	Pipeline   pipeline.Options
}

func NewExtractKeyframesUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	opener port.VideoOpener,
	pipe KeyframePipeline,
	embedder port.EmbeddingProvider,
	keyframes port.KeyframeStore,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ExtractKeyframesConfig,
) *ExtractKeyframesUseCase {
	return &ExtractKeyframesUseCase{
		repo:      repo,
		storage:   storage,
		opener:    opener,
		pipeline:  pipe,
		embedder:  embedder,
		keyframes: keyframes,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:     logger,
		tempDir:    cfg.TempDir,
		maxRetry:   cfg.MaxRetries,
		jobTimeout: cfg.JobTimeout,
		opts:       cfg.Pipeline,
	}
}

func (uc *ExtractKeyframesUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ExtractKeyframesUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.ExtractionRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.media_id", msg.MediaID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(
		zap.String("job_id", msg.JobID.String()),
		zap.String("media_id", msg.MediaID.String()),
		zap.String("video_key", msg.VideoKey),
	)

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewExtractionJob(msg.MediaID, msg.UserID, msg.VideoKey, msg.FileSize, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if uc.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.jobTimeout)
		defer cancel()
	}

	if err := uc.runExtraction(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.PipelineStageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *ExtractKeyframesUseCase) runExtraction(
	ctx context.Context,
	job *entity.ExtractionJob,
	msg entity.ExtractionRequestMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download video from MinIO
	dlStart := time.Now()
	ctxDl, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input.mp4")
	if err := uc.storage.DownloadVideo(ctxDl, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
	}
	spanDl.End()
	metrics.PipelineStageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Open and decode the downsampled scoring stream
	openStart := time.Now()
	ctxOpen, spanOpen := tracer.Start(ctx, "open_video")
	source, err := uc.opener.Open(ctxOpen, videoPath)
	if err != nil {
		spanOpen.End()
		log.Error("failed to open video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "open_video: "+err.Error(), log)
	}
	defer source.Close()
	spanOpen.End()
	metrics.PipelineStageDuration.WithLabelValues("open").Observe(time.Since(openStart).Seconds())

	// Run the extraction pipeline
	runStart := time.Now()
	ctxRun, spanRun := tracer.Start(ctx, "run_pipeline")
	result, err := uc.pipeline.Run(ctxRun, source, uc.opts, uc.storage.FrameSink(msg.MediaID.String()))
	spanRun.End()
	metrics.PipelineStageDuration.WithLabelValues("pipeline").Observe(time.Since(runStart).Seconds())
	if err != nil {
		log.Error("extraction pipeline failed", zap.Error(err))
		reason := "pipeline: " + err.Error()
		if result != nil && result.Message != "" {
			reason = "pipeline: " + result.Message
		}
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, reason, log)
	}
	metrics.ShotBoundariesDetectedTotal.Add(float64(len(result.ShotBoundaries)))
	metrics.KeyframesSelectedTotal.Add(float64(len(result.Keyframes)))

	// Persist selected keyframes with embeddings for similarity search
	persistStart := time.Now()
	ctxPersist, spanPersist := tracer.Start(ctx, "persist_keyframes")
	if err := uc.persistKeyframes(ctxPersist, job, msg, source, result.Keyframes); err != nil {
		spanPersist.End()
		log.Error("failed to persist keyframes", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "persist_keyframes: "+err.Error(), log)
	}
	spanPersist.End()
	metrics.PipelineStageDuration.WithLabelValues("persist").Observe(time.Since(persistStart).Seconds())

	// Mark completed
	job.MarkCompleted(source.TotalFrameCount(), len(result.ShotBoundaries), len(result.Keyframes))
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, result.ShotBoundaries, result.Keyframes, log)

	log.Info("job completed successfully",
		zap.Int("frame_count", job.FrameCount),
		zap.Int("boundary_count", job.BoundaryCount),
		zap.Int("keyframe_count", job.KeyframeCount),
	)

	return nil
}

// persistKeyframes re-embeds only the selected frames; shot-level feature
// vectors are discarded once selection is done.
func (uc *ExtractKeyframesUseCase) persistKeyframes(
	ctx context.Context,
	job *entity.ExtractionJob,
	msg entity.ExtractionRequestMessage,
	source port.VideoSource,
	keyframes []int,
) error {
	if len(keyframes) == 0 {
		return nil
	}

	records := make([]port.KeyframeRecord, 0, len(keyframes))
	for _, idx := range keyframes {
		frames, err := source.ShotFrames(ctx, entity.Shot{Start: idx, End: idx + 1})
		if err != nil {
			return fmt.Errorf("read keyframe %d: %w", idx, err)
		}
		if len(frames) == 0 {
			return fmt.Errorf("keyframe %d out of range", idx)
		}
		vec, err := uc.embedder.Embed(ctx, frames[0])
		if err != nil {
			return fmt.Errorf("embed keyframe %d: %w", idx, err)
		}
		records = append(records, port.KeyframeRecord{
			MediaID:   msg.MediaID,
			JobID:     job.ID,
			FrameIdx:  idx,
			Embedding: vec,
		})
	}

	return uc.keyframes.SaveKeyframes(ctx, records)
}

func (uc *ExtractKeyframesUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.ExtractionJob,
	msg entity.ExtractionRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, nil, nil, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *ExtractKeyframesUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.ExtractionJob,
	msg entity.ExtractionRequestMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, nil, nil, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *ExtractKeyframesUseCase) publishStatus(
	ctx context.Context,
	job *entity.ExtractionJob,
	boundaries []int,
	keyframes []int,
	log *zap.Logger,
) {
	statusMsg := entity.ExtractionStatusMessage{
		JobID:          job.ID,
		MediaID:        job.MediaID,
		UserID:         job.UserID,
		Status:         job.Status,
		VideoKey:       job.VideoKey,
		ShotBoundaries: boundaries,
		Keyframes:      keyframes,
		FrameCount:     job.FrameCount,
		ErrorMessage:   job.ErrorMessage,
		Attempt:        job.Attempt,
		MaxAttempts:    job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
