package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/duongtq7/CapstoneProject/internal/core/pipeline"
	"github.com/duongtq7/CapstoneProject/internal/domain/entity"
	"github.com/duongtq7/CapstoneProject/internal/domain/port"
)

type fakeRepo struct {
	jobs    map[uuid.UUID]*entity.ExtractionJob
	updates []entity.JobStatus
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: make(map[uuid.UUID]*entity.ExtractionJob)}
}

func (r *fakeRepo) Create(_ context.Context, job *entity.ExtractionJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeRepo) Update(_ context.Context, job *entity.ExtractionJob) error {
	r.jobs[job.ID] = job
	r.updates = append(r.updates, job.Status)
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.ExtractionJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return job, nil
}

type fakeStorage struct {
	downloadErr error
	downloads   []string
	sink        *fakeSink
}

func (s *fakeStorage) DownloadVideo(_ context.Context, objectKey, _ string) error {
	if s.downloadErr != nil {
		return s.downloadErr
	}
	s.downloads = append(s.downloads, objectKey)
	return nil
}

func (s *fakeStorage) FrameSink(mediaID string) port.FrameSink {
	s.sink = &fakeSink{mediaID: mediaID}
	return s.sink
}

type fakeSink struct {
	mediaID string
	writes  []string
}

func (s *fakeSink) WriteFrame(_ context.Context, kind port.FrameKind, frameIndex, _, _ int, _ []byte) error {
	s.writes = append(s.writes, fmt.Sprintf("%s:%d", kind, frameIndex))
	return nil
}

type fakeSource struct {
	total  int
	closed bool
}

func (s *fakeSource) TotalFrameCount() int { return s.total }

func (s *fakeSource) ScoringFrames(context.Context) ([]entity.Frame, error) {
	frames := make([]entity.Frame, s.total)
	for i := range frames {
		frames[i] = entity.Frame{Index: i, Width: 2, Height: 2, Pixels: make([]byte, 12)}
	}
	return frames, nil
}

func (s *fakeSource) ShotFrames(_ context.Context, shot entity.Shot) ([]entity.Frame, error) {
	if shot.End > s.total {
		return nil, errors.New("shot out of range")
	}
	frames := make([]entity.Frame, 0, shot.Len())
	for i := shot.Start; i < shot.End; i++ {
		frames = append(frames, entity.Frame{Index: i, Width: 2, Height: 2, Pixels: make([]byte, 12)})
	}
	return frames, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeOpener struct {
	source *fakeSource
	err    error
}

func (o *fakeOpener) Open(context.Context, string) (port.VideoSource, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.source, nil
}

type fakePipeline struct {
	result *entity.ExtractionResult
	err    error
}

func (p *fakePipeline) Run(context.Context, port.VideoSource, pipeline.Options, port.FrameSink) (*entity.ExtractionResult, error) {
	return p.result, p.err
}

type fakeEmbedder struct {
	embedded []int
}

func (e *fakeEmbedder) Embed(_ context.Context, frame entity.Frame) ([]float32, error) {
	e.embedded = append(e.embedded, frame.Index)
	return []float32{float32(frame.Index), 1}, nil
}

type fakeKeyframeStore struct {
	saved []port.KeyframeRecord
}

func (s *fakeKeyframeStore) SaveKeyframes(_ context.Context, records []port.KeyframeRecord) error {
	s.saved = append(s.saved, records...)
	return nil
}

type fakePublisher struct {
	messages []entity.ExtractionStatusMessage
}

func (p *fakePublisher) PublishStatus(_ context.Context, msg []byte) error {
	var status entity.ExtractionStatusMessage
	if err := json.Unmarshal(msg, &status); err != nil {
		return err
	}
	p.messages = append(p.messages, status)
	return nil
}

type fakeDLQ struct {
	reasons []string
}

func (d *fakeDLQ) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	d.reasons = append(d.reasons, reason)
	return nil
}

type fakeNotifier struct {
	notified []string
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, userEmail, _, _, _ string) error {
	n.notified = append(n.notified, userEmail)
	return nil
}

type ucFixture struct {
	uc        *ExtractKeyframesUseCase
	repo      *fakeRepo
	storage   *fakeStorage
	opener    *fakeOpener
	pipe      *fakePipeline
	embedder  *fakeEmbedder
	store     *fakeKeyframeStore
	publisher *fakePublisher
	dlq       *fakeDLQ
	notifier  *fakeNotifier
}

func newFixture(t *testing.T, pipe *fakePipeline, total int) *ucFixture {
	t.Helper()
	f := &ucFixture{
		repo:      newFakeRepo(),
		storage:   &fakeStorage{},
		opener:    &fakeOpener{source: &fakeSource{total: total}},
		pipe:      pipe,
		embedder:  &fakeEmbedder{},
		store:     &fakeKeyframeStore{},
		publisher: &fakePublisher{},
		dlq:       &fakeDLQ{},
		notifier:  &fakeNotifier{},
	}
	f.uc = NewExtractKeyframesUseCase(
		f.repo, f.storage, f.opener, f.pipe, f.embedder, f.store,
		f.publisher, f.dlq, f.notifier, zap.NewNop(),
		ExtractKeyframesConfig{TempDir: t.TempDir(), MaxRetries: 3},
	)
	return f
}

func requestBody(t *testing.T, msg entity.ExtractionRequestMessage) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func TestExecuteCompletesJobAndPublishesResult(t *testing.T) {
	pipe := &fakePipeline{result: &entity.ExtractionResult{
		Status:         pipeline.StatusSuccess,
		ShotBoundaries: []int{10, 25},
		Keyframes:      []int{0, 10, 25},
	}}
	f := newFixture(t, pipe, 30)

	msg := entity.ExtractionRequestMessage{
		JobID:    uuid.New(),
		MediaID:  uuid.New(),
		UserID:   "user-1",
		VideoKey: "user-1/video.mp4",
		FileSize: 1024,
	}

	err := f.uc.Execute(context.Background(), requestBody(t, msg))
	require.NoError(t, err)

	job, err := f.repo.FindByID(context.Background(), msg.JobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 30, job.FrameCount)
	assert.Equal(t, 2, job.BoundaryCount)
	assert.Equal(t, 3, job.KeyframeCount)
	assert.Equal(t, 1, job.Attempt)

	assert.Equal(t, []string{"user-1/video.mp4"}, f.storage.downloads)
	assert.True(t, f.opener.source.closed)

	require.Len(t, f.publisher.messages, 1)
	status := f.publisher.messages[0]
	assert.Equal(t, entity.JobStatusCompleted, status.Status)
	assert.Equal(t, []int{10, 25}, status.ShotBoundaries)
	assert.Equal(t, []int{0, 10, 25}, status.Keyframes)

	require.Len(t, f.store.saved, 3)
	assert.Equal(t, []int{0, 10, 25}, f.embedder.embedded)
	for i, idx := range []int{0, 10, 25} {
		assert.Equal(t, msg.MediaID, f.store.saved[i].MediaID)
		assert.Equal(t, msg.JobID, f.store.saved[i].JobID)
		assert.Equal(t, idx, f.store.saved[i].FrameIdx)
		assert.NotEmpty(t, f.store.saved[i].Embedding)
	}

	assert.Empty(t, f.dlq.reasons)
	assert.Empty(t, f.notifier.notified)
}

func TestExecuteMalformedMessageGoesToDLQ(t *testing.T) {
	f := newFixture(t, &fakePipeline{}, 0)

	err := f.uc.Execute(context.Background(), []byte("{not json"))
	require.NoError(t, err)

	require.Len(t, f.dlq.reasons, 1)
	assert.Contains(t, f.dlq.reasons[0], "unmarshal_error")
	assert.Empty(t, f.repo.jobs)
}

func TestExecutePipelineFailureIsRetryable(t *testing.T) {
	pipe := &fakePipeline{
		result: &entity.ExtractionResult{Status: pipeline.StatusError, Message: "scoring model unavailable"},
		err:    errors.New("scoring model unavailable"),
	}
	f := newFixture(t, pipe, 30)

	msg := entity.ExtractionRequestMessage{
		JobID:    uuid.New(),
		MediaID:  uuid.New(),
		UserID:   "user-1",
		VideoKey: "user-1/video.mp4",
	}

	err := f.uc.Execute(context.Background(), requestBody(t, msg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retryable failure")

	job := f.repo.jobs[msg.JobID]
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "scoring model unavailable")

	assert.Empty(t, f.dlq.reasons)
	require.Len(t, f.publisher.messages, 1)
	assert.Equal(t, entity.JobStatusFailed, f.publisher.messages[0].Status)
	assert.Empty(t, f.store.saved)
}

func TestExecuteExhaustedRetriesPermanentFailure(t *testing.T) {
	f := newFixture(t, &fakePipeline{}, 0)

	msg := entity.ExtractionRequestMessage{
		JobID:     uuid.New(),
		MediaID:   uuid.New(),
		UserID:    "user-1",
		VideoKey:  "user-1/video.mp4",
		UserEmail: "user@example.com",
	}

	job := entity.NewExtractionJob(msg.MediaID, msg.UserID, msg.VideoKey, 0, 3)
	job.ID = msg.JobID
	job.Attempt = 3
	f.repo.jobs[job.ID] = job

	err := f.uc.Execute(context.Background(), requestBody(t, msg))
	require.NoError(t, err)

	assert.Equal(t, entity.JobStatusFailed, f.repo.jobs[msg.JobID].Status)
	require.Len(t, f.dlq.reasons, 1)
	assert.Contains(t, f.dlq.reasons[0], "max retries exceeded")
	assert.Equal(t, []string{"user@example.com"}, f.notifier.notified)
}

func TestExecuteDownloadFailureMarksFailed(t *testing.T) {
	f := newFixture(t, &fakePipeline{}, 0)
	f.storage.downloadErr = errors.New("object not found")

	msg := entity.ExtractionRequestMessage{
		JobID:    uuid.New(),
		MediaID:  uuid.New(),
		UserID:   "user-1",
		VideoKey: "user-1/missing.mp4",
	}

	err := f.uc.Execute(context.Background(), requestBody(t, msg))
	require.Error(t, err)

	job := f.repo.jobs[msg.JobID]
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "download_video")
}

func TestExecuteEmptyKeyframesSkipsPersistence(t *testing.T) {
	pipe := &fakePipeline{result: &entity.ExtractionResult{
		Status:         pipeline.StatusSuccess,
		ShotBoundaries: []int{},
		Keyframes:      []int{},
	}}
	f := newFixture(t, pipe, 0)

	msg := entity.ExtractionRequestMessage{
		JobID:    uuid.New(),
		MediaID:  uuid.New(),
		UserID:   "user-1",
		VideoKey: "user-1/empty.mp4",
	}

	err := f.uc.Execute(context.Background(), requestBody(t, msg))
	require.NoError(t, err)

	assert.Empty(t, f.store.saved)
	assert.Equal(t, entity.JobStatusCompleted, f.repo.jobs[msg.JobID].Status)
}
