package port

import (
	"context"

	"github.com/duongtq7/CapstoneProject/internal/domain/entity"
	"github.com/google/uuid"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.ExtractionJob) error
	Update(ctx context.Context, job *entity.ExtractionJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ExtractionJob, error)
}

// KeyframeRecord is one selected keyframe with the embedding persisted for
// similarity search.
type KeyframeRecord struct {
	MediaID   uuid.UUID
	JobID     uuid.UUID
	FrameIdx  int
	Embedding []float32
}

type KeyframeStore interface {
	SaveKeyframes(ctx context.Context, records []KeyframeRecord) error
}
