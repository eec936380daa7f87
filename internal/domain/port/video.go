package port

import (
	"context"

	"github.com/duongtq7/CapstoneProject/internal/domain/entity"
)

// VideoSource exposes two views over a single decoded video: a cheap
// downsampled stream for transition scoring and full-resolution frames,
// fetched per shot, for feature extraction and output. Frame indices are
// zero-based and identical across both views.
type VideoSource interface {
	// TotalFrameCount reports the number of frames in the video.
	TotalFrameCount() int

	// ScoringFrames returns the downsampled frame sequence, in index order.
	ScoringFrames(ctx context.Context) ([]entity.Frame, error)

	// ShotFrames returns the full-resolution frames of one shot, in index order.
	ShotFrames(ctx context.Context, shot entity.Shot) ([]entity.Frame, error)

	Close() error
}

// VideoOpener opens a video file and prepares it for frame access.
type VideoOpener interface {
	Open(ctx context.Context, path string) (VideoSource, error)
}
