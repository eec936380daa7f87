package port

import "context"

// FrameKind tags a frame handed to a FrameSink.
type FrameKind string

const (
	FrameKindBoundary FrameKind = "boundary"
	FrameKindKeyframe FrameKind = "keyframe"
)

// FrameSink receives detected boundary frames and selected keyframes with
// their full-resolution pixel data. It is pure fan-out for persistence: sink
// errors never change the extraction result.
type FrameSink interface {
	WriteFrame(ctx context.Context, kind FrameKind, frameIndex int, width, height int, pixels []byte) error
}

// VideoStorage fetches uploaded videos and produces per-media frame sinks.
type VideoStorage interface {
	DownloadVideo(ctx context.Context, objectKey string, destPath string) error
	FrameSink(mediaID string) FrameSink
}
