// Package pipeline sequences shot boundary detection, segmentation, feature
// extraction and keyframe selection for one video.
package pipeline

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/duongtq7/CapstoneProject/internal/core/boundary"
	"github.com/duongtq7/CapstoneProject/internal/core/feature"
	"github.com/duongtq7/CapstoneProject/internal/core/keyframe"
	"github.com/duongtq7/CapstoneProject/internal/core/shot"
	"github.com/duongtq7/CapstoneProject/internal/domain/entity"
	"github.com/duongtq7/CapstoneProject/internal/domain/port"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Options carries per-request overrides; zero values select the defaults
// (threshold 0.5, chunk size 32, minimum cluster size 60).
type Options struct {
	Threshold      float64
	ChunkSize      int
	MinClusterSize int
}

type Pipeline struct {
	scorer   port.TransitionScorer
	embedder port.EmbeddingProvider
	logger   *zap.Logger
}

func New(scorer port.TransitionScorer, embedder port.EmbeddingProvider, logger *zap.Logger) *Pipeline {
	return &Pipeline{scorer: scorer, embedder: embedder, logger: logger}
}

// Run executes the full extraction over one video source. The pipeline is a
// synchronous batch computation; the only blocking work is the injected model
// calls. sink, when non-nil, receives each boundary frame and keyframe with
// full-resolution pixels; sink errors are logged and never affect the result.
//
// On failure the returned result has status "error", null index lists and a
// populated message, alongside the typed error.
func (p *Pipeline) Run(ctx context.Context, source port.VideoSource, opts Options, sink port.FrameSink) (*entity.ExtractionResult, error) {
	total := source.TotalFrameCount()
	if total == 0 {
		// An empty video is not an error.
		return &entity.ExtractionResult{
			Status:         StatusSuccess,
			ShotBoundaries: []int{},
			Keyframes:      []int{},
		}, nil
	}

	scoringFrames, err := source.ScoringFrames(ctx)
	if err != nil {
		return errorResult(wrap(KindInvalidInput, "read scoring frames", err))
	}

	detector := boundary.NewDetector(p.scorer, opts.Threshold, opts.ChunkSize)
	boundaries, _, err := detector.Detect(ctx, scoringFrames)
	if err != nil {
		return errorResult(wrap(KindModelFailure, "detect shot boundaries", err))
	}
	p.logger.Info("shot boundaries detected",
		zap.Int("count", len(boundaries)),
		zap.Int("total_frames", total),
	)

	shots := shot.Segment(boundaries, total)
	extractor := feature.NewExtractor(p.embedder)
	selector := keyframe.NewSelector(opts.MinClusterSize)
	boundarySet := make(map[int]bool, len(boundaries))
	for _, b := range boundaries {
		boundarySet[b] = true
	}

	keyframes := []int{}
	for _, s := range shots {
		if s.Len() == 0 {
			continue
		}

		frames, err := source.ShotFrames(ctx, s)
		if err != nil {
			return errorResult(wrap(KindInvalidInput, "read shot frames", err))
		}

		vectors, err := extractor.Extract(ctx, frames)
		if err != nil {
			return errorResult(wrap(KindModelFailure, "extract features", err))
		}

		indices := make([]int, len(frames))
		for i, f := range frames {
			indices[i] = f.Index
		}
		selected := selector.Select(indices, vectors)
		keyframes = append(keyframes, selected...)

		if sink != nil {
			if boundarySet[s.Start] {
				p.emit(ctx, sink, port.FrameKindBoundary, frames[0])
			}
			for _, k := range selected {
				p.emit(ctx, sink, port.FrameKindKeyframe, frames[k-s.Start])
			}
		}
	}

	sort.Ints(keyframes)
	keyframes = dedupe(keyframes)
	p.logger.Info("keyframes selected", zap.Int("count", len(keyframes)))

	return &entity.ExtractionResult{
		Status:         StatusSuccess,
		ShotBoundaries: boundaries,
		Keyframes:      keyframes,
	}, nil
}

func (p *Pipeline) emit(ctx context.Context, sink port.FrameSink, kind port.FrameKind, f entity.Frame) {
	if err := sink.WriteFrame(ctx, kind, f.Index, f.Width, f.Height, f.Pixels); err != nil {
		p.logger.Warn("frame sink write failed",
			zap.String("kind", string(kind)),
			zap.Int("frame", f.Index),
			zap.Error(err),
		)
	}
}

func errorResult(err *Error) (*entity.ExtractionResult, error) {
	return &entity.ExtractionResult{
		Status:  StatusError,
		Message: err.Error(),
	}, err
}

func dedupe(sorted []int) []int {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}
