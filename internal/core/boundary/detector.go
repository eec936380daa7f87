// Package boundary detects shot transitions over the downsampled frame
// stream by thresholding per-frame probabilities from an external scorer.
package boundary

import (
	"context"
	"fmt"

	"github.com/duongtq7/CapstoneProject/internal/domain/entity"
	"github.com/duongtq7/CapstoneProject/internal/domain/port"
)

const (
	DefaultThreshold = 0.5
	DefaultChunkSize = 32
)

type Detector struct {
	scorer    port.TransitionScorer
	threshold float64
	chunkSize int
}

// NewDetector builds a detector around the given scorer. Non-positive
// threshold or chunk size fall back to the defaults.
func NewDetector(scorer port.TransitionScorer, threshold float64, chunkSize int) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Detector{scorer: scorer, threshold: threshold, chunkSize: chunkSize}
}

// Detect scores frames in chunks of at most chunkSize and returns the indices
// whose probability strictly exceeds the threshold, along with the full score
// series. Chunking only bounds the scorer's per-call input; results are
// identical to scoring the whole sequence at once. A scorer failure on any
// chunk fails the whole detection.
func (d *Detector) Detect(ctx context.Context, frames []entity.Frame) ([]int, []float64, error) {
	if len(frames) == 0 {
		return []int{}, []float64{}, nil
	}

	scores := make([]float64, 0, len(frames))
	for start := 0; start < len(frames); start += d.chunkSize {
		end := start + d.chunkSize
		if end > len(frames) {
			end = len(frames)
		}
		chunk := frames[start:end]

		chunkScores, err := d.scorer.Score(ctx, chunk)
		if err != nil {
			return nil, nil, fmt.Errorf("score chunk at frame %d: %w", frames[start].Index, err)
		}
		if len(chunkScores) != len(chunk) {
			return nil, nil, fmt.Errorf("scorer returned %d scores for %d frames", len(chunkScores), len(chunk))
		}
		scores = append(scores, chunkScores...)
	}

	boundaries := []int{}
	for i, p := range scores {
		if p > d.threshold {
			boundaries = append(boundaries, frames[i].Index)
		}
	}
	return boundaries, scores, nil
}
