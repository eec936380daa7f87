package boundary

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duongtq7/CapstoneProject/internal/domain/entity"
)

// scriptedScorer returns pre-set scores by frame index and records call sizes.
type scriptedScorer struct {
	scores     map[int]float64
	chunkSizes []int
	err        error
}

func (s *scriptedScorer) Score(_ context.Context, chunk []entity.Frame) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.chunkSizes = append(s.chunkSizes, len(chunk))
	out := make([]float64, len(chunk))
	for i, f := range chunk {
		out[i] = s.scores[f.Index]
	}
	return out, nil
}

func frames(n int) []entity.Frame {
	fs := make([]entity.Frame, n)
	for i := range fs {
		fs[i] = entity.Frame{Index: i, Width: 48, Height: 27}
	}
	return fs
}

func TestDetectEmptyInput(t *testing.T) {
	d := NewDetector(&scriptedScorer{}, 0, 0)
	boundaries, scores, err := d.Detect(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, boundaries)
	assert.Empty(t, scores)
}

func TestDetectThresholdIsStrict(t *testing.T) {
	scorer := &scriptedScorer{scores: map[int]float64{3: 0.5, 4: 0.51, 7: 0.9}}
	d := NewDetector(scorer, 0.5, 32)

	boundaries, scores, err := d.Detect(context.Background(), frames(10))
	require.NoError(t, err)
	// 0.5 exactly is not a boundary.
	assert.Equal(t, []int{4, 7}, boundaries)
	assert.Len(t, scores, 10)
}

func TestDetectChunksBoundedAndResultInvariant(t *testing.T) {
	scores := map[int]float64{0: 0.8, 31: 0.7, 32: 0.6, 69: 0.95}
	chunked := &scriptedScorer{scores: scores}
	whole := &scriptedScorer{scores: scores}

	got, _, err := NewDetector(chunked, 0.5, 32).Detect(context.Background(), frames(70))
	require.NoError(t, err)
	want, _, err := NewDetector(whole, 0.5, 70).Detect(context.Background(), frames(70))
	require.NoError(t, err)

	assert.Equal(t, want, got, "chunking must not change detections")
	assert.Equal(t, []int{32, 32, 6}, chunked.chunkSizes, "last chunk may be shorter")
	assert.Equal(t, []int{0, 31, 32, 69}, got)
}

func TestDetectScorerFailureAbortsWholeDetection(t *testing.T) {
	scorer := &scriptedScorer{err: errors.New("device lost")}
	d := NewDetector(scorer, 0.5, 32)

	boundaries, scores, err := d.Detect(context.Background(), frames(5))
	require.Error(t, err)
	assert.Nil(t, boundaries)
	assert.Nil(t, scores)
}

func TestDetectRejectsMalformedScorerOutput(t *testing.T) {
	short := &truncatingScorer{}
	d := NewDetector(short, 0.5, 32)
	_, _, err := d.Detect(context.Background(), frames(4))
	require.Error(t, err)
}

type truncatingScorer struct{}

func (truncatingScorer) Score(_ context.Context, chunk []entity.Frame) ([]float64, error) {
	return make([]float64, len(chunk)-1), nil
}
