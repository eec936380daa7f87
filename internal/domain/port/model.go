package port

import (
	"context"

	"github.com/duongtq7/CapstoneProject/internal/domain/entity"
)

// TransitionScorer scores a chunk of downsampled frames, returning one
// shot-transition probability in [0,1] per input frame, in input order.
type TransitionScorer interface {
	Score(ctx context.Context, chunk []entity.Frame) ([]float64, error)
}

// EmbeddingProvider maps one full-resolution frame to a feature vector of
// fixed, provider-defined dimensionality.
type EmbeddingProvider interface {
	Embed(ctx context.Context, frame entity.Frame) ([]float32, error)
}
