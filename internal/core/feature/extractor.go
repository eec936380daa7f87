// Package feature turns a shot's full-resolution frames into feature vectors
// via the external embedding provider.
package feature

import (
	"context"
	"fmt"

	"github.com/duongtq7/CapstoneProject/internal/domain/entity"
	"github.com/duongtq7/CapstoneProject/internal/domain/port"
)

type Extractor struct {
	provider port.EmbeddingProvider
}

func NewExtractor(provider port.EmbeddingProvider) *Extractor {
	return &Extractor{provider: provider}
}

// Extract embeds each frame in order, one provider call per frame. The
// provider's dimensionality must be constant; a mismatch, an empty vector, or
// any provider error fails the whole shot.
func (e *Extractor) Extract(ctx context.Context, frames []entity.Frame) ([][]float32, error) {
	vectors := make([][]float32, 0, len(frames))
	dim := 0
	for _, f := range frames {
		vec, err := e.provider.Embed(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("embed frame %d: %w", f.Index, err)
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("embed frame %d: provider returned empty vector", f.Index)
		}
		if dim == 0 {
			dim = len(vec)
		} else if len(vec) != dim {
			return nil, fmt.Errorf("embed frame %d: dimensionality changed from %d to %d", f.Index, dim, len(vec))
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}
