package onnx

import (
	"context"
	"fmt"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/duongtq7/CapstoneProject/internal/domain/entity"
)

// TransNetV2 input layout: [batch, frames, height, width, channels] uint8.
const (
	scorerInputName  = "frames"
	scorerOutputName = "single_frame_pred"
	scorerWidth      = 48
	scorerHeight     = 27
)

// TransitionScorer runs the TransNetV2 shot transition model over chunks of
// downsampled frames.
type TransitionScorer struct {
	session *ort.DynamicAdvancedSession
	logger  *zap.Logger
}

func NewTransitionScorer(modelPath string, logger *zap.Logger) (*TransitionScorer, error) {
	opts, err := newSessionOptions(logger)
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{scorerInputName},
		[]string{scorerOutputName},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("load transition model %q: %w", modelPath, err)
	}
	return &TransitionScorer{session: session, logger: logger}, nil
}

// Score returns one transition probability per frame in the chunk. The model
// emits logits; the sigmoid is applied here.
func (s *TransitionScorer) Score(ctx context.Context, chunk []entity.Frame) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(chunk) == 0 {
		return []float64{}, nil
	}

	frameSize := scorerWidth * scorerHeight * 3
	data := make([]uint8, 0, len(chunk)*frameSize)
	for _, f := range chunk {
		if f.Width != scorerWidth || f.Height != scorerHeight {
			return nil, fmt.Errorf("frame %d is %dx%d, scorer expects %dx%d",
				f.Index, f.Width, f.Height, scorerWidth, scorerHeight)
		}
		if len(f.Pixels) != frameSize {
			return nil, fmt.Errorf("frame %d has %d pixel bytes, want %d", f.Index, len(f.Pixels), frameSize)
		}
		data = append(data, f.Pixels...)
	}

	shape := ort.NewShape(1, int64(len(chunk)), scorerHeight, scorerWidth, 3)
	input, err := ort.NewTensor(shape, data)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("run transition model: %w", err)
	}
	defer outputs[0].Destroy()

	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("transition model returned %T, want float32 tensor", outputs[0])
	}
	raw := logits.GetData()
	if len(raw) < len(chunk) {
		return nil, fmt.Errorf("transition model returned %d predictions for %d frames", len(raw), len(chunk))
	}

	scores := make([]float64, len(chunk))
	for i := range scores {
		scores[i] = sigmoid(float64(raw[i]))
	}
	return scores, nil
}

func (s *TransitionScorer) Close() error {
	return s.session.Destroy()
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
