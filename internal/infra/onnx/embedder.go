package onnx

import (
	"context"
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/duongtq7/CapstoneProject/internal/domain/entity"
)

const (
	embedderInputName  = "pixel_values"
	embedderOutputName = "image_embeds"
	embedderSize       = 224
)

// CLIP preprocessing constants (per-channel mean/std on [0,1] RGB).
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// ImageEmbedder runs the CLIP vision encoder, mapping one full-resolution
// frame to a fixed-length feature vector.
type ImageEmbedder struct {
	session *ort.DynamicAdvancedSession
	logger  *zap.Logger
}

func NewImageEmbedder(modelPath string, logger *zap.Logger) (*ImageEmbedder, error) {
	opts, err := newSessionOptions(logger)
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{embedderInputName},
		[]string{embedderOutputName},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("load embedding model %q: %w", modelPath, err)
	}
	return &ImageEmbedder{session: session, logger: logger}, nil
}

func (e *ImageEmbedder) Embed(ctx context.Context, frame entity.Frame) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := preprocess(frame)
	if err != nil {
		return nil, err
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, embedderSize, embedderSize), data)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("run embedding model: %w", err)
	}
	defer outputs[0].Destroy()

	embeds, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("embedding model returned %T, want float32 tensor", outputs[0])
	}

	vec := make([]float32, len(embeds.GetData()))
	copy(vec, embeds.GetData())
	return vec, nil
}

func (e *ImageEmbedder) Close() error {
	return e.session.Destroy()
}

// preprocess resizes the RGB24 frame to 224x224 with bilinear interpolation
// and normalizes it into an NCHW tensor.
func preprocess(frame entity.Frame) ([]float32, error) {
	if len(frame.Pixels) != frame.Width*frame.Height*3 {
		return nil, fmt.Errorf("frame %d has %d pixel bytes for %dx%d", frame.Index, len(frame.Pixels), frame.Width, frame.Height)
	}

	src := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for i := 0; i < frame.Width*frame.Height; i++ {
		src.Pix[i*4+0] = frame.Pixels[i*3+0]
		src.Pix[i*4+1] = frame.Pixels[i*3+1]
		src.Pix[i*4+2] = frame.Pixels[i*3+2]
		src.Pix[i*4+3] = 0xff
	}

	dst := image.NewRGBA(image.Rect(0, 0, embedderSize, embedderSize))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	plane := embedderSize * embedderSize
	data := make([]float32, 3*plane)
	for i := 0; i < plane; i++ {
		for c := 0; c < 3; c++ {
			v := float32(dst.Pix[i*4+c]) / 255
			data[c*plane+i] = (v - clipMean[c]) / clipStd[c]
		}
	}
	return data, nil
}
