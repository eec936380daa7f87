// Package video adapts ffmpeg decoding to the pipeline's VideoSource port.
package video

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"

	"github.com/duongtq7/CapstoneProject/internal/domain/entity"
	"github.com/duongtq7/CapstoneProject/internal/domain/port"
)

// TransNetV2 consumes 48x27 RGB frames.
const (
	DefaultScoringWidth  = 48
	DefaultScoringHeight = 27
)

type FFmpegOpener struct {
	scoringWidth  int
	scoringHeight int
	logger        *zap.Logger
}

func NewOpener(scoringWidth, scoringHeight int, logger *zap.Logger) *FFmpegOpener {
	if scoringWidth <= 0 {
		scoringWidth = DefaultScoringWidth
	}
	if scoringHeight <= 0 {
		scoringHeight = DefaultScoringHeight
	}
	return &FFmpegOpener{scoringWidth: scoringWidth, scoringHeight: scoringHeight, logger: logger}
}

// Open probes the file and decodes the downsampled scoring stream. The total
// frame count comes from the decode itself rather than container metadata,
// which is unreliable for some formats. Full-resolution frames are decoded
// lazily per shot so long videos never need a resident full-res copy.
func (o *FFmpegOpener) Open(ctx context.Context, path string) (port.VideoSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("video file not readable at %q: %w", path, err)
	}

	probe, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, fmt.Errorf("ffprobe %q: %w", path, err)
	}
	stream := gjson.Get(probe, `streams.#(codec_type=="video")`)
	if !stream.Exists() {
		return nil, fmt.Errorf("no video stream in %q", path)
	}
	width := int(stream.Get("width").Int())
	height := int(stream.Get("height").Int())
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid video dimensions %dx%d in %q", width, height, path)
	}

	scoring, err := decodeRawFrames(path, o.scoringWidth, o.scoringHeight, -1, -1)
	if err != nil {
		return nil, fmt.Errorf("decode scoring stream: %w", err)
	}

	o.logger.Debug("video opened",
		zap.String("path", path),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("frames", len(scoring)),
	)

	return &source{
		path:    path,
		width:   width,
		height:  height,
		scoring: scoring,
	}, nil
}

type source struct {
	path    string
	width   int
	height  int
	scoring []entity.Frame
}

func (s *source) TotalFrameCount() int {
	return len(s.scoring)
}

func (s *source) ScoringFrames(ctx context.Context) ([]entity.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.scoring, nil
}

func (s *source) ShotFrames(ctx context.Context, shot entity.Shot) ([]entity.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if shot.Start < 0 || shot.End > len(s.scoring) || shot.Start > shot.End {
		return nil, fmt.Errorf("shot [%d,%d) outside video of %d frames", shot.Start, shot.End, len(s.scoring))
	}
	if shot.Len() == 0 {
		return []entity.Frame{}, nil
	}

	frames, err := decodeRawFrames(s.path, s.width, s.height, shot.Start, shot.End)
	if err != nil {
		return nil, fmt.Errorf("decode shot [%d,%d): %w", shot.Start, shot.End, err)
	}
	if len(frames) != shot.Len() {
		return nil, fmt.Errorf("decoded %d frames for shot [%d,%d)", len(frames), shot.Start, shot.End)
	}
	for i := range frames {
		frames[i].Index = shot.Start + i
	}
	return frames, nil
}

func (s *source) Close() error {
	s.scoring = nil
	return nil
}

// decodeRawFrames pipes rawvideo RGB24 out of ffmpeg and slices it into
// frames. start/end select a half-open frame range; pass -1/-1 for the whole
// file. Width and height select the output scale.
func decodeRawFrames(path string, width, height, start, end int) ([]entity.Frame, error) {
	in := ffmpeg.Input(path)
	if start >= 0 {
		in = in.Filter("select", ffmpeg.Args{fmt.Sprintf(`between(n\,%d\,%d)`, start, end-1)})
	}
	stream := in.Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", width, height)})

	var buf bytes.Buffer
	err := stream.
		Output("pipe:", ffmpeg.KwArgs{"format": "rawvideo", "pix_fmt": "rgb24", "vsync": "0"}).
		WithOutput(&buf).
		Silent(true).
		Run()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg rawvideo decode: %w", err)
	}

	frameSize := width * height * 3
	data := buf.Bytes()
	if len(data)%frameSize != 0 {
		return nil, fmt.Errorf("rawvideo output %d bytes is not a multiple of frame size %d", len(data), frameSize)
	}

	frames := make([]entity.Frame, 0, len(data)/frameSize)
	for off := 0; off < len(data); off += frameSize {
		pixels := make([]byte, frameSize)
		copy(pixels, data[off:off+frameSize])
		frames = append(frames, entity.Frame{
			Index:  len(frames),
			Width:  width,
			Height: height,
			Pixels: pixels,
		})
	}
	return frames, nil
}
