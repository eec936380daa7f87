package minio

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/duongtq7/CapstoneProject/internal/domain/port"
)

const jpegQuality = 90

type Storage struct {
	client       *miniogo.Client
	uploadBucket string
	framesBucket string
}

type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UploadBucket string
	FramesBucket string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:       client,
		uploadBucket: cfg.UploadBucket,
		framesBucket: cfg.FramesBucket,
	}, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.uploadBucket, s.framesBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

func (s *Storage) DownloadVideo(ctx context.Context, objectKey string, destPath string) error {
	return s.client.FGetObject(ctx, s.uploadBucket, objectKey, destPath, miniogo.GetObjectOptions{})
}

// FrameSink returns a sink uploading boundary frames and keyframes as JPEGs
// under the given media id.
func (s *Storage) FrameSink(mediaID string) port.FrameSink {
	return &frameSink{storage: s, mediaID: mediaID}
}

type frameSink struct {
	storage *Storage
	mediaID string
}

func (f *frameSink) WriteFrame(ctx context.Context, kind port.FrameKind, frameIndex, width, height int, pixels []byte) error {
	var key string
	switch kind {
	case port.FrameKindBoundary:
		key = fmt.Sprintf("%s/boundary_frames/frame_%d.jpg", f.mediaID, frameIndex)
	case port.FrameKindKeyframe:
		key = fmt.Sprintf("%s/keyframes/keyframe_%d.jpg", f.mediaID, frameIndex)
	default:
		return fmt.Errorf("unknown frame kind %q", kind)
	}

	data, err := encodeJPEG(width, height, pixels)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", frameIndex, err)
	}

	_, err = f.storage.client.PutObject(ctx, f.storage.framesBucket, key,
		bytes.NewReader(data), int64(len(data)),
		miniogo.PutObjectOptions{ContentType: "image/jpeg"},
	)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func encodeJPEG(width, height int, pixels []byte) ([]byte, error) {
	if len(pixels) != width*height*3 {
		return nil, fmt.Errorf("%d pixel bytes for %dx%d", len(pixels), width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		img.Pix[i*4+0] = pixels[i*3+0]
		img.Pix[i*4+1] = pixels[i*3+1]
		img.Pix[i*4+2] = pixels[i*3+2]
		img.Pix[i*4+3] = 0xff
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
