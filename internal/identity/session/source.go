package session

import (
	"context"
	"image"

	"github.com/shandysiswandi/facegate/internal/identity/entity"
)

// FrameSource yields frames on demand. ok is false when no frame is
// available right now; that is not an error.
type FrameSource interface {
	NextFrame(ctx context.Context) (img image.Image, ok bool, err error)
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func(ctx context.Context) (image.Image, bool, error)

func (f FrameSourceFunc) NextFrame(ctx context.Context) (image.Image, bool, error) {
	return f(ctx)
}

// SingleFrame hands out one frame, then reports none available.
type SingleFrame struct {
	img image.Image
}

func NewSingleFrame(img image.Image) *SingleFrame {
	return &SingleFrame{img: img}
}

func (s *SingleFrame) NextFrame(context.Context) (image.Image, bool, error) {
	if s.img == nil {
		return nil, false, nil
	}
	img := s.img
	s.img = nil
	return img, true, nil
}

// Extractor finds faces in a frame and encodes each of them. Order carries no
// meaning beyond which face was detected first.
type Extractor interface {
	DetectAndEncode(ctx context.Context, img image.Image) ([]entity.Detection, error)
}
