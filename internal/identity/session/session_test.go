package session

import (
	"context"
	"image"
	"time"

	"github.com/shandysiswandi/facegate/internal/identity/entity"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// stubExtractor returns the detections registered for a frame.
type stubExtractor struct {
	faces map[image.Image][]entity.Detection
	err   error
	calls int
}

func (s *stubExtractor) DetectAndEncode(_ context.Context, img image.Image) ([]entity.Detection, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.faces[img], nil
}

func newFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}

func face(enc ...float32) entity.Detection {
	return entity.Detection{Box: entity.BoundingBox{Right: 2, Bottom: 2}, Encoding: enc}
}
