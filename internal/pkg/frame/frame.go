// Package frame decodes uploaded camera frames and prepares them for the
// face encoder and the reference-image store.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // decoder registration
	"image/jpeg"
	_ "image/png" // decoder registration
	"io"

	_ "golang.org/x/image/bmp" // decoder registration
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // decoder registration
)

// JPEGQuality is used for every encode.
const JPEGQuality = 85

// ErrEmptyFrame is returned for zero-length uploads or zero-sized images.
var ErrEmptyFrame = errors.New("frame: empty image")

// Decode reads one image in any registered format (jpeg, png, gif, bmp, webp).
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("frame: decode: %w", err)
	}

	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, ErrEmptyFrame
	}

	return img, nil
}

// Fit scales img down so that neither side exceeds maxSide, keeping aspect
// ratio. Images already within bounds, or maxSide <= 0, are returned as is.
func Fit(img image.Image, maxSide int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if maxSide <= 0 || (width <= maxSide && height <= maxSide) {
		return img
	}

	newWidth, newHeight := maxSide, maxSide
	if width > height {
		newHeight = max(1, height*maxSide/width)
	} else {
		newWidth = max(1, width*maxSide/height)
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	return resized
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("frame: encode: %w", err)
	}
	return buf.Bytes(), nil
}
