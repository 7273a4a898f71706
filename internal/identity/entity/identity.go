package entity

import (
	"slices"
	"time"

	"github.com/shandysiswandi/facegate/internal/pkg/facematch"
)

// Identity is the account name a person registered with. It keys the face
// encoding and the OTP secret.
type Identity string

func (i Identity) String() string { return string(i) }

// Encoding is the fixed-length vector the extractor produces for one face.
type Encoding []float32

// Clone returns a copy that does not share the backing array.
func (e Encoding) Clone() Encoding {
	return slices.Clone(e)
}

// EnrolledRecord is one identity's reference encoding.
type EnrolledRecord struct {
	Identity   Identity
	Encoding   Encoding
	EnrolledAt time.Time
}

// MatchResult is the outcome of comparing one encoding against the enrolled set.
type MatchResult = facematch.Result[Identity]

// BoundingBox locates a face inside a frame, in pixels.
type BoundingBox struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

// Area is the box surface; degenerate boxes return 0.
func (b BoundingBox) Area() int {
	w, h := b.Right-b.Left, b.Bottom-b.Top
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Detection is one face found in a frame together with its encoding.
type Detection struct {
	Box      BoundingBox
	Encoding Encoding
}

// Account is what the admin surface lists.
type Account struct {
	Identity   Identity
	EnrolledAt time.Time
	HasSecret  bool
}
