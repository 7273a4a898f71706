package session

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/pkg/clock"
)

// DefaultFrameBudget is how many frames a registration samples before it
// gives up on finding a face.
const DefaultFrameBudget = 30

// Enroller is the write side of the enrollment manager.
type Enroller interface {
	Enroll(ctx context.Context, id entity.Identity, enc entity.Encoding) error
	EnrollOrReplace(ctx context.Context, id entity.Identity, enc entity.Encoding) error
}

// RegistrationConfig bounds a Registration. Timeout 0 disables the time
// budget; FrameBudget <= 0 means DefaultFrameBudget.
type RegistrationConfig struct {
	FrameBudget int
	Timeout     time.Duration
	Replace     bool
}

// Registration captures the first face seen for a new identity and enrolls it.
type Registration struct {
	identity  entity.Identity
	enroller  Enroller
	extractor Extractor
	budget    int
	replace   bool
	startedAt time.Time
	deadline  time.Time

	mu       sync.Mutex
	state    entity.RegistrationState
	frames   int
	encoding entity.Encoding
	captured image.Image
}

func NewRegistration(id entity.Identity, now time.Time, cfg RegistrationConfig, enroller Enroller, extractor Extractor) *Registration {
	budget := cfg.FrameBudget
	if budget <= 0 {
		budget = DefaultFrameBudget
	}

	var deadline time.Time
	if cfg.Timeout > 0 {
		deadline = now.Add(cfg.Timeout)
	}

	return &Registration{
		identity:  id,
		enroller:  enroller,
		extractor: extractor,
		budget:    budget,
		replace:   cfg.Replace,
		startedAt: now,
		deadline:  deadline,
		state:     entity.RegistrationAwaitingFace,
	}
}

// Offer feeds one sampled frame. A nil img counts as a frame without a face.
//
// It returns entity.ErrNoFaceDetected when the frame or time budget runs out,
// the enroll error when the commit fails, and entity.ErrSessionClosed once the
// registration is terminal.
func (r *Registration) Offer(ctx context.Context, now time.Time, img image.Image) (entity.RegistrationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.IsTerminal() {
		return r.state, entity.ErrSessionClosed
	}

	if !r.deadline.IsZero() && !now.Before(r.deadline) {
		r.state = entity.RegistrationAbandoned
		return r.state, entity.ErrNoFaceDetected
	}

	r.frames++

	var dets []entity.Detection
	if img != nil {
		var err error
		if dets, err = r.extractor.DetectAndEncode(ctx, img); err != nil {
			if r.frames >= r.budget {
				r.state = entity.RegistrationAbandoned
				return r.state, fmt.Errorf("%w: last frame failed: %w", entity.ErrNoFaceDetected, err)
			}
			return r.state, err
		}
	}

	if len(dets) == 0 {
		if r.frames >= r.budget {
			r.state = entity.RegistrationAbandoned
			return r.state, entity.ErrNoFaceDetected
		}
		return r.state, nil
	}

	r.state = entity.RegistrationCaptured
	r.encoding = dets[0].Encoding.Clone()
	r.captured = img

	enroll := r.enroller.Enroll
	if r.replace {
		enroll = r.enroller.EnrollOrReplace
	}
	if err := enroll(ctx, r.identity, r.encoding); err != nil {
		r.state = entity.RegistrationAbandoned
		return r.state, err
	}

	r.state = entity.RegistrationCommitted
	return r.state, nil
}

// Run pulls frames from source until the registration is terminal or ctx is
// done. A frame source that has nothing available still spends budget.
func (r *Registration) Run(ctx context.Context, clk clock.Clocker, source FrameSource) (entity.RegistrationState, error) {
	for {
		if err := ctx.Err(); err != nil {
			return r.Abandon(), err
		}

		img, ok, err := source.NextFrame(ctx)
		if err != nil {
			return r.Abandon(), err
		}
		if !ok {
			img = nil
		}

		state, err := r.Offer(ctx, clk.Now(), img)
		if state.IsTerminal() {
			return state, err
		}
	}
}

// Abandon stops a registration that has not committed.
func (r *Registration) Abandon() entity.RegistrationState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.state.IsTerminal() {
		r.state = entity.RegistrationAbandoned
	}
	return r.state
}

func (r *Registration) State() entity.RegistrationState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Frames is the number of frames consumed so far.
func (r *Registration) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.frames
}

// FramesLeft is the remaining frame budget.
func (r *Registration) FramesLeft() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return max(r.budget-r.frames, 0)
}

// Reference is the frame the face was captured from, nil until Captured.
func (r *Registration) Reference() image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.captured
}

func (r *Registration) Encoding() entity.Encoding {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.encoding
}

func (r *Registration) Identity() entity.Identity { return r.identity }

func (r *Registration) StartedAt() time.Time { return r.startedAt }

// Deadline is zero when no time budget was set.
func (r *Registration) Deadline() time.Time { return r.deadline }
