package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/identity/session"
	"github.com/shandysiswandi/facegate/internal/pkg/frame"
	"github.com/shandysiswandi/facegate/internal/pkg/goerror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type pendingRegistration struct {
	id  string
	reg *session.Registration
}

type RegisterInput struct {
	Identity string `validate:"required,identity,max=64"`
}

type RegisterOutput struct {
	RegistrationID  string
	Identity        string
	Secret          string
	ProvisioningURI string
	FrameBudget     int
	ExpiresAt       time.Time
}

// Register creates the OTP secret for a new identity and opens a
// registration that waits for a face. The registration is reserved before
// the secret is written, so one identity never has two secrets in flight,
// and the secret is stored before any frame is accepted so a committed face
// always has a secret next to it.
func (s *Usecase) Register(ctx context.Context, in RegisterInput) (*RegisterOutput, error) {
	ctx, span := s.startSpan(ctx, "Register")
	defer span.End()

	in.Identity = strings.TrimSpace(in.Identity)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	s.sweep(ctx)

	id := entity.Identity(in.Identity)
	now := s.clock.Now()
	cfg := s.registrationConfig()
	reg := session.NewRegistration(id, now, cfg, s.enrollment, s.extractor)
	p := &pendingRegistration{id: s.uuid.Generate(), reg: reg}
	expires := now.Add(cfg.Timeout + s.grace())

	sameIdentity := func(o *pendingRegistration) bool { return o.reg.Identity() == id }
	if _, ok := s.registrations.reserve(ctx, p.id, p, expires, sameIdentity); !ok {
		slog.WarnContext(ctx, "registration already in progress", "identity", id)
		return nil, goerror.NewBusiness("Registration already in progress", goerror.CodeConflict)
	}

	// a registration that committed enrolled before it left the registry, so
	// this lookup cannot miss it once the reservation is held
	if _, ok := s.enrollment.Lookup(id); ok {
		s.registrations.remove(ctx, p.id)
		slog.WarnContext(ctx, "identity already enrolled", "identity", id)
		return nil, goerror.NewBusiness("Identity already registered", goerror.CodeConflict)
	}

	secret, uri, err := s.totp.Generate(in.Identity)
	if err != nil {
		s.registrations.remove(ctx, p.id)
		slog.ErrorContext(ctx, "failed to generate otp secret", "identity", id, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.repoSecret.PutSecret(ctx, id, secret); err != nil {
		s.registrations.remove(ctx, p.id)
		slog.ErrorContext(ctx, "failed to store otp secret", "identity", id, "error", err)
		return nil, goerror.NewUnavailable(err)
	}

	if _, ok := s.registrations.get(p.id); !ok {
		// closed by shutdown or an admin delete while the secret was written
		if err := s.repoSecret.DeleteSecret(ctx, id); err != nil {
			slog.ErrorContext(ctx, "failed to delete secret of closed registration", "identity", id, "error", err)
		}
		return nil, goerror.NewBusiness("Registration closed", goerror.CodeGone)
	}

	slog.InfoContext(ctx, "registration started", "identity", id, "registration_id", p.id)

	return &RegisterOutput{
		RegistrationID:  p.id,
		Identity:        in.Identity,
		Secret:          secret,
		ProvisioningURI: uri,
		FrameBudget:     reg.FramesLeft(),
		ExpiresAt:       expires,
	}, nil
}

func (s *Usecase) discardRegistration(ctx context.Context, p *pendingRegistration) {
	id := p.reg.Identity()
	if err := s.repoSecret.DeleteSecret(ctx, id); err != nil {
		slog.ErrorContext(ctx, "failed to delete secret of abandoned registration", "identity", id, "error", err)
	}
	s.countRegistration(ctx, p.reg.State())
}

type RegisterFrameInput struct {
	RegistrationID string `validate:"required,uuid"`
	Frame          []byte `validate:"required"`
}

type RegisterFrameOutput struct {
	RegistrationID string
	Identity       string
	State          string
	FramesLeft     int
}

// RegisterFrame offers one uploaded frame to a pending registration. The
// first frame with a face is enrolled and the registration is closed.
func (s *Usecase) RegisterFrame(ctx context.Context, in RegisterFrameInput) (*RegisterFrameOutput, error) {
	ctx, span := s.startSpan(ctx, "RegisterFrame")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	s.sweep(ctx)

	p, ok := s.registrations.get(in.RegistrationID)
	if !ok {
		return nil, goerror.NewBusiness("Registration not found", goerror.CodeNotFound)
	}

	var img image.Image
	if decoded, err := frame.Decode(bytes.NewReader(in.Frame)); err != nil {
		// an unreadable upload spends budget like a frame without a face
		slog.WarnContext(ctx, "registration frame is not a readable image", "registration_id", p.id, "error", err)
	} else {
		img = decoded
	}

	state, err := p.reg.Offer(ctx, s.clock.Now(), img)
	out := &RegisterFrameOutput{
		RegistrationID: p.id,
		Identity:       p.reg.Identity().String(),
		State:          state.String(),
		FramesLeft:     p.reg.FramesLeft(),
	}

	if state.IsTerminal() && !errors.Is(err, entity.ErrSessionClosed) {
		if _, removed := s.registrations.remove(ctx, p.id); removed {
			switch {
			case state == entity.RegistrationCommitted:
				s.commitRegistration(ctx, p)
			case errors.Is(err, entity.ErrAlreadyEnrolled):
				// the enrolled face may already rely on the stored secret
				s.countRegistration(ctx, state)
			default:
				s.discardRegistration(ctx, p)
			}
		}
	}

	if err == nil {
		return out, nil
	}

	switch {
	case errors.Is(err, entity.ErrSessionClosed):
		return nil, goerror.NewBusiness("Registration already finished", goerror.CodeGone)
	case errors.Is(err, entity.ErrNoFaceDetected):
		slog.InfoContext(ctx, "registration abandoned without a face", "identity", p.reg.Identity(), "frames", p.reg.Frames())
		return nil, goerror.NewBusiness("No face detected", goerror.CodeUnprocessable)
	case errors.Is(err, entity.ErrAlreadyEnrolled):
		slog.WarnContext(ctx, "identity enrolled by another registration", "identity", p.reg.Identity())
		return nil, goerror.NewBusiness("Identity already registered", goerror.CodeConflict)
	case errors.Is(err, entity.ErrDimensionMismatch):
		slog.ErrorContext(ctx, "extractor encoding does not fit the enrolled set", "identity", p.reg.Identity(), "error", err)
		return nil, goerror.NewServer(err)
	default:
		slog.ErrorContext(ctx, "registration frame failed", "identity", p.reg.Identity(), "state", state, "error", err)
		return nil, goerror.NewUnavailable(err)
	}
}

func (s *Usecase) commitRegistration(ctx context.Context, p *pendingRegistration) {
	s.countRegistration(ctx, entity.RegistrationCommitted)

	id := p.reg.Identity()
	slog.InfoContext(ctx, "face enrolled", "identity", id, "frames", p.reg.Frames())

	if s.repoReference != nil {
		if err := s.repoReference.SaveReference(ctx, id, p.reg.Reference()); err != nil {
			slog.ErrorContext(ctx, "failed to save reference image", "identity", id, "error", err)
		}
	}

	enrolledAt := s.clock.Now()
	if rec, ok := s.enrollment.Lookup(id); ok {
		enrolledAt = rec.EnrolledAt
	}

	s.publish(ctx, "publish face enrolled", func(ctx context.Context) error {
		return s.repoMessaging.PublishFaceEnrolled(ctx, FaceEnrolledEvent{
			Identity:   id.String(),
			EnrolledAt: enrolledAt,
		})
	})
}

type RegisterCancelInput struct {
	RegistrationID string `validate:"required,uuid"`
}

// RegisterCancel abandons a pending registration and drops its secret.
func (s *Usecase) RegisterCancel(ctx context.Context, in RegisterCancelInput) error {
	ctx, span := s.startSpan(ctx, "RegisterCancel")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	p, ok := s.registrations.remove(ctx, in.RegistrationID)
	if !ok {
		return goerror.NewBusiness("Registration not found", goerror.CodeNotFound)
	}

	p.reg.Abandon()
	s.discardRegistration(ctx, p)

	slog.InfoContext(ctx, "registration cancelled", "identity", p.reg.Identity(), "registration_id", p.id)
	return nil
}

func (s *Usecase) countRegistration(ctx context.Context, state entity.RegistrationState) {
	if s.registrationFinished != nil {
		s.registrationFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state.String())))
	}
}
