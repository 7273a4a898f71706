package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/identity/session"
	"github.com/shandysiswandi/facegate/internal/pkg/frame"
	"github.com/shandysiswandi/facegate/internal/pkg/goerror"
	"github.com/shandysiswandi/facegate/internal/pkg/jwt"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MethodOTP and MethodFace are the factors recorded in an access token.
const (
	MethodOTP  = "otp"
	MethodFace = "face"
)

type VerifyFrameInput struct {
	SessionID string `validate:"required,uuid"`
	Frame     []byte `validate:"required"`
}

type VerifyFrameOutput struct {
	SessionID   string
	Identity    string
	Status      string
	Ticks       int
	Distance    *float64
	Deadline    time.Time
	AccessToken string
}

// VerifyFrame runs one verification tick with the uploaded frame.
func (s *Usecase) VerifyFrame(ctx context.Context, in VerifyFrameInput) (*VerifyFrameOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyFrame")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	s.sweep(ctx)

	v, ok := s.verifications.get(in.SessionID)
	if !ok {
		return nil, goerror.NewBusiness("Verification session not found", goerror.CodeNotFound)
	}

	var img image.Image
	if decoded, err := frame.Decode(bytes.NewReader(in.Frame)); err != nil {
		slog.WarnContext(ctx, "verification frame is not a readable image", "session_id", in.SessionID, "error", err)
	} else {
		img = decoded
	}

	status, err := v.Tick(ctx, s.clock.Now(), session.NewSingleFrame(img))
	out := s.verifyOutput(in.SessionID, v)

	switch {
	case status == entity.SessionStatusAccepted:
		s.finishVerification(ctx, in.SessionID, v)

		token, err := s.jwt.Generate(jwt.Subject{
			Identity:  v.Claimed().String(),
			Role:      jwt.RoleUser,
			Methods:   []string{MethodOTP, MethodFace},
			SessionID: in.SessionID,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to issue access token", "identity", v.Claimed(), "error", err)
			return nil, goerror.NewServer(err)
		}

		slog.InfoContext(ctx, "verification accepted", "identity", v.Claimed(), "session_id", in.SessionID, "ticks", out.Ticks)
		out.AccessToken = token
		return out, nil

	case errors.Is(err, entity.ErrVerificationTimedOut):
		s.finishVerification(ctx, in.SessionID, v)
		slog.InfoContext(ctx, "verification timed out", "identity", v.Claimed(), "session_id", in.SessionID, "ticks", out.Ticks)
		return nil, goerror.NewBusiness("Verification timed out", goerror.CodeTimeout)

	case errors.Is(err, entity.ErrNotFound):
		v.Abort()
		s.finishVerification(ctx, in.SessionID, v)
		slog.WarnContext(ctx, "claimed identity removed during verification", "identity", v.Claimed(), "session_id", in.SessionID)
		return nil, goerror.NewBusiness("Identity not found", goerror.CodeNotFound)

	case errors.Is(err, entity.ErrDimensionMismatch):
		slog.ErrorContext(ctx, "extractor encoding does not fit the enrolled set", "session_id", in.SessionID, "error", err)
		return nil, goerror.NewServer(err)

	case err != nil:
		slog.ErrorContext(ctx, "verification tick failed", "session_id", in.SessionID, "error", err)
		return nil, goerror.NewUnavailable(err)

	case status.IsTerminal():
		// a frozen session that nobody removed yet
		s.finishVerification(ctx, in.SessionID, v)
		return nil, goerror.NewBusiness("Verification session already finished", goerror.CodeGone)
	}

	return out, nil
}

type VerifyCancelInput struct {
	SessionID string `validate:"required,uuid"`
}

// VerifyCancel aborts a verification session.
func (s *Usecase) VerifyCancel(ctx context.Context, in VerifyCancelInput) (*VerifyFrameOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyCancel")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	v, ok := s.verifications.get(in.SessionID)
	if !ok {
		return nil, goerror.NewBusiness("Verification session not found", goerror.CodeNotFound)
	}

	v.Abort()
	s.finishVerification(ctx, in.SessionID, v)

	slog.InfoContext(ctx, "verification aborted", "identity", v.Claimed(), "session_id", in.SessionID)
	return s.verifyOutput(in.SessionID, v), nil
}

func (s *Usecase) verifyOutput(id string, v *session.Verification) *VerifyFrameOutput {
	out := &VerifyFrameOutput{
		SessionID: id,
		Identity:  v.Claimed().String(),
		Status:    v.Status().String(),
		Ticks:     v.Ticks(),
		Deadline:  v.Deadline(),
	}
	if res, ok := v.LastResult(); ok {
		d := res.Distance
		out.Distance = &d
	}
	return out
}

// finishVerification reports a terminal session once. Later calls for the
// same id find nothing in the registry and do nothing.
func (s *Usecase) finishVerification(ctx context.Context, id string, v *session.Verification) {
	if _, ok := s.verifications.remove(ctx, id); ok {
		s.reportVerification(ctx, id, v)
	}
}

func (s *Usecase) reportVerification(ctx context.Context, id string, v *session.Verification) {
	status := v.Status()
	if s.verificationFinished != nil {
		s.verificationFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status.String())))
	}

	msg := VerificationFinishedEvent{
		Identity:  v.Claimed().String(),
		SessionID: id,
		Status:    status.String(),
		Ticks:     v.Ticks(),
		At:        s.clock.Now(),
	}
	if res, ok := v.LastResult(); ok {
		d := res.Distance
		msg.Distance = &d
	}

	s.publish(ctx, "publish verification finished", func(ctx context.Context) error {
		return s.repoMessaging.PublishVerificationFinished(ctx, msg)
	})
}
