package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/identity/session"
	"github.com/shandysiswandi/facegate/internal/pkg/goerror"
)

type LoginInput struct {
	Identity string `validate:"required,identity,max=64"`
	Code     string `validate:"required,otp"`
}

type LoginOutput struct {
	SessionID    string
	Identity     string
	Deadline     time.Time
	TickInterval time.Duration
}

// Login checks the one-time code and, only when it is valid, opens a
// verification session for the face factor. Unknown identities and wrong
// codes get the same answer.
func (s *Usecase) Login(ctx context.Context, in LoginInput) (*LoginOutput, error) {
	ctx, span := s.startSpan(ctx, "Login")
	defer span.End()

	in.Identity = strings.TrimSpace(in.Identity)
	in.Code = strings.TrimSpace(in.Code)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	s.sweep(ctx)

	id := entity.Identity(in.Identity)
	invalid := goerror.NewBusiness("Invalid identity or code", goerror.CodeUnauthorized)

	secret, ok, err := s.repoSecret.GetSecret(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read otp secret", "identity", id, "error", err)
		return nil, goerror.NewUnavailable(err)
	}
	if !ok {
		slog.WarnContext(ctx, "login for identity without secret", "identity", id)
		return nil, invalid
	}

	if _, enrolled := s.enrollment.Lookup(id); !enrolled {
		slog.WarnContext(ctx, "login for identity without enrolled face", "identity", id)
		return nil, invalid
	}

	now := s.clock.Now()
	if !s.totp.Validate(in.Code, secret, now) {
		slog.WarnContext(ctx, "invalid one-time code", "identity", id, "error", entity.ErrInvalidCode)
		return nil, invalid
	}

	if s.replay != nil {
		fresh, err := s.replay.ClaimCode(ctx, id, in.Code, s.totp.Window())
		if err != nil {
			slog.ErrorContext(ctx, "failed to claim one-time code", "identity", id, "error", err)
			return nil, goerror.NewUnavailable(err)
		}
		if !fresh {
			slog.WarnContext(ctx, "one-time code replayed", "identity", id)
			return nil, invalid
		}
	}

	v := session.NewVerification(id, now, s.verificationConfig(), s.enrollment, s.extractor)
	sessionID := s.uuid.Generate()
	s.verifications.add(ctx, sessionID, v, v.Deadline().Add(s.grace()))

	slog.InfoContext(ctx, "verification session started", "identity", id, "session_id", sessionID)

	return &LoginOutput{
		SessionID:    sessionID,
		Identity:     in.Identity,
		Deadline:     v.Deadline(),
		TickInterval: s.cfg.GetMillisecond("verification.tick_interval_ms"),
	}, nil
}
