package usecase

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/identity/session"
	"github.com/shandysiswandi/facegate/internal/pkg/clock"
	"github.com/shandysiswandi/facegate/internal/pkg/config"
	"github.com/shandysiswandi/facegate/internal/pkg/goroutine"
	"github.com/shandysiswandi/facegate/internal/pkg/hash"
	"github.com/shandysiswandi/facegate/internal/pkg/instrument"
	"github.com/shandysiswandi/facegate/internal/pkg/jwt"
	"github.com/shandysiswandi/facegate/internal/pkg/otp"
	"github.com/shandysiswandi/facegate/internal/pkg/uid"
	"github.com/shandysiswandi/facegate/internal/pkg/validator"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
)

type FaceEnrolledEvent struct {
	Identity   string
	Replaced   bool
	EnrolledAt time.Time
}

type AccountRemovedEvent struct {
	Identity  string
	RemovedBy string
	Leftover  []string
}

type VerificationFinishedEvent struct {
	Identity  string
	SessionID string
	Status    string
	Distance  *float64
	Ticks     int
	At        time.Time
}

type repoMessaging interface {
	PublishFaceEnrolled(ctx context.Context, msg FaceEnrolledEvent) error
	PublishAccountRemoved(ctx context.Context, msg AccountRemovedEvent) error
	PublishVerificationFinished(ctx context.Context, msg VerificationFinishedEvent) error
}

type repoSecret interface {
	GetSecret(ctx context.Context, id entity.Identity) (string, bool, error)
	PutSecret(ctx context.Context, id entity.Identity, secret string) error
	DeleteSecret(ctx context.Context, id entity.Identity) error
	ListSecrets(ctx context.Context) ([]entity.Identity, error)
}

type repoReference interface {
	SaveReference(ctx context.Context, id entity.Identity, img image.Image) error
}

type replayGuard interface {
	ClaimCode(ctx context.Context, id entity.Identity, code string, ttl time.Duration) (bool, error)
}

type enrollmentManager interface {
	session.Enrolled
	session.Enroller
	Remove(ctx context.Context, id entity.Identity) error
	Snapshot() []entity.EnrolledRecord
}

type Usecase struct {
	enrollment    enrollmentManager
	extractor     session.Extractor
	repoSecret    repoSecret
	repoReference repoReference
	repoMessaging repoMessaging
	replay        replayGuard
	validator     validator.Validator
	cfg           config.Config
	clock         clock.Clocker
	uuid          uid.StringID
	totp          otp.OTP
	jwt           jwt.JWT
	bcrypt        hash.Hash
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager

	verifications *registry[*session.Verification]
	registrations *registry[*pendingRegistration]

	verificationFinished metric.Int64Counter
	registrationFinished metric.Int64Counter
}

type Dependency struct {
	Enrollment    enrollmentManager
	Extractor     session.Extractor
	RepoSecret    repoSecret
	RepoReference repoReference
	RepoMessaging repoMessaging
	ReplayGuard   replayGuard
	Validator     validator.Validator
	Config        config.Config
	Clock         clock.Clocker
	UUID          uid.StringID
	Totp          otp.OTP
	JWT           jwt.JWT
	Bcrypt        hash.Hash
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	meter := dep.Instrument.Meter("identity.usecase")

	active := atomic.NewInt64(0)
	gauge, err := meter.Int64UpDownCounter("facegate.sessions.active",
		metric.WithDescription("In-flight registration and verification sessions"))
	if err != nil {
		slog.Warn("failed to create sessions gauge", "error", err)
	}

	verificationFinished, err := meter.Int64Counter("facegate.verification.finished",
		metric.WithDescription("Verification sessions by final status"))
	if err != nil {
		slog.Warn("failed to create verification counter", "error", err)
	}

	registrationFinished, err := meter.Int64Counter("facegate.registration.finished",
		metric.WithDescription("Registrations by final state"))
	if err != nil {
		slog.Warn("failed to create registration counter", "error", err)
	}

	return &Usecase{
		enrollment:    dep.Enrollment,
		extractor:     dep.Extractor,
		repoSecret:    dep.RepoSecret,
		repoReference: dep.RepoReference,
		repoMessaging: dep.RepoMessaging,
		replay:        dep.ReplayGuard,
		validator:     dep.Validator,
		cfg:           dep.Config,
		clock:         dep.Clock,
		uuid:          dep.UUID,
		totp:          dep.Totp,
		jwt:           dep.JWT,
		bcrypt:        dep.Bcrypt,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,

		verifications: newRegistry[*session.Verification]("verification", active, gauge),
		registrations: newRegistry[*pendingRegistration]("registration", active, gauge),

		verificationFinished: verificationFinished,
		registrationFinished: registrationFinished,
	}
}

// ActiveSessions is the number of registrations and verifications in flight.
func (s *Usecase) ActiveSessions() int64 {
	return s.verifications.active.Load()
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("identity.usecase").Start(ctx, name)
}

func (s *Usecase) grace() time.Duration {
	return s.cfg.GetSecond("verification.session_grace_seconds")
}

func (s *Usecase) verificationConfig() session.VerificationConfig {
	return session.VerificationConfig{
		Threshold:     s.cfg.GetFloat64("face.threshold"),
		Deadline:      s.cfg.GetSecond("verification.deadline_seconds"),
		StrictNearest: s.cfg.GetBool("face.strict_nearest"),
	}
}

func (s *Usecase) registrationConfig() session.RegistrationConfig {
	return session.RegistrationConfig{
		FrameBudget: s.cfg.GetInt("registration.frame_budget"),
		Timeout:     s.cfg.GetSecond("registration.timeout_seconds"),
	}
}

// sweep drops sessions whose clients went away. A stale verification is
// past its deadline, so one more tick settles it as timed out before it is
// reported. Abandoned registrations also lose the secret written for them.
func (s *Usecase) sweep(ctx context.Context) {
	now := s.clock.Now()

	verifications := s.verifications.expired(ctx, now)
	for _, v := range verifications {
		_, _ = v.Tick(ctx, now, session.NewSingleFrame(nil))
	}

	s.closeSessions(ctx, "stale", verifications, s.registrations.expired(ctx, now))
}

// Shutdown closes every session still in flight, so no registration leaves
// a secret behind without a face. It returns how many sessions it closed.
func (s *Usecase) Shutdown(ctx context.Context) int {
	verifications := s.verifications.drain(ctx)
	registrations := s.registrations.drain(ctx)
	s.closeSessions(ctx, "shutdown", verifications, registrations)

	return len(verifications) + len(registrations)
}

// closeSessions aborts whatever is not terminal yet and reports every
// session once.
func (s *Usecase) closeSessions(ctx context.Context, reason string,
	verifications map[string]*session.Verification, registrations map[string]*pendingRegistration,
) {
	for id, v := range verifications {
		status := v.Abort()
		slog.InfoContext(ctx, "verification session closed",
			"reason", reason, "session_id", id, "identity", v.Claimed(), "status", status)
		s.reportVerification(ctx, id, v)
	}

	for id, p := range registrations {
		p.reg.Abandon()
		slog.InfoContext(ctx, "registration closed",
			"reason", reason, "registration_id", id, "identity", p.reg.Identity())
		s.discardRegistration(ctx, p)
	}
}

func (s *Usecase) publish(ctx context.Context, name string, f func(ctx context.Context) error) {
	if s.repoMessaging == nil {
		return
	}
	s.goroutine.Go(ctx, name, f)
}
