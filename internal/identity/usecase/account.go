package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/pkg/goerror"
	"github.com/shandysiswandi/facegate/internal/pkg/jwt"
)

// AccountList merges enrolled faces with stored secrets, so accounts that are
// only half registered show up too.
func (s *Usecase) AccountList(ctx context.Context) ([]entity.Account, error) {
	ctx, span := s.startSpan(ctx, "AccountList")
	defer span.End()

	ids, err := s.repoSecret.ListSecrets(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list otp secrets", "error", err)
		return nil, goerror.NewUnavailable(err)
	}

	byID := lo.SliceToMap(s.enrollment.Snapshot(), func(rec entity.EnrolledRecord) (entity.Identity, entity.Account) {
		return rec.Identity, entity.Account{Identity: rec.Identity, EnrolledAt: rec.EnrolledAt}
	})
	for _, id := range ids {
		acc := byID[id]
		acc.Identity = id
		acc.HasSecret = true
		byID[id] = acc
	}

	accounts := lo.Values(byID)
	slices.SortFunc(accounts, func(a, b entity.Account) int {
		return strings.Compare(a.Identity.String(), b.Identity.String())
	})

	return accounts, nil
}

type AccountDeleteInput struct {
	Identity string `validate:"required,identity,max=64"`
}

// AccountDelete removes the enrolled face and every artifact of an identity.
func (s *Usecase) AccountDelete(ctx context.Context, in AccountDeleteInput) error {
	ctx, span := s.startSpan(ctx, "AccountDelete")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	id := entity.Identity(in.Identity)
	var actor string
	if clm := jwt.GetAuth(ctx); clm != nil {
		actor = clm.Identity()
	}

	err := s.enrollment.Remove(ctx, id)
	if errors.Is(err, entity.ErrNotFound) {
		err = s.removeSecretOnly(ctx, id)
		if errors.Is(err, errCommittedMeanwhile) {
			err = s.enrollment.Remove(ctx, id)
		}
	}

	var rerr *entity.RemovalError
	switch {
	case err == nil:
	case errors.Is(err, entity.ErrNotFound):
		return goerror.NewBusiness("Identity not found", goerror.CodeNotFound)
	case errors.As(err, &rerr):
		slog.ErrorContext(ctx, "account removal incomplete", "identity", id, "failed", rerr.Artifacts(), "error", err)
	case errors.Is(err, entity.ErrStoreUnavailable):
		slog.ErrorContext(ctx, "failed to remove enrolled face", "identity", id, "error", err)
		return goerror.NewUnavailable(err)
	default:
		slog.ErrorContext(ctx, "failed to remove account", "identity", id, "error", err)
		return goerror.NewServer(err)
	}

	msg := AccountRemovedEvent{Identity: id.String(), RemovedBy: actor}
	if rerr != nil {
		msg.Leftover = rerr.Artifacts()
	}
	s.publish(ctx, "publish account removed", func(ctx context.Context) error {
		return s.repoMessaging.PublishAccountRemoved(ctx, msg)
	})

	if rerr != nil {
		return goerror.NewBusiness("Account removal incomplete", goerror.CodeInternal,
			"failed", strings.Join(rerr.Artifacts(), ","))
	}

	slog.InfoContext(ctx, "account removed", "identity", id, "removed_by", actor)
	return nil
}

// errCommittedMeanwhile reports that the pending registration enrolled its
// face before it could be abandoned.
var errCommittedMeanwhile = errors.New("usecase: registration committed during removal")

// removeSecretOnly cleans up an identity that has a secret but no enrolled
// face, such as one whose registration is still pending. The registration is
// abandoned before it leaves the registry: Abandon and Offer share a lock, so
// either the abandon wins or the face is already enrolled and the caller has
// to remove it as a full account.
func (s *Usecase) removeSecretOnly(ctx context.Context, id entity.Identity) error {
	_, ok, err := s.repoSecret.GetSecret(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err)
	}
	if !ok {
		return entity.ErrNotFound
	}

	if p, found := s.registrations.find(func(p *pendingRegistration) bool { return p.reg.Identity() == id }); found {
		state := p.reg.Abandon()
		_, removed := s.registrations.remove(ctx, p.id)
		if state == entity.RegistrationCommitted {
			if removed {
				s.commitRegistration(ctx, p)
			}
			return errCommittedMeanwhile
		}
		if removed {
			s.countRegistration(ctx, state)
		}
	}

	if err := s.repoSecret.DeleteSecret(ctx, id); err != nil {
		return &entity.RemovalError{Identity: id, Failed: map[string]error{"secret": err}}
	}
	return nil
}

type AccountProvisioningInput struct {
	Identity string `validate:"required,identity,max=64"`
}

type AccountProvisioningOutput struct {
	Identity        string
	ProvisioningURI string
	EnrolledAt      *time.Time
}

// AccountProvisioning rebuilds the otpauth URI of an existing account so it
// can be shown again.
func (s *Usecase) AccountProvisioning(ctx context.Context, in AccountProvisioningInput) (*AccountProvisioningOutput, error) {
	ctx, span := s.startSpan(ctx, "AccountProvisioning")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	id := entity.Identity(in.Identity)
	secret, ok, err := s.repoSecret.GetSecret(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read otp secret", "identity", id, "error", err)
		return nil, goerror.NewUnavailable(err)
	}
	if !ok {
		return nil, goerror.NewBusiness("Identity not found", goerror.CodeNotFound)
	}

	uri, err := s.totp.ProvisioningURI(in.Identity, secret)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build provisioning uri", "identity", id, "error", err)
		return nil, goerror.NewServer(err)
	}

	out := &AccountProvisioningOutput{Identity: in.Identity, ProvisioningURI: uri}
	if rec, ok := s.enrollment.Lookup(id); ok {
		at := rec.EnrolledAt
		out.EnrolledAt = &at
	}
	return out, nil
}
