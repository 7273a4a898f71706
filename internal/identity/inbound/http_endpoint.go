package inbound

import (
	"github.com/samber/lo"
	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/identity/usecase"
	"github.com/shandysiswandi/facegate/internal/pkg/router"
)

// HTTPEndpoint exposes the registration, login and administration flows.
type HTTPEndpoint struct {
	uc            uc
	maxFrameBytes int64
}

// Register creates the OTP secret and opens a registration.
func (h *HTTPEndpoint) Register(r *router.Request) (any, error) {
	var req RegisterRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Register(r.Context(), usecase.RegisterInput{Identity: req.Identity})
	if err != nil {
		return nil, err
	}

	return RegisterResponse{
		RegistrationID:  resp.RegistrationID,
		Identity:        resp.Identity,
		Secret:          resp.Secret,
		ProvisioningURI: resp.ProvisioningURI,
		FrameBudget:     resp.FrameBudget,
		ExpiresAt:       resp.ExpiresAt,
	}, nil
}

// RegisterFrame offers the multipart field "frame" to a registration.
func (h *HTTPEndpoint) RegisterFrame(r *router.Request) (any, error) {
	frame, err := r.ReadSingleFile("frame", h.maxFrameBytes)
	if err != nil {
		return nil, err
	}

	resp, err := h.uc.RegisterFrame(r.Context(), usecase.RegisterFrameInput{
		RegistrationID: r.GetParam("id"),
		Frame:          frame,
	})
	if err != nil {
		return nil, err
	}

	return RegisterFrameResponse{
		RegistrationID: resp.RegistrationID,
		Identity:       resp.Identity,
		State:          resp.State,
		FramesLeft:     resp.FramesLeft,
	}, nil
}

func (h *HTTPEndpoint) RegisterCancel(r *router.Request) (any, error) {
	err := h.uc.RegisterCancel(r.Context(), usecase.RegisterCancelInput{RegistrationID: r.GetParam("id")})
	if err != nil {
		return nil, err
	}

	return RegisterCancelResponse{}, nil
}

// Login checks the one-time code and starts a verification session.
func (h *HTTPEndpoint) Login(r *router.Request) (any, error) {
	var req LoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Login(r.Context(), usecase.LoginInput{
		Identity: req.Identity,
		Code:     req.Code,
	})
	if err != nil {
		return nil, err
	}

	return LoginResponse{
		SessionID:      resp.SessionID,
		Identity:       resp.Identity,
		Deadline:       resp.Deadline,
		TickIntervalMS: resp.TickInterval.Milliseconds(),
	}, nil
}

// VerifyFrame runs one verification tick on the multipart field "frame".
func (h *HTTPEndpoint) VerifyFrame(r *router.Request) (any, error) {
	frame, err := r.ReadSingleFile("frame", h.maxFrameBytes)
	if err != nil {
		return nil, err
	}

	resp, err := h.uc.VerifyFrame(r.Context(), usecase.VerifyFrameInput{
		SessionID: r.GetParam("id"),
		Frame:     frame,
	})
	if err != nil {
		return nil, err
	}

	return toVerifyResponse(resp), nil
}

func (h *HTTPEndpoint) VerifyCancel(r *router.Request) (any, error) {
	resp, err := h.uc.VerifyCancel(r.Context(), usecase.VerifyCancelInput{SessionID: r.GetParam("id")})
	if err != nil {
		return nil, err
	}

	return toVerifyResponse(resp), nil
}

func toVerifyResponse(resp *usecase.VerifyFrameOutput) VerifyResponse {
	return VerifyResponse{
		SessionID:   resp.SessionID,
		Identity:    resp.Identity,
		Status:      resp.Status,
		Ticks:       resp.Ticks,
		Distance:    resp.Distance,
		Deadline:    resp.Deadline,
		AccessToken: resp.AccessToken,
	}
}

func (h *HTTPEndpoint) AdminLogin(r *router.Request) (any, error) {
	var req AdminLoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.AdminLogin(r.Context(), usecase.AdminLoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return nil, err
	}

	return AdminLoginResponse{AccessToken: resp.AccessToken}, nil
}

// AccountList lists enrolled and half-registered accounts.
func (h *HTTPEndpoint) AccountList(r *router.Request) (any, error) {
	accounts, err := h.uc.AccountList(r.Context())
	if err != nil {
		return nil, err
	}

	return AccountListResponse(lo.Map(accounts, func(acc entity.Account, _ int) AccountResponse {
		resp := AccountResponse{
			Identity:  acc.Identity.String(),
			Enrolled:  !acc.EnrolledAt.IsZero(),
			HasSecret: acc.HasSecret,
		}
		if resp.Enrolled {
			resp.EnrolledAt = &acc.EnrolledAt
		}
		return resp
	})), nil
}

func (h *HTTPEndpoint) AccountDelete(r *router.Request) (any, error) {
	err := h.uc.AccountDelete(r.Context(), usecase.AccountDeleteInput{Identity: r.GetParam("identity")})
	if err != nil {
		return nil, err
	}

	return AccountDeleteResponse{}, nil
}

// AccountProvisioning shows the otpauth URI of an account again.
func (h *HTTPEndpoint) AccountProvisioning(r *router.Request) (any, error) {
	resp, err := h.uc.AccountProvisioning(r.Context(), usecase.AccountProvisioningInput{Identity: r.GetParam("identity")})
	if err != nil {
		return nil, err
	}

	return AccountProvisioningResponse{
		Identity:        resp.Identity,
		ProvisioningURI: resp.ProvisioningURI,
		EnrolledAt:      resp.EnrolledAt,
	}, nil
}
