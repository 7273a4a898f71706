package inbound

import (
	"context"
	"net/http"

	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/identity/usecase"
	"github.com/shandysiswandi/facegate/internal/pkg/router"
)

type uc interface {
	Register(ctx context.Context, in usecase.RegisterInput) (*usecase.RegisterOutput, error)
	RegisterFrame(ctx context.Context, in usecase.RegisterFrameInput) (*usecase.RegisterFrameOutput, error)
	RegisterCancel(ctx context.Context, in usecase.RegisterCancelInput) error

	Login(ctx context.Context, in usecase.LoginInput) (*usecase.LoginOutput, error)
	VerifyFrame(ctx context.Context, in usecase.VerifyFrameInput) (*usecase.VerifyFrameOutput, error)
	VerifyCancel(ctx context.Context, in usecase.VerifyCancelInput) (*usecase.VerifyFrameOutput, error)

	AdminLogin(ctx context.Context, in usecase.AdminLoginInput) (*usecase.AdminLoginOutput, error)
	AccountList(ctx context.Context) ([]entity.Account, error)
	AccountDelete(ctx context.Context, in usecase.AccountDeleteInput) error
	AccountProvisioning(ctx context.Context, in usecase.AccountProvisioningInput) (*usecase.AccountProvisioningOutput, error)
}

// PublicRoutes are reachable without a bearer token. Both factors are
// checked by the flows themselves.
var PublicRoutes = map[string][]string{
	http.MethodPost: {
		"/api/v1/identity/register",
		"/api/v1/identity/register/:id/frames",
		"/api/v1/identity/login",
		"/api/v1/identity/login/:id/frames",
		"/api/v1/admin/login",
	},
	http.MethodDelete: {
		"/api/v1/identity/register/:id",
		"/api/v1/identity/login/:id",
	},
}

func RegisterHTTPEndpoint(r *router.Router, uc uc, maxFrameBytes int64) {
	end := &HTTPEndpoint{uc: uc, maxFrameBytes: maxFrameBytes}

	// Registration: secret first, then frames until a face is enrolled
	r.POST("/api/v1/identity/register", end.Register)
	r.POST("/api/v1/identity/register/:id/frames", end.RegisterFrame)
	r.DELETE("/api/v1/identity/register/:id", end.RegisterCancel)

	// Login: one-time code, then one frame per tick
	r.POST("/api/v1/identity/login", end.Login)
	r.POST("/api/v1/identity/login/:id/frames", end.VerifyFrame)
	r.DELETE("/api/v1/identity/login/:id", end.VerifyCancel)

	// Administration (need admin token & authorization)
	r.POST("/api/v1/admin/login", end.AdminLogin)
	r.GET("/api/v1/admin/accounts", end.AccountList, r.Authorize("accounts", "read"))
	r.DELETE("/api/v1/admin/accounts/:identity", end.AccountDelete, r.Authorize("accounts", "delete"))
	r.GET("/api/v1/admin/accounts/:identity/provisioning", end.AccountProvisioning, r.Authorize("accounts", "read"))
}
