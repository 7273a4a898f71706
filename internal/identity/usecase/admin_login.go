package usecase

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/facegate/internal/pkg/goerror"
	"github.com/shandysiswandi/facegate/internal/pkg/jwt"
)

type AdminLoginInput struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required,max=72"`
}

type AdminLoginOutput struct {
	AccessToken string
}

// AdminLogin checks the admin credentials from config. It is separate from
// the OTP and face factors and issues a token with the admin role.
func (s *Usecase) AdminLogin(ctx context.Context, in AdminLoginInput) (*AdminLoginOutput, error) {
	ctx, span := s.startSpan(ctx, "AdminLogin")
	defer span.End()

	in.Username = strings.TrimSpace(in.Username)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	username := s.cfg.GetString("admin.username")
	hashed := s.cfg.GetString("admin.password_hash")
	if hashed == "" {
		slog.WarnContext(ctx, "admin login attempted but admin.password_hash is not set")
		return nil, goerror.NewBusiness("Invalid username or password", goerror.CodeUnauthorized)
	}

	sameUser := subtle.ConstantTimeCompare([]byte(in.Username), []byte(username)) == 1
	samePass := s.bcrypt.Verify(hashed, in.Password)
	if !sameUser || !samePass {
		slog.WarnContext(ctx, "invalid admin credentials", "username", in.Username)
		return nil, goerror.NewBusiness("Invalid username or password", goerror.CodeUnauthorized)
	}

	token, err := s.jwt.Generate(jwt.Subject{Identity: username, Role: jwt.RoleAdmin, Methods: []string{"pwd"}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue admin token", "error", err)
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "admin logged in", "username", username)
	return &AdminLoginOutput{AccessToken: token}, nil
}
