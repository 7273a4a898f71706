package inbound

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/identity/usecase"
	"github.com/shandysiswandi/facegate/internal/pkg/clock"
	"github.com/shandysiswandi/facegate/internal/pkg/goerror"
	"github.com/shandysiswandi/facegate/internal/pkg/jwt"
	"github.com/shandysiswandi/facegate/internal/pkg/router"
	"github.com/shandysiswandi/facegate/internal/pkg/uid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsecase struct {
	frames   [][]byte
	accounts []entity.Account
}

func (s *stubUsecase) Register(_ context.Context, in usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	return &usecase.RegisterOutput{RegistrationID: "r1", Identity: in.Identity, Secret: "SECRET", FrameBudget: 30}, nil
}

func (s *stubUsecase) RegisterFrame(_ context.Context, in usecase.RegisterFrameInput) (*usecase.RegisterFrameOutput, error) {
	s.frames = append(s.frames, in.Frame)
	return &usecase.RegisterFrameOutput{RegistrationID: in.RegistrationID, Identity: "alice", State: "AwaitingFace", FramesLeft: 29}, nil
}

func (s *stubUsecase) RegisterCancel(context.Context, usecase.RegisterCancelInput) error { return nil }

func (s *stubUsecase) Login(context.Context, usecase.LoginInput) (*usecase.LoginOutput, error) {
	return nil, goerror.NewBusiness("Invalid identity or code", goerror.CodeUnauthorized)
}

func (s *stubUsecase) VerifyFrame(_ context.Context, in usecase.VerifyFrameInput) (*usecase.VerifyFrameOutput, error) {
	return &usecase.VerifyFrameOutput{SessionID: in.SessionID, Status: "Accepted", AccessToken: "token"}, nil
}

func (s *stubUsecase) VerifyCancel(_ context.Context, in usecase.VerifyCancelInput) (*usecase.VerifyFrameOutput, error) {
	return &usecase.VerifyFrameOutput{SessionID: in.SessionID, Status: "Aborted"}, nil
}

func (s *stubUsecase) AdminLogin(context.Context, usecase.AdminLoginInput) (*usecase.AdminLoginOutput, error) {
	return &usecase.AdminLoginOutput{AccessToken: "admin"}, nil
}

func (s *stubUsecase) AccountList(context.Context) ([]entity.Account, error) {
	return s.accounts, nil
}

func (s *stubUsecase) AccountDelete(context.Context, usecase.AccountDeleteInput) error { return nil }

func (s *stubUsecase) AccountProvisioning(_ context.Context, in usecase.AccountProvisioningInput) (*usecase.AccountProvisioningOutput, error) {
	return &usecase.AccountProvisioningOutput{Identity: in.Identity, ProvisioningURI: "otpauth://totp/x"}, nil
}

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && (p.act == "*" || r.act == p.act)
`

func newServer(t *testing.T, uc *stubUsecase) (http.Handler, *jwt.Symmetric) {
	t.Helper()

	j, err := jwt.NewHS512(jwt.Config{
		Secret:    bytes.Repeat([]byte("s"), 64),
		Issuer:    "facegate",
		Audiences: []string{"facegate"},
		TTL:       time.Minute,
		Clock:     clock.New(),
		UUID:      uid.NewUUID(),
	})
	require.NoError(t, err)

	m, err := model.NewModelFromString(policyModel)
	require.NoError(t, err)
	e, err := casbin.NewEnforcer(m)
	require.NoError(t, err)
	_, err = e.AddPolicy(jwt.RoleAdmin, "accounts", "*")
	require.NoError(t, err)

	r := router.NewRouter(router.Config{UUID: uid.NewUUID(), JWT: j, Enforcer: e, Public: PublicRoutes})
	RegisterHTTPEndpoint(r, uc, 1024)
	return r, j
}

func multipartFrame(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile(field, "frame.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestHTTP_RegistrationFlow(t *testing.T) {
	uc := &stubUsecase{}
	srv, _ := newServer(t, uc)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/identity/register", strings.NewReader(`{"identity":"alice"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data RegisterResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "r1", created.Data.RegistrationID)
	assert.Equal(t, "SECRET", created.Data.Secret)

	body, ct := multipartFrame(t, "frame", []byte("pixels"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/identity/register/r1/frames", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, uc.frames, 1)
	assert.Equal(t, []byte("pixels"), uc.frames[0])

	body, ct = multipartFrame(t, "frame", bytes.Repeat([]byte("x"), 2048))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/identity/register/r1/frames", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_LoginErrorEnvelope(t *testing.T) {
	srv, _ := newServer(t, &stubUsecase{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/identity/login", strings.NewReader(`{"identity":"alice","code":"123456"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid identity or code")
}

func TestHTTP_AdminRoutesNeedAdminRole(t *testing.T) {
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	srv, j := newServer(t, &stubUsecase{accounts: []entity.Account{
		{Identity: "alice", EnrolledAt: at, HasSecret: true},
		{Identity: "bob", HasSecret: true},
	}})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/accounts", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	userToken, err := j.Generate(jwt.Subject{Identity: "alice", Role: jwt.RoleUser})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken, err := j.Generate(jwt.Subject{Identity: "root", Role: jwt.RoleAdmin})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Data []AccountResponse `json:"data"`
		Meta map[string]any    `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 2)
	assert.True(t, list.Data[0].Enrolled)
	assert.False(t, list.Data[1].Enrolled)
	assert.Nil(t, list.Data[1].EnrolledAt)
	assert.EqualValues(t, 2, list.Meta["total"])
}
