package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/shandysiswandi/facegate/internal/pkg/clock"
	"github.com/shandysiswandi/facegate/internal/pkg/goerror"
	"github.com/shandysiswandi/facegate/internal/pkg/jwt"
	"github.com/shandysiswandi/facegate/internal/pkg/uid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && (p.act == "*" || r.act == p.act)
`

func newTestRouter(t *testing.T) (*Router, *jwt.Symmetric) {
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

	m, err := model.NewModelFromString(testModel)
	require.NoError(t, err)
	e, err := casbin.NewEnforcer(m)
	require.NoError(t, err)
	_, err = e.AddPolicy(jwt.RoleAdmin, "accounts", "*")
	require.NoError(t, err)

	r := NewRouter(Config{
		UUID:     uid.NewUUID(),
		JWT:      j,
		Enforcer: e,
		Public:   map[string][]string{http.MethodPost: {"/open/:id"}},
	})
	return r, j
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRouter_PublicAndErrors(t *testing.T) {
	r, _ := newTestRouter(t)

	r.POST("/open/:id", func(req *Request) (any, error) {
		if req.GetParam("id") == "missing" {
			return nil, goerror.NewBusiness("Account not found", goerror.CodeNotFound)
		}
		if req.GetParam("id") == "boom" {
			return nil, errors.New("raw")
		}
		return map[string]string{"id": req.GetParam("id")}, nil
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/open/abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderCorrelationID))
	assert.Equal(t, map[string]any{"id": "abc"}, decode(t, rec)["data"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/open/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Account not found", decode(t, rec)["message"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/open/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_AuthAndAuthorize(t *testing.T) {
	r, j := newTestRouter(t)
	r.GET("/admin", func(*Request) (any, error) { return map[string]bool{"ok": true}, nil }, r.Authorize("accounts", "list"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	userToken, err := j.Generate(jwt.Subject{Identity: "alice", Role: jwt.RoleUser})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken, err := j.Generate(jwt.Subject{Identity: "admin", Role: jwt.RoleAdmin})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Recover(t *testing.T) {
	r, _ := newTestRouter(t)
	r.POST("/open/:id", func(*Request) (any, error) { panic("bad") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/open/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequest_ReadSingleFile(t *testing.T) {
	build := func(field string, content []byte) *http.Request {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile(field, "frame.jpg")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req
	}

	data, err := (&Request{Request: build("frame", []byte("abc"))}).ReadSingleFile("frame", 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	_, err = (&Request{Request: build("other", []byte("abc"))}).ReadSingleFile("frame", 10)
	require.Error(t, err)

	_, err = (&Request{Request: build("frame", []byte("abcdef"))}).ReadSingleFile("frame", 3)
	require.Error(t, err)

	_, err = (&Request{Request: httptest.NewRequest(http.MethodPost, "/", nil)}).ReadSingleFile("frame", 3)
	require.Error(t, err)
}

func TestRequest_DecodeBody(t *testing.T) {
	var dst struct {
		Identity string `json:"identity"`
	}

	req := &Request{Request: httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"identity":"alice"}`))}
	require.NoError(t, req.DecodeBody(&dst))
	assert.Equal(t, "alice", dst.Identity)

	req = &Request{Request: httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"identity":"a","x":1}`))}
	require.Error(t, req.DecodeBody(&dst))

	req = &Request{Request: httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"identity":"a"}{}`))}
	require.Error(t, req.DecodeBody(&dst))
}
