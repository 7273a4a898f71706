package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicies(t *testing.T) {
	got, err := parsePolicies([]string{"admin:accounts:*", "auditor:accounts:read"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"admin", "accounts", "*"}, {"auditor", "accounts", "read"}}, got)

	_, err = parsePolicies([]string{"admin:accounts"})
	require.Error(t, err)

	_, err = parsePolicies([]string{"admin::read"})
	require.Error(t, err)

	_, err = parsePolicies(nil)
	require.Error(t, err)
}

func TestApp_ServesWithMemoryDrivers(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, fmt.Appendf(nil, `
jwt:
  secret: %q
credential:
  driver: file
  file:
    path: %q
encoding:
  driver: memory
storage:
  driver: local
  local:
    root: %q
`, strings.Repeat("k", 64), filepath.Join(dir, "user_secrets.txt"), dir), 0o600))
	t.Setenv("CONFIG_PATH", cfgPath)

	a := New()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	errc := a.Serve(l)

	base := "http://" + l.Addr().String()
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(base + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Post(base+"/api/v1/identity/register", "application/json", strings.NewReader(`{"identity":"alice"}`))
	require.NoError(t, err)
	var body struct {
		Data struct {
			Secret string `json:"secret"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body.Data.Secret)

	secrets, err := os.ReadFile(filepath.Join(dir, "user_secrets.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alice="+body.Data.Secret+"\n", string(secrets))

	resp, err = client.Get(base + "/api/v1/admin/accounts")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.Stop(ctx)
	assert.ErrorIs(t, <-errc, http.ErrServerClosed)

	secrets, err = os.ReadFile(filepath.Join(dir, "user_secrets.txt"))
	require.NoError(t, err)
	assert.Empty(t, secrets, "unfinished registration keeps no secret")
}
