package stacktrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternalPaths(t *testing.T) {
	stack := []byte(`goroutine 7 [running]:
runtime/debug.Stack()
	/usr/local/go/src/runtime/debug/stack.go:26 +0x5e
github.com/shandysiswandi/facegate/internal/identity/usecase.(*Usecase).VerifyFrame(...)
	/src/facegate/internal/identity/usecase/verify.go:88 +0x1a4
net/http.HandlerFunc.ServeHTTP(...)
	/usr/local/go/src/net/http/server.go:2220 +0x29
`)

	assert.Equal(t, []string{"internal/identity/usecase/verify.go:88"}, InternalPaths(stack))
	assert.Empty(t, InternalPaths([]byte("no frames")))
}
