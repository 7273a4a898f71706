package usecase

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_CommitsFirstFace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	reg, err := h.uc.Register(ctx, RegisterInput{Identity: " alice "})
	require.NoError(t, err)
	assert.Equal(t, "alice", reg.Identity)
	assert.Equal(t, 3, reg.FrameBudget)
	assert.Contains(t, reg.ProvisioningURI, "otpauth://totp/")
	assert.Contains(t, reg.ProvisioningURI, "issuer=FaceRecApp")
	assert.True(t, h.secrets.has("alice"))
	assert.EqualValues(t, 1, h.uc.ActiveSessions())

	out, err := h.uc.RegisterFrame(ctx, RegisterFrameInput{RegistrationID: reg.RegistrationID, Frame: pngFrame(t)})
	require.NoError(t, err)
	assert.Equal(t, "AwaitingFace", out.State)
	assert.Equal(t, 2, out.FramesLeft)

	h.ext.push(face(0.1, 0.2, 0.3), face(0.9, 0.9, 0.9))
	out, err = h.uc.RegisterFrame(ctx, RegisterFrameInput{RegistrationID: reg.RegistrationID, Frame: pngFrame(t)})
	require.NoError(t, err)
	assert.Equal(t, "Committed", out.State)

	rec, ok := h.mgr.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, entity.Encoding{0.1, 0.2, 0.3}, rec.Encoding)
	assert.Contains(t, h.refs.saved, entity.Identity("alice"))
	assert.EqualValues(t, 0, h.uc.ActiveSessions())

	_, err = h.uc.RegisterFrame(ctx, RegisterFrameInput{RegistrationID: reg.RegistrationID, Frame: pngFrame(t)})
	requireStatus(t, err, http.StatusNotFound)

	require.NoError(t, h.bg.Wait())
	require.Len(t, h.msgs.enrolled, 1)
	assert.Equal(t, "alice", h.msgs.enrolled[0].Identity)
	assert.Equal(t, t0, h.msgs.enrolled[0].EnrolledAt)
}

func TestRegister_Conflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.enroll(t, "alice", 0, 0, 0)

	_, err := h.uc.Register(ctx, RegisterInput{Identity: "alice"})
	requireStatus(t, err, http.StatusConflict)

	_, err = h.uc.Register(ctx, RegisterInput{Identity: "bob"})
	require.NoError(t, err)

	_, err = h.uc.Register(ctx, RegisterInput{Identity: "bob"})
	requireStatus(t, err, http.StatusConflict)
}

func TestRegister_InvalidIdentity(t *testing.T) {
	h := newHarness(t)

	for _, id := range []string{"", "a=b", "line\nbreak"} {
		_, err := h.uc.Register(context.Background(), RegisterInput{Identity: id})
		requireStatus(t, err, http.StatusUnprocessableEntity)
	}
	assert.Empty(t, h.secrets.items)
}

func TestRegisterFrame_BudgetExhausted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	reg, err := h.uc.Register(ctx, RegisterInput{Identity: "alice"})
	require.NoError(t, err)

	for range 2 {
		out, err := h.uc.RegisterFrame(ctx, RegisterFrameInput{RegistrationID: reg.RegistrationID, Frame: pngFrame(t)})
		require.NoError(t, err)
		assert.Equal(t, "AwaitingFace", out.State)
	}

	// an unreadable upload still spends budget
	_, err = h.uc.RegisterFrame(ctx, RegisterFrameInput{RegistrationID: reg.RegistrationID, Frame: []byte("not an image")})
	requireStatus(t, err, http.StatusUnprocessableEntity)

	_, ok := h.mgr.Lookup("alice")
	assert.False(t, ok)
	assert.False(t, h.secrets.has("alice"))
	assert.EqualValues(t, 0, h.uc.ActiveSessions())
}

func TestRegisterFrame_ExtractorUnavailable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	reg, err := h.uc.Register(ctx, RegisterInput{Identity: "alice"})
	require.NoError(t, err)

	h.ext.err = errors.New("connection refused")
	_, err = h.uc.RegisterFrame(ctx, RegisterFrameInput{RegistrationID: reg.RegistrationID, Frame: pngFrame(t)})
	requireStatus(t, err, http.StatusServiceUnavailable)

	h.ext.err = nil
	h.ext.push(face(1, 2, 3))
	out, err := h.uc.RegisterFrame(ctx, RegisterFrameInput{RegistrationID: reg.RegistrationID, Frame: pngFrame(t)})
	require.NoError(t, err)
	assert.Equal(t, "Committed", out.State)
}

func TestRegisterCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	reg, err := h.uc.Register(ctx, RegisterInput{Identity: "alice"})
	require.NoError(t, err)

	require.NoError(t, h.uc.RegisterCancel(ctx, RegisterCancelInput{RegistrationID: reg.RegistrationID}))
	assert.False(t, h.secrets.has("alice"))

	err = h.uc.RegisterCancel(ctx, RegisterCancelInput{RegistrationID: reg.RegistrationID})
	requireStatus(t, err, http.StatusNotFound)

	_, err = h.uc.Register(ctx, RegisterInput{Identity: "alice"})
	require.NoError(t, err)
}

func TestRegister_StaleRegistrationSwept(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.uc.Register(ctx, RegisterInput{Identity: "alice"})
	require.NoError(t, err)

	h.clk.Advance(91 * time.Second)

	_, err = h.uc.Register(ctx, RegisterInput{Identity: "bob"})
	require.NoError(t, err)

	assert.False(t, h.secrets.has("alice"))
	assert.True(t, h.secrets.has("bob"))
	assert.EqualValues(t, 1, h.uc.ActiveSessions())
}

func TestShutdown_ClosesInFlightSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bobSecret := h.enroll(t, "bob", 0, 0, 0)
	_, err := h.uc.Register(ctx, RegisterInput{Identity: "alice"})
	require.NoError(t, err)
	h.login(t, "bob", bobSecret)
	require.EqualValues(t, 2, h.uc.ActiveSessions())

	assert.Equal(t, 2, h.uc.Shutdown(ctx))
	assert.EqualValues(t, 0, h.uc.ActiveSessions())
	assert.False(t, h.secrets.has("alice"))
	assert.True(t, h.secrets.has("bob"))

	require.NoError(t, h.bg.Wait())
	require.Len(t, h.msgs.finished, 1)
	assert.Equal(t, "Aborted", h.msgs.finished[0].Status)

	assert.Equal(t, 0, h.uc.Shutdown(ctx))
}

func TestRegisterFrame_ExtractorFailsOnLastFrame(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	reg, err := h.uc.Register(ctx, RegisterInput{Identity: "alice"})
	require.NoError(t, err)

	h.ext.err = errors.New("connection refused")
	for range 2 {
		_, err = h.uc.RegisterFrame(ctx, RegisterFrameInput{RegistrationID: reg.RegistrationID, Frame: pngFrame(t)})
		requireStatus(t, err, http.StatusServiceUnavailable)
	}

	_, err = h.uc.RegisterFrame(ctx, RegisterFrameInput{RegistrationID: reg.RegistrationID, Frame: pngFrame(t)})
	requireStatus(t, err, http.StatusUnprocessableEntity)
	assert.False(t, h.secrets.has("alice"))
	assert.EqualValues(t, 0, h.uc.ActiveSessions())
}

func TestRegister_ConcurrentSameIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// widen the window between reserving and storing the secret
	h.secrets.beforePut = func() { time.Sleep(10 * time.Millisecond) }

	const callers = 8
	outs := make([]*RegisterOutput, callers)
	errs := make([]error, callers)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			outs[i], errs[i] = h.uc.Register(ctx, RegisterInput{Identity: "alice"})
		}()
	}
	close(start)
	wg.Wait()

	var won *RegisterOutput
	for i, err := range errs {
		if err != nil {
			requireStatus(t, err, http.StatusConflict)
			continue
		}
		require.Nil(t, won, "a second registration opened")
		won = outs[i]
	}
	require.NotNil(t, won)
	assert.EqualValues(t, 1, h.uc.ActiveSessions())
	assert.Equal(t, won.Secret, h.secrets.get("alice"))

	h.ext.push(face(0.1, 0.2, 0.3))
	out, err := h.uc.RegisterFrame(ctx, RegisterFrameInput{RegistrationID: won.RegistrationID, Frame: pngFrame(t)})
	require.NoError(t, err)
	assert.Equal(t, "Committed", out.State)

	sess := h.login(t, "alice", won.Secret)
	assert.Equal(t, "alice", sess.Identity)
}

func TestRegister_SecretStoreDownReleasesIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.secrets.putErr = errors.New("disk full")
	_, err := h.uc.Register(ctx, RegisterInput{Identity: "alice"})
	requireStatus(t, err, http.StatusServiceUnavailable)
	assert.EqualValues(t, 0, h.uc.ActiveSessions())

	h.secrets.putErr = nil
	reg, err := h.uc.Register(ctx, RegisterInput{Identity: "alice"})
	require.NoError(t, err)
	assert.Equal(t, reg.Secret, h.secrets.get("alice"))
}
