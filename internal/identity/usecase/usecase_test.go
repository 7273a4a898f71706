package usecase

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	potp "github.com/pquerna/otp"
	"github.com/shandysiswandi/facegate/internal/identity/enrollment"
	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/identity/outbound/cache"
	"github.com/shandysiswandi/facegate/internal/pkg/clock"
	"github.com/shandysiswandi/facegate/internal/pkg/config"
	"github.com/shandysiswandi/facegate/internal/pkg/goerror"
	"github.com/shandysiswandi/facegate/internal/pkg/goroutine"
	"github.com/shandysiswandi/facegate/internal/pkg/hash"
	"github.com/shandysiswandi/facegate/internal/pkg/instrument"
	"github.com/shandysiswandi/facegate/internal/pkg/jwt"
	"github.com/shandysiswandi/facegate/internal/pkg/otp"
	"github.com/shandysiswandi/facegate/internal/pkg/uid"
	"github.com/shandysiswandi/facegate/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type fakeSecrets struct {
	mu        sync.Mutex
	items     map[entity.Identity]string
	putErr    error
	deleteErr error

	// called before the store is touched, outside the lock
	beforeGet func()
	beforePut func()
}

func (f *fakeSecrets) GetSecret(_ context.Context, id entity.Identity) (string, bool, error) {
	if f.beforeGet != nil {
		f.beforeGet()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.items[id]
	return s, ok, nil
}

func (f *fakeSecrets) PutSecret(_ context.Context, id entity.Identity, secret string) error {
	if f.beforePut != nil {
		f.beforePut()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.items[id] = secret
	return nil
}

func (f *fakeSecrets) DeleteSecret(_ context.Context, id entity.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.items, id)
	return nil
}

func (f *fakeSecrets) ListSecrets(context.Context) ([]entity.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Sorted(maps.Keys(f.items)), nil
}

func (f *fakeSecrets) has(id entity.Identity) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[id]
	return ok
}

func (f *fakeSecrets) get(id entity.Identity) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id]
}

type fakeReferences struct {
	mu    sync.Mutex
	saved map[entity.Identity]image.Image
}

func (f *fakeReferences) SaveReference(_ context.Context, id entity.Identity, img image.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[id] = img
	return nil
}

type fakeMessaging struct {
	mu       sync.Mutex
	enrolled []FaceEnrolledEvent
	removed  []AccountRemovedEvent
	finished []VerificationFinishedEvent
}

func (f *fakeMessaging) PublishFaceEnrolled(_ context.Context, msg FaceEnrolledEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enrolled = append(f.enrolled, msg)
	return nil
}

func (f *fakeMessaging) PublishAccountRemoved(_ context.Context, msg AccountRemovedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, msg)
	return nil
}

func (f *fakeMessaging) PublishVerificationFinished(_ context.Context, msg VerificationFinishedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, msg)
	return nil
}

// queueExtractor answers each call with the next queued detection list and
// with no faces once the queue is empty.
type queueExtractor struct {
	mu    sync.Mutex
	queue [][]entity.Detection
	err   error
}

func (q *queueExtractor) push(dets ...entity.Detection) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, dets)
}

func (q *queueExtractor) DetectAndEncode(context.Context, image.Image) ([]entity.Detection, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	if len(q.queue) == 0 {
		return nil, nil
	}
	dets := q.queue[0]
	q.queue = q.queue[1:]
	return dets, nil
}

func face(enc ...float32) entity.Detection {
	return entity.Detection{Box: entity.BoundingBox{Right: 2, Bottom: 2}, Encoding: enc}
}

type harness struct {
	uc      *Usecase
	clk     *clock.Manual
	mgr     *enrollment.Manager
	secrets *fakeSecrets
	refs    *fakeReferences
	msgs    *fakeMessaging
	ext     *queueExtractor
	totp    *otp.TOTP
	jwt     *jwt.Symmetric
	bg      *goroutine.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	bcrypt := hash.NewBcrypt(4, "")
	hashed, err := bcrypt.Hash("s3cret")
	require.NoError(t, err)

	cfg, err := config.NewViperFromBytes("yaml", fmt.Appendf(nil, `
face:
  encoding_dim: 3
registration:
  frame_budget: 3
admin:
  username: root
  password_hash: %q
`, string(hashed)))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	h := &harness{
		clk:     clock.NewManual(t0),
		secrets: &fakeSecrets{items: map[entity.Identity]string{}},
		refs:    &fakeReferences{saved: map[entity.Identity]image.Image{}},
		msgs:    &fakeMessaging{},
		ext:     &queueExtractor{},
		totp:    otp.NewTOTP("FaceRecApp", 30, 1, potp.DigitsSix),
		bg:      goroutine.NewManager(8),
	}

	h.jwt, err = jwt.NewHS512(jwt.Config{
		Secret:    bytes.Repeat([]byte("k"), 64),
		Issuer:    "facegate",
		Audiences: []string{"facegate"},
		TTL:       15 * time.Minute,
		Clock:     h.clk,
		UUID:      uid.NewUUID(),
	})
	require.NoError(t, err)

	h.mgr = enrollment.NewManager(enrollment.Options{
		Clock:     h.clk,
		Dimension: 3,
		Artifacts: []enrollment.Artifact{{Name: "secret", Remove: h.secrets.DeleteSecret}},
	})

	h.uc = New(Dependency{
		Enrollment:    h.mgr,
		Extractor:     h.ext,
		RepoSecret:    h.secrets,
		RepoReference: h.refs,
		RepoMessaging: h.msgs,
		ReplayGuard:   cache.NewMemory(h.clk),
		Validator:     v,
		Config:        cfg,
		Clock:         h.clk,
		UUID:          uid.NewUUID(),
		Totp:          h.totp,
		JWT:           h.jwt,
		Bcrypt:        bcrypt,
		Instrument:    instrument.NewNoop(),
		Goroutine:     h.bg,
	})

	return h
}

// enroll registers id with enc through the public flow and returns its secret.
func (h *harness) enroll(t *testing.T, id string, enc ...float32) string {
	t.Helper()

	reg, err := h.uc.Register(context.Background(), RegisterInput{Identity: id})
	require.NoError(t, err)

	h.ext.push(face(enc...))
	out, err := h.uc.RegisterFrame(context.Background(), RegisterFrameInput{RegistrationID: reg.RegistrationID, Frame: pngFrame(t)})
	require.NoError(t, err)
	require.Equal(t, "Committed", out.State)

	return reg.Secret
}

func (h *harness) login(t *testing.T, id, secret string) *LoginOutput {
	t.Helper()

	code, err := h.totp.GenerateCode(secret, h.clk.Now())
	require.NoError(t, err)

	out, err := h.uc.Login(context.Background(), LoginInput{Identity: id, Code: code})
	require.NoError(t, err)
	return out
}

func pngFrame(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()

	var gerr *goerror.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, status, gerr.StatusCode())
}
