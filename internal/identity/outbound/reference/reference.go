// Package reference keeps the frame each identity was enrolled from. The
// images are for audit and display only; matching never reads them.
package reference

import (
	"bytes"
	"context"
	"image"
	"net/url"
	"strings"

	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/pkg/frame"
	"github.com/shandysiswandi/facegate/internal/pkg/instrument"
	"github.com/shandysiswandi/facegate/internal/pkg/storage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Store struct {
	storage storage.Storage
	bucket  string
	ins     instrument.Instrumentation
}

func NewStore(st storage.Storage, bucket string, ins instrument.Instrumentation) *Store {
	return &Store{storage: st, bucket: bucket, ins: ins}
}

// Key is where the reference image of id lives inside the bucket.
func Key(id entity.Identity) string {
	return "references/" + strings.ReplaceAll(url.PathEscape(string(id)), ".", "%2E") + ".jpg"
}

func (s *Store) SaveReference(ctx context.Context, id entity.Identity, img image.Image) (err error) {
	ctx, span := s.ins.Tracer("identity.outbound.reference").Start(ctx, "SaveReference")
	defer func() { endSpan(span, err) }()

	data, err := frame.EncodeJPEG(img)
	if err != nil {
		return err
	}

	return s.storage.PutObject(ctx, s.bucket, Key(id), bytes.NewReader(data), storage.PutOptions{
		Size:        int64(len(data)),
		ContentType: "image/jpeg",
		Metadata:    map[string]string{"identity": string(id)},
	})
}

// DeleteReference succeeds when there is nothing to delete.
func (s *Store) DeleteReference(ctx context.Context, id entity.Identity) (err error) {
	ctx, span := s.ins.Tracer("identity.outbound.reference").Start(ctx, "DeleteReference")
	defer func() { endSpan(span, err) }()

	return s.storage.DeleteObject(ctx, s.bucket, Key(id))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
