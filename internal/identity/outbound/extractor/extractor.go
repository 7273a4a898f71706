// Package extractor calls the face embedding service. The service detects
// faces in a JPEG and returns one encoding per face.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/shandysiswandi/facegate/internal/pkg/frame"
	"github.com/shandysiswandi/facegate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ErrBadResponse is returned when the service answers with something that
	// is not a face list.
	ErrBadResponse = errors.New("extractor: bad response")

	// ErrResponseTooLarge is returned when the response body exceeds
	// Config.MaxResponseBytes.
	ErrResponseTooLarge = errors.New("extractor: response too large")
)

// DefaultMaxResponseBytes bounds a face list response when none is configured.
const DefaultMaxResponseBytes = 1 << 20

type Config struct {
	BaseURL          string
	Timeout          time.Duration
	MaxSide          int
	Dimension        int
	MaxResponseBytes int64
	Client           *http.Client
}

type Client struct {
	baseURL  string
	maxSide  int
	dim      int
	maxBytes int64
	client   *http.Client
	ins      instrument.Instrumentation
}

func NewClient(cfg Config, ins instrument.Instrumentation) *Client {
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResponseBytes
	}

	return &Client{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		maxSide:  cfg.MaxSide,
		dim:      cfg.Dimension,
		maxBytes: maxBytes,
		client:   hc,
		ins:      ins,
	}
}

type faceResponse struct {
	Faces []struct {
		BBox      []float64 `json:"bbox"`
		Embedding []float32 `json:"embedding"`
	} `json:"faces"`
}

// DetectAndEncode downscales img, uploads it and maps the boxes back onto
// the original frame.
func (c *Client) DetectAndEncode(ctx context.Context, img image.Image) (_ []entity.Detection, err error) {
	ctx, span := c.ins.Tracer("identity.outbound.extractor").Start(ctx, "DetectAndEncode")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	scaled := frame.Fit(img, c.maxSide)
	data, err := frame.EncodeJPEG(scaled)
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, "/faces", data)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}

	sx := float64(img.Bounds().Dx()) / float64(max(scaled.Bounds().Dx(), 1))
	sy := float64(img.Bounds().Dy()) / float64(max(scaled.Bounds().Dy(), 1))

	out := make([]entity.Detection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.BBox) != 4 || len(f.Embedding) == 0 {
			return nil, fmt.Errorf("%w: face without bbox or embedding", ErrBadResponse)
		}
		if c.dim > 0 && len(f.Embedding) != c.dim {
			return nil, fmt.Errorf("%w: got %d, want %d", entity.ErrDimensionMismatch, len(f.Embedding), c.dim)
		}

		out = append(out, entity.Detection{
			Box: entity.BoundingBox{
				Left:   int(f.BBox[0] * sx),
				Top:    int(f.BBox[1] * sy),
				Right:  int(f.BBox[2] * sx),
				Bottom: int(f.BBox[3] * sy),
			},
			Encoding: f.Embedding,
		})
	}

	span.SetAttributes(attribute.Int("faces", len(out)))
	return out, nil
}

func (c *Client) post(ctx context.Context, endpoint string, jpegData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("extractor: create part: %w", err)
	}
	if _, err := part.Write(jpegData); err != nil {
		return nil, fmt.Errorf("extractor: write part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("extractor: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("extractor: new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extractor: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("extractor: read response: %w", err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("%w: over %d bytes", ErrResponseTooLarge, c.maxBytes)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extractor: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
