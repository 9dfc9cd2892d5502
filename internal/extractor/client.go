package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/condoplex/facegate/internal/imaging"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultModel   = "buffalo_l"

	// maxUploadDimension bounds the image size sent to the extractor.
	// Face detection does not benefit from images beyond this size and
	// large uploads dominate request latency.
	maxUploadDimension = 1600
)

// Typed extraction outcomes. Callers distinguish "the image is fine but has
// no face" from "the image could not be read" from "the service is slow".
var (
	ErrNoFaceFound = errors.New("no face found in image")
	ErrDecode      = errors.New("image could not be decoded")
	ErrTimeout     = errors.New("extraction timed out")
)

// Result is a single extracted face embedding with its detection confidence.
type Result struct {
	Embedding  []float32
	Confidence float64
	Model      string
	Dim        int
}

// CompareResult is the outcome of a direct image-to-image comparison.
type CompareResult struct {
	Matched  bool
	Distance *float64
}

// Client talks to the external face embedding service. Calls are bounded by
// a per-call timeout and a weighted semaphore so a burst of enrollment or
// verification requests cannot saturate the service or starve other traffic.
type Client struct {
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
	sem     *semaphore.Weighted
}

// NewClient creates a new extractor client. workers limits concurrent
// in-flight extraction calls; timeout bounds each individual call.
func NewClient(baseURL, model string, timeout time.Duration, workers int) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if workers <= 0 {
		workers = 4
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		timeout: timeout,
		client:  &http.Client{},
		sem:     semaphore.NewWeighted(int64(workers)),
	}
}

// Model returns the model name the client is configured for.
func (c *Client) Model() string {
	return c.model
}

// faceDetection represents a single detected face in the service response.
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	DetScore  float64   `json:"det_score"`
}

// faceResponse represents the response from the face embedding endpoint.
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// compareResponse represents the response from the direct compare endpoint.
type compareResponse struct {
	Matched  bool     `json:"matched"`
	Distance *float64 `json:"distance"`
}

// Extract detects the most prominent face in the image and returns its
// embedding. Returns ErrNoFaceFound when the image decodes but contains no
// face, ErrDecode when the service rejects the image, and ErrTimeout when the
// configured deadline elapses.
func (c *Client) Extract(ctx context.Context, imageData []byte) (*Result, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for extraction slot: %w", err)
	}
	defer c.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	scaled, err := imaging.Downscale(imageData, maxUploadDimension)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecode, err)
	}

	body, err := c.postMultipart(ctx, "/embed/face", map[string][]byte{"file": scaled})
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if faceResp.FacesCount == 0 || len(faceResp.Faces) == 0 {
		return nil, ErrNoFaceFound
	}

	// Pick the highest-confidence detection.
	best := faceResp.Faces[0]
	for _, f := range faceResp.Faces[1:] {
		if f.DetScore > best.DetScore {
			best = f
		}
	}
	if len(best.Embedding) == 0 {
		return nil, ErrNoFaceFound
	}

	return &Result{
		Embedding:  best.Embedding,
		Confidence: best.DetScore,
		Model:      faceResp.Model,
		Dim:        best.Dim,
	}, nil
}

// Compare performs a direct image-to-image face comparison. Used as a
// fallback when a reference photo exists but no embedding could be computed.
func (c *Client) Compare(ctx context.Context, imageA, imageB []byte) (*CompareResult, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for extraction slot: %w", err)
	}
	defer c.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.postMultipart(ctx, "/compare/faces", map[string][]byte{
		"file_a": imageA,
		"file_b": imageB,
	})
	if err != nil {
		return nil, err
	}

	var cmpResp compareResponse
	if err := json.Unmarshal(body, &cmpResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &CompareResult{Matched: cmpResp.Matched, Distance: cmpResp.Distance}, nil
}

// postMultipart builds a multipart form from the named image parts and posts
// it to the given endpoint. Each part carries an explicit Content-Type based
// on magic byte detection.
func (c *Client) postMultipart(ctx context.Context, endpoint string, parts map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, data := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="image.jpg"`, name))
		h.Set("Content-Type", imaging.DetectMIMEType(data))
		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write image data: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: service rejected image (status %d)", ErrDecode, resp.StatusCode)
	default:
		return nil, fmt.Errorf("extractor error (status %d): %s", resp.StatusCode, string(body))
	}
}
