package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ironsheep/wall-measure/internal/depth"
	"github.com/ironsheep/wall-measure/internal/imaging"
)

// maxErrorBody caps how much of a failed response body is quoted in errors.
const maxErrorBody = 512

// Client talks to a model inference service that hosts the detector, the
// segmenter and the depth estimator. It implements Detector, Segmenter and
// DepthEstimator.
//
// Images are uploaded as PNG in the multipart field "file". Detection and
// segmentation replies are JSON; the depth field is msgpack because it is a
// dense float array the size of the image.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the inference service at baseURL. A zero
// timeout disables the per-request deadline, leaving cancellation to ctx.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the inference service address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type wireDetection struct {
	Box       Box     `json:"box"`
	Score     float64 `json:"score"`
	ClassID   int     `json:"class_id"`
	ClassName string  `json:"class_name"`
}

// Detect runs the object detector with the given confidence threshold.
func (c *Client) Detect(ctx context.Context, img image.Image, confidence float64) ([]Detection, error) {
	q := url.Values{}
	q.Set("confidence", strconv.FormatFloat(confidence, 'f', -1, 64))

	resp, err := c.postImage(ctx, "/detect?"+q.Encode(), img)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Detections []wireDetection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("detect: decode response: %w", err)
	}

	detections := make([]Detection, 0, len(result.Detections))
	for _, d := range result.Detections {
		detections = append(detections, Detection{
			Box:     d.Box,
			Score:   d.Score,
			ClassID: d.ClassID,
			Label:   d.ClassName,
		})
	}
	return detections, nil
}

// Prepare uploads the image to the segmenter and opens a session for box
// prompts against it. The session must be closed.
func (c *Client) Prepare(ctx context.Context, img image.Image) (SegmentSession, error) {
	resp, err := c.postImage(ctx, "/segment/prepare", img)
	if err != nil {
		return nil, fmt.Errorf("segment prepare: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("segment prepare: decode response: %w", err)
	}
	if result.SessionID == "" {
		return nil, fmt.Errorf("segment prepare: empty session id")
	}

	bounds := img.Bounds()
	return &remoteSession{
		client: c,
		id:     result.SessionID,
		width:  bounds.Dx(),
		height: bounds.Dy(),
	}, nil
}

type depthPayload struct {
	Width  int       `msgpack:"width"`
	Height int       `msgpack:"height"`
	Depth  []float32 `msgpack:"depth"`
}

// Estimate runs the monocular depth estimator.
func (c *Client) Estimate(ctx context.Context, img image.Image) (*depth.Field, error) {
	resp, err := c.postImage(ctx, "/depth", img)
	if err != nil {
		return nil, fmt.Errorf("depth: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("depth: read response: %w", err)
	}

	var payload depthPayload
	if err := msgpack.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("depth: decode response: %w", err)
	}

	values := make([]float64, len(payload.Depth))
	for i, v := range payload.Depth {
		values[i] = float64(v)
	}
	field, err := depth.NewField(payload.Width, payload.Height, values)
	if err != nil {
		return nil, fmt.Errorf("depth: %w", err)
	}
	if err := field.Validate(); err != nil {
		return nil, fmt.Errorf("depth: %w", err)
	}
	return field, nil
}

// CheckHealth reports whether the inference service is up with its models
// loaded.
func (c *Client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

// postImage uploads img as a PNG multipart form and returns the response when
// it has a 2xx status. Callers close the body.
func (c *Client) postImage(ctx context.Context, path string, img image.Image) (*http.Response, error) {
	pngData, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(pngData); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

// postJSON sends v as a JSON body and returns the response when it has a 2xx
// status. Callers close the body.
func (c *Client) postJSON(ctx context.Context, path string, v interface{}) (*http.Response, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	return resp, nil
}

// StatusError is returned when the inference service answers with a non-2xx
// status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("inference failed with status: %d", e.StatusCode)
	}
	return fmt.Sprintf("inference failed with status: %d: %s", e.StatusCode, e.Body)
}

// remoteSession is a segmenter session held by the inference service.
type remoteSession struct {
	client *Client
	id     string
	width  int
	height int
}

type predictRequest struct {
	SessionID string `json:"session_id"`
	Box       Box    `json:"box"`
}

// Predict segments the object inside box.
func (s *remoteSession) Predict(ctx context.Context, box Box) (*Prediction, error) {
	resp, err := s.client.postJSON(ctx, "/segment/predict", predictRequest{SessionID: s.id, Box: box})
	if err != nil {
		return nil, fmt.Errorf("segment predict: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		MaskPNG string  `json:"mask_png"`
		Score   float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("segment predict: decode response: %w", err)
	}

	mask, err := imaging.DecodeMaskBase64(result.MaskPNG)
	if err != nil {
		return nil, fmt.Errorf("segment predict: %w", err)
	}
	if !mask.SameShape(s.width, s.height) {
		return nil, fmt.Errorf("segment predict: mask is %dx%d, image is %dx%d",
			mask.Width, mask.Height, s.width, s.height)
	}

	return &Prediction{Mask: mask, Score: result.Score}, nil
}

// Close releases the session on the inference service.
func (s *remoteSession) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := s.client.postJSON(ctx, "/segment/release", struct {
		SessionID string `json:"session_id"`
	}{SessionID: s.id})
	if err != nil {
		return fmt.Errorf("segment release: %w", err)
	}
	resp.Body.Close()
	return nil
}
