// Package detector talks to the object and pose detection server.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/photo-dedup/internal/analysis"
)

const (
	defaultDetectorURL = "http://localhost:8000"
	jpegQuality        = 90
)

// Client implements analysis.PersonDetector and analysis.PoseDetector over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new detector client
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultDetectorURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// objectsResponse represents the response from /detect/objects
type objectsResponse struct {
	Objects []analysis.Detection `json:"objects"`
}

// poseResponse represents the response from /detect/pose
type poseResponse struct {
	Landmarks []analysis.Landmark `json:"landmarks"`
}

// Detect returns labeled objects found in img.
func (c *Client) Detect(ctx context.Context, img image.Image) ([]analysis.Detection, error) {
	body, err := c.postImage(ctx, "/detect/objects", img)
	if err != nil {
		return nil, err
	}

	var resp objectsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.Objects, nil
}

// DetectPose returns pose landmarks for the most prominent person in img.
// An empty slice means no pose was found.
func (c *Client) DetectPose(ctx context.Context, img image.Image) ([]analysis.Landmark, error) {
	body, err := c.postImage(ctx, "/detect/pose", img)
	if err != nil {
		return nil, err
	}

	var resp poseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.Landmarks, nil
}

// Health checks that the detection server responds.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("detector unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

// postImage JPEG-encodes img and posts it as a multipart form to the given endpoint.
func (c *Client) postImage(ctx context.Context, endpoint string, img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if err := jpeg.Encode(part, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
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
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
