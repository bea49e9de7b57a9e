package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/pipeline"
)

// FrameEncoder turns a frame into JPEG bytes.
type FrameEncoder interface {
	Encode(frame pipeline.Frame) ([]byte, error)
}

// RemoteDetector sends each frame to an HTTP inference service, e.g. the
// YOLO model served from a Python sidecar.
type RemoteDetector struct {
	url     string
	encoder FrameEncoder
	client  *http.Client
}

// NewRemoteDetector creates a RemoteDetector posting to inferenceURL.
func NewRemoteDetector(inferenceURL string, encoder FrameEncoder, timeout time.Duration) *RemoteDetector {
	return &RemoteDetector{
		url:     inferenceURL,
		encoder: encoder,
		client:  &http.Client{Timeout: timeout},
	}
}

// Detect posts the frame as multipart "file" and decodes {"detections":[...]}.
func (r *RemoteDetector) Detect(frame pipeline.Frame) ([]dto.DetectionResult, error) {
	jpeg, err := r.encoder.Encode(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return r.Predict(jpeg)
}

// Predict runs inference on an already encoded JPEG.
func (r *RemoteDetector) Predict(jpeg []byte) ([]dto.DetectionResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(jpeg); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Detections []dto.DetectionResult `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Detections, nil
}

// healthURL replaces the last path segment of the inference URL with "health",
// so http://host:5000/predict is checked at http://host:5000/health.
func healthURL(inferenceURL string) (string, error) {
	u, err := url.Parse(inferenceURL)
	if err != nil {
		return "", fmt.Errorf("invalid inference URL: %w", err)
	}
	dir := path.Dir(u.Path)
	if dir == "." {
		dir = "/"
	}
	u.Path = path.Join(dir, "health")
	u.RawPath = ""
	u.RawQuery = ""
	return u.String(), nil
}

// CheckHealth calls the health endpoint next to the inference endpoint.
func (r *RemoteDetector) CheckHealth() error {
	target, err := healthURL(r.url)
	if err != nil {
		return err
	}
	resp, err := r.client.Get(target)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
