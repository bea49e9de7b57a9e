package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
)

// Classifier tells the downstream classification service that new evidence
// was committed.
type Classifier struct {
	url    string
	client *http.Client
	logger *logger.Logger
}

// NewClassifier creates a Classifier posting to url. Each request is bounded by timeout.
func NewClassifier(url string, timeout time.Duration, logger *logger.Logger) *Classifier {
	return &Classifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Notify posts {"evidenceId","fileName"} as JSON. Any non-2xx answer is an error.
func (c *Classifier) Notify(ctx context.Context, n dto.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to notify classifier: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	c.logger.Info("Classifier notified for evidence %d (%s)", n.EvidenceID, n.FileName)
	return nil
}
