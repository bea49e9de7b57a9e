package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUpstream is returned when the login service rejects the credentials or is unreachable.
	ErrUpstream = errors.New("login service error")
	// ErrMissingUserID is returned when a 200 answer carries no data.userId.
	ErrMissingUserID = errors.New("login response has no userId")
)

// Client forwards credentials to the external login service.
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates a Client posting to loginURL.
func NewClient(loginURL string, timeout time.Duration) *Client {
	return &Client{
		url:    loginURL,
		client: &http.Client{Timeout: timeout},
	}
}

type loginResponse struct {
	Data struct {
		UserID json.RawMessage `json:"userId"`
	} `json:"data"`
}

// Login posts username and password as a form and returns data.userId from the reply.
func (c *Client) Login(ctx context.Context, username, password string) (int64, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var body loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: invalid response: %v", ErrUpstream, err)
	}

	return parseUserID(body.Data.UserID)
}

// parseUserID accepts both numeric and quoted ids.
func parseUserID(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, ErrMissingUserID
	}
	s = strings.Trim(s, `"`)
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMissingUserID, s)
	}
	return id, nil
}
