// Package instagram publishes images through the Graph API two-phase
// flow: create a media container, wait for it to finish server-side
// processing, then publish it.
package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	logx "shoutbox/pkg/logx"
)

// Config configures the Graph API client.
type Config struct {
	AccountID    string
	AccessToken  string
	GraphVersion string
	// BaseURL overrides the Graph endpoint, for tests.
	BaseURL string

	RatePerSec   float64
	HTTPTimeout  time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Error is a failed Graph API interaction with operator-facing detail.
type Error struct {
	Op         string
	Detail     string
	HTTPStatus int
}

func (e *Error) Error() string {
	return fmt.Sprintf("instagram %s: %s (status %d)", e.Op, e.Detail, e.HTTPStatus)
}

// Result is a successful publish.
type Result struct {
	MediaID string
}

// Client talks to one Instagram business account.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.AccountID) == "" {
		return nil, errors.New("instagram account id is required")
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("instagram access token is required")
	}
	if cfg.GraphVersion == "" {
		cfg.GraphVersion = "v24.0"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		log:     log,
	}, nil
}

// Publish runs the full container flow and returns the published media id.
func (c *Client) Publish(ctx context.Context, imageURL, caption string) (*Result, error) {
	containerID, err := c.createContainer(ctx, imageURL, caption)
	if err != nil {
		return nil, err
	}
	if err := c.waitForContainer(ctx, containerID); err != nil {
		return nil, err
	}
	mediaID, err := c.publishContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	c.log.Info("media published",
		logx.String("media_id", mediaID))
	return &Result{MediaID: mediaID}, nil
}

func (c *Client) createContainer(ctx context.Context, imageURL, caption string) (string, error) {
	form := url.Values{
		"image_url":    {imageURL},
		"caption":      {caption},
		"access_token": {c.cfg.AccessToken},
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.postForm(ctx, "create_container", c.endpoint("media"), form, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &Error{Op: "create_container", Detail: "response missing container id", HTTPStatus: http.StatusOK}
	}
	return out.ID, nil
}

// waitForContainer polls until the container reports FINISHED. Anything
// else by the deadline, including still IN_PROGRESS, fails the attempt:
// publishing an unfinished container yields broken media.
func (c *Client) waitForContainer(ctx context.Context, containerID string) error {
	deadline := time.Now().Add(c.cfg.PollTimeout)
	for {
		code, err := c.containerStatus(ctx, containerID)
		if err != nil {
			return err
		}
		switch code {
		case "FINISHED":
			return nil
		case "ERROR", "EXPIRED":
			return &Error{Op: "container_status", Detail: "container processing failed: " + code, HTTPStatus: http.StatusOK}
		}
		if time.Now().After(deadline) {
			return &Error{Op: "container_status", Detail: "container not ready before deadline: " + code, HTTPStatus: http.StatusOK}
		}
		select {
		case <-ctx.Done():
			return &Error{Op: "container_status", Detail: ctx.Err().Error(), HTTPStatus: 0}
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

func (c *Client) containerStatus(ctx context.Context, containerID string) (string, error) {
	q := url.Values{
		"fields":       {"status_code"},
		"access_token": {c.cfg.AccessToken},
	}
	u := fmt.Sprintf("%s/%s/%s?%s", c.cfg.BaseURL, c.cfg.GraphVersion, containerID, q.Encode())
	var out struct {
		StatusCode string `json:"status_code"`
	}
	if err := c.do(ctx, "container_status", http.MethodGet, u, nil, &out); err != nil {
		return "", err
	}
	return out.StatusCode, nil
}

func (c *Client) publishContainer(ctx context.Context, containerID string) (string, error) {
	form := url.Values{
		"creation_id":  {containerID},
		"access_token": {c.cfg.AccessToken},
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.postForm(ctx, "media_publish", c.endpoint("media_publish"), form, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &Error{Op: "media_publish", Detail: "response missing media id", HTTPStatus: http.StatusOK}
	}
	return out.ID, nil
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s/%s", c.cfg.BaseURL, c.cfg.GraphVersion, c.cfg.AccountID, path)
}

func (c *Client) postForm(ctx context.Context, op, endpoint string, form url.Values, out any) error {
	return c.do(ctx, op, http.MethodPost, endpoint, strings.NewReader(form.Encode()), out)
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Op: op, Detail: err.Error(), HTTPStatus: 0}
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &Error{Op: op, Detail: err.Error(), HTTPStatus: 0}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Detail: err.Error(), HTTPStatus: 0}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Op: op, Detail: err.Error(), HTTPStatus: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return &Error{Op: op, Detail: graphErrorDetail(raw), HTTPStatus: resp.StatusCode}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Op: op, Detail: "invalid response body: " + err.Error(), HTTPStatus: resp.StatusCode}
		}
	}
	return nil
}

// graphErrorDetail extracts the Graph API error message when present,
// falling back to the raw body.
func graphErrorDetail(raw []byte) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return fmt.Sprintf("%s (type %s, code %d)", body.Error.Message, body.Error.Type, body.Error.Code)
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 300 {
		s = s[:300]
	}
	if s == "" {
		s = "empty error response"
	}
	return s
}
