// Package brevo is a thin client for the Brevo (formerly Sendinblue) contact
// and transactional email API.
package brevo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/renex/internal/email"
)

const (
	DefaultBaseURL = "https://api.brevo.com/v3"

	// PlaceholderKey is the value shipped in sample configuration. A client
	// holding it behaves exactly like one with no key at all.
	PlaceholderKey = "YOUR_BREVO_API_KEY"
)

// ErrNotConfigured is returned by calls that must produce data when no real
// API key is set.
var ErrNotConfigured = errors.New("brevo: api key not configured")

// APIError is a non-2xx answer from Brevo. Message is the provider's own text
// when it could be parsed, otherwise a generic message for the operation.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

type Config struct {
	APIKey      string
	BaseURL     string
	ListID      int64
	SenderName  string
	SenderEmail string

	// SiteURL is linked from the welcome email.
	SiteURL string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	renderer   *email.Renderer
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithRenderer(r *email.Renderer) Option {
	return func(cl *Client) {
		cl.renderer = r
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		renderer:   email.NewRenderer(cfg.SiteURL),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if a real API key is set.
func (c *Client) Configured() bool {
	key := strings.TrimSpace(c.cfg.APIKey)
	return key != "" && key != PlaceholderKey
}

// ListID returns the newsletter list contacts are added to.
func (c *Client) ListID() int64 {
	return c.cfg.ListID
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, fallback string) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", c.cfg.APIKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: fallback}
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil {
			apiErr.Code = eb.Code
			if eb.Message != "" {
				apiErr.Message = eb.Message
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
