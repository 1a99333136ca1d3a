package apns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Response is the interpreted outcome of one APNs send.
type Response struct {
	Status  int
	Message string
}

// OK reports delivery success.
func (r *Response) OK() bool {
	return r.Status == http.StatusOK
}

// TokenInvalid reports the signals after which the device token must not be
// retried: 410 Gone, or 400 carrying a BadDeviceToken reason.
func (r *Response) TokenInvalid() bool {
	if r.Status == http.StatusGone {
		return true
	}
	return r.Status == http.StatusBadRequest && strings.Contains(r.Message, "BadDeviceToken")
}

// Client sends a built payload to APNs and reports the channel status.
type Client interface {
	Send(ctx context.Context, deviceToken string, headers map[string]string, payload any) (*Response, error)
}

// Config holds the upstream endpoint and provider credentials.
type Config struct {
	URL     string        `env:"APNS_URL" envDefault:"https://api.push.apple.com"` // Production endpoint; point at a proxy or the sandbox as needed
	Topic   string        `env:"APNS_TOPIC"`                                       // Bundle id of the receiving app
	KeyID   string        `env:"APNS_KEY_ID"`                                      // Provider auth key id
	TeamID  string        `env:"APNS_TEAM_ID"`                                     // Developer team id
	AuthKey string        `env:"APNS_AUTH_KEY"`                                    // PEM contents of the .p8 provider key
	Timeout time.Duration `env:"APNS_TIMEOUT" envDefault:"15s"`
}

// HTTPClient is the default Client implementation speaking the APNs
// provider API over HTTP.
type HTTPClient struct {
	baseURL string
	topic   string
	tokens  TokenSource
	httpc   *http.Client
	log     *slog.Logger
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPClientLogger sets the logger for the HTTPClient.
func WithHTTPClientLogger(log *slog.Logger) HTTPClientOption {
	return func(c *HTTPClient) {
		if log != nil {
			c.log = log
		}
	}
}

// WithHTTPDoer overrides the underlying HTTP client, mainly for tests.
func WithHTTPDoer(httpc *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		if httpc != nil {
			c.httpc = httpc
		}
	}
}

// NewHTTPClient creates a client for the configured endpoint. A nil token
// source sends unauthenticated requests, which suits fronting proxies that
// hold the provider credentials themselves.
func NewHTTPClient(cfg Config, tokens TokenSource, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		topic:   cfg.Topic,
		tokens:  tokens,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts the payload to APNs for one device token and interprets the
// HTTP status. A non-2xx status is returned as a Response, not an error;
// errors are reserved for transport-level failures.
func (c *HTTPClient) Send(ctx context.Context, deviceToken string, headers map[string]string, payload any) (*Response, error) {
	if deviceToken == "" {
		return nil, ErrEmptyDeviceToken
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode apns payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/3/device/"+deviceToken, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.topic != "" {
		req.Header.Set(HeaderTopic, c.topic)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("apns provider token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return &Response{
		Status:  resp.StatusCode,
		Message: readReason(resp.Body),
	}, nil
}

// readReason extracts the error reason from an APNs response body. The
// body is a JSON object {"reason": "..."} on failure and empty on success.
func readReason(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var parsed struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Reason != "" {
		return parsed.Reason
	}
	return string(raw)
}
