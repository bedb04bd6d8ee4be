// Package zhipu is a client for the Zhipu GLM chat completion API.
package zhipu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/i2y/bigmodel/auth"
	"github.com/i2y/bigmodel/config"
	"github.com/i2y/bigmodel/logger"
	"github.com/i2y/bigmodel/sse"
)

const (
	// DefaultBaseURL is the v4 API root. Endpoints are resolved against it.
	DefaultBaseURL = "https://open.bigmodel.cn/api/paas/v4/"

	// DefaultModel is used when no model is configured.
	DefaultModel = "glm-4-flash-250414"
)

// Client sends chat completion requests. It is safe for concurrent use;
// every call owns its own request and stream state.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	tokens     *auth.Source
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	apiKey       string
	baseURL      string
	model        string
	httpClient   *http.Client
	timeout      time.Duration
	tokenRefresh time.Duration
	logger       *slog.Logger
}

// WithAPIKey sets the API key ("<id>.<secret>").
func WithAPIKey(key string) Option {
	return func(c *clientConfig) {
		c.apiKey = key
	}
}

// WithBaseURL sets a custom API root.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithModel sets the default model.
func WithModel(name string) Option {
	return func(c *clientConfig) {
		c.model = name
	}
}

// WithHTTPClient sets the HTTP client used for every exchange.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout bounds each exchange, including reading a stream to the end.
// It is ignored when WithHTTPClient is used.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithTokenRefresh makes the client reissue its credential when it is
// within skew of expiry. Without it one credential, valid for an hour, is
// used for the lifetime of the client.
func WithTokenRefresh(skew time.Duration) Option {
	return func(c *clientConfig) {
		c.tokenRefresh = skew
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithConfig applies loaded settings. Options given after it override it.
func WithConfig(cfg *config.Config) Option {
	return func(c *clientConfig) {
		if cfg.APIKey != "" {
			c.apiKey = cfg.APIKey
		}
		if cfg.BaseURL != "" {
			c.baseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			c.model = cfg.Model
		}
		if cfg.Timeout > 0 {
			c.timeout = cfg.Timeout
		}
		if cfg.TokenRefresh > 0 {
			c.tokenRefresh = cfg.TokenRefresh
		}
		if cfg.Log.Level != "" || cfg.Log.Format != "" {
			c.logger = logger.New(
				logger.WithLevel(logger.ParseLevel(cfg.Log.Level)),
				logger.WithFormat(cfg.Log.Format),
				logger.WithWriter(os.Stderr),
			)
		}
	}
}

// New creates a client and issues its credential. The API key falls back to
// the ZHIPU_API_KEY environment variable; a missing or malformed key yields
// a *ConfigError.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.apiKey == "" {
		cfg.apiKey = os.Getenv(config.EnvAPIKey)
	}
	if cfg.apiKey == "" {
		return nil, &ConfigError{
			Reason: "api key required: set " + config.EnvAPIKey + " or use WithAPIKey",
		}
	}

	var srcOpts []auth.SourceOption
	if cfg.tokenRefresh > 0 {
		srcOpts = append(srcOpts, auth.WithRefresh(cfg.tokenRefresh))
	}
	tokens, err := auth.NewSource(cfg.apiKey, srcOpts...)
	if err != nil {
		return nil, err
	}

	if cfg.baseURL == "" {
		cfg.baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.baseURL, "/") {
		cfg.baseURL += "/"
	}
	if cfg.model == "" {
		cfg.model = DefaultModel
	}
	if cfg.httpClient == nil {
		if cfg.timeout > 0 {
			cfg.httpClient = &http.Client{Timeout: cfg.timeout}
		} else {
			cfg.httpClient = http.DefaultClient
		}
	}
	if cfg.logger == nil {
		cfg.logger = logger.Nop()
	}

	return &Client{
		baseURL:    cfg.baseURL,
		model:      cfg.model,
		httpClient: cfg.httpClient,
		tokens:     tokens,
		logger:     cfg.logger,
	}, nil
}

// Model returns the default model.
func (c *Client) Model() string {
	return c.model
}

// Credential returns the credential the next request will carry.
func (c *Client) Credential() *auth.Credential {
	return c.tokens.Credential()
}

// Chat sends a non-streaming chat completion request.
//
// A non-2xx response yields an *APIError; a transport failure a
// *NetworkError.
func (c *Client) Chat(ctx context.Context, messages []Message, params ...Param) (*ChatCompletion, error) {
	httpResp, _, err := c.send(ctx, messages, params, false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "reading response", Err: err}
	}

	var resp ChatCompletion
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	resp.Raw = respBody
	return &resp, nil
}

// ChatStream sends a streaming chat completion request. The caller must
// Close the returned Stream.
func (c *Client) ChatStream(ctx context.Context, messages []Message, params ...Param) (*Stream, error) {
	httpResp, log, err := c.send(ctx, messages, params, true)
	if err != nil {
		return nil, err
	}
	return newStream(httpResp.Body, log), nil
}

// ChatStreamFunc is the callback form of ChatStream. onEvent receives every
// event in order and always receives exactly one Done, as its last call,
// whether or not the exchange succeeded. The returned error is the request
// error or the transport error that ended the stream.
func (c *Client) ChatStreamFunc(ctx context.Context, messages []Message, onEvent func(sse.Event), params ...Param) error {
	stream, err := c.ChatStream(ctx, messages, params...)
	if err != nil {
		onEvent(sse.Done)
		return err
	}
	defer func() { _ = stream.Close() }()

	for ev := range stream.Events() {
		onEvent(ev)
	}
	return stream.Err()
}

// requestIDHeader mirrors the body's request_id onto the outgoing request
// so it can be correlated in logs.
const requestIDHeader = "X-Request-Id"

// buildBody assembles {model, messages, ...params}. stream is decided last
// so params cannot change it.
func (c *Client) buildBody(messages []Message, params []Param, stream bool) map[string]any {
	body := map[string]any{
		"model":    c.model,
		"messages": messages,
	}
	for _, p := range params {
		p(body)
	}
	if _, ok := body["request_id"]; !ok {
		body["request_id"] = uuid.NewString()
	}
	if stream {
		body["stream"] = true
	} else {
		delete(body, "stream")
	}
	return body
}

// send performs the exchange and returns the response only for 2xx status
// codes, along with a logger scoped to the request. The caller owns the
// response body.
func (c *Client) send(ctx context.Context, messages []Message, params []Param, stream bool) (*http.Response, *slog.Logger, error) {
	if len(messages) == 0 {
		return nil, nil, ErrNoMessages
	}

	body := c.buildBody(messages, params, stream)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.baseURL + "chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}

	requestID := fmt.Sprint(body["request_id"])
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.tokens.Token())
	httpReq.Header.Set(requestIDHeader, requestID)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	log := c.logger.With("request_id", requestID, "model", body["model"], "stream", stream)
	log.DebugContext(ctx, "sending chat request", "url", url, "messages", len(messages))

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.DebugContext(ctx, "chat request failed", "error", err)
		return nil, nil, &NetworkError{Op: "sending request", Err: err}
	}

	log.DebugContext(ctx, "chat response", "status", httpResp.StatusCode, "duration", time.Since(start))

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		defer func() { _ = httpResp.Body.Close() }()
		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, nil, &NetworkError{Op: "reading error response", Err: err}
		}
		return nil, nil, newAPIError(httpResp.StatusCode, respBody)
	}

	return httpResp, log, nil
}
