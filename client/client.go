// Package client implements the HTTP transport for the Messages API:
// request assembly, authentication headers, error mapping, and the bridge
// into the streaming package for server-sent event responses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/fennelworks/claude-go/anthropic"
	"github.com/fennelworks/claude-go/partialjson"
	"github.com/fennelworks/claude-go/streaming"
)

const apiVersion = "2023-06-01"
const messagesPath = "/v1/messages"

// Client talks to the Messages API. Construct with New or NewWithConfig.
type Client struct {
	Messages *MessageService

	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client, e.g. for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the client logger; defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New builds a client from environment configuration.
func New(opts ...Option) (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("client: ANTHROPIC_API_KEY is not set")
	}
	return NewWithConfig(*cfg, opts...), nil
}

// NewWithConfig builds a client from an explicit Config.
func NewWithConfig(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Messages = &MessageService{client: c}
	return c
}

// MessageService issues requests against the Messages endpoint.
type MessageService struct {
	client *Client
}

// New sends a non-streaming request and returns the complete message.
func (s *MessageService) New(ctx context.Context, params anthropic.MessageNewParams, opts ...RequestOption) (*anthropic.Message, error) {
	rc := newRequestConfig(opts)
	params.Stream = false

	resp, reqID, err := s.client.do(ctx, params, rc)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp.StatusCode, body, reqID)
	}

	var msg anthropic.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("client: decode message: %w", err)
	}
	return &msg, nil
}

// NewStreaming returns a manager whose Start opens a streaming request and
// hands back the live event stream. The request is issued with the context
// passed to Start.
func (s *MessageService) NewStreaming(params anthropic.MessageNewParams, opts ...RequestOption) *streaming.MessageStreamManager {
	return streaming.NewMessageStreamManager(func(ctx context.Context) (*streaming.MessageStream, error) {
		return s.Stream(ctx, params, opts...)
	})
}

// Stream opens a streaming request immediately.
func (s *MessageService) Stream(ctx context.Context, params anthropic.MessageNewParams, opts ...RequestOption) (*streaming.MessageStream, error) {
	rc := newRequestConfig(opts)
	params.Stream = true

	resp, reqID, err := s.client.do(ctx, params, rc)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, apiError(resp.StatusCode, body, reqID)
	}

	mode := partialjson.ModeDefault
	if rc.hasBeta(betaFineGrainedToolStreaming) {
		mode = partialjson.ModeTrailingStrings
	}
	return streaming.NewMessageStream(resp.Body, streaming.StreamOptions{
		PartialMode:  mode,
		OutputFormat: params.OutputFormat,
		Logger:       s.client.log,
		StatusCode:   resp.StatusCode,
		RequestID:    reqID,
	}), nil
}

// do assembles and sends one request, returning the raw response and the
// request id used.
func (c *Client) do(ctx context.Context, params anthropic.MessageNewParams, rc *requestConfig) (*http.Response, string, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, "", fmt.Errorf("client: encode request: %w", err)
	}
	for key, value := range rc.extraBody {
		if body, err = sjson.SetBytes(body, key, value); err != nil {
			return nil, "", fmt.Errorf("client: set extra body %q: %w", key, err)
		}
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + messagesPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}

	reqID := uuid.NewString()
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("X-Request-Id", reqID)
	if len(rc.betas) > 0 {
		req.Header.Set("anthropic-beta", strings.Join(rc.betas, ","))
	}
	for key, values := range rc.header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	httpClient := c.http
	if rc.timeout > 0 {
		clone := *c.http
		clone.Timeout = rc.timeout
		httpClient = &clone
	}

	c.log.Debug().Str("request_id", reqID).Str("model", params.Model).
		Bool("stream", params.Stream).Int("messages", len(params.Messages)).
		Msg("messages request")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, reqID, err
	}
	if id := resp.Header.Get("request-id"); id != "" {
		reqID = id
	}
	return resp, reqID, nil
}

// apiError maps an error response body onto APIError.
func apiError(status int, body []byte, reqID string) *anthropic.APIError {
	return &anthropic.APIError{
		StatusCode: status,
		Type:       gjson.GetBytes(body, "error.type").String(),
		Message:    gjson.GetBytes(body, "error.message").String(),
		RequestID:  reqID,
	}
}
