package client

import (
	"net/http"
	"time"
)

// betaFineGrainedToolStreaming enables trailing-string partial JSON in
// streamed tool input.
const betaFineGrainedToolStreaming = "fine-grained-tool-streaming-2025-05-14"

// requestConfig collects per-request customisation applied by RequestOption.
type requestConfig struct {
	header    http.Header
	betas     []string
	extraBody map[string]any
	timeout   time.Duration
}

func newRequestConfig(opts []RequestOption) *requestConfig {
	rc := &requestConfig{header: make(http.Header)}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// RequestOption customises a single request.
type RequestOption func(*requestConfig)

// WithHeader sets a request header, replacing any previous value.
func WithHeader(key, value string) RequestOption {
	return func(rc *requestConfig) { rc.header.Set(key, value) }
}

// WithBetaFeature opts the request into a beta feature; features accumulate
// into the anthropic-beta header.
func WithBetaFeature(feature string) RequestOption {
	return func(rc *requestConfig) { rc.betas = append(rc.betas, feature) }
}

// WithFineGrainedToolStreaming opts the request into fine-grained tool
// streaming. Streams opened with it parse unterminated strings in tool
// input instead of dropping them.
func WithFineGrainedToolStreaming() RequestOption {
	return WithBetaFeature(betaFineGrainedToolStreaming)
}

// WithExtraBody sets a body field not covered by MessageNewParams. Key is an
// sjson path, so nested fields can be addressed ("metadata.user_id").
func WithExtraBody(key string, value any) RequestOption {
	return func(rc *requestConfig) {
		if rc.extraBody == nil {
			rc.extraBody = make(map[string]any)
		}
		rc.extraBody[key] = value
	}
}

// WithTimeout overrides the client timeout for this request.
func WithTimeout(d time.Duration) RequestOption {
	return func(rc *requestConfig) { rc.timeout = d }
}

func (rc *requestConfig) hasBeta(feature string) bool {
	for _, b := range rc.betas {
		if b == feature {
			return true
		}
	}
	return false
}
