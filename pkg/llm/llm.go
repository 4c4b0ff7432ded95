// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm provides the HTTP client used to invoke an LLM provider.
//
// The client exposes two operations: Configure, which replaces the active
// generation settings, and Invoke, which sends a message sequence and
// returns the model's reply. The HTTP transport is injectable so requests
// can be routed through a proxy.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/chatcore/pkg/message"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the LLM client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeUnavailable
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrUnavailable   = &ClientError{Type: ErrTypeUnavailable, Message: "LLM provider is not reachable"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
)

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return false
}

// IsModelNotFound checks if an error is a model not found error.
func IsModelNotFound(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeModelNotFound
	}
	return false
}

// =============================================================================
// GENERATION SETTINGS
// =============================================================================

// GenerationSettings holds the model identifier and sampling parameters
// for an invocation.
type GenerationSettings struct {
	Model       string   `json:"model" toml:"model"`
	Temperature float64  `json:"temperature,omitempty" toml:"temperature"`
	MaxTokens   int      `json:"max_tokens,omitempty" toml:"max_tokens"`
	Stop        []string `json:"stop,omitempty" toml:"stop"`
}

// Equal reports whether two settings are identical. Used to make
// reconfiguration idempotent.
func (s GenerationSettings) Equal(other GenerationSettings) bool {
	if s.Model != other.Model ||
		s.Temperature != other.Temperature ||
		s.MaxTokens != other.MaxTokens ||
		len(s.Stop) != len(other.Stop) {
		return false
	}
	for i := range s.Stop {
		if s.Stop[i] != other.Stop[i] {
			return false
		}
	}
	return true
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// wireMessage is the provider-facing message shape.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// invokeRequest is the request body for the chat completion endpoint.
type invokeRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream"`
}

// invokeResponse is the response body for the chat completion endpoint.
type invokeResponse struct {
	Message wireMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// toWireRole maps a message kind to the provider role.
func toWireRole(kind message.Kind) string {
	switch kind {
	case message.KindSystem:
		return "system"
	case message.KindAI:
		return "assistant"
	default:
		return "user"
	}
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the LLM client.
type ClientConfig struct {
	// BaseURL is the provider API base URL (default: http://127.0.0.1:11434)
	BaseURL string

	// Timeout for requests (default: 60s)
	Timeout time.Duration

	// DefaultModel to use if the settings carry none
	DefaultModel string

	// MaxRetries for transient failures (default: 3)
	MaxRetries int

	// RetryDelay between retries (default: 1s)
	RetryDelay time.Duration

	// RequestsPerSecond caps the invocation rate (default: 2)
	RequestsPerSecond float64

	// Transport overrides the HTTP transport, e.g. to route through
	// a proxy. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:           "http://127.0.0.1:11434",
		Timeout:           60 * time.Second,
		DefaultModel:      "qwen2.5-coder:14b",
		MaxRetries:        3,
		RetryDelay:        1 * time.Second,
		RequestsPerSecond: 2,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client invokes an LLM provider over HTTP.
//
// The Client is thread-safe for concurrent use.
type Client struct {
	mu       sync.Mutex
	config   *ClientConfig
	settings GenerationSettings

	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new LLM client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultClientConfig())
}

// NewClientWithConfig creates a new LLM client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 1 * time.Second
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 2
	}

	return &Client{
		config: config,
		settings: GenerationSettings{
			Model: config.DefaultModel,
		},
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
	}
}

// Configure replaces the active generation settings.
func (c *Client) Configure(settings GenerationSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if settings.Model == "" {
		settings.Model = c.config.DefaultModel
	}
	c.settings = settings
}

// Settings returns a copy of the active generation settings.
func (c *Client) Settings() GenerationSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// =============================================================================
// INVOCATION
// =============================================================================

// Invoke sends the message sequence to the provider and returns the reply
// as an AI message. Transient connection failures are retried up to
// MaxRetries times with RetryDelay between attempts.
func (c *Client) Invoke(ctx context.Context, msgs []message.Message) (message.Message, error) {
	c.mu.Lock()
	settings := c.settings
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return message.Message{}, &ClientError{Type: ErrTypeTimeout, Message: "rate limit wait aborted", Cause: err}
	}

	wire := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		wire = append(wire, wireMessage{
			Role:    toWireRole(m.Kind),
			Content: m.Content,
		})
	}

	reqBody := invokeRequest{
		Model:       settings.Model,
		Messages:    wire,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
		Stop:        settings.Stop,
		Stream:      false,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return message.Message{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return message.Message{}, &ClientError{Type: ErrTypeTimeout, Message: "retry aborted", Cause: ctx.Err()}
			case <-time.After(c.config.RetryDelay):
			}
		}

		reply, err := c.doInvoke(ctx, body)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		// Only connection-level failures are worth retrying.
		var clientErr *ClientError
		if !errors.As(err, &clientErr) || clientErr.Type != ErrTypeUnavailable {
			return message.Message{}, err
		}
	}

	return message.Message{}, lastErr
}

// doInvoke performs a single HTTP round trip.
func (c *Client) doInvoke(ctx context.Context, body []byte) (message.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return message.Message{}, &ClientError{Type: ErrTypeUnavailable, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return message.Message{}, ErrTimeout
		}
		return message.Message{}, &ClientError{Type: ErrTypeUnavailable, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return message.Message{}, ErrModelNotFound
	}

	if resp.StatusCode != http.StatusOK {
		// Try to read a provider error message
		var provErr invokeResponse
		if err := json.NewDecoder(resp.Body).Decode(&provErr); err == nil && provErr.Error != "" {
			return message.Message{}, &ClientError{
				Type:    ErrTypeInvalidResponse,
				Message: provErr.Error,
			}
		}
		return message.Message{}, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "chat request failed: " + resp.Status,
		}
	}

	var result invokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return message.Message{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	return message.NewAI(result.Message.Content), nil
}
