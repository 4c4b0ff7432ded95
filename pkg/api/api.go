// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides HTTP clients for the template store and session
// store services. Only the request/response contracts matter to the rest
// of chatcore; the services themselves are external collaborators.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// APIError represents an error from a store service.
type APIError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// ErrNotFound is returned when a template or session does not exist.
var ErrNotFound = &APIError{StatusCode: http.StatusNotFound, Message: "resource not found"}

// IsNotFound checks whether an error is a not-found error.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration shared by the store clients.
type ClientConfig struct {
	// BaseURL is the service base URL, e.g. "https://example.com/api"
	BaseURL string

	// Timeout for requests (default: 15s)
	Timeout time.Duration

	// HTTPClient overrides the HTTP client; nil uses a default with Timeout.
	HTTPClient *http.Client
}

func (cfg *ClientConfig) httpClient() *http.Client {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// doJSON performs an HTTP round trip with an optional JSON body, decoding
// the response into out when out is non-nil.
func doJSON(ctx context.Context, client *http.Client, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &APIError{Message: "failed to marshal request", Cause: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return &APIError{Message: "failed to create request", Cause: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return &APIError{Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    method + " " + url + " failed: " + resp.Status,
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &APIError{Message: "failed to decode response", Cause: err}
		}
	}
	return nil
}
