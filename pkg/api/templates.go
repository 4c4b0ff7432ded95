// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/jeranaias/chatcore/pkg/template"
)

// =============================================================================
// TEMPLATE CLIENT
// =============================================================================

// TemplateSummary is the listing shape returned by GET /templates.
type TemplateSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Updated     time.Time `json:"updated"`
}

// TemplateClient talks to the template store service.
type TemplateClient struct {
	config ClientConfig
	http   *http.Client
}

// NewTemplateClient creates a template store client.
func NewTemplateClient(config ClientConfig) *TemplateClient {
	return &TemplateClient{
		config: config,
		http:   config.httpClient(),
	}
}

// Get retrieves a template by ID.
func (c *TemplateClient) Get(ctx context.Context, id string) (template.Template, error) {
	var out template.Template
	err := doJSON(ctx, c.http, http.MethodGet, c.url(id), nil, &out)
	return out, err
}

// List retrieves template summaries.
func (c *TemplateClient) List(ctx context.Context) ([]TemplateSummary, error) {
	var out []TemplateSummary
	err := doJSON(ctx, c.http, http.MethodGet, c.url(""), nil, &out)
	return out, err
}

// Create persists a new template and returns the stored copy.
func (c *TemplateClient) Create(ctx context.Context, t template.Template) (template.Template, error) {
	var out template.Template
	err := doJSON(ctx, c.http, http.MethodPost, c.url(""), t, &out)
	return out, err
}

// Update replaces an existing template and returns the stored copy.
func (c *TemplateClient) Update(ctx context.Context, t template.Template) (template.Template, error) {
	var out template.Template
	err := doJSON(ctx, c.http, http.MethodPut, c.url(t.ID), t, &out)
	return out, err
}

// Delete removes a template by ID.
func (c *TemplateClient) Delete(ctx context.Context, id string) error {
	return doJSON(ctx, c.http, http.MethodDelete, c.url(id), nil, nil)
}

func (c *TemplateClient) url(id string) string {
	if id == "" {
		return c.config.BaseURL + "/templates"
	}
	return c.config.BaseURL + "/templates/" + url.PathEscape(id)
}
