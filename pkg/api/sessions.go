// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/jeranaias/chatcore/pkg/message"
	"github.com/jeranaias/chatcore/pkg/template"
)

// =============================================================================
// SESSION TYPES
// =============================================================================

// MessageRecord is a message serialized to a plain record tagged with its
// kind. Restored records are turned back into live messages with a
// tag-based switch, never re-attached behavior.
type MessageRecord struct {
	ID          string            `json:"id,omitempty"`
	Kind        string            `json:"kind"`
	Content     string            `json:"content"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	TemplateRef string            `json:"template_ref,omitempty"`
	Timestamp   time.Time         `json:"timestamp,omitempty"`
}

// SessionMetadata carries the session's derived topic, the model it was
// using, and the active template.
type SessionMetadata struct {
	Topic    string             `json:"topic,omitempty"`
	Model    string             `json:"model,omitempty"`
	Template *template.Template `json:"template,omitempty"`
}

// Session is the persisted conversation shape used by the session store.
type Session struct {
	ID       string          `json:"id,omitempty"`
	Messages []MessageRecord `json:"messages"`
	Metadata SessionMetadata `json:"metadata"`
	Created  time.Time       `json:"created,omitempty"`
	Updated  time.Time       `json:"updated,omitempty"`
}

// SessionSummary is the listing shape returned by GET /sessions.
type SessionSummary struct {
	ID       string `json:"id"`
	Metadata struct {
		Topic string `json:"topic,omitempty"`
	} `json:"metadata"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// =============================================================================
// RECORD CONVERSION
// =============================================================================

// ToRecords serializes live messages to plain records.
func ToRecords(msgs []message.Message) []MessageRecord {
	out := make([]MessageRecord, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageRecord{
			ID:          m.ID,
			Kind:        m.Kind.String(),
			Content:     m.Content,
			Metadata:    m.Metadata,
			TemplateRef: m.TemplateRef,
			Timestamp:   m.Timestamp,
		})
	}
	return out
}

// ToMessages rebuilds live messages from stored records.
func ToMessages(records []MessageRecord) []message.Message {
	out := make([]message.Message, 0, len(records))
	for _, r := range records {
		out = append(out, message.Message{
			ID:          r.ID,
			Kind:        message.ParseKind(r.Kind),
			Content:     r.Content,
			Metadata:    r.Metadata,
			TemplateRef: r.TemplateRef,
			Timestamp:   r.Timestamp,
		})
	}
	return out
}

// =============================================================================
// SESSION CLIENT
// =============================================================================

// SessionClient talks to the session store service. The orchestrator's
// persistence adapter is its only caller inside chatcore.
type SessionClient struct {
	config ClientConfig
	http   *http.Client
}

// NewSessionClient creates a session store client.
func NewSessionClient(config ClientConfig) *SessionClient {
	return &SessionClient{
		config: config,
		http:   config.httpClient(),
	}
}

// Create persists a new session and returns the stored copy with its
// server-assigned ID.
func (c *SessionClient) Create(ctx context.Context, s Session) (Session, error) {
	var out Session
	err := doJSON(ctx, c.http, http.MethodPost, c.url(""), s, &out)
	return out, err
}

// Update replaces an existing session.
func (c *SessionClient) Update(ctx context.Context, s Session) (Session, error) {
	var out Session
	err := doJSON(ctx, c.http, http.MethodPut, c.url(s.ID), s, &out)
	return out, err
}

// Get retrieves a session by ID.
func (c *SessionClient) Get(ctx context.Context, id string) (Session, error) {
	var out Session
	err := doJSON(ctx, c.http, http.MethodGet, c.url(id), nil, &out)
	return out, err
}

// Delete removes a session by ID.
func (c *SessionClient) Delete(ctx context.Context, id string) error {
	return doJSON(ctx, c.http, http.MethodDelete, c.url(id), nil, nil)
}

// List retrieves session summaries.
func (c *SessionClient) List(ctx context.Context) ([]SessionSummary, error) {
	var out []SessionSummary
	err := doJSON(ctx, c.http, http.MethodGet, c.url(""), nil, &out)
	return out, err
}

func (c *SessionClient) url(id string) string {
	if id == "" {
		return c.config.BaseURL + "/sessions"
	}
	return c.config.BaseURL + "/sessions/" + url.PathEscape(id)
}
