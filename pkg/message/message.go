// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package message contains the conversational message model and the
// processing pipeline applied to messages before storage or LLM invocation.
package message

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/jeranaias/chatcore/internal/util"
)

// =============================================================================
// KIND TYPE
// =============================================================================

// Kind identifies the sender or purpose of a message.
type Kind string

const (
	// KindSystem is the behavior-setting message at the head of a conversation.
	KindSystem Kind = "system"

	// KindHuman is a message authored by the user.
	KindHuman Kind = "human"

	// KindAI is a message produced by the LLM.
	KindAI Kind = "ai"

	// KindDescription is a synthetic, UI-only message derived from a
	// template's description field. It is never sent to the LLM.
	KindDescription Kind = "template-description"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Valid reports whether the kind is one of the known values.
func (k Kind) Valid() bool {
	switch k {
	case KindSystem, KindHuman, KindAI, KindDescription:
		return true
	}
	return false
}

// ParseKind converts a stored tag back into a Kind.
// Unknown tags fall back to KindHuman so restored records stay usable.
func ParseKind(s string) Kind {
	k := Kind(s)
	if k.Valid() {
		return k
	}
	return KindHuman
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single conversational turn.
//
// Kind is an explicit discriminant: serialization is a tag-based switch,
// never attached behavior.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content string `json:"content"`

	// Metadata is opaque key-value data carried alongside the content.
	Metadata map[string]string `json:"metadata,omitempty"`

	// TemplateRef links a description message back to its template
	// for UI rendering.
	TemplateRef string `json:"template_ref,omitempty"`
}

// New creates a message of the given kind with a generated ID.
func New(kind Kind, content string) Message {
	return Message{
		ID:        generateID(),
		Kind:      kind,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewSystem creates a system message.
func NewSystem(content string) Message {
	return New(KindSystem, content)
}

// NewHuman creates a human message.
func NewHuman(content string) Message {
	return New(KindHuman, content)
}

// NewAI creates an AI message.
func NewAI(content string) Message {
	return New(KindAI, content)
}

// NewDescription creates a template-description message carrying the raw
// description text and a back-reference to the template it came from.
func NewDescription(content, templateID string) Message {
	msg := New(KindDescription, content)
	msg.TemplateRef = templateID
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// IsEmpty returns true if the message content is empty after trimming.
func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}

// Preview returns a truncated preview of the message content.
func (m Message) Preview(maxLen int) string {
	return util.TruncateString(m.Content, maxLen)
}

// WithMetadata returns a copy of the message with a metadata entry set.
func (m Message) WithMetadata(key, value string) Message {
	meta := make(map[string]string, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		meta[k] = v
	}
	meta[key] = value
	m.Metadata = meta
	return m
}

// =============================================================================
// LIST HELPERS
// =============================================================================

// FilterKind returns the messages whose kind is NOT the given kind,
// preserving order. Used to exclude UI-only messages from LLM input.
func FilterKind(msgs []Message, kind Kind) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Kind != kind {
			out = append(out, m)
		}
	}
	return out
}

// FirstOfKind returns the index of the first message of the given kind,
// or -1 if none exists.
func FirstOfKind(msgs []Message, kind Kind) int {
	for i, m := range msgs {
		if m.Kind == kind {
			return i
		}
	}
	return -1
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID.
func generateID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "msg_" + hex.EncodeToString(bytes)
}
