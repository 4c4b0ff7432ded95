// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package template

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/chatcore/pkg/llm"
	"github.com/jeranaias/chatcore/pkg/message"
)

// DefaultPattern is the user-input pattern used when a template declares none.
const DefaultPattern = "{input}"

// =============================================================================
// TEMPLATE TYPE
// =============================================================================

// Template is a reusable prompt configuration used to seed a conversation.
type Template struct {
	// Identity. ID is immutable once persisted.
	ID   string `json:"id"`
	Name string `json:"name"`

	// Description is optional and rendered as an introductory assistant
	// message in the UI. It is never sent to the LLM.
	Description string `json:"description,omitempty"`

	// SystemPrompt may contain named placeholders.
	SystemPrompt string `json:"system_prompt"`

	// Pattern is the text pattern applied to user input. Defaults to
	// a single {input} placeholder.
	Pattern string `json:"template"`

	// Variables is the ordered list of placeholder names that may be
	// substituted. Placeholders not listed here are treated as literal
	// text once escaped.
	Variables []string `json:"variables,omitempty"`

	// Tags are category labels.
	Tags []string `json:"tags,omitempty"`

	// LLMConfig carries the model and generation parameters.
	LLMConfig llm.GenerationSettings `json:"llm_config"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a blank template with a fresh ID and the default pattern.
func New(name string) Template {
	now := time.Now()
	return Template{
		ID:        uuid.NewString(),
		Name:      name,
		Pattern:   DefaultPattern,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone duplicates the template with a fresh ID and timestamps.
func (t Template) Clone() Template {
	now := time.Now()
	dup := t
	dup.ID = uuid.NewString()
	dup.CreatedAt = now
	dup.UpdatedAt = now
	dup.Variables = append([]string(nil), t.Variables...)
	dup.Tags = append([]string(nil), t.Tags...)
	dup.LLMConfig.Stop = append([]string(nil), t.LLMConfig.Stop...)
	return dup
}

// PatternOrDefault returns the input pattern, falling back to {input}.
func (t Template) PatternOrDefault() string {
	if t.Pattern == "" {
		return DefaultPattern
	}
	return t.Pattern
}

// HasVariable reports whether a placeholder name is declared.
func (t Template) HasVariable(name string) bool {
	for _, v := range t.Variables {
		if v == name {
			return true
		}
	}
	return false
}

// =============================================================================
// INITIAL MESSAGE CONSTRUCTION
// =============================================================================

// InitialMessages constructs the opening message set for a conversation
// seeded with this template: a system message from the sanitized system
// prompt (or the given default when empty) and, if the description is
// non-empty, a template-description message carrying the raw description
// and a back-reference to the template.
func (t Template) InitialMessages(defaultSystemPrompt string) []message.Message {
	prompt := t.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}

	msgs := []message.Message{message.NewSystem(prompt)}
	if t.Description != "" {
		msgs = append(msgs, message.NewDescription(t.Description, t.ID))
	}
	return msgs
}
