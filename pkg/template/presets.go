// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package template

import (
	"time"

	"github.com/jeranaias/chatcore/pkg/llm"
)

// =============================================================================
// PRESET TEMPLATES
// =============================================================================

// presets are the templates bundled with the library. They resolve without
// a network call and take precedence over remote templates sharing an ID.
var presets = []Template{
	{
		ID:           "general-assistant",
		Name:         "General Assistant",
		Description:  "Hi! Ask me anything.",
		SystemPrompt: "You are a helpful, accurate assistant. Answer concisely and admit when you do not know something.",
		Pattern:      DefaultPattern,
		Variables:    []string{"input"},
		Tags:         []string{"general"},
		LLMConfig: llm.GenerationSettings{
			Temperature: 0.7,
		},
	},
	{
		ID:           "code-reviewer",
		Name:         "Code Reviewer",
		Description:  "Paste code and I'll review it for bugs, style, and clarity.",
		SystemPrompt: "You are a senior software engineer reviewing code. Point out bugs, risky patterns, and unclear naming. Be specific and terse.",
		Pattern:      "Review the following code:\n\n{input}",
		Variables:    []string{"input"},
		Tags:         []string{"coding"},
		LLMConfig: llm.GenerationSettings{
			Temperature: 0.2,
		},
	},
	{
		ID:           "summarizer",
		Name:         "Summarizer",
		SystemPrompt: "Summarize the text the user provides. Keep the summary under {limit} words unless asked otherwise.",
		Pattern:      DefaultPattern,
		Variables:    []string{"input", "limit"},
		Tags:         []string{"writing"},
		LLMConfig: llm.GenerationSettings{
			Temperature: 0.3,
		},
	},
}

// Presets returns copies of the bundled templates.
func Presets() []Template {
	out := make([]Template, len(presets))
	copy(out, presets)
	for i := range out {
		// Bundled templates have no meaningful timestamps until cloned.
		out[i].CreatedAt = time.Time{}
		out[i].UpdatedAt = time.Time{}
	}
	return out
}

// ResolvePreset returns the bundled template with the given ID, if any.
// Presets are checked before any network fetch: first match wins and a
// remote template can never shadow a preset ID.
func ResolvePreset(id string) (Template, bool) {
	for _, t := range presets {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}
