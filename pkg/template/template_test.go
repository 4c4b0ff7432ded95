// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package template

import (
	"testing"

	"github.com/jeranaias/chatcore/pkg/message"
)

// =============================================================================
// TEMPLATE TESTS
// =============================================================================

func TestNew_AssignsFreshID(t *testing.T) {
	a := New("First")
	b := New("Second")

	if a.ID == "" || b.ID == "" {
		t.Fatal("New should assign IDs")
	}
	if a.ID == b.ID {
		t.Error("templates should not share an ID")
	}
	if a.Pattern != DefaultPattern {
		t.Errorf("Pattern = %q, want %q", a.Pattern, DefaultPattern)
	}
}

func TestTemplate_Clone(t *testing.T) {
	orig := New("Original")
	orig.Variables = []string{"input"}
	orig.Tags = []string{"general"}

	dup := orig.Clone()

	if dup.ID == orig.ID {
		t.Error("clone should get a fresh ID")
	}
	if dup.Name != orig.Name || dup.Pattern != orig.Pattern {
		t.Error("clone should keep text fields")
	}

	dup.Variables[0] = "changed"
	if orig.Variables[0] != "input" {
		t.Error("clone should not share the variables slice")
	}
}

func TestTemplate_InitialMessages(t *testing.T) {
	tpl := Template{
		ID:           "t1",
		SystemPrompt: "Be terse.",
		Description:  "Hi, I'm terse-bot.",
	}

	msgs := tpl.InitialMessages("default prompt")
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Kind != message.KindSystem || msgs[0].Content != "Be terse." {
		t.Errorf("msgs[0] = %q %q, want system message 'Be terse.'", msgs[0].Kind, msgs[0].Content)
	}
	if msgs[1].Kind != message.KindDescription {
		t.Errorf("msgs[1].Kind = %q, want %q", msgs[1].Kind, message.KindDescription)
	}
	if msgs[1].Content != "Hi, I'm terse-bot." {
		t.Errorf("msgs[1].Content = %q, want raw description", msgs[1].Content)
	}
	if msgs[1].TemplateRef != "t1" {
		t.Errorf("msgs[1].TemplateRef = %q, want %q", msgs[1].TemplateRef, "t1")
	}
}

func TestTemplate_InitialMessages_DefaultsAndOmitsDescription(t *testing.T) {
	tpl := Template{ID: "t2"}

	msgs := tpl.InitialMessages("default prompt")
	if len(msgs) != 1 {
		t.Fatalf("len = %d, want 1", len(msgs))
	}
	if msgs[0].Content != "default prompt" {
		t.Errorf("Content = %q, want the default system prompt", msgs[0].Content)
	}
}

// =============================================================================
// SANITIZATION TESTS
// =============================================================================

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trim", "  hello  ", "hello"},
		{"bom stripped", "\ufeffhello", "hello"},
		{"zero width stripped", "he​llo‍", "hello"},
		{"curly quotes straightened", "“hi” and ‘there’", `"hi" and 'there'`},
		{"newlines collapsed", "a\n\n\n\nb", "a\n\nb"},
		{"nul stripped", "a\x00b", "ab"},
		{"control chars stripped", "a\x01\x08\x7fb", "ab"},
		{"tab and newline kept", "a\tb\nc", "a\tb\nc"},
		{"two newlines kept", "a\n\nb", "a\n\nb"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestProcessor_PerTemplateTransformRunsFirst(t *testing.T) {
	proc := NewProcessor()
	proc.Register("t1", func(tpl Template) Template {
		tpl.SystemPrompt = "  replaced  "
		return tpl
	})

	tpl := Template{ID: "t1", SystemPrompt: "original"}
	got := proc.Process(tpl)

	// Transform output still goes through sanitization.
	if got.SystemPrompt != "replaced" {
		t.Errorf("SystemPrompt = %q, want %q", got.SystemPrompt, "replaced")
	}
}

func TestProcessor_UnregisteredTemplateOnlySanitized(t *testing.T) {
	proc := NewProcessor()
	tpl := Template{ID: "t2", SystemPrompt: "  keep me  ", Description: "“quoted”"}

	got := proc.Process(tpl)
	if got.SystemPrompt != "keep me" {
		t.Errorf("SystemPrompt = %q, want %q", got.SystemPrompt, "keep me")
	}
	if got.Description != `"quoted"` {
		t.Errorf("Description = %q, want %q", got.Description, `"quoted"`)
	}
}

// =============================================================================
// PRESET TESTS
// =============================================================================

func TestResolvePreset(t *testing.T) {
	tpl, ok := ResolvePreset("general-assistant")
	if !ok {
		t.Fatal("general-assistant preset should exist")
	}
	if tpl.Name != "General Assistant" {
		t.Errorf("Name = %q, want %q", tpl.Name, "General Assistant")
	}

	if _, ok := ResolvePreset("unknown-id"); ok {
		t.Error("unknown preset ID should not resolve")
	}
}

func TestPresets_ReturnsCopies(t *testing.T) {
	first := Presets()
	first[0].Name = "mutated"

	second := Presets()
	if second[0].Name == "mutated" {
		t.Error("mutating a returned preset should not affect the bundle")
	}
}
