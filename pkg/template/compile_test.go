// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package template

import "testing"

// =============================================================================
// ESCAPING TESTS
// =============================================================================

func TestCompile_EscapesLiteralBraces(t *testing.T) {
	tests := []struct {
		name      string
		prompt    string
		variables []string
		want      string
	}{
		{
			name:      "declared placeholder survives",
			prompt:    "Answer about {topic}.",
			variables: []string{"topic"},
			want:      "Answer about {topic}.",
		},
		{
			name:      "undeclared identifier escaped",
			prompt:    "Answer about {topic}.",
			variables: nil,
			want:      "Answer about {{topic}}.",
		},
		{
			name:      "literal brace escaped alongside declared placeholder",
			prompt:    "JSON looks like { and uses {topic}",
			variables: []string{"topic"},
			want:      "JSON looks like {{ and uses {topic}",
		},
		{
			name:      "malformed placeholder escaped not rejected",
			prompt:    "broken {1bad} and {un closed",
			variables: []string{"1bad"},
			want:      "broken {{1bad}} and {{un closed",
		},
		{
			name:      "empty braces escaped",
			prompt:    "empty {} here",
			variables: nil,
			want:      "empty {{}} here",
		},
		{
			name:      "underscore identifier allowed",
			prompt:    "{_x} {x_1}",
			variables: []string{"_x", "x_1"},
			want:      "{_x} {x_1}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := Template{SystemPrompt: tt.prompt, Variables: tt.variables}
			got := Compile(tpl).SystemPrompt
			if got != tt.want {
				t.Errorf("compiled = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompile_DefaultsPattern(t *testing.T) {
	tpl := Template{Variables: []string{"input"}}
	compiled := Compile(tpl)

	if compiled.Pattern != "{input}" {
		t.Errorf("Pattern = %q, want %q", compiled.Pattern, "{input}")
	}
}

// The input slot works without being declared: templates that never list
// variables still pass user text through the default pattern.
func TestCompile_ImplicitInputSlot(t *testing.T) {
	compiled := Compile(Template{})

	got := compiled.RenderPattern(map[string]string{"input": "hello"})
	if got != "hello" {
		t.Errorf("rendered = %q, want %q", got, "hello")
	}
}

// =============================================================================
// RENDERING TESTS
// =============================================================================

func TestCompiledPrompt_RenderPattern(t *testing.T) {
	tpl := Template{
		Pattern:   "Review the following code:\n\n{input}",
		Variables: []string{"input"},
	}
	compiled := Compile(tpl)

	got := compiled.RenderPattern(map[string]string{"input": "func main() {}"})
	want := "Review the following code:\n\nfunc main() {}"
	if got != want {
		t.Errorf("rendered = %q, want %q", got, want)
	}
}

func TestCompiledPrompt_RenderUnescapesLiteralBraces(t *testing.T) {
	tpl := Template{
		SystemPrompt: "Output JSON like {\"k\": {value}}",
		Variables:    []string{"value"},
	}
	compiled := Compile(tpl)

	got := compiled.RenderSystemPrompt(map[string]string{"value": "1"})
	want := "Output JSON like {\"k\": 1}"
	if got != want {
		t.Errorf("rendered = %q, want %q", got, want)
	}
}

// A literal brace immediately after a placeholder must not swallow the
// placeholder's own closing brace.
func TestCompiledPrompt_RenderPlaceholderBeforeLiteralBrace(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    string
	}{
		{"trailing literal brace", "{input}}", "V}"},
		{"wrapped in literal braces", "{{input}}", "{V}"},
		{"leading literal brace", "{{input}", "{V"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := Template{Pattern: tt.pattern, Variables: []string{"input"}}
			compiled := Compile(tpl)

			got := compiled.RenderPattern(map[string]string{"input": "V"})
			if got != tt.want {
				t.Errorf("rendered = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompiledPrompt_MissingVariableRendersEmpty(t *testing.T) {
	tpl := Template{
		Pattern:   "{input} tail",
		Variables: []string{"input"},
	}
	compiled := Compile(tpl)

	if got := compiled.RenderPattern(nil); got != " tail" {
		t.Errorf("rendered = %q, want %q", got, " tail")
	}
}

// NUL bytes in template text are removed during sanitization, so they can
// never collide with the compiler's internal token scheme and displace a
// placeholder.
func TestCompile_NulBytesCannotDisplacePlaceholders(t *testing.T) {
	proc := NewProcessor()
	tpl := Template{
		ID:        "t2",
		Pattern:   "\x000\x00 {input}",
		Variables: []string{"input"},
	}

	compiled := Compile(proc.Process(tpl))

	got := compiled.RenderPattern(map[string]string{"input": "X"})
	if got != "0 X" {
		t.Errorf("rendered = %q, want %q", got, "0 X")
	}
}

// Round-trip: a prompt with only declared placeholders plus a literal brace
// keeps the literal escaped and the placeholders substitutable.
func TestCompile_RoundTripWithSanitize(t *testing.T) {
	proc := NewProcessor()
	tpl := Template{
		ID:           "t1",
		SystemPrompt: "\uFEFFAnswer about {topic} using style {style}. Literal: {",
		Variables:    []string{"topic", "style"},
	}

	compiled := Compile(proc.Process(tpl))

	want := "Answer about {topic} using style {style}. Literal: {{"
	if compiled.SystemPrompt != want {
		t.Errorf("compiled = %q, want %q", compiled.SystemPrompt, want)
	}

	rendered := compiled.RenderSystemPrompt(map[string]string{"topic": "go", "style": "terse"})
	wantRendered := "Answer about go using style terse. Literal: {"
	if rendered != wantRendered {
		t.Errorf("rendered = %q, want %q", rendered, wantRendered)
	}
}
