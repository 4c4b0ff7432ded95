// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package template

import (
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// COMPILED PROMPT
// =============================================================================

// CompiledPrompt is an executable prompt structure: text with literal
// braces escaped to their doubled form and declared placeholders kept
// substitutable.
type CompiledPrompt struct {
	// SystemPrompt is the escaped system prompt text.
	SystemPrompt string

	// Pattern is the escaped user-input pattern.
	Pattern string

	// Variables is the ordered list of substitutable slot names.
	Variables []string
}

// placeholderRe matches a candidate placeholder: {identifier} where
// identifier is [a-zA-Z_][a-zA-Z0-9_]*.
var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// =============================================================================
// COMPILATION
// =============================================================================

// Compile turns a sanitized template into a CompiledPrompt. Literal braces
// in free text are escaped so they cannot be misinterpreted as slots;
// placeholders whose names are declared in the template's variable list
// stay substitutable. The "input" slot is always declared: every pattern
// has somewhere for the user's text to go. Malformed placeholder syntax
// never fails compilation: it is escaped as literal text.
func Compile(t Template) CompiledPrompt {
	vars := append([]string(nil), t.Variables...)
	if !t.HasVariable("input") {
		vars = append(vars, "input")
	}
	return CompiledPrompt{
		SystemPrompt: escapeKeeping(t.SystemPrompt, vars),
		Pattern:      escapeKeeping(t.PatternOrDefault(), vars),
		Variables:    vars,
	}
}

// escapeKeeping escapes all brace characters in s except those forming a
// declared placeholder. Algorithm: extract declared placeholders to
// numbered temporary tokens, escape every remaining brace, then restore
// the placeholders.
func escapeKeeping(s string, variables []string) string {
	declared := make(map[string]bool, len(variables))
	for _, v := range variables {
		declared[v] = true
	}

	// Step 1: pull declared placeholders out into tokens that contain
	// no braces. \x00 cannot appear in sanitized template text.
	var saved []string
	s = placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1 : len(match)-1]
		if !declared[name] {
			return match
		}
		token := "\x00" + strconv.Itoa(len(saved)) + "\x00"
		saved = append(saved, match)
		return token
	})

	// Step 2: everything still brace-shaped is literal text.
	s = strings.ReplaceAll(s, "{", "{{")
	s = strings.ReplaceAll(s, "}", "}}")

	// Step 3: restore the placeholders.
	for i, ph := range saved {
		token := "\x00" + strconv.Itoa(i) + "\x00"
		s = strings.Replace(s, token, ph, 1)
	}

	return s
}

// =============================================================================
// RENDERING
// =============================================================================

// RenderPattern substitutes variable values into the compiled input
// pattern and unescapes literal braces. Missing variables render as empty
// strings.
func (c CompiledPrompt) RenderPattern(vars map[string]string) string {
	return render(c.Pattern, c.Variables, vars)
}

// RenderSystemPrompt substitutes variable values into the compiled system
// prompt and unescapes literal braces.
func (c CompiledPrompt) RenderSystemPrompt(vars map[string]string) string {
	return render(c.SystemPrompt, c.Variables, vars)
}

func render(s string, declared []string, vars map[string]string) string {
	// Pull placeholders out first: an escaped "}}" directly after a
	// placeholder would otherwise swallow the placeholder's closing
	// brace during unescaping. Values are substituted last so a value
	// containing braces is never re-interpreted.
	tokens := make([]string, 0, len(declared))
	for i, name := range declared {
		token := "\x00" + strconv.Itoa(i) + "\x00"
		s = strings.ReplaceAll(s, "{"+name+"}", token)
		tokens = append(tokens, token)
	}

	s = strings.ReplaceAll(s, "{{", "{")
	s = strings.ReplaceAll(s, "}}", "}")

	for i, name := range declared {
		s = strings.ReplaceAll(s, tokens[i], vars[name])
	}
	return s
}
