// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package template

import (
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// PROCESSOR
// =============================================================================

// ProcessorFunc is a template-specific transform applied before generic
// sanitization.
type ProcessorFunc func(Template) Template

// Processor sanitizes template text fields, optionally applying a
// registered per-template transform first.
type Processor struct {
	mu         sync.RWMutex
	transforms map[string]ProcessorFunc
}

// NewProcessor creates a template processor with no registered transforms.
func NewProcessor() *Processor {
	return &Processor{
		transforms: make(map[string]ProcessorFunc),
	}
}

// Register installs a transform for a template ID. A later registration
// for the same ID overwrites the earlier one.
func (p *Processor) Register(templateID string, fn ProcessorFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transforms[templateID] = fn
}

// Process applies the registered per-ID transform (if any), then sanitizes
// the system prompt, input pattern, and description.
func (p *Processor) Process(t Template) Template {
	p.mu.RLock()
	transform := p.transforms[t.ID]
	p.mu.RUnlock()

	if transform != nil {
		t = transform(t)
	}

	t.SystemPrompt = Sanitize(t.SystemPrompt)
	t.Pattern = Sanitize(t.Pattern)
	t.Description = Sanitize(t.Description)
	return t
}

// =============================================================================
// SANITIZATION
// =============================================================================

var collapseNewlinesRe = regexp.MustCompile(`\n{3,}`)

var quoteReplacer = strings.NewReplacer(
	"“", `"`, // left double curly quote
	"”", `"`, // right double curly quote
	"‘", "'", // left single curly quote
	"’", "'", // right single curly quote
)

// Sanitize normalizes template text: strips a leading byte-order-mark,
// zero-width characters, and control characters, straightens curly
// quotes, collapses runs of three or more newlines to two,
// NFC-normalizes, and trims.
func Sanitize(s string) string {
	if s == "" {
		return s
	}

	s = strings.TrimPrefix(s, "\uFEFF")
	s = stripInvisible(s)
	s = quoteReplacer.Replace(s)
	s = collapseNewlinesRe.ReplaceAllString(s, "\n\n")
	s = norm.NFC.String(s)
	return strings.TrimSpace(s)
}

// stripInvisible removes zero-width and other invisible formatting runes,
// plus control characters other than tab, newline, and carriage return.
// Keeping NUL out of sanitized text also guarantees the compiler's
// internal token scheme cannot collide with template content.
func stripInvisible(s string) string {
	return strings.Map(func(r rune) rune {
		if (r < 0x20 && r != '\n' && r != '\t' && r != '\r') || r == 0x7f {
			return -1
		}
		switch r {
		case '​', // zero-width space
			'‌', // zero-width non-joiner
			'‍', // zero-width joiner
			'⁠', // word joiner
			'\uFEFF', // zero-width no-break space
			'­': // soft hyphen
			return -1
		}
		return r
	}, s)
}
