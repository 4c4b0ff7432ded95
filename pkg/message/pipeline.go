// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package message

import (
	"regexp"
	"strings"
	"sync"
)

// =============================================================================
// PIPELINE TYPES
// =============================================================================

// ProcessorFunc transforms a message. Returning ok=false drops the message.
// Processors must be pure functions over message content.
type ProcessorFunc func(Message) (Message, bool)

// FilterFunc is a retention predicate. A message survives the pipeline only
// if every registered filter returns true.
type FilterFunc func(Message) bool

// Pipeline applies ordered transformation and filtering to messages.
//
// Processors live in two distinct registries: one keyed by message kind,
// one keyed by template ID. A later registration for the same key
// overwrites the earlier one.
type Pipeline struct {
	mu sync.RWMutex

	kindProcessors     map[Kind]ProcessorFunc
	templateProcessors map[string]ProcessorFunc
	filters            []FilterFunc
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// NewPipeline creates a pipeline with the default processors and filters
// installed.
//
// Defaults:
//   - system messages: fenced code blocks stripped (defense against prompt
//     injection via system prompt editing)
//   - ai messages: <think>...</think> reasoning spans stripped
//   - human messages: whitespace trimmed
//   - filter: messages whose trimmed content is empty are dropped
func NewPipeline() *Pipeline {
	p := NewEmptyPipeline()
	p.RegisterKindProcessor(KindSystem, stripFencedBlocks)
	p.RegisterKindProcessor(KindAI, stripThinkSpans)
	p.RegisterKindProcessor(KindHuman, trimContent)
	p.AddFilter(func(m Message) bool {
		return !m.IsEmpty()
	})
	return p
}

// NewEmptyPipeline creates a pipeline with no processors or filters.
func NewEmptyPipeline() *Pipeline {
	return &Pipeline{
		kindProcessors:     make(map[Kind]ProcessorFunc),
		templateProcessors: make(map[string]ProcessorFunc),
	}
}

// =============================================================================
// REGISTRATION
// =============================================================================

// RegisterKindProcessor registers a processor for a message kind.
// Replaces any previous processor for the same kind.
func (p *Pipeline) RegisterKindProcessor(kind Kind, fn ProcessorFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kindProcessors[kind] = fn
}

// RegisterTemplateProcessor registers a processor keyed by template ID.
// Replaces any previous processor for the same ID.
func (p *Pipeline) RegisterTemplateProcessor(templateID string, fn ProcessorFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.templateProcessors[templateID] = fn
}

// AddFilter appends a retention predicate.
func (p *Pipeline) AddFilter(fn FilterFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters = append(p.filters, fn)
}

// =============================================================================
// PROCESSING
// =============================================================================

// Process runs a message through the pipeline. Order: the template-keyed
// processor (if templateID is non-empty and registered), then the kind-keyed
// processor, then all filters. Returns ok=false if any processor dropped the
// message or any filter rejected it.
//
// Processor panics are not recovered here; the caller treats them as fatal
// for the current turn.
func (p *Pipeline) Process(msg Message, templateID string) (Message, bool) {
	p.mu.RLock()
	tplProc := p.templateProcessors[templateID]
	kindProc := p.kindProcessors[msg.Kind]
	filters := p.filters
	p.mu.RUnlock()

	if templateID != "" && tplProc != nil {
		var ok bool
		if msg, ok = tplProc(msg); !ok {
			return Message{}, false
		}
	}

	if kindProc != nil {
		var ok bool
		if msg, ok = kindProc(msg); !ok {
			return Message{}, false
		}
	}

	for _, filter := range filters {
		if !filter(msg) {
			return Message{}, false
		}
	}

	return msg, true
}

// ProcessAll runs each message through the pipeline and returns the
// survivors in order.
func (p *Pipeline) ProcessAll(msgs []Message, templateID string) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if processed, ok := p.Process(m, templateID); ok {
			out = append(out, processed)
		}
	}
	return out
}

// =============================================================================
// DEFAULT PROCESSORS
// =============================================================================

var (
	fencedBlockRe = regexp.MustCompile("(?s)```.*?```")
	thinkSpanRe   = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// stripFencedBlocks removes fenced code blocks from system message content.
func stripFencedBlocks(m Message) (Message, bool) {
	m.Content = strings.TrimSpace(fencedBlockRe.ReplaceAllString(m.Content, ""))
	return m, true
}

// stripThinkSpans removes <think>...</think> reasoning spans from AI output.
func stripThinkSpans(m Message) (Message, bool) {
	m.Content = strings.TrimSpace(thinkSpanRe.ReplaceAllString(m.Content, ""))
	return m, true
}

// trimContent trims surrounding whitespace from human input.
func trimContent(m Message) (Message, bool) {
	m.Content = strings.TrimSpace(m.Content)
	return m, true
}
