// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package template provides the prompt template model, sanitization, and
// prompt compilation.
//
// A Template bundles a system prompt, a user-input pattern with named
// placeholders, the declared variable list, and generation parameters.
//
// # Key Types
//
//   - Template: reusable prompt configuration
//   - Processor: per-template transforms plus generic text sanitization
//   - CompiledPrompt: escaped prompt text with substitutable slots
//
// # Usage
//
// Sanitize and compile a template:
//
//	proc := template.NewProcessor()
//	t = proc.Process(t)
//	compiled := template.Compile(t)
//	prompt := compiled.RenderPattern(map[string]string{"input": text})
//
// Placeholders of the form {identifier} stay substitutable only when the
// identifier is declared in the template's variable list; every other brace
// is escaped to its doubled form. Compilation never fails: malformed
// placeholder syntax degrades to literal text.
package template
