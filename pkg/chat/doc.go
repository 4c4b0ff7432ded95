// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the conversation orchestrator: the stateful
// coordinator that owns the active message sequence and model
// configuration, drives new-chat / send-message / restore-session
// transitions, and keeps the shared application store in sync.
//
// # Key Types
//
//   - Orchestrator: the single owner of conversation state
//   - SaveResult: outcome of a (best-effort) persistence attempt
//
// # Usage
//
// Construct an orchestrator with its collaborators and initialize it:
//
//	orch := chat.New(chat.Deps{
//	    Store:     appStore,
//	    LLM:       llmClient,
//	    Pipeline:  message.NewPipeline(),
//	    Processor: template.NewProcessor(),
//	    Sessions:  sessionClient,
//	    Templates: templateClient,
//	}, chat.Options{DefaultModel: "qwen2.5-coder:14b"})
//	orch.Initialize(ctx, nil)
//
// Send user input and render the reply:
//
//	reply, err := orch.HandleUserInput(ctx, text)
//
// The orchestrator is the only component permitted to mutate conversation
// state; UI components write model/template selection keys to the shared
// store, which the orchestrator observes through its subscription bridge.
package chat
