// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/jeranaias/chatcore/pkg/store"
)

// =============================================================================
// STATE SYNCHRONIZATION BRIDGE
// =============================================================================
//
// The bridge keeps the orchestrator in step with external changes to the
// shared store: model selection, template selection, and user identity.
// Changes to the session mirror itself are ignored, because the
// orchestrator is the one writing them; reacting to them would feed its
// own saves back into itself.

// attachBridge subscribes to store changes. Idempotent.
func (o *Orchestrator) attachBridge() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.unsubscribe != nil {
		return
	}
	o.unsubscribe = o.deps.Store.Subscribe(o.onStoreChange)
}

// detachBridge drops the store subscription so bulk transitions (new chat,
// template installation) do not re-enter through their own store writes.
func (o *Orchestrator) detachBridge() {
	o.mu.Lock()
	unsub := o.unsubscribe
	o.unsubscribe = nil
	o.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (o *Orchestrator) onStoreChange(key store.Key, state store.State) {
	ctx := context.Background()

	switch key {
	case store.KeySelectedModel:
		o.reconcileModel(ctx, state)

	case store.KeySelectedTemplateID:
		o.reconcileTemplate(ctx, state.SelectedTemplateID)

	case store.KeyCurrentUser:
		// A user switch abandons the current conversation.
		o.NewChat(ctx, "")

	case store.KeyCurrentChat:
		// Written by this orchestrator's own save path; ignored to
		// avoid a feedback loop.
	}
}

// reconcileModel applies an externally selected model. The change is
// skipped when the incoming model matches either the active model or the
// model recorded in the session mirror, so that restoring a session does
// not clobber its own model.
func (o *Orchestrator) reconcileModel(ctx context.Context, state store.State) {
	incoming := state.SelectedModel
	if incoming == "" {
		return
	}

	o.mu.Lock()
	current := o.model
	o.mu.Unlock()

	sessionModel := ""
	if state.CurrentChat != nil {
		sessionModel = state.CurrentChat.Metadata.Model
	}
	if incoming == current || incoming == sessionModel {
		return
	}

	settings := o.deps.LLM.Settings()
	settings.Model = incoming
	o.ConfigureModel(settings)

	o.mu.Lock()
	snap := o.snapshotLocked()
	o.mu.Unlock()
	o.save(ctx, snap)
}

// reconcileTemplate installs an externally selected template if it differs
// from the active one. Resolution failure leaves the conversation alone.
func (o *Orchestrator) reconcileTemplate(ctx context.Context, id string) {
	if id == "" {
		return
	}

	o.mu.Lock()
	activeID := o.templateIDLocked()
	o.mu.Unlock()
	if id == activeID {
		return
	}

	tpl, err := o.resolveTemplate(ctx, id)
	if err != nil {
		o.log.Warn().Err(err).Str("template", id).
			Msg("selected template could not be resolved")
		return
	}
	o.SetTemplate(ctx, tpl)
}
