// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/jeranaias/chatcore/pkg/api"
	"github.com/jeranaias/chatcore/pkg/message"
	"github.com/jeranaias/chatcore/pkg/store"
	"github.com/jeranaias/chatcore/pkg/template"
)

// =============================================================================
// SAVE RESULTS
// =============================================================================

// SaveStatus classifies the outcome of a persistence attempt.
type SaveStatus int

const (
	// SaveLocal means the conversation was too short for remote
	// persistence; only the local mirror was updated.
	SaveLocal SaveStatus = iota

	// SaveRemote means the session was created or updated remotely.
	SaveRemote

	// SaveFailed means the remote write failed; the local mirror was
	// still updated so the UI stays consistent.
	SaveFailed
)

// SaveResult reports how a conversation snapshot was persisted.
type SaveResult struct {
	Status SaveStatus
	Err    error
}

// persistThreshold is the message count a conversation must exceed before
// it is written remotely. A system message plus a template description is
// not a conversation worth keeping.
const persistThreshold = 2

// topicExcerptLen is the number of leading characters of the first user
// message used as the session topic.
const topicExcerptLen = 117

// snapshot is an immutable view of the conversation taken under the lock
// and persisted outside it.
type snapshot struct {
	sessionID string
	records   []api.MessageRecord
	meta      api.SessionMetadata
}

func (o *Orchestrator) snapshotLocked() snapshot {
	return snapshot{
		sessionID: o.sessionID,
		records:   api.ToRecords(o.msgs),
		meta: api.SessionMetadata{
			Topic:    topicFor(o.msgs, o.activeTemplate),
			Model:    o.model,
			Template: o.activeTemplate,
		},
	}
}

// topicFor derives a human-readable session topic: an excerpt of the first
// user message once the conversation has one, and the template name before
// that. The trailing ellipsis is unconditional so restored sessions keep a
// stable topic regardless of excerpt length.
func topicFor(msgs []message.Message, tpl *template.Template) string {
	if len(msgs) > persistThreshold {
		excerpt := msgs[1].Content
		if runes := []rune(excerpt); len(runes) > topicExcerptLen {
			excerpt = string(runes[:topicExcerptLen])
		}
		return excerpt + "..."
	}
	name := "default"
	if tpl != nil {
		name = tpl.Name
	}
	return "Chat template: " + name
}

// =============================================================================
// SAVE
// =============================================================================

// save persists a snapshot: remote create-or-update when the conversation
// clears the threshold, then an unconditional local mirror write. Remote
// failures are logged and reflected in the result but never interrupt the
// caller; the mirror keeps the UI consistent regardless.
//
// save must be called without holding o.mu: the mirror write notifies
// store subscribers, which includes this orchestrator's own bridge.
func (o *Orchestrator) save(ctx context.Context, snap snapshot) SaveResult {
	result := SaveResult{Status: SaveLocal}

	sess := api.Session{
		ID:       snap.sessionID,
		Messages: snap.records,
		Metadata: snap.meta,
	}

	if len(snap.records) > persistThreshold && o.deps.Sessions != nil {
		var (
			saved api.Session
			err   error
		)
		if snap.sessionID == "" {
			saved, err = o.deps.Sessions.Create(ctx, sess)
		} else {
			saved, err = o.deps.Sessions.Update(ctx, sess)
		}
		if err != nil {
			o.log.Error().Err(err).Str("session", snap.sessionID).
				Msg("remote session save failed")
			result = SaveResult{Status: SaveFailed, Err: err}
		} else {
			result = SaveResult{Status: SaveRemote}
			sess = saved
			if snap.sessionID == "" {
				o.mu.Lock()
				// Adopt the server-assigned ID unless the conversation
				// was replaced while the create was outstanding.
				if o.sessionID == "" {
					o.sessionID = saved.ID
				}
				o.mu.Unlock()
			}
		}
	}

	if err := o.deps.Store.SetKey(store.KeyCurrentChat, &sess); err != nil {
		o.log.Error().Err(err).Msg("local session mirror write failed")
		if result.Err == nil {
			result = SaveResult{Status: SaveFailed, Err: err}
		}
	}
	return result
}
