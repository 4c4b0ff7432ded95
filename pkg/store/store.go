// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides the shared application store: key-scoped state
// with subscription semantics.
//
// UI components write the model/template selection keys; the conversation
// orchestrator is the single writer of the session key and observes the
// rest read-only through subscriptions.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/chatcore/internal/util"
	"github.com/jeranaias/chatcore/pkg/api"
)

// =============================================================================
// KEYS AND STATE
// =============================================================================

// Key identifies a slot in the shared state.
type Key string

const (
	KeySelectedModel      Key = "selectedModel"
	KeySelectedTemplateID Key = "selectedTemplateId"
	KeyCurrentChat        Key = "currentChat"
	KeyCurrentUser        Key = "currentUser"
)

// State is the shared application state snapshot.
type State struct {
	// SelectedModel is the model identifier chosen in the model picker.
	SelectedModel string `json:"selected_model,omitempty"`

	// SelectedTemplateID is the template chosen in the template picker.
	SelectedTemplateID string `json:"selected_template_id,omitempty"`

	// CurrentChat is the local mirror of the active session.
	CurrentChat *api.Session `json:"current_chat,omitempty"`

	// CurrentUser identifies the signed-in user, if any.
	CurrentUser string `json:"current_user,omitempty"`
}

// =============================================================================
// APP STORE
// =============================================================================

// SubscribeFunc is notified with the changed key and the resulting state
// snapshot after every SetKey.
type SubscribeFunc func(key Key, state State)

// AppStore is the shared key-scoped store.
//
// The AppStore is thread-safe for concurrent use.
type AppStore struct {
	mu          sync.Mutex
	state       State
	subscribers map[int]SubscribeFunc
	nextSubID   int

	// snapshotPath, when non-empty, mirrors the state to disk on every
	// change so it survives restarts.
	snapshotPath string
	log          zerolog.Logger
}

// New creates an empty in-memory store.
func New() *AppStore {
	return &AppStore{
		subscribers: make(map[int]SubscribeFunc),
	}
}

// NewWithSnapshot creates a store that persists its state to the given
// path, loading any existing snapshot first. A missing or unreadable
// snapshot starts the store empty.
func NewWithSnapshot(path string) *AppStore {
	s := New()
	s.snapshotPath = path

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return s
	}
	s.state = state
	return s
}

// =============================================================================
// ACCESS
// =============================================================================

// SetLogger directs snapshot diagnostics to the given logger. The zero
// logger discards them.
func (s *AppStore) SetLogger(log zerolog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = log
}

// Get returns a snapshot of the current state.
func (s *AppStore) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetKey updates a single slot and notifies subscribers. The value type
// must match the key: string for the selection/user keys, *api.Session
// for the session key.
func (s *AppStore) SetKey(key Key, value any) error {
	s.mu.Lock()

	switch key {
	case KeySelectedModel:
		v, ok := value.(string)
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("key %q needs a string value, got %T", key, value)
		}
		s.state.SelectedModel = v
	case KeySelectedTemplateID:
		v, ok := value.(string)
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("key %q needs a string value, got %T", key, value)
		}
		s.state.SelectedTemplateID = v
	case KeyCurrentUser:
		v, ok := value.(string)
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("key %q needs a string value, got %T", key, value)
		}
		s.state.CurrentUser = v
	case KeyCurrentChat:
		v, ok := value.(*api.Session)
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("key %q needs a *api.Session value, got %T", key, value)
		}
		s.state.CurrentChat = v
	default:
		s.mu.Unlock()
		return fmt.Errorf("unknown store key %q", key)
	}

	state := s.state
	subs := make([]SubscribeFunc, 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	path := s.snapshotPath
	log := s.log
	s.mu.Unlock()

	if path != "" {
		if data, err := json.Marshal(state); err == nil {
			if err := util.AtomicWriteFile(path, data, 0600); err != nil {
				log.Error().Err(err).Str("path", path).Msg("state snapshot write failed")
			}
		}
	}

	// Notify outside the lock so subscribers may read or write the store.
	for _, fn := range subs {
		fn(key, state)
	}
	return nil
}

// Subscribe registers a change listener and returns its unsubscribe
// function.
func (s *AppStore) Subscribe(fn SubscribeFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}
