// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jeranaias/chatcore/pkg/api"
)

func TestAppStore_SetAndGet(t *testing.T) {
	s := New()

	if err := s.SetKey(KeySelectedModel, "qwen2.5-coder:14b"); err != nil {
		t.Fatalf("SetKey failed: %v", err)
	}
	if err := s.SetKey(KeyCurrentUser, "alex"); err != nil {
		t.Fatalf("SetKey failed: %v", err)
	}

	state := s.Get()
	if state.SelectedModel != "qwen2.5-coder:14b" {
		t.Errorf("SelectedModel = %q, want %q", state.SelectedModel, "qwen2.5-coder:14b")
	}
	if state.CurrentUser != "alex" {
		t.Errorf("CurrentUser = %q, want %q", state.CurrentUser, "alex")
	}
}

func TestAppStore_SetKey_TypeMismatch(t *testing.T) {
	s := New()

	if err := s.SetKey(KeySelectedModel, 42); err == nil {
		t.Error("expected an error for a non-string model value")
	}
	if err := s.SetKey(KeyCurrentChat, "not a session"); err == nil {
		t.Error("expected an error for a non-session chat value")
	}
	if err := s.SetKey(Key("bogus"), "x"); err == nil {
		t.Error("expected an error for an unknown key")
	}
}

func TestAppStore_SubscribeAndUnsubscribe(t *testing.T) {
	s := New()

	var gotKeys []Key
	unsubscribe := s.Subscribe(func(key Key, state State) {
		gotKeys = append(gotKeys, key)
	})

	s.SetKey(KeySelectedModel, "m1")
	s.SetKey(KeySelectedTemplateID, "t1")

	if len(gotKeys) != 2 || gotKeys[0] != KeySelectedModel || gotKeys[1] != KeySelectedTemplateID {
		t.Errorf("gotKeys = %v, want [selectedModel selectedTemplateId]", gotKeys)
	}

	unsubscribe()
	s.SetKey(KeySelectedModel, "m2")
	if len(gotKeys) != 2 {
		t.Errorf("subscriber called after unsubscribe, gotKeys = %v", gotKeys)
	}
}

func TestAppStore_SubscriberSeesNewState(t *testing.T) {
	s := New()

	var seen string
	s.Subscribe(func(key Key, state State) {
		if key == KeySelectedModel {
			seen = state.SelectedModel
		}
	})

	s.SetKey(KeySelectedModel, "m1")
	if seen != "m1" {
		t.Errorf("subscriber saw %q, want %q", seen, "m1")
	}
}

func TestAppStore_SessionKey(t *testing.T) {
	s := New()

	sess := &api.Session{ID: "sess-1", Metadata: api.SessionMetadata{Topic: "greetings"}}
	if err := s.SetKey(KeyCurrentChat, sess); err != nil {
		t.Fatalf("SetKey failed: %v", err)
	}

	got := s.Get().CurrentChat
	if got == nil || got.ID != "sess-1" {
		t.Errorf("CurrentChat = %+v, want session sess-1", got)
	}
}

func TestAppStore_SnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s := NewWithSnapshot(path)
	s.SetKey(KeySelectedModel, "m1")
	s.SetKey(KeyCurrentChat, &api.Session{ID: "sess-1"})

	restored := NewWithSnapshot(path)
	state := restored.Get()
	if state.SelectedModel != "m1" {
		t.Errorf("restored SelectedModel = %q, want %q", state.SelectedModel, "m1")
	}
	if state.CurrentChat == nil || state.CurrentChat.ID != "sess-1" {
		t.Errorf("restored CurrentChat = %+v, want session sess-1", state.CurrentChat)
	}
}

func TestAppStore_SnapshotMissingFileStartsEmpty(t *testing.T) {
	s := NewWithSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	if s.Get() != (State{}) {
		t.Errorf("state = %+v, want zero state", s.Get())
	}
}

func TestAppStore_SnapshotWriteFailureLoggedNotFatal(t *testing.T) {
	// Pointing the snapshot at an existing directory makes every write
	// fail; the store must log it and keep serving state.
	dir := t.TempDir()
	s := NewWithSnapshot(dir)

	var buf bytes.Buffer
	s.SetLogger(zerolog.New(&buf))

	if err := s.SetKey(KeySelectedModel, "m1"); err != nil {
		t.Fatalf("SetKey failed: %v", err)
	}
	if got := s.Get().SelectedModel; got != "m1" {
		t.Errorf("SelectedModel = %q, want m1", got)
	}
	if !strings.Contains(buf.String(), "snapshot write failed") {
		t.Errorf("snapshot failure not logged, log output = %q", buf.String())
	}
}
