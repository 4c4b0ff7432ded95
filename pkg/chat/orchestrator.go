// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/chatcore/internal/logger"
	"github.com/jeranaias/chatcore/pkg/api"
	"github.com/jeranaias/chatcore/pkg/llm"
	"github.com/jeranaias/chatcore/pkg/message"
	"github.com/jeranaias/chatcore/pkg/store"
	"github.com/jeranaias/chatcore/pkg/template"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrMessageFiltered is returned when the processing pipeline rejected a
// message, e.g. because its content was empty. The conversation is left
// intact; the caller shows a local, non-fatal error.
var ErrMessageFiltered = errors.New("message was filtered out by the processing pipeline")

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// LLMClient is the invocation surface the orchestrator needs.
// *llm.Client satisfies it.
type LLMClient interface {
	Configure(settings llm.GenerationSettings)
	Settings() llm.GenerationSettings
	Invoke(ctx context.Context, msgs []message.Message) (message.Message, error)
}

// SessionStore is the session persistence surface.
// *api.SessionClient satisfies it.
type SessionStore interface {
	Create(ctx context.Context, s api.Session) (api.Session, error)
	Update(ctx context.Context, s api.Session) (api.Session, error)
}

// TemplateResolver fetches templates that are not bundled presets.
// *api.TemplateClient satisfies it.
type TemplateResolver interface {
	Get(ctx context.Context, id string) (template.Template, error)
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// Deps holds the orchestrator's collaborators. Everything is injected;
// the orchestrator is an explicitly constructed object, not a singleton.
type Deps struct {
	Store     *store.AppStore
	LLM       LLMClient
	Pipeline  *message.Pipeline
	Processor *template.Processor
	Sessions  SessionStore
	Templates TemplateResolver
}

// Options holds orchestrator configuration.
type Options struct {
	// DefaultModel is used when neither the saved session nor the shared
	// store carries a model identifier.
	DefaultModel string

	// DefaultSystemPrompt seeds conversations without a template.
	DefaultSystemPrompt string

	// Logger receives structured diagnostics. Zero value discards.
	Logger zerolog.Logger
}

// Orchestrator owns the active conversation. All mutation of the message
// sequence goes through it; the shared store's session key is a mirror,
// not a second owner.
//
// The Orchestrator is thread-safe for concurrent use.
type Orchestrator struct {
	mu sync.Mutex

	// Conversation state
	msgs           []message.Message
	activeTemplate *template.Template
	compiled       *template.CompiledPrompt
	model          string
	sessionID      string

	// generation identifies the current conversation. New-chat and
	// set-template transitions bump it; an invocation whose generation
	// no longer matches discards its response instead of appending it
	// to an unrelated, newer conversation.
	generation uint64

	// inFlight serializes LLM invocations: at most one per orchestrator.
	inFlight bool

	// unsubscribe tears down the store subscription, nil when detached.
	unsubscribe func()

	deps Deps
	opts Options
	log  zerolog.Logger
}

// New creates an orchestrator. Call Initialize before use.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.DefaultSystemPrompt == "" {
		opts.DefaultSystemPrompt = "You are a helpful assistant."
	}
	return &Orchestrator{
		deps: deps,
		opts: opts,
		log:  logger.Component(opts.Logger, "orchestrator"),
	}
}

// =============================================================================
// INITIALIZATION AND RESTORE
// =============================================================================

// Initialize restores persisted state and, if a template is supplied,
// installs it; otherwise conversations restored from the mirror are kept
// as-is and an empty conversation is reset to a bare system message using
// the default system prompt. The store subscription is (re)established.
func (o *Orchestrator) Initialize(ctx context.Context, tpl *template.Template) []message.Message {
	o.restore()

	var out []message.Message
	if tpl != nil {
		out = o.SetTemplate(ctx, *tpl)
	} else {
		o.mu.Lock()
		if len(o.msgs) == 0 {
			o.msgs = []message.Message{message.NewSystem(o.opts.DefaultSystemPrompt)}
		}
		snap := o.snapshotLocked()
		out = copyMessages(o.msgs)
		o.mu.Unlock()
		o.save(ctx, snap)
	}

	o.attachBridge()
	return out
}

// restore reads the last-known session mirror from the shared store and
// adopts its messages, session ID, template, and model. A model recorded
// in the saved session takes precedence over the store's selected model.
func (o *Orchestrator) restore() {
	state := o.deps.Store.Get()

	o.mu.Lock()
	defer o.mu.Unlock()

	if chat := state.CurrentChat; chat != nil {
		o.msgs = api.ToMessages(chat.Messages)
		o.sessionID = chat.ID
		o.activeTemplate = chat.Metadata.Template
		o.compiled = nil
		if o.activeTemplate != nil {
			c := template.Compile(*o.activeTemplate)
			o.compiled = &c
		}
	}

	model := ""
	if state.CurrentChat != nil {
		model = state.CurrentChat.Metadata.Model
	}
	if model == "" {
		model = state.SelectedModel
	}
	if model == "" {
		model = o.opts.DefaultModel
	}
	o.model = model

	settings := o.deps.LLM.Settings()
	settings.Model = model
	o.deps.LLM.Configure(settings)
}

// =============================================================================
// MODEL CONFIGURATION
// =============================================================================

// ConfigureModel replaces the active LLM configuration. It is idempotent:
// unchanged settings are a no-op.
func (o *Orchestrator) ConfigureModel(settings llm.GenerationSettings) {
	o.mu.Lock()
	defer o.mu.Unlock()

	// Settings without a model change generation parameters only; keep
	// the active model rather than resetting to the default.
	if settings.Model == "" {
		settings.Model = o.model
	}
	if settings.Model == "" {
		settings.Model = o.opts.DefaultModel
	}
	if o.deps.LLM.Settings().Equal(settings) && o.model == settings.Model {
		return
	}

	o.deps.LLM.Configure(settings)
	o.model = settings.Model
}

// Model returns the active model identifier.
func (o *Orchestrator) Model() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.model
}

// SessionID returns the server-assigned session ID, empty until the
// conversation has been persisted remotely.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// =============================================================================
// TEMPLATE INSTALLATION
// =============================================================================

// SetTemplate sanitizes and compiles the template, replaces the system
// message (and any description message), re-applies pipeline processing to
// the existing message list keyed by the new template's ID, persists, and
// returns the resulting message list.
//
// On internal error it falls back to a single default system message and
// persists that fallback; the conversation is never left message-less.
func (o *Orchestrator) SetTemplate(ctx context.Context, t template.Template) (out []message.Message) {
	o.detachBridge()
	defer o.attachBridge()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		o.log.Error().Interface("panic", r).Str("template", t.ID).
			Msg("template installation failed, falling back to default system message")
		o.mu.Lock()
		o.msgs = []message.Message{message.NewSystem(o.opts.DefaultSystemPrompt)}
		o.activeTemplate = nil
		o.compiled = nil
		snap := o.snapshotLocked()
		out = copyMessages(o.msgs)
		o.mu.Unlock()
		o.save(ctx, snap)
	}()

	processed := o.deps.Processor.Process(t)
	compiled := template.Compile(processed)
	initial := processed.InitialMessages(o.opts.DefaultSystemPrompt)

	o.mu.Lock()
	o.generation++
	o.activeTemplate = &processed
	o.compiled = &compiled

	// Install the new system message and drop any stale description.
	o.replaceSystemLocked(&initial[0])
	o.msgs = removeKind(o.msgs, message.KindDescription)
	if len(initial) > 1 {
		rest := append([]message.Message{initial[1]}, o.msgs[1:]...)
		o.msgs = append(o.msgs[:1], rest...)
	}

	o.msgs = o.deps.Pipeline.ProcessAll(o.msgs, processed.ID)

	// Reprocessing can eliminate the new system message (a prompt that
	// is nothing but a fenced block empties and gets filtered). The
	// first message must stay a system message, so fall back to the
	// default prompt.
	if message.FirstOfKind(o.msgs, message.KindSystem) == -1 {
		o.msgs = append([]message.Message{message.NewSystem(o.opts.DefaultSystemPrompt)}, o.msgs...)
	}

	snap := o.snapshotLocked()
	out = copyMessages(o.msgs)
	o.mu.Unlock()

	if processed.LLMConfig.Model != "" || processed.LLMConfig.Temperature != 0 {
		o.ConfigureModel(processed.LLMConfig)
	}

	o.save(ctx, snap)
	return out
}

// Template returns the active template, or nil.
func (o *Orchestrator) Template() *template.Template {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeTemplate
}

// =============================================================================
// USER INPUT
// =============================================================================

// HandleUserInput sends user input through the pipeline, appends it,
// invokes the LLM with the description-filtered message list, and appends
// the processed response.
//
// Empty input and calls made while an invocation is in flight are silent
// no-ops. A message rejected by the pipeline returns ErrMessageFiltered.
// An invocation failure rolls back the appended human message and
// propagates; either way the state is persisted before returning.
func (o *Orchestrator) HandleUserInput(ctx context.Context, text string) (message.Message, error) {
	if strings.TrimSpace(text) == "" {
		return message.Message{}, nil
	}

	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return message.Message{}, nil
	}
	o.inFlight = true
	gen := o.generation
	tplID := o.templateIDLocked()

	human, ok := o.deps.Pipeline.Process(message.NewHuman(text), tplID)
	if !ok {
		o.inFlight = false
		o.mu.Unlock()
		return message.Message{}, ErrMessageFiltered
	}
	o.msgs = append(o.msgs, human)
	input := o.llmInputLocked()
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inFlight = false
		snap := o.snapshotLocked()
		o.mu.Unlock()
		o.save(ctx, snap)
	}()

	reply, err := o.deps.LLM.Invoke(ctx, input)
	if err != nil {
		o.mu.Lock()
		o.removeByIDLocked(human.ID)
		o.mu.Unlock()
		return message.Message{}, err
	}

	o.mu.Lock()
	if gen != o.generation {
		// The conversation was replaced while the invocation was in
		// flight; the response belongs to a superseded conversation.
		o.mu.Unlock()
		o.log.Warn().Msg("discarding LLM response from a superseded conversation")
		return message.Message{}, nil
	}

	final, ok := o.deps.Pipeline.Process(reply, tplID)
	if !ok {
		o.removeByIDLocked(human.ID)
		o.mu.Unlock()
		return message.Message{}, ErrMessageFiltered
	}
	o.msgs = append(o.msgs, final)
	o.mu.Unlock()

	return final, nil
}

// llmInputLocked builds the message list sent to the LLM: description
// messages are UI-only and excluded, and the latest human message is
// rendered through the active template's input pattern. The UI keeps
// showing the original text; only the LLM sees the rendered form.
func (o *Orchestrator) llmInputLocked() []message.Message {
	input := message.FilterKind(o.msgs, message.KindDescription)

	if o.compiled != nil {
		for i := len(input) - 1; i >= 0; i-- {
			if input[i].Kind == message.KindHuman {
				input[i].Content = o.compiled.RenderPattern(map[string]string{
					"input": input[i].Content,
				})
				break
			}
		}
	}
	return input
}

// =============================================================================
// NEW CHAT
// =============================================================================

// NewChat clears the conversation and starts over. The template ID is
// resolved against the bundled presets first, then the remote template
// store; resolution failure degrades to default initialization and is
// never surfaced to the caller. An empty ID starts a bare default chat.
func (o *Orchestrator) NewChat(ctx context.Context, templateID string) []message.Message {
	o.detachBridge()

	o.mu.Lock()
	o.msgs = nil
	o.sessionID = ""
	o.activeTemplate = nil
	o.compiled = nil
	o.generation++
	o.mu.Unlock()

	// Clear the mirror so restore() cannot resurrect the old session.
	o.deps.Store.SetKey(store.KeyCurrentChat, (*api.Session)(nil))

	if templateID == "" {
		return o.Initialize(ctx, nil)
	}

	tpl, err := o.resolveTemplate(ctx, templateID)
	if err != nil {
		o.log.Warn().Err(err).Str("template", templateID).
			Msg("template resolution failed, starting default chat")
		return o.Initialize(ctx, nil)
	}

	o.deps.Store.SetKey(store.KeyCurrentChat, &api.Session{
		Metadata: api.SessionMetadata{Template: &tpl, Model: tpl.LLMConfig.Model},
	})
	return o.Initialize(ctx, &tpl)
}

// resolveTemplate checks bundled presets before the remote store; first
// match wins, so a remote template can never shadow a preset ID.
func (o *Orchestrator) resolveTemplate(ctx context.Context, id string) (template.Template, error) {
	if tpl, ok := template.ResolvePreset(id); ok {
		return tpl, nil
	}
	if o.deps.Templates == nil {
		return template.Template{}, errors.New("no template resolver configured")
	}
	return o.deps.Templates.Get(ctx, id)
}

// =============================================================================
// MESSAGE ACCESS
// =============================================================================

// ReplaceSystemMessage removes every system message from the list and, if
// a replacement is given, inserts it at position 0. This is the only
// sanctioned way to change the system prompt mid-conversation; two system
// messages are never concurrently present.
func (o *Orchestrator) ReplaceSystemMessage(msg *message.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replaceSystemLocked(msg)
}

// Messages returns a copy of the current message list.
func (o *Orchestrator) Messages() []message.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return copyMessages(o.msgs)
}

// SetMessages replaces the message list wholesale and persists.
func (o *Orchestrator) SetMessages(ctx context.Context, msgs []message.Message) {
	o.mu.Lock()
	o.msgs = copyMessages(msgs)
	snap := o.snapshotLocked()
	o.mu.Unlock()
	o.save(ctx, snap)
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

func (o *Orchestrator) templateIDLocked() string {
	if o.activeTemplate == nil {
		return ""
	}
	return o.activeTemplate.ID
}

func (o *Orchestrator) replaceSystemLocked(msg *message.Message) {
	o.msgs = removeKind(o.msgs, message.KindSystem)
	if msg != nil {
		o.msgs = append([]message.Message{*msg}, o.msgs...)
	}
}

func (o *Orchestrator) removeByIDLocked(id string) {
	for i, m := range o.msgs {
		if m.ID == id {
			o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
			return
		}
	}
}

func removeKind(msgs []message.Message, kind message.Kind) []message.Message {
	return message.FilterKind(msgs, kind)
}

func copyMessages(msgs []message.Message) []message.Message {
	out := make([]message.Message, len(msgs))
	copy(out, msgs)
	return out
}
