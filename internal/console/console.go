// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package console holds the state of one chat console: the transcript, the
// input line with its history, the active backend and the streaming gate.
package console

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/promptcon/internal/model"
	"github.com/jeranaias/promptcon/internal/stream"
)

// Streamer runs one stream session at a time. *stream.Controller satisfies it.
type Streamer interface {
	Start(ctx context.Context, backend model.Backend, prompt string, cb stream.Callbacks) stream.Result
	Cancel()
}

// HistoryStore persists submitted prompts.
type HistoryStore interface {
	Append(ctx context.Context, prompt, backendID string) error
}

// Option configures a Console.
type Option func(*Console)

// WithHistoryStore persists every submitted prompt.
func WithHistoryStore(s HistoryStore) Option {
	return func(c *Console) { c.store = s }
}

// WithHistory seeds the input history, oldest first.
func WithHistory(prompts []string) Option {
	return func(c *Console) { c.history = append([]string(nil), prompts...) }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Console) { c.logger = l }
}

// WithOnChange registers a function called after every state change,
// including each streamed token. It runs without the console lock held.
func WithOnChange(fn func()) Option {
	return func(c *Console) { c.onChange = fn }
}

// Console is the chat console state machine. All methods are safe for
// concurrent use; Submit blocks for the duration of the stream and is
// normally run on its own goroutine while the UI reads Snapshot.
type Console struct {
	streamer Streamer
	store    HistoryStore
	logger   *zap.Logger
	onChange func()

	mu        sync.Mutex
	backends  []model.Backend
	active    model.Backend
	messages  []*model.Message
	input     string
	history   []string
	cursor    int // -1 when not navigating
	streaming bool
}

// New creates a console. active must be one of backends.
func New(streamer Streamer, backends []model.Backend, active model.Backend, opts ...Option) *Console {
	c := &Console{
		streamer: streamer,
		logger:   zap.NewNop(),
		backends: append([]model.Backend(nil), backends...),
		active:   active,
		cursor:   -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit sends text to the active backend and blocks until the reply has
// finished streaming. It returns false without changing anything when the
// trimmed text is empty or another reply is still streaming.
func (c *Console) Submit(ctx context.Context, text string) bool {
	prompt := strings.TrimSpace(text)

	c.mu.Lock()
	if prompt == "" || c.streaming {
		c.mu.Unlock()
		return false
	}
	c.history = append(c.history, prompt)
	c.cursor = -1
	c.messages = append(c.messages, model.NewUserMessage(prompt))
	reply := model.NewAssistantMessage(c.active.ID)
	c.messages = append(c.messages, reply)
	c.streaming = true
	c.input = ""
	backend := c.active
	c.mu.Unlock()
	c.changed()

	res := c.streamer.Start(ctx, backend, prompt, stream.Callbacks{
		OnToken: func(tok string) {
			c.mu.Lock()
			reply.AppendToken(tok)
			c.mu.Unlock()
			c.changed()
		},
		OnError: func(err error) {
			c.mu.Lock()
			reply.SetError(err)
			c.mu.Unlock()
			c.changed()
		},
	})

	// Persisted after the reply so a slow disk never delays the first token.
	// The gate is still closed, which keeps stored prompts in submit order.
	if c.store != nil {
		if err := c.store.Append(context.WithoutCancel(ctx), prompt, backend.ID); err != nil {
			c.logger.Warn("failed to persist prompt", zap.Error(err))
		}
	}

	c.mu.Lock()
	reply.FinalizeStream(res.IsMarkdown)
	c.streaming = false
	c.mu.Unlock()
	c.changed()
	return true
}

// Stop cancels the reply that is currently streaming, if any.
func (c *Console) Stop() {
	c.streamer.Cancel()
}

// =============================================================================
// INPUT AND HISTORY
// =============================================================================

// SetInput replaces the input line. Input is locked while streaming.
func (c *Console) SetInput(text string) bool {
	c.mu.Lock()
	if c.streaming {
		c.mu.Unlock()
		return false
	}
	c.input = text
	c.mu.Unlock()
	c.changed()
	return true
}

// HistoryBack moves toward older prompts, stopping at the oldest, and loads
// the selected prompt into the input line.
func (c *Console) HistoryBack() {
	c.mu.Lock()
	if c.streaming || len(c.history) == 0 {
		c.mu.Unlock()
		return
	}
	if c.cursor < 0 {
		c.cursor = len(c.history) - 1
	} else {
		c.cursor = max(0, c.cursor-1)
	}
	c.input = c.history[c.cursor]
	c.mu.Unlock()
	c.changed()
}

// HistoryForward moves toward newer prompts. Moving past the newest prompt
// leaves history navigation with an empty input line.
func (c *Console) HistoryForward() {
	c.mu.Lock()
	if c.streaming || len(c.history) == 0 || c.cursor < 0 {
		c.mu.Unlock()
		return
	}
	if c.cursor >= len(c.history)-1 {
		c.cursor = -1
		c.input = ""
	} else {
		c.cursor++
		c.input = c.history[c.cursor]
	}
	c.mu.Unlock()
	c.changed()
}

// =============================================================================
// BACKENDS
// =============================================================================

// SetBackend selects the backend for the next submit. A reply already
// streaming keeps its backend.
func (c *Console) SetBackend(id string) error {
	c.mu.Lock()
	b, ok := model.FindBackend(c.backends, id)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown backend %q", id)
	}
	c.active = b
	c.mu.Unlock()
	c.changed()
	return nil
}

// Backends returns the selectable backends.
func (c *Console) Backends() []model.Backend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Backend(nil), c.backends...)
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// State is a point-in-time copy of the console for rendering.
type State struct {
	Messages      []model.Message
	Input         string
	Streaming     bool
	Backend       model.Backend
	History       []string
	HistoryCursor int
}

// LastReply returns the most recent assistant message, if any.
func (s State) LastReply() (model.Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == model.RoleAssistant {
			return s.Messages[i], true
		}
	}
	return model.Message{}, false
}

// Snapshot returns a copy of the current state.
func (c *Console) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]model.Message, len(c.messages))
	for i, m := range c.messages {
		msgs[i] = m.Snapshot()
	}
	return State{
		Messages:      msgs,
		Input:         c.input,
		Streaming:     c.streaming,
		Backend:       c.active,
		History:       append([]string(nil), c.history...),
		HistoryCursor: c.cursor,
	}
}

// Streaming reports whether a reply is in flight.
func (c *Console) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Input returns the current input line.
func (c *Console) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

func (c *Console) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
