// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/promptcon/internal/config"
	"github.com/jeranaias/promptcon/internal/console"
	"github.com/jeranaias/promptcon/internal/model"
	"github.com/jeranaias/promptcon/internal/storage"
	"github.com/jeranaias/promptcon/internal/stream"
	"github.com/jeranaias/promptcon/internal/ui/components"
	"github.com/jeranaias/promptcon/internal/ui/markdown"
	"github.com/jeranaias/promptcon/internal/ui/styles"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeStreamer struct {
	tokens    []string
	result    stream.Result
	err       error
	cancelled atomic.Bool
}

func (f *fakeStreamer) Start(ctx context.Context, _ model.Backend, _ string, cb stream.Callbacks) stream.Result {
	for _, tok := range f.tokens {
		cb.OnToken(tok)
	}
	if f.err != nil {
		cb.OnError(f.err)
		return stream.Result{}
	}
	return f.result
}

func (f *fakeStreamer) Cancel() {
	f.cancelled.Store(true)
}

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func (s *fakeSettings) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	return nil
}

func (s *fakeSettings) get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// =============================================================================
// HELPERS
// =============================================================================

func newTestModel(t *testing.T, fs *fakeStreamer, opts ...Option) Model {
	t.Helper()
	backends := config.DefaultBackends()
	con := console.New(fs, backends, backends[0], console.WithHistory([]string{"one", "two"}))
	opts = append([]Option{WithMarkdown(markdown.NewRenderer("dark"))}, opts...)
	m := New(con, styles.NewTheme(""), opts...)
	return update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+t":
		msg = tea.KeyMsg{Type: tea.KeyCtrlT}
	case "ctrl+y":
		msg = tea.KeyMsg{Type: tea.KeyCtrlY}
	case "ctrl+e":
		msg = tea.KeyMsg{Type: tea.KeyCtrlE}
	case "ctrl+b":
		msg = tea.KeyMsg{Type: tea.KeyCtrlB}
	case "ctrl+l":
		msg = tea.KeyMsg{Type: tea.KeyCtrlL}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// findSubmitDone runs the commands of a submit batch and returns the
// SubmitDoneMsg among their results.
func findSubmitDone(t *testing.T, cmd tea.Cmd) SubmitDoneMsg {
	t.Helper()
	require.NotNil(t, cmd)
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok, "submit should return a batch")
	for _, c := range batch {
		if c == nil {
			continue
		}
		if done, ok := c().(SubmitDoneMsg); ok {
			return done
		}
	}
	t.Fatal("no SubmitDoneMsg in batch")
	return SubmitDoneMsg{}
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_StreamsReply(t *testing.T) {
	fs := &fakeStreamer{tokens: []string{"hi ", "there"}, result: stream.Result{IsMarkdown: true}}
	m := newTestModel(t, fs)

	m, _ = press(t, m, "hello")
	assert.Equal(t, "hello", m.con.Input())

	m, cmd := press(t, m, "enter")
	assert.True(t, m.Streaming())

	done := findSubmitDone(t, cmd)
	assert.True(t, done.Accepted)
	m = update(t, m, done)

	assert.False(t, m.Streaming())
	assert.Equal(t, "", m.input.Value())

	st := m.State()
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "hello", st.Messages[0].Content)
	assert.Equal(t, "hi there", st.Messages[1].Content)
	assert.True(t, st.Messages[1].IsMarkdown)

	view := m.View()
	assert.Contains(t, view, "hello")
	assert.Contains(t, view, "there")
	assert.Contains(t, view, "alpha-agent")
}

func TestSubmit_BlankIgnored(t *testing.T) {
	m := newTestModel(t, &fakeStreamer{})
	m, _ = press(t, m, "   ")
	m, cmd := press(t, m, "enter")
	assert.Nil(t, cmd)
	assert.False(t, m.Streaming())
	assert.Empty(t, m.State().Messages)
}

func TestSubmit_ErrorRendersPlainText(t *testing.T) {
	fs := &fakeStreamer{tokens: []string{"partial"}, err: errors.New("boom")}
	m := newTestModel(t, fs)

	m, _ = press(t, m, "go")
	m, cmd := press(t, m, "enter")
	m = update(t, m, findSubmitDone(t, cmd))

	reply, ok := m.State().LastReply()
	require.True(t, ok)
	assert.Equal(t, "Error: boom", reply.Content)
	assert.False(t, reply.IsMarkdown)
	assert.Contains(t, m.View(), "Error: boom")
}

func TestInputLockedWhileStreaming(t *testing.T) {
	fs := &fakeStreamer{}
	m := newTestModel(t, fs)

	m, _ = press(t, m, "wait")
	m, _ = press(t, m, "enter")
	require.True(t, m.Streaming())

	m, _ = press(t, m, "x")
	assert.Equal(t, "wait", m.input.Value())

	m, _ = press(t, m, "up")
	assert.Equal(t, "wait", m.input.Value(), "history is disabled while streaming")

	m, cmd := press(t, m, "enter")
	assert.Nil(t, cmd, "second submit must be ignored")

	_, _ = press(t, m, "esc")
	assert.True(t, fs.cancelled.Load(), "esc should stop the stream")
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistoryNavigation(t *testing.T) {
	m := newTestModel(t, &fakeStreamer{})

	m, _ = press(t, m, "up")
	assert.Equal(t, "two", m.input.Value())
	m, _ = press(t, m, "up")
	assert.Equal(t, "one", m.input.Value())
	m, _ = press(t, m, "up")
	assert.Equal(t, "one", m.input.Value(), "stops at the oldest entry")
	m, _ = press(t, m, "down")
	assert.Equal(t, "two", m.input.Value())
	m, _ = press(t, m, "down")
	assert.Equal(t, "", m.input.Value(), "past the newest entry clears the input")
}

// =============================================================================
// THEMES, BACKENDS, COPY
// =============================================================================

func TestThemeCyclePersists(t *testing.T) {
	settings := &fakeSettings{}
	m := newTestModel(t, &fakeStreamer{}, WithSettings(settings))

	m, cmd := press(t, m, "ctrl+t")
	assert.NotNil(t, cmd)
	assert.Equal(t, "aqua", m.theme.Palette.ID)
	assert.Equal(t, "aqua", settings.get(storage.SettingTheme))
	assert.Contains(t, m.flash, "Aqua")
}

func TestBackendSelection(t *testing.T) {
	settings := &fakeSettings{}
	m := newTestModel(t, &fakeStreamer{}, WithSettings(settings))

	m, _ = press(t, m, "ctrl+b")
	assert.True(t, m.picker.Visible())
	assert.Contains(t, m.View(), "Select backend")

	m = update(t, m, components.BackendSelectedMsg{ID: "bravo"})
	assert.Equal(t, "bravo", m.State().Backend.ID)
	assert.Equal(t, "bravo", settings.get(storage.SettingBackend))

	m = update(t, m, components.BackendSelectedMsg{ID: "nope"})
	assert.Equal(t, "bravo", m.State().Backend.ID)
	assert.Contains(t, m.flash, "unknown backend")
}

func TestCopyLastReply(t *testing.T) {
	var copied string
	clip := func(s string) error { copied = s; return nil }
	fs := &fakeStreamer{tokens: []string{"answer"}, result: stream.Result{IsMarkdown: false}}
	m := newTestModel(t, fs, WithClipboard(clip))

	m, cmd := press(t, m, "ctrl+y")
	require.NotNil(t, cmd)
	assert.Equal(t, "nothing to copy", m.flash)

	m, _ = press(t, m, "q")
	m, cmd = press(t, m, "enter")
	m = update(t, m, findSubmitDone(t, cmd))

	m, cmd = press(t, m, "ctrl+y")
	require.NotNil(t, cmd)
	m = update(t, m, cmd())
	assert.Equal(t, "answer", copied)
	assert.Equal(t, "reply copied", m.flash)
}

func TestTranscriptSurvivesUnboundKeys(t *testing.T) {
	fs := &fakeStreamer{tokens: []string{"x"}}
	m := newTestModel(t, fs)
	m, _ = press(t, m, "q")
	m, cmd := press(t, m, "enter")
	m = update(t, m, findSubmitDone(t, cmd))
	require.Len(t, m.State().Messages, 2)

	m, _ = press(t, m, "ctrl+l")
	require.Len(t, m.State().Messages, 2)
	assert.Equal(t, "q", m.State().Messages[0].Content)
	assert.Equal(t, "x", m.State().Messages[1].Content)
}

// =============================================================================
// COMPOSER AND PREVIEW
// =============================================================================

func TestComposerAppliesMultilineDraft(t *testing.T) {
	m := newTestModel(t, &fakeStreamer{})

	m, _ = press(t, m, "ctrl+e")
	assert.True(t, m.composer.Visible())

	m = update(t, m, components.ComposerAppliedMsg{Text: "# Title\n\nbody"})
	assert.Equal(t, "# Title\n\nbody", m.con.Input())
	assert.True(t, m.showPreview())
	assert.Contains(t, m.View(), "Preview")
}

func TestComposerDisabledByFeature(t *testing.T) {
	features := config.Default().Features
	features.PromptComposer = false
	m := newTestModel(t, &fakeStreamer{}, WithFeatures(features))

	m, _ = press(t, m, "ctrl+e")
	assert.False(t, m.composer.Visible())
}

func TestPreviewToggle(t *testing.T) {
	m := newTestModel(t, &fakeStreamer{})
	m, _ = press(t, m, "**bold**")
	assert.True(t, m.showPreview())

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	m = next.(Model)
	assert.False(t, m.showPreview())
	assert.False(t, strings.Contains(m.View(), "Preview"))
}
