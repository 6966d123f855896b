// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/promptcon/internal/storage"
	"github.com/jeranaias/promptcon/internal/ui/components"
)

// Update handles all messages for the console screen.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.theme.SetSize(msg.Width, msg.Height)
		m.picker.SetSize(min(msg.Width, 90), msg.Height-4)
		m.composer.SetSize(min(msg.Width, 100), msg.Height-2)
		m.layout()
		m.refreshTranscript()
		return m, nil

	case StreamTickMsg:
		m.now = msg.Time
		m.refresh()
		if m.Streaming() {
			return m, streamTickCmd()
		}
		return m, nil

	case SubmitDoneMsg:
		m.pending = false
		m.refresh()
		m.input.SetValue(m.state.Input)
		m.input.CursorEnd()
		if msg.Accepted {
			m.logger.Debug("reply finished", zap.Duration("elapsed", time.Since(m.streamStart)))
		}
		cmd := m.input.Focus()
		return m, cmd

	case spinner.TickMsg:
		if !m.Streaming() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case clockTickMsg:
		m.now = msg.Time
		return m, clockTickCmd()

	case flashExpiredMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
		}
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			cmd := m.setFlash("copy failed: " + msg.err.Error())
			return m, cmd
		}
		cmd := m.setFlash("reply copied")
		return m, cmd

	case components.BackendSelectedMsg:
		cmd := m.selectBackend(msg.ID)
		return m, cmd

	case components.PickerClosedMsg, components.ComposerClosedMsg:
		cmd := m.input.Focus()
		return m, cmd

	case components.ComposerAppliedMsg:
		m.composer.Hide()
		if m.con.SetInput(msg.Text) {
			m.input.SetValue(msg.Text)
			m.input.CursorEnd()
			m.state.Input = msg.Text
			m.layout()
		}
		cmd := m.input.Focus()
		return m, cmd

	case components.ComposerCopiedMsg:
		if msg.Err != nil {
			cmd := m.setFlash("copy failed: " + msg.Err.Error())
			return m, cmd
		}
		cmd := m.setFlash("draft copied")
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	// Cursor blink and other component messages.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.con.Stop()
		return m, tea.Quit
	}

	// Overlays take all other keys while open.
	if m.picker.Visible() {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}
	if m.composer.Visible() {
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Stop):
		if m.Streaming() {
			m.con.Stop()
			return m, nil
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.HistoryPrev):
		if !m.Streaming() {
			m.con.HistoryBack()
			m.syncInput()
		}
		return m, nil

	case key.Matches(msg, m.keys.HistoryNext):
		if !m.Streaming() {
			m.con.HistoryForward()
			m.syncInput()
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Backends):
		m.picker.Show(m.con.Backends(), m.state.Backend.ID)
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Theme):
		cmd := m.cycleTheme()
		return m, cmd

	case key.Matches(msg, m.keys.Composer):
		if !m.features.PromptComposer || m.Streaming() {
			return m, nil
		}
		m.input.Blur()
		cmd := m.composer.Show(m.con.Input())
		return m, cmd

	case key.Matches(msg, m.keys.Preview):
		m.preview = !m.preview
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		reply, ok := m.state.LastReply()
		if !ok || reply.IsEmpty() {
			cmd := m.setFlash("nothing to copy")
			return m, cmd
		}
		return m, copyCmd(m.clip, reply.Content)
	}

	// Input is disabled while a reply streams.
	if m.Streaming() {
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		m.con.SetInput(v)
		m.state.Input = v
		m.layout()
	}
	return m, cmd
}

// submit dispatches the console's current input. The console ignores blank
// input, so only a non-blank line locks the input and starts the tick.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.Streaming() {
		return m, nil
	}
	text := m.con.Input()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}

	m.pending = true
	m.streamStart = time.Now()
	m.input.Blur()
	m.logger.Debug("prompt submitted",
		zap.String("backend", m.state.Backend.ID),
		zap.Int("chars", len(text)))

	return m, tea.Batch(
		submitCmd(m.ctx, m.con, text),
		streamTickCmd(),
		m.spinner.Tick,
	)
}

// syncInput copies the console's input line into the text field.
func (m *Model) syncInput() {
	v := m.con.Input()
	m.input.SetValue(v)
	m.input.CursorEnd()
	m.state.Input = v
	m.layout()
}

func (m *Model) selectBackend(id string) tea.Cmd {
	focus := m.input.Focus()
	if err := m.con.SetBackend(id); err != nil {
		return tea.Batch(focus, m.setFlash(err.Error()))
	}
	m.refresh()
	m.persist(storage.SettingBackend, id)
	return tea.Batch(focus, m.setFlash("backend: "+m.state.Backend.Name))
}

func (m *Model) cycleTheme() tea.Cmd {
	p := m.theme.Cycle()
	m.input.PromptStyle = m.theme.InputPrompt
	m.spinner.Style = m.theme.StatusKey
	m.rendered = make(map[string]string)
	m.refreshTranscript()
	m.persist(storage.SettingTheme, p.ID)
	return m.setFlash("theme: " + p.Name)
}

func (m *Model) persist(key, value string) {
	if m.settings == nil {
		return
	}
	if err := m.settings.SetSetting(m.ctx, key, value); err != nil {
		m.logger.Warn("failed to save setting", zap.String("key", key), zap.Error(err))
	}
}

func (m *Model) setFlash(text string) tea.Cmd {
	m.flashSeq++
	m.flash = text
	return flashExpireCmd(m.flashSeq)
}

// =============================================================================
// REFRESH
// =============================================================================

// refresh pulls a fresh snapshot from the console and re-renders.
func (m *Model) refresh() {
	m.state = m.con.Snapshot()
	if m.state.Streaming {
		m.input.SetValue(m.state.Input)
	}
	m.refreshTranscript()
}

func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript(m.viewport.Width))
	if atBottom || m.Streaming() {
		m.viewport.GotoBottom()
	}
}

// layout sizes the viewport around the header, preview, input and footer.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	sidebar := m.sidebarWidth()
	inputWidth := max(m.width-4, 10)
	m.input.Width = max(inputWidth-lipglossWidth(m.input.Prompt)-1, 5)

	h := m.height - headerHeight - inputHeight - footerHeight - m.previewHeight()
	m.viewport.Width = max(m.width-sidebar, 10)
	m.viewport.Height = max(h, 3)
}

func (m Model) showPreview() bool {
	return m.features.MarkdownPreview && m.preview && looksLikeMarkdownInput(m.state.Input)
}

// describeBackend is used in the header.
func describeBackend(name, latency string) string {
	if latency == "-" {
		return name
	}
	return fmt.Sprintf("%s %s", name, latency)
}
