// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/promptcon/internal/compose"
	"github.com/jeranaias/promptcon/internal/model"
	"github.com/jeranaias/promptcon/internal/ui/components"
	"github.com/jeranaias/promptcon/internal/ui/styles"
	"github.com/jeranaias/promptcon/internal/util"
)

// Fixed layout heights, in rows.
const (
	headerHeight  = 2 // title + rule
	inputHeight   = 3 // bordered single line
	footerHeight  = 1
	previewRows   = 8
	sidebarCols   = 30
)

// View renders the console screen.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch {
	case m.picker.Visible():
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.picker.View())
	case m.composer.Visible():
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.composer.View())
	}

	body := m.viewport.View()
	if w := m.sidebarWidth(); w > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(w, m.viewport.Height), body)
	}

	parts := []string{m.renderHeader(), body}
	if m.showPreview() {
		parts = append(parts, m.renderPreview())
	}
	parts = append(parts, m.renderInput(), m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) sidebarWidth() int {
	if m.theme.GetLayoutMode() == styles.LayoutWide {
		return sidebarCols
	}
	return 0
}

func (m Model) previewHeight() int {
	if m.showPreview() {
		return previewRows
	}
	return 0
}

// =============================================================================
// HEADER AND SIDEBAR
// =============================================================================

func (m Model) renderHeader() string {
	t := m.theme
	b := m.state.Backend
	left := t.HeaderTitle.Render("PROMPTCON") + t.Muted.Render("  agent console")
	right := t.HeaderBadge.Render(strings.ToUpper(m.mode)) + " " +
		t.StatusKey.Render(describeBackend(b.Name, b.LatencyString()))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	line := left + strings.Repeat(" ", max(gap, 1)) + right
	return t.Header.Width(m.width).MaxWidth(m.width).Render(line)
}

func (m Model) renderSidebar(width, height int) string {
	t := m.theme
	inner := width - 4

	var sb strings.Builder
	sb.WriteString(t.SidebarTitle.Render("BACKENDS"))
	sb.WriteString("\n")
	for _, b := range m.con.Backends() {
		name := util.TruncateWidth(b.Name, inner-2)
		meta := util.TruncateWidth(b.LatencyString()+"  "+authTag(b), inner-2)
		if b.ID == m.state.Backend.ID {
			marker := lipgloss.NewStyle().Foreground(lipgloss.Color(b.Accent)).Render("> ")
			sb.WriteString(marker + t.BackendItemActive.Render(name))
		} else {
			sb.WriteString("  " + t.BackendItem.Render(name))
		}
		sb.WriteString("\n  ")
		sb.WriteString(t.BackendMeta.Render(meta))
		sb.WriteString("\n")
	}

	return t.Sidebar.
		Width(width - 2).
		Height(max(height-2, 1)).
		MaxHeight(height).
		Render(strings.TrimRight(sb.String(), "\n"))
}

func authTag(b model.Backend) string {
	kind := b.AuthKind()
	if kind == model.AuthNone {
		return kind.Label()
	}
	return styles.StatusIndicators.Locked + " " + kind.Label()
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript draws every message at the given width. Finished
// markdown replies are rendered once and cached.
func (m *Model) renderTranscript(width int) string {
	if width != m.renderedWidth {
		m.rendered = make(map[string]string)
		m.renderedWidth = width
	}
	if len(m.state.Messages) == 0 {
		return m.renderWelcome(width)
	}

	t := m.theme
	compact := m.features.CompactLog
	bodyWidth := max(width-2, 10)

	var sb strings.Builder
	for i, msg := range m.state.Messages {
		if i > 0 && !compact {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderLabel(msg))
		if !compact {
			sb.WriteString("  " + t.Timestamp.Render(msg.Timestamp.Format("15:04:05")))
		}
		sb.WriteString("\n")
		sb.WriteString(m.renderBody(msg, bodyWidth))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderLabel(msg model.Message) string {
	if msg.Role == model.RoleUser {
		return m.theme.UserLabel.Render(msg.Role.DisplayName())
	}
	label := msg.Role.DisplayName()
	if b, ok := model.FindBackend(m.con.Backends(), msg.BackendID); ok {
		label += " · " + b.Name
	}
	return m.theme.AgentLabel.Render(label)
}

func (m *Model) renderBody(msg model.Message, width int) string {
	t := m.theme

	switch {
	case msg.Failed:
		return t.ErrorText.Width(width).Render(msg.Content)

	case msg.IsStreaming:
		cursor := ""
		if styles.CursorVisible(m.now.Sub(m.streamStart)) {
			cursor = t.Cursor.Render(styles.StreamCursor)
		}
		return t.Body.Width(width).Render(msg.Content + cursor)

	case msg.Role == model.RoleAssistant && msg.IsMarkdown:
		if out, ok := m.rendered[msg.ID]; ok {
			return out
		}
		out := m.md.Render(msg.Content, width)
		m.rendered[msg.ID] = out
		return out
	}
	return t.Body.Width(width).Render(msg.Content)
}

func (m Model) renderWelcome(width int) string {
	t := m.theme
	lines := []string{
		t.HeaderTitle.Render("Ready."),
		t.Muted.Render("Type a prompt and press enter. Replies stream in live."),
		"",
		m.help.ShortHelpView(m.keys.ShortHelp()),
	}
	return lipgloss.NewStyle().Width(width).Padding(1, 2).Render(strings.Join(lines, "\n"))
}

// =============================================================================
// INPUT, PREVIEW AND FOOTER
// =============================================================================

func (m Model) renderInput() string {
	box := m.theme.InputBox
	if m.Streaming() {
		box = m.theme.InputBoxLock
	}
	return box.Width(max(m.width-2, 10)).Render(m.input.View())
}

func (m Model) renderPreview() string {
	t := m.theme
	width := max(m.width-4, 20)
	body := m.md.Render(m.state.Input, width)
	content := t.OverlayTitle.Render("Preview") + "\n" + body
	return t.Sidebar.
		Width(max(m.width-2, 10)).
		MaxHeight(previewRows).
		Render(content)
}

func (m Model) renderFooter() string {
	f := m.footer
	f.SetWidth(m.width)
	f.Mode = m.mode
	f.Backend = m.state.Backend.Name
	f.Theme = m.theme.Palette.Name
	f.Now = m.now
	f.Flash = m.flash
	f.Spinner = ""

	switch {
	case m.Streaming():
		f.Status = components.StatusStreaming
		f.Spinner = m.spinner.View()
	case lastReplyFailed(m.state.Messages):
		f.Status = components.StatusError
	default:
		f.Status = components.StatusIdle
	}
	return f.View()
}

// =============================================================================
// HELPERS
// =============================================================================

func lastReplyFailed(msgs []model.Message) bool {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant {
			return msgs[i].Failed
		}
	}
	return false
}

func looksLikeMarkdownInput(s string) bool {
	return strings.TrimSpace(s) != "" && compose.LooksLikeMarkdown(s)
}

func lipglossWidth(s string) int {
	return lipgloss.Width(s)
}
