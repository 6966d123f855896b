// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/promptcon/internal/ui/styles"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the console activity shown in the footer.
type Status int

const (
	StatusIdle Status = iota
	StatusStreaming
	StatusError
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusStreaming:
		return "streaming"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Icon returns the shape indicator for the status.
func (s Status) Icon() string {
	switch s {
	case StatusStreaming:
		return styles.StatusIndicators.Streaming
	case StatusError:
		return styles.StatusIndicators.Error
	default:
		return styles.StatusIndicators.Idle
	}
}

// =============================================================================
// STATUS BAR
// =============================================================================

// StatusBar is the footer line: mode, backend, activity, theme and clock.
type StatusBar struct {
	Mode    string // demo or live
	Backend string
	Theme   string
	Status  Status
	Spinner string // current spinner frame, shown while streaming
	Flash   string // transient notice, replaces the shortcuts
	Now     time.Time
	Width   int

	theme *styles.Theme
}

// NewStatusBar creates a status bar drawn with theme.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Mode:   "demo",
		Status: StatusIdle,
		Width:  80,
		theme:  theme,
	}
}

// SetWidth sets the available width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// View renders the footer.
func (s *StatusBar) View() string {
	t := s.theme
	sep := t.Muted.Render(" | ")

	status := s.Status.Icon() + " " + s.Status.String()
	if s.Status == StatusStreaming && s.Spinner != "" {
		status = s.Spinner + " " + s.Status.String()
	}
	statusStyle := t.StatusValue
	switch s.Status {
	case StatusStreaming:
		statusStyle = t.StatusKey
	case StatusError:
		statusStyle = t.ErrorText
	}

	left := []string{
		t.HeaderBadge.Render(strings.ToUpper(s.Mode)),
		t.StatusKey.Render(s.Backend),
		statusStyle.Render(status),
	}
	if s.Width >= 80 {
		left = append(left, t.StatusValue.Render(s.Theme))
	}
	leftStr := strings.Join(left, sep)

	right := ""
	if !s.Now.IsZero() {
		right = t.StatusValue.Render(s.Now.Format("15:04:05"))
	}

	middle := ""
	switch {
	case s.Flash != "":
		middle = t.StatusKey.Render(s.Flash)
	case s.Width >= 100:
		middle = s.renderShortcuts()
	}

	gap := s.Width - lipgloss.Width(leftStr) - lipgloss.Width(right) - 2
	if middle != "" && gap > lipgloss.Width(middle)+2 {
		pad := gap - lipgloss.Width(middle)
		leftStr += strings.Repeat(" ", pad/2) + middle + strings.Repeat(" ", pad-pad/2)
	} else if gap > 0 {
		leftStr += strings.Repeat(" ", gap)
	}

	w := max(s.Width, 0)
	return t.StatusBar.Width(w).MaxWidth(w).Render(leftStr + right)
}

var footerShortcuts = [][2]string{
	{"^B", "backend"},
	{"^T", "theme"},
	{"^E", "compose"},
	{"^P", "preview"},
	{"^Y", "copy"},
}

func (s *StatusBar) renderShortcuts() string {
	parts := make([]string, 0, len(footerShortcuts))
	for _, sc := range footerShortcuts {
		parts = append(parts, s.theme.StatusKey.Render(sc[0])+" "+s.theme.Muted.Render(sc[1]))
	}
	return strings.Join(parts, "  ")
}
