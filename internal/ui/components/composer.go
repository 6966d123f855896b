// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/promptcon/internal/compose"
	"github.com/jeranaias/promptcon/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// ComposerAppliedMsg carries the composed prompt back to the input line.
type ComposerAppliedMsg struct {
	Text string
}

// ComposerClosedMsg is sent when the composer is dismissed.
type ComposerClosedMsg struct{}

// ComposerCopiedMsg reports the outcome of copying the draft.
type ComposerCopiedMsg struct {
	Err error
}

// RenderFunc renders markdown for the preview pane.
type RenderFunc func(md string, width int) string

// =============================================================================
// COMPOSER
// =============================================================================

// Composer is a multi-line prompt editor with templates, live stats and an
// optional markdown preview.
type Composer struct {
	area    textarea.Model
	visible bool
	preview bool
	width   int
	height  int

	theme  *styles.Theme
	render RenderFunc
	copy   func(string) error
}

// NewComposer creates a hidden composer. copy writes to the clipboard.
func NewComposer(theme *styles.Theme, render RenderFunc, copyFn func(string) error) *Composer {
	ta := textarea.New()
	ta.Placeholder = "Compose a prompt... (F1-F3 insert a template)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetWidth(60)
	ta.SetHeight(8)

	return &Composer{
		area:   ta,
		theme:  theme,
		render: render,
		copy:   copyFn,
		width:  64,
		height: 16,
	}
}

// Show opens the composer seeded with draft.
func (c *Composer) Show(draft string) tea.Cmd {
	c.area.SetValue(draft)
	c.area.CursorEnd()
	c.visible = true
	return c.area.Focus()
}

// Hide closes the composer.
func (c *Composer) Hide() {
	c.area.Blur()
	c.visible = false
}

// Visible reports whether the composer is open.
func (c *Composer) Visible() bool {
	return c.visible
}

// Value returns the current draft.
func (c *Composer) Value() string {
	return c.area.Value()
}

// Preview reports whether the preview pane is shown.
func (c *Composer) Preview() bool {
	return c.preview
}

// SetSize fits the composer into the given box.
func (c *Composer) SetSize(width, height int) {
	c.width = width
	c.height = height
	c.area.SetWidth(max(width-4, 20))
	c.area.SetHeight(max(height/2-4, 4))
}

// ApplyTemplate appends the template with the given id to the draft.
func (c *Composer) ApplyTemplate(id string) bool {
	t, ok := compose.FindTemplate(id)
	if !ok {
		return false
	}
	c.area.SetValue(compose.Apply(c.area.Value(), t))
	c.area.CursorEnd()
	return true
}

// Update handles keys while the composer is open.
func (c *Composer) Update(msg tea.Msg) (*Composer, tea.Cmd) {
	if !c.visible {
		return c, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			c.Hide()
			return c, func() tea.Msg { return ComposerClosedMsg{} }
		case "ctrl+s":
			text := c.area.Value()
			c.Hide()
			return c, func() tea.Msg { return ComposerAppliedMsg{Text: text} }
		case "ctrl+y":
			text := c.area.Value()
			cp := c.copy
			return c, func() tea.Msg {
				if cp == nil {
					return ComposerCopiedMsg{Err: fmt.Errorf("clipboard unavailable")}
				}
				return ComposerCopiedMsg{Err: cp(text)}
			}
		case "ctrl+p":
			c.preview = !c.preview
			return c, nil
		case "f1", "f2", "f3":
			templates := compose.Templates()
			idx := int(key.String()[1] - '1')
			if idx < len(templates) {
				c.ApplyTemplate(templates[idx].ID)
			}
			return c, nil
		}
	}

	var cmd tea.Cmd
	c.area, cmd = c.area.Update(msg)
	return c, cmd
}

// View renders the composer box.
func (c *Composer) View() string {
	if !c.visible {
		return ""
	}
	t := c.theme

	var b strings.Builder
	b.WriteString(t.OverlayTitle.Render("Prompt composer"))
	b.WriteString("\n")

	tpls := compose.Templates()
	chips := make([]string, len(tpls))
	for i, tpl := range tpls {
		chips[i] = t.StatusKey.Render(fmt.Sprintf("F%d", i+1)) + " " + t.Muted.Render(tpl.Name)
	}
	b.WriteString(strings.Join(chips, "   "))
	b.WriteString("\n\n")
	b.WriteString(c.area.View())
	b.WriteString("\n")

	st := compose.Measure(c.area.Value())
	b.WriteString(t.Muted.Render(fmt.Sprintf("%d chars  %d words  ~%d tokens", st.Chars, st.Words, st.Tokens)))
	b.WriteString("\n")
	b.WriteString(t.Muted.Render("ctrl+s apply  ctrl+y copy  ctrl+p preview  esc close"))

	if c.preview && c.render != nil {
		b.WriteString("\n\n")
		b.WriteString(t.OverlayTitle.Render("Preview"))
		b.WriteString("\n")
		body := c.area.Value()
		if compose.LooksLikeMarkdown(body) {
			body = c.render(body, max(c.width-6, 20))
		}
		b.WriteString(lipgloss.NewStyle().MaxHeight(max(c.height/2-2, 3)).Render(body))
	}

	return t.Overlay.Width(max(c.width-2, 20)).Render(b.String())
}
