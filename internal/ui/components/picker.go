// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/promptcon/internal/model"
	"github.com/jeranaias/promptcon/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// BackendSelectedMsg is sent when the user picks a backend.
type BackendSelectedMsg struct {
	ID string
}

// PickerClosedMsg is sent when the picker is dismissed without a choice.
type PickerClosedMsg struct{}

// =============================================================================
// LIST ITEMS
// =============================================================================

type backendItem struct {
	backend model.Backend
	active  bool
}

func (i backendItem) Title() string {
	mark := "  "
	if i.active {
		mark = "* "
	}
	return fmt.Sprintf("%s%s  %s", mark, i.backend.Name, i.backend.LatencyString())
}

func (i backendItem) Description() string {
	desc := i.backend.URL
	if i.backend.Description != "" {
		desc += "  " + i.backend.Description
	}
	return desc + "  [" + i.backend.Capabilities() + "]"
}

func (i backendItem) FilterValue() string {
	return i.backend.Name + " " + i.backend.ID
}

// =============================================================================
// BACKEND PICKER
// =============================================================================

// BackendPicker is an overlay listing the configured backends.
type BackendPicker struct {
	list    list.Model
	visible bool
	theme   *styles.Theme
}

// NewBackendPicker creates a hidden picker.
func NewBackendPicker(theme *styles.Theme) *BackendPicker {
	l := list.New(nil, newPickerDelegate(theme), 60, 16)
	l.Title = "Select backend"
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.Styles.Title = theme.OverlayTitle
	return &BackendPicker{list: l, theme: theme}
}

func newPickerDelegate(theme *styles.Theme) list.DefaultDelegate {
	d := list.NewDefaultDelegate()
	accent := theme.Palette.Accent
	d.Styles.SelectedTitle = d.Styles.SelectedTitle.Foreground(accent).BorderLeftForeground(accent)
	d.Styles.SelectedDesc = d.Styles.SelectedDesc.Foreground(theme.Palette.AccentDim).BorderLeftForeground(accent)
	return d
}

// Show fills the picker and makes it visible with the active backend selected.
func (p *BackendPicker) Show(backends []model.Backend, activeID string) {
	items := make([]list.Item, len(backends))
	selected := 0
	for i, b := range backends {
		items[i] = backendItem{backend: b, active: b.ID == activeID}
		if b.ID == activeID {
			selected = i
		}
	}
	p.list.SetDelegate(newPickerDelegate(p.theme))
	p.list.Styles.Title = p.theme.OverlayTitle
	p.list.ResetFilter()
	p.list.SetItems(items)
	p.list.Select(selected)
	p.visible = true
}

// Hide hides the picker.
func (p *BackendPicker) Hide() {
	p.visible = false
}

// Visible reports whether the picker is shown.
func (p *BackendPicker) Visible() bool {
	return p.visible
}

// SetSize constrains the list to the given box.
func (p *BackendPicker) SetSize(width, height int) {
	p.list.SetSize(max(width-4, 20), max(height-4, 6))
}

// Selected returns the highlighted backend.
func (p *BackendPicker) Selected() (model.Backend, bool) {
	item, ok := p.list.SelectedItem().(backendItem)
	if !ok {
		return model.Backend{}, false
	}
	return item.backend, true
}

// Update handles keys while the picker is visible.
func (p *BackendPicker) Update(msg tea.Msg) (*BackendPicker, tea.Cmd) {
	if !p.visible {
		return p, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok && p.list.FilterState() != list.Filtering {
		switch key.String() {
		case "esc", "ctrl+b":
			p.Hide()
			return p, func() tea.Msg { return PickerClosedMsg{} }
		case "enter":
			b, ok := p.Selected()
			p.Hide()
			if !ok {
				return p, func() tea.Msg { return PickerClosedMsg{} }
			}
			return p, func() tea.Msg { return BackendSelectedMsg{ID: b.ID} }
		}
	}

	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return p, cmd
}

// View renders the picker box.
func (p *BackendPicker) View() string {
	if !p.visible {
		return ""
	}
	return p.theme.Overlay.Render(p.list.View())
}
