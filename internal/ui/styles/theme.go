// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
type Theme struct {
	Palette Palette

	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// Frame
	App         lipgloss.Style
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderBadge lipgloss.Style

	// Backend sidebar
	Sidebar           lipgloss.Style
	SidebarTitle      lipgloss.Style
	BackendItem       lipgloss.Style
	BackendItemActive lipgloss.Style
	BackendMeta       lipgloss.Style

	// Transcript
	UserLabel  lipgloss.Style
	AgentLabel lipgloss.Style
	Timestamp  lipgloss.Style
	Body       lipgloss.Style
	ErrorText  lipgloss.Style
	Cursor     lipgloss.Style

	// Input
	InputBox     lipgloss.Style
	InputBoxLock lipgloss.Style
	InputPrompt  lipgloss.Style
	Placeholder  lipgloss.Style

	// Overlays (picker, composer, preview)
	Overlay      lipgloss.Style
	OverlayTitle lipgloss.Style
	Selected     lipgloss.Style

	// Footer
	StatusBar   lipgloss.Style
	StatusKey   lipgloss.Style
	StatusValue lipgloss.Style
	Muted       lipgloss.Style
}

// NewTheme creates a theme for the given palette id. Unknown ids fall back
// to the default palette.
func NewTheme(paletteID string) *Theme {
	t := &Theme{
		ColorProfile: termenv.ColorProfile(),
		IsDark:       termenv.HasDarkBackground(),
	}
	if !t.SetPalette(paletteID) {
		t.SetPalette(DefaultPaletteID)
	}
	return t
}

// SetPalette switches the accent palette and rebuilds every style.
// It reports false and leaves the theme unchanged for an unknown id.
func (t *Theme) SetPalette(id string) bool {
	p, ok := FindPalette(id)
	if !ok {
		return false
	}
	t.Palette = p
	t.initStyles()
	return true
}

// Cycle switches to the next palette and returns it.
func (t *Theme) Cycle() Palette {
	t.SetPalette(NextPalette(t.Palette.ID).ID)
	return t.Palette
}

func (t *Theme) initStyles() {
	accent := t.Palette.Accent
	dim := t.Palette.AccentDim

	t.App = lipgloss.NewStyle()

	t.Header = lipgloss.NewStyle().
		Foreground(accent).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(dim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.HeaderBadge = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(dim).
		Padding(0, 1)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1)
	t.SidebarTitle = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)
	t.BackendItem = lipgloss.NewStyle().Foreground(TextSecondary)
	t.BackendItemActive = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.BackendMeta = lipgloss.NewStyle().Foreground(TextMuted)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(TextPrimary)
	t.AgentLabel = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)
	t.Body = lipgloss.NewStyle().Foreground(TextPrimary)
	t.ErrorText = lipgloss.NewStyle().Foreground(Rose)
	t.Cursor = lipgloss.NewStyle().Foreground(accent).Blink(true)

	t.InputBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1)
	t.InputBoxLock = t.InputBox.BorderForeground(Overlay)
	t.InputPrompt = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.Placeholder = lipgloss.NewStyle().Italic(true).Foreground(TextMuted)

	t.Overlay = lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(accent).
		Padding(0, 1)
	t.OverlayTitle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.Selected = lipgloss.NewStyle().Foreground(TextInverse).Background(accent)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.StatusKey = lipgloss.NewStyle().Foreground(accent)
	t.StatusValue = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 80 columns, sidebar hidden
	LayoutWide                     // sidebar shown
)

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 80 {
		return LayoutNarrow
	}
	return LayoutWide
}
