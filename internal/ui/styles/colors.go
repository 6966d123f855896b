// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT PALETTES
// =============================================================================

// Palette is one selectable accent theme.
type Palette struct {
	ID        string
	Name      string
	Accent    lipgloss.Color
	AccentDim lipgloss.Color
	Panel     lipgloss.Color
}

// DefaultPaletteID is used when no theme has been chosen.
const DefaultPaletteID = "neon-green"

var palettes = []Palette{
	{ID: "neon-green", Name: "Neon Green", Accent: "#00FF66", AccentDim: "#00CC55", Panel: "#001400"},
	{ID: "aqua", Name: "Aqua", Accent: "#00FFD0", AccentDim: "#00C9A8", Panel: "#001212"},
	{ID: "amber", Name: "Amber", Accent: "#E6FF00", AccentDim: "#B4CC00", Panel: "#121200"},
	{ID: "violet", Name: "Violet", Accent: "#C07CFF", AccentDim: "#8A5AC7", Panel: "#120012"},
}

// Palettes returns the available palettes in display order.
func Palettes() []Palette {
	return append([]Palette(nil), palettes...)
}

// FindPalette looks a palette up by id.
func FindPalette(id string) (Palette, bool) {
	for _, p := range palettes {
		if p.ID == id {
			return p, true
		}
	}
	return Palette{}, false
}

// NextPalette returns the palette after id, wrapping around. Unknown ids
// yield the first palette.
func NextPalette(id string) Palette {
	for i, p := range palettes {
		if p.ID == id {
			return palettes[(i+1)%len(palettes)]
		}
	}
	return palettes[0]
}

// =============================================================================
// FIXED COLORS
// =============================================================================

// Surface colors
var (
	Surface    = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#0A0A0A"}
	SurfaceDim = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#111111"}
	Overlay    = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#2A2A2A"}
)

// Text colors
var (
	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#E5E5E5"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A3A3A3"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6B6B6B"}
	TextInverse   = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#0A0A0A"}
)

// Semantic colors
var (
	Rose  = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}
	Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
)

// StatusIndicators are ASCII shape cues shown next to colored states so
// they stay readable without color.
var StatusIndicators = struct {
	Streaming string
	Idle      string
	Error     string
	Locked    string
}{
	Streaming: "[*]",
	Idle:      "[ ]",
	Error:     "[X]",
	Locked:    "[#]",
}
