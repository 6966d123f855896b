// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"
	"time"
)

// =============================================================================
// PALETTE TESTS
// =============================================================================

func TestPalettes(t *testing.T) {
	want := []string{"neon-green", "aqua", "amber", "violet"}
	got := Palettes()
	if len(got) != len(want) {
		t.Fatalf("expected %d palettes, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("palette %d: expected %q, got %q", i, id, got[i].ID)
		}
		if got[i].Accent == "" || got[i].AccentDim == "" {
			t.Errorf("palette %q has no accent colors", id)
		}
	}
}

func TestNextPalette(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{"neon-green", "aqua"},
		{"aqua", "amber"},
		{"amber", "violet"},
		{"violet", "neon-green"},
		{"unknown", "neon-green"},
	}
	for _, tc := range tests {
		if got := NextPalette(tc.from).ID; got != tc.want {
			t.Errorf("NextPalette(%q) = %q, want %q", tc.from, got, tc.want)
		}
	}
}

// =============================================================================
// THEME TESTS
// =============================================================================

func TestNewTheme_FallsBackToDefault(t *testing.T) {
	theme := NewTheme("no-such-theme")
	if theme.Palette.ID != DefaultPaletteID {
		t.Errorf("expected default palette, got %q", theme.Palette.ID)
	}
	if theme.Header.Render("x") == "" {
		t.Error("header style should be initialized")
	}
}

func TestThemeSetPalette(t *testing.T) {
	theme := NewTheme("aqua")
	if theme.Palette.ID != "aqua" {
		t.Fatalf("expected aqua, got %q", theme.Palette.ID)
	}
	if theme.SetPalette("bogus") {
		t.Error("SetPalette should reject unknown ids")
	}
	if theme.Palette.ID != "aqua" {
		t.Error("rejected SetPalette must not change the palette")
	}
	if got := theme.AgentLabel.GetForeground(); got != theme.Palette.Accent {
		t.Errorf("agent label should use the accent, got %v", got)
	}
}

func TestThemeCycle(t *testing.T) {
	theme := NewTheme("violet")
	if p := theme.Cycle(); p.ID != "neon-green" {
		t.Errorf("expected wrap to neon-green, got %q", p.ID)
	}
	if got := theme.InputPrompt.GetForeground(); got != theme.Palette.Accent {
		t.Error("styles should be rebuilt on cycle")
	}
}

func TestGetLayoutMode(t *testing.T) {
	theme := NewTheme("")
	theme.SetSize(60, 20)
	if theme.GetLayoutMode() != LayoutNarrow {
		t.Error("60 columns should be narrow")
	}
	theme.SetSize(120, 40)
	if theme.GetLayoutMode() != LayoutWide {
		t.Error("120 columns should be wide")
	}
}

func TestCursorVisible(t *testing.T) {
	if !CursorVisible(0) {
		t.Error("cursor should start lit")
	}
	if CursorVisible(CursorBlinkRate + time.Millisecond) {
		t.Error("cursor should be dark during the second interval")
	}
	if !CursorVisible(2 * CursorBlinkRate) {
		t.Error("cursor should be lit again on the third interval")
	}
}
