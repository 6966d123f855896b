// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	r := NewRenderer("dark")

	out := r.Render("# Title\n\nsome **bold** text", 60)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")
	assert.NotContains(t, out, "**")
	assert.False(t, strings.HasPrefix(out, "\n"))
}

func TestRender_Blank(t *testing.T) {
	r := NewRenderer("dark")
	assert.Equal(t, "", r.Render("", 40))
	assert.Equal(t, "  \n", r.Render("  \n", 40))
}

func TestRender_CachesPerWidth(t *testing.T) {
	r := NewRenderer("dark")
	r.Render("x", 40)
	r.Render("y", 40)
	r.Render("z", 80)
	assert.Len(t, r.cache, 2)

	// Narrow widths are clamped.
	r.Render("w", 5)
	_, ok := r.cache[20]
	assert.True(t, ok)
}
