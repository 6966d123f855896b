// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown renders reply text to styled terminal output with glamour.
package markdown

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Renderer caches one glamour renderer per wrap width. It is safe for
// concurrent use.
type Renderer struct {
	style string

	mu    sync.Mutex
	cache map[int]*glamour.TermRenderer
}

// NewRenderer creates a renderer. An empty style selects glamour's
// automatic dark/light detection.
func NewRenderer(style string) *Renderer {
	return &Renderer{style: style, cache: make(map[int]*glamour.TermRenderer)}
}

func (r *Renderer) get(width int) *glamour.TermRenderer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tr, ok := r.cache[width]; ok {
		return tr
	}
	styleOpt := glamour.WithAutoStyle()
	if r.style != "" {
		styleOpt = glamour.WithStandardStyle(r.style)
	}
	tr, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		tr = nil
	}
	r.cache[width] = tr
	return tr
}

// Render converts markdown to styled output wrapped at width. The raw text
// is returned if rendering fails.
func (r *Renderer) Render(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return md
	}
	if width < 20 {
		width = 20
	}
	tr := r.get(width)
	if tr == nil {
		return md
	}
	out, err := tr.Render(md)
	if err != nil {
		return md
	}
	// glamour pads with blank lines; trim for inline display.
	return strings.Trim(out, "\n")
}
