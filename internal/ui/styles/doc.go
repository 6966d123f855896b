// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the console TUI.
//
// Every screen element is drawn from a Theme. A Theme combines the fixed
// surface and text colors with one accent Palette (neon-green, aqua, amber
// or violet), which the user can cycle at runtime.
package styles
