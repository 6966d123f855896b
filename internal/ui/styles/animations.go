// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// StreamSpinner is shown in the footer while a reply streams.
var StreamSpinner = spinner.Spinner{
	Frames: []string{"|", "/", "-", "\\"},
	FPS:    time.Second / 10,
}

// StreamCursor trails the text of a reply that is still streaming.
const StreamCursor = "▌"

// CursorBlinkRate is the rate at which the stream cursor blinks.
var CursorBlinkRate = 530 * time.Millisecond

// CursorVisible reports whether the blinking cursor is lit at elapsed.
func CursorVisible(elapsed time.Duration) bool {
	if elapsed < 0 {
		return true
	}
	return (elapsed/CursorBlinkRate)%2 == 0
}
