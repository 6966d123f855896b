// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/promptcon/internal/console"
)

// streamTickInterval is the refresh period while a reply streams (~30fps).
const streamTickInterval = 33 * time.Millisecond

// flashDuration is how long a footer notice stays up.
const flashDuration = 3 * time.Second

// =============================================================================
// MESSAGES
// =============================================================================

// StreamTickMsg triggers a transcript refresh while a reply streams.
type StreamTickMsg struct {
	Time time.Time
}

// SubmitDoneMsg is sent when Console.Submit returns.
type SubmitDoneMsg struct {
	Accepted bool
}

type clockTickMsg struct {
	Time time.Time
}

type flashExpiredMsg struct {
	seq int
}

type copyResultMsg struct {
	err error
}

// =============================================================================
// COMMANDS
// =============================================================================

// streamTickCmd schedules the next StreamTickMsg.
func streamTickCmd() tea.Cmd {
	return tea.Tick(streamTickInterval, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}

func clockTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockTickMsg{Time: t}
	})
}

func flashExpireCmd(seq int) tea.Cmd {
	return tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashExpiredMsg{seq: seq}
	})
}

// submitCmd runs the blocking submit on the command goroutine.
func submitCmd(ctx context.Context, con *console.Console, text string) tea.Cmd {
	return func() tea.Msg {
		return SubmitDoneMsg{Accepted: con.Submit(ctx, text)}
	}
}

func copyCmd(clip func(string) error, text string) tea.Cmd {
	return func() tea.Msg {
		return copyResultMsg{err: clip(text)}
	}
}
