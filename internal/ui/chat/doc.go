// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the full-screen Bubble Tea console.
//
// The model is a thin view over a console.Console. Submitting runs
// Console.Submit on a command goroutine; while a reply streams the model
// polls Console.Snapshot on a 33ms tick and re-renders the transcript, so
// tokens never travel through the Bubble Tea message queue one by one.
//
// Key bindings:
//
//	enter        send the prompt
//	up/down      walk the input history
//	esc, ctrl+c  stop the streaming reply (ctrl+c quits when idle)
//	ctrl+b       choose a backend
//	ctrl+t       cycle the accent theme
//	ctrl+e       open the prompt composer
//	ctrl+p       toggle the markdown preview of the input
//	ctrl+y       copy the last reply
//	ctrl+q       quit
package chat
