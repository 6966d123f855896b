// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the reusable pieces of the console TUI: the
// status footer, the backend picker and the prompt composer.
//
// Components are plain structs with Update and View methods in the Bubble
// Tea style. They never talk to the console directly; selections are
// reported back to the owning model as tea messages.
package components
