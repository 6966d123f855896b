// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across promptcon.
//
// String Utilities:
//   - TruncateRunes, TruncateWidth: UTF-8 safe truncation with ellipsis
//   - StringWidth, PadRight: display-width aware layout for tables
//
// File Operations:
//   - AtomicWriteFileWithDir: crash-safe file writing with fsync
package util
