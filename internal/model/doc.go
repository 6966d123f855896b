// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for console messages and backends.
//
// # Key Types
//
//   - Message: transcript entry with role, streamed content and a markdown flag
//   - Backend: a selectable agent endpoint loaded from configuration
//   - AuthKind: credential type a backend requires (none, apiKey, sso)
//
// # Usage
//
//	reply := model.NewAssistantMessage(backend.ID)
//	reply.AppendToken("Hel")
//	reply.AppendToken("lo")
//	reply.FinalizeStream(true)
package model
