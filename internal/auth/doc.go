// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth supplies credentials for live backend requests.
//
// Backends declare one of three auth kinds:
//
//   - none: no headers
//   - apiKey: <header>: <prefix> <key>, from the KeyStore (Authorization and
//     Bearer by default)
//   - sso: Authorization: Bearer <token>, from an OAuth2 client-credentials
//     token source against the configured tenant
//
// Provider implements stream.HeaderProvider.
package auth
