// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for promptcon.
//
// # Key Types
//
//   - Config: main configuration structure (mode, stream pacing, features)
//   - AuthConfig / SSOConfig: credentials for apiKey and sso backends
//   - ValidationError / ValidateErrors: field-level validation failures
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (PROMPTCON_*)
//   - ~/.promptcon/config.toml
//   - ~/.promptcon/config.json
//   - ~/.promptcon/config.yaml
//   - Built-in defaults
//
// A [[backends]] table replaces the built-in catalog. If the configured
// catalog is invalid it is replaced by a single fallback demo backend and
// CatalogError reports why.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	netMin, netMax := cfg.Stream.NetRange()
package config
