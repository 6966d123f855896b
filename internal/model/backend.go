// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// AuthKind names the credential a backend expects on live requests.
type AuthKind string

const (
	AuthNone   AuthKind = "none"
	AuthAPIKey AuthKind = "apiKey"
	AuthSSO    AuthKind = "sso"
)

// Valid reports whether k is one of the known auth kinds.
// The empty kind is treated as AuthNone.
func (k AuthKind) Valid() bool {
	switch k {
	case "", AuthNone, AuthAPIKey, AuthSSO:
		return true
	}
	return false
}

// Label is the short form shown in backend lists.
func (k AuthKind) Label() string {
	switch k {
	case AuthAPIKey:
		return "api key"
	case AuthSSO:
		return "sso"
	default:
		return "open"
	}
}

// Backend describes one selectable agent endpoint.
// Backends are loaded from configuration and never mutated afterwards.
type Backend struct {
	ID          string   `toml:"id" json:"id" yaml:"id"`
	Name        string   `toml:"name" json:"name" yaml:"name"`
	URL         string   `toml:"url" json:"url" yaml:"url"`
	Accent      string   `toml:"accent" json:"accent" yaml:"accent"`
	Description string   `toml:"desc" json:"desc" yaml:"desc"`
	Badges      []string `toml:"badges" json:"badges" yaml:"badges"`
	LatencyMs   int      `toml:"latency" json:"latency" yaml:"latency"`
	Auth        AuthKind `toml:"requires_auth" json:"requiresAuth" yaml:"requires_auth"`
	Demo        bool     `toml:"demo" json:"demo" yaml:"demo"`
}

// ChatURL is the endpoint live prompts are posted to.
func (b Backend) ChatURL() string {
	return strings.TrimRight(b.URL, "/") + "/chat"
}

// AuthKind returns the backend's auth kind with the empty value normalized.
func (b Backend) AuthKind() AuthKind {
	if b.Auth == "" {
		return AuthNone
	}
	return b.Auth
}

// Capabilities joins the badges for display.
func (b Backend) Capabilities() string {
	if len(b.Badges) == 0 {
		return "-"
	}
	return strings.Join(b.Badges, ", ")
}

// LatencyString formats the advertised latency, e.g. "~120ms".
func (b Backend) LatencyString() string {
	if b.LatencyMs <= 0 {
		return "-"
	}
	return fmt.Sprintf("~%dms", b.LatencyMs)
}

// FindBackend returns the backend with the given id.
func FindBackend(backends []Backend, id string) (Backend, bool) {
	for _, b := range backends {
		if b.ID == id {
			return b, true
		}
	}
	return Backend{}, false
}
