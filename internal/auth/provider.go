// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth supplies credentials for live backend requests.
package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/jeranaias/promptcon/internal/model"
)

var (
	// ErrAPIKeyRequired is returned for apiKey backends when no key is set.
	ErrAPIKeyRequired = errors.New("API key required")

	// ErrNotAuthenticated is returned for sso backends when no token can be
	// obtained.
	ErrNotAuthenticated = errors.New("not signed in")
)

// Provider builds the auth headers for a backend from its declared AuthKind.
type Provider struct {
	keys   *KeyStore
	header string
	prefix string
	tokens oauth2.TokenSource
}

// NewProvider creates a provider. keys may be nil when no apiKey backend is
// used; tokens may be nil when sso is not configured.
func NewProvider(keys *KeyStore, headerName, prefix string, tokens oauth2.TokenSource) *Provider {
	if headerName == "" {
		headerName = "Authorization"
	}
	return &Provider{
		keys:   keys,
		header: headerName,
		prefix: prefix,
		tokens: tokens,
	}
}

// HeadersFor returns the headers to attach to a request for backend.
func (p *Provider) HeadersFor(ctx context.Context, backend model.Backend) (map[string]string, error) {
	switch backend.AuthKind() {
	case model.AuthAPIKey:
		key := ""
		if p.keys != nil {
			key = p.keys.Key()
		}
		if key == "" {
			return nil, fmt.Errorf("%w for %s: run 'promptcon auth set-key' or set PROMPTCON_API_KEY", ErrAPIKeyRequired, backend.Name)
		}
		return map[string]string{p.header: p.headerValue(key)}, nil

	case model.AuthSSO:
		if p.tokens == nil {
			return nil, fmt.Errorf("%w: sso is not configured for %s", ErrNotAuthenticated, backend.Name)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := p.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: token acquisition failed: %v", ErrNotAuthenticated, err)
		}
		return map[string]string{"Authorization": "Bearer " + tok.AccessToken}, nil

	default:
		return map[string]string{}, nil
	}
}

// headerValue joins the configured prefix and the key.
func (p *Provider) headerValue(key string) string {
	if p.prefix == "" {
		return key
	}
	return p.prefix + " " + key
}

// CheckSSO performs a token round-trip and returns the token expiry.
func (p *Provider) CheckSSO() (*oauth2.Token, error) {
	if p.tokens == nil {
		return nil, fmt.Errorf("%w: sso is not configured", ErrNotAuthenticated)
	}
	tok, err := p.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	return tok, nil
}
