// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jeranaias/promptcon/internal/config"
)

// SSOConfigured reports whether enough identity provider settings exist to
// request tokens.
func SSOConfigured(cfg config.SSOConfig) bool {
	return cfg.ClientID != "" && cfg.ClientSecret != ""
}

// NewSSOTokenSource returns a cached client-credentials token source for the
// configured tenant. Tokens are fetched on first use and refreshed when they
// expire. ctx bounds the token HTTP requests for the life of the source.
func NewSSOTokenSource(ctx context.Context, cfg config.SSOConfig) (oauth2.TokenSource, error) {
	if !SSOConfigured(cfg) {
		return nil, fmt.Errorf("%w: sso client id and secret are not configured", ErrNotAuthenticated)
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.Authority(),
		Scopes:       cfg.Scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return oauth2.ReuseTokenSource(nil, cc.TokenSource(ctx)), nil
}
