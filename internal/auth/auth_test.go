// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/promptcon/internal/config"
	"github.com/jeranaias/promptcon/internal/model"
)

// =============================================================================
// KEY STORE
// =============================================================================

func TestKeyStore_SetClearDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "api_key")
	ks, err := NewKeyStore(path, " from-config ", nil)
	require.NoError(t, err)

	assert.Equal(t, "from-config", ks.Key())
	assert.False(t, ks.HasStoredKey())

	require.NoError(t, ks.Set("  sk-live-123  "))
	assert.Equal(t, "sk-live-123", ks.Key())
	assert.True(t, ks.HasStoredKey())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// A fresh store sees the saved key.
	again, err := NewKeyStore(path, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "sk-live-123", again.Key())

	require.NoError(t, ks.Clear())
	assert.Equal(t, "from-config", ks.Key())
	require.NoError(t, ks.Clear(), "clearing twice is fine")

	assert.ErrorIs(t, ks.Set("   "), ErrAPIKeyRequired)
}

func TestKeyStore_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_key")
	ks, err := NewKeyStore(path, "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ks.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Another process writes the key; retry until the watcher is registered.
	require.Eventually(t, func() bool {
		os.WriteFile(path, []byte("external-key\n"), 0600)
		return ks.Key() == "external-key"
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool { return ks.Key() == "" }, 5*time.Second, 20*time.Millisecond)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "(none)", Mask(""))
	assert.Equal(t, "***", Mask("abc"))
	assert.Equal(t, "*****6789", Mask("123456789"))
}

// =============================================================================
// PROVIDER
// =============================================================================

func TestProvider_HeadersFor(t *testing.T) {
	dir := t.TempDir()
	withKey, err := NewKeyStore(filepath.Join(dir, "k1"), "sk-1", nil)
	require.NoError(t, err)
	noKey, err := NewKeyStore(filepath.Join(dir, "k2"), "", nil)
	require.NoError(t, err)

	open := model.Backend{Name: "alpha-agent", Auth: model.AuthNone}
	keyed := model.Backend{Name: "charlie-code", Auth: model.AuthAPIKey}
	sso := model.Backend{Name: "bravo-rag", Auth: model.AuthSSO}

	tests := []struct {
		name     string
		provider *Provider
		backend  model.Backend
		want     map[string]string
		wantErr  error
	}{
		{"none", NewProvider(nil, "", "Bearer", nil), open, map[string]string{}, nil},
		{"empty kind", NewProvider(nil, "", "Bearer", nil), model.Backend{}, map[string]string{}, nil},
		{"api key bearer", NewProvider(withKey, "", "Bearer", nil), keyed, map[string]string{"Authorization": "Bearer sk-1"}, nil},
		{"api key custom header", NewProvider(withKey, "X-API-Key", "", nil), keyed, map[string]string{"X-API-Key": "sk-1"}, nil},
		{"api key missing", NewProvider(noKey, "", "Bearer", nil), keyed, nil, ErrAPIKeyRequired},
		{"api key no store", NewProvider(nil, "", "Bearer", nil), keyed, nil, ErrAPIKeyRequired},
		{"sso not configured", NewProvider(nil, "", "Bearer", nil), sso, nil, ErrNotAuthenticated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.provider.HeadersFor(context.Background(), tc.backend)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestProvider_MissingKeyMessage(t *testing.T) {
	_, err := NewProvider(nil, "", "Bearer", nil).HeadersFor(context.Background(),
		model.Backend{Name: "charlie-code", Auth: model.AuthAPIKey})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key required for charlie-code")
}

// =============================================================================
// SSO
// =============================================================================

func tokenServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "app-id", r.PostForm.Get("client_id"))
		if status != http.StatusOK {
			http.Error(w, `{"error":"invalid_client"}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok-abc","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestSSO_BearerToken(t *testing.T) {
	srv, hits := tokenServer(t, http.StatusOK)
	ts, err := NewSSOTokenSource(context.Background(), config.SSOConfig{
		ClientID:     "app-id",
		ClientSecret: "secret",
		Scopes:       []string{"user.read"},
		TokenURL:     srv.URL,
	})
	require.NoError(t, err)

	p := NewProvider(nil, "", "Bearer", ts)
	backend := model.Backend{Name: "bravo-rag", Auth: model.AuthSSO}

	for i := 0; i < 3; i++ {
		got, err := p.HeadersFor(context.Background(), backend)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"Authorization": "Bearer tok-abc"}, got)
	}
	assert.Equal(t, int32(1), hits.Load(), "token is cached until it expires")

	tok, err := p.CheckSSO()
	require.NoError(t, err)
	assert.True(t, tok.Expiry.After(time.Now()))
}

func TestSSO_TokenFailure(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusUnauthorized)
	ts, err := NewSSOTokenSource(context.Background(), config.SSOConfig{
		ClientID:     "app-id",
		ClientSecret: "wrong",
		TokenURL:     srv.URL,
	})
	require.NoError(t, err)

	_, err = NewProvider(nil, "", "Bearer", ts).HeadersFor(context.Background(),
		model.Backend{Name: "bravo-rag", Auth: model.AuthSSO})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestSSO_NotConfigured(t *testing.T) {
	_, err := NewSSOTokenSource(context.Background(), config.SSOConfig{ClientID: "only-id"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.False(t, SSOConfigured(config.SSOConfig{}))
}
