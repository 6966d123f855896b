// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jeranaias/promptcon/internal/util"
)

// =============================================================================
// KEY STORE
// =============================================================================

// KeyStore holds the API key used for apiKey backends. A key saved with Set
// lives in a 0600 file and takes precedence over the configured default.
type KeyStore struct {
	path       string
	defaultKey string
	logger     *zap.Logger

	mu     sync.RWMutex
	stored string
}

// NewKeyStore opens the key file at path. A missing file is not an error.
func NewKeyStore(path, defaultKey string, logger *zap.Logger) (*KeyStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ks := &KeyStore{
		path:       path,
		defaultKey: strings.TrimSpace(defaultKey),
		logger:     logger,
	}
	if err := ks.Reload(); err != nil {
		return nil, err
	}
	return ks, nil
}

// Path returns the key file location.
func (ks *KeyStore) Path() string {
	return ks.path
}

// Key returns the effective key: the stored one, else the default.
func (ks *KeyStore) Key() string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if ks.stored != "" {
		return ks.stored
	}
	return ks.defaultKey
}

// HasStoredKey reports whether a key was saved to the key file.
func (ks *KeyStore) HasStoredKey() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.stored != ""
}

// Set saves key to the key file.
// SECURITY: The file is written atomically with owner-only permissions.
func (ks *KeyStore) Set(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: key is empty", ErrAPIKeyRequired)
	}
	if err := util.AtomicWriteFileWithDir(ks.path, []byte(key+"\n"), 0600, 0700); err != nil {
		return fmt.Errorf("failed to save API key: %w", err)
	}
	ks.mu.Lock()
	ks.stored = key
	ks.mu.Unlock()
	return nil
}

// Clear removes the stored key. The configured default, if any, remains.
func (ks *KeyStore) Clear() error {
	if err := os.Remove(ks.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove API key: %w", err)
	}
	ks.mu.Lock()
	ks.stored = ""
	ks.mu.Unlock()
	return nil
}

// Reload re-reads the key file.
func (ks *KeyStore) Reload() error {
	data, err := os.ReadFile(ks.path)
	if errors.Is(err, os.ErrNotExist) {
		ks.mu.Lock()
		ks.stored = ""
		ks.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read API key file: %w", err)
	}
	ks.mu.Lock()
	ks.stored = strings.TrimSpace(string(data))
	ks.mu.Unlock()
	return nil
}

// Watch reloads the key whenever the key file changes on disk, so a key set
// from another terminal is picked up by a running console. It blocks until
// ctx is done.
func (ks *KeyStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: the file may not exist yet and atomic writes
	// replace it by rename.
	dir := filepath.Dir(ks.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	name := filepath.Clean(ks.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := ks.Reload(); err != nil {
				ks.logger.Warn("api key reload failed", zap.Error(err))
				continue
			}
			ks.logger.Info("api key reloaded", zap.Bool("stored", ks.HasStoredKey()))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ks.logger.Warn("key file watcher error", zap.Error(err))
		}
	}
}

// Mask returns a display form of key that hides all but the last four
// characters.
func Mask(key string) string {
	if key == "" {
		return "(none)"
	}
	r := []rune(key)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
