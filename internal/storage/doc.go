// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists console input history and UI settings.
//
// Conversations themselves are never stored; only submitted prompts (so
// history navigation survives a restart) and small preferences such as the
// theme id. Data lives in a single SQLite file, ~/.promptcon/history.db.
//
// # Usage
//
//	store, err := storage.Open(path, cfg.Storage.HistoryLimit)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	prompts, _ := store.Recent(ctx, 0)
package storage
