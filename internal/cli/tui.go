// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/promptcon/internal/console"
	"github.com/jeranaias/promptcon/internal/model"
	"github.com/jeranaias/promptcon/internal/storage"
	"github.com/jeranaias/promptcon/internal/ui/chat"
	"github.com/jeranaias/promptcon/internal/ui/styles"
)

// consoleSetup is the persisted state the console starts from.
type consoleSetup struct {
	theme   string
	backend model.Backend
	history []string
}

// restore reads the saved theme, backend and input history. A backend
// given with --backend wins over the saved one.
func (a *app) restore(ctx context.Context, store *storage.Store) consoleSetup {
	setup := consoleSetup{
		theme:   a.cfg.DefaultTheme,
		backend: a.cfg.ActiveBackend(),
	}
	if store == nil {
		return setup
	}

	if v, ok, err := store.Setting(ctx, storage.SettingTheme); err != nil {
		a.logger.Warn("failed to read saved theme", zap.Error(err))
	} else if ok {
		setup.theme = v
	}

	if a.flags.backend == "" {
		if v, ok, err := store.Setting(ctx, storage.SettingBackend); err != nil {
			a.logger.Warn("failed to read saved backend", zap.Error(err))
		} else if ok {
			if b, found := model.FindBackend(a.cfg.Backends, v); found {
				setup.backend = b
			}
		}
	}

	history, err := store.Recent(ctx, a.cfg.Storage.HistoryLimit)
	if err != nil {
		a.logger.Warn("failed to read input history", zap.Error(err))
	}
	setup.history = history
	return setup
}

// runConsole opens the full-screen console.
func runConsole(ctx context.Context, a *app) error {
	if !isTerminalWriter(a.out) {
		return errors.New("the console needs a terminal; use 'promptcon ask' or 'promptcon chat' for scripted use")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := a.openStore()
	if err != nil {
		a.logger.Warn("input history unavailable", zap.Error(err))
		a.warn("input history unavailable: %v", err)
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	keys, err := a.keyStore()
	if err != nil {
		return err
	}
	go func() {
		if err := keys.Watch(ctx); err != nil {
			a.logger.Debug("api key watcher stopped", zap.Error(err))
		}
	}()

	ctl := a.controller(ctx, keys)
	defer ctl.Cancel()

	setup := a.restore(ctx, store)

	conOpts := []console.Option{
		console.WithHistory(setup.history),
		console.WithLogger(a.logger.Named("console")),
	}
	if store != nil {
		conOpts = append(conOpts, console.WithHistoryStore(store))
	}
	con := console.New(ctl, a.cfg.Backends, setup.backend, conOpts...)

	chatOpts := []chat.Option{
		chat.WithContext(ctx),
		chat.WithFeatures(a.cfg.Features),
		chat.WithMode(a.cfg.Mode),
		chat.WithLogger(a.logger.Named("ui")),
	}
	if store != nil {
		chatOpts = append(chatOpts, chat.WithSettings(store))
	}
	m := chat.New(con, styles.NewTheme(setup.theme), chatOpts...)

	a.logger.Info("console started",
		zap.String("mode", a.cfg.Mode),
		zap.String("backend", setup.backend.ID),
		zap.String("theme", setup.theme),
		zap.Int("history", len(setup.history)))

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return err
	}
	a.logger.Info("console closed")
	return nil
}
