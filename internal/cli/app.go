// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/jeranaias/promptcon/internal/auth"
	"github.com/jeranaias/promptcon/internal/config"
	"github.com/jeranaias/promptcon/internal/logging"
	"github.com/jeranaias/promptcon/internal/model"
	"github.com/jeranaias/promptcon/internal/storage"
	"github.com/jeranaias/promptcon/internal/stream"
)

// globalFlags holds the persistent root flags.
type globalFlags struct {
	configPath string
	mode       string
	backend    string
	verbose    bool
}

// app is the state shared by every command: the loaded config, the logger
// and the command's output streams.
type app struct {
	flags globalFlags

	cfg      *config.Config
	logger   *zap.Logger
	closeLog func() error

	out    io.Writer
	errOut io.Writer
}

func newApp() *app {
	return &app{
		logger:   zap.NewNop(),
		closeLog: func() error { return nil },
	}
}

// load reads the configuration, applies flag overrides and opens the log.
func (a *app) load() error {
	var (
		cfg *config.Config
		err error
	)
	if a.flags.configPath != "" {
		cfg, err = config.LoadFromPath(a.flags.configPath)
		if err != nil {
			return err
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return err
		}
		if err != nil {
			a.warn("%v (using defaults)", err)
		}
	}

	if mode := strings.ToLower(strings.TrimSpace(a.flags.mode)); mode != "" {
		if mode != config.ModeDemo && mode != config.ModeLive {
			return fmt.Errorf("invalid --mode %q: must be %q or %q", a.flags.mode, config.ModeDemo, config.ModeLive)
		}
		cfg.Mode = mode
	}
	if id := strings.TrimSpace(a.flags.backend); id != "" {
		if _, ok := model.FindBackend(cfg.Backends, id); !ok {
			return fmt.Errorf("unknown backend %q (see 'promptcon backends')", id)
		}
		cfg.DefaultBackend = id
	}
	a.cfg = cfg

	logger, closeLog, err := logging.New(cfg.Log, a.flags.verbose)
	if err != nil {
		a.warn("logging disabled: %v", err)
	} else {
		a.logger, a.closeLog = logger, closeLog
	}

	if cerr := cfg.CatalogError(); cerr != nil {
		a.logger.Warn("backend catalog rejected, using fallback backend", zap.Error(cerr))
		a.warn("backend catalog rejected (%v); using fallback backend", cerr)
	}
	a.logger.Debug("config loaded",
		zap.String("mode", cfg.Mode),
		zap.String("backend", cfg.DefaultBackend),
		zap.Int("backends", len(cfg.Backends)))
	return nil
}

// loadDefaults is used by commands that must work with a broken config file.
func (a *app) loadDefaults() {
	a.cfg = config.Default()
	a.cfg.ApplyEnvOverrides()
	a.cfg.SetDefaults()
}

func (a *app) close() error {
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("log sync failed", zap.Error(err))
	}
	return a.closeLog()
}

func (a *app) warn(format string, args ...any) {
	fmt.Fprintln(a.errOut, warningStyle.Render("Warning: "+fmt.Sprintf(format, args...)))
}

// keyFilePath resolves where the API key is stored.
func (a *app) keyFilePath() (string, error) {
	if a.cfg.Auth.KeyFile != "" {
		return a.cfg.Auth.KeyFile, nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "api_key"), nil
}

func (a *app) keyStore() (*auth.KeyStore, error) {
	path, err := a.keyFilePath()
	if err != nil {
		return nil, err
	}
	return auth.NewKeyStore(path, a.cfg.Auth.APIKey, a.logger.Named("auth"))
}

// provider builds the auth header provider. ctx bounds SSO token requests.
func (a *app) provider(ctx context.Context, keys *auth.KeyStore) *auth.Provider {
	var tokens oauth2.TokenSource
	if auth.SSOConfigured(a.cfg.SSO) {
		ts, err := auth.NewSSOTokenSource(ctx, a.cfg.SSO)
		if err != nil {
			a.logger.Warn("sso unavailable", zap.Error(err))
		} else {
			tokens = ts
		}
	}
	return auth.NewProvider(keys, a.cfg.Auth.HeaderName, a.cfg.Auth.Prefix, tokens)
}

// controller builds the stream controller for the loaded config.
func (a *app) controller(ctx context.Context, keys *auth.KeyStore) *stream.Controller {
	netMin, netMax := a.cfg.Stream.NetRange()
	charMin, charMax := a.cfg.Stream.CharRange()
	synth := stream.NewSynthesizer(
		stream.Range{Min: netMin, Max: netMax},
		stream.Range{Min: charMin, Max: charMax},
	)

	opts := []stream.Option{
		stream.WithSynthesizer(synth),
		stream.WithLive(a.cfg.Mode == config.ModeLive),
		stream.WithAuth(a.provider(ctx, keys)),
		stream.WithLogger(a.logger.Named("stream")),
	}
	if rpm := a.cfg.Live.RequestsPerMinute; rpm > 0 {
		burst := max(a.cfg.Live.Burst, 1)
		opts = append(opts, stream.WithLimiter(rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst)))
	}
	return stream.NewController(opts...)
}

// openStore opens the history database. Callers treat failure as "no
// persistence" rather than fatal.
func (a *app) openStore() (*storage.Store, error) {
	path := a.cfg.Storage.Path
	if path == "" {
		p, err := storage.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return storage.Open(path, a.cfg.Storage.HistoryLimit)
}
