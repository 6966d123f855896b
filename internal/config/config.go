// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for promptcon.
//
// Supports TOML, JSON and YAML configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.promptcon/config.toml
//   - ~/.promptcon/config.json
//   - ~/.promptcon/config.yaml
//   - Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/promptcon/internal/model"
	"github.com/jeranaias/promptcon/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Modes the console can run in.
const (
	ModeDemo = "demo"
	ModeLive = "live"
)

// ErrNoBackends is returned when a backend catalog is empty.
var ErrNoBackends = errors.New("backend catalog is empty")

// Config represents the complete promptcon configuration.
type Config struct {
	// Mode is "demo" (canned replies) or "live" (HTTP backends).
	Mode           string `toml:"mode" json:"mode" yaml:"mode"`
	DefaultBackend string `toml:"default_backend" json:"default_backend" yaml:"default_backend"`
	DefaultTheme   string `toml:"default_theme" json:"default_theme" yaml:"default_theme"`

	Stream   StreamConfig   `toml:"stream" json:"stream" yaml:"stream"`
	Features FeaturesConfig `toml:"features" json:"features" yaml:"features"`
	Auth     AuthConfig     `toml:"auth" json:"auth" yaml:"auth"`
	SSO      SSOConfig      `toml:"sso" json:"sso" yaml:"sso"`
	Live     LiveConfig     `toml:"live" json:"live" yaml:"live"`
	Log      LogConfig      `toml:"log" json:"log" yaml:"log"`
	Storage  StorageConfig  `toml:"storage" json:"storage" yaml:"storage"`

	Backends []model.Backend `toml:"backends" json:"backends" yaml:"backends"`

	// catalogErr records why a configured catalog was replaced by the
	// fallback backend.
	catalogErr error
}

// StreamConfig holds the demo pacing ranges in milliseconds.
type StreamConfig struct {
	NetMinMs  int `toml:"net_min_ms" json:"net_min_ms" yaml:"net_min_ms"`
	NetMaxMs  int `toml:"net_max_ms" json:"net_max_ms" yaml:"net_max_ms"`
	CharMinMs int `toml:"char_min_ms" json:"char_min_ms" yaml:"char_min_ms"`
	CharMaxMs int `toml:"char_max_ms" json:"char_max_ms" yaml:"char_max_ms"`
}

// NetRange returns the per-chunk network delay range.
func (s StreamConfig) NetRange() (time.Duration, time.Duration) {
	return ms(s.NetMinMs), ms(s.NetMaxMs)
}

// CharRange returns the per-character delay range.
func (s StreamConfig) CharRange() (time.Duration, time.Duration) {
	return ms(s.CharMinMs), ms(s.CharMaxMs)
}

// FeaturesConfig toggles optional console panels.
type FeaturesConfig struct {
	PromptComposer  bool `toml:"prompt_composer" json:"prompt_composer" yaml:"prompt_composer"`
	MarkdownPreview bool `toml:"markdown_preview" json:"markdown_preview" yaml:"markdown_preview"`
	// CompactLog drops timestamps and blank lines between transcript entries.
	CompactLog bool `toml:"compact_log" json:"compact_log" yaml:"compact_log"`
}

// AuthConfig controls how API keys are attached to live requests.
type AuthConfig struct {
	// APIKey is a default key used when no key has been stored.
	APIKey     string `toml:"api_key" json:"api_key" yaml:"api_key"`
	HeaderName string `toml:"header_name" json:"header_name" yaml:"header_name"`
	Prefix     string `toml:"prefix" json:"prefix" yaml:"prefix"`
	// KeyFile is where `auth set-key` stores the key. Empty means
	// ~/.promptcon/api_key.
	KeyFile string `toml:"key_file" json:"key_file" yaml:"key_file"`
}

// SSOConfig describes the identity provider used for sso backends.
type SSOConfig struct {
	TenantID     string   `toml:"tenant_id" json:"tenant_id" yaml:"tenant_id"`
	ClientID     string   `toml:"client_id" json:"client_id" yaml:"client_id"`
	ClientSecret string   `toml:"client_secret" json:"client_secret" yaml:"client_secret"`
	Scopes       []string `toml:"scopes" json:"scopes" yaml:"scopes"`
	// TokenURL overrides the authority derived from TenantID.
	TokenURL string `toml:"token_url" json:"token_url" yaml:"token_url"`
}

// Authority returns the token endpoint for the configured tenant.
func (s SSOConfig) Authority() string {
	if s.TokenURL != "" {
		return s.TokenURL
	}
	tenant := s.TenantID
	if tenant == "" {
		tenant = "common"
	}
	return "https://login.microsoftonline.com/" + tenant + "/oauth2/v2.0/token"
}

// LiveConfig holds live-mode transport settings.
type LiveConfig struct {
	// RequestsPerMinute caps outgoing prompts. Zero disables the limiter.
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int `toml:"burst" json:"burst" yaml:"burst"`
}

// LogConfig configures the rotating log file.
type LogConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	File       string `toml:"file" json:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
}

// StorageConfig configures the input history database.
type StorageConfig struct {
	Path         string `toml:"path" json:"path" yaml:"path"`
	HistoryLimit int    `toml:"history_limit" json:"history_limit" yaml:"history_limit"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// DefaultBackends returns the built-in backend catalog.
func DefaultBackends() []model.Backend {
	return []model.Backend{
		{ID: "alpha", Name: "alpha-agent", URL: "https://api.alpha/v1", Accent: "#00ff66",
			Description: "Generalist agent with balanced reasoning.",
			Badges:      []string{"tools", "chat", "images"}, LatencyMs: 120, Demo: true, Auth: model.AuthNone},
		{ID: "bravo", Name: "bravo-rag", URL: "https://api.bravo/v1", Accent: "#00ffd0",
			Description: "Retrieval-augmented with enterprise KB.",
			Badges:      []string{"RAG", "citations", "fast"}, LatencyMs: 95, Auth: model.AuthSSO},
		{ID: "charlie", Name: "charlie-code", URL: "https://api.charlie/v1", Accent: "#e6ff00",
			Description: "Coding-focused with unit test hints.",
			Badges:      []string{"code", "tests", "perf"}, LatencyMs: 140, Demo: true, Auth: model.AuthAPIKey},
		{ID: "delta", Name: "delta-vision", URL: "https://api.delta/v1", Accent: "#72ff9e",
			Description: "Vision model for screenshots & docs.",
			Badges:      []string{"vision", "ocr", "layout"}, LatencyMs: 160, Auth: model.AuthSSO},
	}
}

// FallbackBackend is the single demo backend used when the configured
// catalog fails validation.
func FallbackBackend() model.Backend {
	return model.Backend{
		ID:          "fallback",
		Name:        "fallback-demo",
		URL:         "https://example.invalid",
		Accent:      "#00ff66",
		Description: "Fallback demo backend",
		Badges:      []string{"chat"},
		Demo:        true,
		Auth:        model.AuthNone,
	}
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Mode:           ModeDemo,
		DefaultBackend: "alpha",
		DefaultTheme:   "neon-green",

		Stream: StreamConfig{
			NetMinMs:  70,
			NetMaxMs:  180,
			CharMinMs: 6,
			CharMaxMs: 18,
		},

		Features: FeaturesConfig{
			PromptComposer:  true,
			MarkdownPreview: true,
			CompactLog:      false,
		},

		Auth: AuthConfig{
			HeaderName: "Authorization",
			Prefix:     "Bearer",
		},

		SSO: SSOConfig{
			Scopes: []string{"user.read"},
		},

		Live: LiveConfig{
			RequestsPerMinute: 30,
			Burst:             3,
		},

		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},

		Storage: StorageConfig{
			HistoryLimit: 500,
		},

		Backends: DefaultBackends(),
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the promptcon configuration directory path.
// PROMPTCON_HOME overrides the default of ~/.promptcon.
func ConfigDir() (string, error) {
	if dir := os.Getenv("PROMPTCON_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".promptcon"), nil
}

func configPath(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) { return configPath("config.toml") }

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) { return configPath("config.json") }

// ConfigPathYAML returns the path to the YAML config file.
func ConfigPathYAML() (string, error) { return configPath("config.yaml") }

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files may hold API keys and client secrets, so they are 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML, then JSON, then YAML, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	var loadErr error

	candidates := []struct {
		path func() (string, error)
		load func(*Config, string) error
		kind string
	}{
		{ConfigPathTOML, LoadTOML, "TOML"},
		{ConfigPathJSON, LoadJSON, "JSON"},
		{ConfigPathYAML, LoadYAML, "YAML"},
	}

	for _, c := range candidates {
		path, err := c.path()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg := Default()
		if err := c.load(cfg, path); err != nil {
			loadErr = fmt.Errorf("failed to load %s config: %w", c.kind, err)
			continue
		}
		return finish(cfg)
	}

	cfg, err := finish(Default())
	if err != nil {
		return nil, err
	}
	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file path with full
// validation. The format is chosen by extension; anything unknown is TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := LoadYAML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load YAML config from %s: %w", path, err)
		}
	default:
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

// finish applies env overrides, defaults and validation.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	warnPermissions(path)

	// A configured catalog replaces the built-in one rather than merging.
	defaults := cfg.Backends
	cfg.Backends = nil
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		cfg.Backends = defaults
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg, defaults)
}

// LoadJSON loads configuration from a JSON file.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Config, path string) error {
	warnPermissions(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	defaults := cfg.Backends
	cfg.Backends = nil
	if err := json.Unmarshal(data, cfg); err != nil {
		cfg.Backends = defaults
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg, defaults)
}

// LoadYAML loads configuration from a YAML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadYAML(cfg *Config, path string) error {
	warnPermissions(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	defaults := cfg.Backends
	cfg.Backends = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg.Backends = defaults
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	return fillDefaults(cfg, defaults)
}

func warnPermissions(path string) {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config, backends []model.Backend) error {
	defaults := Default()

	if len(cfg.Backends) == 0 {
		cfg.Backends = backends
	}
	if cfg.Mode == "" {
		cfg.Mode = defaults.Mode
	}
	if cfg.DefaultTheme == "" {
		cfg.DefaultTheme = defaults.DefaultTheme
	}
	if cfg.Auth.HeaderName == "" {
		cfg.Auth.HeaderName = defaults.Auth.HeaderName
	}
	if len(cfg.SSO.Scopes) == 0 {
		cfg.SSO.Scopes = defaults.SSO.Scopes
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveTOML(cfg *Config, path string) error {
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	// SECURITY: Write with restrictive permissions (0600 = owner read/write only)
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Encode renders the configuration as commented TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# promptcon configuration file\n")
	buf.WriteString("# Generated by promptcon - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
// The backend catalog is not checked here: SetDefaults already swapped an
// invalid catalog for the fallback backend.
func (c *Config) Validate() error {
	var errs ValidateErrors

	switch c.Mode {
	case ModeDemo, ModeLive:
	default:
		errs = append(errs, ValidationError{
			Field:   "mode",
			Message: fmt.Sprintf("invalid mode '%s', must be one of: demo, live", c.Mode),
		})
	}

	errs = append(errs, validateRange("stream.net", c.Stream.NetMinMs, c.Stream.NetMaxMs)...)
	errs = append(errs, validateRange("stream.char", c.Stream.CharMinMs, c.Stream.CharMaxMs)...)

	if c.Live.RequestsPerMinute < 0 {
		errs = append(errs, ValidationError{Field: "live.requests_per_minute", Message: "must not be negative"})
	}
	if c.Live.Burst < 0 {
		errs = append(errs, ValidationError{Field: "live.burst", Message: "must not be negative"})
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if c.Storage.HistoryLimit < 0 {
		errs = append(errs, ValidationError{Field: "storage.history_limit", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateRange(field string, min, max int) ValidateErrors {
	var errs ValidateErrors
	if min < 0 {
		errs = append(errs, ValidationError{Field: field + "_min_ms", Message: "must not be negative"})
	}
	if max < min {
		errs = append(errs, ValidationError{
			Field:   field + "_max_ms",
			Message: fmt.Sprintf("must be >= %s_min_ms (%d), got %d", field, min, max),
		})
	}
	return errs
}

// ValidateBackends checks a backend catalog: it must be non-empty and every
// entry needs a unique id, a name, an absolute http(s) url, an accent color,
// a non-negative latency and a known auth kind.
func ValidateBackends(backends []model.Backend) error {
	if len(backends) == 0 {
		return ErrNoBackends
	}
	var errs ValidateErrors
	seen := make(map[string]bool, len(backends))
	for i, b := range backends {
		field := fmt.Sprintf("backends[%d]", i)
		if b.ID == "" {
			errs = append(errs, ValidationError{Field: field + ".id", Message: "must not be empty"})
		} else if seen[b.ID] {
			errs = append(errs, ValidationError{Field: field + ".id", Message: fmt.Sprintf("duplicate id '%s'", b.ID)})
		}
		seen[b.ID] = true
		if b.Name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "must not be empty"})
		}
		if u, err := url.Parse(b.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, ValidationError{Field: field + ".url", Message: fmt.Sprintf("invalid url '%s'", b.URL)})
		}
		if b.Accent == "" {
			errs = append(errs, ValidationError{Field: field + ".accent", Message: "must not be empty"})
		}
		if b.LatencyMs < 0 {
			errs = append(errs, ValidationError{Field: field + ".latency", Message: "must not be negative"})
		}
		if !b.Auth.Valid() {
			errs = append(errs, ValidationError{
				Field:   field + ".requires_auth",
				Message: fmt.Sprintf("invalid auth '%s', must be one of: none, apiKey, sso", b.Auth),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults normalizes derived fields after loading.
func (c *Config) SetDefaults() {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.Auth.Prefix = strings.TrimSpace(c.Auth.Prefix)

	if err := ValidateBackends(c.Backends); err != nil {
		c.catalogErr = err
		c.Backends = []model.Backend{FallbackBackend()}
	}
	for i := range c.Backends {
		if c.Backends[i].Auth == "" {
			c.Backends[i].Auth = model.AuthNone
		}
	}
	if _, ok := model.FindBackend(c.Backends, c.DefaultBackend); !ok {
		c.DefaultBackend = c.Backends[0].ID
	}
}

// CatalogError reports why the configured backends were replaced by the
// fallback backend, or nil if the catalog was accepted.
func (c *Config) CatalogError() error {
	return c.catalogErr
}

// ActiveBackend returns the default backend.
func (c *Config) ActiveBackend() model.Backend {
	if b, ok := model.FindBackend(c.Backends, c.DefaultBackend); ok {
		return b
	}
	return c.Backends[0]
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies PROMPTCON_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if mode := os.Getenv("PROMPTCON_MODE"); mode != "" {
		c.Mode = mode
	}
	if id := os.Getenv("PROMPTCON_DEFAULT_BACKEND"); id != "" {
		c.DefaultBackend = id
	}
	if id := os.Getenv("PROMPTCON_DEFAULT_THEME"); id != "" {
		c.DefaultTheme = id
	}

	envInt("PROMPTCON_STREAM_NET_MIN", &c.Stream.NetMinMs)
	envInt("PROMPTCON_STREAM_NET_MAX", &c.Stream.NetMaxMs)
	envInt("PROMPTCON_STREAM_CHAR_MIN", &c.Stream.CharMinMs)
	envInt("PROMPTCON_STREAM_CHAR_MAX", &c.Stream.CharMaxMs)

	if key := os.Getenv("PROMPTCON_API_KEY"); key != "" {
		c.Auth.APIKey = key
	}
	if header := os.Getenv("PROMPTCON_API_KEY_HEADER"); header != "" {
		c.Auth.HeaderName = header
	}
	// An explicitly empty prefix is meaningful (raw key header).
	if prefix, ok := os.LookupEnv("PROMPTCON_API_KEY_PREFIX"); ok {
		c.Auth.Prefix = prefix
	}

	if v := os.Getenv("PROMPTCON_SSO_TENANT_ID"); v != "" {
		c.SSO.TenantID = v
	}
	if v := os.Getenv("PROMPTCON_SSO_CLIENT_ID"); v != "" {
		c.SSO.ClientID = v
	}
	if v := os.Getenv("PROMPTCON_SSO_CLIENT_SECRET"); v != "" {
		c.SSO.ClientSecret = v
	}
	if v := os.Getenv("PROMPTCON_SSO_SCOPES"); v != "" {
		c.SSO.Scopes = strings.Fields(v)
	}

	if level := os.Getenv("PROMPTCON_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring %s=%q: %v\n", key, v, err)
		return
	}
	*dst = n
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
