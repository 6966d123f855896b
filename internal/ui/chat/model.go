// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/promptcon/internal/config"
	"github.com/jeranaias/promptcon/internal/console"
	"github.com/jeranaias/promptcon/internal/ui/components"
	"github.com/jeranaias/promptcon/internal/ui/markdown"
	"github.com/jeranaias/promptcon/internal/ui/styles"
)

// SettingsStore persists UI choices between runs.
type SettingsStore interface {
	SetSetting(ctx context.Context, key, value string) error
}

// Option configures a Model.
type Option func(*Model)

// WithContext sets the parent context for submitted prompts.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// WithSettings persists the chosen theme and backend.
func WithSettings(s SettingsStore) Option {
	return func(m *Model) { m.settings = s }
}

// WithFeatures enables or disables optional panes.
func WithFeatures(f config.FeaturesConfig) Option {
	return func(m *Model) { m.features = f }
}

// WithMode sets the mode label shown in the header and footer.
func WithMode(mode string) Option {
	return func(m *Model) { m.mode = mode }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(fn func(string) error) Option {
	return func(m *Model) { m.clip = fn }
}

// WithMarkdown replaces the markdown renderer.
func WithMarkdown(r *markdown.Renderer) Option {
	return func(m *Model) { m.md = r }
}

// Model is the Bubble Tea model for the console screen.
type Model struct {
	con      *console.Console
	theme    *styles.Theme
	keys     KeyMap
	ctx      context.Context
	settings SettingsStore
	features config.FeaturesConfig
	mode     string
	logger   *zap.Logger
	clip     func(string) error
	md       *markdown.Renderer

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model
	picker   *components.BackendPicker
	composer *components.Composer
	footer   *components.StatusBar

	// Console state as of the last refresh
	state console.State

	// pending is set from dispatch until Submit returns, so the stream tick
	// keeps running even before the console reports streaming.
	pending     bool
	streamStart time.Time

	preview  bool
	flash    string
	flashSeq int
	now      time.Time

	width  int
	height int
	ready  bool

	// Rendered markdown of finished replies, keyed by message id.
	rendered      map[string]string
	renderedWidth int
}

// New creates the console screen.
func New(con *console.Console, theme *styles.Theme, opts ...Option) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a prompt..."
	ti.CharLimit = 0
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.Placeholder
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = styles.StreamSpinner
	sp.Style = theme.StatusKey

	m := Model{
		con:      con,
		theme:    theme,
		keys:     DefaultKeyMap(),
		ctx:      context.Background(),
		mode:     config.ModeDemo,
		logger:   zap.NewNop(),
		clip:     clipboard.WriteAll,
		features: config.Default().Features,
		viewport: vp,
		input:    ti,
		spinner:  sp,
		help:     help.New(),
		footer:   components.NewStatusBar(theme),
		preview:  true,
		rendered: make(map[string]string),
		now:      time.Now(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.md == nil {
		m.md = markdown.NewRenderer("")
	}
	m.picker = components.NewBackendPicker(theme)
	m.composer = components.NewComposer(theme, m.md.Render, m.clip)
	m.state = con.Snapshot()
	m.input.SetValue(m.state.Input)
	return m
}

// Init starts the cursor blink and the footer clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, clockTickCmd())
}

// Streaming reports whether a prompt is in flight.
func (m Model) Streaming() bool {
	return m.pending || m.state.Streaming
}

// State returns the console state as of the last refresh.
func (m Model) State() console.State {
	return m.state
}
