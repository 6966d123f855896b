// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/promptcon/internal/model"
)

// ErrStopped is reported when a stream is cancelled or superseded.
var ErrStopped = errors.New("stream stopped")

// maxFallbackDrain bounds how much of a failed response body is read before
// closing it so the connection can be reused.
const maxFallbackDrain = 64 * 1024

// =============================================================================
// COLLABORATORS
// =============================================================================

// HeaderProvider supplies the auth headers a backend requires.
type HeaderProvider interface {
	HeadersFor(ctx context.Context, backend model.Backend) (map[string]string, error)
}

// noAuth is used when no HeaderProvider is configured.
type noAuth struct{}

func (noAuth) HeadersFor(context.Context, model.Backend) (map[string]string, error) {
	return nil, nil
}

// Callbacks receive the output of one session.
//
// OnToken is called from the goroutine running Start, in decode order.
// Neither callback may call back into the Controller.
type Callbacks struct {
	OnToken func(token string)
	OnError func(err error)
}

// Result reports how the delivered text should be rendered.
type Result struct {
	IsMarkdown bool
}

// =============================================================================
// SESSION
// =============================================================================

// session is one in-flight stream. Tokens pass through emit, which holds mu
// for the duration of the callback so that revoke can wait out a delivery
// that is already in progress.
type session struct {
	id      uint64
	ctx     context.Context
	cancel  context.CancelFunc
	onToken func(string)

	mu      sync.Mutex
	revoked bool
	tokens  int
}

func (s *session) emit(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revoked || s.ctx.Err() != nil {
		return
	}
	s.tokens++
	if s.onToken != nil {
		s.onToken(tok)
	}
}

// revoke cancels the session and returns once no OnToken call is running.
// No token is delivered after revoke returns.
func (s *session) revoke() {
	s.cancel()
	s.mu.Lock()
	s.revoked = true
	s.mu.Unlock()
}

func (s *session) delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Option configures a Controller.
type Option func(*Controller)

// WithHTTPClient sets the client used for live requests. The client should
// not carry a Timeout; streams are bounded by cancellation.
func WithHTTPClient(c *http.Client) Option {
	return func(ctl *Controller) { ctl.client = c }
}

// WithAuth sets the auth header provider for live requests.
func WithAuth(p HeaderProvider) Option {
	return func(ctl *Controller) { ctl.auth = p }
}

// WithSynthesizer sets the synthesizer used for demo replies and fallbacks.
func WithSynthesizer(s *Synthesizer) Option {
	return func(ctl *Controller) { ctl.synth = s }
}

// WithLive switches the controller to live mode. Backends flagged demo are
// still served by the synthesizer.
func WithLive(live bool) Option {
	return func(ctl *Controller) { ctl.live = live }
}

// WithLimiter paces outgoing live requests.
func WithLimiter(l *rate.Limiter) Option {
	return func(ctl *Controller) { ctl.limiter = l }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// Controller runs at most one stream session at a time. Starting a session
// revokes the previous one before any of the new session's output is
// produced.
type Controller struct {
	client  *http.Client
	auth    HeaderProvider
	synth   *Synthesizer
	live    bool
	limiter *rate.Limiter
	logger  *zap.Logger

	mu     sync.Mutex // guards active
	active *session
	seq    atomic.Uint64
}

// PERFORMANCE: Connection pooling for streaming requests.
// No client timeout; streams are controlled via context.
var defaultStreamingClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// NewController creates a controller. Without options it runs in demo mode
// with the default pacing.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		client: defaultStreamingClient,
		auth:   noAuth{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.synth == nil {
		c.synth = NewSynthesizer(
			Range{Min: 70 * time.Millisecond, Max: 180 * time.Millisecond},
			Range{Min: 6 * time.Millisecond, Max: 18 * time.Millisecond},
		)
	}
	return c
}

// Start runs a session for prompt against backend and blocks until the
// stream is consumed, cancelled or failed. Any session already running is
// revoked first. Errors are reported through cb.OnError; cancellation is
// reported as ErrStopped. On any error the result is non-markdown.
func (c *Controller) Start(ctx context.Context, backend model.Backend, prompt string, cb Callbacks) Result {
	s := c.begin(ctx, cb.OnToken)
	defer c.end(s)

	started := time.Now()
	demo := !c.live || backend.Demo
	log := c.logger.With(
		zap.Uint64("session", s.id),
		zap.String("backend", backend.ID),
		zap.Bool("demo", demo),
	)
	log.Debug("stream started")

	var (
		res Result
		err error
	)
	if demo {
		res, err = c.runDemo(s)
	} else {
		res, err = c.runLive(s, backend, prompt, log)
	}

	if err != nil {
		if s.ctx.Err() != nil || errors.Is(err, ErrStopped) {
			err = ErrStopped
			log.Info("stream stopped",
				zap.Int("tokens", s.delivered()),
				zap.Duration("elapsed", time.Since(started)))
		} else {
			log.Warn("stream failed",
				zap.Error(err),
				zap.Int("tokens", s.delivered()),
				zap.Duration("elapsed", time.Since(started)))
		}
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return Result{IsMarkdown: false}
	}

	log.Info("stream complete",
		zap.Int("tokens", s.delivered()),
		zap.Bool("markdown", res.IsMarkdown),
		zap.Duration("elapsed", time.Since(started)))
	return res
}

// Cancel stops the active session, if any. Safe to call at any time.
func (c *Controller) Cancel() {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s != nil {
		s.cancel()
	}
}

// Active reports whether a session is in flight.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

func (c *Controller) begin(parent context.Context, onToken func(string)) *session {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &session{
		id:      c.seq.Add(1),
		ctx:     ctx,
		cancel:  cancel,
		onToken: onToken,
	}

	c.mu.Lock()
	prev := c.active
	c.active = s
	c.mu.Unlock()

	if prev != nil {
		prev.revoke()
	}
	return s
}

func (c *Controller) end(s *session) {
	c.mu.Lock()
	if c.active == s {
		c.active = nil
	}
	c.mu.Unlock()
	s.cancel()
}

// =============================================================================
// DEMO PATH
// =============================================================================

func (c *Controller) runDemo(s *session) (Result, error) {
	sample := c.synth.Pick()
	if err := c.synth.Play(s.ctx, sample.Text, s.emit); err != nil {
		return Result{}, err
	}
	return Result{IsMarkdown: sample.Markdown}, nil
}

// =============================================================================
// LIVE PATH
// =============================================================================

type chatRequest struct {
	Prompt string `json:"prompt"`
}

// FallbackText is the reply synthesized when a live endpoint cannot be used.
func FallbackText(backend model.Backend, prompt string) string {
	return fmt.Sprintf("You said: %s\n\n(Live endpoint %s not reachable.)", prompt, backend.ChatURL())
}

func (c *Controller) runLive(s *session, backend model.Backend, prompt string, log *zap.Logger) (Result, error) {
	headers, err := c.auth.HeadersFor(s.ctx, backend)
	if err != nil {
		return Result{}, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(s.ctx); err != nil {
			if s.ctx.Err() != nil {
				return Result{}, ErrStopped
			}
			return Result{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	body, err := json.Marshal(chatRequest{Prompt: prompt})
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, backend.ChatURL(), bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream, application/x-ndjson, text/plain")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if s.ctx.Err() != nil {
			return Result{}, ErrStopped
		}
		log.Warn("live endpoint unreachable", zap.String("url", backend.ChatURL()), zap.Error(err))
		return c.playFallback(s, backend, prompt)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || resp.Body == nil {
		log.Warn("live endpoint rejected request",
			zap.String("url", backend.ChatURL()),
			zap.Int("status", resp.StatusCode))
		if resp.Body != nil {
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxFallbackDrain))
			resp.Body.Close()
		}
		return c.playFallback(s, backend, prompt)
	}
	defer resp.Body.Close()

	dec := NewDecoder(FormatFor(resp.Header.Get("Content-Type")))
	log.Debug("decoding live response", zap.Stringer("format", dec.Format()))
	if err := Pump(s.ctx, resp.Body, dec, s.emit); err != nil {
		return Result{}, err
	}
	return Result{IsMarkdown: true}, nil
}

func (c *Controller) playFallback(s *session, backend model.Backend, prompt string) (Result, error) {
	if err := c.synth.Play(s.ctx, FallbackText(backend, prompt), s.emit); err != nil {
		return Result{}, err
	}
	return Result{IsMarkdown: false}, nil
}
