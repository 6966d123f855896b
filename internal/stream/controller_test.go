// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/jeranaias/promptcon/internal/model"
)

// recorder collects the callbacks of one session.
type recorder struct {
	mu     sync.Mutex
	tokens []string
	errs   []error
	first  chan struct{}
	once   sync.Once
}

func newRecorder() *recorder {
	return &recorder{first: make(chan struct{})}
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnToken: func(tok string) {
			r.mu.Lock()
			r.tokens = append(r.tokens, tok)
			r.mu.Unlock()
			r.once.Do(func() { close(r.first) })
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.tokens, "")
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tokens...)
}

func (r *recorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

type staticAuth struct {
	headers map[string]string
	err     error
}

func (a staticAuth) HeadersFor(context.Context, model.Backend) (map[string]string, error) {
	return a.headers, a.err
}

func liveBackend(url string) model.Backend {
	return model.Backend{ID: "echo", Name: "echo-agent", URL: url, Accent: "#fff"}
}

func liveController(opts ...Option) *Controller {
	base := []Option{WithLive(true), WithSynthesizer(instantSynth())}
	return NewController(append(base, opts...)...)
}

// =============================================================================
// DEMO PATH
// =============================================================================

func TestController_DemoDeliversCannedSample(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctl := NewController(WithSynthesizer(instantSynth()))
	rec := newRecorder()
	res := ctl.Start(context.Background(), model.Backend{ID: "alpha"}, "hello", rec.callbacks())

	require.Empty(t, rec.errors())
	var match *Sample
	for _, s := range Samples() {
		if s.Text == rec.text() {
			match = &s
			break
		}
	}
	require.NotNil(t, match, "reply must be one of the canned samples verbatim")
	assert.Equal(t, match.Markdown, res.IsMarkdown)
	assert.False(t, ctl.Active())
}

func TestController_CancelWhenIdle(t *testing.T) {
	ctl := NewController()
	assert.NotPanics(t, func() {
		ctl.Cancel()
		ctl.Cancel()
	})
	assert.False(t, ctl.Active())
}

func TestController_CancelDuringDemo(t *testing.T) {
	defer goleak.VerifyNone(t)

	synth := NewSynthesizer(Range{}, Range{Min: time.Hour, Max: time.Hour}, WithRand(seeded()))
	ctl := NewController(WithSynthesizer(synth))
	rec := newRecorder()

	done := make(chan Result, 1)
	go func() {
		done <- ctl.Start(context.Background(), model.Backend{ID: "alpha"}, "hi", rec.callbacks())
	}()

	require.Eventually(t, ctl.Active, time.Second, 5*time.Millisecond)
	ctl.Cancel()

	select {
	case res := <-done:
		assert.False(t, res.IsMarkdown)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Cancel")
	}
	errs := rec.errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrStopped)
	assert.Equal(t, "stream stopped", errs[0].Error())
	assert.Empty(t, rec.list())

	// Cancel after completion is still a no-op.
	ctl.Cancel()
	assert.False(t, ctl.Active())
}

func TestController_NewSessionSilencesPrevious(t *testing.T) {
	defer goleak.VerifyNone(t)

	synth := NewSynthesizer(Range{}, Range{Min: time.Millisecond, Max: 2 * time.Millisecond}, WithRand(seeded()))
	ctl := NewController(WithSynthesizer(synth))

	var bStarted atomic.Bool
	var lateTokens atomic.Int32

	a := newRecorder()
	aCallbacks := a.callbacks()
	inner := aCallbacks.OnToken
	aCallbacks.OnToken = func(tok string) {
		if bStarted.Load() {
			lateTokens.Add(1)
		}
		inner(tok)
	}

	aDone := make(chan Result, 1)
	go func() {
		aDone <- ctl.Start(context.Background(), model.Backend{ID: "alpha"}, "first", aCallbacks)
	}()
	<-a.first

	b := newRecorder()
	bCallbacks := b.callbacks()
	bInner := bCallbacks.OnToken
	bCallbacks.OnToken = func(tok string) {
		bStarted.Store(true)
		bInner(tok)
	}
	bRes := ctl.Start(context.Background(), model.Backend{ID: "alpha"}, "second", bCallbacks)

	aRes := <-aDone
	assert.False(t, aRes.IsMarkdown)
	assert.Zero(t, lateTokens.Load(), "superseded session delivered tokens after its successor started")

	aErrs := a.errors()
	require.Len(t, aErrs, 1)
	assert.ErrorIs(t, aErrs[0], ErrStopped)

	assert.Empty(t, b.errors())
	found := false
	for _, s := range Samples() {
		if s.Text == b.text() {
			found = true
			assert.Equal(t, s.Markdown, bRes.IsMarkdown)
		}
	}
	assert.True(t, found, "second session must complete with a full sample")
}

// =============================================================================
// LIVE PATH
// =============================================================================

func TestController_LiveEventStream(t *testing.T) {
	var gotReq struct {
		method, path, contentType string
		body                      map[string]string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq.method = r.Method
		gotReq.path = r.URL.Path
		gotReq.contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotReq.body)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"delta\":\"Hi\"}\n\n")
		w.(http.Flusher).Flush()
		fmt.Fprint(w, "data: {\"delta\":\" there\"}\n\n")
	}))
	defer srv.Close()

	ctl := liveController(WithHTTPClient(srv.Client()))
	rec := newRecorder()
	res := ctl.Start(context.Background(), liveBackend(srv.URL), "hello", rec.callbacks())

	assert.Empty(t, rec.errors())
	assert.Equal(t, []string{"Hi", " there"}, rec.list())
	assert.True(t, res.IsMarkdown)

	assert.Equal(t, http.MethodPost, gotReq.method)
	assert.Equal(t, "/chat", gotReq.path)
	assert.Equal(t, "application/json", gotReq.contentType)
	assert.Equal(t, map[string]string{"prompt": "hello"}, gotReq.body)
}

func TestController_LiveLineDelimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprint(w, "{\"content\":\"a\"}\n{\"text\":\"b\"}\nplain tail")
	}))
	defer srv.Close()

	ctl := liveController(WithHTTPClient(srv.Client()))
	rec := newRecorder()
	res := ctl.Start(context.Background(), liveBackend(srv.URL), "q", rec.callbacks())

	assert.Equal(t, []string{"a", "b", "plain tail"}, rec.list())
	assert.True(t, res.IsMarkdown)
}

func TestController_LiveAuthHeaders(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-API-Key")
		fmt.Fprint(w, "ok\n")
	}))
	defer srv.Close()

	auth := staticAuth{headers: map[string]string{"X-API-Key": "Token k-123"}}
	ctl := liveController(WithHTTPClient(srv.Client()), WithAuth(auth))
	ctl.Start(context.Background(), liveBackend(srv.URL), "q", newRecorder().callbacks())

	assert.Equal(t, "Token k-123", got)
}

func TestController_LiveServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	backend := liveBackend(srv.URL)
	ctl := liveController(WithHTTPClient(srv.Client()))
	rec := newRecorder()
	res := ctl.Start(context.Background(), backend, "hello", rec.callbacks())

	assert.Empty(t, rec.errors())
	assert.False(t, res.IsMarkdown)
	assert.Equal(t, "You said: hello\n\n(Live endpoint "+srv.URL+"/chat not reachable.)", rec.text())
}

func TestController_LiveUnreachableFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ctl := liveController()
	rec := newRecorder()
	res := ctl.Start(context.Background(), liveBackend(url), "ping", rec.callbacks())

	assert.Empty(t, rec.errors())
	assert.False(t, res.IsMarkdown)
	assert.Equal(t, FallbackText(liveBackend(url), "ping"), rec.text())
}

func TestController_LiveEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctl := liveController(WithHTTPClient(srv.Client()))
	rec := newRecorder()
	res := ctl.Start(context.Background(), liveBackend(srv.URL), "q", rec.callbacks())

	assert.Empty(t, rec.list())
	assert.Empty(t, rec.errors())
	assert.True(t, res.IsMarkdown, "an empty OK body is still a markdown reply")
}

func TestController_LiveAuthFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	authErr := errors.New("API key required for charlie-code")
	ctl := liveController(WithHTTPClient(srv.Client()), WithAuth(staticAuth{err: authErr}))
	rec := newRecorder()
	res := ctl.Start(context.Background(), liveBackend(srv.URL), "q", rec.callbacks())

	assert.False(t, res.IsMarkdown)
	require.Len(t, rec.errors(), 1)
	assert.ErrorIs(t, rec.errors()[0], authErr)
	assert.Zero(t, hits.Load(), "no request without credentials")
}

func TestController_DemoBackendInLiveMode(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	backend := liveBackend(srv.URL)
	backend.Demo = true
	ctl := liveController(WithHTTPClient(srv.Client()))
	rec := newRecorder()
	ctl.Start(context.Background(), backend, "q", rec.callbacks())

	assert.Zero(t, hits.Load())
	assert.NotEmpty(t, rec.text())
}

func TestController_CancelLiveStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: one\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctl := liveController(WithHTTPClient(srv.Client()))
	rec := newRecorder()

	done := make(chan Result, 1)
	go func() {
		done <- ctl.Start(context.Background(), liveBackend(srv.URL), "q", rec.callbacks())
	}()

	select {
	case <-rec.first:
	case <-time.After(5 * time.Second):
		t.Fatal("first token never arrived")
	}
	ctl.Cancel()

	select {
	case res := <-done:
		assert.False(t, res.IsMarkdown)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Cancel")
	}
	assert.Equal(t, []string{"one"}, rec.list())
	require.Len(t, rec.errors(), 1)
	assert.ErrorIs(t, rec.errors()[0], ErrStopped)
}

func TestController_LiveReadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		fmt.Fprint(w, "partial\n")
	}))
	defer srv.Close()

	ctl := liveController(WithHTTPClient(srv.Client()))
	rec := newRecorder()
	res := ctl.Start(context.Background(), liveBackend(srv.URL), "q", rec.callbacks())

	assert.False(t, res.IsMarkdown)
	assert.Equal(t, []string{"partial"}, rec.list())
	require.Len(t, rec.errors(), 1)
	var readErr *ReadError
	assert.ErrorAs(t, rec.errors()[0], &readErr)
	assert.NotErrorIs(t, rec.errors()[0], ErrStopped)
}

func TestController_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok\n")
	}))
	defer srv.Close()

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	ctl := liveController(WithHTTPClient(srv.Client()), WithLimiter(limiter))

	first := newRecorder()
	ctl.Start(context.Background(), liveBackend(srv.URL), "q", first.callbacks())
	assert.Equal(t, []string{"ok"}, first.list())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	second := newRecorder()
	res := ctl.Start(ctx, liveBackend(srv.URL), "q", second.callbacks())

	assert.False(t, res.IsMarkdown)
	require.Len(t, second.errors(), 1)
	assert.Contains(t, second.errors()[0].Error(), "rate limit")
}
