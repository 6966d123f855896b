// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Outer chunk size bounds, in characters.
const (
	minChunkRunes = 12
	maxChunkRunes = 25
)

// =============================================================================
// CANNED SAMPLES
// =============================================================================

// Sample is one canned demo reply.
type Sample struct {
	Name     string
	Text     string
	Markdown bool
}

var samples = []Sample{
	{
		Name: "plain",
		Text: "Boot sequence\n" +
			"────────────────\n" +
			"• Allocating memory banks… OK\n" +
			"• Mounting vector store… OK\n" +
			"• Scheduling tools… OK\n\n" +
			"> Ready. Type 'help' to see available commands.",
		Markdown: false,
	},
	{
		Name: "markdown",
		Text: "# Snapshot Report\n" +
			"A concise **markdown** sample to verify rendering and spacing.\n\n" +
			"## Findings\n" +
			"1. The system maintains coherent *style rhythm*.\n" +
			"2. Lists, code and tables align with the grid.\n" +
			"3. Callouts stay monochrome to preserve the CRT vibe.\n\n" +
			"> Tip: Use `Ctrl + P` to toggle prompt preview.",
		Markdown: true,
	},
	{
		Name: "code",
		Text: "```go\n" +
			"// quicksort with comments for extra lines\n" +
			"func qs(a []int) []int {\n" +
			"\tif len(a) < 2 {\n" +
			"\t\treturn a\n" +
			"\t}\n" +
			"\tp := a[0]\n" +
			"\tvar left, right []int\n" +
			"\tfor _, x := range a[1:] {\n" +
			"\t\tif x <= p {\n" +
			"\t\t\tleft = append(left, x)\n" +
			"\t\t} else {\n" +
			"\t\t\tright = append(right, x)\n" +
			"\t\t}\n" +
			"\t}\n" +
			"\treturn append(append(qs(left), p), qs(right)...)\n" +
			"}\n" +
			"```",
		Markdown: true,
	},
	{
		Name: "table",
		Text: "| # | Feature          | Status | Notes                           |\n" +
			"|:-:|:-----------------|:------:|:--------------------------------|\n" +
			"| 1 | Multi-backend    |   ✅   | Switch agents on the fly        |\n" +
			"| 2 | Theme accent     |   ✅   | Green/Cyan/Amber presets        |\n" +
			"| 3 | Markdown + code  |   ✅   | Copy last reply with ctrl+y     |\n" +
			"| 4 | Streaming        |   ✅   | Per-character, smooth scroll    |",
		Markdown: true,
	},
	{
		Name: "mix",
		Text: "### Pipeline\n" +
			"1. fetch context\n" +
			"2. synthesize\n" +
			"3. answer\n\n" +
			"```bash\n" +
			"grep -R \"insight\" ./kb | head -n 2\n" +
			"```\n\n" +
			"Now returning a paragraph:\n\n" +
			"The quick brown fox jumps over the lazy dog. This line exists to add volume " +
			"and let you judge proportions, margins, and line length for comfortable " +
			"reading at various terminal widths.",
		Markdown: true,
	},
}

// Samples returns a copy of the canned demo replies.
func Samples() []Sample {
	out := make([]Sample, len(samples))
	copy(out, samples)
	return out
}

// =============================================================================
// SYNTHESIZER
// =============================================================================

// Range is an inclusive delay range.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Sleeper waits for d or until ctx is done. It returns ErrStopped on
// cancellation.
type Sleeper func(ctx context.Context, d time.Duration) error

// SynthOption configures a Synthesizer.
type SynthOption func(*Synthesizer)

// WithRand sets the random source, mainly for deterministic tests.
func WithRand(r *rand.Rand) SynthOption {
	return func(s *Synthesizer) { s.rng = r }
}

// WithSleeper replaces the timer-based sleep.
func WithSleeper(fn Sleeper) SynthOption {
	return func(s *Synthesizer) { s.sleep = fn }
}

// Synthesizer plays text back with network-like pacing: chunks of 12-25
// characters each preceded by a network delay, then one character at a time
// each preceded by a character delay.
type Synthesizer struct {
	Network Range
	Char    Range

	mu    sync.Mutex // guards rng
	rng   *rand.Rand
	sleep Sleeper
}

// NewSynthesizer creates a synthesizer with the given delay ranges.
func NewSynthesizer(network, char Range, opts ...SynthOption) *Synthesizer {
	s := &Synthesizer{
		Network: network,
		Char:    char,
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	return s
}

// Pick chooses a canned sample uniformly at random.
func (s *Synthesizer) Pick() Sample {
	return samples[s.intN(len(samples))]
}

// Play delivers text to fn with the configured pacing. The context is
// checked before every delay; on cancellation Play returns ErrStopped and
// delivers nothing further.
func (s *Synthesizer) Play(ctx context.Context, text string, fn func(string)) error {
	runes := []rune(text)
	for i := 0; i < len(runes); {
		size := minChunkRunes + s.intN(maxChunkRunes-minChunkRunes+1)
		if err := s.wait(ctx, s.Network); err != nil {
			return err
		}

		end := min(i+size, len(runes))
		for _, r := range runes[i:end] {
			if err := s.wait(ctx, s.Char); err != nil {
				return err
			}
			fn(string(r))
		}
		i = end
	}
	return nil
}

func (s *Synthesizer) wait(ctx context.Context, r Range) error {
	if ctx.Err() != nil {
		return ErrStopped
	}
	return s.sleep(ctx, s.draw(r))
}

// draw returns a uniformly distributed duration in [r.Min, r.Max].
func (s *Synthesizer) draw(r Range) time.Duration {
	if r.Max <= r.Min {
		return max(r.Min, 0)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.Min + time.Duration(s.rng.Int64N(int64(r.Max-r.Min)+1))
}

func (s *Synthesizer) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if ctx.Err() != nil {
			return ErrStopped
		}
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ErrStopped
	case <-timer.C:
		return nil
	}
}
