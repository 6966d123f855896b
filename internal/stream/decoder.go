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
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// FRAMING FORMAT
// =============================================================================

// Format is the framing a live response body uses.
type Format int

const (
	// FormatLines is newline-delimited JSON objects or plain text lines.
	FormatLines Format = iota
	// FormatEventStream is server-sent events (data: records split by a blank line).
	FormatEventStream
)

// String returns a short name for logs.
func (f Format) String() string {
	if f == FormatEventStream {
		return "sse"
	}
	return "lines"
}

// FormatFor picks the framing from a response Content-Type header.
func FormatFor(contentType string) Format {
	if strings.Contains(strings.ToLower(contentType), "text/event-stream") {
		return FormatEventStream
	}
	return FormatLines
}

// readBufferSize is the chunk size used when pumping a response body.
const readBufferSize = 4096

// dataLine matches an SSE data field and captures its payload.
var dataLine = regexp.MustCompile(`^data:\s?(.*)$`)

// deltaFields is the lookup order for text inside a structured payload.
var deltaFields = [...]string{"delta", "content", "text"}

// =============================================================================
// DECODER
// =============================================================================

// Decoder reassembles frames from arbitrarily split chunks of a response
// body and turns each complete frame into zero or more text tokens.
// A Decoder belongs to a single session and is not safe for concurrent use.
type Decoder struct {
	format Format
	buf    []byte
}

// NewDecoder creates a decoder for the given framing.
func NewDecoder(format Format) *Decoder {
	return &Decoder{format: format}
}

// Format returns the framing the decoder was created with.
func (d *Decoder) Format() Format {
	return d.format
}

// Write appends a chunk to the frame buffer and returns the tokens of every
// frame the chunk completed, in order. Frame delimiters are ASCII, so a chunk
// boundary inside a multi-byte character never splits a frame incorrectly.
func (d *Decoder) Write(p []byte) []string {
	d.buf = append(d.buf, p...)
	if d.format == FormatEventStream {
		return d.drainEvents()
	}
	return d.drainLines()
}

// Flush emits whatever is left once the body has ended and resets the buffer.
func (d *Decoder) Flush() []string {
	rest := string(d.buf)
	d.buf = nil

	if d.format == FormatEventStream {
		// An unterminated record is passed through verbatim.
		if rest == "" {
			return nil
		}
		return []string{rest}
	}

	if strings.TrimSpace(rest) == "" {
		return nil
	}
	// A trailing object without a text field keeps its surrounding space.
	return appendToken(nil, lineToken(rest, rest))
}

func (d *Decoder) drainEvents() []string {
	var tokens []string
	for {
		idx := bytes.Index(d.buf, []byte("\n\n"))
		if idx < 0 {
			break
		}
		record := string(d.buf[:idx])
		d.buf = d.buf[idx+2:]

		for _, line := range strings.Split(record, "\n") {
			line = strings.TrimSuffix(line, "\r")
			m := dataLine.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			payload := m[1]
			text, falsy, ok := extractText(payload)
			switch {
			case !ok:
				tokens = appendToken(tokens, payload)
			case !falsy:
				tokens = appendToken(tokens, text)
			}
		}
	}
	d.compact()
	return tokens
}

func (d *Decoder) drainLines() []string {
	var tokens []string
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(d.buf[:idx])
		d.buf = d.buf[idx+1:]

		if strings.TrimSpace(line) == "" {
			continue
		}
		tokens = appendToken(tokens, lineToken(line, ""))
	}
	d.compact()
	return tokens
}

// compact releases the consumed prefix of the buffer.
func (d *Decoder) compact() {
	if len(d.buf) == 0 {
		d.buf = nil
		return
	}
	if cap(d.buf) > 2*readBufferSize && len(d.buf) < cap(d.buf)/4 {
		d.buf = append([]byte(nil), d.buf...)
	}
}

// lineToken applies the line rule: a structured line yields its text field,
// or fallback (the trimmed line when empty) when it has none; anything that
// is not JSON is emitted as the raw line.
func lineToken(line, fallback string) string {
	line = strings.TrimSuffix(line, "\r")
	trimmed := strings.TrimSpace(line)
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return line
	}
	if text, _, ok := extractText(trimmed); ok {
		return text
	}
	if fallback != "" {
		return fallback
	}
	return trimmed
}

// extractText returns the first non-null delta/content/text field of a JSON
// object payload. falsy reports a false or zero value, which event streams
// drop. ok is false when the payload is not a JSON object or none of the
// fields is set.
func extractText(payload string) (text string, falsy, ok bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &obj); err != nil || obj == nil {
		return "", false, false
	}
	for _, field := range deltaFields {
		raw, present := obj[field]
		if !present || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, s == "", true
		}
		// Numbers, booleans and nested values are emitted as their JSON text.
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return string(raw), false, true
		}
		text = compact.String()
		return text, isFalsyJSON(text), true
	}
	return "", false, false
}

// isFalsyJSON reports whether a compact non-string JSON value is false or
// numerically zero.
func isFalsyJSON(v string) bool {
	if v == "false" {
		return true
	}
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && f == 0
}

func appendToken(tokens []string, tok string) []string {
	if tok == "" {
		return tokens
	}
	return append(tokens, tok)
}

// =============================================================================
// PUMP
// =============================================================================

// ReadError wraps a failure reading the response body mid-stream.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("stream read failed: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Pump reads body until EOF, decoding it through a stateful UTF-8 decoder so
// characters split across reads are reassembled, and hands every token to fn
// in order. The context is checked at each chunk boundary; on cancellation
// Pump returns ctx.Err() without flushing the partial frame.
func Pump(ctx context.Context, body io.Reader, dec *Decoder, fn func(string)) error {
	r := transform.NewReader(body, unicode.UTF8.NewDecoder())
	chunk := make([]byte, readBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(chunk)
		if n > 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			for _, tok := range dec.Write(chunk[:n]) {
				fn(tok)
			}
		}

		if errors.Is(err, io.EOF) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			for _, tok := range dec.Flush() {
				fn(tok)
			}
			return nil
		}
		if err != nil {
			// Aborting the request surfaces as a read error; report it as
			// cancellation when that is what happened.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &ReadError{Err: err}
		}
	}
}
