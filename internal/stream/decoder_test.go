// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll(format Format, chunks ...string) []string {
	d := NewDecoder(format)
	var out []string
	for _, c := range chunks {
		out = append(out, d.Write([]byte(c))...)
	}
	return append(out, d.Flush()...)
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		contentType string
		want        Format
	}{
		{"text/event-stream", FormatEventStream},
		{"text/event-stream; charset=utf-8", FormatEventStream},
		{"Text/Event-Stream", FormatEventStream},
		{"application/x-ndjson", FormatLines},
		{"text/plain", FormatLines},
		{"", FormatLines},
	}
	for _, tc := range tests {
		t.Run(tc.contentType, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatFor(tc.contentType))
		})
	}
}

// =============================================================================
// EVENT STREAM
// =============================================================================

func TestDecoder_EventStreamDeltas(t *testing.T) {
	got := decodeAll(FormatEventStream, "data: {\"delta\":\"Hi\"}\n\ndata: {\"delta\":\" there\"}\n\n")
	assert.Equal(t, []string{"Hi", " there"}, got)
}

func TestDecoder_EventStreamPayloads(t *testing.T) {
	tests := []struct {
		name   string
		record string
		want   []string
	}{
		{"delta wins over content", `data: {"delta":"a","content":"b","text":"c"}`, []string{"a"}},
		{"null delta falls through", `data: {"delta":null,"content":"b"}`, []string{"b"}},
		{"text when alone", `data: {"text":"c"}`, []string{"c"}},
		{"object without fields is raw", `data: {"other":1}`, []string{`{"other":1}`}},
		{"non-json is raw", `data: hello world`, []string{"hello world"}},
		{"number field as json text", `data: {"delta":42}`, []string{"42"}},
		{"zero delta dropped", `data: {"delta":0}`, nil},
		{"float zero dropped", `data: {"delta":0.0}`, nil},
		{"false delta dropped", `data: {"delta":false}`, nil},
		{"falsy delta does not fall through", `data: {"delta":0,"content":"b"}`, nil},
		{"true delta as json text", `data: {"delta":true}`, []string{"true"}},
		{"zero string kept", `data: {"delta":"0"}`, []string{"0"}},
		{"empty delta dropped", `data: {"delta":""}`, nil},
		{"empty payload dropped", `data:`, nil},
		{"no space after colon", `data:tight`, []string{"tight"}},
		{"only one space stripped", `data:  two`, []string{" two"}},
		{"non-data fields ignored", "event: token\nid: 7\n: comment\ndata: x", []string{"x"}},
		{"several data lines", "data: a\ndata: b", []string{"a", "b"}},
		{"crlf line endings", "data: {\"delta\":\"r\"}\r", []string{"r"}},
		{"json string is raw", `data: "quoted"`, []string{`"quoted"`}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := decodeAll(FormatEventStream, tc.record+"\n\n")
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecoder_EventStreamTrailingBufferVerbatim(t *testing.T) {
	got := decodeAll(FormatEventStream, "data: {\"delta\":\"a\"}\n\ndata: {\"delta\":\"b\"}")
	assert.Equal(t, []string{"a", `data: {"delta":"b"}`}, got)
}

func TestDecoder_EventStreamSplitAnywhere(t *testing.T) {
	input := "data: {\"delta\":\"héllo\"}\n\n" +
		"data: {\"content\":\"wörld 🌍\"}\n\n" +
		"event: ping\n\n" +
		"data: plain ✓ text\n\n" +
		"data: {\"text\":\"日本語\"}\n\n"
	want := decodeAll(FormatEventStream, input)
	require.Equal(t, []string{"héllo", "wörld 🌍", "plain ✓ text", "日本語"}, want)

	// Every single split point, including inside multi-byte characters.
	for i := 1; i < len(input); i++ {
		got := decodeAll(FormatEventStream, input[:i], input[i:])
		if !assert.Equal(t, want, got, "split at byte %d", i) {
			return
		}
	}

	// Two split points.
	for i := 1; i < len(input); i += 3 {
		for j := i + 1; j < len(input); j += 5 {
			got := decodeAll(FormatEventStream, input[:i], input[i:j], input[j:])
			if !assert.Equal(t, want, got, "split at %d/%d", i, j) {
				return
			}
		}
	}
}

// =============================================================================
// LINE DELIMITED
// =============================================================================

func TestDecoder_Lines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"ndjson", "{\"delta\":\"a\"}\n{\"content\":\"b\"}\n{\"text\":\"c\"}\n", []string{"a", "b", "c"}},
		{"blank lines skipped", "one\n\n   \ntwo\n", []string{"one", "two"}},
		{"raw line keeps indentation", "  indented code\n", []string{"  indented code"}},
		{"structured line is trimmed", "   {\"delta\":\"x\"}   \n", []string{"x"}},
		{"object without fields is trimmed line", "  {\"id\":1}  \n", []string{`{"id":1}`}},
		{"bare json number", "42\n", []string{"42"}},
		{"crlf stripped", "hello\r\nworld\r\n", []string{"hello", "world"}},
		{"trailing line flushed", "a\nb", []string{"a", "b"}},
		{"trailing json flushed", "{\"delta\":\"a\"}\n{\"delta\":\"z\"}", []string{"a", "z"}},
		{"whitespace tail ignored", "a\n   ", []string{"a"}},
		{"zero delta kept", "{\"delta\":0}\n", []string{"0"}},
		{"trailing object without fields verbatim", "a\n  {\"id\":1}  ", []string{"a", "  {\"id\":1}  "}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, decodeAll(FormatLines, tc.input))
		})
	}
}

func TestDecoder_LinesTrailingEmittedOnce(t *testing.T) {
	d := NewDecoder(FormatLines)
	assert.Empty(t, d.Write([]byte("par")))
	assert.Empty(t, d.Write([]byte("tial")))
	assert.Equal(t, []string{"partial"}, d.Flush())
	assert.Empty(t, d.Flush(), "second flush must not re-emit")
}

func TestDecoder_LinesSplitAnywhere(t *testing.T) {
	input := "{\"delta\":\"ça\"}\nplain ✓\n{\"text\":\"終\"}"
	want := decodeAll(FormatLines, input)
	require.Equal(t, []string{"ça", "plain ✓", "終"}, want)
	for i := 1; i < len(input); i++ {
		assert.Equal(t, want, decodeAll(FormatLines, input[:i], input[i:]), "split at byte %d", i)
	}
}

// =============================================================================
// PUMP
// =============================================================================

func TestPump_ReassemblesUTF8AcrossReads(t *testing.T) {
	body := "data: {\"delta\":\"naïve\"}\n\ndata: 漢字\n\n"
	var got []string
	err := Pump(context.Background(), iotest.OneByteReader(strings.NewReader(body)),
		NewDecoder(FormatEventStream), func(tok string) { got = append(got, tok) })
	require.NoError(t, err)
	assert.Equal(t, []string{"naïve", "漢字"}, got)
}

func TestPump_FlushesAtEOF(t *testing.T) {
	var got []string
	err := Pump(context.Background(), strings.NewReader("first\nlast"),
		NewDecoder(FormatLines), func(tok string) { got = append(got, tok) })
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "last"}, got)
}

func TestPump_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Pump(ctx, strings.NewReader("data: x\n\n"), NewDecoder(FormatEventStream),
		func(string) { called = true })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestPump_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	body := io.MultiReader(strings.NewReader("ok\n"), iotest.ErrReader(boom))

	var got []string
	err := Pump(context.Background(), body, NewDecoder(FormatLines),
		func(tok string) { got = append(got, tok) })

	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"ok"}, got)
}
