// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package compose implements the prompt composer: reusable prompt templates,
// size statistics and markdown detection for the preview pane.
package compose

import (
	"regexp"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/jeranaias/promptcon/internal/util"
)

// =============================================================================
// TEMPLATES
// =============================================================================

// Template is a named prompt skeleton.
type Template struct {
	ID   string
	Name string
	Body string
}

var templates = []Template{
	{
		ID:   "analysis",
		Name: "Structured Analysis",
		Body: "## Task\n\n## Constraints\n\n## Reasoning\n- \n\n## Answer\n",
	},
	{
		ID:   "code-review",
		Name: "Code Review",
		Body: "### Context\n\n### Issues\n- \n\n### Suggestions\n- \n",
	},
	{
		ID:   "rag-query",
		Name: "RAG Query",
		Body: "Use sources: {{sources}}\n\nUser question: {{question}}\n\nReturn citations.",
	},
}

// Templates returns the built-in templates.
func Templates() []Template {
	return append([]Template(nil), templates...)
}

// FindTemplate looks a template up by id.
func FindTemplate(id string) (Template, bool) {
	for _, t := range templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Apply appends a template to the current draft, separated by a blank line.
func Apply(draft string, t Template) string {
	if draft == "" {
		return t.Body
	}
	return draft + "\n\n" + t.Body
}

// =============================================================================
// STATS
// =============================================================================

// Stats summarizes the size of a draft.
type Stats struct {
	Chars int
	Words int
	// Tokens is the cl100k token count, or chars/4 rounded up if the
	// encoder is unavailable.
	Tokens int
}

var (
	codec     tokenizer.Codec
	codecOnce sync.Once
	codecErr  error
)

func getCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// Measure computes the stats shown under the composer.
func Measure(text string) Stats {
	chars := util.RuneLen(text)
	return Stats{
		Chars:  chars,
		Words:  util.WordCount(text),
		Tokens: EstimateTokens(text),
	}
}

// EstimateTokens returns the token count of text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if c, err := getCodec(); err == nil {
		if ids, _, err := c.Encode(text); err == nil {
			return len(ids)
		}
	}
	return (util.RuneLen(text) + 3) / 4
}

// =============================================================================
// MARKDOWN DETECTION
// =============================================================================

var markdownHint = regexp.MustCompile("[#_*`>|-]|\\|.*\\|")

// LooksLikeMarkdown reports whether text contains markdown syntax worth
// previewing.
func LooksLikeMarkdown(text string) bool {
	return markdownHint.MatchString(strings.TrimSpace(text))
}
