// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for console messages and backends.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Agent"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single entry in the console transcript.
//
// Assistant messages start empty and grow through AppendToken while a stream
// is in flight. Content is never truncated in place; the only non-append
// mutation is SetError, which replaces the content with an error line.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content holds the finalized text. While streaming, appended tokens live in
	// stream and Text() returns the concatenation.
	Content string `json:"content"`

	// IsMarkdown selects the renderer. User messages are plain text.
	IsMarkdown bool `json:"is_markdown"`

	// Streaming state (not persisted)
	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	IsStreaming bool             `json:"-"`
	stream      *strings.Builder `json:"-"`

	// Backend that produced an assistant message.
	BackendID string `json:"backend_id,omitempty"`

	// Set when the reply ended in an error rather than a completed stream.
	Failed bool `json:"failed,omitempty"`
}

// NewUserMessage creates a plain-text user message.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      RoleUser,
		Timestamp: time.Now(),
		Content:   content,
	}
}

// NewAssistantMessage creates the empty placeholder that a stream fills in.
// Replies are assumed to be markdown until the stream says otherwise.
func NewAssistantMessage(backendID string) *Message {
	return &Message{
		ID:          generateID(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsMarkdown:  true,
		IsStreaming: true,
		BackendID:   backendID,
		stream:      &strings.Builder{},
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendToken appends a token to a streaming message. Tokens arriving after
// the message was finalized are dropped.
func (m *Message) AppendToken(token string) {
	if !m.IsStreaming || m.stream == nil {
		return
	}
	m.stream.WriteString(token)
}

// SetError replaces the content with the error text and switches the message
// to plain-text rendering.
func (m *Message) SetError(err error) {
	if m.stream != nil {
		m.stream.Reset()
	}
	m.Content = fmt.Sprintf("Error: %v", err)
	m.IsMarkdown = false
	m.Failed = true
}

// FinalizeStream folds the streamed text into Content and stops accepting
// tokens. The markdown flag is applied unless the message already failed.
func (m *Message) FinalizeStream(isMarkdown bool) {
	if !m.IsStreaming {
		return
	}
	if m.stream != nil {
		m.Content += m.stream.String()
		m.stream = nil
	}
	m.IsStreaming = false
	if !m.Failed {
		m.IsMarkdown = isMarkdown
	}
}

// Text returns the content to display (streaming or final).
func (m *Message) Text() string {
	if m.stream != nil {
		return m.Content + m.stream.String()
	}
	return m.Content
}

// Snapshot returns a detached copy that is safe to hand to a renderer while
// the original keeps streaming.
func (m *Message) Snapshot() Message {
	cp := *m
	cp.Content = m.Text()
	cp.stream = nil
	return cp
}

// Preview returns a truncated single-line preview of the message content.
func (m *Message) Preview(maxLen int) string {
	content := strings.ReplaceAll(m.Text(), "\n", " ")
	runes := []rune(content)
	if maxLen <= 3 || len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && (m.stream == nil || m.stream.Len() == 0)
}

// generateID creates a unique message ID.
func generateID() string {
	return "msg_" + uuid.NewString()
}
