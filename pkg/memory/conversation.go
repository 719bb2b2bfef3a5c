// SPDX-License-Identifier: Apache-2.0

// Package memory holds per-session conversation history and the optional
// semantic index over health record summaries.
package memory

import (
	"context"
	"time"
)

// Turn is one exchange entry in a session's history.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // user or assistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation stores ordered turns per session so follow-up questions can
// carry prior context.
type Conversation interface {
	// Append adds a turn to the session history.
	Append(ctx context.Context, sessionID string, turn Turn) error

	// Recent returns the last limit turns for a session, oldest first.
	// A limit of zero or less returns the full retained history.
	Recent(ctx context.Context, sessionID string, limit int) ([]Turn, error)

	// Clear removes all turns for a session.
	Clear(ctx context.Context, sessionID string) error
}

// NopConversation retains nothing. Used when conversation memory is disabled.
type NopConversation struct{}

func (NopConversation) Append(ctx context.Context, sessionID string, turn Turn) error { return nil }
func (NopConversation) Recent(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	return nil, nil
}
func (NopConversation) Clear(ctx context.Context, sessionID string) error { return nil }

var _ Conversation = NopConversation{}
