// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxTurns bounds per-session history when no limit is configured.
const DefaultMaxTurns = 40

// InMemoryConversation keeps session history in process memory. Each session
// retains at most maxTurns entries; older turns are discarded on append.
// Data is lost on restart.
type InMemoryConversation struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
	maxTurns int
}

// NewInMemoryConversation creates a bounded in-memory conversation store.
func NewInMemoryConversation(maxTurns int) *InMemoryConversation {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &InMemoryConversation{
		sessions: make(map[string][]Turn),
		maxTurns: maxTurns,
	}
}

// Append adds a turn, trimming the oldest entries past the retention bound.
func (m *InMemoryConversation) Append(_ context.Context, sessionID string, turn Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.SessionID == "" {
		turn.SessionID = sessionID
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	turns := append(m.sessions[sessionID], turn)
	if len(turns) > m.maxTurns {
		turns = turns[len(turns)-m.maxTurns:]
	}
	m.sessions[sessionID] = turns
	return nil
}

// Recent returns the last limit turns, oldest first.
func (m *InMemoryConversation) Recent(_ context.Context, sessionID string, limit int) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.sessions[sessionID]
	if limit <= 0 || len(all) <= limit {
		out := make([]Turn, len(all))
		copy(out, all)
		return out, nil
	}
	out := make([]Turn, limit)
	copy(out, all[len(all)-limit:])
	return out, nil
}

// Clear removes a session's history.
func (m *InMemoryConversation) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

var _ Conversation = (*InMemoryConversation)(nil)
