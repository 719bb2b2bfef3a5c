// SPDX-License-Identifier: Apache-2.0

// Package audit records who asked what and which data was touched. Every
// processed request produces one event; authorization rejections are
// recorded too.
package audit

import (
	"context"
	"time"

	"github.com/arogyalabs/medgraph/pkg/core"
)

// Event is one audited request.
type Event struct {
	RequestID string
	ActorID   string
	ActorRole string
	SubjectID string
	Query     string
	Intents   []core.Intent
	Tools     []core.ToolName
	Outcome   string // "answered" or "unauthorized"
	Tier      int
	// Confidence is the response confidence; zero for rejections.
	Confidence float64
	// Queries lists generated graph statements the request executed.
	Queries   []string
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// Filter narrows event listings.
type Filter struct {
	ActorID   string
	SubjectID string
	Outcome   string
	Limit     int
}

// Store persists audit events.
type Store interface {
	Record(ctx context.Context, event Event) error
	List(ctx context.Context, filter Filter) ([]Event, error)
}

// NopStore discards events. Used when auditing is disabled.
type NopStore struct{}

func (NopStore) Record(ctx context.Context, event Event) error       { return nil }
func (NopStore) List(ctx context.Context, f Filter) ([]Event, error) { return nil, nil }

var _ Store = NopStore{}
