// SPDX-License-Identifier: Apache-2.0

// Package tools implements the closed set of retrieval tools and their
// registry. Tools never panic outward and never raise to the caller; every
// execution settles into a core.ToolResult.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arogyalabs/medgraph/pkg/core"
	"github.com/arogyalabs/medgraph/pkg/errors"
)

// Params carries the validated inputs for one tool execution.
type Params struct {
	Query     string
	Actor     core.Actor
	SubjectID string
	RecordID  string
}

// Tool is one retrieval tool. Implementations live in this package only;
// the set is closed at compile time.
type Tool interface {
	Name() core.ToolName

	// Validate checks params before execution. Validation failures become
	// INVALID_INPUT tool results.
	Validate(p Params) error

	// Execute runs the tool. The bool reports an empty (but successful)
	// result. The returned queries list any generated graph statements.
	Execute(ctx context.Context, p Params) (data any, empty bool, queries []string, err error)
}

// intentTools maps each intent to the tools that serve it, in priority order.
var intentTools = map[core.Intent][]core.ToolName{
	core.IntentMedicalHistory:     {core.ToolMedicalHistoryReport},
	core.IntentLatestPrescription: {core.ToolLatestPrescription},
	core.IntentSearchRecords:      {core.ToolSearchHealthRecords},
	core.IntentGenerateSummary:    {core.ToolHealthSummary},
	core.IntentQueryRecord:        {core.ToolQueryMedicalRecord},
	core.IntentGeneralQuery:       {core.ToolSearchHealthRecords},
}

// Resolve maps classified intents to a deduplicated, ordered tool list.
// The result is never empty: unmapped or absent intents resolve to the
// search tool.
func Resolve(intents []core.Intent) []core.ToolName {
	var out []core.ToolName
	seen := make(map[core.ToolName]bool)
	for _, in := range intents {
		names, ok := intentTools[in]
		if !ok {
			names = intentTools[core.IntentGeneralQuery]
		}
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	if len(out) == 0 {
		out = append(out, core.ToolSearchHealthRecords)
	}
	return out
}

// Registry holds the closed tool set.
type Registry struct {
	tools  map[core.ToolName]Tool
	logger *slog.Logger
}

// NewRegistry builds the registry over the given dependencies.
func NewRegistry(deps Deps) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:  make(map[core.ToolName]Tool),
		logger: logger,
	}
	for _, t := range builtinTools(deps) {
		r.tools[t.Name()] = t
	}
	return r
}

// Get returns the named tool, or an error for names outside the closed set.
func (r *Registry) Get(name core.ToolName) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			fmt.Sprintf("unknown tool %q", name), nil)
	}
	return t, nil
}

// Names returns the registered tool names in the canonical order.
func (r *Registry) Names() []core.ToolName {
	var out []core.ToolName
	for _, name := range core.AllTools() {
		if _, ok := r.tools[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Execute runs the named tool and settles the outcome into a ToolResult.
// Panics, validation failures, and execution errors all become failed
// results; they never propagate.
func (r *Registry) Execute(ctx context.Context, name core.ToolName, p Params) (result core.ToolResult) {
	result = core.ToolResult{Tool: name}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "tool panicked",
				slog.String("tool", string(name)),
				slog.Any("panic", rec))
			result = core.ToolResult{
				Tool:  name,
				Error: fmt.Sprintf("tool panicked: %v", rec),
			}
		}
	}()

	t, err := r.Get(name)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	if err := t.Validate(p); err != nil {
		result.Error = errors.New(errors.CodeInvalidInput, "invalid tool parameters", err).Error()
		return result
	}

	data, empty, queries, err := t.Execute(ctx, p)
	if err != nil {
		result.Error = err.Error()
		result.Queries = queries
		return result
	}

	result.Success = true
	result.Data = data
	result.Empty = empty
	result.Queries = queries
	return result
}
