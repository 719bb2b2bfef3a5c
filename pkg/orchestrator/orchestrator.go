// SPDX-License-Identifier: Apache-2.0

// Package orchestrator drives a request through the pipeline: classify,
// select tools, execute them in parallel, assemble context, compose. The
// authorization gate runs before any tool touches data, and every request
// that clears it produces a response.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/arogyalabs/medgraph/pkg/assembler"
	"github.com/arogyalabs/medgraph/pkg/audit"
	"github.com/arogyalabs/medgraph/pkg/compose"
	"github.com/arogyalabs/medgraph/pkg/core"
	"github.com/arogyalabs/medgraph/pkg/errors"
	"github.com/arogyalabs/medgraph/pkg/intent"
	"github.com/arogyalabs/medgraph/pkg/memory"
	"github.com/arogyalabs/medgraph/pkg/resilience"
	"github.com/arogyalabs/medgraph/pkg/telemetry"
	"github.com/arogyalabs/medgraph/pkg/tools"
	"github.com/arogyalabs/medgraph/pkg/translate"
)

// Deps wires the orchestrator's collaborators. Classifier, Registry, and
// Composer are required; the rest default to no-ops.
type Deps struct {
	Classifier   *intent.Classifier
	Registry     *tools.Registry
	Composer     *compose.Composer
	Audit        audit.Store
	Conversation memory.Conversation
	Translator   translate.Translator
	Metrics      *telemetry.PipelineMetrics
	Logger       *slog.Logger

	ContextBudget  int
	ToolTimeout    time.Duration
	RequestTimeout time.Duration
}

// Orchestrator is the per-request state machine.
type Orchestrator struct {
	classifier   *intent.Classifier
	registry     *tools.Registry
	composer     *compose.Composer
	auditStore   audit.Store
	conversation memory.Conversation
	translator   translate.Translator
	metrics      *telemetry.PipelineMetrics
	logger       *slog.Logger
	tracer       trace.Tracer

	contextBudget  int
	toolTimeout    time.Duration
	requestTimeout time.Duration
}

// New creates an Orchestrator.
func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auditStore := deps.Audit
	if auditStore == nil {
		auditStore = audit.NopStore{}
	}
	conversation := deps.Conversation
	if conversation == nil {
		conversation = memory.NopConversation{}
	}
	budget := deps.ContextBudget
	if budget <= 0 {
		budget = 8192
	}
	toolTimeout := deps.ToolTimeout
	if toolTimeout <= 0 {
		toolTimeout = 15 * time.Second
	}
	return &Orchestrator{
		classifier:     deps.Classifier,
		registry:       deps.Registry,
		composer:       deps.Composer,
		auditStore:     auditStore,
		conversation:   conversation,
		translator:     deps.Translator,
		metrics:        deps.Metrics,
		logger:         logger,
		tracer:         otel.Tracer("medgraph/orchestrator"),
		contextBudget:  budget,
		toolTimeout:    toolTimeout,
		requestTimeout: deps.RequestTimeout,
	}
}

// Process runs one request through the pipeline. It returns an error only
// when the authorization gate rejects the request; everything past the
// gate degrades the response instead of surfacing.
func (o *Orchestrator) Process(ctx context.Context, req core.Request) (*core.Response, error) {
	ctx, requestID := core.EnsureRequestID(ctx)
	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.process")
	defer span.End()

	if req.SubjectID == "" {
		req.SubjectID = req.Actor.ID
	}
	state := core.NewAgentState(requestID, req)
	span.SetAttributes(telemetry.RequestAttributes(requestID, string(req.Actor.Role), req.SessionID, len(req.Query))...)

	// The gate runs before classification so no tool, query, or model
	// ever sees data the actor may not read.
	if !req.Actor.CanAccess(req.SubjectID) {
		err := errors.New(errors.CodeUnauthorized, "actor may not access this subject's records", nil).
			WithContext("actor_id", req.Actor.ID).
			WithContext("subject_id", req.SubjectID)
		o.finishRejected(ctx, state, req, "unauthorized", err)
		return nil, err
	}

	state.Intents = o.classifier.Classify(req.Query)
	o.advance(ctx, state, core.StageClassified)

	state.SelectedTools = tools.Resolve(state.Intents)
	o.advance(ctx, state, core.StageToolsSelected)

	o.advance(ctx, state, core.StageExecuting)
	o.executeTools(ctx, state, req)

	role := req.Actor.Role
	state.Bundle = assembler.New(o.contextBudget, role).Assemble(state.SelectedTools, state.ToolResults)
	o.advance(ctx, state, core.StageContextReady)

	o.advance(ctx, state, core.StageComposing)
	resp := o.composer.Compose(ctx, compose.Input{
		Query:    req.Query,
		Actor:    req.Actor,
		Intents:  state.Intents,
		Selected: state.SelectedTools,
		Results:  state.ToolResults,
		Bundle:   state.Bundle,
	})
	resp.Text = translate.Apply(ctx, o.translator, o.logger, resp.Text, req.PreferredLanguage)
	state.Response = resp
	o.advance(ctx, state, core.StageDone)

	o.remember(ctx, req, resp)
	o.record(ctx, state, req, "answered", "")

	if o.metrics != nil {
		o.metrics.RecordRequest(ctx, string(state.DominantIntent()), "answered",
			float64(time.Since(state.StartedAt).Milliseconds()))
		o.metrics.RecordTier(ctx, resp.Tier)
	}
	span.SetAttributes(telemetry.ComposeAttributes(resp.Tier, resp.Confidence,
		len(state.Bundle.Items), state.Bundle.Size())...)

	return resp, nil
}

// executeTools runs every selected tool concurrently and waits for all of
// them. Each execution settles into a ToolResult; a tool blowing its
// timeout fails alone without aborting its siblings.
func (o *Orchestrator) executeTools(ctx context.Context, state *core.AgentState, req core.Request) {
	params := tools.Params{
		Query:     req.Query,
		Actor:     req.Actor,
		SubjectID: req.SubjectID,
		RecordID:  req.RecordID,
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, name := range state.SelectedTools {
		wg.Add(1)
		go func(name core.ToolName) {
			defer wg.Done()
			result := o.executeTool(ctx, name, params)
			mu.Lock()
			state.ToolResults[name] = result
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	for _, name := range state.SelectedTools {
		res := state.ToolResults[name]
		if !res.Success {
			o.logger.WarnContext(ctx, "tool failed",
				slog.String("tool", string(name)),
				slog.String("error", res.Error))
			if o.metrics != nil {
				o.metrics.RecordToolFailure(ctx, string(name))
			}
		}
	}
}

func (o *Orchestrator) executeTool(ctx context.Context, name core.ToolName, params tools.Params) core.ToolResult {
	ctx, span := o.tracer.Start(ctx, "tool."+string(name))
	defer span.End()
	started := time.Now()

	value, err := resilience.WithTimeoutResult(ctx,
		resilience.TimeoutConfig{Duration: o.toolTimeout},
		func(ctx context.Context) (interface{}, error) {
			return o.registry.Execute(ctx, name, params), nil
		})

	var result core.ToolResult
	if err != nil {
		result = core.ToolResult{Tool: name, Error: err.Error()}
	} else {
		result = value.(core.ToolResult)
	}
	span.SetAttributes(telemetry.ToolAttributes(string(name),
		float64(time.Since(started).Milliseconds()), result.Success, result.Empty)...)
	return result
}

func (o *Orchestrator) advance(ctx context.Context, state *core.AgentState, next core.Stage) {
	o.logger.DebugContext(ctx, "stage transition",
		slog.String("request_id", state.RequestID),
		slog.String("from", string(state.Stage)),
		slog.String("to", string(next)))
	state.Stage = next
}

func (o *Orchestrator) finishRejected(ctx context.Context, state *core.AgentState, req core.Request, outcome string, err error) {
	state.Stage = core.StageFailed
	o.logger.WarnContext(ctx, "request rejected",
		slog.String("request_id", state.RequestID),
		slog.String("outcome", outcome),
		slog.String("error", err.Error()))
	o.record(ctx, state, req, outcome, err.Error())
	if o.metrics != nil {
		o.metrics.RecordRequest(ctx, string(state.DominantIntent()), outcome,
			float64(time.Since(state.StartedAt).Milliseconds()))
		o.metrics.RecordError(ctx, err, "orchestrator")
	}
}

func (o *Orchestrator) record(ctx context.Context, state *core.AgentState, req core.Request, outcome, errText string) {
	tier := 0
	confidence := 0.0
	var queries []string
	if state.Response != nil {
		tier = state.Response.Tier
		confidence = state.Response.Confidence
		queries = state.Response.ExecutedQueries
	}
	event := audit.Event{
		RequestID:  state.RequestID,
		ActorID:    req.Actor.ID,
		ActorRole:  string(req.Actor.Role),
		SubjectID:  req.SubjectID,
		Query:      req.Query,
		Intents:    state.Intents,
		Tools:      state.SelectedTools,
		Outcome:    outcome,
		Tier:       tier,
		Confidence: confidence,
		Queries:    queries,
		Error:      errText,
		StartedAt:  state.StartedAt,
		Duration:   time.Since(state.StartedAt),
	}
	if err := o.auditStore.Record(ctx, event); err != nil {
		o.logger.ErrorContext(ctx, "audit record failed",
			slog.String("request_id", state.RequestID),
			slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) remember(ctx context.Context, req core.Request, resp *core.Response) {
	if req.SessionID == "" {
		return
	}
	if err := o.conversation.Append(ctx, req.SessionID, memory.Turn{Role: "user", Content: req.Query}); err != nil {
		o.logger.WarnContext(ctx, "conversation append failed", slog.String("error", err.Error()))
		return
	}
	if err := o.conversation.Append(ctx, req.SessionID, memory.Turn{Role: "assistant", Content: resp.Text}); err != nil {
		o.logger.WarnContext(ctx, "conversation append failed", slog.String("error", err.Error()))
	}
}
