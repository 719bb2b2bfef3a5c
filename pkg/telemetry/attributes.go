// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for medgraph pipeline telemetry.
// These follow OpenTelemetry naming conventions where applicable.
const (
	// Request attributes
	AttrRequestID   = "medgraph.request.id"
	AttrActorRole   = "medgraph.actor.role"
	AttrSubjectID   = "medgraph.subject.id"
	AttrSessionID   = "medgraph.session.id"
	AttrQueryLength = "medgraph.query.length"

	// Intent attributes
	AttrIntents       = "medgraph.intents"
	AttrDominantIntent = "medgraph.intent.dominant"

	// Tool attributes
	AttrToolName       = "medgraph.tool.name"
	AttrToolSuccess    = "medgraph.tool.success"
	AttrToolEmpty      = "medgraph.tool.empty"
	AttrToolDurationMs = "medgraph.tool.duration_ms"
	AttrToolsSelected  = "medgraph.tools.selected"

	// Graph attributes
	AttrGraphDatabase = "medgraph.graph.database"
	AttrGraphRowCount = "medgraph.graph.row_count"
	AttrGraphQueryGenerated = "medgraph.graph.query_generated"

	// Context bundle attributes
	AttrBundleItems = "medgraph.bundle.items"
	AttrBundleBytes = "medgraph.bundle.bytes"

	// Composition attributes
	AttrComposeTier  = "medgraph.compose.tier"
	AttrConfidence   = "medgraph.compose.confidence"

	// LLM attributes (extending standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
)

// RequestAttributes returns common attributes for request-level spans.
func RequestAttributes(requestID, role, sessionID string, queryLen int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRequestID, requestID),
		attribute.Int(AttrQueryLength, queryLen),
	}
	if role != "" {
		attrs = append(attrs, attribute.String(AttrActorRole, role))
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(AttrSessionID, sessionID))
	}
	return attrs
}

// IntentAttributes returns attributes describing classification output.
func IntentAttributes(intents []string, dominant string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.StringSlice(AttrIntents, intents),
	}
	if dominant != "" {
		attrs = append(attrs, attribute.String(AttrDominantIntent, dominant))
	}
	return attrs
}

// ToolAttributes returns attributes for a tool execution span.
func ToolAttributes(name string, durationMs float64, success, empty bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.Float64(AttrToolDurationMs, durationMs),
		attribute.Bool(AttrToolSuccess, success),
		attribute.Bool(AttrToolEmpty, empty),
	}
}

// GraphAttributes returns attributes for a graph query span.
func GraphAttributes(database string, rows int, generated bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrGraphDatabase, database),
		attribute.Int(AttrGraphRowCount, rows),
		attribute.Bool(AttrGraphQueryGenerated, generated),
	}
}

// ComposeAttributes returns attributes for the response composition span.
func ComposeAttributes(tier int, confidence float64, bundleItems, bundleBytes int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrComposeTier, tier),
		attribute.Float64(AttrConfidence, confidence),
		attribute.Int(AttrBundleItems, bundleItems),
		attribute.Int(AttrBundleBytes, bundleBytes),
	}
}

// LLMUsageAttributes returns token usage attributes for a model call span.
func LLMUsageAttributes(model, provider string, inputTokens, outputTokens int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	return attrs
}
