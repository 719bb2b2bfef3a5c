// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/arogyalabs/medgraph/pkg/errors"
)

// PipelineMetrics tracks request throughput, tool outcomes, and fallback
// behavior for production monitoring.
type PipelineMetrics struct {
	// requestCounter tracks processed requests by dominant intent and outcome
	requestCounter metric.Int64Counter

	// toolFailureCounter tracks tool executions that ended in error
	toolFailureCounter metric.Int64Counter

	// graphQueryCounter tracks graph round trips by origin (fixed or generated)
	graphQueryCounter metric.Int64Counter

	// tierHistogram records which fallback tier produced each response
	tierHistogram metric.Int64Histogram

	// requestDuration records end-to-end request latency in milliseconds
	requestDuration metric.Float64Histogram

	// errorCounter tracks errors by code and component
	errorCounter metric.Int64Counter
}

// NewPipelineMetrics creates a pipeline metrics tracker with OTEL meters.
func NewPipelineMetrics(ctx context.Context) (*PipelineMetrics, error) {
	meter := otel.Meter("medgraph/pipeline")

	requestCounter, err := meter.Int64Counter(
		"medgraph.requests.total",
		metric.WithDescription("Processed requests by dominant intent and outcome"),
	)
	if err != nil {
		return nil, err
	}

	toolFailureCounter, err := meter.Int64Counter(
		"medgraph.tools.failures",
		metric.WithDescription("Tool executions that ended in error, by tool name"),
	)
	if err != nil {
		return nil, err
	}

	graphQueryCounter, err := meter.Int64Counter(
		"medgraph.graph.queries",
		metric.WithDescription("Graph queries executed, by origin"),
	)
	if err != nil {
		return nil, err
	}

	tierHistogram, err := meter.Int64Histogram(
		"medgraph.compose.tier",
		metric.WithDescription("Fallback tier that produced each response"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"medgraph.request.duration_ms",
		metric.WithDescription("End-to-end request latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"medgraph.errors.total",
		metric.WithDescription("Total errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		requestCounter:     requestCounter,
		toolFailureCounter: toolFailureCounter,
		graphQueryCounter:  graphQueryCounter,
		tierHistogram:      tierHistogram,
		requestDuration:    requestDuration,
		errorCounter:       errorCounter,
	}, nil
}

// RecordRequest records one completed request.
func (pm *PipelineMetrics) RecordRequest(ctx context.Context, dominantIntent, outcome string, durationMs float64) {
	if pm == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("intent", dominantIntent),
		attribute.String("outcome", outcome),
	)
	pm.requestCounter.Add(ctx, 1, attrs)
	pm.requestDuration.Record(ctx, durationMs, attrs)
}

// RecordToolFailure records a tool execution that ended in error.
func (pm *PipelineMetrics) RecordToolFailure(ctx context.Context, tool string) {
	if pm == nil {
		return
	}
	pm.toolFailureCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordGraphQuery records one graph round trip. Origin is "fixed" for
// canned statements and "generated" for model-produced Cypher.
func (pm *PipelineMetrics) RecordGraphQuery(ctx context.Context, origin string, rows int) {
	if pm == nil {
		return
	}
	pm.graphQueryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("origin", origin),
		attribute.Int("rows", rows),
	))
}

// RecordTier records which fallback tier produced a response.
func (pm *PipelineMetrics) RecordTier(ctx context.Context, tier int) {
	if pm == nil {
		return
	}
	pm.tierHistogram.Record(ctx, int64(tier))
}

// RecordError increments the error counter for the given error and component.
func (pm *PipelineMetrics) RecordError(ctx context.Context, err error, component string) {
	if pm == nil || err == nil {
		return
	}
	if me, ok := err.(*errors.MedgraphError); ok {
		pm.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("error.code", string(me.Code)),
			attribute.String("component", component),
			attribute.String("recoverable", me.RecoverableString()),
		))
		return
	}
	pm.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", "UNKNOWN"),
		attribute.String("component", component),
		attribute.String("recoverable", "unknown"),
	))
}
