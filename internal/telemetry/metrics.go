package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ToolCallOutcome is the outcome label attached to tool call metrics.
type ToolCallOutcome string

const (
	ToolCallOutcomeSuccess ToolCallOutcome = "success"
	ToolCallOutcomeError   ToolCallOutcome = "error"
)

// CustomMetrics records the application-level metrics of deskmcp.
type CustomMetrics interface {
	// RecordToolCall records a single tool invocation served by (or sent to) a tool server.
	RecordToolCall(ctx context.Context, serverName, toolName string, outcome ToolCallOutcome, elapsed time.Duration)

	// RecordAgentRun records one complete agent run. outcome is "success" or the error kind.
	RecordAgentRun(ctx context.Context, outcome string, toolCalls int, elapsed time.Duration)
}

type noopCustomMetrics struct{}

// NewNoopCustomMetrics returns a CustomMetrics implementation that does nothing.
func NewNoopCustomMetrics() CustomMetrics {
	return noopCustomMetrics{}
}

func (noopCustomMetrics) RecordToolCall(context.Context, string, string, ToolCallOutcome, time.Duration) {
}

func (noopCustomMetrics) RecordAgentRun(context.Context, string, int, time.Duration) {}

type otelCustomMetrics struct {
	toolCalls        metric.Int64Counter
	toolCallLatency  metric.Float64Histogram
	agentRuns        metric.Int64Counter
	agentRunLatency  metric.Float64Histogram
	agentRunToolUses metric.Int64Histogram
}

// NewOtelCustomMetrics creates the metric instruments on the given meter.
func NewOtelCustomMetrics(meter metric.Meter) (CustomMetrics, error) {
	toolCalls, err := meter.Int64Counter(
		"deskmcp_tool_calls_total",
		metric.WithDescription("Number of tool calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}
	toolCallLatency, err := meter.Float64Histogram(
		"deskmcp_tool_call_duration_seconds",
		metric.WithDescription("Latency of tool calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool call latency histogram: %w", err)
	}
	agentRuns, err := meter.Int64Counter(
		"deskmcp_agent_runs_total",
		metric.WithDescription("Number of agent runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent runs counter: %w", err)
	}
	agentRunLatency, err := meter.Float64Histogram(
		"deskmcp_agent_run_duration_seconds",
		metric.WithDescription("Latency of complete agent runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent run latency histogram: %w", err)
	}
	agentRunToolUses, err := meter.Int64Histogram(
		"deskmcp_agent_run_tool_calls",
		metric.WithDescription("Number of tool calls made during an agent run"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent run tool calls histogram: %w", err)
	}

	return &otelCustomMetrics{
		toolCalls:        toolCalls,
		toolCallLatency:  toolCallLatency,
		agentRuns:        agentRuns,
		agentRunLatency:  agentRunLatency,
		agentRunToolUses: agentRunToolUses,
	}, nil
}

func (m *otelCustomMetrics) RecordToolCall(
	ctx context.Context, serverName, toolName string, outcome ToolCallOutcome, elapsed time.Duration,
) {
	attrs := metric.WithAttributes(
		attribute.String("server", serverName),
		attribute.String("tool", toolName),
		attribute.String("outcome", string(outcome)),
	)
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolCallLatency.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *otelCustomMetrics) RecordAgentRun(ctx context.Context, outcome string, toolCalls int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.agentRuns.Add(ctx, 1, attrs)
	m.agentRunLatency.Record(ctx, elapsed.Seconds(), attrs)
	m.agentRunToolUses.Record(ctx, int64(toolCalls), attrs)
}
