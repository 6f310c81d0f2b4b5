// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	globalMetrics Metrics = NoopMetrics{}
	metricsMu     sync.RWMutex
)

// Metrics records run, model, tool and sink measurements.
type Metrics interface {
	RecordAgentRun(ctx context.Context, agent string, duration time.Duration, tokens int, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordSinkWrite(ctx context.Context, backend string, duration time.Duration, err error)
	Handler() http.Handler
}

// PrometheusMetrics records through an OpenTelemetry meter exported to a
// private Prometheus registry.
type PrometheusMetrics struct {
	handler http.Handler

	agentDuration metric.Float64Histogram
	agentRuns     metric.Int64Counter
	agentErrors   metric.Int64Counter
	agentTokens   metric.Int64Counter

	toolDuration metric.Float64Histogram
	toolCalls    metric.Int64Counter
	toolErrors   metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrors       metric.Int64Counter

	sinkWrites metric.Int64Counter
	sinkErrors metric.Int64Counter
}

// InitMetrics builds PrometheusMetrics for cfg. Disabled metrics yield
// NoopMetrics.
func InitMetrics(cfg MetricsConfig) (Metrics, error) {
	cfg.SetDefaults()
	if !cfg.Enabled {
		return NoopMetrics{}, nil
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)).Meter(cfg.Namespace)

	m := &PrometheusMetrics{handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
	name := func(s string) string { return cfg.Namespace + "_" + s }

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.agentDuration, "agent_run_duration_seconds", "Agent run duration in seconds"},
		{&m.toolDuration, "tool_execution_duration_seconds", "Tool execution duration in seconds"},
		{&m.llmDuration, "llm_request_duration_seconds", "LLM request duration in seconds"},
	}
	for _, h := range histograms {
		if *h.dst, err = meter.Float64Histogram(name(h.name), metric.WithDescription(h.desc), metric.WithUnit("s")); err != nil {
			return nil, fmt.Errorf("failed to create %s histogram: %w", h.name, err)
		}
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.agentRuns, "agent_runs_total", "Total agent runs"},
		{&m.agentErrors, "agent_errors_total", "Total failed agent runs"},
		{&m.agentTokens, "agent_tokens_used_total", "Total tokens used by agent runs"},
		{&m.toolCalls, "tool_calls_total", "Total tool calls"},
		{&m.toolErrors, "tool_errors_total", "Total tool errors"},
		{&m.llmInputTokens, "llm_tokens_input_total", "Total input tokens sent to LLM"},
		{&m.llmOutputTokens, "llm_tokens_output_total", "Total output tokens from LLM"},
		{&m.llmErrors, "llm_errors_total", "Total LLM errors"},
		{&m.sinkWrites, "sink_writes_total", "Total telemetry sink writes"},
		{&m.sinkErrors, "sink_errors_total", "Total telemetry sink failures"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(name(c.name), metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	return m, nil
}

func (m *PrometheusMetrics) RecordAgentRun(ctx context.Context, agent string, duration time.Duration, tokens int, err error) {
	attrs := metric.WithAttributes(attribute.String(AttrAgentName, agent))
	m.agentDuration.Record(ctx, duration.Seconds(), attrs)
	m.agentRuns.Add(ctx, 1, attrs)
	if tokens > 0 {
		m.agentTokens.Add(ctx, int64(tokens), attrs)
	}
	if err != nil {
		m.agentErrors.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String(AttrToolName, tool))
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCalls.Add(ctx, 1, attrs)
	if err != nil {
		m.toolErrors.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	attrs := metric.WithAttributes(attribute.String(AttrLLMModel, model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	m.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	m.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordSinkWrite(ctx context.Context, backend string, _ time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String(AttrSinkBackend, backend))
	m.sinkWrites.Add(ctx, 1, attrs)
	if err != nil {
		m.sinkErrors.Add(ctx, 1, attrs)
	}
}

// Handler serves the Prometheus text exposition.
func (m *PrometheusMetrics) Handler() http.Handler {
	return m.handler
}

// SetGlobalMetrics replaces the process-wide recorder.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if m == nil {
		m = NoopMetrics{}
	}
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide recorder; NoopMetrics until
// one is set.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
