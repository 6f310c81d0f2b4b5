// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
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
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer starts the spans of an agent run.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	debug    *DebugExporter
}

// NewTracer builds a tracer for cfg. Disabled tracing yields a no-op
// tracer. Stdout spans go to w, or os.Stdout when w is nil.
func NewTracer(ctx context.Context, cfg TracingConfig, w io.Writer) (*Tracer, error) {
	cfg.SetDefaults()
	if !cfg.Enabled {
		return NoopTracer(), nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		exporter sdktrace.SpanExporter
		debug    *DebugExporter
		err      error
	)
	switch cfg.Exporter {
	case ExporterStdout:
		if w == nil {
			w = os.Stdout
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	case ExporterDebug:
		debug = NewDebugExporter()
		exporter = debug
	default:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithTimeout(cfg.Timeout),
		}
		if cfg.IsInsecure() {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", cfg.Exporter, err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	spanOpt := sdktrace.WithBatcher(exporter)
	if debug != nil {
		spanOpt = sdktrace.WithSyncer(exporter)
	}
	tp := sdktrace.NewTracerProvider(
		spanOpt,
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	)

	return &Tracer{
		tracer:   tp.Tracer(cfg.ServiceName),
		provider: tp,
		debug:    debug,
	}, nil
}

// NoopTracer returns a tracer that records nothing.
func NoopTracer() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer(DefaultServiceName)}
}

func (t *Tracer) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil {
		return NoopTracer().start(ctx, name, attrs...)
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartAgentRun opens the span covering one run.
func (t *Tracer) StartAgentRun(ctx context.Context, agentName, threadID string) (context.Context, trace.Span) {
	return t.start(ctx, SpanAgentRun,
		attribute.String(AttrAgentName, agentName),
		attribute.String(AttrThreadID, threadID))
}

// StartLLMCall opens the span covering one model call.
func (t *Tracer) StartLLMCall(ctx context.Context, model string) (context.Context, trace.Span) {
	return t.start(ctx, SpanLLMCall, attribute.String(AttrLLMModel, model))
}

// StartToolExecution opens the span covering one tool call.
func (t *Tracer) StartToolExecution(ctx context.Context, toolName, callID string) (context.Context, trace.Span) {
	return t.start(ctx, SpanToolExecution,
		attribute.String(AttrToolName, toolName),
		attribute.String(AttrToolCallID, callID))
}

// StartSinkWrite opens the span covering one telemetry write.
func (t *Tracer) StartSinkWrite(ctx context.Context, backend string) (context.Context, trace.Span) {
	return t.start(ctx, SpanSinkWrite, attribute.String(AttrSinkBackend, backend))
}

// AddLLMUsage records token usage on span.
func (t *Tracer) AddLLMUsage(span trace.Span, inputTokens, outputTokens int, finishReason string) {
	span.SetAttributes(
		attribute.Int(AttrLLMTokensInput, inputTokens),
		attribute.Int(AttrLLMTokensOutput, outputTokens),
		attribute.String(AttrLLMFinishReason, finishReason),
	)
}

// RecordError marks span as failed. A nil err is ignored.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// DebugExporter returns the in-memory exporter, or nil unless the
// "debug" exporter is configured.
func (t *Tracer) DebugExporter() *DebugExporter {
	if t == nil {
		return nil
	}
	return t.debug
}

// Shutdown flushes and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
