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

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/observability"
	"github.com/kadirpekel/langsketch/pkg/telemetry/warehouse"
)

// ErrSinkFailed wraps every telemetry emission failure.
var ErrSinkFailed = errors.New("telemetry sink failed")

// Sink receives execution records.
type Sink interface {
	Write(ctx context.Context, records ...*Record) error
}

// Discard drops every record.
var Discard Sink = discard{}

type discard struct{}

func (discard) Write(context.Context, ...*Record) error { return nil }

// Hints logged when a warehouse write fails.
var failureHints = []string{
	"Warehouse authentication (DATABRICKS_HOST, DATABRICKS_TOKEN or " + config.CredentialsFile + ")",
	"Warehouse availability",
	"Record format",
	"Network connectivity",
}

// WarehouseSink writes records to a warehouse table, creating the table on
// first use.
type WarehouseSink struct {
	exec    warehouse.Executor
	table   string
	tracer  *observability.Tracer
	metrics observability.Metrics

	mu    sync.Mutex
	ready bool
}

type SinkOption func(*WarehouseSink)

// WithTable overrides config.DefaultTelemetryTable.
func WithTable(table string) SinkOption {
	return func(s *WarehouseSink) {
		if table != "" {
			s.table = table
		}
	}
}

func WithTracer(t *observability.Tracer) SinkOption {
	return func(s *WarehouseSink) {
		s.tracer = t
	}
}

func WithMetrics(m observability.Metrics) SinkOption {
	return func(s *WarehouseSink) {
		s.metrics = m
	}
}

func NewWarehouseSink(exec warehouse.Executor, opts ...SinkOption) *WarehouseSink {
	s := &WarehouseSink{
		exec:  exec,
		table: config.DefaultTelemetryTable,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = observability.NoopTracer()
	}
	if s.metrics == nil {
		s.metrics = observability.GetGlobalMetrics()
	}
	return s
}

// Table returns the target table name.
func (s *WarehouseSink) Table() string {
	return s.table
}

// Write creates the table if needed and inserts one row per record.
func (s *WarehouseSink) Write(ctx context.Context, records ...*Record) error {
	backend := s.exec.Dialect().Name
	ctx, span := s.tracer.StartSinkWrite(ctx, backend)
	defer span.End()

	start := time.Now()
	err := s.write(ctx, records)
	s.metrics.RecordSinkWrite(ctx, backend, time.Since(start), err)
	s.tracer.RecordError(span, err)

	if err != nil {
		slog.Error("Failed to upload telemetry", "table", s.table, "backend", backend, "error", err)
		for i, hint := range failureHints {
			slog.Info("Check: "+hint, "hint", i+1)
		}
		return fmt.Errorf("%w: %v", ErrSinkFailed, err)
	}
	return nil
}

func (s *WarehouseSink) write(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return errors.New("no records to write")
	}
	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		slog.Debug("Telemetry payload\n" + DescribeJSON(records))
	}

	if err := s.ensureTable(ctx); err != nil {
		return err
	}

	dialect := s.exec.Dialect()
	for i, r := range records {
		if err := s.exec.Exec(ctx, InsertSQL(s.table, r, dialect)); err != nil {
			return fmt.Errorf("insert %d/%d failed: %w", i+1, len(records), err)
		}
		slog.Debug("Inserted telemetry record", "agent", r.AgentName, "n", i+1, "of", len(records))
	}
	return nil
}

func (s *WarehouseSink) ensureTable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if err := s.exec.Exec(ctx, CreateTableSQL(s.table, s.exec.Dialect())); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	s.ready = true
	slog.Debug("Telemetry table ready", "table", s.table)
	return nil
}

// Summary is the headline view of one stored record.
type Summary struct {
	AgentName       string
	MostUsedTool    string
	ToolsUsedCount  int
	TotalToolCalls  int
	DurationSeconds float64
	EfficiencyScore float64
}

// Summaries reads back the stored records of agent, newest first.
func (s *WarehouseSink) Summaries(ctx context.Context, agent string) ([]Summary, error) {
	rows, err := s.exec.Query(ctx, SummarySQL(s.table, agent, s.exec.Dialect()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSinkFailed, err)
	}
	out := make([]Summary, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		sum := Summary{AgentName: row[0], MostUsedTool: row[1]}
		sum.ToolsUsedCount, _ = strconv.Atoi(row[2])
		sum.TotalToolCalls, _ = strconv.Atoi(row[3])
		sum.DurationSeconds, _ = strconv.ParseFloat(row[4], 64)
		sum.EfficiencyScore, _ = strconv.ParseFloat(row[5], 64)
		out = append(out, sum)
	}
	return out, nil
}

// AuditSink appends records to per-agent audit files in a directory.
type AuditSink struct {
	Dir string
}

func (s AuditSink) Write(_ context.Context, records ...*Record) error {
	for _, r := range records {
		if err := AppendAudit(AuditPath(s.Dir, r.AgentName), r); err != nil {
			return fmt.Errorf("%w: %v", ErrSinkFailed, err)
		}
	}
	return nil
}

// Multi writes to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) Write(ctx context.Context, records ...*Record) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Write(ctx, records...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
