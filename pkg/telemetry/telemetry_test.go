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
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/telemetry/warehouse"
)

var runStart = time.Date(2025, 9, 13, 13, 25, 42, 0, time.UTC)

func converterInfo() AgentInfo {
	return AgentInfo{
		Name:        "ConvertMilesStorySummary",
		Description: "Converts metres and summarizes a story",
		Tools:       []string{"Text_Summary", "Unit_Converter"},
		Utilities:   []string{"text_summary", "unit_converter"},
	}
}

func sampleBuilder() *Builder {
	b := NewBuilder(converterInfo(), runStart)
	b.SetInput(map[string]any{"Metres": 9, "Story": "Once upon a time"})
	for range 4 {
		b.AddEvent()
	}
	at := runStart.Add(3 * time.Second)
	b.AddToolCall(ToolCall{Name: "Unit_Converter", ID: "call_a", Timestamp: at})
	b.AddToolCall(ToolCall{Name: "Text_Summary", ID: "call_b", Timestamp: at})
	b.AddLLMCall(LLMCall{Model: "gpt-3.5-turbo-0125", PromptTokens: 900, CompletionTokens: 300, FinishReason: "tool_calls", Timestamp: at})
	b.AddLLMCall(LLMCall{Model: "gpt-3.5-turbo-0125", PromptTokens: 787, CompletionTokens: 333, TotalTokens: 1120, FinishReason: "stop", Timestamp: at.Add(4 * time.Second)})
	b.SetOutputValid(true)
	return b
}

func TestBuilder_Success(t *testing.T) {
	r := sampleBuilder().Build(runStart.Add(6823960 * time.Microsecond))

	assert.Equal(t, "ConvertMilesStorySummary", r.AgentName)
	assert.Equal(t, runStart.Unix(), r.ExecutionTimestamp)
	assert.Equal(t, "2025-09-13", r.ExecutionDate)
	assert.Equal(t, "13:00:00", r.ExecutionHour)
	assert.Equal(t, 6823.96, r.ExecutionDurationMS)
	assert.Equal(t, 6.824, r.ExecutionDurationSeconds)
	assert.True(t, r.Success)
	assert.Empty(t, r.ErrorType)

	assert.Equal(t, 4, r.TotalEvents)
	assert.Equal(t, 2, r.TotalToolCalls)
	assert.Equal(t, 2, r.TotalLLMCalls)
	assert.Equal(t, 3411.98, r.AvgToolCallDurationMS)
	assert.Equal(t, 3411.98, r.AvgLLMCallDurationMS)

	assert.Equal(t, 2320, r.TotalTokensUsed)
	assert.Equal(t, 1687, r.PromptTokensUsed)
	assert.Equal(t, 633, r.CompletionTokensUsed)
	assert.Equal(t, 339.98, r.TokensPerSecond)
	assert.InDelta(t, 0.00348, r.CostEstimateUSD, 1e-12)

	assert.Equal(t, 2, r.ToolsUsedCount)
	assert.Equal(t, "Text_Summary,Unit_Converter", r.ToolsUsedList)
	assert.Equal(t, "Unit_Converter", r.MostUsedTool)
	assert.Equal(t, 1, r.MostUsedToolCount)
	assert.Equal(t, "Unit_Converter,Text_Summary", r.ToolNames)
	assert.Equal(t, "call_a,call_b", r.ToolCallIDs)
	assert.Equal(t, "gpt-3.5-turbo-0125", r.LLMModelUsed)
	assert.Equal(t, "tool_calls,stop", r.LLMFinishReasons)

	assert.Equal(t, 2, r.InputFieldsCount)
	assert.False(t, r.HasArrayInput)
	assert.Equal(t, `{"Metres":9,"Story":"Once upon a time"}`, r.RawInputData)
	assert.Equal(t, len(r.RawInputData), r.InputSizeChars)

	assert.Equal(t, 2, r.AvailableToolsCount)
	assert.Equal(t, "text_summary,unit_converter", r.UtilitiesEnabled)
	assert.Equal(t, 0.29, r.ToolsPerSecond)
	assert.Equal(t, 0.59, r.EventsPerSecond)
	assert.Equal(t, r.EventsPerSecond, r.EfficiencyScore)
	assert.True(t, r.OutputValidationSuccess)
	assert.Equal(t, "Unit_Converter->Text_Summary", r.ExecutionSequence)
}

func TestBuilder_Sequences(t *testing.T) {
	b := NewBuilder(AgentInfo{Name: "add-10"}, runStart)
	b.SetInput(map[string]any{"number": 7})
	b.AddEvent()
	r := b.Build(runStart.Add(500 * time.Millisecond))
	assert.Equal(t, SequenceNone, r.ExecutionSequence)
	assert.Zero(t, r.AvgToolCallDurationMS)
	assert.Empty(t, r.MostUsedTool)
	assert.False(t, r.OutputValidationSuccess)

	b = NewBuilder(AgentInfo{Name: "add-10"}, runStart)
	b.SetInput(map[string]any{ArrayInputKey: []any{1, 2}})
	b.InputInvalid(errors.New("missing field number"))
	r = b.Build(runStart)
	assert.False(t, r.Success)
	assert.True(t, r.HasValidationErrors)
	assert.True(t, r.HasArrayInput)
	assert.Equal(t, ErrorTypeInputValidation, r.ErrorType)
	assert.Equal(t, "missing field number", r.ErrorMessage)
	assert.Equal(t, SequenceFailed, r.ExecutionSequence)
	assert.Zero(t, r.TokensPerSecond)
}

func TestBuilder_TruncatesRawInput(t *testing.T) {
	b := NewBuilder(AgentInfo{Name: "x"}, runStart)
	b.SetInput(map[string]any{"story": strings.Repeat("é", 800)})
	r := b.Build(runStart.Add(time.Second))
	assert.Len(t, []rune(r.RawInputData), MaxRawInputChars)
	assert.Equal(t, 800+len(`{"story":""}`), r.InputSizeChars)
}

func TestRecord_Columns(t *testing.T) {
	r := sampleBuilder().Build(runStart.Add(time.Second))
	require.Len(t, Columns, 46)
	require.Len(t, r.Values(), 46)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 46)

	m := r.Map()
	for _, c := range Columns {
		assert.Contains(t, decoded, c.Name)
		assert.Contains(t, m, c.Name)
	}
	assert.Equal(t, r.ExecutionSequence, m["execution_sequence"])
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, "'it''s'", Literal("it's"))
	assert.Equal(t, "''", Literal(nil))
	assert.Equal(t, "true", Literal(true))
	assert.Equal(t, "false", Literal(false))
	assert.Equal(t, "42", Literal(42))
	assert.Equal(t, "1757783142", Literal(int64(1757783142)))
	assert.Equal(t, "6823.96", Literal(6823.96))
	assert.Equal(t, "0", Literal(0.0))
}

func TestStatements(t *testing.T) {
	create := CreateTableSQL(config.DefaultTelemetryTable, warehouse.Databricks)
	assert.True(t, strings.HasPrefix(create, "CREATE TABLE IF NOT EXISTS default.agent_logs4 ("))
	assert.True(t, strings.HasSuffix(create, ") USING delta"))
	assert.Contains(t, create, "execution_sequence STRING\n")

	sqlite := CreateTableSQL(config.DefaultTelemetryTable, warehouse.SQLite)
	assert.Contains(t, sqlite, "CREATE TABLE IF NOT EXISTS agent_logs4")
	assert.Contains(t, sqlite, "success BOOLEAN")
	assert.NotContains(t, sqlite, "USING delta")

	r := sampleBuilder().Build(runStart.Add(time.Second))
	r.AgentDescription = "O'Brien's agent"
	r.RawInputData = strings.Repeat("x", 900)
	insert := InsertSQL("t", r, warehouse.Databricks)
	assert.Contains(t, insert, "'O''Brien''s agent'")
	assert.Contains(t, insert, "'"+strings.Repeat("x", MaxRawInputChars)+"'")
	assert.NotContains(t, insert, strings.Repeat("x", MaxRawInputChars+1))
	assert.Len(t, r.RawInputData, 900)
}

func TestAudit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	path := AuditPath(dir, "converter")
	assert.Equal(t, filepath.Join(dir, "converter_output_json.json"), path)

	first := sampleBuilder().Build(runStart.Add(time.Second))
	second := NewBuilder(AgentInfo{Name: "converter"}, runStart).Build(runStart)
	require.NoError(t, AppendAudit(path, first))
	require.NoError(t, AppendAudit(path, second))

	records, err := ReadAudit(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first, records[0])
	assert.Equal(t, SequenceNone, records[1].ExecutionSequence)

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	require.NoError(t, AppendAudit(path, second))
	records, err = ReadAudit(path)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	moved, err := filepath.Glob(path + ".*.corrupt")
	require.NoError(t, err)
	require.Len(t, moved, 1)
	kept, err := os.ReadFile(moved[0])
	require.NoError(t, err)
	assert.Equal(t, "not json", string(kept))
}

func newSQLiteSink(t *testing.T) *WarehouseSink {
	t.Helper()
	exec, err := warehouse.NewSQLExecutor(context.Background(), nil, &config.DatabaseConfig{Driver: "sqlite", Database: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	return NewWarehouseSink(exec)
}

func TestWarehouseSink_SQLite(t *testing.T) {
	sink := newSQLiteSink(t)
	ctx := context.Background()
	assert.Equal(t, config.DefaultTelemetryTable, sink.Table())

	r := sampleBuilder().Build(runStart.Add(6823960 * time.Microsecond))
	r.ErrorMessage = "it's fine"
	require.NoError(t, sink.Write(ctx, r))
	require.NoError(t, sink.Write(ctx, r))

	summaries, err := sink.Summaries(ctx, r.AgentName)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, Summary{
		AgentName:       r.AgentName,
		MostUsedTool:    "Unit_Converter",
		ToolsUsedCount:  2,
		TotalToolCalls:  2,
		DurationSeconds: 6.824,
		EfficiencyScore: 0.59,
	}, summaries[0])

	none, err := sink.Summaries(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, none)
}

type failingExecutor struct{ calls int }

func (f *failingExecutor) Dialect() warehouse.Dialect { return warehouse.Databricks }
func (f *failingExecutor) Exec(context.Context, string) error {
	f.calls++
	return errors.New("no route to host")
}
func (f *failingExecutor) Query(context.Context, string) ([][]string, error) {
	return nil, errors.New("no route to host")
}
func (f *failingExecutor) Close() error { return nil }

func TestWarehouseSink_Failures(t *testing.T) {
	exec := &failingExecutor{}
	sink := NewWarehouseSink(exec, WithTable("default.custom"))
	ctx := context.Background()

	err := sink.Write(ctx, sampleBuilder().Build(runStart))
	assert.ErrorIs(t, err, ErrSinkFailed)
	assert.Contains(t, err.Error(), "default.custom")
	assert.Contains(t, err.Error(), "no route to host")

	err = sink.Write(ctx)
	assert.ErrorIs(t, err, ErrSinkFailed)
	assert.Equal(t, 1, exec.calls)

	_, err = sink.Summaries(ctx, "x")
	assert.ErrorIs(t, err, ErrSinkFailed)
}

func TestMulti(t *testing.T) {
	dir := t.TempDir()
	sink := Multi(AuditSink{Dir: dir}, nil, Discard, NewWarehouseSink(&failingExecutor{}))
	r := NewBuilder(AgentInfo{Name: "multi"}, runStart).Build(runStart)

	err := sink.Write(context.Background(), r)
	assert.ErrorIs(t, err, ErrSinkFailed)

	records, err := ReadAudit(AuditPath(dir, "multi"))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestDescribeJSON(t *testing.T) {
	got := DescribeJSON([]map[string]any{{"name": "a", "tags": []string{"x"}, "n": 1, "meta": nil}})
	assert.Equal(t, strings.Join([]string{
		"List[1 items]",
		"  Dict with 4 keys:",
		"    - meta: null",
		"    - n: number",
		"    - name: string",
		"    - tags: list",
		"      List[1 items]",
		"        string",
	}, "\n"), got)
}
