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

package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/httpclient"
	"github.com/kadirpekel/langsketch/pkg/model"
	"github.com/kadirpekel/langsketch/pkg/router"
	"github.com/kadirpekel/langsketch/pkg/schema"
	"github.com/kadirpekel/langsketch/pkg/telemetry"
	"github.com/kadirpekel/langsketch/pkg/testutils"
)

var runStart = time.Date(2025, 7, 22, 17, 4, 5, 0, time.UTC)

// steppingClock returns runStart, then advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	var (
		mu  sync.Mutex
		now = runStart
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(step)
		return t
	}
}

type recordingSink struct {
	mu      sync.Mutex
	records []*telemetry.Record
	err     error
}

func (s *recordingSink) Write(_ context.Context, records ...*telemetry.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return s.err
}

func (s *recordingSink) last(t *testing.T) *telemetry.Record {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.records)
	return s.records[len(s.records)-1]
}

func newRuntime(t *testing.T, cfg *config.AgentConfig, llm *testutils.MockLLM, opts Options) (*AgentRuntime, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	opts.Model = llm
	if opts.Sink == nil {
		opts.Sink = sink
	}
	if opts.Now == nil {
		opts.Now = steppingClock(time.Second)
	}
	if opts.AuditDir == "" {
		opts.AuditDir = t.TempDir()
	}
	rt, err := New(testutils.TestContext(), cfg, opts)
	require.NoError(t, err)
	return rt, sink
}

func outputConfig(name, typ string) *config.AgentConfig {
	cfg := testutils.TestAgentConfig()
	cfg.Agent.Output.Fields = []config.FieldConfig{{Name: name, Type: typ, Description: "Result"}}
	return cfg
}

func TestRun_JSONAnswer(t *testing.T) {
	llm := testutils.NewMockLLM(testutils.Reply(`{"result": 42}`, 10, 5))
	rt, sink := newRuntime(t, outputConfig("result", "integer"), llm, Options{})

	out := rt.Run(testutils.TestContext(), map[string]any{"question": "meaning of life?"})
	assert.Equal(t, map[string]any{"result": 42}, out)

	rec := sink.last(t)
	assert.True(t, rec.Success)
	assert.True(t, rec.OutputValidationSuccess)
	assert.Equal(t, telemetry.SequenceNone, rec.ExecutionSequence)
	assert.Equal(t, 0, rec.TotalToolCalls)
	assert.Equal(t, 1, rec.TotalLLMCalls)
	assert.Equal(t, 15, rec.TotalTokensUsed)
	assert.Equal(t, "mock-model", rec.LLMModelUsed)
	assert.Equal(t, "test-agent", rec.AgentName)

	exec := rt.LastExecution()
	require.NotNil(t, exec)
	assert.Equal(t, []State{
		StateInit, StateInputOK, StatePrompted, StateStreaming,
		StateAnswerExtracted, StateCoerced, StateEmitted, StateDone,
	}, exec.States)
	assert.Equal(t, StateDone, exec.State())
	assert.True(t, exec.Coerced)
	assert.NoError(t, exec.Err)
	assert.Same(t, rec, exec.Record)
}

func TestRun_PlainTextAnswer(t *testing.T) {
	llm := testutils.NewMockLLM(testutils.Reply("The answer is 7.", 10, 5))
	rt, _ := newRuntime(t, testutils.TestAgentConfig(), llm, Options{})

	out := rt.Run(testutils.TestContext(), map[string]any{"question": "3 + 4?"})
	assert.Equal(t, map[string]any{"answer": "The answer is 7."}, out)
}

func TestRun_KeyValueAnswer(t *testing.T) {
	llm := testutils.NewMockLLM(testutils.Reply("n: 123.0\n", 10, 5))
	rt, _ := newRuntime(t, outputConfig("n", "integer"), llm, Options{})

	out := rt.Run(testutils.TestContext(), map[string]any{"question": "count"})
	assert.Equal(t, map[string]any{"n": 123}, out)
}

func TestRun_UtilityToolCall(t *testing.T) {
	cfg := outputConfig("miles", "float")
	cfg.Utilities = []string{config.UtilityUnitConverter}

	llm := testutils.NewMockLLM(
		testutils.CallTools(20, 10, model.ToolCall{
			ID:   "call_1",
			Name: "Unit_Converter",
			Args: map[string]any{"value": 9.0, "from_unit": "meter", "to_unit": "mile"},
		}),
		testutils.Reply(`{"miles": 0.0056}`, 30, 5),
	)
	rt, sink := newRuntime(t, cfg, llm, Options{})
	require.Len(t, rt.Tools(), 1)
	assert.Equal(t, "Unit_Converter", rt.Tools()[0].Name())

	out := rt.Run(testutils.TestContext(), map[string]any{"question": "9 meters in miles?"})
	assert.Equal(t, map[string]any{"miles": 0.0056}, out)

	rec := sink.last(t)
	assert.True(t, rec.Success)
	assert.Equal(t, "Unit_Converter", rec.ExecutionSequence)
	assert.Equal(t, 1, rec.TotalToolCalls)
	assert.Equal(t, 1, rec.ToolsUsedCount)
	assert.Equal(t, "Unit_Converter", rec.MostUsedTool)
	assert.Equal(t, 1, rec.MostUsedToolCount)
	assert.Equal(t, "call_1", rec.ToolCallIDs)
	assert.Equal(t, 2, rec.TotalLLMCalls)
	assert.Equal(t, 65, rec.TotalTokensUsed)
	assert.Equal(t, 0, rec.ToolErrors)
	assert.Equal(t, "unit_converter", rec.UtilitiesEnabled)

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	var toolTurn string
	for _, msg := range reqs[1].Messages {
		if strings.HasPrefix(msg.Content, "Tool Unit_Converter returned: ") {
			toolTurn = msg.Content
		}
	}
	assert.Contains(t, toolTurn, "0.00559234")
}

func TestRun_InputValidationFailure(t *testing.T) {
	llm := testutils.NewMockLLM()
	rt, sink := newRuntime(t, outputConfig("total", "integer"), llm, Options{})

	out := rt.Run(testutils.TestContext(), map[string]any{"other": 1})
	assert.Equal(t, map[string]any{"total": 0}, out)
	assert.Empty(t, llm.Requests())

	rec := sink.last(t)
	assert.False(t, rec.Success)
	assert.False(t, rec.OutputValidationSuccess)
	assert.True(t, rec.HasValidationErrors)
	assert.Equal(t, telemetry.ErrorTypeInputValidation, rec.ErrorType)
	assert.Contains(t, rec.ErrorMessage, "question")

	exec := rt.LastExecution()
	assert.Equal(t, []State{StateInit, StateInputBad, StateEmitted, StateDone}, exec.States)
	assert.ErrorIs(t, exec.Err, schema.ErrInputValidation)
}

func TestRun_APITool(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(data, &body))
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()

		if r.URL.Query().Get("city") != "Berlin" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("unknown city"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"temp":21}`))
	}))
	defer srv.Close()

	cfg := outputConfig("temp", "integer")
	cfg.APIs = []config.APIConfig{
		{
			Name:        "Weather Lookup",
			URL:         srv.URL + "/weather",
			Method:      http.MethodPost,
			Auth:        config.AuthConfig{Type: config.AuthNone, Field: "x"},
			Description: "Current weather",
		},
		{Name: "Incomplete", Description: "missing url and method"},
	}

	llm := testutils.NewMockLLM(
		testutils.CallTools(10, 5,
			model.ToolCall{ID: "c1", Name: "Weather_Lookup", Args: map[string]any{
				"payload": map[string]any{"units": "metric"},
				"params":  map[string]any{"city": "Berlin"},
			}},
			model.ToolCall{ID: "c2", Name: "Weather_Lookup", Args: map[string]any{
				"params": map[string]any{"city": "Atlantis"},
			}},
		),
		testutils.Reply(`{"temp": 21}`, 10, 5),
	)
	rt, sink := newRuntime(t, cfg, llm, Options{HTTPClient: httpclient.New(httpclient.WithMaxRetries(0))})
	require.Len(t, rt.Tools(), 1)

	out := rt.Run(testutils.TestContext(), map[string]any{"question": "weather?"})
	assert.Equal(t, map[string]any{"temp": 21}, out)

	mu.Lock()
	require.Len(t, bodies, 2)
	assert.Equal(t, "metric", bodies[0]["units"])
	mu.Unlock()

	var results []string
	for _, msg := range llm.Requests()[1].Messages {
		if strings.HasPrefix(msg.Content, "Tool Weather_Lookup returned: ") {
			results = append(results, strings.TrimPrefix(msg.Content, "Tool Weather_Lookup returned: "))
		}
	}
	require.Len(t, results, 2)
	assert.Contains(t, results[0], `"temp": 21`)
	assert.Equal(t, "API Error 404: unknown city", results[1])

	rec := sink.last(t)
	assert.Equal(t, "Weather_Lookup->Weather_Lookup", rec.ExecutionSequence)
	assert.Equal(t, 2, rec.MostUsedToolCount)
	assert.Equal(t, 2, rec.APIsConfigured)
	assert.Equal(t, 0, rec.ToolErrors)
}

func TestRun_ReformatsAnswer(t *testing.T) {
	llm := testutils.NewMockLLM(
		testutils.Reply("I could not decide.", 10, 5),
		testutils.Reply(`Sure! {"count": "5"}`, 10, 5),
	)
	rt, sink := newRuntime(t, outputConfig("count", "integer"), llm, Options{})

	out := rt.Run(testutils.TestContext(), map[string]any{"question": "how many?"})
	assert.Equal(t, map[string]any{"count": 5}, out)
	assert.True(t, sink.last(t).OutputValidationSuccess)

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, model.RoleSystem, reqs[1].Messages[0].Role)
	assert.Contains(t, reqs[1].Messages[1].Content, "I could not decide.")
}

func TestRun_ReformatGivesUp(t *testing.T) {
	llm := testutils.NewMockLLM(
		testutils.Reply("no numbers here", 10, 5),
		testutils.Reply("still nothing", 10, 5),
		testutils.Reply(`{"other": 1}`, 10, 5),
	)
	rt, sink := newRuntime(t, outputConfig("count", "integer"), llm, Options{})

	out := rt.Run(testutils.TestContext(), map[string]any{"question": "how many?"})
	assert.Equal(t, map[string]any{"count": 0}, out)
	assert.Equal(t, 0, llm.Remaining())

	rec := sink.last(t)
	assert.True(t, rec.Success)
	assert.False(t, rec.OutputValidationSuccess)
	assert.False(t, rt.LastExecution().Coerced)
}

func TestRun_ModelFailure(t *testing.T) {
	llm := testutils.NewMockLLM(testutils.Step{Err: errors.New("upstream unavailable")})
	rt, sink := newRuntime(t, outputConfig("items", "list"), llm, Options{})

	out := rt.Run(testutils.TestContext(), map[string]any{"question": "list"})
	require.Len(t, out["items"], 1)
	assert.Contains(t, out["items"].([]any)[0], "upstream unavailable")

	rec := sink.last(t)
	assert.False(t, rec.Success)
	assert.Equal(t, telemetry.ErrorTypeExecution, rec.ErrorType)
	assert.Equal(t, telemetry.SequenceFailed, rec.ExecutionSequence)
	assert.Equal(t, 1, rec.LLMErrors)
	assert.False(t, rec.OutputValidationSuccess)

	exec := rt.LastExecution()
	assert.Contains(t, exec.States, StateExecBad)
	assert.Equal(t, StateDone, exec.State())
}

func TestRun_SinkFailureIsNotFatal(t *testing.T) {
	llm := testutils.NewMockLLM(testutils.Reply("ok", 1, 1))
	sink := &recordingSink{err: telemetry.ErrSinkFailed}
	rt, _ := newRuntime(t, testutils.TestAgentConfig(), llm, Options{Sink: sink})

	out := rt.Run(testutils.TestContext(), map[string]any{"question": "q"})
	assert.Equal(t, map[string]any{"answer": "ok"}, out)
	assert.Len(t, sink.records, 1)
}

func TestRun_AuditFile(t *testing.T) {
	dir := t.TempDir()
	llm := testutils.NewMockLLM(testutils.Reply("one", 1, 1), testutils.Reply("two", 1, 1))
	rt, _ := newRuntime(t, testutils.TestAgentConfig(), llm, Options{AuditDir: dir})

	rt.Run(testutils.TestContext(), map[string]any{"question": "a"})
	rt.Run(testutils.TestContext(), map[string]any{"question": "b"})

	records, err := telemetry.ReadAudit(telemetry.AuditPath(dir, "test-agent"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.JSONEq(t, `{"question":"b"}`, records[1].RawInputData)
	assert.InDelta(t, 1000, records[0].ExecutionDurationMS, 0.01)
}

func TestRun_AuditByDefault(t *testing.T) {
	t.Chdir(t.TempDir())

	llm := testutils.NewMockLLM(testutils.Reply("ok", 1, 1))
	rt, err := New(testutils.TestContext(), testutils.TestAgentConfig(), Options{Model: llm})
	require.NoError(t, err)

	rt.Run(testutils.TestContext(), map[string]any{"question": "q"})

	records, err := telemetry.ReadAudit(filepath.Join(DefaultAuditDir, "test-agent_output_json.json"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "test-agent", records[0].AgentName)
}

func TestRun_NoAudit(t *testing.T) {
	t.Chdir(t.TempDir())

	llm := testutils.NewMockLLM(testutils.Reply("ok", 1, 1))
	rt, sink := newRuntime(t, testutils.TestAgentConfig(), llm, Options{AuditDir: ".", NoAudit: true})

	rt.Run(testutils.TestContext(), map[string]any{"question": "q"})

	assert.Len(t, sink.records, 1)
	entries, err := os.ReadDir(".")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_SharedMemory(t *testing.T) {
	llm := testutils.NewMockLLM(testutils.Reply("first", 1, 1), testutils.Reply("second", 1, 1))
	rt, _ := newRuntime(t, testutils.TestAgentConfig(), llm, Options{})

	rt.Run(testutils.TestContext(), map[string]any{"question": "a"})
	rt.Run(testutils.TestContext(), map[string]any{"question": "b"})

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.Greater(t, len(reqs[1].Messages), len(reqs[0].Messages))

	require.NoError(t, rt.Reset(testutils.TestContext()))
	llm.Push(testutils.Reply("third", 1, 1))
	rt.Run(testutils.TestContext(), map[string]any{"question": "c"})
	assert.Len(t, llm.Requests()[2].Messages, len(reqs[0].Messages))
}

func TestPrompt(t *testing.T) {
	cfg := testutils.TestAgentConfig()
	cfg.Utilities = []string{config.UtilityCalculator}
	rt, _ := newRuntime(t, cfg, testutils.NewMockLLM(), Options{})

	prompt := rt.Prompt(map[string]any{"question": "2+2"})
	assert.True(t, strings.HasPrefix(prompt, "Agent: test-agent\nA test agent for unit testing\n"))
	assert.Contains(t, prompt, "Input Data:\n{\n  \"question\": \"2+2\"\n}")
	assert.Contains(t, prompt, "Available tools: Calculator")
	assert.Contains(t, prompt, "Instructions:\n")
	assert.Contains(t, prompt, "Output schema:\n"+rt.OutputSchema().Describe())

	array := rt.Prompt(map[string]any{schema.ArrayInputKey: []any{1, 2}})
	assert.Contains(t, array, "Array Input:")
	assert.Contains(t, array, "Process every item")

	bare, _ := newRuntime(t, testutils.TestAgentConfig(), testutils.NewMockLLM(), Options{})
	assert.Contains(t, bare.Prompt(map[string]any{}), "Available tools: none")
}

func TestNew_SkipsBrokenTools(t *testing.T) {
	cfg := testutils.TestAgentConfig()
	cfg.Utilities = []string{config.UtilityCalculator, "teleport", config.UtilityCalculator}
	cfg.Tools = []config.ToolConfig{{
		Name:         "Missing Script",
		Description:  "not on disk",
		CodePath:     "tools/missing.js",
		FunctionName: "run",
	}}

	rt, _ := newRuntime(t, cfg, testutils.NewMockLLM(), Options{BaseDir: t.TempDir()})
	require.Len(t, rt.Tools(), 1)
	assert.Equal(t, "Calculator", rt.Tools()[0].Name())
	assert.Equal(t, "mock-model", rt.ModelName())
	assert.Equal(t, "test-agent", rt.Name())
}

func TestNew_Routing(t *testing.T) {
	reg := router.NewRegistry()
	reg.RegisterRouter(&router.Router{Name: "fixed", Default: "openai/gpt-4o-mini"})

	var built []string
	factory := func(name string) (model.LLM, error) {
		built = append(built, name)
		return testutils.NewMockLLM(testutils.Reply("routed", 1, 1)), nil
	}

	rt, err := New(testutils.TestContext(), testutils.TestAgentConfig(), Options{
		RouterName:   "fixed",
		Routers:      reg,
		ModelFactory: factory,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"openai/gpt-4o-mini"}, built)
	assert.Equal(t, "openai/gpt-4o-mini", rt.ModelName())
	assert.Equal(t, map[string]any{"answer": "routed"}, rt.Run(testutils.TestContext(), map[string]any{"question": "q"}))

	_, err = New(testutils.TestContext(), testutils.TestAgentConfig(), Options{
		RouterName:   "missing",
		Routers:      reg,
		ModelFactory: factory,
	})
	assert.ErrorIs(t, err, router.ErrRouterMissing)

	_, err = New(testutils.TestContext(), testutils.TestAgentConfig(), Options{
		RouterName: "fixed",
		Routers:    reg,
		ModelFactory: func(string) (model.LLM, error) {
			return nil, errors.New("no credentials")
		},
	})
	assert.ErrorContains(t, err, "no credentials")

	_, err = New(testutils.TestContext(), nil, Options{})
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, config.AgentsDir), 0o755))
	data, err := json.Marshal(testutils.TestAgentConfig())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(config.AgentPath(root, "test-agent"), data, 0o644))

	rt, err := Build(testutils.TestContext(), root, "test-agent", Options{Model: testutils.NewMockLLM()})
	require.NoError(t, err)
	assert.Equal(t, "test-agent", rt.Config().Agent.Name)

	_, err = Build(testutils.TestContext(), root, "ghost", Options{Model: testutils.NewMockLLM()})
	assert.Error(t, err)

	_, err = Build(testutils.TestContext(), t.TempDir(), "test-agent", Options{Model: testutils.NewMockLLM()})
	assert.ErrorIs(t, err, config.ErrAgentNotFound)
}

func TestOpenSink(t *testing.T) {
	ctx := testutils.TestContext()

	sink, closeFn, err := OpenSink(ctx, config.WarehouseConfig{Backend: config.WarehouseNone}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, telemetry.Discard, sink)
	assert.NoError(t, closeFn())

	pool := config.NewDBPool()
	defer pool.Close()
	sink, closeFn, err = OpenSink(ctx, config.WarehouseConfig{
		Backend:  config.WarehouseSQL,
		Table:    config.DefaultTelemetryTable,
		Database: &config.DatabaseConfig{Driver: "sqlite", Database: ":memory:"},
	}, pool, nil, nil)
	require.NoError(t, err)
	defer closeFn()

	llm := testutils.NewMockLLM(testutils.Reply("stored", 3, 4))
	rt, _ := newRuntime(t, testutils.TestAgentConfig(), llm, Options{Sink: sink})
	rt.Run(ctx, map[string]any{"question": "q"})

	ws, ok := sink.(*telemetry.WarehouseSink)
	require.True(t, ok)
	summaries, err := ws.Summaries(ctx, "test-agent")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 0, summaries[0].TotalToolCalls)
}
