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

package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/langsketch/pkg/checkpoint"
	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/model"
	"github.com/kadirpekel/langsketch/pkg/observability"
	"github.com/kadirpekel/langsketch/pkg/testutils"
	"github.com/kadirpekel/langsketch/pkg/tool"
	"github.com/kadirpekel/langsketch/pkg/tool/functiontool"
)

func upperTool() tool.Tool {
	return functiontool.New(config.ToolConfig{
		Name:        "Upper Case",
		Description: "Upper-case text",
		Inputs: config.ToolInputConfig{Fields: []config.FieldConfig{
			{Name: "text", Type: "string", Description: "Text"},
		}},
		CodePath:     config.CodePathBuiltin,
		FunctionName: "upper",
	}, func(_ context.Context, args map[string]any) (any, error) {
		text := args["text"].(string)
		if text == "fail" {
			return nil, errors.New("refusing")
		}
		return strings.ToUpper(text), nil
	})
}

func collect(t *testing.T, a *Agent, prompt string) ([]*Event, error) {
	t.Helper()
	var events []*Event
	for ev, err := range a.Stream(context.Background(), checkpoint.DefaultThreadID, prompt) {
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func TestStream_NoTools(t *testing.T) {
	llm := testutils.NewMockLLM(testutils.Reply(`{"answer": "42"}`, 10, 5))
	a, err := New(Config{Name: "test", Model: llm, Instruction: "be brief"})
	require.NoError(t, err)

	events, err := collect(t, a, "what is the answer?")
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, NodeAgent, ev.Node)
	assert.True(t, ev.Final)
	assert.Equal(t, `{"answer": "42"}`, ev.AgentMessages()[0].Content)
	assert.Equal(t, "mock-model", ev.LLMCall.Model)
	assert.Equal(t, 15, ev.LLMCall.Usage.TotalTokens)
	assert.Equal(t, model.FinishReasonStop, ev.LLMCall.FinishReason)

	req := llm.Requests()[0]
	require.Len(t, req.Messages, 2)
	assert.Equal(t, model.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "what is the answer?", req.Messages[1].Content)
}

func TestStream_ToolRound(t *testing.T) {
	llm := testutils.NewMockLLM(
		testutils.CallTools(20, 4,
			model.ToolCall{Name: "Upper_Case", Args: map[string]any{"text": "abc"}},
			model.ToolCall{ID: "c2", Name: "Upper_Case", Args: map[string]any{"text": "fail"}},
			model.ToolCall{ID: "c3", Name: "missing", Args: map[string]any{}},
		),
		testutils.Reply("done", 30, 2),
	)
	a, err := New(Config{Name: "test", Model: llm, Tools: []tool.Tool{upperTool()}})
	require.NoError(t, err)

	events, err := collect(t, a, "shout")
	require.NoError(t, err)
	require.Len(t, events, 3)

	calls := events[0].ToolCalls()
	require.Len(t, calls, 3)
	assert.True(t, strings.HasPrefix(calls[0].ID, "call_"))

	tools := events[1]
	assert.Equal(t, NodeTools, tools.Node)
	require.Len(t, tools.ToolResults, 3)
	assert.Equal(t, "ABC", tools.ToolResults[0].Content)
	assert.NoError(t, tools.ToolResults[0].Err)
	assert.ErrorIs(t, tools.ToolResults[1].Err, tool.ErrToolFailed)
	assert.True(t, strings.HasPrefix(tools.ToolResults[1].Content, "Error executing function:"))
	assert.Equal(t, `Error: tool "missing" not found`, tools.ToolResults[2].Content)
	assert.Equal(t, calls[0].ID, tools.Messages[0].ToolCallID)

	assert.True(t, events[2].Final)
	assert.Equal(t, "done", events[2].AgentMessages()[0].Content)

	second := llm.Requests()[1]
	require.Len(t, second.Tools, 1)
	assert.Equal(t, "Upper_Case", second.Tools[0].Name)
	roles := make([]model.Role, len(second.Messages))
	for i, m := range second.Messages {
		roles[i] = m.Role
	}
	assert.Equal(t, []model.Role{model.RoleUser, model.RoleAssistant, model.RoleTool, model.RoleTool, model.RoleTool}, roles)
}

func TestStream_MemorySharedAcrossStreams(t *testing.T) {
	llm := testutils.NewMockLLM(testutils.Reply("first", 1, 1), testutils.Reply("second", 1, 1))
	a, err := New(Config{Name: "test", Model: llm})
	require.NoError(t, err)

	_, err = collect(t, a, "one")
	require.NoError(t, err)
	_, err = collect(t, a, "two")
	require.NoError(t, err)

	msgs := llm.Requests()[1].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "first", msgs[1].Content)
	assert.Equal(t, "two", msgs[2].Content)
}

func TestStream_ModelError(t *testing.T) {
	llm := testutils.NewMockLLM(testutils.Step{Err: errors.New("provider down")})
	a, err := New(Config{Name: "test", Model: llm})
	require.NoError(t, err)

	events, err := collect(t, a, "hi")
	assert.Empty(t, events)
	assert.ErrorIs(t, err, ErrModelCall)
	assert.Contains(t, err.Error(), "provider down")
}

func TestStream_IterationLimit(t *testing.T) {
	call := model.ToolCall{ID: "c", Name: "Upper_Case", Args: map[string]any{"text": "x"}}
	llm := testutils.NewMockLLM(testutils.CallTools(1, 1, call), testutils.CallTools(1, 1, call))
	a, err := New(Config{Name: "test", Model: llm, Tools: []tool.Tool{upperTool()}, MaxIterations: 2})
	require.NoError(t, err)

	events, err := collect(t, a, "loop")
	assert.Len(t, events, 4)
	assert.ErrorIs(t, err, ErrMaxIterations)
}

func TestStream_StopsWhenConsumerBreaks(t *testing.T) {
	call := model.ToolCall{ID: "c", Name: "Upper_Case", Args: map[string]any{"text": "x"}}
	llm := testutils.NewMockLLM(testutils.CallTools(1, 1, call), testutils.Reply("unused", 1, 1))
	a, err := New(Config{Name: "test", Model: llm, Tools: []tool.Tool{upperTool()}})
	require.NoError(t, err)

	for range a.Stream(context.Background(), "t", "go") {
		break
	}
	assert.Equal(t, 1, llm.Remaining())
}

func TestStream_Cancelled(t *testing.T) {
	a, err := New(Config{Name: "test", Model: testutils.NewMockLLM()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, err := range a.Stream(ctx, "t", "hi") {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestStream_Traced(t *testing.T) {
	ctx := context.Background()
	tracer, err := observability.NewTracer(ctx, observability.TracingConfig{Enabled: true, Exporter: observability.ExporterDebug}, nil)
	require.NoError(t, err)

	llm := testutils.NewMockLLM(
		testutils.CallTools(1, 1, model.ToolCall{ID: "c", Name: "Upper_Case", Args: map[string]any{"text": "x"}}),
		testutils.Reply("ok", 1, 1),
	)
	a, err := New(Config{Name: "test", Model: llm, Tools: []tool.Tool{upperTool()}, Tracer: tracer})
	require.NoError(t, err)

	_, err = collect(t, a, "go")
	require.NoError(t, err)

	exp := tracer.DebugExporter()
	assert.Len(t, exp.SpansByName(observability.SpanLLMCall), 2)
	assert.Len(t, exp.SpansByName(observability.SpanToolExecution), 1)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Name: "x"})
	assert.Error(t, err)

	_, err = New(Config{Name: "x", Model: testutils.NewMockLLM(), Tools: []tool.Tool{upperTool(), upperTool()}})
	assert.Error(t, err)
}

func TestEvent_String(t *testing.T) {
	ev := newEvent("main", NodeAgent, 0)
	ev.Messages = []*model.Message{model.AssistantMessage("hello")}
	assert.Equal(t, "{agent: [assistant: hello]}", ev.String())

	var nilEvent *Event
	assert.Empty(t, nilEvent.String())
	assert.Nil(t, nilEvent.AgentMessages())
}
