// Package testutils provides test doubles shared by package tests.
package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/model"
)

// TestAgentConfig returns a minimal valid agent configuration: one
// required string input and one required string output.
func TestAgentConfig() *config.AgentConfig {
	return &config.AgentConfig{
		Agent: config.AgentIdentity{
			Name:        "test-agent",
			Description: "A test agent for unit testing",
			Input: config.InputConfig{Fields: []config.FieldConfig{
				{Name: "question", Type: "string", Description: "Question to answer"},
			}},
			Output: config.OutputConfig{Fields: []config.FieldConfig{
				{Name: "answer", Type: "string", Description: "The answer"},
			}},
		},
		Utilities: []string{},
		APIs:      []config.APIConfig{},
		Scraping:  []config.ScrapingConfig{},
	}
}

// TestContext returns a context that expires after five seconds.
func TestContext() context.Context {
	return TestContextWithTimeout(5 * time.Second)
}

// TestContextWithTimeout returns a context that expires after timeout.
func TestContextWithTimeout(timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	_ = cancel
	return ctx
}

// Step is one scripted model reply. Err fails the call instead.
type Step struct {
	Content   string
	ToolCalls []model.ToolCall
	Usage     *model.Usage
	Err       error
}

// Reply is a plain text step with usage.
func Reply(content string, promptTokens, completionTokens int) Step {
	return Step{Content: content, Usage: usage(promptTokens, completionTokens)}
}

// CallTools is a step requesting tools.
func CallTools(promptTokens, completionTokens int, calls ...model.ToolCall) Step {
	return Step{ToolCalls: calls, Usage: usage(promptTokens, completionTokens)}
}

func usage(prompt, completion int) *model.Usage {
	return &model.Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
}

// MockLLM replays scripted steps in order and records every request.
// Once the script is exhausted it fails.
type MockLLM struct {
	ModelName string

	mu       sync.Mutex
	steps    []Step
	requests []*model.Request
}

// NewMockLLM creates a MockLLM named "mock-model".
func NewMockLLM(steps ...Step) *MockLLM {
	return &MockLLM{ModelName: "mock-model", steps: steps}
}

// Push appends steps to the script.
func (m *MockLLM) Push(steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
}

func (m *MockLLM) Name() string             { return m.ModelName }
func (m *MockLLM) Provider() model.Provider { return model.ProviderUnknown }

func (m *MockLLM) Generate(_ context.Context, req *model.Request) (*model.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if len(m.steps) == 0 {
		return nil, fmt.Errorf("mock llm: no scripted reply for call %d", len(m.requests))
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	if step.Err != nil {
		return nil, step.Err
	}

	resp := &model.Response{
		Message: model.AssistantMessage(step.Content, step.ToolCalls...),
		Model:   m.ModelName,
		Usage:   step.Usage,
	}
	if len(step.ToolCalls) > 0 {
		resp.FinishReason = model.FinishReasonToolCalls
	} else {
		resp.FinishReason = model.FinishReasonStop
	}
	return resp, nil
}

// Requests returns the requests received so far.
func (m *MockLLM) Requests() []*model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Request(nil), m.requests...)
}

// Remaining returns the number of unused steps.
func (m *MockLLM) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}
