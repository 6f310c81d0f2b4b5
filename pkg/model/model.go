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

// Package model defines the chat model interface used by the agent.
//
// A model receives the whole conversation on every call and answers with
// one assistant message that may carry tool calls:
//
//	resp, err := llm.Generate(ctx, &model.Request{
//	    Messages: []*model.Message{model.UserMessage("What is 2+2?")},
//	    Tools:    defs,
//	})
//
// NewNormalizer wraps a model for providers that only accept plain text
// turns.
package model

import (
	"context"
	"maps"
	"slices"

	"github.com/kadirpekel/langsketch/pkg/tool"
)

// LLM is a chat model.
type LLM interface {
	// Name returns the model identifier.
	Name() string

	// Provider returns the provider type.
	Provider() Provider

	// Generate produces the next assistant message for req.
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Provider identifies the LLM provider.
type Provider string

const (
	// ProviderOpenAI covers OpenAI and any OpenAI-compatible endpoint,
	// including model routers.
	ProviderOpenAI Provider = "openai"

	ProviderUnknown Provider = "unknown"
)

// Role identifies the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Name is the tool name on tool messages.
	Name string `json:"name,omitempty"`

	// ToolCallID links a tool message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolCalls requested by an assistant message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

func SystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string, calls ...ToolCall) *Message {
	return &Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage carries the result of call back to the model.
func ToolMessage(call ToolCall, content string) *Message {
	return &Message{Role: RoleTool, Content: content, Name: call.Name, ToolCallID: call.ID}
}

// Clone returns a copy that shares no slices or maps with m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	clone := *m
	if m.ToolCalls != nil {
		clone.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			tc.Args = maps.Clone(tc.Args)
			clone.ToolCalls[i] = tc
		}
	}
	return &clone
}

// HasToolCalls reports whether the message requests tool calls.
func (m *Message) HasToolCalls() bool {
	return m != nil && len(m.ToolCalls) > 0
}

// Request contains the input for an LLM call.
type Request struct {
	// Messages is the conversation history.
	Messages []*Message

	// Tools available for the model to call.
	Tools []tool.Definition

	// Config contains generation configuration.
	Config *GenerateConfig
}

// GenerateConfig contains configuration for generation.
type GenerateConfig struct {
	// Temperature controls randomness (0-2).
	Temperature *float64

	// MaxTokens limits the response length.
	MaxTokens *int

	// StopSequences terminates generation.
	StopSequences []string
}

// Clone creates a deep copy of the GenerateConfig.
func (c *GenerateConfig) Clone() *GenerateConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Temperature != nil {
		temp := *c.Temperature
		clone.Temperature = &temp
	}
	if c.MaxTokens != nil {
		maxTok := *c.MaxTokens
		clone.MaxTokens = &maxTok
	}
	clone.StopSequences = slices.Clone(c.StopSequences)
	return &clone
}

// Response contains the result of an LLM call.
type Response struct {
	// Message is the assistant turn, possibly with tool calls.
	Message *Message

	// Model is the model that actually served the call.
	Model string

	// Usage statistics.
	Usage *Usage

	// FinishReason indicates why generation stopped.
	FinishReason FinishReason
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// FinishReason indicates why generation stopped.
type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonToolCalls FinishReason = "tool_calls"
	FinishReasonContent   FinishReason = "content_filter"
	FinishReasonError     FinishReason = "error"
)

// TextContent returns the assistant text of r.
func (r *Response) TextContent() string {
	if r == nil || r.Message == nil {
		return ""
	}
	return r.Message.Content
}

// HasToolCalls returns whether the response contains tool calls.
func (r *Response) HasToolCalls() bool {
	return r != nil && r.Message.HasToolCalls()
}
