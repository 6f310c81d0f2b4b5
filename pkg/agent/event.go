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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/langsketch/pkg/model"
)

// Node identifies the loop step that produced an event.
type Node string

const (
	NodeAgent Node = "agent"
	NodeTools Node = "tools"
)

// Event is one step of the reasoning loop.
type Event struct {
	ID        string
	Timestamp time.Time
	ThreadID  string
	Node      Node
	Iteration int

	// Messages appended to the conversation by this step: the model
	// reply for NodeAgent, one tool message per call for NodeTools.
	Messages []*model.Message

	// LLMCall describes the model call of a NodeAgent event.
	LLMCall *LLMCall

	// ToolResults of a NodeTools event, in call order.
	ToolResults []ToolResult

	// Final marks the reply that ended the loop.
	Final bool
}

// LLMCall is the response metadata of one model call.
type LLMCall struct {
	Model        string
	Usage        model.Usage
	FinishReason model.FinishReason
	Duration     time.Duration

	// Estimated is set when the provider reported no usage and the token
	// counts were computed locally.
	Estimated bool
}

// ToolResult is the outcome of one tool call.
type ToolResult struct {
	CallID   string
	Name     string
	Args     map[string]any
	Content  string
	Err      error
	Duration time.Duration
}

func newEvent(threadID string, node Node, iteration int) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		ThreadID:  threadID,
		Node:      node,
		Iteration: iteration,
	}
}

// AgentMessages returns the messages of a NodeAgent event.
func (e *Event) AgentMessages() []*model.Message {
	if e == nil || e.Node != NodeAgent {
		return nil
	}
	return e.Messages
}

// ToolCalls returns the tool calls requested in this event.
func (e *Event) ToolCalls() []model.ToolCall {
	var calls []model.ToolCall
	for _, m := range e.AgentMessages() {
		calls = append(calls, m.ToolCalls...)
	}
	return calls
}

// String renders the event for logs and as a last-resort answer.
func (e *Event) String() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		entry := string(m.Role) + ": " + m.Content
		if len(m.ToolCalls) > 0 {
			calls, _ := json.Marshal(m.ToolCalls)
			entry += " " + string(calls)
		}
		parts = append(parts, entry)
	}
	return fmt.Sprintf("{%s: [%s]}", e.Node, strings.Join(parts, "; "))
}
