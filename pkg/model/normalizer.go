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

package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const toolNarrationPrefix = "I need to use tools to help with this request. "

// Normalizer rewrites the conversation before every call so that it only
// contains plain user, assistant and system turns with text content:
//
//   - tool results become user turns "Tool <name> returned: <content>";
//   - assistant turns with tool calls and no text get a narration of the
//     calls, keeping the calls themselves.
type Normalizer struct {
	llm LLM
}

// NewNormalizer wraps llm.
func NewNormalizer(llm LLM) *Normalizer {
	return &Normalizer{llm: llm}
}

func (n *Normalizer) Name() string {
	return n.llm.Name()
}

func (n *Normalizer) Provider() Provider {
	return n.llm.Provider()
}

// Unwrap returns the wrapped model.
func (n *Normalizer) Unwrap() LLM {
	return n.llm
}

func (n *Normalizer) Generate(ctx context.Context, req *Request) (*Response, error) {
	normalized := *req
	normalized.Messages = NormalizeMessages(req.Messages)
	return n.llm.Generate(ctx, &normalized)
}

// NormalizeMessages returns the rewritten conversation. The input is not
// modified.
func NormalizeMessages(messages []*Message) []*Message {
	out := make([]*Message, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		switch {
		case msg.Role == RoleTool:
			out = append(out, UserMessage(fmt.Sprintf("Tool %s returned: %s", msg.Name, msg.Content)))

		case msg.Role == RoleAssistant && msg.HasToolCalls() && msg.Content == "":
			clone := msg.Clone()
			clone.Content = narrateToolCalls(msg.ToolCalls)
			out = append(out, clone)

		default:
			out = append(out, msg)
		}
	}
	return out
}

func narrateToolCalls(calls []ToolCall) string {
	parts := make([]string, len(calls))
	for i, call := range calls {
		parts[i] = fmt.Sprintf("Called tool '%s' with args: %s", call.Name, formatArgs(call.Args))
	}
	return toolNarrationPrefix + strings.Join(parts, "; ")
}

func formatArgs(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprint(args)
	}
	return string(data)
}
