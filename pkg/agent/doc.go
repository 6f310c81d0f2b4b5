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

// Package agent implements the tool-calling reasoning loop.
//
// An Agent alternates between two nodes. The agent node sends the
// conversation to the model; when the reply requests tools, the tools
// node runs them and appends their results, and the loop goes back to
// the model. The loop ends on the first reply without tool calls.
//
//	a, err := agent.New(agent.Config{
//	    Name:  "converter",
//	    Model: llm,
//	    Tools: tools,
//	})
//	for ev, err := range a.Stream(ctx, checkpoint.DefaultThreadID, prompt) {
//	    ...
//	}
//
// Conversation history lives in a checkpoint.Manager keyed by thread id,
// so consecutive streams on the same thread share context.
package agent
