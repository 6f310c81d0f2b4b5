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

// Package checkpoint keeps the conversation memory of an agent.
//
// A State is the message history of one thread plus the phase of the
// reasoning loop that last touched it. The agent loads the thread before
// a run, and the hooks save it after every model response and tool
// round, so a later run on the same thread continues the conversation.
//
// Storage is in-process only; nothing survives a restart.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kadirpekel/langsketch/pkg/model"
)

// Phase is the loop phase at which a state was saved.
type Phase string

const (
	PhaseInitialized   Phase = "initialized"
	PhasePostLLM       Phase = "post_llm"
	PhaseToolExecution Phase = "tool_execution"
	PhasePostTool      Phase = "post_tool"
	PhaseCompleted     Phase = "completed"
	PhaseError         Phase = "error"
)

// State is the saved conversation of one thread.
type State struct {
	ThreadID  string           `json:"thread_id"`
	Phase     Phase            `json:"phase"`
	Iteration int              `json:"iteration"`
	Messages  []*model.Message `json:"messages"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewState creates an empty state for threadID.
func NewState(threadID string) *State {
	return &State{
		ThreadID:  threadID,
		Phase:     PhaseInitialized,
		UpdatedAt: time.Now(),
	}
}

// WithPhase sets the phase and touches UpdatedAt.
func (s *State) WithPhase(phase Phase) *State {
	s.Phase = phase
	s.UpdatedAt = time.Now()
	return s
}

// WithIteration records the loop iteration.
func (s *State) WithIteration(iteration int) *State {
	s.Iteration = iteration
	return s
}

// Append adds messages to the history.
func (s *State) Append(messages ...*model.Message) *State {
	s.Messages = append(s.Messages, messages...)
	s.UpdatedAt = time.Now()
	return s
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = make([]*model.Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	return &out
}

// Serialize encodes the state as JSON.
func (s *State) Serialize() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize checkpoint state: %w", err)
	}
	return data, nil
}

// Deserialize decodes a state produced by Serialize.
func Deserialize(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint state: %w", err)
	}
	return &s, nil
}
