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

package checkpoint

import (
	"context"
	"log/slog"
)

// Manager applies Config on top of a Saver.
type Manager struct {
	config *Config
	saver  Saver
}

// NewManager creates a Manager. A nil cfg uses defaults; a nil saver uses
// a fresh MemorySaver.
func NewManager(cfg *Config, saver Saver) *Manager {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.SetDefaults()
	if saver == nil {
		saver = NewMemorySaver()
	}
	return &Manager{config: cfg, saver: saver}
}

// IsEnabled returns whether history is kept.
func (m *Manager) IsEnabled() bool {
	return m.config.IsEnabled()
}

// Config returns the memory configuration.
func (m *Manager) Config() *Config {
	return m.config
}

// Resume returns the saved state of threadID, or a fresh one when nothing
// was saved or memory is disabled.
func (m *Manager) Resume(ctx context.Context, threadID string) *State {
	if !m.IsEnabled() {
		return NewState(threadID)
	}
	state, err := m.saver.Load(ctx, threadID)
	if err != nil {
		slog.Warn("Failed to load checkpoint", "thread_id", threadID, "error", err)
		return NewState(threadID)
	}
	if state == nil {
		return NewState(threadID)
	}
	return state
}

// Save persists state, trimming history to MaxMessages.
func (m *Manager) Save(ctx context.Context, state *State) error {
	if !m.IsEnabled() {
		return nil
	}
	if limit := m.config.MaxMessages; limit > 0 && len(state.Messages) > limit {
		state = state.Clone()
		state.Messages = state.Messages[len(state.Messages)-limit:]
	}
	return m.saver.Save(ctx, state)
}

// Clear forgets threadID.
func (m *Manager) Clear(ctx context.Context, threadID string) error {
	return m.saver.Clear(ctx, threadID)
}

// Hooks saves the conversation at loop boundaries. A nil *Hooks is a
// no-op.
type Hooks struct {
	manager *Manager
}

// NewHooks creates hooks for the reasoning loop.
func NewHooks(manager *Manager) *Hooks {
	if manager == nil {
		return nil
	}
	return &Hooks{manager: manager}
}

// AfterLLMCall saves after a model response was appended.
func (h *Hooks) AfterLLMCall(ctx context.Context, state *State) {
	h.save(ctx, state, PhasePostLLM)
}

// AfterToolExecution saves after a round of tool results was appended.
func (h *Hooks) AfterToolExecution(ctx context.Context, state *State) {
	h.save(ctx, state, PhasePostTool)
}

// OnComplete saves the final conversation.
func (h *Hooks) OnComplete(ctx context.Context, state *State) {
	h.save(ctx, state, PhaseCompleted)
}

// OnError saves the conversation as far as it got.
func (h *Hooks) OnError(ctx context.Context, state *State) {
	h.save(ctx, state, PhaseError)
}

func (h *Hooks) save(ctx context.Context, state *State, phase Phase) {
	if h == nil {
		return
	}
	state.WithPhase(phase)
	if err := h.manager.Save(ctx, state); err != nil {
		slog.Warn("Failed to save checkpoint",
			"thread_id", state.ThreadID,
			"phase", phase,
			"error", err)
	}
}
