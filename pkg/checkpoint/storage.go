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
	"fmt"
	"sync"
)

// Saver persists thread states.
type Saver interface {
	// Load returns the state of threadID, or nil when none was saved.
	Load(ctx context.Context, threadID string) (*State, error)

	// Save stores state under its ThreadID.
	Save(ctx context.Context, state *State) error

	// Clear forgets threadID.
	Clear(ctx context.Context, threadID string) error
}

// MemorySaver keeps states in a map. States are copied on the way in and
// out, so callers may keep mutating theirs.
type MemorySaver struct {
	mu      sync.RWMutex
	threads map[string]*State
}

// NewMemorySaver creates an empty in-memory saver.
func NewMemorySaver() *MemorySaver {
	return &MemorySaver{threads: make(map[string]*State)}
}

func (s *MemorySaver) Load(_ context.Context, threadID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threads[threadID].Clone(), nil
}

func (s *MemorySaver) Save(_ context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("cannot save nil checkpoint state")
	}
	if state.ThreadID == "" {
		return fmt.Errorf("thread_id is required for checkpoint")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[state.ThreadID] = state.Clone()
	return nil
}

func (s *MemorySaver) Clear(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

// Threads returns the number of saved threads.
func (s *MemorySaver) Threads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}
