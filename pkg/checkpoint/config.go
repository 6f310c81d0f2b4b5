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

import "fmt"

// DefaultThreadID is the conversation every run of an agent shares.
const DefaultThreadID = "main"

// Config configures conversation memory.
//
//	checkpoint:
//	  enabled: true
//	  max_messages: 200
type Config struct {
	// Enabled keeps history between runs on the same thread.
	// Default: true
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// MaxMessages caps the stored history per thread; the oldest turns
	// are dropped first. 0 keeps everything.
	MaxMessages int `yaml:"max_messages,omitempty" json:"max_messages,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxMessages < 0 {
		return fmt.Errorf("max_messages must be non-negative, got %d", c.MaxMessages)
	}
	return nil
}

// IsEnabled returns whether history is kept.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
