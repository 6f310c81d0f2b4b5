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

package config

import (
	"fmt"
	"os"
	"time"
)

// Environment variables selecting the chat-model provider.
const (
	EnvProviderAPIKey = "DEIMOS_API_KEY"
	EnvProviderURL    = "DEIMOS_API_URL"
)

// ProviderConfig configures the OpenAI-compatible chat endpoint that
// fronts the routed models.
type ProviderConfig struct {
	APIKey     string        `yaml:"api_key" json:"api_key"`
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	Timeout    time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
}

// ProviderFromEnv reads the provider settings from the environment.
func ProviderFromEnv() ProviderConfig {
	cfg := ProviderConfig{
		APIKey:  os.Getenv(EnvProviderAPIKey),
		BaseURL: os.Getenv(EnvProviderURL),
	}
	cfg.SetDefaults()
	return cfg
}

func (c *ProviderConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

func (c *ProviderConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%s is not set", EnvProviderURL)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%s is not set", EnvProviderAPIKey)
	}
	return nil
}
