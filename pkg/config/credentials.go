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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CredentialsFile is the side-loaded credentials file name.
const CredentialsFile = ".langsketch-credentials.json"

// Environment fallbacks for warehouse credentials.
const (
	EnvDatabricksHost  = "DATABRICKS_HOST"
	EnvDatabricksToken = "DATABRICKS_TOKEN"
)

// ErrNoCredentials is returned when no warehouse credentials can be resolved.
var ErrNoCredentials = errors.New("databricks credentials not found")

// DatabricksCredential is one workspace entry of the credentials file.
type DatabricksCredential struct {
	WorkspaceURL  string `yaml:"workspaceUrl" json:"workspaceUrl"`
	PersonalToken string `yaml:"personalToken" json:"personalToken"`
}

// Credentials mirrors the credentials file written by the desktop app.
type Credentials struct {
	Databricks []DatabricksCredential `yaml:"databricksCredentials" json:"databricksCredentials"`
}

// LoadCredentials parses a credentials file. JSON is accepted since it is
// a subset of YAML.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &creds, nil
}

// ResolveDatabricks returns the first usable workspace credential, looking
// for CredentialsFile in each dir in order and falling back to the
// environment.
func ResolveDatabricks(dirs ...string) (DatabricksCredential, error) {
	for _, dir := range dirs {
		creds, err := LoadCredentials(filepath.Join(dir, CredentialsFile))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return DatabricksCredential{}, err
		}
		for _, c := range creds.Databricks {
			if c.WorkspaceURL != "" && c.PersonalToken != "" {
				return c.normalized(), nil
			}
		}
	}

	env := DatabricksCredential{
		WorkspaceURL:  os.Getenv(EnvDatabricksHost),
		PersonalToken: os.Getenv(EnvDatabricksToken),
	}
	if env.WorkspaceURL != "" && env.PersonalToken != "" {
		return env.normalized(), nil
	}
	return DatabricksCredential{}, ErrNoCredentials
}

func (c DatabricksCredential) normalized() DatabricksCredential {
	url := strings.TrimRight(strings.TrimSpace(c.WorkspaceURL), "/")
	if url != "" && !strings.Contains(url, "://") {
		url = "https://" + url
	}
	c.WorkspaceURL = url
	return c
}
