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

// Package loader turns tool declarations into tools.
package loader

import (
	"fmt"
	"path/filepath"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/httpclient"
	"github.com/kadirpekel/langsketch/pkg/tool"
	"github.com/kadirpekel/langsketch/pkg/tool/apitool"
	"github.com/kadirpekel/langsketch/pkg/tool/functiontool"
	"github.com/kadirpekel/langsketch/pkg/tool/scripttool"
)

// Options carries what a declaration alone does not: the builtin
// function handles, the API declarations and where script paths are
// relative to.
type Options struct {
	// Builtins maps function_name to the implementation of builtin tools.
	Builtins map[string]functiontool.Func

	// APIs maps a tool name to its API declaration.
	APIs map[string]config.APIConfig

	// BaseDir resolves relative script paths.
	BaseDir string

	// HTTPClient overrides the client of API tools.
	HTTPClient *httpclient.Client
}

// Load builds the tool declared by desc. Every failure wraps
// tool.ErrToolLoadFailed.
func Load(desc config.ToolConfig, opts Options) (tool.Tool, error) {
	switch desc.Backend() {
	case config.BackendBuiltin:
		fn, ok := opts.Builtins[desc.FunctionName]
		if !ok || fn == nil {
			return nil, fmt.Errorf("%w: %s: no builtin function %q", tool.ErrToolLoadFailed, desc.Name, desc.FunctionName)
		}
		return functiontool.New(desc, fn), nil

	case config.BackendAPI:
		api, ok := opts.APIs[desc.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s: no api declaration", tool.ErrToolLoadFailed, desc.Name)
		}
		var apiOpts []apitool.Option
		if opts.HTTPClient != nil {
			apiOpts = append(apiOpts, apitool.WithClient(opts.HTTPClient))
		}
		return apitool.New(api, apiOpts...)

	default:
		if opts.BaseDir != "" && !filepath.IsAbs(desc.CodePath) {
			desc.CodePath = filepath.Join(opts.BaseDir, desc.CodePath)
		}
		return scripttool.Load(desc)
	}
}
