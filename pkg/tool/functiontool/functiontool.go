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

// Package functiontool adapts in-process Go functions to the tool
// contract.
//
// The wrapped function receives keyword arguments that already passed the
// declared input schema:
//
//	t := functiontool.New(desc, func(ctx context.Context, args map[string]any) (any, error) {
//	    return strings.ToUpper(args["text"].(string)), nil
//	})
//
// Non-string results are rendered as JSON before they reach the model.
package functiontool

import (
	"context"
	"errors"
	"fmt"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/schema"
	"github.com/kadirpekel/langsketch/pkg/tool"
)

// Func is a keyword-argument function.
type Func func(ctx context.Context, args map[string]any) (any, error)

type functionTool struct {
	tool.Base
	fn Func
}

// New wraps fn as a tool described by desc.
func New(desc config.ToolConfig, fn Func) tool.Tool {
	return &functionTool{
		Base: tool.NewBase(desc.Name, desc.Description, schema.ForTool(desc.Inputs.Fields)),
		fn:   fn,
	}
}

func (t *functionTool) Call(ctx context.Context, args map[string]any) (string, error) {
	validated, err := t.ValidateArgs(args)
	if err != nil {
		return "", err
	}

	result, err := t.fn(ctx, validated)
	if err != nil {
		if errors.Is(err, tool.ErrToolFailed) {
			return "", fmt.Errorf("%s: %w", t.Name(), err)
		}
		return "", fmt.Errorf("%s: %w: %v", t.Name(), tool.ErrToolFailed, err)
	}
	return tool.Render(result), nil
}
