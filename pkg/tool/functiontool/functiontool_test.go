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

package functiontool_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/schema"
	"github.com/kadirpekel/langsketch/pkg/tool"
	"github.com/kadirpekel/langsketch/pkg/tool/functiontool"
	"github.com/kadirpekel/langsketch/pkg/utility"
)

func greetDescriptor() config.ToolConfig {
	optional := false
	return config.ToolConfig{
		Name:        "greet user",
		Description: "Greet a user",
		Inputs: config.ToolInputConfig{Fields: []config.FieldConfig{
			{Name: "name", Type: "string"},
			{Name: "times", Type: "int", Required: &optional, Default: 1},
		}},
		CodePath:     config.CodePathBuiltin,
		FunctionName: "greet",
	}
}

func TestNew_KeywordArguments(t *testing.T) {
	var got map[string]any
	greet := functiontool.New(greetDescriptor(), func(_ context.Context, args map[string]any) (any, error) {
		got = args
		return map[string]any{"greeting": "hi " + args["name"].(string)}, nil
	})

	assert.Equal(t, "greet_user", greet.Name())
	assert.Equal(t, "Greet a user", greet.Description())

	out, err := greet.Call(context.Background(), map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"greeting": "hi Ada"}`, out)
	assert.Equal(t, map[string]any{"name": "Ada", "times": 1}, got)
}

func TestNew_RejectsExtraArguments(t *testing.T) {
	called := false
	greet := functiontool.New(greetDescriptor(), func(context.Context, map[string]any) (any, error) {
		called = true
		return "ok", nil
	})

	_, err := greet.Call(context.Background(), map[string]any{"name": "Ada", "mood": "happy"})
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrInputValidation)
	assert.False(t, called)

	_, err = greet.Call(context.Background(), nil)
	assert.ErrorIs(t, err, schema.ErrInputValidation)
}

func TestNew_WrapsFailures(t *testing.T) {
	boom := functiontool.New(greetDescriptor(), func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := boom.Call(context.Background(), map[string]any{"name": "x"})
	assert.ErrorIs(t, err, tool.ErrToolFailed)
	assert.Contains(t, err.Error(), "boom")
}

func TestNew_Utility(t *testing.T) {
	u, ok := utility.Lookup(config.UtilityStringOps)
	require.True(t, ok)

	ops := functiontool.New(u.Descriptor, functiontool.Func(u.Func))
	assert.Equal(t, "String_Operations", ops.Name())

	out, err := ops.Call(context.Background(), map[string]any{"action": "uppercase", "text": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "ABC", out)

	def := tool.DefinitionOf(ops)
	assert.Equal(t, "String_Operations", def.Name)
	assert.Equal(t, []any{"action", "text"}, def.Parameters["required"])
}
