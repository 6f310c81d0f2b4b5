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

// Package scripttool loads user tools from JavaScript source files.
//
// A script exports its entry point through module.exports, exports or the
// global scope:
//
//	module.exports.celsius_to_fahrenheit = function (args) {
//	    return args.celsius * 9 / 5 + 32;
//	};
//
// The function receives one object holding the keyword arguments. Scripts
// run without a sandbox.
package scripttool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dop251/goja"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/schema"
	"github.com/kadirpekel/langsketch/pkg/tool"
)

type scriptTool struct {
	tool.Base
	path   string
	symbol string

	// goja runtimes are not goroutine safe.
	mu sync.Mutex
	vm *goja.Runtime
	fn goja.Callable
}

// Load evaluates the script at desc.CodePath and resolves
// desc.FunctionName. A missing file, a missing symbol or a symbol that is
// not a function fails with tool.ErrToolLoadFailed.
func Load(desc config.ToolConfig) (tool.Tool, error) {
	src, err := os.ReadFile(desc.CodePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", tool.ErrToolLoadFailed, desc.Name, err)
	}
	if desc.FunctionName == "" {
		return nil, fmt.Errorf("%w: %s: function_name is empty", tool.ErrToolLoadFailed, desc.Name)
	}

	vm := goja.New()
	module := vm.NewObject()
	exports := vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", tool.ErrToolLoadFailed, desc.Name, err)
	}
	if err := vm.Set("module", module); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", tool.ErrToolLoadFailed, desc.Name, err)
	}
	if err := vm.Set("exports", exports); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", tool.ErrToolLoadFailed, desc.Name, err)
	}

	if _, err := vm.RunScript(desc.CodePath, string(src)); err != nil {
		return nil, fmt.Errorf("%w: %s: evaluate %s: %v", tool.ErrToolLoadFailed, desc.Name, desc.CodePath, err)
	}

	value := resolve(vm, desc.FunctionName)
	if value == nil {
		return nil, fmt.Errorf("%w: %s: symbol %q not found in %s", tool.ErrToolLoadFailed, desc.Name, desc.FunctionName, desc.CodePath)
	}
	fn, ok := goja.AssertFunction(value)
	if !ok {
		return nil, fmt.Errorf("%w: %s: symbol %q is not callable", tool.ErrToolLoadFailed, desc.Name, desc.FunctionName)
	}

	return &scriptTool{
		Base:   tool.NewBase(desc.Name, desc.Description, schema.ForTool(desc.Inputs.Fields)),
		path:   desc.CodePath,
		symbol: desc.FunctionName,
		vm:     vm,
		fn:     fn,
	}, nil
}

// resolve looks symbol up in module.exports, then exports, then globals.
func resolve(vm *goja.Runtime, symbol string) goja.Value {
	lookup := func(v goja.Value) goja.Value {
		if !defined(v) {
			return nil
		}
		obj := v.ToObject(vm)
		if got := obj.Get(symbol); defined(got) {
			return got
		}
		return nil
	}

	if module := vm.Get("module"); defined(module) {
		if v := lookup(module.ToObject(vm).Get("exports")); v != nil {
			return v
		}
	}
	if v := lookup(vm.Get("exports")); v != nil {
		return v
	}
	if v := vm.Get(symbol); defined(v) {
		return v
	}
	return nil
}

func defined(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

func (t *scriptTool) Call(ctx context.Context, args map[string]any) (string, error) {
	validated, err := t.ValidateArgs(args)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w: %v", t.Name(), tool.ErrToolFailed, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		t.vm.Interrupt(ctx.Err())
	})
	defer func() {
		stop()
		t.vm.ClearInterrupt()
	}()

	result, err := t.fn(goja.Undefined(), t.vm.ToValue(validated))
	if err != nil {
		var exc *goja.Exception
		if errors.As(err, &exc) {
			return "", fmt.Errorf("%s: %w: %s", t.Name(), tool.ErrToolFailed, exc.Value().String())
		}
		return "", fmt.Errorf("%s: %w: %v", t.Name(), tool.ErrToolFailed, err)
	}

	if !defined(result) {
		return tool.Render(nil), nil
	}
	return tool.Render(result.Export()), nil
}
