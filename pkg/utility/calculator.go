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

package utility

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"

	"github.com/kadirpekel/langsketch/pkg/tool"
)

// calcConstants are the only identifiers besides calcFunctions.
var calcConstants = map[string]any{
	"pi": math.Pi,
	"e":  math.E,
}

func unary(name string, fn func(float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s expects 1 argument, got %d", name, len(params))
		}
		x, err := number(params[0])
		if err != nil {
			return nil, err
		}
		return fn(x), nil
	})
}

func calcFunctions() []expr.Option {
	return []expr.Option{
		unary("sqrt", math.Sqrt),
		unary("sin", math.Sin),
		unary("cos", math.Cos),
		unary("tan", math.Tan),
		unary("log10", math.Log10),
		unary("exp", math.Exp),
		unary("abs", math.Abs),
		expr.Function("log", func(params ...any) (any, error) {
			switch len(params) {
			case 1:
				x, err := number(params[0])
				if err != nil {
					return nil, err
				}
				return math.Log(x), nil
			case 2:
				x, err := number(params[0])
				if err != nil {
					return nil, err
				}
				base, err := number(params[1])
				if err != nil {
					return nil, err
				}
				return math.Log(x) / math.Log(base), nil
			}
			return nil, fmt.Errorf("log expects 1 or 2 arguments, got %d", len(params))
		}),
		expr.Function("round", func(params ...any) (any, error) {
			if len(params) < 1 || len(params) > 2 {
				return nil, fmt.Errorf("round expects 1 or 2 arguments, got %d", len(params))
			}
			x, err := number(params[0])
			if err != nil {
				return nil, err
			}
			digits := 0.0
			if len(params) == 2 {
				if digits, err = number(params[1]); err != nil {
					return nil, err
				}
			}
			scale := math.Pow(10, math.Trunc(digits))
			return math.RoundToEven(x*scale) / scale, nil
		}),
	}
}

// xorOperator rewrites "a ^ b" to xor(a, b); "**" stays the power
// operator.
type xorOperator struct{}

func (xorOperator) Visit(node *ast.Node) {
	if b, ok := (*node).(*ast.BinaryNode); ok && b.Operator == "^" {
		ast.Patch(node, &ast.CallNode{
			Callee:    &ast.IdentifierNode{Value: "xor"},
			Arguments: []ast.Node{b.Left, b.Right},
		})
	}
}

func xor(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("^ expects 2 operands, got %d", len(params))
	}
	a, aok := integer(params[0])
	b, bok := integer(params[1])
	if !aok || !bok {
		return nil, fmt.Errorf("unsupported operand types for ^: %T and %T", params[0], params[1])
	}
	return a ^ b, nil
}

func integer(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case int32:
		return int(x), true
	}
	return 0, false
}

// Calculator evaluates an arithmetic expression over pi, e and the
// functions sqrt, sin, cos, tan, log, log10, exp, abs and round.
// Any other identifier is rejected. "**" is the power operator and "^"
// is bitwise XOR on integers; "^" keeps the precedence of a power, so
// "(1 + 4) ^ 3" needs its parentheses.
func Calculator(expression string) (float64, error) {
	opts := append([]expr.Option{
		expr.Env(calcConstants),
		expr.DisableAllBuiltins(),
		expr.Function("xor", xor),
		expr.Patch(xorOperator{}),
	}, calcFunctions()...)

	program, err := expr.Compile(expression, opts...)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid mathematical expression: %v", tool.ErrToolFailed, err)
	}

	out, err := expr.Run(program, calcConstants)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid mathematical expression: %v", tool.ErrToolFailed, err)
	}

	result, err := number(out)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid mathematical expression: result is %T", tool.ErrToolFailed, out)
	}
	return result, nil
}

func number(v any) (float64, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}
