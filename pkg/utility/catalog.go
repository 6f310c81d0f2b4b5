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

// Package utility implements the closed set of built-in utilities an
// agent may enable by key, each paired with its tool declaration.
package utility

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/registry"
)

// Func is the keyword-argument entry point of a utility. args has already
// been validated against the utility's input schema.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Utility pairs a declaration with its implementation.
type Utility struct {
	Key        string
	Descriptor config.ToolConfig
	Func       Func
}

var (
	catalogOnce sync.Once
	catalog     *registry.OrderedRegistry[Utility]
)

// Catalog returns every utility in catalog order.
func Catalog() []Utility {
	return builtins().List()
}

// Lookup returns the utility registered under key.
func Lookup(key string) (Utility, bool) {
	return builtins().Get(key)
}

func builtins() *registry.OrderedRegistry[Utility] {
	catalogOnce.Do(func() {
		catalog = registry.New[Utility]()
		for _, u := range definitions() {
			if err := catalog.Register(u.Key, u); err != nil {
				panic(fmt.Sprintf("utility catalog: %v", err))
			}
		}
	})
	return catalog
}

func field(name, typ, desc string, required bool) config.FieldConfig {
	return config.FieldConfig{Name: name, Type: typ, Description: desc, Required: &required}
}

func descriptor(name, desc, key string, inputs []config.FieldConfig, isArray bool, output config.FieldConfig) config.ToolConfig {
	return config.ToolConfig{
		Name:         name,
		Description:  desc,
		Inputs:       config.ToolInputConfig{Fields: inputs},
		Output:       config.ToolOutputConfig{IsArray: isArray, Fields: []config.FieldConfig{output}},
		CodePath:     config.CodePathBuiltin,
		FunctionName: key,
	}
}

func definitions() []Utility {
	return []Utility{
		{
			Key: config.UtilityRegexExtract,
			Descriptor: descriptor("Regex Extract", "Extract text patterns using regular expressions", config.UtilityRegexExtract,
				[]config.FieldConfig{
					field("text", "string", "Input text to search", true),
					field("pattern", "string", "Regular expression pattern", true),
				}, true, field("matches", "list", "List of matching strings", true)),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				return RegexExtract(stringArg(args, "text", ""), stringArg(args, "pattern", "")), nil
			},
		},
		{
			Key: config.UtilityCalculator,
			Descriptor: descriptor("Calculator", "Safely evaluate mathematical expressions", config.UtilityCalculator,
				[]config.FieldConfig{
					field("expression", "string", "Mathematical expression to evaluate", true),
				}, false, field("result", "float", "Result of the calculation", true)),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				return Calculator(stringArg(args, "expression", ""))
			},
		},
		{
			Key: config.UtilityDateParser,
			Descriptor: descriptor("Date Parser", "Parse dates from text into various formats", config.UtilityDateParser,
				[]config.FieldConfig{
					field("text", "string", "Text containing date to parse", true),
					field("output_format", "string", "Output format (iso, unix, or custom format)", false),
				}, false, field("parsed_date", "string", "Parsed date in requested format", true)),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				return DateParser(stringArg(args, "text", ""), stringArg(args, "output_format", DateFormatISO)), nil
			},
		},
		{
			Key: config.UtilityStringOps,
			Descriptor: descriptor("String Operations", "Perform various string operations like lowercase, trim, replace, substring", config.UtilityStringOps,
				[]config.FieldConfig{
					field("action", "string", "Action to perform (lowercase, uppercase, trim, replace, substring)", true),
					field("text", "string", "Input text to process", true),
					field("extra", "dict", "Extra parameters (old/new for replace, start/end for substring)", false),
				}, false, field("result", "string", "Processed text result", true)),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				return StringOps(stringArg(args, "action", ""), stringArg(args, "text", ""), mapArg(args, "extra")), nil
			},
		},
		{
			Key: config.UtilityJSONParser,
			Descriptor: descriptor("JSON Parser", "Parse JSON strings and extract specific fields", config.UtilityJSONParser,
				[]config.FieldConfig{
					field("json_str", "string", "JSON string to parse", true),
					field("fields", "list", "List of fields to extract (optional)", false),
				}, false, field("parsed_data", "dict", "Parsed JSON data", true)),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				return JSONParser(stringArg(args, "json_str", ""), stringsArg(args, "fields")), nil
			},
		},
		{
			Key: config.UtilityUnitConverter,
			Descriptor: descriptor("Unit Converter", "Convert values between different units", config.UtilityUnitConverter,
				[]config.FieldConfig{
					field("value", "float", "Value to convert", true),
					field("from_unit", "string", "Source unit", true),
					field("to_unit", "string", "Target unit", true),
				}, false, field("converted_value", "float", "Converted value", true)),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				value, _ := numeric(args["value"])
				return UnitConverter(value, stringArg(args, "from_unit", ""), stringArg(args, "to_unit", ""))
			},
		},
		{
			Key: config.UtilityTextSummary,
			Descriptor: descriptor("Text Summary", "Summarize text content", config.UtilityTextSummary,
				[]config.FieldConfig{
					field("text", "string", "Text to summarize", true),
					field("mode", "string", "Summary mode (short, medium, long)", false),
				}, false, field("summary", "string", "Summarized text", true)),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				return TextSummary(stringArg(args, "text", ""), stringArg(args, "mode", SummaryShort)), nil
			},
		},
		{
			Key: config.UtilityNumberStats,
			Descriptor: descriptor("Number Statistics", "Compute statistics on a list of numbers", config.UtilityNumberStats,
				[]config.FieldConfig{
					field("numbers", "list", "List of numbers to analyze", true),
				}, false, field("stats", "dict", "Statistical measures (min, max, mean, median, etc.)", true)),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				var numbers []float64
				for _, v := range listArg(args, "numbers") {
					if x, ok := numeric(v); ok {
						numbers = append(numbers, x)
					}
				}
				return NumberStats(numbers), nil
			},
		},
		{
			Key: config.UtilityListOps,
			Descriptor: descriptor("List Operations", "Perform operations on lists (map, filter, reduce)", config.UtilityListOps,
				[]config.FieldConfig{
					field("action", "string", "Operation to perform (map, filter, reduce)", true),
					field("list_data", "list", "Input list to process", true),
					field("extra", "dict", "Extra parameters for the operation", false),
				}, false, field("result", "object", "Result of the list operation", true)),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				return ListOps(stringArg(args, "action", ""), listArg(args, "list_data"), mapArg(args, "extra")), nil
			},
		},
		{
			Key: config.UtilityURLParser,
			Descriptor: descriptor("URL Parser", "Parse URL components into structured data", config.UtilityURLParser,
				[]config.FieldConfig{
					field("url", "string", "URL to parse", true),
				}, false, field("components", "dict", "URL components (scheme, domain, path, query, fragment)", true)),
			Func: func(_ context.Context, args map[string]any) (any, error) {
				return URLParser(stringArg(args, "url", "")), nil
			},
		},
	}
}

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	x, ok := numeric(args[key])
	if !ok {
		return def
	}
	return int(math.Trunc(x))
}

func mapArg(args map[string]any, key string) map[string]any {
	m, _ := args[key].(map[string]any)
	return m
}

func listArg(args map[string]any, key string) []any {
	l, _ := args[key].([]any)
	return l
}

func stringsArg(args map[string]any, key string) []string {
	var out []string
	for _, v := range listArg(args, key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
