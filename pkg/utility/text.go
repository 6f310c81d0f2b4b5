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
	"regexp"
	"strings"
)

// RegexExtract returns every non-overlapping match of pattern in text.
// With one capture group the group is returned instead of the whole match;
// with several, each match becomes the list of its groups. An invalid
// pattern yields an empty list.
func RegexExtract(text, pattern string) []any {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return []any{}
	}

	matches := re.FindAllStringSubmatch(text, -1)
	out := make([]any, 0, len(matches))
	for _, m := range matches {
		switch re.NumSubexp() {
		case 0:
			out = append(out, m[0])
		case 1:
			out = append(out, m[1])
		default:
			groups := make([]any, 0, len(m)-1)
			for _, g := range m[1:] {
				groups = append(groups, g)
			}
			out = append(out, groups)
		}
	}
	return out
}

const (
	StringLowercase = "lowercase"
	StringUppercase = "uppercase"
	StringTrim      = "trim"
	StringReplace   = "replace"
	StringSubstring = "substring"
)

// StringOps applies action to text. replace reads extra["old"] and
// extra["new"]; substring reads extra["start"] and extra["end"], both
// clamped to the text length. Unknown actions return text unchanged.
func StringOps(action, text string, extra map[string]any) string {
	switch action {
	case StringLowercase:
		return strings.ToLower(text)
	case StringUppercase:
		return strings.ToUpper(text)
	case StringTrim:
		return strings.TrimSpace(text)
	case StringReplace:
		old := stringArg(extra, "old", "")
		if old == "" {
			return text
		}
		return strings.ReplaceAll(text, old, stringArg(extra, "new", ""))
	case StringSubstring:
		runes := []rune(text)
		start := clamp(intArg(extra, "start", 0), len(runes))
		end := clamp(intArg(extra, "end", len(runes)), len(runes))
		if start >= end {
			return ""
		}
		return string(runes[start:end])
	}
	return text
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

const (
	SummaryShort  = "short"
	SummaryMedium = "medium"
)

var summaryLimits = map[string]int{
	SummaryShort:  100,
	SummaryMedium: 250,
}

// TextSummary truncates text to 100 (short) or 250 (medium) characters,
// appending an ellipsis when something was cut. Other modes return text.
func TextSummary(text, mode string) string {
	if mode == "" {
		mode = SummaryShort
	}
	limit, ok := summaryLimits[mode]
	if !ok {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
