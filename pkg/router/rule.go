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

package router

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

// RulePrefix is the reference form of a registered rule.
const RulePrefix = "deimos/rules/"

// Result is the outcome of one rule. A rule either picks a model, defers
// to another rule through Next, or leaves both empty to let the router
// try its next rule.
type Result struct {
	Model string
	Next  string
}

// Decided reports whether the rule produced anything.
func (r Result) Decided() bool {
	return r.Model != "" || r.Next != ""
}

// Rule classifies a prompt.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, prompt string, reg *Registry) (Result, error)
}

// IsRuleRef reports whether target names a rule rather than a model.
func IsRuleRef(target string) bool {
	return strings.HasPrefix(target, RulePrefix)
}

// RuleName strips the reference prefix.
func RuleName(ref string) string {
	return strings.TrimPrefix(ref, RulePrefix)
}

// outcome turns a target into a Result.
func outcome(target string) Result {
	if IsRuleRef(target) {
		return Result{Next: RuleName(target)}
	}
	return Result{Model: target}
}

// Trigger maps a task label to a target model or rule reference.
type Trigger struct {
	Label  string
	Target string
}

// CodeRule sends prompts that contain source code to Code and everything
// else to NotCode.
type CodeRule struct {
	name    string
	Code    string
	NotCode string
}

// NewCodeRule creates a CodeRule. Targets are models or rule references.
func NewCodeRule(name, code, notCode string) *CodeRule {
	return &CodeRule{name: name, Code: code, NotCode: notCode}
}

func (r *CodeRule) Name() string {
	return r.name
}

func (r *CodeRule) Evaluate(_ context.Context, prompt string, _ *Registry) (Result, error) {
	if LooksLikeCode(prompt) {
		return outcome(r.Code), nil
	}
	if r.NotCode == "" {
		return Result{}, nil
	}
	return outcome(r.NotCode), nil
}

var (
	codeFence   = regexp.MustCompile("```")
	codeSignals = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*(def|class)\s+\w+\s*[(:]`),
		regexp.MustCompile(`\bfunction\s*\w*\s*\([^)]*\)\s*\{`),
		regexp.MustCompile(`(?m)^\s*(import|from)\s+[\w.]+(\s+import\s+\w+)?\s*;?\s*$`),
		regexp.MustCompile(`(?m)^\s*#include\s*<`),
		regexp.MustCompile(`\b(const|let|var)\s+\w+\s*=`),
		regexp.MustCompile(`\)\s*=>\s*[{(]?`),
		regexp.MustCompile(`(?m);\s*$`),
		regexp.MustCompile(`(?m)\{\s*$`),
		regexp.MustCompile(`\b(SELECT|INSERT|UPDATE|DELETE)\b.+\b(FROM|INTO|SET)\b`),
	}
)

// LooksLikeCode reports whether text contains a fenced block or at least
// two distinct source code signals.
func LooksLikeCode(text string) bool {
	if codeFence.MatchString(text) {
		return true
	}
	hits := 0
	for _, re := range codeSignals {
		if re.MatchString(text) {
			hits++
			if hits >= 2 {
				return true
			}
		}
	}
	return false
}

// TaskRule classifies a prompt by keywords: the first trigger whose label
// words all occur in the prompt wins.
type TaskRule struct {
	name     string
	Triggers []Trigger
	Default  string
}

func NewTaskRule(name string, triggers []Trigger, def string) *TaskRule {
	return &TaskRule{name: name, Triggers: triggers, Default: def}
}

func (r *TaskRule) Name() string {
	return r.name
}

func (r *TaskRule) Evaluate(_ context.Context, prompt string, _ *Registry) (Result, error) {
	lower := strings.ToLower(prompt)
	for _, t := range r.Triggers {
		if matchesLabel(lower, t.Label) {
			return outcome(t.Target), nil
		}
	}
	if r.Default != "" {
		return outcome(r.Default), nil
	}
	return Result{}, nil
}

// matchesLabel reports whether every word of label occurs in text by
// its stem, so "coding" matches "code" and "data_analysis" matches
// "analysis of sales data".
func matchesLabel(text, label string) bool {
	words := strings.FieldsFunc(strings.ToLower(label), func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(stem(w)))
		if !re.MatchString(text) {
			return false
		}
	}
	return true
}

func stem(word string) string {
	for _, suffix := range []string{"ing", "es", "s", "e"} {
		if base, ok := strings.CutSuffix(word, suffix); ok && utf8.RuneCountInString(base) >= 3 {
			return base
		}
	}
	return word
}

// AutoTaskRule asks a small model to pick one trigger label.
type AutoTaskRule struct {
	name     string
	Triggers []Trigger
	Default  string

	// LLMModel is the classifier model.
	LLMModel string

	// Classifier overrides the registry's classifier factory.
	Classifier Classifier
}

func NewAutoTaskRule(name string, triggers []Trigger, def, llmModel string) *AutoTaskRule {
	return &AutoTaskRule{name: name, Triggers: triggers, Default: def, LLMModel: llmModel}
}

func (r *AutoTaskRule) Name() string {
	return r.name
}

func (r *AutoTaskRule) Evaluate(ctx context.Context, prompt string, reg *Registry) (Result, error) {
	classifier := r.Classifier
	if classifier == nil && reg != nil {
		classifier = reg.classifier(r.LLMModel)
	}
	if classifier == nil {
		return r.fallback(), nil
	}

	labels := make([]string, len(r.Triggers))
	for i, t := range r.Triggers {
		labels[i] = t.Label
	}

	label, err := classifier.Classify(ctx, prompt, labels)
	if err != nil {
		slog.Warn("Task classification failed", "rule", r.name, "error", err)
		return r.fallback(), nil
	}
	for _, t := range r.Triggers {
		if t.Label == label {
			return outcome(t.Target), nil
		}
	}
	return r.fallback(), nil
}

func (r *AutoTaskRule) fallback() Result {
	if r.Default != "" {
		return outcome(r.Default)
	}
	return Result{}
}

// MessageLengthRule picks a model by prompt length in characters.
type MessageLengthRule struct {
	name           string
	ShortThreshold int
	LongThreshold  int
	ShortModel     string
	MediumModel    string
	LongModel      string
}

func NewMessageLengthRule(name string, shortThreshold, longThreshold int, shortModel, mediumModel, longModel string) *MessageLengthRule {
	return &MessageLengthRule{
		name:           name,
		ShortThreshold: shortThreshold,
		LongThreshold:  longThreshold,
		ShortModel:     shortModel,
		MediumModel:    mediumModel,
		LongModel:      longModel,
	}
}

func (r *MessageLengthRule) Name() string {
	return r.name
}

func (r *MessageLengthRule) Evaluate(_ context.Context, prompt string, _ *Registry) (Result, error) {
	n := utf8.RuneCountInString(prompt)
	switch {
	case n < r.ShortThreshold:
		return outcome(r.ShortModel), nil
	case n > r.LongThreshold:
		return outcome(r.LongModel), nil
	default:
		return outcome(r.MediumModel), nil
	}
}
