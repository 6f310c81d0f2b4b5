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

import "sync"

// Built-in router names.
const (
	DefaultRouter      = "agent-router"
	IntelligenceRouter = "agent-intelligence-router"
)

const (
	modelSonnet     = "anthropic/claude-3-5-sonnet-20241022"
	modelGPT4o      = "openai/gpt-4o"
	modelGPT4oMini  = "openai/gpt-4o-mini"
	classifierModel = modelGPT4oMini
)

var setupOnce sync.Once

// Setup installs the built-in rules and routers into the process-wide
// registry. Only the first call has an effect; swapping routers requires
// a restart.
func Setup() {
	setupOnce.Do(func() {
		Install(defaultRegistry)
	})
}

// Install registers the built-in rules and both built-in routers into reg.
func Install(reg *Registry) {
	installAgentRouter(reg)
	installIntelligenceRouter(reg)
}

func installAgentRouter(reg *Registry) {
	reg.RegisterRule(NewAutoTaskRule("agent-specialist-detection", []Trigger{
		{"solidity_coding", "alfredpros/codellama-7b-instruct-solidity"},
		{"mathematical_proof", "deepseek/deepseek-prover-v2"},
		{"math_reasoning", "qwen/qwq-32b"},
		{"step_by_step_reasoning", "deepseek/deepseek-r1"},
		{"visual_analysis", "qwen/qwen2.5-vl-72b-instruct"},
		{"web_research", "perplexity/sonar-reasoning"},
		{"current_events", "perplexity/sonar"},
	}, "", classifierModel))

	reg.RegisterRule(NewAutoTaskRule("agent-general-tasks", []Trigger{
		{"coding", modelSonnet},
		{"debugging", modelSonnet},
		{"code_review", modelSonnet},
		{"data_analysis", modelSonnet},
		{"system_design", modelSonnet},
		{"technical_writing", modelSonnet},
	}, "", classifierModel))

	reg.RegisterRule(NewAutoTaskRule("agent-creative-tasks", []Trigger{
		{"creative_writing", modelGPT4o},
		{"storytelling", modelGPT4o},
		{"content_creation", modelGPT4o},
		{"marketing_copy", modelGPT4o},
		{"brainstorming", modelGPT4oMini},
	}, "", classifierModel))

	reg.RegisterRule(NewAutoTaskRule("agent-simple-tasks", []Trigger{
		{"simple_question", modelGPT4oMini},
		{"quick_answer", modelGPT4oMini},
		{"translation", modelGPT4oMini},
		{"summarization", modelGPT4oMini},
		{"basic_explanation", modelGPT4oMini},
	}, "", classifierModel))

	reg.RegisterRule(NewAutoTaskRule("agent-complexity-routing", []Trigger{
		{"complex_analysis", modelSonnet},
		{"detailed_research", modelSonnet},
		{"comprehensive_review", modelSonnet},
		{"general_help", modelGPT4o},
		{"casual_conversation", modelGPT4oMini},
	}, modelGPT4o, classifierModel))

	reg.RegisterRule(NewCodeRule("agent-code-detection", modelSonnet, RulePrefix+"agent-specialist-detection"))

	reg.RegisterRule(NewMessageLengthRule("agent-smart-length", 50, 800, modelGPT4oMini, modelGPT4o, modelSonnet))

	reg.RegisterRouter(&Router{
		Name: DefaultRouter,
		Rules: []string{
			RulePrefix + "agent-code-detection",
			RulePrefix + "agent-specialist-detection",
			RulePrefix + "agent-general-tasks",
			RulePrefix + "agent-creative-tasks",
			RulePrefix + "agent-simple-tasks",
			RulePrefix + "agent-smart-length",
			RulePrefix + "agent-complexity-routing",
		},
		Default: modelGPT4o,
	})
}

// installIntelligenceRouter registers the keyword-first router. Its code
// rule defers to the length rule, so it is registered under its own name.
func installIntelligenceRouter(reg *Registry) {
	reg.RegisterRule(NewTaskRule("agent-task-routing", []Trigger{
		{"coding", modelSonnet},
		{"analysis", modelSonnet},
		{"creative", modelGPT4o},
		{"simple", modelGPT4oMini},
		{"reasoning", modelSonnet},
	}, ""))

	reg.RegisterRule(NewCodeRule("agent-intelligence-code-detection", modelSonnet, RulePrefix+"agent-message-length"))

	reg.RegisterRule(NewMessageLengthRule("agent-message-length", 50, 1000, modelGPT4oMini, modelGPT4o, modelSonnet))

	reg.RegisterRule(NewAutoTaskRule("agent-auto-fallback", []Trigger{
		{"writing code", modelSonnet},
		{"data analysis", modelSonnet},
		{"creative writing", modelGPT4o},
		{"simple questions", modelGPT4oMini},
		{"complex reasoning", modelSonnet},
		{"research", modelSonnet},
	}, "", classifierModel))

	reg.RegisterRouter(&Router{
		Name: IntelligenceRouter,
		Rules: []string{
			RulePrefix + "agent-task-routing",
			RulePrefix + "agent-intelligence-code-detection",
			RulePrefix + "agent-message-length",
			RulePrefix + "agent-auto-fallback",
		},
		Default: modelGPT4o,
	})
}
