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

// Package telemetry builds the fixed-schema execution record of an agent
// run and ships it to an audit file and a warehouse table.
package telemetry

// Column is one warehouse column with its generic SQL type.
type Column struct {
	Name string
	Type string
}

// Columns lists every record column in table order.
var Columns = []Column{
	{"agent_name", "STRING"},
	{"execution_timestamp", "BIGINT"},
	{"execution_date", "STRING"},
	{"execution_hour", "STRING"},
	{"execution_duration_ms", "DOUBLE"},
	{"execution_duration_seconds", "DOUBLE"},
	{"success", "BOOLEAN"},
	{"error_message", "STRING"},
	{"error_type", "STRING"},
	{"total_events", "INT"},
	{"total_tool_calls", "INT"},
	{"total_llm_calls", "INT"},
	{"avg_tool_call_duration_ms", "DOUBLE"},
	{"avg_llm_call_duration_ms", "DOUBLE"},
	{"total_tokens_used", "INT"},
	{"prompt_tokens_used", "INT"},
	{"completion_tokens_used", "INT"},
	{"tokens_per_second", "DOUBLE"},
	{"cost_estimate_usd", "DOUBLE"},
	{"tools_used_count", "INT"},
	{"tools_used_list", "STRING"},
	{"most_used_tool", "STRING"},
	{"most_used_tool_count", "INT"},
	{"tool_names", "STRING"},
	{"tool_call_ids", "STRING"},
	{"tool_call_timestamps", "STRING"},
	{"llm_model_used", "STRING"},
	{"llm_finish_reasons", "STRING"},
	{"llm_call_timestamps", "STRING"},
	{"input_size_chars", "INT"},
	{"input_fields_count", "INT"},
	{"has_array_input", "BOOLEAN"},
	{"agent_description", "STRING"},
	{"available_tools_count", "INT"},
	{"available_tools_list", "STRING"},
	{"utilities_enabled", "STRING"},
	{"apis_configured", "INT"},
	{"tools_per_second", "DOUBLE"},
	{"events_per_second", "DOUBLE"},
	{"efficiency_score", "DOUBLE"},
	{"has_validation_errors", "BOOLEAN"},
	{"output_validation_success", "BOOLEAN"},
	{"llm_errors", "INT"},
	{"tool_errors", "INT"},
	{"raw_input_data", "STRING"},
	{"execution_sequence", "STRING"},
}

// Record is the summary of one agent run. Field order follows Columns.
type Record struct {
	AgentName                string  `json:"agent_name"`
	ExecutionTimestamp       int64   `json:"execution_timestamp"`
	ExecutionDate            string  `json:"execution_date"`
	ExecutionHour            string  `json:"execution_hour"`
	ExecutionDurationMS      float64 `json:"execution_duration_ms"`
	ExecutionDurationSeconds float64 `json:"execution_duration_seconds"`
	Success                  bool    `json:"success"`
	ErrorMessage             string  `json:"error_message"`
	ErrorType                string  `json:"error_type"`
	TotalEvents              int     `json:"total_events"`
	TotalToolCalls           int     `json:"total_tool_calls"`
	TotalLLMCalls            int     `json:"total_llm_calls"`
	AvgToolCallDurationMS    float64 `json:"avg_tool_call_duration_ms"`
	AvgLLMCallDurationMS     float64 `json:"avg_llm_call_duration_ms"`
	TotalTokensUsed          int     `json:"total_tokens_used"`
	PromptTokensUsed         int     `json:"prompt_tokens_used"`
	CompletionTokensUsed     int     `json:"completion_tokens_used"`
	TokensPerSecond          float64 `json:"tokens_per_second"`
	CostEstimateUSD          float64 `json:"cost_estimate_usd"`
	ToolsUsedCount           int     `json:"tools_used_count"`
	ToolsUsedList            string  `json:"tools_used_list"`
	MostUsedTool             string  `json:"most_used_tool"`
	MostUsedToolCount        int     `json:"most_used_tool_count"`
	ToolNames                string  `json:"tool_names"`
	ToolCallIDs              string  `json:"tool_call_ids"`
	ToolCallTimestamps       string  `json:"tool_call_timestamps"`
	LLMModelUsed             string  `json:"llm_model_used"`
	LLMFinishReasons         string  `json:"llm_finish_reasons"`
	LLMCallTimestamps        string  `json:"llm_call_timestamps"`
	InputSizeChars           int     `json:"input_size_chars"`
	InputFieldsCount         int     `json:"input_fields_count"`
	HasArrayInput            bool    `json:"has_array_input"`
	AgentDescription         string  `json:"agent_description"`
	AvailableToolsCount      int     `json:"available_tools_count"`
	AvailableToolsList       string  `json:"available_tools_list"`
	UtilitiesEnabled         string  `json:"utilities_enabled"`
	APIsConfigured           int     `json:"apis_configured"`
	ToolsPerSecond           float64 `json:"tools_per_second"`
	EventsPerSecond          float64 `json:"events_per_second"`
	EfficiencyScore          float64 `json:"efficiency_score"`
	HasValidationErrors      bool    `json:"has_validation_errors"`
	OutputValidationSuccess  bool    `json:"output_validation_success"`
	LLMErrors                int     `json:"llm_errors"`
	ToolErrors               int     `json:"tool_errors"`
	RawInputData             string  `json:"raw_input_data"`
	ExecutionSequence        string  `json:"execution_sequence"`
}

// Values returns the column values in Columns order.
func (r *Record) Values() []any {
	return []any{
		r.AgentName,
		r.ExecutionTimestamp,
		r.ExecutionDate,
		r.ExecutionHour,
		r.ExecutionDurationMS,
		r.ExecutionDurationSeconds,
		r.Success,
		r.ErrorMessage,
		r.ErrorType,
		r.TotalEvents,
		r.TotalToolCalls,
		r.TotalLLMCalls,
		r.AvgToolCallDurationMS,
		r.AvgLLMCallDurationMS,
		r.TotalTokensUsed,
		r.PromptTokensUsed,
		r.CompletionTokensUsed,
		r.TokensPerSecond,
		r.CostEstimateUSD,
		r.ToolsUsedCount,
		r.ToolsUsedList,
		r.MostUsedTool,
		r.MostUsedToolCount,
		r.ToolNames,
		r.ToolCallIDs,
		r.ToolCallTimestamps,
		r.LLMModelUsed,
		r.LLMFinishReasons,
		r.LLMCallTimestamps,
		r.InputSizeChars,
		r.InputFieldsCount,
		r.HasArrayInput,
		r.AgentDescription,
		r.AvailableToolsCount,
		r.AvailableToolsList,
		r.UtilitiesEnabled,
		r.APIsConfigured,
		r.ToolsPerSecond,
		r.EventsPerSecond,
		r.EfficiencyScore,
		r.HasValidationErrors,
		r.OutputValidationSuccess,
		r.LLMErrors,
		r.ToolErrors,
		r.RawInputData,
		r.ExecutionSequence,
	}
}

// Map returns the record keyed by column name.
func (r *Record) Map() map[string]any {
	values := r.Values()
	out := make(map[string]any, len(Columns))
	for i, c := range Columns {
		out[c.Name] = values[i]
	}
	return out
}
