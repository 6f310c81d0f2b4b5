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

package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Error types written to the error_type column.
const (
	ErrorTypeInputValidation = "input_validation_error"
	ErrorTypeExecution       = "execution_error"
)

// Execution sequence markers.
const (
	SequenceNone   = "none"
	SequenceFailed = "failed"
)

// CostPerToken is the flat USD estimate applied to every token.
const CostPerToken = 1.5e-6

// MaxRawInputChars bounds raw_input_data.
const MaxRawInputChars = 500

// ArrayInputKey marks a batch input.
const ArrayInputKey = "array_input"

// AgentInfo is the static part of a record.
type AgentInfo struct {
	Name        string
	Description string
	Tools       []string
	Utilities   []string
	APIs        int
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	Name      string
	ID        string
	Args      map[string]any
	Timestamp time.Time
}

// LLMCall is one model response.
type LLMCall struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	FinishReason     string
	Timestamp        time.Time
}

// Builder accumulates one run. It is not safe for concurrent use.
type Builder struct {
	info  AgentInfo
	start time.Time

	input     map[string]any
	events    int
	toolCalls []ToolCall
	llmCalls  []LLMCall

	toolErrors int
	llmErrors  int

	failed           bool
	errorType        string
	errorMessage     string
	validationErrors bool
	outputValid      bool
}

func NewBuilder(info AgentInfo, start time.Time) *Builder {
	return &Builder{info: info, start: start}
}

func (b *Builder) SetInput(input map[string]any) { b.input = input }
func (b *Builder) AddEvent()                     { b.events++ }
func (b *Builder) AddToolCall(c ToolCall)        { b.toolCalls = append(b.toolCalls, c) }
func (b *Builder) AddLLMCall(c LLMCall)          { b.llmCalls = append(b.llmCalls, c) }
func (b *Builder) AddToolError()                 { b.toolErrors++ }
func (b *Builder) AddLLMError()                  { b.llmErrors++ }
func (b *Builder) SetOutputValid(ok bool)        { b.outputValid = ok }

// InputInvalid marks the run as rejected before the agent ran.
func (b *Builder) InputInvalid(err error) {
	b.validationErrors = true
	b.Fail(ErrorTypeInputValidation, err)
}

// Fail marks the run as failed.
func (b *Builder) Fail(errorType string, err error) {
	b.failed = true
	b.errorType = errorType
	if err != nil {
		b.errorMessage = err.Error()
	}
}

// Build assembles the record for a run that ended at end. Every column is
// populated.
func (b *Builder) Build(end time.Time) *Record {
	duration := end.Sub(b.start)
	if duration < 0 {
		duration = 0
	}
	ms := float64(duration.Microseconds()) / 1000
	seconds := duration.Seconds()

	r := &Record{
		AgentName:                b.info.Name,
		ExecutionTimestamp:       b.start.Unix(),
		ExecutionDate:            b.start.Format(time.DateOnly),
		ExecutionHour:            b.start.Format("15") + ":00:00",
		ExecutionDurationMS:      round(ms, 2),
		ExecutionDurationSeconds: round(seconds, 3),
		Success:                  !b.failed,
		ErrorMessage:             b.errorMessage,
		ErrorType:                b.errorType,
		TotalEvents:              b.events,
		TotalToolCalls:           len(b.toolCalls),
		TotalLLMCalls:            len(b.llmCalls),
		AgentDescription:         b.info.Description,
		AvailableToolsCount:      len(b.info.Tools),
		AvailableToolsList:       strings.Join(b.info.Tools, ","),
		UtilitiesEnabled:         strings.Join(b.info.Utilities, ","),
		APIsConfigured:           b.info.APIs,
		HasValidationErrors:      b.validationErrors,
		OutputValidationSuccess:  b.outputValid && !b.failed,
		LLMErrors:                b.llmErrors,
		ToolErrors:               b.toolErrors,
	}

	r.AvgToolCallDurationMS = average(ms, len(b.toolCalls))
	r.AvgLLMCallDurationMS = average(ms, len(b.llmCalls))

	b.fillTokens(r)
	b.fillTools(r)
	b.fillLLM(r)
	b.fillInput(r)

	r.TokensPerSecond = rate(float64(r.TotalTokensUsed), seconds)
	r.CostEstimateUSD = round(float64(r.TotalTokensUsed)*CostPerToken, 6)
	r.ToolsPerSecond = rate(float64(r.TotalToolCalls), seconds)
	r.EventsPerSecond = rate(float64(r.TotalEvents), seconds)
	r.EfficiencyScore = r.EventsPerSecond

	switch {
	case b.failed:
		r.ExecutionSequence = SequenceFailed
	case len(b.toolCalls) == 0:
		r.ExecutionSequence = SequenceNone
	default:
		names := make([]string, len(b.toolCalls))
		for i, c := range b.toolCalls {
			names[i] = c.Name
		}
		r.ExecutionSequence = strings.Join(names, "->")
	}
	return r
}

func (b *Builder) fillTokens(r *Record) {
	for _, c := range b.llmCalls {
		total := c.TotalTokens
		if total == 0 {
			total = c.PromptTokens + c.CompletionTokens
		}
		r.TotalTokensUsed += total
		r.PromptTokensUsed += c.PromptTokens
		r.CompletionTokensUsed += c.CompletionTokens
	}
}

func (b *Builder) fillTools(r *Record) {
	var (
		names, ids, stamps []string
		order              []string
		counts             = map[string]int{}
	)
	for _, c := range b.toolCalls {
		names = append(names, c.Name)
		ids = append(ids, c.ID)
		stamps = append(stamps, strconv.FormatInt(c.Timestamp.Unix(), 10))
		if counts[c.Name] == 0 {
			order = append(order, c.Name)
		}
		counts[c.Name]++
	}

	// Ties go to the tool called first.
	for _, name := range order {
		if counts[name] > r.MostUsedToolCount {
			r.MostUsedTool = name
			r.MostUsedToolCount = counts[name]
		}
	}

	used := append([]string(nil), order...)
	sort.Strings(used)
	r.ToolsUsedCount = len(used)
	r.ToolsUsedList = strings.Join(used, ",")
	r.ToolNames = strings.Join(names, ",")
	r.ToolCallIDs = strings.Join(ids, ",")
	r.ToolCallTimestamps = strings.Join(stamps, ",")
}

func (b *Builder) fillLLM(r *Record) {
	var models, reasons, stamps []string
	seen := map[string]bool{}
	for _, c := range b.llmCalls {
		if c.Model != "" && !seen[c.Model] {
			seen[c.Model] = true
			models = append(models, c.Model)
		}
		reasons = append(reasons, c.FinishReason)
		stamps = append(stamps, strconv.FormatInt(c.Timestamp.Unix(), 10))
	}
	r.LLMModelUsed = strings.Join(models, ",")
	r.LLMFinishReasons = strings.Join(reasons, ",")
	r.LLMCallTimestamps = strings.Join(stamps, ",")
}

func (b *Builder) fillInput(r *Record) {
	raw := RenderInput(b.input)
	r.InputSizeChars = len([]rune(raw))
	r.InputFieldsCount = len(b.input)
	_, r.HasArrayInput = b.input[ArrayInputKey]
	r.RawInputData = Truncate(raw, MaxRawInputChars)
}

// RenderInput renders caller input the way it is stored in raw_input_data.
func RenderInput(input map[string]any) string {
	if input == nil {
		return "{}"
	}
	data, err := json.Marshal(input)
	if err != nil {
		return fmt.Sprint(input)
	}
	return string(data)
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func average(totalMS float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return round(totalMS/float64(n), 2)
}

func rate(n, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return round(n/seconds, 2)
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
