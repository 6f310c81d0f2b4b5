// Package utils holds small helpers shared across packages: token
// counting and filesystem setup.
package utils

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/kadirpekel/langsketch/pkg/model"
)

// TokenCounter counts tokens with the encoding of one model.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewTokenCounter creates a counter for model. Router-style identifiers
// such as "openai/gpt-4o" are reduced to the bare model name; unknown
// models fall back to the encoding GetEncodingForModel picks.
func NewTokenCounter(modelName string) (*TokenCounter, error) {
	bare := BareModelName(modelName)

	cacheMu.RLock()
	cached, ok := encodingCache[bare]
	cacheMu.RUnlock()
	if ok {
		return &TokenCounter{encoding: cached, model: modelName}, nil
	}

	encoding, err := tiktoken.EncodingForModel(bare)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(GetEncodingForModel(bare))
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[bare] = encoding
	cacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: modelName}, nil
}

// Count returns the token count of text.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.encoding == nil {
		return EstimateTokens(text)
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountMessages counts a chat request the way OpenAI bills it: three
// tokens of framing per message plus three priming the reply.
func (tc *TokenCounter) CountMessages(messages []*model.Message) int {
	total := 0
	for _, msg := range messages {
		total += 3
		total += tc.Count(string(msg.Role))
		total += tc.Count(msg.Content)
		for _, call := range msg.ToolCalls {
			total += tc.Count(call.Name)
			total += tc.Count(fmt.Sprint(call.Args))
		}
	}
	return total + 3
}

// EstimateUsage fills a Usage for a call whose provider reported none.
func (tc *TokenCounter) EstimateUsage(prompt []*model.Message, completion *model.Message) *model.Usage {
	u := &model.Usage{PromptTokens: tc.CountMessages(prompt)}
	if completion != nil {
		u.CompletionTokens = tc.Count(completion.Content)
		for _, call := range completion.ToolCalls {
			u.CompletionTokens += tc.Count(call.Name) + tc.Count(fmt.Sprint(call.Args))
		}
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

// Model returns the model this counter was created for.
func (tc *TokenCounter) Model() string {
	return tc.model
}

// EstimateTokens is the four-characters-per-token rule of thumb.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// BareModelName strips a "provider/" prefix.
func BareModelName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// GetEncodingForModel returns the encoding name for model, matching by
// prefix and defaulting to cl100k_base.
func GetEncodingForModel(modelName string) string {
	prefixes := []struct {
		prefix   string
		encoding string
	}{
		{"gpt-4o", "o200k_base"},
		{"o1", "o200k_base"},
		{"o3", "o200k_base"},
		{"gpt-4", "cl100k_base"},
		{"gpt-3.5", "cl100k_base"},
	}
	for _, p := range prefixes {
		if strings.HasPrefix(modelName, p.prefix) {
			return p.encoding
		}
	}
	return "cl100k_base"
}
