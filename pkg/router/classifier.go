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
	"fmt"
	"strings"

	"github.com/kadirpekel/langsketch/pkg/model"
)

// Classifier picks one of labels for text.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (string, error)
}

// ClassifierFactory returns the classifier backed by the named model.
type ClassifierFactory func(modelName string) (Classifier, error)

// LLMClassifier asks a chat model to name the matching label.
type LLMClassifier struct {
	LLM model.LLM
}

func (c *LLMClassifier) Classify(ctx context.Context, text string, labels []string) (string, error) {
	prompt := fmt.Sprintf(
		"Classify the following request into exactly one of these categories: %s.\n"+
			"Answer with the category name only, or \"none\" if nothing fits.\n\nRequest:\n%s",
		strings.Join(labels, ", "), text)

	resp, err := c.LLM.Generate(ctx, &model.Request{
		Messages: []*model.Message{model.UserMessage(prompt)},
	})
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	return matchLabel(resp.TextContent(), labels), nil
}

// matchLabel maps a free-form answer to a label, or "" when none fits.
func matchLabel(answer string, labels []string) string {
	normalized := strings.ToLower(strings.Trim(strings.TrimSpace(answer), `."'`+"`"))
	for _, label := range labels {
		if strings.EqualFold(normalized, label) {
			return label
		}
	}
	for _, label := range labels {
		if strings.Contains(normalized, strings.ToLower(label)) {
			return label
		}
	}
	return ""
}
