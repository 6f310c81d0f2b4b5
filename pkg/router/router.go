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

// Package router selects a model for an agent through an ordered chain of
// named rules.
//
// Rules and routers live in a process-wide registry. A router lists rule
// references ("deimos/rules/<name>") and a default model; the first rule
// that yields a model wins. A rule may defer to another rule by returning
// a reference, which is followed until a model comes out.
//
//	r, err := router.Get(router.IntelligenceRouter)
//	model, err := r.SelectModel(ctx, map[string]any{"messages": router.Describe(cfg)})
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kadirpekel/langsketch/pkg/registry"
)

// ErrRouterMissing is returned when a router name is not registered.
var ErrRouterMissing = errors.New("router not registered")

// RouterPrefix may precede a router name.
const RouterPrefix = "deimos/"

// maxHops bounds rule-to-rule deferrals.
const maxHops = 16

// Registry holds rules, routers and the classifier factory used by
// AutoTaskRule.
type Registry struct {
	rules   *registry.OrderedRegistry[Rule]
	routers *registry.OrderedRegistry[*Router]

	mu      sync.RWMutex
	factory ClassifierFactory
	cache   map[string]Classifier
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules:   registry.New[Rule](),
		routers: registry.New[*Router](),
		cache:   make(map[string]Classifier),
	}
}

// RegisterRule adds or replaces a rule.
func (r *Registry) RegisterRule(rule Rule) {
	r.rules.Put(rule.Name(), rule)
}

// Rule returns a rule by name or reference.
func (r *Registry) Rule(ref string) (Rule, bool) {
	return r.rules.Get(RuleName(ref))
}

// RegisterRouter adds or replaces a router.
func (r *Registry) RegisterRouter(router *Router) {
	router.reg = r
	r.routers.Put(router.Name, router)
}

// Router returns a router by name, with or without RouterPrefix.
func (r *Registry) Router(name string) (*Router, error) {
	router, ok := r.routers.Get(strings.TrimPrefix(name, RouterPrefix))
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrRouterMissing, name, strings.Join(r.routers.Names(), ", "))
	}
	return router, nil
}

// SetClassifierFactory installs the factory AutoTaskRules use to reach
// their classifier model.
func (r *Registry) SetClassifierFactory(factory ClassifierFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factory = factory
	clear(r.cache)
}

func (r *Registry) classifier(modelName string) Classifier {
	r.mu.RLock()
	c, ok := r.cache[modelName]
	factory := r.factory
	r.mu.RUnlock()
	if ok || factory == nil {
		return c
	}

	c, err := factory(modelName)
	if err != nil {
		slog.Warn("Classifier unavailable", "model", modelName, "error", err)
		return nil
	}

	r.mu.Lock()
	r.cache[modelName] = c
	r.mu.Unlock()
	return c
}

// Router is an ordered rule chain with a default model.
type Router struct {
	Name    string
	Rules   []string
	Default string

	reg *Registry
}

// MessagesKey is the request_data key holding the routing text.
const MessagesKey = "messages"

// SelectModel returns the model for requestData[MessagesKey].
func (r *Router) SelectModel(ctx context.Context, requestData map[string]any) (string, error) {
	prompt, _ := requestData[MessagesKey].(string)
	return r.Select(ctx, prompt)
}

// Select runs the rule chain over prompt.
func (r *Router) Select(ctx context.Context, prompt string) (string, error) {
	for _, ref := range r.Rules {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		selected, err := r.follow(ctx, ref, prompt)
		if err != nil {
			slog.Warn("Routing rule failed", "router", r.Name, "rule", ref, "error", err)
			continue
		}
		if selected != "" {
			slog.Debug("Model selected", "router", r.Name, "rule", RuleName(ref), "model", selected)
			return selected, nil
		}
	}
	slog.Debug("Model selected", "router", r.Name, "rule", "default", "model", r.Default)
	return r.Default, nil
}

func (r *Router) registry() *Registry {
	if r.reg == nil {
		return defaultRegistry
	}
	return r.reg
}

// follow evaluates ref and any rules it defers to.
func (r *Router) follow(ctx context.Context, ref, prompt string) (string, error) {
	seen := make(map[string]bool)
	name := RuleName(ref)
	for hop := 0; hop < maxHops; hop++ {
		if seen[name] {
			return "", fmt.Errorf("rule cycle at %q", name)
		}
		seen[name] = true

		rule, ok := r.registry().Rule(name)
		if !ok {
			return "", fmt.Errorf("rule %q not registered", name)
		}
		result, err := rule.Evaluate(ctx, prompt, r.registry())
		if err != nil {
			return "", err
		}
		if result.Model != "" || result.Next == "" {
			return result.Model, nil
		}
		name = result.Next
	}
	return "", fmt.Errorf("too many rule hops from %q", ref)
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Get returns a router from the process-wide registry, installing the
// built-in routers on first use.
func Get(name string) (*Router, error) {
	Setup()
	return defaultRegistry.Router(name)
}
