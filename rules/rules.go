// Package rules generates custom tasks from fixed business rules. Rules never
// call a model.
package rules

import (
	"fmt"

	"go.uber.org/zap"

	"adaptive_task_generator/profile"
	"adaptive_task_generator/task"
)

// Rule is one predicate/producer pair. Rules are independent and must not
// have side effects.
type Rule struct {
	ID      string
	Applies func(profile.Context) bool
	Produce func(profile.Context) []task.Task
	// Bonus is added to the ranking score of every task the rule produces.
	Bonus int
}

// Registry evaluates rules in registration order.
type Registry struct {
	rules  []Rule
	ids    map[string]bool
	logger *zap.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{ids: map[string]bool{}, logger: logger.Named("rules")}
}

// Default returns a registry loaded with the built-in rules.
func Default(logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	for _, rule := range builtin() {
		// Built-in ids are unique.
		_ = r.Register(rule)
	}
	return r
}

// Register appends a rule.
func (r *Registry) Register(rule Rule) error {
	if rule.ID == "" || rule.Applies == nil || rule.Produce == nil {
		return fmt.Errorf("rule %q: id, Applies and Produce are required", rule.ID)
	}
	if r.ids[rule.ID] {
		return fmt.Errorf("rule %q already registered", rule.ID)
	}
	r.ids[rule.ID] = true
	r.rules = append(r.rules, rule)
	return nil
}

// IDs lists rule ids in evaluation order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.rules))
	for i, rule := range r.rules {
		out[i] = rule.ID
	}
	return out
}

// Generate runs every applicable rule against c.
func (r *Registry) Generate(c profile.Context) []task.Task {
	var out []task.Task
	category := task.ParseCategory(c.String(profile.KeyCategory))
	for _, rule := range r.rules {
		if !rule.Applies(c) {
			continue
		}
		produced := rule.Produce(c)
		for _, t := range produced {
			t.Source = task.SourceCustom
			t.RuleID = rule.ID
			t.RuleBonus = rule.Bonus
			if t.Category == "" {
				t.Category = category
			}
			t.Normalize()
			out = append(out, t)
		}
		r.logger.Debug("rule applied", zap.String("rule", rule.ID), zap.Int("tasks", len(produced)))
	}
	return out
}
