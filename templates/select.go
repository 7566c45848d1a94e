package templates

import (
	"errors"
	"sort"

	"adaptive_task_generator/profile"
	"adaptive_task_generator/task"
)

// ErrNoTemplate is returned when no template is eligible for the context.
var ErrNoTemplate = errors.New("no eligible template")

// Provider supplies the current template set.
type Provider interface {
	Current() *Set
}

// Selector picks templates deterministically.
type Selector struct {
	sets Provider
}

// NewSelector builds a selector over a set provider (a *Set or a *Registry).
func NewSelector(p Provider) *Selector {
	return &Selector{sets: p}
}

type candidate struct {
	t        Template
	optional int
}

// Select returns the single best template for the category and tier.
func (s *Selector) Select(c profile.Context, category task.Category, tier profile.BudgetTier) (Template, error) {
	cands := s.eligible(c, category, tier)
	if len(cands) == 0 {
		return Template{}, ErrNoTemplate
	}
	return cands[0].t, nil
}

// SelectN returns up to n templates, the best one per milestone type, in
// selection order.
func (s *Selector) SelectN(c profile.Context, category task.Category, tier profile.BudgetTier, n int) ([]Template, error) {
	if n <= 0 {
		return nil, nil
	}
	cands := s.eligible(c, category, tier)
	if len(cands) == 0 {
		return nil, ErrNoTemplate
	}
	seen := map[string]bool{}
	var out []Template
	for _, cd := range cands {
		kind := cd.t.MilestoneType
		if kind == "" {
			kind = cd.t.ID
		}
		if seen[kind] {
			continue
		}
		seen[kind] = true
		out = append(out, cd.t)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

// eligible filters by category, tier and required variables, then orders by
// base score desc, populated optional variables desc, id asc.
func (s *Selector) eligible(c profile.Context, category task.Category, tier profile.BudgetTier) []candidate {
	set := s.sets.Current()
	if set == nil {
		return nil
	}
	if tier == "" {
		tier = profile.BudgetTierStandard
	}
	var cands []candidate
	for _, t := range set.Templates {
		if t.Category != category {
			continue
		}
		if t.BudgetTier != AnyTier && t.BudgetTier != tier {
			continue
		}
		if !hasAll(c, t.RequiredVariables) {
			continue
		}
		cands = append(cands, candidate{t: t, optional: countPresent(c, t.OptionalVariables)})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.t.BaseScore != b.t.BaseScore {
			return a.t.BaseScore > b.t.BaseScore
		}
		if a.optional != b.optional {
			return a.optional > b.optional
		}
		return a.t.ID < b.t.ID
	})
	return cands
}

func hasAll(c profile.Context, vars []string) bool {
	for _, v := range vars {
		if !c.Has(v) {
			return false
		}
	}
	return true
}

// countPresent counts optional variables that carry a usable value. A false
// flag does not count.
func countPresent(c profile.Context, vars []string) int {
	n := 0
	for _, v := range vars {
		raw, ok := c.Get(v)
		if !ok {
			continue
		}
		if b, isBool := raw.(bool); isBool {
			if b {
				n++
			}
			continue
		}
		if c.Has(v) {
			n++
		}
	}
	return n
}
