// Package task holds the candidate task model shared by every generation source.
package task

import "strings"

// Source tags where a candidate task came from.
type Source string

const (
	SourceTemplate        Source = "template"
	SourceCustom          Source = "custom"
	SourceUniqueGenerated Source = "unique_generated"
	SourceCached          Source = "cached"
)

func (s Source) String() string { return string(s) }

// Priority orders sources for dedup: generated and custom copies are the most personalized.
func (s Source) Priority() int {
	switch s {
	case SourceUniqueGenerated:
		return 4
	case SourceCustom:
		return 3
	case SourceTemplate:
		return 2
	case SourceCached:
		return 1
	default:
		return 0
	}
}

// Category is the goal domain.
type Category string

const (
	CategoryStudy   Category = "study"
	CategoryCareer  Category = "career"
	CategoryFitness Category = "fitness"
)

// ParseCategory maps free text onto a Category, defaulting to study.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "career", "job", "work":
		return CategoryCareer
	case "fitness", "sport", "health":
		return CategoryFitness
	default:
		return CategoryStudy
	}
}

// EnergyLevel describes how demanding a task is.
type EnergyLevel string

const (
	EnergyLow    EnergyLevel = "low"
	EnergyMedium EnergyLevel = "medium"
	EnergyHigh   EnergyLevel = "high"
)

// ParseEnergy normalizes model output; unknown values become medium.
func ParseEnergy(s string) EnergyLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return EnergyLow
	case "high":
		return EnergyHigh
	default:
		return EnergyMedium
	}
}

// Task is one candidate unit of personalized work.
//
// Sources create tasks; afterwards only the ranker adjusts PersonalizationScore
// and only the pipeline sets Rejected. Returned tasks are never mutated again.
type Task struct {
	Title                string      `json:"title" yaml:"title"`
	Description          string      `json:"description" yaml:"description"`
	DefinitionOfDone     []string    `json:"definition_of_done" yaml:"definition_of_done"`
	TimeboxMinutes       int         `json:"timebox_minutes" yaml:"timebox_minutes"`
	CognitiveLoad        int         `json:"cognitive_load" yaml:"cognitive_load"`
	EnergyLevel          EnergyLevel `json:"energy_level" yaml:"energy_level"`
	Source               Source      `json:"source" yaml:"source"`
	Category             Category    `json:"category,omitempty" yaml:"category,omitempty"`
	Priority             int         `json:"priority,omitempty" yaml:"priority,omitempty"`
	Kind                 string      `json:"kind,omitempty" yaml:"kind,omitempty"`
	PersonalizationScore int         `json:"personalization_score" yaml:"personalization_score"`
	Rejected             bool        `json:"-" yaml:"-"`

	TemplateID string `json:"template_id,omitempty" yaml:"template_id,omitempty"`
	RuleID     string `json:"rule_id,omitempty" yaml:"rule_id,omitempty"`
	RuleBonus  int    `json:"-" yaml:"-"`
}

// Clone returns a deep copy.
func (t Task) Clone() Task {
	c := t
	if t.DefinitionOfDone != nil {
		c.DefinitionOfDone = append([]string(nil), t.DefinitionOfDone...)
	}
	return c
}

// CloneAll deep-copies a slice of tasks.
func CloneAll(ts []Task) []Task {
	if ts == nil {
		return nil
	}
	out := make([]Task, len(ts))
	for i, t := range ts {
		out[i] = t.Clone()
	}
	return out
}

// Text joins title, description and done criteria for keyword checks.
func (t Task) Text() string {
	var sb strings.Builder
	sb.WriteString(t.Title)
	sb.WriteString(" ")
	sb.WriteString(t.Description)
	for _, d := range t.DefinitionOfDone {
		sb.WriteString(" ")
		sb.WriteString(d)
	}
	return sb.String()
}

// Normalize fills defaults for fields a source may have left empty.
func (t *Task) Normalize() {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	if t.EnergyLevel == "" {
		t.EnergyLevel = EnergyMedium
	}
	if t.CognitiveLoad < 1 {
		t.CognitiveLoad = defaultLoad(t.EnergyLevel)
	}
	if t.CognitiveLoad > 5 {
		t.CognitiveLoad = 5
	}
	if t.Priority == 0 {
		t.Priority = 3
	}
}

func defaultLoad(e EnergyLevel) int {
	switch e {
	case EnergyLow:
		return 2
	case EnergyHigh:
		return 4
	default:
		return 3
	}
}
