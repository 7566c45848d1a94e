// Package templates holds the static task template set, its selection rules and
// its renderer.
package templates

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"adaptive_task_generator/profile"
	"adaptive_task_generator/task"
)

//go:embed default_templates.yaml
var defaultTemplatesYAML []byte

// AnyTier matches every budget tier.
const AnyTier profile.BudgetTier = "any"

// Template is one static, read-only task blueprint.
type Template struct {
	ID                string             `yaml:"id"`
	Name              string             `yaml:"name"`
	Category          task.Category      `yaml:"category"`
	MilestoneType     string             `yaml:"milestone_type"`
	BudgetTier        profile.BudgetTier `yaml:"budget_tier"`
	RequiredVariables []string           `yaml:"required_variables"`
	OptionalVariables []string           `yaml:"optional_variables"`
	BaseScore         int                `yaml:"base_score"`
	TimeboxMinutes    int                `yaml:"timebox_minutes"`
	CognitiveLoad     int                `yaml:"cognitive_load"`
	EnergyLevel       task.EnergyLevel   `yaml:"energy_level"`
	Priority          int                `yaml:"priority"`
	Title             string             `yaml:"title"`
	Body              string             `yaml:"body"`
	DefinitionOfDone  []string           `yaml:"definition_of_done"`

	title *template.Template
	body  *template.Template
	done  []*template.Template
}

// Set is a versioned collection of templates.
type Set struct {
	Version   string     `yaml:"version"`
	Templates []Template `yaml:"templates"`
}

// Current lets a fixed *Set act as a Provider.
func (s *Set) Current() *Set { return s }

// ByID looks a template up.
func (s *Set) ByID(id string) (Template, bool) {
	for _, t := range s.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// LoadSet parses and compiles a YAML template set.
func LoadSet(r io.Reader) (*Set, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read template set: %w", err)
	}
	var s Set
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse template set: %w", err)
	}
	if err := s.compile(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads a template set from disk.
func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := LoadSet(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// DefaultSet returns the embedded template set.
func DefaultSet() (*Set, error) {
	return LoadSet(bytes.NewReader(defaultTemplatesYAML))
}

func (s *Set) compile() error {
	if strings.TrimSpace(s.Version) == "" {
		return errors.New("template set version is required")
	}
	seen := make(map[string]bool, len(s.Templates))
	for i := range s.Templates {
		t := &s.Templates[i]
		if t.ID == "" {
			return fmt.Errorf("template #%d: id is required", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("template %s: duplicate id", t.ID)
		}
		seen[t.ID] = true
		switch t.Category {
		case task.CategoryStudy, task.CategoryCareer, task.CategoryFitness:
		default:
			return fmt.Errorf("template %s: unknown category %q", t.ID, t.Category)
		}
		if t.BudgetTier == "" {
			t.BudgetTier = AnyTier
		}
		if strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("template %s: title is required", t.ID)
		}
		var err error
		if t.title, err = parse(t.ID+".title", t.Title); err != nil {
			return err
		}
		if t.body, err = parse(t.ID+".body", t.Body); err != nil {
			return err
		}
		t.done = make([]*template.Template, len(t.DefinitionOfDone))
		for j, d := range t.DefinitionOfDone {
			if t.done[j], err = parse(fmt.Sprintf("%s.done.%d", t.ID, j), d); err != nil {
				return err
			}
		}
	}
	return nil
}

var funcs = template.FuncMap{
	"join":  strings.Join,
	"lower": strings.ToLower,
	"default": func(def string, v any) string {
		s := strings.TrimSpace(fmt.Sprint(v))
		if v == nil || s == "" {
			return def
		}
		return s
	},
}

func parse(name, text string) (*template.Template, error) {
	tpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("compile template %s: %w", name, err)
	}
	return tpl, nil
}
