package templates

import (
	"fmt"
	"strings"
	"text/template"

	"adaptive_task_generator/profile"
	"adaptive_task_generator/task"
)

// RenderError reports a template that could not be filled for this user.
type RenderError struct {
	TemplateID string
	Variable   string
	Err        error
}

func (e *RenderError) Error() string {
	switch {
	case e.Variable != "" && e.Err != nil:
		return fmt.Sprintf("render template %s: variable %s: %v", e.TemplateID, e.Variable, e.Err)
	case e.Variable != "":
		return fmt.Sprintf("render template %s: variable %s is empty", e.TemplateID, e.Variable)
	default:
		return fmt.Sprintf("render template %s: %v", e.TemplateID, e.Err)
	}
}

func (e *RenderError) Unwrap() error { return e.Err }

// Render fills t from c. Declared optional variables that are absent render as
// empty; any other unknown variable is an error.
func Render(t Template, c profile.Context) (task.Task, error) {
	if t.title == nil {
		return task.Task{}, &RenderError{TemplateID: t.ID, Err: fmt.Errorf("template not compiled")}
	}
	for _, v := range t.RequiredVariables {
		if !c.Has(v) {
			return task.Task{}, &RenderError{TemplateID: t.ID, Variable: v}
		}
	}

	data := c.Map()
	for _, v := range t.OptionalVariables {
		if _, ok := data[v]; !ok {
			data[v] = ""
		}
	}

	title, err := execute(t.title, data)
	if err != nil {
		return task.Task{}, &RenderError{TemplateID: t.ID, Err: err}
	}
	if title == "" {
		return task.Task{}, &RenderError{TemplateID: t.ID, Variable: "title"}
	}
	body, err := execute(t.body, data)
	if err != nil {
		return task.Task{}, &RenderError{TemplateID: t.ID, Err: err}
	}
	var done []string
	for _, d := range t.done {
		s, err := execute(d, data)
		if err != nil {
			return task.Task{}, &RenderError{TemplateID: t.ID, Err: err}
		}
		if s != "" {
			done = append(done, s)
		}
	}

	out := task.Task{
		Title:            title,
		Description:      body,
		DefinitionOfDone: done,
		TimeboxMinutes:   t.TimeboxMinutes,
		CognitiveLoad:    t.CognitiveLoad,
		EnergyLevel:      t.EnergyLevel,
		Source:           task.SourceTemplate,
		Category:         t.Category,
		Priority:         t.Priority,
		Kind:             t.MilestoneType,
		TemplateID:       t.ID,
	}
	out.Normalize()
	return out, nil
}

func execute(tpl *template.Template, data map[string]any) (string, error) {
	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return collapseBlankLines(strings.TrimSpace(sb.String())), nil
}

// collapseBlankLines removes runs of empty lines left by false conditionals.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
