package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"adaptive_task_generator/task"
)

var (
	ErrEmptyResponse = errors.New("model returned empty response")
	ErrParse         = errors.New("model response is not a task list")
)

var fenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

type rawTask struct {
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Category         string      `json:"category"`
	Priority         flexInt     `json:"priority"`
	TimeboxMinutes   flexInt     `json:"timebox_minutes"`
	EnergyLevel      string      `json:"energy_level"`
	DefinitionOfDone stringOrArr `json:"definition_of_done"`
	TaskType         string      `json:"task_type"`
}

// flexInt accepts 3, 3.0 and "3".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", s)
	}
	*f = flexInt(v)
	return nil
}

// stringOrArr accepts a single criterion or a list.
type stringOrArr []string

func (s *stringOrArr) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*s = list
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	if strings.TrimSpace(one) != "" {
		*s = []string{one}
	}
	return nil
}

// ParseTasks 解析模型输出：去掉代码块、容忍前后说明文字，返回至多 mode.MaxTasks() 个任务。
func ParseTasks(raw string, mode Mode) ([]task.Task, error) {
	body := strings.TrimSpace(raw)
	if body == "" {
		return nil, ErrEmptyResponse
	}
	if m := fenceRe.FindStringSubmatch(body); len(m) == 2 {
		body = strings.TrimSpace(m[1])
	}

	items, err := decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var out []task.Task
	for _, r := range items {
		if strings.TrimSpace(r.Title) == "" {
			continue
		}
		t := task.Task{
			Title:            r.Title,
			Description:      r.Description,
			DefinitionOfDone: []string(r.DefinitionOfDone),
			TimeboxMinutes:   int(r.TimeboxMinutes),
			EnergyLevel:      task.ParseEnergy(r.EnergyLevel),
			Priority:         int(r.Priority),
			Kind:             strings.TrimSpace(r.TaskType),
			Source:           task.SourceUniqueGenerated,
		}
		if strings.TrimSpace(r.Category) != "" {
			t.Category = task.ParseCategory(r.Category)
		}
		t.Normalize()
		if t.Priority > 5 {
			t.Priority = 5
		}
		out = append(out, t)
		if len(out) == mode.MaxTasks() {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no task with a title", ErrParse)
	}
	return out, nil
}

// decode finds the JSON array in body, or a {"tasks": [...]} wrapper.
func decode(body string) ([]rawTask, error) {
	start, end := strings.Index(body, "["), strings.LastIndex(body, "]")
	if start >= 0 && end > start {
		var items []rawTask
		if err := json.Unmarshal([]byte(body[start:end+1]), &items); err == nil {
			return items, nil
		}
	}
	ostart, oend := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if ostart >= 0 && oend > ostart {
		var wrapped struct {
			Tasks []rawTask `json:"tasks"`
		}
		if err := json.Unmarshal([]byte(body[ostart:oend+1]), &wrapped); err == nil && len(wrapped.Tasks) > 0 {
			return wrapped.Tasks, nil
		}
	}
	return nil, errors.New("no JSON task array found")
}
