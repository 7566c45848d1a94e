package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockReply scripts one MockLLM answer.
type MockReply struct {
	Text  string
	Err   error
	Delay time.Duration
}

// MockLLM 本地调试/测试用实现，不调用外部模型。
// Scripted replies are consumed in order; afterwards it synthesizes a task list from the prompt.
type MockLLM struct {
	mu      sync.Mutex
	replies []MockReply
	calls   []Request
	Pricing Pricing
}

func NewMockLLM(replies ...MockReply) *MockLLM {
	return &MockLLM{replies: replies, Pricing: DefaultPricing()}
}

// Calls returns the requests seen so far.
func (m *MockLLM) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

func (m *MockLLM) Complete(ctx context.Context, req Request) (Completion, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	var (
		reply    MockReply
		scripted bool
	)
	if len(m.replies) > 0 {
		reply, m.replies, scripted = m.replies[0], m.replies[1:], true
	}
	m.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-ctx.Done():
			return Completion{}, ctx.Err()
		}
	}
	if reply.Err != nil {
		return Completion{}, reply.Err
	}
	text := reply.Text
	if !scripted {
		text = mockTasks(req)
	}
	in, out := int64(len(req.System)+len(req.Prompt))/4, int64(len(text))/4
	return Completion{
		Text:         text,
		Model:        "mock",
		InputTokens:  in,
		OutputTokens: out,
		Cost:         m.Pricing.orDefault().Cost(in, out),
	}, nil
}

type blueprint struct {
	title, desc, kind string
	minutes           int
}

var blueprints = []blueprint{
	{"Write a one-page brief connecting %s to the next application", "List the three strongest facts about %s and keep the brief as source material for essays.", "essay", 60},
	{"Draft three interview answers that cite %s", "Use the situation-action-result shape and keep each answer under two minutes when spoken about %s.", "interview", 90},
	{"Email a mentor for feedback on the %s story", "Send a five-sentence summary of %s and ask which part is least convincing.", "email", 30},
	{"Build a tracking sheet for every %s deadline", "Columns: item, owner, due date, status. Add every date tied to %s and colour the next two weeks.", "planning", 45},
	{"Research two alumni who moved from %s into a similar path", "Find their public profiles, note the steps they took after %s and save one question for each.", "research", 60},
	{"Schedule a weekly 45-minute review of %s progress", "Put a recurring calendar block in place and write a three-question checklist for reviewing %s.", "planning", 20},
	{"Record a 2-minute pitch about %s", "Film yourself on a phone, watch it back once and cut every sentence about %s that does not add evidence.", "practice", 40},
	{"Compile evidence of measurable results from %s", "Collect numbers, screenshots and quotes that prove outcomes from %s into one folder.", "documentation", 75},
	{"Create a portfolio page showcasing the %s project", "Show the problem, your process and the outcome of %s with two images and a short caption each.", "portfolio", 120},
	{"Calculate the total cost of the %s plan", "Add fees, travel, materials and time for %s in one spreadsheet and mark what can be cut.", "finance", 45},
	{"Identify three skill gaps revealed by %s", "Compare what %s demands with what you can show today and pick one resource per gap.", "analysis", 50},
	{"Book an informational call with someone working on %s", "Send a short request, agree a 20-minute slot and prepare four questions about day-to-day work on %s.", "networking", 30},
	{"Revise the CV summary so it leads with %s", "Rewrite the top three lines so a reader sees %s within five seconds.", "documentation", 40},
	{"Submit one application that highlights %s", "Pick the best-fit opening, adapt the cover note to %s and submit before Friday.", "application", 90},
	{"Organize recommendation materials around %s", "Prepare a one-page brag sheet on %s for each recommender with dates and outcomes.", "recommendation", 60},
	{"Measure baseline metrics before starting %s", "Record today's numbers relevant to %s so later progress can be compared.", "measurement", 30},
	{"Request written feedback from a peer on %s materials", "Share the current drafts about %s and ask for three concrete edits.", "review", 25},
	{"Publish a short post describing the lessons of %s", "Write 300 words on what %s taught you and share it where recruiters or admissions staff will see it.", "writing", 60},
}

var (
	uniqueCountRe = regexp.MustCompile(`Generate (\d+) UNIQUE`)
	fullCountRe   = regexp.MustCompile(`plan of \d+-(\d+) tasks`)
	profileLineRe = regexp.MustCompile(`(?m)^- ([a-z0-9_]+): (.+)$`)
)

// mockTasks builds a distinct, well-formed task list anchored on a profile value.
func mockTasks(req Request) string {
	n := 3
	if m := uniqueCountRe.FindStringSubmatch(req.Prompt); m != nil {
		n, _ = strconv.Atoi(m[1])
	} else if m := fullCountRe.FindStringSubmatch(req.Prompt); m != nil {
		n, _ = strconv.Atoi(m[1])
	}
	if n > len(blueprints) {
		n = len(blueprints)
	}

	vals := map[string]string{}
	for _, m := range profileLineRe.FindAllStringSubmatch(req.Prompt, -1) {
		if _, ok := vals[m[1]]; !ok {
			vals[m[1]] = strings.TrimSpace(m[2])
		}
	}
	anchor := "the plan"
	for _, k := range []string{"startup_name", "field", "target_role", "fitness_goal", "school_1", "user_name"} {
		if v := vals[k]; v != "" {
			anchor = v
			break
		}
	}

	type out struct {
		Title            string   `json:"title"`
		Description      string   `json:"description"`
		Priority         int      `json:"priority"`
		TimeboxMinutes   int      `json:"timebox_minutes"`
		EnergyLevel      string   `json:"energy_level"`
		DefinitionOfDone []string `json:"definition_of_done"`
		TaskType         string   `json:"task_type"`
	}
	energies := []string{"high", "medium", "low"}
	tasks := make([]out, 0, n)
	for i := 0; i < n; i++ {
		b := blueprints[i]
		tasks = append(tasks, out{
			Title:            fmt.Sprintf(b.title, anchor),
			Description:      fmt.Sprintf(b.desc, anchor),
			Priority:         5 - i%5,
			TimeboxMinutes:   b.minutes,
			EnergyLevel:      energies[i%3],
			DefinitionOfDone: []string{"Output saved", "Next step noted"},
			TaskType:         b.kind,
		})
	}
	raw, _ := json.MarshalIndent(tasks, "", "  ")
	return string(raw)
}
