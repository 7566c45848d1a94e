package generator

import (
	"fmt"
	"strings"

	"adaptive_task_generator/profile"
	"adaptive_task_generator/task"
)

// PromptVersion changes whenever the prompt wording changes, so cached output
// from an older prompt is never served.
const PromptVersion = "2026.10.1"

// Mode selects between gap filling and full plan generation.
type Mode string

const (
	ModeUnique Mode = "unique"
	ModeFull   Mode = "full"
)

// Limits per mode.
func (m Mode) MinTasks() int {
	if m == ModeFull {
		return 12
	}
	return 2
}

func (m Mode) MaxTasks() int {
	if m == ModeFull {
		return 18
	}
	return 3
}

func (m Mode) MaxOutputTokens() int {
	if m == ModeFull {
		return 3000
	}
	return 1500
}

const temperature = 0.7

const systemPrompt = "You are an expert coach who breaks goals into specific, actionable tasks. " +
	"Respond with a JSON array only. No prose, no markdown."

// strictSuffix is appended on the retry after an unparseable response.
const strictSuffix = "\n\nIMPORTANT: Your previous answer could not be parsed. " +
	"Return ONLY a JSON array that starts with [ and ends with ]. " +
	"No code fences, no commentary, no trailing text."

// PromptInput carries everything the builders need.
type PromptInput struct {
	Context     profile.Context
	Existing    []task.Task
	HorizonDays int
	Count       int
	EdgeCase    bool
}

// BuildUniquePrompt asks for 2-3 tasks that only this user would get.
func BuildUniquePrompt(in PromptInput) Request {
	var sb strings.Builder
	c := in.Context
	n := clamp(in.Count, ModeUnique.MinTasks(), ModeUnique.MaxTasks())

	sb.WriteString(fmt.Sprintf("Generate %d UNIQUE tasks for this user. Templates already cover the standard steps; ", n))
	sb.WriteString("only propose tasks that depend on what makes this person different.\n\n")
	writeGoal(&sb, c)
	writeProfile(&sb, c)

	if len(in.Existing) > 0 {
		sb.WriteString("\nEXISTING TASKS (do not duplicate):\n")
		for _, t := range in.Existing {
			sb.WriteString("- " + t.Title + "\n")
		}
	}
	if in.EdgeCase {
		sb.WriteString("\n" + ScenarioGuidance(c.Background(), c.String(profile.KeyField)) + "\n")
	}

	sb.WriteString(`
REQUIREMENTS:
- Mention the user's real names, numbers or achievements from the profile
- Start every title with an action verb (Write, Draft, Email, Build, Research, ...)
- No generic advice like "prepare for" or "think about"
- No placeholders such as [your university]; use the real value
- timebox_minutes between 15 and 300
`)
	writeFormat(&sb)

	return Request{
		System:          systemPrompt,
		Prompt:          sb.String(),
		MaxOutputTokens: ModeUnique.MaxOutputTokens(),
		Temperature:     temperature,
	}
}

// BuildFullPrompt asks for a complete 12-18 task plan.
func BuildFullPrompt(in PromptInput) Request {
	var sb strings.Builder
	c := in.Context
	n := clamp(in.Count, ModeFull.MinTasks(), ModeFull.MaxTasks())
	horizon := in.HorizonDays
	if horizon <= 0 {
		horizon = 90
	}

	sb.WriteString(fmt.Sprintf("Create a complete plan of %d-%d tasks covering the next %d days for this goal.\n\n",
		ModeFull.MinTasks(), n, horizon))
	writeGoal(&sb, c)
	writeProfile(&sb, c)

	if in.EdgeCase {
		sb.WriteString("\n" + ScenarioGuidance(c.Background(), c.String(profile.KeyField)) + "\n")
	}
	if len(in.Existing) > 0 {
		sb.WriteString("\nALREADY PLANNED (do not duplicate):\n")
		for _, t := range in.Existing {
			sb.WriteString("- " + t.Title + "\n")
		}
	}

	sb.WriteString(componentsFor(c))
	sb.WriteString(`
REQUIREMENTS:
- priority 1-5 (5 = most urgent), ordered so early tasks unblock later ones
- timebox_minutes between 15 and 300; split anything longer
- energy_level low, medium or high
- Every task references the user's actual background, names or numbers
- Start every title with an action verb; no generic phrases, no placeholders
`)
	writeFormat(&sb)

	return Request{
		System:          systemPrompt,
		Prompt:          sb.String(),
		MaxOutputTokens: ModeFull.MaxOutputTokens(),
		Temperature:     temperature,
	}
}

// Strict returns req with the formatting reminder used on retry.
func Strict(req Request) Request {
	req.Prompt += strictSuffix
	return req
}

func writeGoal(sb *strings.Builder, c profile.Context) {
	sb.WriteString("GOAL:\n")
	sb.WriteString("- Category: " + c.StringOr(profile.KeyCategory, string(task.CategoryStudy)) + "\n")
	if t := c.String(profile.KeyGoalTitle); t != "" {
		sb.WriteString("- Title: " + t + "\n")
	}
}

// writeProfile lists context values in key order so prompts are reproducible.
func writeProfile(sb *strings.Builder, c profile.Context) {
	sb.WriteString("\nUSER PROFILE:\n")
	for _, k := range c.Keys() {
		if k == profile.KeyCategory || k == profile.KeyGoalTitle {
			continue
		}
		if v, _ := c.Get(k); v == false {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s: %s\n", k, c.String(k)))
	}
}

func componentsFor(c profile.Context) string {
	switch task.Category(c.String(profile.KeyCategory)) {
	case task.CategoryCareer:
		return `
PLAN COMPONENTS:
- Resume and LinkedIn tailored to the target role
- Skill gaps and how to close them
- Networking and referrals
- Applications and interview preparation
`
	case task.CategoryFitness:
		return `
PLAN COMPONENTS:
- Baseline measurements
- Training schedule respecting limitations
- Nutrition and recovery
- Weekly review
`
	}
	return `
PLAN COMPONENTS:
- University and program research
- Statement of purpose / personal statement
- Recommendation letters
- Portfolio or CV
- Test preparation if scores are below target
- Application submission and tracking
`
}

func writeFormat(sb *strings.Builder) {
	sb.WriteString(`
OUTPUT FORMAT (JSON array):
[
  {
    "title": "Action verb + specific object",
    "description": "What to do and why it matters for this user",
    "category": "study|career|fitness",
    "priority": 1-5,
    "timebox_minutes": 60,
    "energy_level": "low|medium|high",
    "definition_of_done": ["criterion 1", "criterion 2"],
    "task_type": "essay|research|email|portfolio|..."
  }
]
`)
}

func clamp(n, lo, hi int) int {
	if n <= 0 {
		return hi
	}
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
