// Package validate scores candidate tasks on five quality checks.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"adaptive_task_generator/profile"
	"adaptive_task_generator/task"
)

// Check names one quality check.
type Check string

const (
	CheckUserContext   Check = "user_context"
	CheckNotGeneric    Check = "not_generic"
	CheckActionVerb    Check = "action_verb"
	CheckTimebox       Check = "timebox"
	CheckNoPlaceholder Check = "no_placeholder"
)

// Checks lists every check in evaluation order.
var Checks = []Check{CheckUserContext, CheckNotGeneric, CheckActionVerb, CheckTimebox, CheckNoPlaceholder}

// Verdict is what the caller should do with a task.
type Verdict string

const (
	VerdictPass       Verdict = "pass"
	VerdictRegenerate Verdict = "regenerate"
	VerdictReject     Verdict = "reject"
)

// Config holds points and thresholds.
type Config struct {
	PointsPerCheck int `mapstructure:"points_per_check" json:"points_per_check"`
	PassMin        int `mapstructure:"pass_min" json:"pass_min"`
	RegenerateMin  int `mapstructure:"regenerate_min" json:"regenerate_min"`
	TimeboxMin     int `mapstructure:"timebox_min" json:"timebox_min"`
	TimeboxMax     int `mapstructure:"timebox_max" json:"timebox_max"`
}

func DefaultConfig() Config {
	return Config{PointsPerCheck: 20, PassMin: 80, RegenerateMin: 60, TimeboxMin: 15, TimeboxMax: 600}
}

// Result is the outcome for one task.
type Result struct {
	Score        int              `json:"score"`
	Verdict      Verdict          `json:"verdict"`
	Passed       bool             `json:"passed"`
	FailedChecks []Check          `json:"failed_checks,omitempty"`
	Reasons      map[Check]string `json:"reasons,omitempty"`
}

// Summary aggregates a batch.
type Summary struct {
	Total        int      `json:"total"`
	Passed       int      `json:"passed"`
	Regenerate   int      `json:"regenerate"`
	Rejected     int      `json:"rejected"`
	AverageScore float64  `json:"average_score"`
	Results      []Result `json:"results"`
}

var genericPhrases = []string{
	"your university", "your school", "your program", "your field", "your goal", "your target",
	"research universities", "update your resume", "prepare for", "get ready for",
	"think about", "consider doing",
}

var actionVerbs = []string{
	"write", "draft", "create", "build", "design", "develop",
	"research", "analyze", "compare", "evaluate", "assess",
	"email", "contact", "reach out", "call", "message",
	"register", "apply", "submit", "upload", "send",
	"schedule", "book", "arrange", "plan", "organize",
	"review", "proofread", "edit", "revise", "update",
	"calculate", "gather", "collect", "prepare", "compile",
	"request", "ask", "brief", "inform", "notify", "tell",
	"quantify", "measure", "track", "count", "estimate",
	"find", "search", "identify", "locate", "discover",
	"complete", "finish", "accomplish", "achieve", "execute",
	"improve", "enhance", "optimize", "refine", "polish",
	"rewrite", "tailor", "read", "record", "practice", "list", "log",
	"launch", "publish", "attend", "join",
}

var weakVerbs = []string{"think", "consider", "explore", "look into", "maybe"}

var (
	allowedBrackets = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\[(part|week|day|section)\s*\d+\]`),
		regexp.MustCompile(`(?i)\[[^\]]*?(name|email|city|company)[^\]]*?\]`),
		regexp.MustCompile(`(?i)\[specific\s+\w+\]`),
	}
	placeholderTokens = []string{"[your", "[insert", "[add", "todo:", "placeholder"}
)

// Validator checks tasks against one user's context. It never mutates tasks.
type Validator struct {
	cfg   Config
	nouns []string
}

func New(c profile.Context, cfg Config) *Validator {
	if cfg.PointsPerCheck == 0 {
		cfg = DefaultConfig()
	}
	var nouns []string
	for _, n := range c.ProperNouns() {
		nouns = append(nouns, strings.ToLower(n))
	}
	return &Validator{cfg: cfg, nouns: nouns}
}

// Validate runs every check.
func (v *Validator) Validate(t task.Task) Result {
	r := Result{}
	for _, c := range Checks {
		ok, reason := v.run(c, t)
		if ok {
			r.Score += v.cfg.PointsPerCheck
			continue
		}
		r.FailedChecks = append(r.FailedChecks, c)
		if r.Reasons == nil {
			r.Reasons = map[Check]string{}
		}
		r.Reasons[c] = reason
	}
	switch {
	case r.Score >= v.cfg.PassMin:
		r.Verdict = VerdictPass
	case r.Score >= v.cfg.RegenerateMin:
		r.Verdict = VerdictRegenerate
	default:
		r.Verdict = VerdictReject
	}
	r.Passed = r.Verdict == VerdictPass
	return r
}

// Batch validates ts in order.
func (v *Validator) Batch(ts []task.Task) Summary {
	s := Summary{Total: len(ts)}
	total := 0
	for _, t := range ts {
		r := v.Validate(t)
		total += r.Score
		switch r.Verdict {
		case VerdictPass:
			s.Passed++
		case VerdictRegenerate:
			s.Regenerate++
		default:
			s.Rejected++
		}
		s.Results = append(s.Results, r)
	}
	if s.Total > 0 {
		s.AverageScore = float64(total) / float64(s.Total)
	}
	return s
}

func (v *Validator) run(c Check, t task.Task) (bool, string) {
	switch c {
	case CheckUserContext:
		return v.userContext(t)
	case CheckNotGeneric:
		return notGeneric(t)
	case CheckActionVerb:
		return actionVerb(t)
	case CheckTimebox:
		if t.TimeboxMinutes < v.cfg.TimeboxMin || t.TimeboxMinutes > v.cfg.TimeboxMax {
			return false, fmt.Sprintf("timebox %d outside %d-%d minutes", t.TimeboxMinutes, v.cfg.TimeboxMin, v.cfg.TimeboxMax)
		}
		return true, ""
	case CheckNoPlaceholder:
		return noPlaceholder(t)
	}
	return false, "unknown check"
}

func (v *Validator) userContext(t task.Task) (bool, string) {
	text := t.Title + " " + t.Description
	lower := strings.ToLower(text)
	for _, n := range v.nouns {
		if strings.Contains(lower, n) {
			return true, ""
		}
	}
	if len(text) > 50 && strings.IndexFunc(text, unicode.IsDigit) >= 0 {
		return true, ""
	}
	return false, "no user-specific name or number"
}

func notGeneric(t task.Task) (bool, string) {
	lower := strings.ToLower(t.Title + " " + t.Description)
	for _, p := range genericPhrases {
		if strings.Contains(lower, p) {
			return false, fmt.Sprintf("generic phrase %q", p)
		}
	}
	return true, ""
}

func actionVerb(t task.Task) (bool, string) {
	title := strings.ToLower(strings.TrimSpace(t.Title))
	for _, w := range weakVerbs {
		if strings.Contains(title, w) {
			return false, fmt.Sprintf("weak verb %q", w)
		}
	}
	if startsWithVerb(title) || startsWithVerb(strings.ToLower(strings.TrimSpace(t.Description))) {
		return true, ""
	}
	return false, "does not start with an action verb"
}

func startsWithVerb(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	first := strings.Trim(fields[0], `"'.,:;!?`)
	for _, v := range actionVerbs {
		if strings.Contains(v, " ") {
			if strings.HasPrefix(s, v) {
				return true
			}
			continue
		}
		if strings.HasPrefix(first, v) {
			return true
		}
	}
	return false
}

func noPlaceholder(t task.Task) (bool, string) {
	text := t.Text()
	for _, re := range allowedBrackets {
		text = re.ReplaceAllString(text, "")
	}
	lower := strings.ToLower(text)
	for _, tok := range placeholderTokens {
		if strings.Contains(lower, tok) {
			return false, fmt.Sprintf("placeholder %q", tok)
		}
	}
	return true, ""
}
