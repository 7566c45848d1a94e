package cache

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"adaptive_task_generator/profile"
	"adaptive_task_generator/task"
)

// placeholder binds a cache token to the context value it stands for.
type placeholder struct {
	token    string
	value    func(profile.Context) string
	fallback string
}

func key(k string) func(profile.Context) string {
	return func(c profile.Context) string { return strings.TrimSpace(c.String(k)) }
}

var placeholders = append([]placeholder{
	{"[startup name]", key(profile.KeyStartupName), "the startup"},
	{"[startup users]", key(profile.KeyStartupUsers), "your users"},
	{"[startup funding]", key(profile.KeyStartupFunding), "the funding raised"},
	{"[university name]", universities, "the shortlisted universities"},
	{"[target school]", key(profile.KeySchool1), "the first-choice school"},
	{"[current university]", key(profile.KeyCurrentUniversity), "your current university"},
	{"[program name]", key(profile.KeyProgramName), "the program"},
	{"[research interest]", key(profile.KeyResearchInterest), "your research interest"},
	{"[field]", key(profile.KeyField), "the chosen field"},
	{"[achievement]", key(profile.KeyTopAchievement), "the top achievement"},
	{"[the organization]", key(profile.KeyTargetCompany), "the organization"},
	{"[target role]", key(profile.KeyTargetRole), "the target role"},
	{"[current role]", key(profile.KeyCurrentRole), "your current role"},
	{"[top skill]", key(profile.KeyTopSkill), "your strongest skill"},
	{"[warm intro]", key(profile.KeyWarmIntro), "your contact"},
	{"[fitness goal]", key(profile.KeyFitnessGoal), "your fitness goal"},
	{"[limitation]", key(profile.KeyLimitation), "your limitation"},
	{"[user name]", key(profile.KeyUserName), "you"},
	{"[gpa]", key(profile.KeyGPA), "your GPA"},
}, scorePlaceholders()...)

func scorePlaceholders() []placeholder {
	var out []placeholder
	for _, t := range profile.Tests {
		up := strings.ToUpper(t)
		out = append(out,
			placeholder{"[" + t + " score]", key(profile.ScoreKey(t)), "your current " + up + " score"},
			placeholder{"[" + t + " target]", key(profile.TargetKey(t)), "the " + up + " target"},
		)
	}
	return out
}

func universities(c profile.Context) string {
	us := c.List(profile.KeyTargetUniversities)
	if len(us) > 3 {
		us = us[:3]
	}
	return strings.Join(us, ", ")
}

// listPlaceholder numbers every element of a list value: [target school 2].
type listPlaceholder struct {
	name, key, fallback string
}

var listPlaceholders = []listPlaceholder{
	{"target school", profile.KeyTargetUniversities, "another shortlisted school"},
	{"target company", profile.KeyTargetCompanies, "another target company"},
	{"achievement", profile.KeyAchievements, "another achievement"},
}

func (l listPlaceholder) token(i int) string { return fmt.Sprintf("[%s %d]", l.name, i+1) }

var listToken = func() *regexp.Regexp {
	names := make([]string, len(listPlaceholders))
	for i, l := range listPlaceholders {
		names[i] = regexp.QuoteMeta(l.name)
	}
	return regexp.MustCompile(`\[(` + strings.Join(names, "|") + `) (\d+)\]`)
}()

// minValueLen skips values too short to replace safely.
const minValueLen = 3

type binding struct {
	token, value string
}

// valuePattern matches v as a whole word so "Ana" never hits "Analyze".
func valuePattern(v string) string {
	pat := regexp.QuoteMeta(v)
	if r, _ := utf8.DecodeRuneInString(v); isWord(r) {
		pat = `\b` + pat
	}
	if r, _ := utf8.DecodeLastRuneInString(v); isWord(r) {
		pat += `\b`
	}
	return pat
}

func isWord(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

// bindings lists the user's values longest first so overlapping values
// ("MIT" inside "MIT, Stanford") replace the wider match.
func bindings(c profile.Context) []binding {
	var out []binding
	seen := map[string]bool{}
	add := func(token, v string) {
		v = strings.TrimSpace(v)
		if len(v) < minValueLen || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, binding{token: token, value: v})
	}
	for _, p := range placeholders {
		add(p.token, p.value(c))
	}
	for _, l := range listPlaceholders {
		for i, v := range c.List(l.key) {
			add(l.token(i), v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].value) > len(out[j].value) })
	return out
}

// depersonalizer replaces every bound value in one pass, so a token already
// written is never matched again.
type depersonalizer struct {
	re     *regexp.Regexp
	tokens map[string]string
}

func newDepersonalizer(c profile.Context) depersonalizer {
	bs := bindings(c)
	if len(bs) == 0 {
		return depersonalizer{}
	}
	d := depersonalizer{tokens: make(map[string]string, len(bs))}
	pats := make([]string, len(bs))
	for i, b := range bs {
		d.tokens[b.value] = b.token
		pats[i] = valuePattern(b.value)
	}
	d.re = regexp.MustCompile(strings.Join(pats, "|"))
	return d
}

func (d depersonalizer) apply(text string) string {
	if d.re == nil {
		return text
	}
	return d.re.ReplaceAllStringFunc(text, func(m string) string { return d.tokens[m] })
}

// Personalize fills placeholders with the user's values or readable fallbacks.
func Personalize(text string, c profile.Context) string {
	if !strings.Contains(text, "[") {
		return text
	}
	for _, p := range placeholders {
		v := p.value(c)
		if v == "" {
			v = p.fallback
		}
		text = strings.ReplaceAll(text, p.token, v)
	}
	return listToken.ReplaceAllStringFunc(text, func(m string) string {
		sub := listToken.FindStringSubmatch(m)
		n, _ := strconv.Atoi(sub[2])
		for _, l := range listPlaceholders {
			if l.name != sub[1] {
				continue
			}
			if vs := c.List(l.key); n >= 1 && n <= len(vs) && strings.TrimSpace(vs[n-1]) != "" {
				return strings.TrimSpace(vs[n-1])
			}
			return l.fallback
		}
		return m
	})
}

// Depersonalize swaps the user's values back to placeholders.
func Depersonalize(text string, c profile.Context) string {
	return newDepersonalizer(c).apply(text)
}

func mapTask(t task.Task, f func(string) string) task.Task {
	out := t.Clone()
	out.Title = f(out.Title)
	out.Description = f(out.Description)
	for i, d := range out.DefinitionOfDone {
		out.DefinitionOfDone[i] = f(d)
	}
	return out
}

// PersonalizeTasks returns personalized copies tagged as cached.
func PersonalizeTasks(ts []task.Task, c profile.Context) []task.Task {
	out := make([]task.Task, len(ts))
	for i, t := range ts {
		out[i] = mapTask(t, func(s string) string { return Personalize(s, c) })
		out[i].Source = task.SourceCached
	}
	return out
}

// DepersonalizeTasks returns placeholder-form copies fit for sharing.
func DepersonalizeTasks(ts []task.Task, c profile.Context) []task.Task {
	d := newDepersonalizer(c)
	out := make([]task.Task, len(ts))
	for i, t := range ts {
		out[i] = mapTask(t, d.apply)
		out[i].PersonalizationScore = 0
		out[i].RuleBonus = 0
	}
	return out
}
