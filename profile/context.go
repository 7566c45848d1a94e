package profile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Well-known Context keys. Templates and rules reference these by name.
const (
	KeyUserName             = "user_name"
	KeyCategory             = "category"
	KeyGoalTitle            = "goal_title"
	KeyBackground           = "background"
	KeyBackgroundConfidence = "background_confidence"
	KeyBackgroundKeyword    = "background_keyword"
	KeyField                = "field"
	KeyFieldKey             = "field_key"
	KeyBudget               = "budget"
	KeyBudgetTier           = "budget_tier"

	KeyGPA                  = "gpa"
	KeyGPABelowAverage      = "gpa_below_average"
	KeyGPANeedsCompensation = "gpa_needs_compensation"

	KeyHasStartup      = "has_startup_background"
	KeyHasWork         = "has_work_experience"
	KeyHasResearch     = "has_research_experience"
	KeyHasAchievements = "has_notable_achievements"
	KeyHasWarmIntros   = "has_warm_intros"
	KeyHasLimitations  = "has_limitations"
	KeyScoreBelowTarget = "score_below_target"

	KeyStartupName        = "startup_name"
	KeyStartupDescription = "startup_description"
	KeyStartupUsers       = "startup_users"
	KeyStartupFunding     = "startup_funding"
	KeyStartupRole        = "startup_role"
	KeyTopAchievement     = "top_achievement"
	KeyAchievements       = "notable_achievements"

	KeyTargetUniversities = "target_universities"
	KeySchool1            = "school_1"
	KeyCurrentUniversity  = "current_university"
	KeyProgramName        = "program_name"
	KeyNumSchools         = "num_schools"
	KeyDeadlineEarliest   = "deadline_earliest"
	KeyResearchInterest   = "research_interest"
	KeyTargetRegion       = "target_region"
	KeyTargetCountry      = "target_country"

	KeyCurrentRole     = "current_role"
	KeyTargetRole      = "target_role"
	KeyTargetCompanies = "target_companies"
	KeyTargetCompany   = "target_company"
	KeyYearsExperience = "years_experience"
	KeyExperienceLevel = "experience_level"
	KeyTopSkill        = "top_skill"
	KeyWarmIntro       = "warm_intro"

	KeyFitnessGoal    = "fitness_goal"
	KeyWeeklySessions = "weekly_sessions"
	KeyLimitation     = "limitation"
	KeyDailyMinutes   = "daily_minutes"
	KeyWeakness       = "weakness"
)

// Standardized tests tracked for score-vs-target flags.
var Tests = []string{"ielts", "toefl", "gre"}

// ScoreKey is the current score for a test, e.g. "ielts_score".
func ScoreKey(test string) string { return test + "_score" }

// TargetKey is the target score for a test, e.g. "target_ielts".
func TargetKey(test string) string { return "target_" + test }

// PrepNeededKey is true when 0 < current < target.
func PrepNeededKey(test string) string { return test + "_prep_needed" }

// MeetsTargetKey is true when the current score already meets the target.
func MeetsTargetKey(test string) string { return test + "_meets_target" }

// Context is the canonical, read-only view of a profile and goal.
// Values are string, float64, bool or []string. A nil or missing value means "off".
type Context struct {
	vals map[string]any
}

// NewContext copies m, normalizing numbers to float64 and lists to []string.
// Nil values are dropped.
func NewContext(m map[string]any) Context {
	vals := make(map[string]any, len(m))
	for k, v := range m {
		if nv, ok := normalize(v); ok {
			vals[k] = nv
		}
	}
	return Context{vals: vals}
}

func normalize(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case string:
		return x, true
	case bool:
		return x, true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case []string:
		return append([]string(nil), x...), true
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if e == nil {
				continue
			}
			out = append(out, fmt.Sprint(e))
		}
		return out, true
	default:
		return fmt.Sprint(x), true
	}
}

// Get returns the raw value.
func (c Context) Get(key string) (any, bool) {
	v, ok := c.vals[key]
	return v, ok
}

// Has reports whether key is present and non-empty.
func (c Context) Has(key string) bool {
	v, ok := c.vals[key]
	if !ok {
		return false
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x) != ""
	case []string:
		return len(x) > 0
	default:
		return true
	}
}

// String renders the value as text; lists are comma joined.
func (c Context) String(key string) string {
	v, ok := c.vals[key]
	if !ok {
		return ""
	}
	return formatValue(v)
}

// StringOr returns String(key) or def when the key is empty.
func (c Context) StringOr(key, def string) string {
	if s := c.String(key); s != "" {
		return s
	}
	return def
}

// Number returns a numeric value, parsing numeric strings.
func (c Context) Number(key string) (float64, bool) {
	v, ok := c.vals[key]
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Bool reports a flag. Anything but a true bool is off.
func (c Context) Bool(key string) bool {
	b, ok := c.vals[key].(bool)
	return ok && b
}

// List returns a list value; a non-empty string becomes a single-element list.
func (c Context) List(key string) []string {
	switch x := c.vals[key].(type) {
	case []string:
		return append([]string(nil), x...)
	case string:
		if strings.TrimSpace(x) == "" {
			return nil
		}
		return []string{x}
	default:
		return nil
	}
}

// Keys returns all present keys in sorted order.
func (c Context) Keys() []string {
	keys := make([]string, 0, len(c.vals))
	for k := range c.vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len is the number of present variables.
func (c Context) Len() int { return len(c.vals) }

// Map returns a copy of the variables for template execution.
func (c Context) Map() map[string]any {
	out := make(map[string]any, len(c.vals))
	for k, v := range c.vals {
		if l, ok := v.([]string); ok {
			out[k] = append([]string(nil), l...)
			continue
		}
		out[k] = v
	}
	return out
}

// With returns a new Context with extra values layered on top.
func (c Context) With(extra map[string]any) Context {
	m := c.Map()
	for k, v := range extra {
		m[k] = v
	}
	return NewContext(m)
}

// Background returns the classified background.
func (c Context) Background() Background { return Background(c.String(KeyBackground)) }

// FieldKey returns the canonical field key.
func (c Context) FieldKey() FieldKey { return FieldKey(c.String(KeyFieldKey)) }

// ProperNouns lists user-specific values (names, institutions, numbers) used to
// judge whether a task is personalized.
func (c Context) ProperNouns() []string {
	keys := []string{
		KeyStartupName, KeyTopAchievement, KeyCurrentUniversity, KeyProgramName,
		KeyTargetRole, KeyCurrentRole, KeyTargetCompany, KeyTopSkill, KeyWarmIntro,
		KeyResearchInterest, KeyField, KeyStartupUsers, KeyStartupFunding, KeyLimitation, KeyFitnessGoal,
	}
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if len(s) < 2 || seen[strings.ToLower(s)] {
			return
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	for _, k := range keys {
		add(c.String(k))
	}
	for _, k := range []string{KeyTargetUniversities, KeyTargetCompanies, KeyAchievements} {
		for _, v := range c.List(k) {
			add(v)
		}
	}
	for _, k := range []string{KeyGPA, ScoreKey("ielts"), ScoreKey("toefl"), ScoreKey("gre"), TargetKey("ielts"), TargetKey("toefl"), TargetKey("gre")} {
		if n, ok := c.Number(k); ok && n > 0 {
			add(formatNumber(n))
		}
	}
	return out
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return formatNumber(x)
	case bool:
		return strconv.FormatBool(x)
	case []string:
		return strings.Join(x, ", ")
	default:
		return fmt.Sprint(x)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
