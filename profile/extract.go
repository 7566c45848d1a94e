// Package profile turns a raw user profile and goal into the canonical Context
// every generation source reads from.
package profile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"adaptive_task_generator/task"
)

// Profile is the raw user record as delivered by the persistence layer.
// Every field is optional.
type Profile struct {
	UserID              string             `json:"user_id,omitempty"`
	UserName            string             `json:"user_name,omitempty"`
	Background          string             `json:"background,omitempty"`
	Role                string             `json:"role,omitempty"`
	WorkHistory         string             `json:"work_history,omitempty"`
	YearsOfExperience   int                `json:"years_of_experience,omitempty"`
	ResearchExperience  bool               `json:"research_experience,omitempty"`
	ResearchInterests   string             `json:"research_interests,omitempty"`
	FieldOfStudy        string             `json:"field_of_study,omitempty"`
	CurrentEducation    string             `json:"current_education,omitempty"`
	GPA                 *float64           `json:"gpa,omitempty"`
	TestScores          map[string]float64 `json:"test_scores,omitempty"`
	TestScoresText      string             `json:"test_scores_text,omitempty"`
	Budget              string             `json:"budget,omitempty"`
	TargetSchools       []string           `json:"target_schools,omitempty"`
	TargetCountry       string             `json:"target_country,omitempty"`
	NotableAchievements []string           `json:"notable_achievements,omitempty"`
	Skills              []string           `json:"skills,omitempty"`
	Weaknesses          []string           `json:"weaknesses,omitempty"`
	WarmIntros          []string           `json:"warm_intros,omitempty"`
	Limitations         []string           `json:"limitations,omitempty"`
	DailyMinutes        int                `json:"daily_available_minutes,omitempty"`
	Startup             *Startup           `json:"startup,omitempty"`
}

// Startup describes a venture the user built.
type Startup struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Users       string `json:"users,omitempty"`
	Funding     string `json:"funding,omitempty"`
	Role        string `json:"role,omitempty"`
}

// Goal is the goal specification.
type Goal struct {
	Category       task.Category  `json:"category"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Specifications map[string]any `json:"specifications,omitempty"`
}

// Default score targets when the goal does not name one.
var defaultTargets = map[string]float64{"ielts": 7.0, "toefl": 100, "gre": 320}

const gpaCompensationThreshold = 3.5

// Extract builds the Context. It never fails: missing data is simply absent.
func Extract(p Profile, g Goal) Context {
	specs := spec{g.Specifications}
	m := map[string]any{}
	set := func(k string, v any) {
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return
		}
		m[k] = v
	}

	category := g.Category
	if category == "" {
		category = task.ParseCategory(specs.str("category"))
	}
	set(KeyCategory, string(category))
	set(KeyGoalTitle, g.Title)
	set(KeyUserName, p.UserName)

	// Founder/startup signals.
	st := startupOf(p, specs)
	hasStartup := specs.boolean("has_startup_background") || st.Name != ""
	m[KeyHasStartup] = hasStartup
	if hasStartup {
		set(KeyStartupName, st.Name)
		set(KeyStartupDescription, st.Description)
		set(KeyStartupUsers, st.Users)
		set(KeyStartupFunding, st.Funding)
		set(KeyStartupRole, firstNonEmpty(st.Role, "Founder"))
	}

	cls := Classify(p, hasStartup)
	m[KeyBackground] = string(cls.Background)
	m[KeyBackgroundConfidence] = string(cls.Confidence)
	set(KeyBackgroundKeyword, cls.Keyword)

	m[KeyHasWork] = p.YearsOfExperience > 0 || strings.TrimSpace(p.WorkHistory) != ""
	m[KeyHasResearch] = p.ResearchExperience || cls.Background == BackgroundResearcher
	achievements := nonEmpty(p.NotableAchievements)
	m[KeyHasAchievements] = len(achievements) > 0
	if len(achievements) > 0 {
		m[KeyAchievements] = achievements
		m[KeyTopAchievement] = achievements[0]
	}

	// Field.
	fieldText := firstNonEmpty(p.FieldOfStudy, specs.str("field"), specs.str("field_of_study"))
	key, display, ok := ClassifyField(fieldText)
	switch {
	case fieldText != "":
		m[KeyField] = strings.TrimSpace(fieldText)
		m[KeyFieldKey] = string(key)
	default:
		if key, display, ok = ClassifyField(g.Title + " " + g.Description); ok {
			m[KeyField] = display
			m[KeyFieldKey] = string(key)
		}
	}

	// Budget.
	budget := firstNonEmpty(p.Budget, specs.str("budget"))
	set(KeyBudget, budget)
	m[KeyBudgetTier] = string(ParseBudgetTier(budget))

	// GPA.
	gpa, hasGPA := gpaOf(p, specs)
	if hasGPA {
		m[KeyGPA] = gpa
		m[KeyGPABelowAverage] = gpa < gpaCompensationThreshold
		m[KeyGPANeedsCompensation] = gpa < gpaCompensationThreshold && (hasStartup || len(achievements) > 0)
	}

	// Test scores. Only study goals get prep flags.
	scores := testScoresOf(p)
	anyBelow := false
	for _, test := range Tests {
		cur, hasCur := scores[test]
		if hasCur {
			m[ScoreKey(test)] = cur
		}
		target := defaultTargets[test]
		if v, ok := specs.number(TargetKey(test)); ok {
			target = v
		} else if test == "ielts" {
			if v, ok := specs.number("target_score"); ok {
				target = v
			}
		}
		m[TargetKey(test)] = target
		if category != task.CategoryStudy || !hasCur || cur <= 0 {
			continue
		}
		needed := cur < target
		m[PrepNeededKey(test)] = needed
		m[MeetsTargetKey(test)] = !needed
		anyBelow = anyBelow || needed
	}
	m[KeyScoreBelowTarget] = anyBelow

	if len(p.Weaknesses) > 0 {
		set(KeyWeakness, p.Weaknesses[0])
	}
	if p.DailyMinutes > 0 {
		m[KeyDailyMinutes] = p.DailyMinutes
	}

	switch category {
	case task.CategoryStudy:
		extractStudy(p, specs, m, set)
	case task.CategoryCareer:
		extractCareer(p, specs, m, set)
	case task.CategoryFitness:
		extractFitness(p, specs, m, set)
	}
	return NewContext(m)
}

func extractStudy(p Profile, specs spec, m map[string]any, set func(string, any)) {
	schools := nonEmpty(p.TargetSchools)
	if len(schools) == 0 {
		schools = splitList(specs.str("target_universities"))
	}
	if len(schools) > 0 {
		m[KeyTargetUniversities] = schools
		m[KeySchool1] = schools[0]
	}
	set(KeyCurrentUniversity, p.CurrentEducation)
	set(KeyResearchInterest, firstNonEmpty(p.ResearchInterests, specs.str("research_interest")))
	set(KeyDeadlineEarliest, specs.str("deadline"))
	if field, ok := m[KeyField].(string); ok {
		set(KeyProgramName, firstNonEmpty(specs.str("program_name"), "Master's in "+field))
	} else {
		set(KeyProgramName, specs.str("program_name"))
	}
	if n, ok := specs.number("num_schools"); ok {
		m[KeyNumSchools] = n
	} else if len(schools) > 0 {
		m[KeyNumSchools] = len(schools)
	}
	country := firstNonEmpty(p.TargetCountry, specs.str("country"))
	if country != "" {
		m[KeyTargetCountry] = country
		m[KeyTargetRegion] = regionOf(country)
	}
}

func extractCareer(p Profile, specs spec, m map[string]any, set func(string, any)) {
	set(KeyCurrentRole, p.Role)
	set(KeyTargetRole, specs.str("target_role"))
	companies := splitList(specs.str("target_companies"))
	if len(companies) > 0 {
		m[KeyTargetCompanies] = companies
		m[KeyTargetCompany] = companies[0]
	}
	if p.YearsOfExperience > 0 {
		m[KeyYearsExperience] = p.YearsOfExperience
	}
	m[KeyExperienceLevel] = ExperienceLevel(p.YearsOfExperience)
	if skills := nonEmpty(p.Skills); len(skills) > 0 {
		m[KeyTopSkill] = skills[0]
	}
	intros := nonEmpty(p.WarmIntros)
	m[KeyHasWarmIntros] = len(intros) > 0
	if len(intros) > 0 {
		m[KeyWarmIntro] = intros[0]
	}
}

func extractFitness(p Profile, specs spec, m map[string]any, set func(string, any)) {
	set(KeyFitnessGoal, firstNonEmpty(specs.str("fitness_goal"), specs.str("goal")))
	if n, ok := specs.number("weekly_sessions"); ok {
		m[KeyWeeklySessions] = n
	}
	lims := nonEmpty(p.Limitations)
	m[KeyHasLimitations] = len(lims) > 0
	if len(lims) > 0 {
		m[KeyLimitation] = lims[0]
	}
}

// BudgetTier is a template budget variant.
type BudgetTier string

const (
	BudgetTierBudget   BudgetTier = "budget"
	BudgetTierStandard BudgetTier = "standard"
	BudgetTierPremium  BudgetTier = "premium"
)

var budgetNumber = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(k)?`)

// ParseBudgetTier reads strings like "$10k", "£20k-30k", "15000".
// The lower bound of a range is used; unparseable input is standard.
func ParseBudgetTier(s string) BudgetTier {
	clean := strings.ToLower(strings.ReplaceAll(s, ",", ""))
	mm := budgetNumber.FindStringSubmatch(clean)
	if mm == nil {
		return BudgetTierStandard
	}
	v, err := strconv.ParseFloat(mm[1], 64)
	if err != nil {
		return BudgetTierStandard
	}
	if mm[2] == "k" {
		v *= 1000
	}
	switch {
	case v < 15000:
		return BudgetTierBudget
	case v <= 30000:
		return BudgetTierStandard
	default:
		return BudgetTierPremium
	}
}

// ExperienceLevel maps years onto entry/mid/senior.
func ExperienceLevel(years int) string {
	switch {
	case years <= 2:
		return "entry_level"
	case years <= 7:
		return "mid_level"
	default:
		return "senior"
	}
}

func regionOf(country string) string {
	switch strings.ToUpper(strings.TrimSpace(country)) {
	case "US", "USA", "UNITED STATES":
		return "United States"
	case "UK", "UNITED KINGDOM":
		return "United Kingdom"
	case "CANADA":
		return "Canada"
	case "GERMANY", "FRANCE", "SPAIN", "ITALY", "NETHERLANDS":
		return "Europe"
	case "AUSTRALIA":
		return "Australia"
	default:
		return country
	}
}

var scorePatterns = map[string]*regexp.Regexp{
	"ielts": regexp.MustCompile(`ielts[:\s]+(\d+(?:\.\d+)?)`),
	"toefl": regexp.MustCompile(`toefl[:\s]+(\d+)`),
	"gre":   regexp.MustCompile(`gre[:\s]+(\d+)`),
}

func testScoresOf(p Profile) map[string]float64 {
	out := map[string]float64{}
	for k, v := range p.TestScores {
		out[strings.ToLower(k)] = v
	}
	text := strings.ToLower(p.TestScoresText)
	for test, re := range scorePatterns {
		if _, ok := out[test]; ok {
			continue
		}
		if mm := re.FindStringSubmatch(text); mm != nil {
			if f, err := strconv.ParseFloat(mm[1], 64); err == nil {
				out[test] = f
			}
		}
	}
	return out
}

func gpaOf(p Profile, specs spec) (float64, bool) {
	if p.GPA != nil && *p.GPA > 0 {
		return *p.GPA, true
	}
	return specs.number("gpa")
}

func startupOf(p Profile, specs spec) Startup {
	var st Startup
	if p.Startup != nil {
		st = *p.Startup
	}
	st.Name = firstNonEmpty(st.Name, specs.str("startup_name"))
	st.Description = firstNonEmpty(st.Description, specs.str("startup_description"))
	st.Users = firstNonEmpty(st.Users, specs.str("startup_users"))
	st.Funding = firstNonEmpty(st.Funding, specs.str("startup_funding"))
	st.Role = firstNonEmpty(st.Role, specs.str("startup_role"))
	return st
}

// spec reads loosely typed goal specifications.
type spec struct{ m map[string]any }

func (s spec) str(k string) string {
	v, ok := s.m[k]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			parts = append(parts, fmt.Sprint(e))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(x, ", ")
	default:
		return fmt.Sprint(x)
	}
}

func (s spec) number(k string) (float64, bool) {
	switch x := s.m[k].(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (s spec) boolean(k string) bool {
	switch x := s.m[k].(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	default:
		return false
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return nonEmpty(strings.Split(s, ","))
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
