package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adaptive_task_generator/task"
)

func ptr(f float64) *float64 { return &f }

func TestExtractFounderStudy(t *testing.T) {
	p := Profile{
		UserName:            "Ada",
		FieldOfStudy:        "Computer Science",
		GPA:                 ptr(3.3),
		Startup:             &Startup{Name: "Loopline", Users: "12,000 users", Funding: "$500k"},
		NotableAchievements: []string{"Won HackMIT 2023"},
		TargetSchools:       []string{"MIT", "Stanford"},
		TestScoresText:      "IELTS: 6.5",
		Budget:              "$40k",
	}
	g := Goal{Category: task.CategoryStudy, Title: "Get into a CS master's"}

	c := Extract(p, g)

	assert.Equal(t, BackgroundFounder, c.Background())
	assert.Equal(t, FieldCS, c.FieldKey())
	assert.Equal(t, "Computer Science", c.String(KeyField))
	assert.True(t, c.Bool(KeyHasStartup))
	assert.True(t, c.Bool(KeyHasAchievements))
	assert.True(t, c.Bool(KeyGPANeedsCompensation))
	assert.Equal(t, "Loopline", c.String(KeyStartupName))
	assert.Equal(t, "Founder", c.String(KeyStartupRole))
	assert.Equal(t, "MIT", c.String(KeySchool1))
	assert.Equal(t, []string{"MIT", "Stanford"}, c.List(KeyTargetUniversities))
	assert.Equal(t, string(BudgetTierPremium), c.String(KeyBudgetTier))

	ielts, ok := c.Number(ScoreKey("ielts"))
	require.True(t, ok)
	assert.Equal(t, 6.5, ielts)
	assert.True(t, c.Bool(PrepNeededKey("ielts")))
	assert.False(t, c.Bool(MeetsTargetKey("ielts")))
	assert.True(t, c.Bool(KeyScoreBelowTarget))
	// No TOEFL score: no prep flag at all.
	assert.False(t, c.Has(PrepNeededKey("toefl")))
}

func TestExtractScoreMeetsTarget(t *testing.T) {
	p := Profile{TestScores: map[string]float64{"IELTS": 7.5}}
	g := Goal{Category: task.CategoryStudy, Specifications: map[string]any{"target_score": "7.0"}}

	c := Extract(p, g)

	assert.False(t, c.Bool(PrepNeededKey("ielts")))
	assert.True(t, c.Bool(MeetsTargetKey("ielts")))
	assert.False(t, c.Bool(KeyScoreBelowTarget))
}

func TestExtractPrepOnlyForStudy(t *testing.T) {
	p := Profile{TestScores: map[string]float64{"ielts": 5.0}}
	c := Extract(p, Goal{Category: task.CategoryCareer})
	assert.False(t, c.Has(PrepNeededKey("ielts")))
}

func TestExtractEmptyNeverFails(t *testing.T) {
	c := Extract(Profile{}, Goal{})
	assert.Equal(t, BackgroundStudent, c.Background())
	assert.Equal(t, string(task.CategoryStudy), c.String(KeyCategory))
	assert.Equal(t, string(BudgetTierStandard), c.String(KeyBudgetTier))
	assert.False(t, c.Has(KeyField))
	assert.False(t, c.Has(KeyGPA))
}

func TestExtractFieldInferredFromGoal(t *testing.T) {
	g := Goal{Category: task.CategoryStudy, Title: "Apply to HCI programs"}
	c := Extract(Profile{Background: "designer"}, g)
	assert.Equal(t, FieldHCI, c.FieldKey())
	assert.Equal(t, "Human-Computer Interaction", c.String(KeyField))
	assert.Equal(t, BackgroundDesigner, c.Background())
}

func TestExtractCareerAndFitness(t *testing.T) {
	career := Extract(Profile{
		Role:              "Backend developer",
		YearsOfExperience: 4,
		Skills:            []string{"Go"},
		WarmIntros:        []string{"Priya at Stripe"},
	}, Goal{Category: task.CategoryCareer, Specifications: map[string]any{
		"target_role":      "Staff Engineer",
		"target_companies": []any{"Stripe", "Datadog"},
	}})
	assert.Equal(t, BackgroundEngineer, career.Background())
	assert.Equal(t, "mid_level", career.String(KeyExperienceLevel))
	assert.Equal(t, "Stripe", career.String(KeyTargetCompany))
	assert.True(t, career.Bool(KeyHasWarmIntros))
	assert.Equal(t, "Go", career.String(KeyTopSkill))

	fit := Extract(Profile{Limitations: []string{"knee injury"}},
		Goal{Category: task.CategoryFitness, Specifications: map[string]any{"weekly_sessions": 3}})
	n, ok := fit.Number(KeyWeeklySessions)
	require.True(t, ok)
	assert.Equal(t, 3.0, n)
	assert.Equal(t, "knee injury", fit.String(KeyLimitation))
}

func TestParseBudgetTier(t *testing.T) {
	tests := []struct {
		in   string
		want BudgetTier
	}{
		{"$10k", BudgetTierBudget},
		{"£20k-30k", BudgetTierStandard},
		{"15000", BudgetTierStandard},
		{"30,000", BudgetTierStandard},
		{"$45k", BudgetTierPremium},
		{"", BudgetTierStandard},
		{"cheap", BudgetTierStandard},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBudgetTier(tt.in))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		p    Profile
		st   bool
		want Background
		conf Confidence
	}{
		{"explicit", Profile{Background: "Lawyer"}, false, BackgroundLawyer, ConfidenceHigh},
		{"startup flag", Profile{}, true, BackgroundFounder, ConfidenceHigh},
		{"nurse role", Profile{Role: "ICU nurse"}, false, BackgroundHealthcare, ConfidenceHigh},
		{"medical student", Profile{Role: "medical student"}, false, BackgroundStudent, ConfidenceHigh},
		{"years only", Profile{YearsOfExperience: 3}, false, BackgroundProfessional, ConfidenceLow},
		{"research only", Profile{ResearchExperience: true}, false, BackgroundResearcher, ConfidenceLow},
		{"nothing", Profile{}, false, BackgroundStudent, ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.p, tt.st)
			assert.Equal(t, tt.want, got.Background)
			assert.Equal(t, tt.conf, got.Confidence)
		})
	}
}

func TestClassifyFieldOrdering(t *testing.T) {
	key, _, ok := ClassifyField("Medical AI")
	assert.True(t, ok)
	assert.Equal(t, FieldMedicalAI, key)

	key, _, _ = ClassifyField("chair design")
	assert.NotEqual(t, FieldAI, key)

	key, _, ok = ClassifyField("basket weaving")
	assert.False(t, ok)
	assert.Equal(t, FieldOther, key)
}

func TestContextIsCopied(t *testing.T) {
	src := map[string]any{"list": []string{"a"}, "n": 3, "nil": nil}
	c := NewContext(src)
	src["list"].([]string)[0] = "changed"
	assert.Equal(t, []string{"a"}, c.List("list"))
	n, _ := c.Number("n")
	assert.Equal(t, 3.0, n)
	assert.False(t, c.Has("nil"))

	l := c.List("list")
	l[0] = "mutated"
	assert.Equal(t, "a", c.List("list")[0])
}

func TestProperNouns(t *testing.T) {
	c := NewContext(map[string]any{
		KeyStartupName:        "Loopline",
		KeyTargetUniversities: []string{"MIT", "mit"},
		KeyGPA:                3.3,
	})
	assert.ElementsMatch(t, []string{"Loopline", "MIT", "3.3"}, c.ProperNouns())
}
