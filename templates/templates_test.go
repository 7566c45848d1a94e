package templates

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adaptive_task_generator/profile"
	"adaptive_task_generator/task"
)

func foundingCtx() profile.Context {
	gpa := 3.3
	return profile.Extract(profile.Profile{
		FieldOfStudy:        "Computer Science",
		GPA:                 &gpa,
		Startup:             &profile.Startup{Name: "Loopline", Users: "12,000 users"},
		NotableAchievements: []string{"HackMIT winner"},
		TargetSchools:       []string{"MIT", "Stanford"},
		ResearchInterests:   "distributed systems",
		TargetCountry:       "US",
	}, profile.Goal{Category: task.CategoryStudy, Title: "CS master's"})
}

func mustSet(t *testing.T, y string) *Set {
	t.Helper()
	s, err := LoadSet(strings.NewReader(y))
	require.NoError(t, err)
	return s
}

func TestDefaultSetLoadsAndRenders(t *testing.T) {
	set, err := DefaultSet()
	require.NoError(t, err)
	require.NotEmpty(t, set.Version)

	cats := map[task.Category]int{}
	for _, tpl := range set.Templates {
		cats[tpl.Category]++
	}
	assert.Positive(t, cats[task.CategoryStudy])
	assert.Positive(t, cats[task.CategoryCareer])
	assert.Positive(t, cats[task.CategoryFitness])

	contexts := map[task.Category]profile.Context{
		task.CategoryStudy: foundingCtx(),
		task.CategoryCareer: profile.Extract(profile.Profile{
			Role: "QA analyst", YearsOfExperience: 2, Skills: []string{"SQL"}, WarmIntros: []string{"Dana"},
		}, profile.Goal{Category: task.CategoryCareer, Specifications: map[string]any{
			"target_role": "Data Engineer", "target_companies": "Spotify, Shopify",
		}}),
		task.CategoryFitness: profile.Extract(profile.Profile{Limitations: []string{"lower back"}},
			profile.Goal{Category: task.CategoryFitness, Specifications: map[string]any{"fitness_goal": "a sub-25 5k", "weekly_sessions": 4}}),
	}
	for _, tpl := range set.Templates {
		c := contexts[tpl.Category]
		if !hasAll(c, tpl.RequiredVariables) {
			continue
		}
		t.Run(tpl.ID, func(t *testing.T) {
			got, err := Render(tpl, c)
			require.NoError(t, err)
			assert.NotEmpty(t, got.Title)
			assert.NotContains(t, got.Title, "<no value>")
			assert.NotContains(t, got.Description, "<no value>")
			assert.Equal(t, task.SourceTemplate, got.Source)
			assert.Equal(t, tpl.ID, got.TemplateID)
			assert.GreaterOrEqual(t, got.TimeboxMinutes, 15)
		})
	}
}

func TestSelectIsIdempotent(t *testing.T) {
	set, err := DefaultSet()
	require.NoError(t, err)
	sel := NewSelector(set)
	c := foundingCtx()

	first, err := sel.Select(c, task.CategoryStudy, profile.BudgetTierStandard)
	require.NoError(t, err)
	second, err := sel.Select(c, task.CategoryStudy, profile.BudgetTierStandard)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "sop_draft_intro", first.ID)
}

const tieSet = `
version: "t1"
templates:
  - id: b_generic
    category: study
    base_score: 50
    optional_variables: [field]
    title: "Draft plan"
  - id: a_generic
    category: study
    base_score: 50
    optional_variables: [field]
    title: "Draft plan"
  - id: c_rich
    category: study
    base_score: 50
    optional_variables: [field, startup_name]
    title: "Draft plan"
  - id: z_budget
    category: study
    budget_tier: budget
    base_score: 99
    title: "Draft cheap plan"
  - id: needs_gpa
    category: study
    base_score: 100
    required_variables: [gpa]
    title: "Draft GPA plan {{.gpa}}"
`

func TestSelectTieBreaks(t *testing.T) {
	sel := NewSelector(mustSet(t, tieSet))

	withStartup := profile.NewContext(map[string]any{"field": "CS", "startup_name": "Loopline"})
	got, err := sel.Select(withStartup, task.CategoryStudy, profile.BudgetTierStandard)
	require.NoError(t, err)
	assert.Equal(t, "c_rich", got.ID, "more populated optional variables wins")

	plain := profile.NewContext(map[string]any{"field": "CS"})
	got, err = sel.Select(plain, task.CategoryStudy, profile.BudgetTierStandard)
	require.NoError(t, err)
	assert.Equal(t, "a_generic", got.ID, "id ascending breaks the last tie")

	got, err = sel.Select(plain, task.CategoryStudy, profile.BudgetTierBudget)
	require.NoError(t, err)
	assert.Equal(t, "z_budget", got.ID)

	withGPA := profile.NewContext(map[string]any{"gpa": 3.1})
	got, err = sel.Select(withGPA, task.CategoryStudy, profile.BudgetTierStandard)
	require.NoError(t, err)
	assert.Equal(t, "needs_gpa", got.ID)
}

func TestSelectNoTemplate(t *testing.T) {
	sel := NewSelector(mustSet(t, tieSet))
	_, err := sel.Select(profile.NewContext(nil), task.CategoryFitness, profile.BudgetTierStandard)
	assert.ErrorIs(t, err, ErrNoTemplate)

	_, err = sel.SelectN(profile.NewContext(nil), task.CategoryCareer, profile.BudgetTierStandard, 3)
	assert.ErrorIs(t, err, ErrNoTemplate)
}

func TestSelectNOnePerMilestone(t *testing.T) {
	set, err := DefaultSet()
	require.NoError(t, err)
	got, err := NewSelector(set).SelectN(foundingCtx(), task.CategoryStudy, profile.BudgetTierStandard, 20)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, tpl := range got {
		assert.False(t, seen[tpl.MilestoneType], "duplicate milestone %s", tpl.MilestoneType)
		seen[tpl.MilestoneType] = true
		assert.NotEqual(t, profile.BudgetTierBudget, tpl.BudgetTier)
	}
	assert.Greater(t, len(got), 5)

	two, err := NewSelector(set).SelectN(foundingCtx(), task.CategoryStudy, profile.BudgetTierStandard, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
	assert.Equal(t, got[0].ID, two[0].ID)
}

func TestRenderMissingRequired(t *testing.T) {
	set := mustSet(t, tieSet)
	tpl, ok := set.ByID("needs_gpa")
	require.True(t, ok)

	_, err := Render(tpl, profile.NewContext(map[string]any{"gpa": ""}))
	var re *RenderError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "needs_gpa", re.TemplateID)
	assert.Equal(t, "gpa", re.Variable)
}

func TestRenderUndeclaredVariable(t *testing.T) {
	set := mustSet(t, `
version: "t2"
templates:
  - id: typo
    category: career
    title: "Email {{.recruiter}}"
`)
	_, err := Render(set.Templates[0], profile.NewContext(nil))
	var re *RenderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "typo", re.TemplateID)
}

func TestRenderEmptyTitle(t *testing.T) {
	set := mustSet(t, `
version: "t3"
templates:
  - id: blank
    category: career
    optional_variables: [target_role]
    title: "{{.target_role}}"
`)
	_, err := Render(set.Templates[0], profile.NewContext(nil))
	var re *RenderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "title", re.Variable)
}

func TestLoadSetRejectsBadInput(t *testing.T) {
	_, err := LoadSet(strings.NewReader(`templates: [{id: a, category: study, title: x}]`))
	assert.Error(t, err, "missing version")

	_, err = LoadSet(strings.NewReader(`
version: v
templates:
  - {id: a, category: study, title: x}
  - {id: a, category: study, title: y}
`))
	assert.ErrorContains(t, err, "duplicate")

	_, err = LoadSet(strings.NewReader(`
version: v
templates:
  - {id: a, category: cooking, title: x}
`))
	assert.ErrorContains(t, err, "unknown category")

	_, err = LoadSet(strings.NewReader(`
version: v
templates:
  - {id: a, category: study, title: "{{.x"}
`))
	assert.ErrorContains(t, err, "compile template")
}

func TestRegistryReplaceFiresOnVersionChange(t *testing.T) {
	r := NewRegistry(mustSet(t, "version: v1\ntemplates: []\n"), nil)
	var calls []string
	r.OnChange(func(o, n string) { calls = append(calls, o+"->"+n) })

	r.Replace(mustSet(t, "version: v1\ntemplates: []\n"))
	r.Replace(mustSet(t, "version: v2\ntemplates: []\n"))
	assert.Equal(t, []string{"v1->v2"}, calls)
	assert.Equal(t, "v2", r.Version())
}

func TestRegistryWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: v1\ntemplates: []\n"), 0o644))

	set, err := LoadFile(path)
	require.NoError(t, err)
	r := NewRegistry(set, nil)
	var changed atomic.Int32
	r.OnChange(func(string, string) { changed.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, path) }()

	// The watcher registers asynchronously; keep rewriting until it notices.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("version: v2\ntemplates: []\n"), 0o644)
		return r.Version() == "v2"
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(1), changed.Load())

	cancel()
	require.NoError(t, <-done)
}
