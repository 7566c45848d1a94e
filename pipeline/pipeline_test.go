package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"adaptive_task_generator/budget"
	"adaptive_task_generator/cache"
	"adaptive_task_generator/coverage"
	"adaptive_task_generator/generator"
	"adaptive_task_generator/profile"
	"adaptive_task_generator/rank"
	"adaptive_task_generator/rules"
	"adaptive_task_generator/task"
	"adaptive_task_generator/templates"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var allStages = []Stage{
	StageExtract, StageDetectCoverage, StageGenerate, StageMergeRankDedup, StageValidateFilter, StageDone,
}

func newPipeline(t *testing.T, llm generator.LLMClient, ledger budget.Ledger, svc *cache.Service, opts ...Option) *Pipeline {
	t.Helper()
	set, err := templates.DefaultSet()
	require.NoError(t, err)
	synth, err := generator.NewSynthesizer(llm, ledger, generator.WithRetryDelay(0))
	require.NoError(t, err)
	p, err := New(Deps{
		Detector:    coverage.NewDetector(coverage.DefaultWeights()),
		Selector:    templates.NewSelector(set),
		Rules:       rules.Default(nil),
		Synthesizer: synth,
		Cache:       svc,
		Ranker:      rank.New(rank.DefaultConfig(), nil),
	}, opts...)
	require.NoError(t, err)
	return p
}

func newCache(t *testing.T) *cache.Service {
	t.Helper()
	svc, err := cache.NewService(cache.NewMemoryStore(), cache.StaticVersion("2026.10.1"))
	require.NoError(t, err)
	return svc
}

func designerRequest(user string) Request {
	return Request{
		UserID:  user,
		Profile: profile.Profile{UserName: user, Background: "Product designer", FieldOfStudy: "HCI"},
		Goal:    profile.Goal{Category: task.CategoryStudy, Title: "Get into an HCI master's"},
	}
}

func founderRequest() Request {
	gpa := 3.3
	return Request{
		UserID: "ada",
		Profile: profile.Profile{
			UserName:            "Ada",
			FieldOfStudy:        "Computer Science",
			GPA:                 &gpa,
			Startup:             &profile.Startup{Name: "Loopline", Users: "12,000 users", Funding: "$500k"},
			NotableAchievements: []string{"HackMIT winner"},
			TargetSchools:       []string{"MIT", "Stanford"},
		},
		Goal: profile.Goal{Category: task.CategoryStudy, Title: "MS in Computer Science"},
	}
}

func TestDesignerHCIUsesFullGeneration(t *testing.T) {
	m := generator.NewMockLLM()
	res := newPipeline(t, m, nil, nil).Generate(context.Background(), designerRequest("mira"))

	assert.Equal(t, coverage.StrategyFullGeneration, res.Coverage.Strategy)
	assert.True(t, res.Coverage.IsEdgeCase)
	assert.Empty(t, cmp.Diff(allStages, res.Stages))
	require.False(t, res.Empty())
	for _, tk := range res.Tasks {
		assert.Contains(t, []task.Source{task.SourceUniqueGenerated, task.SourceCustom}, tk.Source, tk.Title)
	}
	assert.Zero(t, res.Sources[string(task.SourceTemplate)])

	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "complete plan of")
	assert.Contains(t, calls[0].Prompt, "DESIGNER -> HCI", "edge case adds scenario guidance")
	assert.True(t, res.Cost.IsPositive())
}

func TestFounderRanksCustomFirst(t *testing.T) {
	m := generator.NewMockLLM(generator.MockReply{Err: errors.New("model offline")})
	res := newPipeline(t, m, nil, nil).Generate(context.Background(), founderRequest())

	assert.Equal(t, coverage.StrategyTemplates, res.Coverage.Strategy)
	require.False(t, res.Empty())
	assert.Equal(t, task.SourceCustom, res.Tasks[0].Source)
	assert.Positive(t, res.Sources[string(task.SourceTemplate)], "templates still contribute")
	for i := 1; i < len(res.Tasks); i++ {
		assert.GreaterOrEqual(t, res.Tasks[i-1].PersonalizationScore, res.Tasks[i].PersonalizationScore)
	}
}

func TestTemplatesGapFillIsUniqueMode(t *testing.T) {
	m := generator.NewMockLLM()
	req := founderRequest()
	req.TargetCount = 18
	res := newPipeline(t, m, nil, nil).Generate(context.Background(), req)

	for _, c := range m.Calls() {
		assert.Contains(t, c.Prompt, "UNIQUE tasks")
		assert.Contains(t, c.Prompt, "EXISTING TASKS")
	}
	if len(m.Calls()) > 0 {
		assert.Positive(t, res.Sources[string(task.SourceUniqueGenerated)])
	}
	assert.LessOrEqual(t, len(res.Tasks), 18)
}

func TestHybridRunsTemplatesAndFullSynthesis(t *testing.T) {
	m := generator.NewMockLLM()
	req := founderRequest()
	req.Profile.FieldOfStudy = "Law"
	req.Profile.GPA = nil
	res := newPipeline(t, m, nil, nil).Generate(context.Background(), req)

	assert.Equal(t, coverage.StrategyHybrid, res.Coverage.Strategy)
	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "complete plan of")
	assert.Contains(t, calls[0].Prompt, "ALREADY PLANNED", "custom tasks are listed as existing work")
	assert.False(t, res.Empty())
	assert.Empty(t, cmp.Diff(allStages, res.Stages))
}

func TestCacheHitForSimilarUser(t *testing.T) {
	m := generator.NewMockLLM()
	svc := newCache(t)
	p := newPipeline(t, m, nil, svc)

	first := p.Generate(context.Background(), designerRequest("mira"))
	require.False(t, first.Empty())
	second := p.Generate(context.Background(), designerRequest("noor"))

	assert.Len(t, m.Calls(), 1, "second user served from cache")
	assert.Positive(t, second.Sources[string(task.SourceCached)])
	assert.True(t, second.Cost.IsZero())
	st := svc.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Puts)
}

func TestAllSourcesFailGivesEmptyResult(t *testing.T) {
	m := generator.NewMockLLM(generator.MockReply{Err: errors.New("rate limited upstream")})
	svc := newCache(t)
	res := newPipeline(t, m, nil, svc).Generate(context.Background(), designerRequest("mira"))

	assert.True(t, res.Empty())
	assert.NotNil(t, res.Tasks)
	assert.Empty(t, cmp.Diff(allStages, res.Stages))
	require.NotEmpty(t, res.Warnings)
	assert.True(t, strings.Contains(strings.Join(res.Warnings, "\n"), "generation failed"))
	assert.Zero(t, svc.Stats().Puts)
}

const scripted = `[
 {"title": "Build an HCI portfolio case study from the checkout redesign", "description": "Show research, flows and outcomes.", "timebox_minutes": 120},
 {"title": "Draft three onboarding flow sketches", "timebox_minutes": 5},
 {"title": "Think about your goal", "timebox_minutes": 5}
]`

func TestValidateFilterVerdicts(t *testing.T) {
	tests := []struct {
		name  string
		keep  bool
		tasks int
	}{
		{"drop regenerate", false, 1},
		{"keep regenerate", true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := generator.NewMockLLM(generator.MockReply{Text: scripted})
			res := newPipeline(t, m, nil, nil, WithKeepRegenerate(tt.keep)).Generate(context.Background(), designerRequest("mira"))
			assert.Len(t, res.Tasks, tt.tasks)
			assert.Equal(t, 1, res.Rejected)
			assert.Equal(t, 1, res.Regenerate)
			assert.Equal(t, 3, res.Validation.Total)
			for _, tk := range res.Tasks {
				assert.NotEqual(t, "Think about your goal", tk.Title)
			}
		})
	}
}

func TestBudgetExceededIsSoft(t *testing.T) {
	ctx := context.Background()
	ledger := budget.NewMemoryLedger(budget.Settings{DefaultLimit: decimal.RequireFromString("0.0001")})
	_, err := ledger.IncrementSpend(ctx, "mira", decimal.RequireFromString("0.0002"))
	require.NoError(t, err)

	res := newPipeline(t, generator.NewMockLLM(), ledger, nil).Generate(ctx, designerRequest("mira"))
	assert.True(t, res.BudgetExceeded)
	assert.False(t, res.Empty(), "the call still runs")
	assert.Contains(t, strings.Join(res.Warnings, "\n"), "budget exceeded")

	spent, err := ledger.Spent(ctx, "mira")
	require.NoError(t, err)
	assert.True(t, spent.Equal(decimal.RequireFromString("0.0002").Add(res.Cost)), spent.String())
}

func TestCancelledRequestWritesNothing(t *testing.T) {
	m := generator.NewMockLLM(generator.MockReply{Delay: time.Second})
	svc := newCache(t)
	ledger := budget.NewMemoryLedger(budget.Settings{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newPipeline(t, m, ledger, svc).Generate(ctx, designerRequest("mira"))
	assert.True(t, res.Empty())
	assert.Zero(t, svc.Stats().Puts)
	spent, err := ledger.Spent(context.Background(), "mira")
	require.NoError(t, err)
	assert.True(t, spent.IsZero())
}

func TestConcurrentRequests(t *testing.T) {
	p := newPipeline(t, generator.NewMockLLM(), budget.NewMemoryLedger(budget.Settings{}), newCache(t))
	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := founderRequest()
			req.UserID = fmt.Sprintf("user-%d", i)
			if i%2 == 0 {
				req = designerRequest(req.UserID)
			}
			results[i] = p.Generate(context.Background(), req)
		}(i)
	}
	wg.Wait()
	for i, r := range results {
		assert.False(t, r.Empty(), i)
		assert.Empty(t, cmp.Diff(allStages, r.Stages), i)
	}
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}
