// Package pipeline runs one generation request through extraction, coverage
// routing, multi-source generation, ranking and validation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"adaptive_task_generator/cache"
	"adaptive_task_generator/coverage"
	"adaptive_task_generator/generator"
	"adaptive_task_generator/profile"
	"adaptive_task_generator/rank"
	"adaptive_task_generator/rules"
	"adaptive_task_generator/task"
	"adaptive_task_generator/telemetry"
	"adaptive_task_generator/templates"
	"adaptive_task_generator/validate"
)

const scopeName = "adaptive_task_generator/pipeline"

// Stage names the request state machine.
type Stage string

const (
	StageExtract        Stage = "EXTRACT"
	StageDetectCoverage Stage = "DETECT_COVERAGE"
	StageGenerate       Stage = "GENERATE"
	StageMergeRankDedup Stage = "MERGE_RANK_DEDUP"
	StageValidateFilter Stage = "VALIDATE_FILTER"
	StageDone           Stage = "DONE"
)

// Request is one user's generation request.
type Request struct {
	UserID      string          `json:"user_id"`
	Profile     profile.Profile `json:"profile"`
	Goal        profile.Goal    `json:"goal"`
	HorizonDays int             `json:"horizon_days,omitempty"`
	TargetCount int             `json:"target_count,omitempty"`
}

// Result is the terminal state of a request. An empty task list is valid.
type Result struct {
	Tasks             []task.Task      `json:"tasks"`
	Coverage          coverage.Result  `json:"coverage"`
	Stages            []Stage          `json:"stages"`
	Warnings          []string         `json:"warnings,omitempty"`
	BudgetExceeded    bool             `json:"budget_exceeded"`
	BudgetApproaching bool             `json:"budget_approaching"`
	Rejected          int              `json:"rejected"`
	Regenerate        int              `json:"regenerate"`
	Cost              decimal.Decimal  `json:"cost"`
	Sources           map[string]int   `json:"sources,omitempty"`
	Validation        validate.Summary `json:"validation"`
}

// Empty reports whether every source failed or was filtered out.
func (r Result) Empty() bool { return len(r.Tasks) == 0 }

// Deps are the injected components. Cache may be nil.
type Deps struct {
	Detector    *coverage.Detector
	Selector    *templates.Selector
	Rules       *rules.Registry
	Synthesizer *generator.Synthesizer
	Cache       *cache.Service
	Ranker      *rank.Ranker
}

// Pipeline is safe for concurrent use; requests share only the cache and budget ledger.
type Pipeline struct {
	deps           Deps
	validator      validate.Config
	keepRegenerate bool
	horizonDays    int
	logger         *zap.Logger
}

type Option func(*Pipeline)

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l.Named("pipeline")
		}
	}
}

func WithValidator(cfg validate.Config) Option {
	return func(p *Pipeline) { p.validator = cfg }
}

// WithKeepRegenerate keeps regenerate-verdict tasks instead of dropping them.
func WithKeepRegenerate(keep bool) Option {
	return func(p *Pipeline) { p.keepRegenerate = keep }
}

// WithHorizonDays sets the default horizon for requests that leave it zero.
func WithHorizonDays(d int) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.horizonDays = d
		}
	}
}

func New(deps Deps, opts ...Option) (*Pipeline, error) {
	switch {
	case deps.Detector == nil:
		return nil, errors.New("coverage detector is required")
	case deps.Selector == nil:
		return nil, errors.New("template selector is required")
	case deps.Rules == nil:
		return nil, errors.New("rule registry is required")
	case deps.Synthesizer == nil:
		return nil, errors.New("synthesizer is required")
	case deps.Ranker == nil:
		return nil, errors.New("ranker is required")
	}
	p := &Pipeline{
		deps:        deps,
		validator:   validate.DefaultConfig(),
		horizonDays: 90,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// run is the per-request state.
type run struct {
	req    Request
	ctx    profile.Context
	target int
	log    *zap.Logger
	span   trace.Span
	res    Result

	templated []task.Task
	custom    []task.Task
	generated []task.Task
}

func (r *run) enter(s Stage) {
	r.res.Stages = append(r.res.Stages, s)
	r.span.AddEvent(string(s))
	r.log.Debug("stage", zap.String("stage", string(s)))
}

func (r *run) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.res.Warnings = append(r.res.Warnings, msg)
	r.log.Warn(msg)
}

func (r *run) warnAll(msgs []string) {
	for _, m := range msgs {
		r.warn("%s", m)
	}
}

func (r *run) absorb(o generator.Outcome, what string) {
	r.res.Cost = r.res.Cost.Add(o.Cost)
	if o.BudgetExceeded && !r.res.BudgetExceeded {
		r.res.BudgetExceeded = true
		r.warn("budget exceeded for user %s", r.req.UserID)
	}
	if o.BudgetApproaching && !r.res.BudgetApproaching {
		r.res.BudgetApproaching = true
		r.warn("budget approaching limit for user %s", r.req.UserID)
	}
	if o.Err != nil {
		r.warn("%s generation failed: %v", what, o.Err)
	}
}

// Generate never fails for bad user data; all source errors become warnings.
func (p *Pipeline) Generate(ctx context.Context, req Request) Result {
	start := time.Now()
	ctx, span := telemetry.Tracer(scopeName).Start(ctx, "pipeline.generate")
	defer span.End()

	r := &run{req: req, span: span, log: p.logger.With(zap.String("user_id", req.UserID))}
	if r.req.HorizonDays <= 0 {
		r.req.HorizonDays = p.horizonDays
	}
	r.target = p.deps.Ranker.Target(req.TargetCount)

	r.enter(StageExtract)
	r.ctx = profile.Extract(req.Profile, req.Goal)

	r.enter(StageDetectCoverage)
	r.res.Coverage = p.deps.Detector.Detect(r.ctx)
	cov := r.res.Coverage
	r.log = r.log.With(zap.String("strategy", string(cov.Strategy)))
	r.log.Info("coverage detected",
		zap.Int("score", cov.Score),
		zap.String("tier", string(cov.Tier)),
		zap.Bool("edge_case", cov.IsEdgeCase),
	)
	span.SetAttributes(
		attribute.String("atg.strategy", string(cov.Strategy)),
		attribute.Int("atg.coverage.score", cov.Score),
		attribute.Bool("atg.coverage.edge_case", cov.IsEdgeCase),
	)

	r.enter(StageGenerate)
	p.generate(ctx, r)

	r.enter(StageMergeRankDedup)
	merged := make([]task.Task, 0, len(r.templated)+len(r.custom)+len(r.generated))
	merged = append(merged, r.templated...)
	merged = append(merged, r.custom...)
	merged = append(merged, r.generated...)
	ranked := p.deps.Ranker.Rank(r.ctx, merged, r.target)

	r.enter(StageValidateFilter)
	p.filter(r, ranked)

	r.enter(StageDone)
	r.res.Sources = countSources(r.res.Tasks)
	span.SetAttributes(
		attribute.Int("atg.tasks", len(r.res.Tasks)),
		attribute.Int("atg.rejected", r.res.Rejected),
	)
	r.log.Info("plan generated",
		zap.Int("tasks", len(r.res.Tasks)),
		zap.Int("rejected", r.res.Rejected),
		zap.Int("regenerate", r.res.Regenerate),
		zap.String("cost", r.res.Cost.String()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return r.res
}

func (p *Pipeline) generate(ctx context.Context, r *run) {
	ctx, span := telemetry.Tracer(scopeName).Start(ctx, "pipeline.stage.generate")
	defer span.End()

	// rules are pure and cheap; hybrid and full prompts list them as existing work.
	r.custom = p.deps.Rules.Generate(r.ctx)

	switch r.res.Coverage.Strategy {
	case coverage.StrategyTemplates:
		tpl, warns := p.fromTemplates(r)
		r.templated = tpl
		r.warnAll(warns)
		have := len(r.templated) + len(r.custom)
		if have >= r.target {
			return
		}
		existing := append(task.CloneAll(r.templated), r.custom...)
		r.generated = p.synthesize(ctx, r, generator.ModeUnique, cache.GenUnique, existing, r.target-have)

	case coverage.StrategyHybrid:
		var (
			tpl, gen []task.Task
			warns    []string
			out      *generator.Outcome
		)
		existing := task.CloneAll(r.custom)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			tpl, warns = p.fromTemplates(r)
			return nil
		})
		g.Go(func() error {
			gen, out = p.synthesizeRaw(gctx, r, generator.ModeFull, cache.GenFull, existing, r.target)
			return nil
		})
		_ = g.Wait()
		r.templated, r.generated = tpl, gen
		r.warnAll(warns)
		if out != nil {
			r.absorb(*out, string(generator.ModeFull))
		}

	default:
		r.generated = p.synthesize(ctx, r, generator.ModeFull, cache.GenFull, task.CloneAll(r.custom), r.target)
	}
}

// fromTemplates selects one template per milestone and renders it. It only
// reads run state, so it may run beside the synthesizer.
func (p *Pipeline) fromTemplates(r *run) ([]task.Task, []string) {
	category := task.Category(r.ctx.String(profile.KeyCategory))
	tier := profile.BudgetTier(r.ctx.String(profile.KeyBudgetTier))
	picked, err := p.deps.Selector.SelectN(r.ctx, category, tier, r.target)
	if err != nil {
		if errors.Is(err, templates.ErrNoTemplate) {
			return nil, []string{fmt.Sprintf("no eligible template for %s", category)}
		}
		return nil, []string{fmt.Sprintf("template selection failed: %v", err)}
	}
	var (
		out   []task.Task
		warns []string
	)
	for _, t := range picked {
		tk, err := templates.Render(t, r.ctx)
		if err != nil {
			var re *templates.RenderError
			if errors.As(err, &re) {
				r.log.Debug("template skipped", zap.String("template_id", re.TemplateID), zap.Error(err))
				continue
			}
			warns = append(warns, fmt.Sprintf("render %s: %v", t.ID, err))
			continue
		}
		out = append(out, tk)
	}
	return out, warns
}

// synthesize checks the cache, then calls the model and stores a fresh result.
func (p *Pipeline) synthesize(ctx context.Context, r *run, mode generator.Mode, gen cache.GenerationType, existing []task.Task, count int) []task.Task {
	tasks, out := p.synthesizeRaw(ctx, r, mode, gen, existing, count)
	if out != nil {
		r.absorb(*out, string(mode))
	}
	return tasks
}

// synthesizeRaw only reads run state; a nil outcome means a cache hit.
func (p *Pipeline) synthesizeRaw(ctx context.Context, r *run, mode generator.Mode, gen cache.GenerationType, existing []task.Task, count int) ([]task.Task, *generator.Outcome) {
	if p.deps.Cache != nil {
		if hit, ok := p.deps.Cache.Get(ctx, gen, r.ctx); ok {
			r.log.Info("cache hit", zap.String("generation_type", string(gen)), zap.Int("tasks", len(hit)))
			return hit, nil
		}
	}
	out := p.deps.Synthesizer.Synthesize(ctx, generator.SynthesisRequest{
		UserID:      r.req.UserID,
		Mode:        mode,
		Context:     r.ctx,
		Existing:    existing,
		HorizonDays: r.req.HorizonDays,
		Count:       count,
		EdgeCase:    r.res.Coverage.IsEdgeCase,
	})
	if out.Err == nil && len(out.Tasks) > 0 && p.deps.Cache != nil && ctx.Err() == nil {
		if err := p.deps.Cache.Put(ctx, gen, r.ctx, out.Tasks, out.Cost); err != nil {
			r.log.Warn("cache put failed", zap.Error(err))
		}
	}
	return out.Tasks, &out
}

// filter drops rejected tasks and, unless kept, regenerate-verdict tasks.
func (p *Pipeline) filter(r *run, ranked []task.Task) {
	summary := validate.New(r.ctx, p.validator).Batch(ranked)
	r.res.Validation = summary
	r.res.Tasks = make([]task.Task, 0, len(ranked))
	for i, vr := range summary.Results {
		switch vr.Verdict {
		case validate.VerdictReject:
			r.res.Rejected++
			r.log.Debug("task rejected", zap.String("title", ranked[i].Title), zap.Int("score", vr.Score))
			continue
		case validate.VerdictRegenerate:
			r.res.Regenerate++
			if !p.keepRegenerate {
				continue
			}
		}
		r.res.Tasks = append(r.res.Tasks, ranked[i])
	}
}

func countSources(ts []task.Task) map[string]int {
	if len(ts) == 0 {
		return nil
	}
	m := map[string]int{}
	for _, t := range ts {
		m[string(t.Source)]++
	}
	return m
}
