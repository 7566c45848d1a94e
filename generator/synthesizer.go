package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v4"
	openai "github.com/openai/openai-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"adaptive_task_generator/budget"
	"adaptive_task_generator/profile"
	"adaptive_task_generator/task"
	"adaptive_task_generator/telemetry"
)

const (
	defaultCallTimeout = 60 * time.Second
	scopeName          = "adaptive_task_generator/generator"
)

// SynthesisRequest describes one logical generation request.
type SynthesisRequest struct {
	UserID      string
	Mode        Mode
	Context     profile.Context
	Existing    []task.Task
	HorizonDays int
	Count       int
	EdgeCase    bool
}

// Outcome is what a synthesis produced. Err is diagnostic only.
type Outcome struct {
	Tasks             []task.Task
	Cost              decimal.Decimal
	BudgetExceeded    bool
	BudgetApproaching bool
	Attempts          int
	Err               error
}

// Synthesizer 负责调用模型生成任务，并处理重试、超时与预算记账。
type Synthesizer struct {
	llm        LLMClient
	ledger     budget.Ledger
	logger     *zap.Logger
	timeout    time.Duration
	retryDelay time.Duration
}

type Option func(*Synthesizer)

func WithLogger(l *zap.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l.Named("synthesizer")
		}
	}
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetryDelay sets the pause before the strict-format retry.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Synthesizer) { s.retryDelay = d }
}

// NewSynthesizer ledger may be nil, in which case nothing is charged.
func NewSynthesizer(llm LLMClient, ledger budget.Ledger, opts ...Option) (*Synthesizer, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	s := &Synthesizer{
		llm:        llm,
		ledger:     ledger,
		logger:     zap.NewNop(),
		timeout:    defaultCallTimeout,
		retryDelay: 200 * time.Millisecond,
	}
	for _, o := range opts {
		o(s)
	}
	aiMetricsOnce.Do(initAIMetrics)
	return s, nil
}

var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
	parseErrors  metric.Int64Counter
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter(scopeName)
	aiMetrics.inputTokens, _ = m.Int64Counter("atg.ai.input_tokens",
		metric.WithDescription("Model input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("atg.ai.output_tokens",
		metric.WithDescription("Model output tokens generated"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("atg.ai.request.duration",
		metric.WithDescription("Model request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	aiMetrics.parseErrors, _ = m.Int64Counter("atg.ai.parse_errors",
		metric.WithDescription("Model responses that could not be parsed into tasks"),
	)
}

// Synthesize never returns an error; failures leave Outcome.Tasks empty.
func (s *Synthesizer) Synthesize(ctx context.Context, req SynthesisRequest) Outcome {
	mode := req.Mode
	if mode == "" {
		mode = ModeUnique
	}
	ctx, span := telemetry.Tracer(scopeName).Start(ctx, "synthesizer.synthesize")
	defer span.End()
	span.SetAttributes(attribute.String("atg.ai.mode", string(mode)))

	log := s.logger.With(zap.String("user_id", req.UserID), zap.String("mode", string(mode)))
	var out Outcome
	s.checkBudget(ctx, req.UserID, log, &out)

	in := PromptInput{
		Context:     req.Context,
		Existing:    req.Existing,
		HorizonDays: req.HorizonDays,
		Count:       req.Count,
		EdgeCase:    req.EdgeCase,
	}
	base := BuildUniquePrompt(in)
	if mode == ModeFull {
		base = BuildFullPrompt(in)
	}

	op := func() error {
		r := base
		if out.Attempts > 0 {
			r = Strict(base)
		}
		out.Attempts++

		comp, err := s.call(ctx, r)
		if err != nil {
			if isTransient(err) && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		tasks, err := ParseTasks(comp.Text, mode)
		if err != nil {
			if aiMetrics.parseErrors != nil {
				aiMetrics.parseErrors.Add(ctx, 1)
			}
			log.Warn("unparseable model response", zap.Int("attempt", out.Attempts), zap.Error(err))
			return err
		}
		category := task.Category(req.Context.String(profile.KeyCategory))
		for i := range tasks {
			tasks[i].Source = task.SourceUniqueGenerated
			if tasks[i].Category == "" {
				tasks[i].Category = category
			}
		}
		out.Tasks = tasks
		out.Cost = comp.Cost
		s.charge(ctx, req.UserID, comp.Cost, log)
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryDelay), 1), ctx)
	if err := backoff.Retry(op, b); err != nil {
		out.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("synthesis failed", zap.Int("attempts", out.Attempts), zap.Error(err))
		return out
	}
	span.SetAttributes(
		attribute.Int("atg.ai.attempts", out.Attempts),
		attribute.Int("atg.ai.tasks", len(out.Tasks)),
	)
	log.Debug("synthesis done", zap.Int("tasks", len(out.Tasks)), zap.String("cost", out.Cost.String()))
	return out
}

// call runs one bounded model call and records usage.
func (s *Synthesizer) call(ctx context.Context, r Request) (Completion, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	t0 := time.Now()
	comp, err := s.llm.Complete(callCtx, r)
	ms := float64(time.Since(t0).Milliseconds())
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return Completion{}, fmt.Errorf("model call timed out after %s: %w", s.timeout, err)
		}
		return Completion{}, err
	}
	if aiMetrics.inputTokens != nil {
		modelAttr := metric.WithAttributes(attribute.String("atg.ai.model", comp.Model))
		aiMetrics.inputTokens.Add(ctx, comp.InputTokens, modelAttr)
		aiMetrics.outputTokens.Add(ctx, comp.OutputTokens, modelAttr)
		aiMetrics.duration.Record(ctx, ms, modelAttr)
	}
	return comp, nil
}

// checkBudget is a soft limit: it flags the outcome but never blocks the call.
func (s *Synthesizer) checkBudget(ctx context.Context, userID string, log *zap.Logger, out *Outcome) {
	if s.ledger == nil || userID == "" {
		return
	}
	st, err := budget.Check(ctx, s.ledger, userID)
	if err != nil {
		log.Warn("budget check failed", zap.Error(err))
		return
	}
	switch {
	case st.Exceeded:
		out.BudgetExceeded = true
		log.Warn("budget exceeded", zap.String("spent", st.Spent.String()), zap.String("limit", st.Limit.String()))
	case st.Approaching:
		out.BudgetApproaching = true
		log.Warn("budget approaching limit", zap.String("spent", st.Spent.String()), zap.String("limit", st.Limit.String()))
	}
}

func (s *Synthesizer) charge(ctx context.Context, userID string, cost decimal.Decimal, log *zap.Logger) {
	if s.ledger == nil || userID == "" || cost.IsZero() {
		return
	}
	if _, err := s.ledger.IncrementSpend(ctx, userID, cost); err != nil {
		log.Warn("budget increment failed", zap.Error(err))
	}
}

// isTransient reports provider-side throttling or 5xx; timeouts and cancellation are final.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var aerr *anthropic.Error
	if errors.As(err, &aerr) {
		return aerr.StatusCode == 429 || aerr.StatusCode >= 500
	}
	var oerr *openai.Error
	if errors.As(err, &oerr) {
		return oerr.StatusCode == 429 || oerr.StatusCode >= 500
	}
	var gerr genai.APIError
	if errors.As(err, &gerr) {
		return gerr.Code == 429 || gerr.Code >= 500
	}
	var gperr *genai.APIError
	if errors.As(err, &gperr) {
		return gperr.Code == 429 || gperr.Code >= 500
	}
	return false
}
