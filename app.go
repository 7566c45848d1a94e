package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"adaptive_task_generator/budget"
	"adaptive_task_generator/cache"
	"adaptive_task_generator/config"
	"adaptive_task_generator/coverage"
	"adaptive_task_generator/generator"
	"adaptive_task_generator/pipeline"
	"adaptive_task_generator/rank"
	"adaptive_task_generator/rules"
	"adaptive_task_generator/templates"
)

// app is the wired process: one pipeline plus the shared cache and ledger.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *templates.Registry
	cache    *cache.Service
	ledger   budget.Ledger
	pipeline *pipeline.Pipeline
	closers  []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	built := false
	defer func() {
		if !built {
			_ = a.Close()
		}
	}()

	set, err := loadTemplates(cfg.Templates.Path)
	if err != nil {
		return nil, err
	}
	a.registry = templates.NewRegistry(set, logger)

	store, err := buildStore(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if c, ok := store.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}
	a.cache, err = cache.NewService(store, a.registry,
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithTimeout(cfg.Cache.Timeout),
		cache.WithPromptVersion(generator.PromptVersion),
		cache.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	// 模板集版本变化后，旧版本缓存全部失效。
	a.registry.OnChange(func(oldVersion, newVersion string) {
		if oldVersion == "" {
			return
		}
		n, err := a.cache.InvalidateVersion(context.Background(), oldVersion)
		if err != nil {
			logger.Warn("cache invalidation failed", zap.String("version", oldVersion), zap.Error(err))
			return
		}
		logger.Info("cache invalidated", zap.String("old_version", oldVersion), zap.String("new_version", newVersion), zap.Int("removed", n))
	})

	a.ledger, err = buildLedger(cfg.Budget)
	if err != nil {
		return nil, err
	}
	if c, ok := a.ledger.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	llm, err := buildLLM(ctx, cfg)
	if err != nil {
		return nil, err
	}
	synth, err := generator.NewSynthesizer(llm, a.ledger,
		generator.WithLogger(logger),
		generator.WithTimeout(cfg.LLM.Timeout),
	)
	if err != nil {
		return nil, err
	}

	a.pipeline, err = pipeline.New(pipeline.Deps{
		Detector:    coverage.NewDetector(cfg.Coverage),
		Selector:    templates.NewSelector(a.registry),
		Rules:       rules.Default(logger),
		Synthesizer: synth,
		Cache:       a.cache,
		Ranker:      rank.New(cfg.Rank, logger),
	},
		pipeline.WithLogger(logger),
		pipeline.WithValidator(cfg.Validator),
		pipeline.WithKeepRegenerate(cfg.Pipeline.KeepRegenerate),
		pipeline.WithHorizonDays(cfg.Pipeline.HorizonDays),
	)
	if err != nil {
		return nil, err
	}
	built = true
	return a, nil
}

func loadTemplates(path string) (*templates.Set, error) {
	if path == "" {
		return templates.DefaultSet()
	}
	return templates.LoadFile(path)
}

func buildStore(c config.CacheConfig) (cache.Store, error) {
	switch c.Backend {
	case "sqlite":
		return cache.NewSQLiteStore(c.Path)
	case "memory", "":
		return cache.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("cache backend %s not supported", c.Backend)
	}
}

func buildLedger(c config.BudgetConfig) (budget.Ledger, error) {
	s := config.Config{Budget: c}.BudgetSettings()
	switch c.Backend {
	case "sqlite":
		return budget.NewSQLiteLedger(c.Path, s)
	case "memory", "":
		return budget.NewMemoryLedger(s), nil
	default:
		return nil, fmt.Errorf("budget backend %s not supported", c.Backend)
	}
}

func buildLLM(ctx context.Context, cfg config.Config) (generator.LLMClient, error) {
	s := cfg.LLMSettings()
	switch cfg.LLM.Provider {
	case "mock":
		m := generator.NewMockLLM()
		m.Pricing = s.Pricing
		return m, nil
	case "openai":
		return generator.NewOpenAILLMFromConfig(&s)
	case "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，需填写 base_url（例如官方/网关地址）。
		if s.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(&s)
	case "anthropic":
		return generator.NewAnthropicLLMFromConfig(&s)
	case "gemini":
		return generator.NewGenAILLMFromConfig(ctx, &s)
	case "":
		return nil, fmt.Errorf("llm config missing; please set llm.provider/model/api_key in config")
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}
