// Package config loads pipeline settings from a JSON/YAML file, ATG_* env vars and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"adaptive_task_generator/budget"
	"adaptive_task_generator/coverage"
	"adaptive_task_generator/generator"
	"adaptive_task_generator/rank"
	"adaptive_task_generator/validate"
)

const DefaultPath = "config/config.json"

// LLMConfig 生成模块的模型配置。
type LLMConfig struct {
	Provider           string        `mapstructure:"provider"`
	Model              string        `mapstructure:"model"`
	APIKey             string        `mapstructure:"api_key"`
	BaseURL            string        `mapstructure:"base_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	PriceInputPerMTok  float64       `mapstructure:"price_input_per_mtok"`
	PriceOutputPerMTok float64       `mapstructure:"price_output_per_mtok"`
}

type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	Path    string        `mapstructure:"path"`
	TTL     time.Duration `mapstructure:"ttl"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type BudgetConfig struct {
	Backend      string        `mapstructure:"backend"`
	Path         string        `mapstructure:"path"`
	DefaultLimit float64       `mapstructure:"default_limit"`
	ResetEvery   time.Duration `mapstructure:"reset_every"`
}

type TemplatesConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

type PipelineConfig struct {
	KeepRegenerate bool `mapstructure:"keep_regenerate"`
	HorizonDays    int  `mapstructure:"horizon_days"`
	TargetCount    int  `mapstructure:"target_count"`
}

type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Budget     BudgetConfig     `mapstructure:"budget"`
	Coverage   coverage.Weights `mapstructure:"coverage"`
	Validator  validate.Config  `mapstructure:"validator"`
	Rank       rank.Config      `mapstructure:"rank"`
	Templates  TemplatesConfig  `mapstructure:"templates"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	ServerAddr string           `mapstructure:"server_addr"`

	// ServerTimeout bounds one HTTP plan request; zero derives it from the llm and cache timeouts.
	ServerTimeout time.Duration `mapstructure:"server_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "mock")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.price_input_per_mtok", 3.0)
	v.SetDefault("llm.price_output_per_mtok", 15.0)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.path", "data/cache.db")
	v.SetDefault("cache.ttl", 30*24*time.Hour)
	v.SetDefault("cache.timeout", 2*time.Second)

	v.SetDefault("budget.backend", "memory")
	v.SetDefault("budget.path", "data/budget.db")
	v.SetDefault("budget.default_limit", 1.0)
	v.SetDefault("budget.reset_every", 30*24*time.Hour)

	w := coverage.DefaultWeights()
	v.SetDefault("coverage.background", w.Background)
	v.SetDefault("coverage.field", w.Field)
	v.SetDefault("coverage.rich_bonus", w.RichBonus)
	v.SetDefault("coverage.edge_penalty", w.EdgePenalty)
	v.SetDefault("coverage.templates_min", w.TemplatesMin)
	v.SetDefault("coverage.hybrid_min", w.HybridMin)

	vc := validate.DefaultConfig()
	v.SetDefault("validator.points_per_check", vc.PointsPerCheck)
	v.SetDefault("validator.pass_min", vc.PassMin)
	v.SetDefault("validator.regenerate_min", vc.RegenerateMin)
	v.SetDefault("validator.timebox_min", vc.TimeboxMin)
	v.SetDefault("validator.timebox_max", vc.TimeboxMax)

	rc := rank.DefaultConfig()
	v.SetDefault("rank.min_tasks", rc.MinTasks)
	v.SetDefault("rank.max_tasks", rc.MaxTasks)
	v.SetDefault("rank.dedup_threshold", rc.DedupThreshold)

	v.SetDefault("templates.path", "")
	v.SetDefault("templates.watch", false)

	v.SetDefault("pipeline.keep_regenerate", false)
	v.SetDefault("pipeline.horizon_days", 90)
	v.SetDefault("pipeline.target_count", 15)

	v.SetDefault("server_addr", ":8080")
	v.SetDefault("server_timeout", 0)
}

// Load reads path if it exists; a missing file yields defaults plus env overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ATG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.LLM.APIKey = resolveAPIKey(cfg.LLM)
	return cfg, cfg.Validate()
}

// resolveAPIKey falls back to the provider's conventional env var.
func resolveAPIKey(c LLMConfig) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	envs := []string{"GENERATOR_API_KEY"}
	switch c.Provider {
	case "anthropic":
		envs = append(envs, "ANTHROPIC_API_KEY")
	case "openai", "deepseek":
		envs = append(envs, "OPENAI_API_KEY")
	case "gemini":
		envs = append(envs, "GEMINI_API_KEY")
	}
	for _, e := range envs {
		if v := os.Getenv(e); v != "" {
			return v
		}
	}
	return ""
}

func (c Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("cache.backend %q not supported", c.Cache.Backend)
	}
	switch c.Budget.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("budget.backend %q not supported", c.Budget.Backend)
	}
	if c.Coverage.HybridMin > c.Coverage.TemplatesMin {
		return errors.New("coverage.hybrid_min must not exceed coverage.templates_min")
	}
	if c.Rank.MinTasks > c.Rank.MaxTasks {
		return errors.New("rank.min_tasks must not exceed rank.max_tasks")
	}
	if c.Validator.RegenerateMin > c.Validator.PassMin {
		return errors.New("validator.regenerate_min must not exceed validator.pass_min")
	}
	return nil
}

// retryAllowance covers the pause before the one synthesis retry.
const retryAllowance = time.Second

// RequestTimeout is the deadline for one plan request. When derived it leaves
// room for a model call, its retry and a cache read and write.
func (c Config) RequestTimeout() time.Duration {
	if c.ServerTimeout > 0 {
		return c.ServerTimeout
	}
	return 2*c.LLM.Timeout + 2*c.Cache.Timeout + retryAllowance
}

// LLMSettings converts the llm section for provider constructors.
func (c Config) LLMSettings() generator.LLMSettings {
	return generator.LLMSettings{
		Provider: c.LLM.Provider,
		Model:    c.LLM.Model,
		APIKey:   c.LLM.APIKey,
		BaseURL:  c.LLM.BaseURL,
		Pricing: generator.Pricing{
			InputPerMTok:  decimal.NewFromFloat(c.LLM.PriceInputPerMTok),
			OutputPerMTok: decimal.NewFromFloat(c.LLM.PriceOutputPerMTok),
		},
	}
}

// BudgetSettings converts the budget section for ledger constructors.
func (c Config) BudgetSettings() budget.Settings {
	return budget.Settings{
		DefaultLimit: decimal.NewFromFloat(c.Budget.DefaultLimit),
		ResetEvery:   c.Budget.ResetEvery,
	}
}
