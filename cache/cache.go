// Package cache shares generated task lists across users with similar profiles.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"adaptive_task_generator/profile"
	"adaptive_task_generator/task"
	"adaptive_task_generator/telemetry"
)

const (
	keyPrefix      = "task_cache:"
	DefaultTTL     = 30 * 24 * time.Hour
	defaultTimeout = 2 * time.Second
)

// GenerationType separates cached outputs of different generators.
type GenerationType string

const (
	GenUnique GenerationType = "unique"
	GenFull   GenerationType = "full"
)

// Entry is the stored value; Tasks are in placeholder form.
type Entry struct {
	Tasks              []task.Task     `json:"tasks"`
	CachedAt           time.Time       `json:"cached_at"`
	GenerationCost     decimal.Decimal `json:"generation_cost"`
	TemplateSetVersion string          `json:"template_set_version"`
	PromptVersion      string          `json:"prompt_version,omitempty"`
	GenerationType     GenerationType  `json:"generation_type"`
	ProfileHash        string          `json:"profile_hash"`
}

// Versioner reports the active template set version.
type Versioner interface {
	Version() string
}

// Stats counts service activity since start.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Puts   int64 `json:"puts"`
	Errors int64 `json:"errors"`
}

// hashFlags are the boolean context flags that shape generated output.
var hashFlags = []string{
	profile.KeyHasStartup, profile.KeyHasWork, profile.KeyHasResearch, profile.KeyHasAchievements,
	profile.KeyGPABelowAverage, profile.KeyGPANeedsCompensation, profile.KeyHasWarmIntros,
	profile.KeyHasLimitations, profile.KeyScoreBelowTarget,
}

// ProfileHash is a sha256 over the reduced projection of c. Names and numbers
// are excluded so users differing only in proper nouns share entries.
func ProfileHash(c profile.Context) string {
	proj := map[string]any{
		"background": c.String(profile.KeyBackground),
		"field_key":  c.String(profile.KeyFieldKey),
		"category":   c.String(profile.KeyCategory),
	}
	flags := map[string]bool{}
	for _, f := range hashFlags {
		flags[f] = c.Bool(f)
	}
	for _, t := range profile.Tests {
		flags[profile.PrepNeededKey(t)] = c.Bool(profile.PrepNeededKey(t))
	}
	proj["flags"] = flags
	// map keys marshal sorted, so the encoding is canonical
	raw, _ := json.Marshal(proj)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Key builds task_cache:<version>:<generation_type>:<hash>. The service passes
// "<template version>:<prompt version>" as version when a prompt version is set.
func Key(version string, gen GenerationType, hash string) string {
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, version, gen, hash)
}

type Service struct {
	store   Store
	version Versioner
	prompt  string
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time

	hits, misses, puts, errs atomic.Int64
	metrics                  struct{ hits, misses metric.Int64Counter }
}

type Option func(*Service)

func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithTimeout bounds each store operation.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithPromptVersion scopes entries to one prompt revision.
func WithPromptVersion(v string) Option {
	return func(s *Service) { s.prompt = strings.TrimSpace(v) }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("cache")
		}
	}
}

func NewService(store Store, version Versioner, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if version == nil {
		return nil, fmt.Errorf("template version source is required")
	}
	s := &Service{
		store:   store,
		version: version,
		ttl:     DefaultTTL,
		timeout: defaultTimeout,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	m := telemetry.Meter("adaptive_task_generator/cache")
	s.metrics.hits, _ = m.Int64Counter("atg.cache.hits", metric.WithDescription("Task cache hits"))
	s.metrics.misses, _ = m.Int64Counter("atg.cache.misses", metric.WithDescription("Task cache misses"))
	return s, nil
}

func (s *Service) key(version string, gen GenerationType, hash string) string {
	if s.prompt == "" {
		return Key(version, gen, hash)
	}
	return Key(version+":"+s.prompt, gen, hash)
}

// Get returns personalized cached tasks. Store failures count as a miss.
func (s *Service) Get(ctx context.Context, gen GenerationType, c profile.Context) ([]task.Task, bool) {
	version := s.version.Version()
	hash := ProfileHash(c)
	key := s.key(version, gen, hash)
	log := s.logger.With(zap.String("generation_type", string(gen)), zap.String("hash", hash[:8]))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.errs.Add(1)
		log.Warn("cache get failed", zap.Error(err))
		s.miss(ctx, gen)
		return nil, false
	}
	if !ok {
		s.miss(ctx, gen)
		log.Debug("cache miss")
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil || e.TemplateSetVersion != version || e.PromptVersion != s.prompt || len(e.Tasks) == 0 {
		s.errs.Add(1)
		log.Warn("cache entry unusable", zap.Error(err))
		s.miss(ctx, gen)
		return nil, false
	}
	s.hits.Add(1)
	if s.metrics.hits != nil {
		s.metrics.hits.Add(ctx, 1, metric.WithAttributes(attribute.String("atg.cache.type", string(gen))))
	}
	log.Debug("cache hit", zap.Int("tasks", len(e.Tasks)), zap.String("saved", e.GenerationCost.String()))
	return PersonalizeTasks(e.Tasks, c), true
}

func (s *Service) miss(ctx context.Context, gen GenerationType) {
	s.misses.Add(1)
	if s.metrics.misses != nil {
		s.metrics.misses.Add(ctx, 1, metric.WithAttributes(attribute.String("atg.cache.type", string(gen))))
	}
}

// Put stores the de-personalized form of tasks. Last write wins.
func (s *Service) Put(ctx context.Context, gen GenerationType, c profile.Context, tasks []task.Task, cost decimal.Decimal) error {
	if len(tasks) == 0 {
		return nil
	}
	version := s.version.Version()
	hash := ProfileHash(c)
	e := Entry{
		Tasks:              DepersonalizeTasks(tasks, c),
		CachedAt:           s.now().UTC(),
		GenerationCost:     cost,
		TemplateSetVersion: version,
		PromptVersion:      s.prompt,
		GenerationType:     gen,
		ProfileHash:        hash,
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Put(ctx, s.key(version, gen, hash), raw, s.ttl); err != nil {
		s.errs.Add(1)
		return fmt.Errorf("cache put: %w", err)
	}
	s.puts.Add(1)
	s.logger.Debug("cached tasks",
		zap.String("generation_type", string(gen)),
		zap.Int("tasks", len(tasks)),
		zap.String("cost", cost.String()),
	)
	return nil
}

// InvalidateVersion drops every entry written under version.
func (s *Service) InvalidateVersion(ctx context.Context, version string) (int, error) {
	if strings.TrimSpace(version) == "" {
		return 0, fmt.Errorf("version is required")
	}
	n, err := s.store.Invalidate(ctx, keyPrefix+version+":")
	if err == nil {
		s.logger.Info("cache invalidated", zap.String("version", version), zap.Int("entries", n))
	}
	return n, err
}

// InvalidateAll drops every task cache entry.
func (s *Service) InvalidateAll(ctx context.Context) (int, error) {
	n, err := s.store.Invalidate(ctx, keyPrefix)
	if err == nil {
		s.logger.Info("cache cleared", zap.Int("entries", n))
	}
	return n, err
}

func (s *Service) Stats() Stats {
	return Stats{Hits: s.hits.Load(), Misses: s.misses.Load(), Puts: s.puts.Load(), Errors: s.errs.Load()}
}

// StaticVersion is a fixed Versioner.
type StaticVersion string

func (v StaticVersion) Version() string { return string(v) }
