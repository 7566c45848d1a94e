// Package rank deduplicates, scores and orders candidate tasks.
package rank

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"adaptive_task_generator/profile"
	"adaptive_task_generator/task"
)

// Config bounds the final list.
type Config struct {
	MinTasks       int     `mapstructure:"min_tasks" json:"min_tasks"`
	MaxTasks       int     `mapstructure:"max_tasks" json:"max_tasks"`
	DedupThreshold float64 `mapstructure:"dedup_threshold" json:"dedup_threshold"`
}

func DefaultConfig() Config {
	return Config{MinTasks: 12, MaxTasks: 18, DedupThreshold: 0.8}
}

// Score weights.
const (
	bonusUnique      = 25
	bonusCustom      = 20
	bonusTemplate    = 5
	bonusFounder     = 15
	bonusGPA         = 15
	bonusHighPrio    = 10
	bonusEssay       = 10
	highPriorityFrom = 4
)

type Ranker struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Ranker {
	d := DefaultConfig()
	if cfg.MinTasks <= 0 {
		cfg.MinTasks = d.MinTasks
	}
	if cfg.MaxTasks < cfg.MinTasks {
		cfg.MaxTasks = max(d.MaxTasks, cfg.MinTasks)
	}
	if cfg.DedupThreshold <= 0 || cfg.DedupThreshold > 1 {
		cfg.DedupThreshold = d.DedupThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{cfg: cfg, logger: logger.Named("ranker")}
}

// Target clamps a requested count to the configured bounds; zero means MaxTasks.
func (r *Ranker) Target(n int) int {
	if n <= 0 {
		return r.cfg.MaxTasks
	}
	return min(max(n, r.cfg.MinTasks), r.cfg.MaxTasks)
}

// Rank returns new task values; the input slice is left untouched.
func (r *Ranker) Rank(c profile.Context, tasks []task.Task, target int) []task.Task {
	deduped := Dedup(tasks, r.cfg.DedupThreshold)
	for i := range deduped {
		deduped[i].PersonalizationScore = Score(c, deduped[i])
	}
	filtered := SmartFilter(c, deduped)

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.PersonalizationScore != b.PersonalizationScore {
			return a.PersonalizationScore > b.PersonalizationScore
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Source.Priority() > b.Source.Priority()
	})

	n := r.Target(target)
	if len(filtered) > n {
		filtered = filtered[:n]
	}
	r.logger.Debug("ranked",
		zap.Int("input", len(tasks)),
		zap.Int("deduped", len(deduped)),
		zap.Int("output", len(filtered)),
	)
	return filtered
}

// Score computes the personalization score from the title and context flags.
func Score(c profile.Context, t task.Task) int {
	title := strings.ToLower(t.Title)
	s := t.RuleBonus
	switch t.Source {
	case task.SourceUniqueGenerated:
		s += bonusUnique
	case task.SourceCustom:
		s += bonusCustom
	case task.SourceTemplate:
		s += bonusTemplate
	}
	if c.Bool(profile.KeyHasStartup) {
		kws := []string{"startup", "founder", "built", "users"}
		if n := strings.ToLower(c.String(profile.KeyStartupName)); n != "" {
			kws = append(kws, n)
		}
		if containsAny(title, kws...) {
			s += bonusFounder
		}
	}
	if c.Bool(profile.KeyGPANeedsCompensation) && containsAny(title, "gpa", "optional essay", "academic context") {
		s += bonusGPA
	}
	if t.Priority >= highPriorityFrom {
		s += bonusHighPrio
	}
	if containsAny(title, "essay", "sop", "statement", "personal") {
		s += bonusEssay
	}
	return s
}

// SmartFilter drops tasks the context makes redundant.
func SmartFilter(c profile.Context, ts []task.Task) []task.Task {
	customLinkedIn := false
	if c.Bool(profile.KeyHasStartup) {
		for _, t := range ts {
			if t.Source == task.SourceCustom && strings.Contains(strings.ToLower(t.Title), "linkedin") {
				customLinkedIn = true
				break
			}
		}
	}
	out := ts[:0:0]
	for _, t := range ts {
		title := strings.ToLower(t.Title)
		if testAlreadyMet(c, title) {
			continue
		}
		if customLinkedIn && t.Source != task.SourceCustom && strings.Contains(title, "linkedin") {
			continue
		}
		out = append(out, t)
	}
	return out
}

func testAlreadyMet(c profile.Context, title string) bool {
	if !strings.Contains(title, "prep") {
		return false
	}
	for _, test := range profile.Tests {
		if strings.Contains(title, test) && c.Bool(profile.MeetsTargetKey(test)) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
