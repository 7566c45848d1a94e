// Package coverage scores how well the static template set fits a user's
// background and field, and turns the score into a routing strategy.
package coverage

import (
	"fmt"
	"strings"

	"adaptive_task_generator/profile"
)

// Tier is the coarse coverage bucket.
type Tier string

const (
	TierWellCovered      Tier = "well_covered"
	TierPartiallyCovered Tier = "partially_covered"
	TierUncovered        Tier = "uncovered"
)

// Strategy is the routing decision.
type Strategy string

const (
	StrategyTemplates      Strategy = "templates"
	StrategyHybrid         Strategy = "hybrid"
	StrategyFullGeneration Strategy = "full_generation"
)

// Result is the coverage verdict for one request.
type Result struct {
	Score             int      `json:"score"`
	Tier              Tier     `json:"tier"`
	Strategy          Strategy `json:"strategy"`
	IsEdgeCase        bool     `json:"is_edge_case"`
	EdgeCaseReason    string   `json:"edge_case_reason,omitempty"`
	BackgroundCovered bool     `json:"background_covered"`
	FieldCovered      bool     `json:"field_covered"`
	Reasoning         string   `json:"reasoning"`
}

// Weights holds the scoring constants and routing thresholds.
type Weights struct {
	Background   int `mapstructure:"background" json:"background"`
	Field        int `mapstructure:"field" json:"field"`
	RichBonus    int `mapstructure:"rich_bonus" json:"rich_bonus"`
	EdgePenalty  int `mapstructure:"edge_penalty" json:"edge_penalty"`
	TemplatesMin int `mapstructure:"templates_min" json:"templates_min"`
	HybridMin    int `mapstructure:"hybrid_min" json:"hybrid_min"`
}

// DefaultWeights returns 50/40/10/-30 with the 80/40 thresholds.
func DefaultWeights() Weights {
	return Weights{Background: 50, Field: 40, RichBonus: 10, EdgePenalty: 30, TemplatesMin: 80, HybridMin: 40}
}

// EdgeCase is a background/field pairing templates serve poorly.
type EdgeCase struct {
	Background profile.Background
	Fields     []profile.FieldKey
	Reason     string
}

var (
	commonFields = []profile.FieldKey{
		profile.FieldCS, profile.FieldSoftwareEngineering, profile.FieldAI,
		profile.FieldML, profile.FieldDataScience, profile.FieldBusiness,
	}

	// DefaultSupported maps each supported background to the fields its templates cover.
	DefaultSupported = map[profile.Background][]profile.FieldKey{
		profile.BackgroundFounder:    commonFields,
		profile.BackgroundStudent:    commonFields,
		profile.BackgroundEngineer:   {profile.FieldCS, profile.FieldSoftwareEngineering, profile.FieldAI, profile.FieldML, profile.FieldDataScience},
		profile.BackgroundResearcher: {profile.FieldCS, profile.FieldAI, profile.FieldML, profile.FieldDataScience},
	}

	// DefaultEdgeCases are checked in order; the first match supplies the reason.
	DefaultEdgeCases = []EdgeCase{
		{profile.BackgroundDesigner, []profile.FieldKey{profile.FieldHCI}, "Designer→HCI needs portfolio-focused tasks"},
		{profile.BackgroundHealthcare, []profile.FieldKey{profile.FieldMedicalAI, profile.FieldAI, profile.FieldML, profile.FieldMedicine}, "Healthcare→Medical AI needs clinical context"},
		{profile.BackgroundTeacher, []profile.FieldKey{profile.FieldEdTech, profile.FieldEducation}, "Teacher→EdTech needs education context"},
		{profile.BackgroundLawyer, []profile.FieldKey{profile.FieldBioethics}, "Lawyer→Bioethics is a rare interdisciplinary move"},
		{profile.BackgroundCreative, []profile.FieldKey{profile.FieldCreativeTech, profile.FieldMusicTech}, "Creative→Creative Tech needs a portfolio"},
	}

	// richBackgrounds have a deep custom-rule catalogue.
	richBackgrounds = map[profile.Background]bool{profile.BackgroundFounder: true}
)

// Detector computes coverage. The zero value is not usable; use NewDetector.
type Detector struct {
	weights   Weights
	supported map[profile.Background][]profile.FieldKey
	edges     []EdgeCase
}

// Option customizes a Detector.
type Option func(*Detector)

// WithSupported overrides the supported background/field table.
func WithSupported(m map[profile.Background][]profile.FieldKey) Option {
	return func(d *Detector) { d.supported = m }
}

// WithEdgeCases overrides the edge-case registry.
func WithEdgeCases(e []EdgeCase) Option {
	return func(d *Detector) { d.edges = e }
}

// NewDetector builds a detector with the given weights.
func NewDetector(w Weights, opts ...Option) *Detector {
	d := &Detector{weights: w, supported: DefaultSupported, edges: DefaultEdgeCases}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Weights returns the detector's weights.
func (d *Detector) Weights() Weights { return d.weights }

// Detect scores the context. Deterministic.
func (d *Detector) Detect(c profile.Context) Result {
	bg := c.Background()
	if bg == "" {
		bg = profile.BackgroundUnknown
	}
	field := c.FieldKey()

	bgCovered := d.backgroundCovered(bg)
	fieldCovered := d.fieldCovered(bg, field)
	edge, reason := d.edgeCase(bg, field)

	score := 0
	if bgCovered {
		score += d.weights.Background
	}
	if fieldCovered {
		score += d.weights.Field
	}
	if richBackgrounds[bg] || c.Bool(profile.KeyHasStartup) {
		score += d.weights.RichBonus
	}
	if edge {
		score -= d.weights.EdgePenalty
	}
	score = clamp(score, 0, 100)

	res := Result{
		Score:             score,
		IsEdgeCase:        edge,
		EdgeCaseReason:    reason,
		BackgroundCovered: bgCovered,
		FieldCovered:      fieldCovered,
	}
	switch {
	case score >= d.weights.TemplatesMin:
		res.Tier, res.Strategy = TierWellCovered, StrategyTemplates
	case score >= d.weights.HybridMin:
		res.Tier, res.Strategy = TierPartiallyCovered, StrategyHybrid
	default:
		res.Tier, res.Strategy = TierUncovered, StrategyFullGeneration
	}
	// An edge case never goes to templates-only.
	if edge && res.Strategy == StrategyTemplates {
		res.Tier, res.Strategy = TierPartiallyCovered, StrategyHybrid
	}
	res.Reasoning = reasoning(bg, c.StringOr(profile.KeyField, string(field)), res)
	return res
}

func (d *Detector) backgroundCovered(bg profile.Background) bool {
	_, ok := d.supported[bg]
	return ok
}

// fieldCovered checks the background's own field list, or the union of
// all lists when the background itself is unsupported.
func (d *Detector) fieldCovered(bg profile.Background, field profile.FieldKey) bool {
	if field == "" {
		return false
	}
	if fields, ok := d.supported[bg]; ok {
		return containsField(fields, field)
	}
	for _, fields := range d.supported {
		if containsField(fields, field) {
			return true
		}
	}
	return false
}

func (d *Detector) edgeCase(bg profile.Background, field profile.FieldKey) (bool, string) {
	for _, e := range d.edges {
		if e.Background == bg && containsField(e.Fields, field) {
			return true, e.Reason
		}
	}
	return false, ""
}

func containsField(fields []profile.FieldKey, f profile.FieldKey) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}

func reasoning(bg profile.Background, field string, r Result) string {
	if field == "" {
		field = "unspecified"
	}
	parts := []string{
		fmt.Sprintf("background %q %s", bg, coveredWord(r.BackgroundCovered)),
		fmt.Sprintf("field %q %s", field, coveredWord(r.FieldCovered)),
	}
	if r.IsEdgeCase {
		parts = append(parts, "edge case: "+r.EdgeCaseReason)
	}
	parts = append(parts, fmt.Sprintf("score %d → %s", r.Score, r.Strategy))
	return strings.Join(parts, " | ")
}

func coveredWord(ok bool) string {
	if ok {
		return "covered by templates"
	}
	return "not covered by templates"
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
