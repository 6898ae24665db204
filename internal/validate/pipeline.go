package validate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyAnswer is returned when Evaluate is called without answer text.
	ErrEmptyAnswer = errors.New("answer text is required")
	// ErrInvalidBundle is returned for malformed context bundles.
	ErrInvalidBundle = errors.New("invalid context bundle")
)

const (
	defaultMinEntityLength   = 3
	defaultSoftVetoCap       = 0.6
	defaultConflictReduction = 0.1
)

// Config carries every tunable of the pipeline. It is supplied explicitly
// at construction so tests can vary thresholds without shared globals.
type Config struct {
	Priors            map[SourceKind]float64 `yaml:"priors" json:"priors"`
	Guard             GuardConfig            `yaml:"guard" json:"guard"`
	HardVetoPhrases   []string               `yaml:"hard_veto_phrases" json:"hard_veto_phrases"`
	SoftVetoPhrases   []string               `yaml:"soft_veto_phrases" json:"soft_veto_phrases"`
	SoftVetoCap       float64                `yaml:"soft_veto_cap" json:"soft_veto_cap"`
	ConflictReduction float64                `yaml:"conflict_reduction" json:"conflict_reduction"`
	MinEntityLength   int                    `yaml:"min_entity_length" json:"min_entity_length"`
}

// DefaultConfig returns the production defaults. File content is the most
// trustworthy grounding, followed by memory, then web; history and follow-up
// context are never citable.
func DefaultConfig() Config {
	return Config{
		Priors: map[SourceKind]float64{
			SourceFile:     0.99,
			SourceMemory:   0.85,
			SourceWeb:      0.65,
			SourceHistory:  0.0,
			SourceFollowUp: 0.0,
		},
		Guard:             DefaultGuardConfig(),
		HardVetoPhrases:   DefaultHardVetoPhrases(),
		SoftVetoPhrases:   DefaultSoftVetoPhrases(),
		SoftVetoCap:       defaultSoftVetoCap,
		ConflictReduction: defaultConflictReduction,
		MinEntityLength:   defaultMinEntityLength,
	}
}

func (c Config) validate() error {
	if len(c.Priors) == 0 {
		return fmt.Errorf("config: priors are required")
	}
	for kind, prior := range c.Priors {
		if !kind.Valid() {
			return fmt.Errorf("config: unknown source kind %q in priors", kind)
		}
		if prior < 0 || prior > 1 {
			return fmt.Errorf("config: prior for %s outside [0,1]: %v", kind, prior)
		}
	}
	if c.SoftVetoCap <= 0 || c.SoftVetoCap > 1 {
		return fmt.Errorf("config: soft veto cap outside (0,1]: %v", c.SoftVetoCap)
	}
	if c.ConflictReduction < 0 || c.ConflictReduction > 1 {
		return fmt.Errorf("config: conflict reduction outside [0,1]: %v", c.ConflictReduction)
	}
	if c.MinEntityLength < 1 {
		return fmt.Errorf("config: min entity length must be positive")
	}
	return nil
}

// ConfidenceRecord is the immutable output of one evaluation. It preserves
// every intermediate value so a caller can reconstruct why the final number
// is what it is. The persistence layer stores it as message metadata.
type ConfidenceRecord struct {
	ConfidenceInitial  float64          `json:"confidence_initial"`
	ConfidenceFinal    float64          `json:"confidence_final"`
	SourceUsed         string           `json:"source_used,omitempty"`
	Ungrounded         bool             `json:"ungrounded,omitempty"`
	RiskLevel          RiskLevel        `json:"risk_level"`
	Veto               VetoResult       `json:"veto"`
	FactualGuard       GuardResult      `json:"factual_guard"`
	SourceConflicts    []SourceConflict `json:"source_conflicts"`
	Refused            bool             `json:"refused"`
	ExtractionStrategy string           `json:"extraction_strategy"`
}

// Pipeline runs the five evaluation stages in a fixed order. Each stage may
// only lower confidence; only the seed stage sets it.
type Pipeline struct {
	cfg       Config
	extractor EntityExtractor
	fallback  *PatternExtractor
	matcher   *Matcher
	guard     *Guard
	scanner   *VetoScanner
	detector  ConflictDetector
	stages    []stage
}

// Option customizes pipeline construction.
type Option func(*Pipeline)

// WithExtractor injects the entity extraction strategy. The pattern
// fallback remains available if the injected strategy fails at runtime.
func WithExtractor(e EntityExtractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithConflictDetector replaces the default value-overlap heuristic.
func WithConflictDetector(d ConflictDetector) Option {
	return func(p *Pipeline) { p.detector = d }
}

// NewPipeline builds a pipeline from the config. The strategy question
// ("is a model available?") is resolved here, once, not at call sites.
func NewPipeline(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:      cfg,
		fallback: NewPatternExtractor(),
		matcher:  NewMatcher(cfg.MinEntityLength),
		guard:    NewGuard(cfg.Guard),
		scanner:  NewVetoScanner(cfg.HardVetoPhrases, cfg.SoftVetoPhrases, cfg.SoftVetoCap),
		detector: NewValueOverlapDetector(cfg.ConflictReduction),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.extractor == nil {
		p.extractor = p.fallback
	}

	// The stage order is the contract: seed, veto, guard, conflicts, clamp.
	// Holding it as a slice keeps the sequence structurally enforced.
	p.stages = []stage{
		p.seedStage,
		p.vetoStage,
		p.guardStage,
		p.conflictStage,
		p.clampStage,
	}
	return p, nil
}

// evaluation is the accumulator threaded through the stages.
type evaluation struct {
	answer    string
	reasoning string
	bundle    ContextBundle
	record    ConfidenceRecord
	refusedAt bool // hard veto hit; later stages record but do not decide
}

type stage func(ctx context.Context, ev *evaluation) error

// Evaluate runs the full pipeline. It fails fast on malformed input and
// otherwise always returns a complete record; identical inputs and config
// produce identical records.
func (p *Pipeline) Evaluate(ctx context.Context, answer, reasoning string, bundle ContextBundle) (*ConfidenceRecord, error) {
	if strings.TrimSpace(answer) == "" {
		return nil, ErrEmptyAnswer
	}
	if err := bundle.validate(); err != nil {
		return nil, err
	}

	ev := &evaluation{answer: answer, reasoning: reasoning, bundle: bundle}
	for _, st := range p.stages {
		if err := st(ctx, ev); err != nil {
			return nil, err
		}
	}
	rec := ev.record
	return &rec, nil
}

// seedStage sets the initial confidence from the highest-priority factual
// source with nonzero relevance. A bundle with only contextual sources
// seeds at zero and is flagged as ungrounded rather than silently treated
// as unverified-but-confident.
func (p *Pipeline) seedStage(_ context.Context, ev *evaluation) error {
	ev.record.Ungrounded = true
	for _, kind := range factualOrder {
		for _, src := range ev.bundle.Sources {
			if src.Kind != kind || src.Relevance <= 0 {
				continue
			}
			prior := src.Prior
			if prior == 0 {
				prior = p.cfg.Priors[kind]
			}
			ev.record.ConfidenceInitial = prior
			ev.record.SourceUsed = src.ID
			ev.record.Ungrounded = false
			break
		}
		if !ev.record.Ungrounded {
			break
		}
	}
	ev.record.ConfidenceFinal = ev.record.ConfidenceInitial
	return nil
}

// vetoStage applies the hard-veto short circuit and the soft-veto cap. On a
// hard veto the remaining stages still run so the record carries guard and
// conflict metadata, but they can no longer change the decision.
func (p *Pipeline) vetoStage(_ context.Context, ev *evaluation) error {
	veto := p.scanner.Scan(ev.answer, ev.reasoning)
	ev.record.Veto = veto

	switch veto.Level {
	case VetoHard:
		ev.refusedAt = true
		ev.record.Refused = true
		ev.record.ConfidenceFinal = 0
	case VetoSoft:
		if veto.Cap < ev.record.ConfidenceFinal {
			ev.record.ConfidenceFinal = veto.Cap
		}
	}
	return nil
}

// guardStage verifies answer entities against factual sources and applies
// the risk-level cap.
func (p *Pipeline) guardStage(ctx context.Context, ev *evaluation) error {
	entities, strategy, err := p.extract(ctx, ev.answer)
	if err != nil {
		return err
	}
	ev.record.ExtractionStrategy = strategy

	results := p.matcher.VerifyAll(entities, ev.bundle.Sources)
	guard := p.guard.Assess(results)
	ev.record.FactualGuard = guard
	ev.record.RiskLevel = guard.Risk

	if !ev.refusedAt && guard.Cap < ev.record.ConfidenceFinal {
		ev.record.ConfidenceFinal = guard.Cap
	}
	return nil
}

// conflictStage subtracts the per-conflict reduction for each contradiction
// between factual sources.
func (p *Pipeline) conflictStage(_ context.Context, ev *evaluation) error {
	conflicts := p.detector.Detect(ev.bundle.Sources)
	if conflicts == nil {
		conflicts = []SourceConflict{}
	}
	ev.record.SourceConflicts = conflicts

	if ev.refusedAt {
		return nil
	}
	for _, c := range conflicts {
		ev.record.ConfidenceFinal -= c.Reduction
	}
	return nil
}

// clampStage pins the final value to [0,1]. Confidence can never exceed the
// seed; the stages only subtract.
func (p *Pipeline) clampStage(_ context.Context, ev *evaluation) error {
	if ev.record.ConfidenceFinal < 0 {
		ev.record.ConfidenceFinal = 0
	}
	if ev.record.ConfidenceFinal > 1 {
		ev.record.ConfidenceFinal = 1
	}
	return nil
}

// extract runs the configured strategy, degrading to the pattern fallback
// on failure. Degradation is observable through the returned strategy name
// but never fatal.
func (p *Pipeline) extract(ctx context.Context, text string) ([]Entity, string, error) {
	entities, err := p.extractor.Extract(ctx, text)
	if err == nil {
		return entities, p.extractor.Name(), nil
	}
	if p.extractor == EntityExtractor(p.fallback) {
		return nil, "", fmt.Errorf("entity extraction: %w", err)
	}
	entities, ferr := p.fallback.Extract(ctx, text)
	if ferr != nil {
		return nil, "", fmt.Errorf("entity extraction fallback: %w", ferr)
	}
	return entities, p.fallback.Name() + "_fallback", nil
}
