package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// SourceConflict is a detected contradiction between two factual sources.
type SourceConflict struct {
	Sources   []string `json:"sources"`
	Reason    string   `json:"reason"`
	Reduction float64  `json:"confidence_reduction"`
}

// ConflictDetector compares factual sources pairwise for contradictory
// assertions. Detection is heuristic; the only guarantee is a deterministic
// result for a fixed input and rule set. The concrete rules are expected to
// need product-level tuning, which is why this sits behind an interface.
type ConflictDetector interface {
	Detect(sources []SourceRecord) []SourceConflict
}

// assertion is one comparable claim pulled from a source: a subject plus an
// associated value or polarity.
type assertion struct {
	subject string
	value   string
	negated bool
}

var (
	// "Acme Corp raised $40M", "revenue for Acme was 120" — a capitalized
	// subject with a number or amount in the same sentence.
	valueAssertionRE = regexp.MustCompile(`([A-Z][A-Za-z]+(?:\s[A-Z][A-Za-z]+)*)[^.!?\n]*?(\$?\d[\d,.]*[KMB%]?)`)

	// "X is (not) Y" polarity claims.
	polarityAssertionRE = regexp.MustCompile(`\b([A-Z][A-Za-z]+(?:\s[A-Z][A-Za-z]+)*)\s+(?:is|was|are|were)\s+(not\s+)?([a-z]+)\b`)
)

// ValueOverlapDetector flags a conflict when two sources attach differing
// values to the same subject, or assert opposite polarity of the same claim.
type ValueOverlapDetector struct {
	reduction float64
}

// NewValueOverlapDetector returns a detector with the given per-conflict
// confidence reduction.
func NewValueOverlapDetector(reduction float64) *ValueOverlapDetector {
	if reduction <= 0 {
		reduction = defaultConflictReduction
	}
	return &ValueOverlapDetector{reduction: reduction}
}

// Detect compares factual sources pairwise in bundle order. Contextual
// sources never participate.
func (d *ValueOverlapDetector) Detect(sources []SourceRecord) []SourceConflict {
	factual := make([]SourceRecord, 0, len(sources))
	for _, s := range sources {
		if s.Kind.Factual() && strings.TrimSpace(s.Text) != "" {
			factual = append(factual, s)
		}
	}

	var conflicts []SourceConflict
	for i := 0; i < len(factual); i++ {
		for j := i + 1; j < len(factual); j++ {
			conflicts = append(conflicts, d.comparePair(factual[i], factual[j])...)
		}
	}
	return conflicts
}

func (d *ValueOverlapDetector) comparePair(a, b SourceRecord) []SourceConflict {
	var conflicts []SourceConflict
	flagged := map[string]struct{}{}

	flag := func(subject, reason string) {
		if _, dup := flagged[subject]; dup {
			return
		}
		flagged[subject] = struct{}{}
		conflicts = append(conflicts, SourceConflict{
			Sources:   []string{a.ID, b.ID},
			Reason:    reason,
			Reduction: d.reduction,
		})
	}

	valuesA := extractValueAssertions(a.Text)
	for _, av := range extractValueAssertions(b.Text) {
		prev, ok := valuesA[av.subject]
		if !ok {
			continue
		}
		if prev.value != av.value {
			flag(av.subject, fmt.Sprintf("%q is %s in %s but %s in %s", av.subject, prev.value, a.ID, av.value, b.ID))
		}
	}

	polarityA := extractPolarityAssertions(a.Text)
	for _, ap := range extractPolarityAssertions(b.Text) {
		key := ap.subject + "|" + ap.value
		prev, ok := polarityA[key]
		if !ok {
			continue
		}
		if prev.negated != ap.negated {
			flag(ap.subject, fmt.Sprintf("%s and %s disagree on whether %q is %s", a.ID, b.ID, ap.subject, ap.value))
		}
	}

	return conflicts
}

// extractValueAssertions keeps the first value seen per subject within one
// source, which keeps pair comparison deterministic.
func extractValueAssertions(text string) map[string]assertion {
	out := map[string]assertion{}
	for _, m := range valueAssertionRE.FindAllStringSubmatch(text, -1) {
		subject := normalizeSubject(m[1])
		if subject == "" || isCommonWord(m[1]) {
			continue
		}
		if _, ok := out[subject]; ok {
			continue
		}
		out[subject] = assertion{subject: subject, value: normalizeValue(m[2])}
	}
	return out
}

func extractPolarityAssertions(text string) map[string]assertion {
	out := map[string]assertion{}
	for _, m := range polarityAssertionRE.FindAllStringSubmatch(text, -1) {
		subject := normalizeSubject(m[1])
		complement := strings.ToLower(strings.TrimSpace(m[3]))
		if subject == "" || complement == "" || complement == "not" || isCommonWord(m[1]) {
			continue
		}
		key := subject + "|" + complement
		if _, ok := out[key]; ok {
			continue
		}
		out[key] = assertion{
			subject: subject,
			value:   complement,
			negated: strings.TrimSpace(m[2]) != "",
		}
	}
	return out
}

func normalizeSubject(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeValue strips formatting so "$1,000" and "$1000" compare equal.
func normalizeValue(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.ReplaceAll(v, ",", "")
}
