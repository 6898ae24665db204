// Package validate implements the answer validation and confidence pipeline.
//
// Given a generated answer, an optional reasoning trace, and the bundle of
// context sources used to produce the answer, it computes a final confidence
// score and a transparency record explaining every reduction applied:
// - Named entities in the answer are verified against factual sources.
// - Unverified entities map to a discrete risk level with a confidence cap.
// - Hedge/refusal phrasing in the answer or reasoning vetoes the answer.
// - Contradictions between factual sources reduce confidence further.
//
// The pipeline is a pure computation over in-memory text; it performs no I/O
// (the optional model-backed entity extractor is the one injected exception)
// and is safe for concurrent use.
package validate

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// EntityLabel classifies an extracted entity.
type EntityLabel string

const (
	LabelPerson EntityLabel = "PERSON"
	LabelOrg    EntityLabel = "ORG"
	LabelPlace  EntityLabel = "GPE"
	LabelDate   EntityLabel = "DATE"
	LabelMoney  EntityLabel = "MONEY"
	LabelOther  EntityLabel = "OTHER"
)

// Entity is a named entity pulled from answer text. Offset is the byte
// offset of the first occurrence, used for deterministic ordering.
type Entity struct {
	Text   string      `json:"text"`
	Label  EntityLabel `json:"label"`
	Offset int         `json:"-"`
}

// EntityExtractor pulls named entities out of text. Implementations must be
// deterministic for identical input: results sorted by first occurrence
// offset, then by label.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]Entity, error)
	Name() string
}

var (
	capitalizedSpanRE = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s[A-Z][a-z]+)*\b`)
	acronymRE         = regexp.MustCompile(`\b[A-Z]{2,6}\b`)
	isoDateRE         = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	naturalDateRE     = regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)(?:\s+\d{1,2})?(?:,?\s+\d{4})?\b`)
	moneyRE           = regexp.MustCompile(`\$\d+(?:\.\d+)?[KMB]|\$\d{1,3}(?:,\d{3})*(?:\.\d{2})?\b`)

	orgSuffixes   = []string{"corp", "inc", "ltd", "llc", "labs", "systems", "company", "university", "institute", "foundation", "group"}
	placePrefixes = []string{"in ", "at ", "from ", "near ", "to "}
)

// sentenceStarters are capitalized function words that open sentences and
// are never entities on their own.
var sentenceStarters = map[string]struct{}{
	"The": {}, "This": {}, "That": {}, "These": {}, "Those": {},
	"A": {}, "An": {}, "I": {}, "It": {}, "If": {}, "As": {},
	"But": {}, "And": {}, "When": {}, "While": {}, "However": {},
}

// isCommonWord suppresses generic capitalized terms using suffix and shape
// patterns rather than an exhaustive stoplist.
func isCommonWord(word string) bool {
	lower := strings.ToLower(word)

	if len(word) == 1 {
		return true
	}

	// Adjectives and nationalities: American, British, European.
	for _, suf := range []string{"ian", "ish", "ese", "ean", "an", "ern"} {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}

	// Weekdays collapse into one pattern.
	if strings.HasSuffix(lower, "day") {
		return true
	}

	// Common tech/web terms that show up capitalized mid-sentence.
	for _, pat := range []string{"net", "web", "mail", "site", "book", "tube", "hub"} {
		if strings.Contains(lower, pat) {
			return true
		}
	}

	// Programming language names.
	for _, suf := range []string{"script", "thon", "lang"} {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}

	if _, ok := sentenceStarters[word]; ok {
		return true
	}

	return false
}

// PatternExtractor is the rule-based extraction strategy. It has no external
// dependency and is always available; the pipeline falls back to it when the
// model-backed strategy is unavailable or fails.
type PatternExtractor struct{}

// NewPatternExtractor returns the rule-based extractor.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

// Name identifies the strategy in the confidence record.
func (e *PatternExtractor) Name() string { return "pattern" }

// Extract finds capitalized spans, acronyms, dates and money amounts.
// The error return satisfies EntityExtractor; it is always nil here.
func (e *PatternExtractor) Extract(_ context.Context, text string) ([]Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var entities []Entity
	seen := map[string]struct{}{}
	var claimed [][2]int

	overlapsClaimed := func(start, end int) bool {
		for _, iv := range claimed {
			if start < iv[1] && end > iv[0] {
				return true
			}
		}
		return false
	}

	add := func(raw string, label EntityLabel, offset int) {
		key := strings.ToLower(strings.TrimSpace(raw))
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		entities = append(entities, Entity{Text: strings.TrimSpace(raw), Label: label, Offset: offset})
	}

	// Dates and money first so their spans are claimed before the
	// acronym and capitalized-span passes see them.
	for _, loc := range isoDateRE.FindAllStringIndex(text, -1) {
		add(text[loc[0]:loc[1]], LabelDate, loc[0])
		claimed = append(claimed, [2]int{loc[0], loc[1]})
	}
	for _, loc := range naturalDateRE.FindAllStringIndex(text, -1) {
		add(text[loc[0]:loc[1]], LabelDate, loc[0])
		claimed = append(claimed, [2]int{loc[0], loc[1]})
	}
	for _, loc := range moneyRE.FindAllStringIndex(text, -1) {
		add(text[loc[0]:loc[1]], LabelMoney, loc[0])
		claimed = append(claimed, [2]int{loc[0], loc[1]})
	}

	for _, loc := range acronymRE.FindAllStringIndex(text, -1) {
		span := text[loc[0]:loc[1]]
		if isCommonWord(span) || overlapsClaimed(loc[0], loc[1]) {
			continue
		}
		add(span, LabelOrg, loc[0])
	}

	for _, loc := range capitalizedSpanRE.FindAllStringIndex(text, -1) {
		span := text[loc[0]:loc[1]]
		if isCommonWord(span) || overlapsClaimed(loc[0], loc[1]) {
			continue
		}
		single := !strings.Contains(span, " ")
		// Short single words are noise, not entities.
		if single && len(span) < 3 {
			continue
		}
		// A lone capitalized word at a sentence start is usually just a
		// sentence-initial word, not an entity.
		if single && isSentenceInitial(text, loc[0]) {
			continue
		}
		add(span, classifySpan(text, span, loc[0]), loc[0])
	}

	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Offset != entities[j].Offset {
			return entities[i].Offset < entities[j].Offset
		}
		return entities[i].Label < entities[j].Label
	})

	return entities, nil
}

// isSentenceInitial reports whether offset begins the text or directly
// follows sentence-ending punctuation.
func isSentenceInitial(text string, offset int) bool {
	if offset == 0 {
		return true
	}
	before := strings.TrimRight(text[:offset], " \t")
	if before == "" {
		return true
	}
	switch before[len(before)-1] {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}

// classifySpan assigns a coarse label to a capitalized span from its shape
// and immediate left context. Heuristic only; unverifiable spans count the
// same against risk whatever the label.
func classifySpan(text, span string, offset int) EntityLabel {
	lower := strings.ToLower(span)
	for _, suf := range orgSuffixes {
		if strings.HasSuffix(lower, " "+suf) || lower == suf {
			return LabelOrg
		}
	}

	// "in Paris", "from Berlin" — prepositional left context marks places.
	start := offset - 6
	if start < 0 {
		start = 0
	}
	left := strings.ToLower(text[start:offset])
	for _, p := range placePrefixes {
		if strings.HasSuffix(left, p) {
			return LabelPlace
		}
	}

	// Two TitleCase tokens with no org suffix read like a person name.
	if strings.Count(span, " ") == 1 {
		return LabelPerson
	}
	return LabelOther
}
