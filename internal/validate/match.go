package validate

import (
	"strings"
	"unicode"
)

// MatchStrategy records which rule verified an entity.
type MatchStrategy string

const (
	MatchExact   MatchStrategy = "exact"
	MatchPartial MatchStrategy = "partial"
	MatchStem    MatchStrategy = "stem"
	MatchAcronym MatchStrategy = "acronym"
	MatchNone    MatchStrategy = "none"
)

// VerificationResult is the outcome of checking one entity against the
// factual sources.
type VerificationResult struct {
	Entity        Entity        `json:"entity"`
	Verified      bool          `json:"verified"`
	MatchedSource string        `json:"matched_source,omitempty"`
	Strategy      MatchStrategy `json:"strategy"`
}

// Matcher verifies entities against source text using a fixed strategy
// ladder: exact, partial, stem, acronym. First hit wins.
type Matcher struct {
	minEntityLength int
}

// NewMatcher returns a matcher. Entities shorter than minEntityLength are
// too noisy to verify and are treated as always verified.
func NewMatcher(minEntityLength int) *Matcher {
	if minEntityLength <= 0 {
		minEntityLength = defaultMinEntityLength
	}
	return &Matcher{minEntityLength: minEntityLength}
}

// Verify checks the entity against each factual source in bundle order.
// Contextual sources are skipped entirely.
func (m *Matcher) Verify(entity Entity, sources []SourceRecord) VerificationResult {
	res := VerificationResult{Entity: entity, Strategy: MatchNone}

	if len([]rune(entity.Text)) < m.minEntityLength {
		res.Verified = true
		return res
	}

	strategies := []struct {
		name  MatchStrategy
		match func(entity, source string) bool
	}{
		{MatchExact, matchExact},
		{MatchPartial, matchPartial},
		{MatchStem, matchStem},
		{MatchAcronym, matchAcronym},
	}

	for _, strat := range strategies {
		for _, src := range sources {
			if !src.Kind.Factual() || src.Text == "" {
				continue
			}
			if strat.match(entity.Text, src.Text) {
				res.Verified = true
				res.MatchedSource = src.ID
				res.Strategy = strat.name
				return res
			}
		}
	}

	return res
}

// VerifyAll verifies every entity, preserving input order.
func (m *Matcher) VerifyAll(entities []Entity, sources []SourceRecord) []VerificationResult {
	out := make([]VerificationResult, 0, len(entities))
	for _, e := range entities {
		out = append(out, m.Verify(e, sources))
	}
	return out
}

func matchExact(entity, source string) bool {
	return strings.Contains(source, entity)
}

func matchPartial(entity, source string) bool {
	return strings.Contains(strings.ToLower(source), strings.ToLower(entity))
}

// matchStem compares suffix-stripped forms so plural and singular spellings
// verify each other ("APIs" against a source containing "API").
func matchStem(entity, source string) bool {
	stemmed := stemPhrase(entity)
	if stemmed == "" {
		return false
	}
	return strings.Contains(stemPhrase(source), stemmed)
}

// stem strips common plural suffixes: "ies" -> "y", then "es", then "s".
func stem(word string) string {
	w := strings.ToLower(word)
	switch {
	case len(w) > 3 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "es"):
		return w[:len(w)-2]
	case len(w) > 2 && strings.HasSuffix(w, "s"):
		return w[:len(w)-1]
	}
	return w
}

func stemPhrase(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, f := range fields {
		fields[i] = stem(f)
	}
	return strings.Join(fields, " ")
}

// matchAcronym checks both directions: an acronym entity against expanded
// phrases in the source, and an expanded entity against an acronym token in
// the source.
func matchAcronym(entity, source string) bool {
	if isAcronym(entity) {
		return sourceSpellsAcronym(entity, source)
	}
	if acr := initialism(entity); len(acr) >= 2 {
		return containsToken(source, acr)
	}
	return false
}

func isAcronym(s string) bool {
	if len(s) < 2 || len(s) > 6 {
		return false
	}
	for _, r := range s {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// initialism builds the acronym from the first letters of significant words
// (longer than 2 characters) of a multi-word entity.
func initialism(s string) string {
	words := strings.Fields(s)
	if len(words) < 2 {
		return ""
	}
	var b strings.Builder
	for _, w := range words {
		if len(w) > 2 {
			b.WriteString(strings.ToLower(w[:1]))
		}
	}
	return b.String()
}

// sourceSpellsAcronym scans the source for a run of consecutive significant
// words whose initials spell the acronym. Connector words ("of", "to") are
// skipped so "Federal Bureau of Investigation" spells FBI.
func sourceSpellsAcronym(acr, source string) bool {
	target := strings.ToLower(acr)
	raw := strings.FieldsFunc(source, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := raw[:0]
	for _, w := range raw {
		if len(w) > 2 {
			words = append(words, w)
		}
	}
	n := len(target)
	if len(words) < n {
		return false
	}
	for i := 0; i+n <= len(words); i++ {
		ok := true
		for j := 0; j < n; j++ {
			if strings.ToLower(words[i+j][:1]) != string(target[j]) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// containsToken reports whether source contains word as a standalone token,
// case-insensitively.
func containsToken(source, word string) bool {
	target := strings.ToLower(word)
	for _, tok := range strings.FieldsFunc(source, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if strings.ToLower(tok) == target {
			return true
		}
	}
	return false
}
