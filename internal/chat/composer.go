package chat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/veritaslocal/veritas/internal/validate"
)

// DefaultRefusalText replaces answers the pipeline refused.
const DefaultRefusalText = "I can't answer that reliably: the reasoning behind the answer contradicts the available sources. Try adding a document or enabling web search."

// toneDownRules soften absolute wording when the answer survived
// validation but with reduced confidence.
var toneDownRules = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\bdefinitely\b`), "likely"},
	{regexp.MustCompile(`\bDefinitely\b`), "Likely"},
	{regexp.MustCompile(`\bclearly\b`), "seems"},
	{regexp.MustCompile(`\bClearly\b`), "Seems"},
	{regexp.MustCompile(`\bwill\b`), "may"},
	{regexp.MustCompile(`\bWill\b`), "May"},
}

// Composer turns a raw answer plus its confidence record into the text
// shown to the user.
type Composer struct {
	refusalText string
}

// NewComposer builds a composer. An empty refusalText uses the default.
func NewComposer(refusalText string) *Composer {
	if strings.TrimSpace(refusalText) == "" {
		refusalText = DefaultRefusalText
	}
	return &Composer{refusalText: refusalText}
}

// Compose applies the validation verdict to the answer text.
func (c *Composer) Compose(answer string, rec *validate.ConfidenceRecord) string {
	if rec == nil {
		return answer
	}
	if rec.Refused {
		return c.refusalText
	}

	hedged := rec.Veto.Level == validate.VetoSoft
	risky := rec.RiskLevel == validate.RiskLow || rec.RiskLevel == validate.RiskMed || rec.RiskLevel == validate.RiskHigh
	if !hedged && !risky {
		return answer
	}

	toned := answer
	for _, rule := range toneDownRules {
		toned = rule.re.ReplaceAllString(toned, rule.replacement)
	}
	return disclaimer(rec) + "\n\n" + toned
}

func disclaimer(rec *validate.ConfidenceRecord) string {
	n := len(rec.FactualGuard.Unverified)
	if n > 0 {
		return fmt.Sprintf("Note: %d statement(s) in this answer could not be verified against your sources (confidence %.2f).", n, rec.ConfidenceFinal)
	}
	return fmt.Sprintf("Note: this answer is hedged and may be unreliable (confidence %.2f).", rec.ConfidenceFinal)
}
