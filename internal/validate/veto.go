package validate

import "strings"

// VetoLevel is the severity of linguistic self-doubt found in generated
// text. A hard veto forces refusal; a soft veto caps confidence.
type VetoLevel string

const (
	VetoHard VetoLevel = "hard"
	VetoSoft VetoLevel = "soft"
	VetoNone VetoLevel = "none"
)

// VetoResult reports the matched signals for the confidence record.
type VetoResult struct {
	Level   VetoLevel `json:"level"`
	Signals []string  `json:"signals"`
	Cap     float64   `json:"cap"`
}

// DefaultHardVetoPhrases are markers that the model itself says it cannot
// stand behind the answer. Matching any of them forces a refusal.
func DefaultHardVetoPhrases() []string {
	return []string{
		"cannot confirm",
		"cannot verify",
		"cannot determine",
		"impossible to say",
		"impossible to determine",
		"impossible to verify",
		"no reliable source",
		"no evidence",
		"no sufficient evidence",
		"no access to",
		"no information about",
		"not mentioned in the context",
		"not covered in the sources",
		"outside my knowledge",
		"conflicting sources",
		"conflicting information",
		"sources disagree",
		"sources conflict",
	}
}

// DefaultSoftVetoPhrases are hedge markers. They cap confidence without
// refusing the answer.
func DefaultSoftVetoPhrases() []string {
	return []string{
		"uncertain",
		"speculation",
		"speculative",
		"projection",
		"may change",
		"estimate",
		"guesswork",
		"guessing",
		"assuming",
		"assumption",
		"inferred",
		"inference",
		"conjecture",
		"not certain",
		"not confident",
		"not sure",
		"low confidence",
		"seems likely",
		"seems probable",
		"probably",
		"likely",
	}
}

// VetoScanner scans answer and reasoning text against fixed hard and soft
// phrase vocabularies using case-insensitive substring search.
type VetoScanner struct {
	hard    []string
	soft    []string
	softCap float64
}

// NewVetoScanner builds a scanner from the two vocabularies. softCap is the
// confidence ceiling applied when only soft signals match.
func NewVetoScanner(hard, soft []string, softCap float64) *VetoScanner {
	if softCap <= 0 || softCap > 1 {
		softCap = defaultSoftVetoCap
	}
	return &VetoScanner{hard: hard, soft: soft, softCap: softCap}
}

// Scan checks answer text and, when present, the reasoning trace. A model
// may hedge internally while the surfaced answer sounds confident; that
// inconsistency is exactly the signal this scanner exists to catch, so a
// hard phrase in either text triggers a hard veto. Answer matches are
// listed before reasoning matches for attribution.
func (s *VetoScanner) Scan(answer, reasoning string) VetoResult {
	hard := matchPhrases(s.hard, answer, reasoning)
	if len(hard) > 0 {
		return VetoResult{Level: VetoHard, Signals: hard, Cap: 0}
	}

	soft := matchPhrases(s.soft, answer, reasoning)
	if len(soft) > 0 {
		return VetoResult{Level: VetoSoft, Signals: soft, Cap: s.softCap}
	}

	return VetoResult{Level: VetoNone, Signals: []string{}, Cap: 1.0}
}

// matchPhrases returns the vocabulary phrases found in either text,
// answer-attributed phrases first, each phrase at most once.
func matchPhrases(vocab []string, answer, reasoning string) []string {
	answerLower := strings.ToLower(answer)
	reasoningLower := strings.ToLower(reasoning)

	var matched []string
	seen := map[string]struct{}{}
	scan := func(text string) {
		for _, phrase := range vocab {
			if phrase == "" {
				continue
			}
			if _, dup := seen[phrase]; dup {
				continue
			}
			if strings.Contains(text, strings.ToLower(phrase)) {
				seen[phrase] = struct{}{}
				matched = append(matched, phrase)
			}
		}
	}
	scan(answerLower)
	scan(reasoningLower)
	return matched
}
