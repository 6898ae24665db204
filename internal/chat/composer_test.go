package chat

import (
	"strings"
	"testing"

	"github.com/veritaslocal/veritas/internal/validate"
)

func cleanRecord() *validate.ConfidenceRecord {
	return &validate.ConfidenceRecord{
		ConfidenceInitial: 0.99,
		ConfidenceFinal:   0.99,
		RiskLevel:         validate.RiskNone,
		Veto:              validate.VetoResult{Level: validate.VetoNone, Cap: 1},
	}
}

func TestComposer_PassthroughWhenClean(t *testing.T) {
	c := NewComposer("")
	answer := "The report will definitely arrive Monday."
	if got := c.Compose(answer, cleanRecord()); got != answer {
		t.Fatalf("clean answer must pass through, got %q", got)
	}
}

func TestComposer_RefusalReplacesAnswer(t *testing.T) {
	c := NewComposer("Custom refusal.")
	rec := cleanRecord()
	rec.Refused = true
	rec.ConfidenceFinal = 0

	if got := c.Compose("Confident nonsense.", rec); got != "Custom refusal." {
		t.Fatalf("got %q", got)
	}
}

func TestComposer_DisclaimerAndToneDown(t *testing.T) {
	c := NewComposer("")
	rec := cleanRecord()
	rec.RiskLevel = validate.RiskMed
	rec.ConfidenceFinal = 0.5
	rec.FactualGuard = validate.GuardResult{
		Risk:       validate.RiskMed,
		Unverified: []string{"Zorvex", "Quill Holdings", "Atlas Fund"},
		Cap:        0.5,
	}

	got := c.Compose("This will definitely work. Clearly the best option.", rec)

	if !strings.HasPrefix(got, "Note: 3 statement(s)") {
		t.Errorf("missing disclaimer: %q", got)
	}
	if strings.Contains(got, "definitely") || strings.Contains(got, "Clearly") {
		t.Errorf("absolute wording not toned down: %q", got)
	}
	if !strings.Contains(got, "may likely work") {
		t.Errorf("expected will->may and definitely->likely: %q", got)
	}
	if !strings.Contains(got, "Seems the best option") {
		t.Errorf("expected Clearly->Seems: %q", got)
	}
}

func TestComposer_SoftVetoWithoutUnverifiedEntities(t *testing.T) {
	c := NewComposer("")
	rec := cleanRecord()
	rec.Veto = validate.VetoResult{Level: validate.VetoSoft, Signals: []string{"probably"}, Cap: 0.6}
	rec.ConfidenceFinal = 0.6

	got := c.Compose("It is probably fine.", rec)
	if !strings.HasPrefix(got, "Note: this answer is hedged") {
		t.Errorf("missing hedge disclaimer: %q", got)
	}
}

func TestComposer_NilRecord(t *testing.T) {
	c := NewComposer("")
	if got := c.Compose("raw", nil); got != "raw" {
		t.Fatalf("got %q", got)
	}
}
