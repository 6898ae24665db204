package validate

import (
	"context"
	"reflect"
	"testing"
)

func TestPatternExtractor_Basic(t *testing.T) {
	e := NewPatternExtractor()
	text := "The report shows Acme Corp shipped the update in Paris on 2024-03-01 for $1,500.00."

	entities, err := e.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]EntityLabel{
		"Acme Corp":  LabelOrg,
		"Paris":      LabelPlace,
		"2024-03-01": LabelDate,
		"$1,500.00":  LabelMoney,
	}
	if len(entities) != len(want) {
		t.Fatalf("expected %d entities, got %d: %+v", len(want), len(entities), entities)
	}
	for _, ent := range entities {
		label, ok := want[ent.Text]
		if !ok {
			t.Errorf("unexpected entity %q", ent.Text)
			continue
		}
		if ent.Label != label {
			t.Errorf("entity %q: expected label %s, got %s", ent.Text, label, ent.Label)
		}
	}
}

func TestPatternExtractor_OrderedByOffset(t *testing.T) {
	e := NewPatternExtractor()
	text := "Both Zephyr Industries and Quill Holdings filed in March 2024."

	entities, err := e.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(entities); i++ {
		if entities[i].Offset < entities[i-1].Offset {
			t.Fatalf("entities not ordered by offset: %+v", entities)
		}
	}
}

func TestPatternExtractor_Deterministic(t *testing.T) {
	e := NewPatternExtractor()
	text := "NASA confirmed that Jane Smith visited the Atlas Institute on 2023-11-05."

	first, err := e.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := e.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("extraction not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestPatternExtractor_StoplistSuppression(t *testing.T) {
	e := NewPatternExtractor()

	cases := []struct {
		name string
		text string
		skip string
	}{
		{"sentence starter", "This is fine.", "This"},
		{"weekday", "See you on Tuesday there.", "Tuesday"},
		{"nationality", "An American firm bid.", "American"},
		{"language name", "Written in Python mostly.", "Python"},
		{"single letter", "Grade A result overall.", "A"},
		{"sentence-initial word", "Results were mixed. Overall the plan held.", "Overall"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entities, err := e.Extract(context.Background(), tc.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, ent := range entities {
				if ent.Text == tc.skip {
					t.Errorf("expected %q to be suppressed, got %+v", tc.skip, entities)
				}
			}
		})
	}
}

func TestPatternExtractor_Acronyms(t *testing.T) {
	e := NewPatternExtractor()
	entities, err := e.Extract(context.Background(), "Per the NASA briefing, the probe is on course.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, ent := range entities {
		if ent.Text == "NASA" {
			found = true
			if ent.Label != LabelOrg {
				t.Errorf("expected NASA labeled ORG, got %s", ent.Label)
			}
		}
	}
	if !found {
		t.Fatalf("expected acronym NASA to be extracted, got %+v", entities)
	}
}

func TestPatternExtractor_DeduplicatesCaseInsensitively(t *testing.T) {
	e := NewPatternExtractor()
	entities, err := e.Extract(context.Background(), "Acme Corp grew. Later Acme Corp merged.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count := 0
	for _, ent := range entities {
		if ent.Text == "Acme Corp" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one Acme Corp entity, got %d (%+v)", count, entities)
	}
}

func TestPatternExtractor_EmptyInput(t *testing.T) {
	e := NewPatternExtractor()
	entities, err := e.Extract(context.Background(), "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entities) != 0 {
		t.Fatalf("expected no entities, got %+v", entities)
	}
}
