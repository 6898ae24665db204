package validate

import (
	"reflect"
	"testing"
)

func TestValueOverlapDetector_ValueMismatch(t *testing.T) {
	d := NewValueOverlapDetector(0.1)
	sources := []SourceRecord{
		{Kind: SourceFile, ID: "file:q1", Text: "Acme Corp raised $40M in the round.", Prior: 0.99, Relevance: 1},
		{Kind: SourceWeb, ID: "web:news", Text: "Acme Corp raised $55M according to filings.", Prior: 0.65, Relevance: 1},
	}

	conflicts := d.Detect(sources)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d: %+v", len(conflicts), conflicts)
	}
	c := conflicts[0]
	if c.Reduction != 0.1 {
		t.Errorf("reduction = %v, want 0.1", c.Reduction)
	}
	wantSources := []string{"file:q1", "web:news"}
	if !reflect.DeepEqual(c.Sources, wantSources) {
		t.Errorf("sources = %v, want %v", c.Sources, wantSources)
	}
	if c.Reason == "" {
		t.Error("conflict reason must be populated")
	}
}

func TestValueOverlapDetector_AgreementIsNotConflict(t *testing.T) {
	d := NewValueOverlapDetector(0.1)
	sources := []SourceRecord{
		{Kind: SourceFile, ID: "file:a", Text: "Acme Corp raised $40M last year.", Prior: 0.99, Relevance: 1},
		{Kind: SourceMemory, ID: "mem:b", Text: "Acme Corp raised $40M per the memo.", Prior: 0.85, Relevance: 1},
	}
	if conflicts := d.Detect(sources); len(conflicts) != 0 {
		t.Fatalf("matching values must not conflict, got %+v", conflicts)
	}
}

func TestValueOverlapDetector_FormattingDifferencesAgree(t *testing.T) {
	d := NewValueOverlapDetector(0.1)
	sources := []SourceRecord{
		{Kind: SourceFile, ID: "file:a", Text: "Acme Corp booked $1,000 in fees.", Prior: 0.99, Relevance: 1},
		{Kind: SourceWeb, ID: "web:b", Text: "Acme Corp booked $1000 in fees.", Prior: 0.65, Relevance: 1},
	}
	if conflicts := d.Detect(sources); len(conflicts) != 0 {
		t.Fatalf("$1,000 and $1000 must compare equal, got %+v", conflicts)
	}
}

func TestValueOverlapDetector_PolarityDisagreement(t *testing.T) {
	d := NewValueOverlapDetector(0.1)
	sources := []SourceRecord{
		{Kind: SourceFile, ID: "file:status", Text: "Orion is complete and shipped.", Prior: 0.99, Relevance: 1},
		{Kind: SourceMemory, ID: "mem:note", Text: "Orion is not complete yet.", Prior: 0.85, Relevance: 1},
	}

	conflicts := d.Detect(sources)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 polarity conflict, got %d: %+v", len(conflicts), conflicts)
	}
}

func TestValueOverlapDetector_ContextualSourcesExcluded(t *testing.T) {
	d := NewValueOverlapDetector(0.1)
	sources := []SourceRecord{
		{Kind: SourceFile, ID: "file:a", Text: "Acme Corp raised $40M.", Prior: 0.99, Relevance: 1},
		{Kind: SourceHistory, ID: "history", Text: "Acme Corp raised $90M."},
		{Kind: SourceFollowUp, ID: "follow_up", Text: "Acme Corp raised $70M."},
	}
	if conflicts := d.Detect(sources); len(conflicts) != 0 {
		t.Fatalf("contextual sources must never produce conflicts, got %+v", conflicts)
	}
}

func TestValueOverlapDetector_Deterministic(t *testing.T) {
	d := NewValueOverlapDetector(0.1)
	sources := []SourceRecord{
		{Kind: SourceFile, ID: "file:a", Text: "Acme Corp raised $40M. Orion is complete.", Prior: 0.99, Relevance: 1},
		{Kind: SourceWeb, ID: "web:b", Text: "Acme Corp raised $55M. Orion is not complete.", Prior: 0.65, Relevance: 1},
	}
	first := d.Detect(sources)
	second := d.Detect(sources)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("detection not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if len(first) != 2 {
		t.Fatalf("expected value and polarity conflicts, got %+v", first)
	}
}

func TestValueOverlapDetector_PairwiseAcrossThreeSources(t *testing.T) {
	d := NewValueOverlapDetector(0.1)
	sources := []SourceRecord{
		{Kind: SourceFile, ID: "file:a", Text: "Acme Corp raised $40M.", Prior: 0.99, Relevance: 1},
		{Kind: SourceMemory, ID: "mem:b", Text: "Acme Corp raised $55M.", Prior: 0.85, Relevance: 1},
		{Kind: SourceWeb, ID: "web:c", Text: "Acme Corp raised $70M.", Prior: 0.65, Relevance: 1},
	}
	if conflicts := d.Detect(sources); len(conflicts) != 3 {
		t.Fatalf("three mutually disagreeing sources form three pairs, got %+v", conflicts)
	}
}
