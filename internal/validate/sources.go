package validate

import (
	"fmt"
	"strings"
)

// SourceKind identifies where a piece of retrieved context came from.
type SourceKind string

const (
	SourceFile     SourceKind = "file"
	SourceMemory   SourceKind = "memory"
	SourceWeb      SourceKind = "web"
	SourceHistory  SourceKind = "history"
	SourceFollowUp SourceKind = "follow_up"
)

// factualOrder lists citable source kinds by seed priority, highest first.
// History and follow-up context are never citable as facts.
var factualOrder = []SourceKind{SourceFile, SourceMemory, SourceWeb}

// Factual reports whether the kind can be cited as evidence for an answer.
func (k SourceKind) Factual() bool {
	switch k {
	case SourceFile, SourceMemory, SourceWeb:
		return true
	}
	return false
}

// Valid reports whether the kind is one of the known source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceFile, SourceMemory, SourceWeb, SourceHistory, SourceFollowUp:
		return true
	}
	return false
}

// SourceRecord is one retrieved piece of context handed to the pipeline.
type SourceRecord struct {
	Kind      SourceKind `json:"kind"`
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Prior     float64    `json:"prior"`
	Relevance float64    `json:"relevance"`
}

// ContextBundle is the ordered set of sources used to ground one answer.
type ContextBundle struct {
	Sources []SourceRecord `json:"sources"`
}

// Factual returns the citable sources in bundle order.
func (b ContextBundle) Factual() []SourceRecord {
	out := make([]SourceRecord, 0, len(b.Sources))
	for _, s := range b.Sources {
		if s.Kind.Factual() {
			out = append(out, s)
		}
	}
	return out
}

// FactualText joins the text of all citable sources. Entity verification
// runs against this, never against history or follow-up context.
func (b ContextBundle) FactualText() string {
	parts := make([]string, 0, len(b.Sources))
	for _, s := range b.Sources {
		if s.Kind.Factual() && strings.TrimSpace(s.Text) != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (b ContextBundle) validate() error {
	for i, s := range b.Sources {
		if !s.Kind.Valid() {
			return fmt.Errorf("%w: source %d has unknown kind %q", ErrInvalidBundle, i, s.Kind)
		}
		if s.ID == "" {
			return fmt.Errorf("%w: source %d (%s) has no identifier", ErrInvalidBundle, i, s.Kind)
		}
		if s.Prior < 0 || s.Prior > 1 {
			return fmt.Errorf("%w: source %q prior %v outside [0,1]", ErrInvalidBundle, s.ID, s.Prior)
		}
		if s.Relevance < 0 || s.Relevance > 1 {
			return fmt.Errorf("%w: source %q relevance %v outside [0,1]", ErrInvalidBundle, s.ID, s.Relevance)
		}
	}
	return nil
}
