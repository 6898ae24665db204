package main

import (
	"strings"
	"testing"

	"github.com/veritaslocal/veritas/internal/validate"
)

func TestFormatRecord(t *testing.T) {
	tests := []struct {
		name string
		rec  *validate.ConfidenceRecord
		want []string
	}{
		{
			name: "nil record",
			rec:  nil,
			want: []string{"confidence: unavailable"},
		},
		{
			name: "clean",
			rec: &validate.ConfidenceRecord{
				ConfidenceFinal: 0.99,
				RiskLevel:       validate.RiskNone,
				SourceUsed:      "file:notes.txt",
			},
			want: []string{"confidence: 0.99", "risk: NONE", "source: file:notes.txt"},
		},
		{
			name: "refused",
			rec: &validate.ConfidenceRecord{
				Refused: true,
				Veto:    validate.VetoResult{Level: validate.VetoHard, Signals: []string{"cannot confirm"}},
			},
			want: []string{"confidence: 0.00", "refused", "cannot confirm"},
		},
		{
			name: "degraded",
			rec: &validate.ConfidenceRecord{
				ConfidenceFinal: 0.4,
				RiskLevel:       validate.RiskHigh,
				Ungrounded:      true,
				FactualGuard:    validate.GuardResult{Unverified: []string{"a", "b"}},
				SourceConflicts: []validate.SourceConflict{{}},
			},
			want: []string{"risk: HIGH", "ungrounded", "2 unverified", "1 conflict(s)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatRecord(tt.rec)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("formatRecord() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestSessionTitle(t *testing.T) {
	if got := sessionTitle("short question"); got != "short question" {
		t.Errorf("short title = %q", got)
	}

	long := strings.Repeat("what about the quarterly numbers ", 5)
	got := sessionTitle(long)
	if len(got) > 70 {
		t.Errorf("long title not shortened: %q", got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("long title missing ellipsis: %q", got)
	}
}
