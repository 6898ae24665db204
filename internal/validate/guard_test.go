package validate

import "testing"

func guardResults(unverified, verified int) []VerificationResult {
	var out []VerificationResult
	for i := 0; i < unverified; i++ {
		out = append(out, VerificationResult{Entity: Entity{Text: "Ghost", Label: LabelOther}, Verified: false, Strategy: MatchNone})
	}
	for i := 0; i < verified; i++ {
		out = append(out, VerificationResult{Entity: Entity{Text: "Known", Label: LabelOther}, Verified: true, Strategy: MatchExact})
	}
	return out
}

func TestGuard_Thresholds(t *testing.T) {
	g := NewGuard(DefaultGuardConfig())

	cases := []struct {
		unverified int
		risk       RiskLevel
		cap        float64
	}{
		{0, RiskNone, 1.0},
		{1, RiskLow, 0.6},
		{2, RiskLow, 0.6},
		{3, RiskMed, 0.5},
		{5, RiskMed, 0.5},
		{6, RiskHigh, 0.4},
		{9, RiskHigh, 0.4},
	}

	for _, tc := range cases {
		res := g.Assess(guardResults(tc.unverified, 2))
		if res.Risk != tc.risk {
			t.Errorf("%d unverified: risk = %s, want %s", tc.unverified, res.Risk, tc.risk)
		}
		if res.Cap != tc.cap {
			t.Errorf("%d unverified: cap = %v, want %v", tc.unverified, res.Cap, tc.cap)
		}
		if len(res.Unverified) != tc.unverified {
			t.Errorf("%d unverified: recorded %d entities", tc.unverified, len(res.Unverified))
		}
	}
}

func TestGuard_VerifiedEntitiesDoNotCount(t *testing.T) {
	g := NewGuard(DefaultGuardConfig())
	res := g.Assess(guardResults(0, 10))
	if res.Risk != RiskNone || res.Cap != 1.0 {
		t.Fatalf("verified-only results must be NONE risk, got %+v", res)
	}
	if res.Unverified == nil {
		t.Fatal("unverified list must be non-nil for JSON output")
	}
}

func TestGuard_CustomThresholds(t *testing.T) {
	g := NewGuard(GuardConfig{HighAt: 2, MedAt: 1, HighCap: 0.2, MedCap: 0.3, LowCap: 0.9})
	if res := g.Assess(guardResults(1, 0)); res.Risk != RiskMed || res.Cap != 0.3 {
		t.Errorf("1 unverified with MedAt=1: got %+v", res)
	}
	if res := g.Assess(guardResults(2, 0)); res.Risk != RiskHigh || res.Cap != 0.2 {
		t.Errorf("2 unverified with HighAt=2: got %+v", res)
	}
}
