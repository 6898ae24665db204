package validate

// RiskLevel buckets how many answer entities could not be verified.
type RiskLevel string

const (
	RiskNone RiskLevel = "NONE"
	RiskLow  RiskLevel = "LOW"
	RiskMed  RiskLevel = "MED"
	RiskHigh RiskLevel = "HIGH"
)

// GuardConfig holds the unverified-count thresholds and the confidence cap
// applied at each risk level.
type GuardConfig struct {
	HighAt  int     `yaml:"high_at" json:"high_at"`
	MedAt   int     `yaml:"med_at" json:"med_at"`
	HighCap float64 `yaml:"high_cap" json:"high_cap"`
	MedCap  float64 `yaml:"med_cap" json:"med_cap"`
	LowCap  float64 `yaml:"low_cap" json:"low_cap"`
}

// DefaultGuardConfig mirrors the production thresholds: 6+ unverified
// entities is HIGH risk, 3-5 MED, 1-2 LOW.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		HighAt:  6,
		MedAt:   3,
		HighCap: 0.4,
		MedCap:  0.5,
		LowCap:  0.6,
	}
}

// GuardResult summarizes factual-guard output for the confidence record.
type GuardResult struct {
	Risk       RiskLevel `json:"risk"`
	Unverified []string  `json:"unverified_entities"`
	Cap        float64   `json:"cap"`
}

// Guard aggregates verification results into a risk level and confidence
// cap. Pure aggregation, no I/O.
type Guard struct {
	cfg GuardConfig
}

// NewGuard returns a guard with the given thresholds.
func NewGuard(cfg GuardConfig) *Guard {
	return &Guard{cfg: cfg}
}

// Assess counts unverified entities and maps the count to a risk level.
// The unverified entity texts are returned for transparency.
func (g *Guard) Assess(results []VerificationResult) GuardResult {
	unverified := []string{}
	for _, r := range results {
		if !r.Verified {
			unverified = append(unverified, r.Entity.Text)
		}
	}

	out := GuardResult{Unverified: unverified, Risk: RiskNone, Cap: 1.0}
	switch n := len(unverified); {
	case n >= g.cfg.HighAt:
		out.Risk = RiskHigh
		out.Cap = g.cfg.HighCap
	case n >= g.cfg.MedAt:
		out.Risk = RiskMed
		out.Cap = g.cfg.MedCap
	case n > 0:
		out.Risk = RiskLow
		out.Cap = g.cfg.LowCap
	}
	return out
}
