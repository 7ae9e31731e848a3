package fraud

import "time"

// Weights holds the contribution weight of each risk factor. They sum to 1.
type Weights struct {
	AmountAnomaly    float64
	Velocity         float64
	LocationMismatch float64
	TimeAnomaly      float64
	DeviceChange     float64
	MerchantRisk     float64
	PatternDeviation float64
}

// Rules is the immutable scoring configuration captured by an Engine.
type Rules struct {
	Weights Weights

	// Score thresholds, inclusive lower bounds.
	FraudulentThreshold float64
	SuspiciousThreshold float64

	HighRiskCategories []string

	// Location used to read the civil hour of a timestamp. Pinned per
	// deployment because it changes time-anomaly outcomes.
	Location *time.Location
}

// DefaultRules returns the production weight and threshold table.
func DefaultRules() Rules {
	return Rules{
		Weights: Weights{
			AmountAnomaly:    0.25,
			Velocity:         0.20,
			LocationMismatch: 0.15,
			TimeAnomaly:      0.15,
			DeviceChange:     0.10,
			MerchantRisk:     0.10,
			PatternDeviation: 0.05,
		},
		FraudulentThreshold: 70,
		SuspiciousThreshold: 40,
		HighRiskCategories: []string{
			"Gambling",
			"Cryptocurrency",
			"Adult Content",
			"Peer-to-Peer",
		},
		Location: time.Local,
	}
}

// clone returns a deep copy so callers cannot mutate an engine's rules.
func (r Rules) clone() Rules {
	c := r
	c.HighRiskCategories = append([]string(nil), r.HighRiskCategories...)
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

func (r Rules) isHighRisk(category string) bool {
	for _, c := range r.HighRiskCategories {
		if c == category {
			return true
		}
	}
	return false
}
