// Package fraud scores payment transactions against a user's own history.
//
// Seven independent risk factors each yield a value in [0,1]. The engine
// folds them over a fixed weight table into a 0-100 score, a classification
// and an ordered list of reasons. The engine holds no mutable state and is
// safe for concurrent use.
package fraud

import (
	"math"
	"time"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
)

// NoSuspiciousPatterns is the only reason reported when no factor fires.
const NoSuspiciousPatterns = "No suspicious patterns detected"

// Contribution is the outcome of a single risk factor.
type Contribution struct {
	Factor string  `json:"factor"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
	Points float64 `json:"points"`
	Reason string  `json:"reason,omitempty"`
}

// Triggered reports whether the factor added to the score.
func (c Contribution) Triggered() bool {
	return c.Value > 0
}

// Engine scores transactions with a fixed set of rules.
type Engine struct {
	rules   Rules
	factors []factor
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the source of the assessment timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine that captures a private copy of rules.
func NewEngine(rules Rules, opts ...Option) *Engine {
	r := rules.clone()
	e := &Engine{
		rules:   r,
		factors: factorTable(r.Weights),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the time zone used to read civil hours.
func (e *Engine) Location() *time.Location {
	return e.rules.Location
}

// Evaluate runs every factor in table order and returns their contributions.
// history must be ordered oldest first and exclude txn.
func (e *Engine) Evaluate(txn models.Transaction, history []models.Transaction) []Contribution {
	in := input{
		txn:     txn,
		history: history,
		stats:   ComputeStatistics(history, e.rules.Location),
		rules:   e.rules,
	}

	out := make([]Contribution, len(e.factors))
	for i, f := range e.factors {
		v := f.evaluate(in)
		c := Contribution{Factor: f.name, Value: v, Weight: f.weight}
		if v > 0 {
			c.Points = v * f.weight * 100
			c.Reason = f.reason(v)
		}
		out[i] = c
	}
	return out
}

// Assess scores txn against history.
func (e *Engine) Assess(txn models.Transaction, history []models.Transaction) models.FraudAssessment {
	return e.assemble(e.Evaluate(txn, history))
}

// AssessContributions is Assess for callers that also need the breakdown.
func (e *Engine) AssessContributions(txn models.Transaction, history []models.Transaction) (models.FraudAssessment, []Contribution) {
	contributions := e.Evaluate(txn, history)
	return e.assemble(contributions), contributions
}

func (e *Engine) assemble(contributions []Contribution) models.FraudAssessment {
	var total float64
	var reasons []string
	for _, c := range contributions {
		if !c.Triggered() {
			continue
		}
		total += c.Points
		reasons = append(reasons, c.Reason)
	}

	total = math.Min(100, math.Max(0, total))
	score := math.Round(total*100) / 100

	if len(reasons) == 0 {
		reasons = []string{NoSuspiciousPatterns}
	}

	return models.FraudAssessment{
		Score:          score,
		Classification: Classify(score, e.rules),
		Reasons:        reasons,
		Timestamp:      e.now().UTC(),
	}
}

// Classify maps a score onto a classification using the rule thresholds.
func Classify(score float64, rules Rules) models.Classification {
	switch {
	case score >= rules.FraudulentThreshold:
		return models.ClassificationFraudulent
	case score >= rules.SuspiciousThreshold:
		return models.ClassificationSuspicious
	default:
		return models.ClassificationSafe
	}
}

// StatusFor returns the operational status implied by a classification.
func StatusFor(c models.Classification) models.Status {
	switch c {
	case models.ClassificationFraudulent:
		return models.StatusBlocked
	case models.ClassificationSuspicious:
		return models.StatusFlagged
	default:
		return models.StatusApproved
	}
}
