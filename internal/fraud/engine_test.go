package fraud

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 1, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(utcRules(), WithClock(func() time.Time { return fixedNow }))
}

func TestAssess_FirstTransactionHighRiskMerchant(t *testing.T) {
	txn := txnAt(baseTime, 5000)
	txn.MerchantCategory = "Gambling"

	got := newTestEngine().Assess(txn, nil)

	assert.Equal(t, 7.0, got.Score)
	assert.Equal(t, models.ClassificationSafe, got.Classification)
	assert.Equal(t, []string{"High-risk merchant category"}, got.Reasons)
	assert.Equal(t, fixedNow, got.Timestamp)
}

func TestAssess_FirstTransactionIsAlwaysSafe(t *testing.T) {
	engine := newTestEngine()
	night := time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)

	for _, amount := range []float64{0.01, 1, 999_999} {
		for _, category := range []string{"Groceries", "Cryptocurrency", "Peer-to-Peer"} {
			txn := txnAt(night, amount)
			txn.MerchantCategory = category
			txn.DeviceID = "brand-new"
			txn.Location = "Nowhere"

			got := engine.Assess(txn, nil)
			assert.LessOrEqual(t, got.Score, 7.0)
			assert.Equal(t, models.ClassificationSafe, got.Classification)
		}
	}
}

func TestAssess_NoSignals(t *testing.T) {
	got := newTestEngine().Assess(txnAt(baseTime, 100), spread(5, 100))

	assert.Zero(t, got.Score)
	assert.Equal(t, models.ClassificationSafe, got.Classification)
	assert.Equal(t, []string{NoSuspiciousPatterns}, got.Reasons)
}

func TestAssess_AmountAnomalyHighDeviation(t *testing.T) {
	history := []models.Transaction{
		txnAt(baseTime.AddDate(0, 0, -2), 50),
		txnAt(baseTime.AddDate(0, 0, -1), 150),
	}

	got := newTestEngine().Assess(txnAt(baseTime, 600), history)

	assert.Equal(t, 25.0, got.Score)
	assert.Equal(t, models.ClassificationSafe, got.Classification)
	assert.Equal(t, []string{"Unusual transaction amount (high deviation)"}, got.Reasons)
}

func TestAssess_ModerateDeviationReason(t *testing.T) {
	got := newTestEngine().Assess(txnAt(baseTime, 400), spread(2, 100))

	assert.Equal(t, 17.5, got.Score)
	assert.Equal(t, []string{"Unusual transaction amount (moderate deviation)"}, got.Reasons)
}

func TestAssess_EndToEndSuspicious(t *testing.T) {
	history := spread(5, 100)

	txn := txnAt(baseTime.Add(2*time.Hour), 600)
	txn.Location = "Lagos"
	txn.Country = "NG"
	txn.DeviceID = "device-9"

	got := newTestEngine().Assess(txn, history)

	assert.Equal(t, 42.0, got.Score)
	assert.Equal(t, models.ClassificationSuspicious, got.Classification)
	assert.Equal(t, []string{
		"Unusual transaction amount (high deviation)",
		"Transaction from unusual location",
		"Transaction from different device",
	}, got.Reasons)
}

func TestAssess_Fraudulent(t *testing.T) {
	at := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	var history []models.Transaction
	for i := 11; i > 0; i-- {
		history = append(history, txnAt(at.Add(-time.Duration(i)*4*time.Minute), 100))
	}

	txn := txnAt(at, 600)
	txn.MerchantCategory = "Gambling"
	txn.Location = "Macau"
	txn.DeviceID = "device-x"

	got := newTestEngine().Assess(txn, history)

	// 25 amount + 20 velocity + 12 location + 5 device + 7 merchant + 1.5 pattern
	assert.Equal(t, 70.5, got.Score)
	assert.Equal(t, models.ClassificationFraudulent, got.Classification)
	assert.Equal(t, []string{
		"Unusual transaction amount (high deviation)",
		"High transaction velocity detected",
		"Transaction from unusual location",
		"Transaction from different device",
		"High-risk merchant category",
		"Unusual transaction pattern",
	}, got.Reasons)
}

func TestAssess_Deterministic(t *testing.T) {
	engine := newTestEngine()
	txn := txnAt(baseTime, 600)
	txn.Location = "Lagos"
	history := spread(7, 100)

	first := engine.Assess(txn, history)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, engine.Assess(txn, history))
	}
}

func TestAssess_DoesNotMutateInput(t *testing.T) {
	history := spread(5, 100)
	snapshot := append([]models.Transaction(nil), history...)
	txn := txnAt(baseTime, 600)

	newTestEngine().Assess(txn, history)

	assert.Equal(t, snapshot, history)
	assert.Nil(t, txn.FraudStatus)
}

func TestAssess_ScoreIsClamped(t *testing.T) {
	rules := utcRules()
	rules.Weights = Weights{
		AmountAnomaly: 1, Velocity: 1, LocationMismatch: 1, TimeAnomaly: 1,
		DeviceChange: 1, MerchantRisk: 1, PatternDeviation: 1,
	}
	txn := txnAt(baseTime, 600)
	txn.MerchantCategory = "Gambling"

	got := NewEngine(rules).Assess(txn, spread(2, 100))

	assert.Equal(t, 100.0, got.Score)
	assert.Equal(t, models.ClassificationFraudulent, got.Classification)
}

func TestEvaluate_TableOrder(t *testing.T) {
	contributions := newTestEngine().Evaluate(txnAt(baseTime, 600), spread(2, 100))

	require.Len(t, contributions, 7)
	names := make([]string, len(contributions))
	for i, c := range contributions {
		names[i] = c.Factor
	}
	assert.Equal(t, []string{
		FactorAmountAnomaly, FactorVelocity, FactorLocationMismatch, FactorTimeAnomaly,
		FactorDeviceChange, FactorMerchantRisk, FactorPatternDeviation,
	}, names)

	assert.True(t, contributions[0].Triggered())
	assert.InDelta(t, 25.0, contributions[0].Points, 1e-9)
	for _, c := range contributions[1:] {
		assert.False(t, c.Triggered(), c.Factor)
		assert.Empty(t, c.Reason)
	}
}

func TestNewEngine_CopiesRules(t *testing.T) {
	rules := utcRules()
	engine := NewEngine(rules)
	rules.HighRiskCategories[0] = "Groceries"

	got := engine.Assess(txnAt(baseTime, 10), nil)

	assert.Zero(t, got.Score)
}

func TestClassify(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		score float64
		want  models.Classification
	}{
		{0, models.ClassificationSafe},
		{39.99, models.ClassificationSafe},
		{40, models.ClassificationSuspicious},
		{69.99, models.ClassificationSuspicious},
		{70, models.ClassificationFraudulent},
		{100, models.ClassificationFraudulent},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score, rules), "score %.2f", tt.score)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, models.StatusBlocked, StatusFor(models.ClassificationFraudulent))
	assert.Equal(t, models.StatusFlagged, StatusFor(models.ClassificationSuspicious))
	assert.Equal(t, models.StatusApproved, StatusFor(models.ClassificationSafe))
}

func TestAssess_ConcurrentUseSharedHistory(t *testing.T) {
	engine := newTestEngine()
	history := spread(20, 100)
	history[3].Location = "Boston"
	history[7].DeviceID = "device-2"
	snapshot := append([]models.Transaction(nil), history...)

	candidates := make([]models.Transaction, 8)
	for i := range candidates {
		c := txnAt(baseTime.Add(time.Duration(i)*3*time.Hour), float64(100+i*250))
		if i%2 == 1 {
			c.Location = "Lagos"
			c.MerchantCategory = "Cryptocurrency"
		}
		candidates[i] = c
	}
	want := make([]models.FraudAssessment, len(candidates))
	for i, c := range candidates {
		want[i] = engine.Assess(c, history)
	}

	const rounds = 16
	got := make([][]models.FraudAssessment, rounds)
	var wg sync.WaitGroup
	for r := 0; r < rounds; r++ {
		got[r] = make([]models.FraudAssessment, len(candidates))
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			for i, c := range candidates {
				got[r][i] = engine.Assess(c, history)
			}
		}(r)
	}
	wg.Wait()

	for r := range got {
		assert.Equal(t, want, got[r], "round %d", r)
	}
	assert.Equal(t, snapshot, history)
}
