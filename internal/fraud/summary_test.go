package fraud

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
)

func scored(c models.Classification) models.Transaction {
	t := txnAt(baseTime, 10)
	t.FraudStatus = &models.FraudAssessment{Classification: c}
	return t
}

func TestSummarize(t *testing.T) {
	var txns []models.Transaction
	for i := 0; i < 2; i++ {
		txns = append(txns, scored(models.ClassificationFraudulent))
	}
	for i := 0; i < 3; i++ {
		txns = append(txns, scored(models.ClassificationSuspicious))
	}
	for i := 0; i < 5; i++ {
		txns = append(txns, scored(models.ClassificationSafe))
	}

	got := Summarize(txns)

	assert.Equal(t, models.Summary{
		Total:      10,
		Fraudulent: 2,
		Suspicious: 3,
		Safe:       5,
		FraudRate:  "20.00",
	}, got)
}

func TestSummarize_Empty(t *testing.T) {
	got := Summarize(nil)

	assert.Equal(t, 0, got.Total)
	assert.Equal(t, "0", got.FraudRate)
}

func TestSummarize_UnscoredCountsTowardTotalOnly(t *testing.T) {
	txns := []models.Transaction{
		scored(models.ClassificationFraudulent),
		txnAt(baseTime, 10),
		txnAt(baseTime, 10),
	}

	got := Summarize(txns)

	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 1, got.Fraudulent)
	assert.Zero(t, got.Safe)
	assert.Equal(t, "33.33", got.FraudRate)
}

func TestRate(t *testing.T) {
	assert.Equal(t, "0", Rate(0, 0))
	assert.Equal(t, "0.00", Rate(0, 4))
	assert.Equal(t, "66.67", Rate(2, 3))
	assert.Equal(t, "100.00", Rate(5, 5))
}
