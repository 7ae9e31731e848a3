package fraud

import (
	"github.com/shopspring/decimal"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
)

// Summarize counts classifications over already scored transactions.
// Transactions without an assessment only count toward the total.
func Summarize(txns []models.Transaction) models.Summary {
	s := models.Summary{Total: len(txns)}
	for _, t := range txns {
		if t.FraudStatus == nil {
			continue
		}
		switch t.FraudStatus.Classification {
		case models.ClassificationFraudulent:
			s.Fraudulent++
		case models.ClassificationSuspicious:
			s.Suspicious++
		case models.ClassificationSafe:
			s.Safe++
		}
	}
	s.FraudRate = Rate(s.Fraudulent, s.Total)
	return s
}

// Rate formats part/total as a percentage with two decimals, or "0" for an
// empty total.
func Rate(part, total int) string {
	if total == 0 {
		return "0"
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 2).
		StringFixed(2)
}
