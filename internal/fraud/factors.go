package fraud

import (
	"time"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
)

// Factor names, in evaluation order.
const (
	FactorAmountAnomaly    = "amount_anomaly"
	FactorVelocity         = "velocity"
	FactorLocationMismatch = "location_mismatch"
	FactorTimeAnomaly      = "time_anomaly"
	FactorDeviceChange     = "device_change"
	FactorMerchantRisk     = "merchant_risk"
	FactorPatternDeviation = "pattern_deviation"
)

const recentLocationWindow = 10

// input is everything a factor may look at for one assessment.
type input struct {
	txn     models.Transaction
	history []models.Transaction
	stats   UserStatistics
	rules   Rules
}

// factor is one row of the scoring table.
type factor struct {
	name     string
	weight   float64
	evaluate func(in input) float64
	reason   func(value float64) string
}

func fixedReason(text string) func(float64) string {
	return func(float64) string { return text }
}

func factorTable(w Weights) []factor {
	return []factor{
		{
			name:     FactorAmountAnomaly,
			weight:   w.AmountAnomaly,
			evaluate: amountAnomaly,
			reason: func(v float64) string {
				if v > 0.7 {
					return "Unusual transaction amount (high deviation)"
				}
				return "Unusual transaction amount (moderate deviation)"
			},
		},
		{
			name:     FactorVelocity,
			weight:   w.Velocity,
			evaluate: velocity,
			reason:   fixedReason("High transaction velocity detected"),
		},
		{
			name:     FactorLocationMismatch,
			weight:   w.LocationMismatch,
			evaluate: locationMismatch,
			reason:   fixedReason("Transaction from unusual location"),
		},
		{
			name:     FactorTimeAnomaly,
			weight:   w.TimeAnomaly,
			evaluate: timeAnomaly,
			reason:   fixedReason("Transaction at unusual time"),
		},
		{
			name:     FactorDeviceChange,
			weight:   w.DeviceChange,
			evaluate: deviceChange,
			reason:   fixedReason("Transaction from different device"),
		},
		{
			name:     FactorMerchantRisk,
			weight:   w.MerchantRisk,
			evaluate: merchantRisk,
			reason:   fixedReason("High-risk merchant category"),
		},
		{
			name:     FactorPatternDeviation,
			weight:   w.PatternDeviation,
			evaluate: patternDeviation,
			reason:   fixedReason("Unusual transaction pattern"),
		},
	}
}

func amountAnomaly(in input) float64 {
	if in.stats.AvgAmount == 0 {
		return 0
	}

	ratio := in.txn.Amount / in.stats.AvgAmount
	switch {
	case ratio > 5:
		return 1.0
	case ratio > 3:
		return 0.7
	case ratio > 2:
		return 0.4
	case ratio < 0.1:
		// very small amounts are typical of card testing
		return 0.3
	}
	return 0
}

// velocity checks the hourly window before the daily one regardless of
// which branch would score higher.
func velocity(in input) float64 {
	at := in.txn.Timestamp
	hourAgo := at.Add(-time.Hour)
	dayAgo := at.Add(-24 * time.Hour)

	var hourly, daily int
	for _, t := range in.history {
		if !t.Timestamp.Before(at) {
			continue
		}
		if !t.Timestamp.Before(hourAgo) {
			hourly++
		}
		if !t.Timestamp.Before(dayAgo) {
			daily++
		}
	}

	switch {
	case hourly > 10:
		return 1.0
	case hourly > 5:
		return 0.6
	case daily > 50:
		return 0.8
	case daily > 30:
		return 0.5
	}
	return 0
}

func locationMismatch(in input) float64 {
	if len(in.history) == 0 {
		return 0
	}

	place := in.txn.Place()
	if contains(in.stats.CommonLocations, place) {
		return 0
	}

	recent := in.history
	if len(recent) > recentLocationWindow {
		recent = recent[len(recent)-recentLocationWindow:]
	}
	for _, t := range recent {
		if t.Place() == place {
			return 0.4
		}
	}
	return 0.8
}

func isUnusualHour(h int) bool {
	return h >= 2 && h <= 5
}

func timeAnomaly(in input) float64 {
	if len(in.history) == 0 {
		return 0
	}

	if !isUnusualHour(in.txn.Timestamp.In(in.rules.Location).Hour()) {
		return 0
	}
	for _, h := range in.stats.TransactionHours {
		if isUnusualHour(h) {
			return 0
		}
	}
	return 0.6
}

func deviceChange(in input) float64 {
	if len(in.history) == 0 || in.txn.DeviceID == "" {
		return 0
	}
	if !contains(in.stats.CommonDevices, in.txn.DeviceID) {
		return 0.5
	}
	return 0
}

func merchantRisk(in input) float64 {
	if in.rules.isHighRisk(in.txn.MerchantCategory) {
		return 0.7
	}
	return 0
}

func patternDeviation(in input) float64 {
	if len(in.history) < 5 {
		return 0
	}

	deviations := 0
	if !contains(in.stats.CommonMerchants, in.txn.MerchantCategory) {
		deviations++
	}
	if in.txn.Amount > in.stats.MaxAmount*2 {
		deviations++
	}

	if deviations > 1 {
		return 0.3
	}
	return 0
}
