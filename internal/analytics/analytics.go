// Package analytics builds reporting rollups from scored transactions.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/fraud"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
)

const (
	dateLayout = "2006-01-02"
	topN       = 10
	unknown    = "Unknown"
)

// Dashboard is the full reporting payload.
type Dashboard struct {
	Summary         models.Summary       `json:"summary"`
	TimeSeries      []DailyRisk          `json:"time_series"`
	HighRiskRegions []RegionRisk         `json:"high_risk_regions"`
	HighRiskUsers   []UserRisk           `json:"high_risk_users"`
	VolumeData      []DailyVolume        `json:"volume_data"`
	PaymentMethods  []PaymentMethodShare `json:"payment_methods"`
	Period          Period               `json:"period"`
}

// Period echoes the requested date range. Nil bounds are open.
type Period struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}

// NewPeriod builds a Period, leaving zero times open.
func NewPeriod(from, to time.Time) Period {
	var p Period
	if !from.IsZero() {
		f := from.UTC()
		p.From = &f
	}
	if !to.IsZero() {
		t := to.UTC()
		p.To = &t
	}
	return p
}

// DailyRisk is the fraud rate for one calendar day (UTC).
type DailyRisk struct {
	Date       string `json:"date"`
	Total      int    `json:"total"`
	Fraudulent int    `json:"fraudulent"`
	Suspicious int    `json:"suspicious"`
	FraudRate  string `json:"fraud_rate"`
}

// RegionRisk ranks a location by weighted fraud incidence.
type RegionRisk struct {
	Location   string `json:"location"`
	Total      int    `json:"total"`
	Fraudulent int    `json:"fraudulent"`
	Suspicious int    `json:"suspicious"`
	FraudRate  string `json:"fraud_rate"`
	RiskScore  string `json:"risk_score"`

	risk decimal.Decimal
}

// UserRisk ranks a user by fraud rate.
type UserRisk struct {
	UserID     string `json:"user_id"`
	Total      int    `json:"total"`
	Fraudulent int    `json:"fraudulent"`
	Suspicious int    `json:"suspicious"`
	FraudRate  string `json:"fraud_rate"`

	rate decimal.Decimal
}

// DailyVolume is the count and amount processed on one day (UTC).
type DailyVolume struct {
	Date        string  `json:"date"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// PaymentMethodShare is the distribution of one payment method.
type PaymentMethodShare struct {
	Method      string  `json:"method"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
	Percentage  string  `json:"percentage"`
}

type counter struct {
	key        string
	total      int
	fraudulent int
	suspicious int
	amount     decimal.Decimal
}

func (c *counter) add(t models.Transaction) {
	c.total++
	c.amount = c.amount.Add(decimal.NewFromFloat(t.Amount))
	if t.FraudStatus == nil {
		return
	}
	switch t.FraudStatus.Classification {
	case models.ClassificationFraudulent:
		c.fraudulent++
	case models.ClassificationSuspicious:
		c.suspicious++
	}
}

// groupBy buckets transactions by key, keeping first-seen order.
func groupBy(txns []models.Transaction, key func(models.Transaction) string) []*counter {
	index := make(map[string]*counter)
	var groups []*counter
	for _, t := range txns {
		k := key(t)
		c, ok := index[k]
		if !ok {
			c = &counter{key: k}
			index[k] = c
			groups = append(groups, c)
		}
		c.add(t)
	}
	return groups
}

func byDate(t models.Transaction) string {
	return t.Timestamp.UTC().Format(dateLayout)
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// BuildDashboard computes every rollup. User rankings are only included when
// includeUsers is set, which callers reserve for an unscoped admin view.
func BuildDashboard(txns []models.Transaction, includeUsers bool) Dashboard {
	d := Dashboard{
		Summary:         fraud.Summarize(txns),
		TimeSeries:      TimeSeries(txns),
		HighRiskRegions: HighRiskRegions(txns),
		HighRiskUsers:   []UserRisk{},
		VolumeData:      Volume(txns),
		PaymentMethods:  PaymentMethods(txns),
	}
	if includeUsers {
		d.HighRiskUsers = HighRiskUsers(txns)
	}
	return d
}

// TimeSeries returns daily fraud rates in date order.
func TimeSeries(txns []models.Transaction) []DailyRisk {
	groups := groupBy(txns, byDate)
	out := make([]DailyRisk, 0, len(groups))
	for _, g := range groups {
		out = append(out, DailyRisk{
			Date:       g.key,
			Total:      g.total,
			Fraudulent: g.fraudulent,
			Suspicious: g.suspicious,
			FraudRate:  fraud.Rate(g.fraudulent, g.total),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// HighRiskRegions returns the ten locations with the highest risk score,
// where fraudulent transactions weigh twice as much as suspicious ones.
func HighRiskRegions(txns []models.Transaction) []RegionRisk {
	groups := groupBy(txns, func(t models.Transaction) string {
		if p := t.Place(); p != "" {
			return p
		}
		return unknown
	})

	out := make([]RegionRisk, 0, len(groups))
	for _, g := range groups {
		risk := decimal.NewFromInt(int64(2*g.fraudulent + g.suspicious)).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(int64(g.total)), 2)
		out = append(out, RegionRisk{
			Location:   g.key,
			Total:      g.total,
			Fraudulent: g.fraudulent,
			Suspicious: g.suspicious,
			FraudRate:  fraud.Rate(g.fraudulent, g.total),
			RiskScore:  risk.StringFixed(2),
			risk:       risk,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].risk.GreaterThan(out[j].risk) })
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// HighRiskUsers returns up to ten users with at least one flagged
// transaction, highest fraud rate first.
func HighRiskUsers(txns []models.Transaction) []UserRisk {
	groups := groupBy(txns, func(t models.Transaction) string { return t.UserID })

	out := make([]UserRisk, 0)
	for _, g := range groups {
		if g.fraudulent == 0 && g.suspicious == 0 {
			continue
		}
		rate := decimal.NewFromInt(int64(g.fraudulent)).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(int64(g.total)), 2)
		out = append(out, UserRisk{
			UserID:     g.key,
			Total:      g.total,
			Fraudulent: g.fraudulent,
			Suspicious: g.suspicious,
			FraudRate:  rate.StringFixed(2),
			rate:       rate,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].rate.GreaterThan(out[j].rate) })
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// Volume returns daily transaction counts and amounts in date order.
func Volume(txns []models.Transaction) []DailyVolume {
	groups := groupBy(txns, byDate)
	out := make([]DailyVolume, 0, len(groups))
	for _, g := range groups {
		out = append(out, DailyVolume{
			Date:        g.key,
			Count:       g.total,
			TotalAmount: money(g.amount),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// PaymentMethods returns the share of each payment method, most used first.
func PaymentMethods(txns []models.Transaction) []PaymentMethodShare {
	groups := groupBy(txns, func(t models.Transaction) string {
		if t.PaymentMethod == "" {
			return unknown
		}
		return t.PaymentMethod
	})

	out := make([]PaymentMethodShare, 0, len(groups))
	for _, g := range groups {
		out = append(out, PaymentMethodShare{
			Method:      g.key,
			Count:       g.total,
			TotalAmount: money(g.amount),
			Percentage:  fraud.Rate(g.total, len(txns)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
