package fraud

import (
	"sort"
	"time"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
)

const commonLimit = 3

// UserStatistics is a behavioural baseline derived from a user's history.
// It is recomputed on every assessment and never stored.
type UserStatistics struct {
	AvgAmount        float64
	MaxAmount        float64
	CommonLocations  []string
	CommonMerchants  []string
	CommonDevices    []string
	TransactionHours []int
}

// ComputeStatistics reduces a history into a baseline. Hours are read in loc.
func ComputeStatistics(history []models.Transaction, loc *time.Location) UserStatistics {
	if len(history) == 0 {
		return UserStatistics{}
	}
	if loc == nil {
		loc = time.Local
	}

	var (
		sum       float64
		maxAmount = history[0].Amount
		locations = make([]string, len(history))
		merchants = make([]string, len(history))
		devices   = make([]string, len(history))
		hours     = make([]int, len(history))
	)
	for i, t := range history {
		sum += t.Amount
		if t.Amount > maxAmount {
			maxAmount = t.Amount
		}
		locations[i] = t.Place()
		merchants[i] = t.MerchantCategory
		devices[i] = t.DeviceID
		hours[i] = t.Timestamp.In(loc).Hour()
	}

	return UserStatistics{
		AvgAmount:        sum / float64(len(history)),
		MaxAmount:        maxAmount,
		CommonLocations:  mostCommon(locations, commonLimit),
		CommonMerchants:  mostCommon(merchants, commonLimit),
		CommonDevices:    mostCommon(devices, commonLimit),
		TransactionHours: hours,
	}
}

type valueCount struct {
	value     string
	count     int
	firstSeen int
}

// mostCommon ranks values by count, breaking ties by first appearance.
func mostCommon(values []string, limit int) []string {
	index := make(map[string]int, len(values))
	var counts []valueCount
	for i, v := range values {
		if j, ok := index[v]; ok {
			counts[j].count++
			continue
		}
		index[v] = len(counts)
		counts = append(counts, valueCount{value: v, count: 1, firstSeen: i})
	}

	sort.SliceStable(counts, func(a, b int) bool {
		if counts[a].count != counts[b].count {
			return counts[a].count > counts[b].count
		}
		return counts[a].firstSeen < counts[b].firstSeen
	})

	if len(counts) > limit {
		counts = counts[:limit]
	}
	result := make([]string, len(counts))
	for i, c := range counts {
		result[i] = c.value
	}
	return result
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
