package subscription

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// UsageRecord is one per-subscription, per-metric counter. The pair
// (SubscriptionID, Metric) is unique at the storage boundary.
type UsageRecord struct {
	SubscriptionID uuid.UUID
	Metric         Metric
	Used           int64
	ResetAt        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UsageReport is the read-side view of a metric's consumption against the
// subscription's frozen limit. Remaining is -1 and the percentages are
// 0/100 sentinels when the limit is unlimited.
type UsageReport struct {
	Limit            int64
	Used             int64
	Remaining        int64
	UsedPercent      float64
	RemainingPercent float64
}

// buildUsageReport derives the report for one metric. limit may be
// Unlimited; used must be non-negative.
func buildUsageReport(limit, used int64) UsageReport {
	report := UsageReport{
		Limit:            limit,
		Used:             used,
		Remaining:        Unlimited,
		UsedPercent:      0,
		RemainingPercent: 100,
	}
	if limit == Unlimited {
		return report
	}

	report.Remaining = max(0, limit-used)
	if limit > 0 {
		report.UsedPercent = roundPercent(float64(used) / float64(limit) * 100)
		report.RemainingPercent = roundPercent(100 - report.UsedPercent)
	} else {
		report.UsedPercent = 100
		report.RemainingPercent = 0
	}
	return report
}

func roundPercent(v float64) float64 {
	return math.Round(v*100) / 100
}
