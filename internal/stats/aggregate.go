package stats

import (
	"time"

	"github.com/tankkwon/delivery-app/internal/core"
)

// Summary is the statistics tuple for a record subset. The four values are
// always computed together.
type Summary struct {
	Total           int64 `json:"total"`
	RecordCount     int   `json:"recordCount"`
	TotalDeliveries int64 `json:"totalDeliveries"`
	// Average is income per delivery, rounded half away from zero.
	Average int64 `json:"average"`
}

// Totals is an amount and delivery count pair.
type Totals struct {
	Amount     int64 `json:"amount"`
	Deliveries int64 `json:"deliveries"`
}

// Aggregate reduces records to a Summary. Legacy records without a delivery
// count contribute one delivery.
func Aggregate(records []core.Record) Summary {
	var s Summary
	for _, r := range records {
		s.Total += r.Amount
		s.TotalDeliveries += r.Deliveries()
	}
	s.RecordCount = len(records)
	if s.TotalDeliveries > 0 {
		s.Average = core.DivRound(s.Total, s.TotalDeliveries)
	}
	return s
}

// Compute filters records by period and platform and aggregates the result.
func Compute(records []core.Record, period core.Period, platform core.Platform, now time.Time) Summary {
	return Aggregate(Select(records, period, platform, now))
}

func (t *Totals) add(r core.Record) {
	t.Amount += r.Amount
	t.Deliveries += r.Deliveries()
}
