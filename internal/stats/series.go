package stats

import (
	"time"

	"github.com/tankkwon/delivery-app/internal/core"
)

// MonthsInSeries is the fixed length of MonthlySeries.
const MonthsInSeries = 12

// Bucket holds one day or month of a time series. ByPlatform always has an
// entry for every platform in core.Platforms. Total also counts records
// whose platform is not in the current set.
type Bucket struct {
	// Period is YYYY-MM-DD for daily buckets and YYYY-MM for monthly ones.
	Period     string                   `json:"period"`
	ByPlatform map[core.Platform]Totals `json:"byPlatform"`
	Total      Totals                   `json:"total"`
}

// DailySeries returns n buckets for the n calendar days ending today,
// oldest first. Days without records are zero-valued buckets.
func DailySeries(records []core.Record, now time.Time, n int) []Bucket {
	if n <= 0 {
		return []Bucket{}
	}
	today := dateOf(now)
	buckets := make([]Bucket, n)
	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		key := core.FormatDate(today.AddDate(0, 0, i-(n-1)))
		buckets[i] = newBucket(key)
		index[key] = i
	}
	for _, r := range records {
		if i, ok := index[r.Date]; ok {
			buckets[i].add(r)
		}
	}
	return buckets
}

// MonthlySeries returns MonthsInSeries buckets for the calendar months ending
// with the current one, oldest first.
func MonthlySeries(records []core.Record, now time.Time) []Bucket {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	buckets := make([]Bucket, MonthsInSeries)
	index := make(map[string]int, MonthsInSeries)
	for i := 0; i < MonthsInSeries; i++ {
		key := first.AddDate(0, i-(MonthsInSeries-1), 0).Format(core.MonthLayout)
		buckets[i] = newBucket(key)
		index[key] = i
	}
	for _, r := range records {
		if len(r.Date) < len(core.MonthLayout) {
			continue
		}
		if i, ok := index[r.Date[:len(core.MonthLayout)]]; ok {
			buckets[i].add(r)
		}
	}
	return buckets
}

func newBucket(period string) Bucket {
	b := Bucket{Period: period, ByPlatform: make(map[core.Platform]Totals, len(core.Platforms))}
	for _, p := range core.Platforms {
		b.ByPlatform[p] = Totals{}
	}
	return b
}

func (b *Bucket) add(r core.Record) {
	b.Total.add(r)
	if t, ok := b.ByPlatform[r.Platform]; ok {
		t.add(r)
		b.ByPlatform[r.Platform] = t
	}
}
