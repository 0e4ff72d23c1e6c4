package stats

import (
	"fmt"
	"time"

	"github.com/tankkwon/delivery-app/internal/core"
)

// IntensityLevels is the number of heat-map buckets.
const IntensityLevels = 6

// intensityThresholds are the lower bounds of buckets 2..5. Bucket 0 is a
// zero total and bucket 1 is anything below the first threshold.
var intensityThresholds = [...]int64{50_000, 100_000, 150_000, 200_000}

// DayCell is one day of a MonthGrid.
type DayCell struct {
	Day        int    `json:"day"`
	Date       string `json:"date"`
	Weekday    int    `json:"weekday"` // 0 = Sunday
	Total      int64  `json:"total"`
	Deliveries int64  `json:"deliveries"`
	Records    int    `json:"records"`
	Intensity  int    `json:"intensity"`
}

// MonthGrid is the calendar view of one month. FirstWeekday is the number of
// empty leading cells in a Sunday-first week grid.
type MonthGrid struct {
	Year         int       `json:"year"`
	Month        int       `json:"month"`
	FirstWeekday int       `json:"firstWeekday"`
	DaysInMonth  int       `json:"daysInMonth"`
	Days         []DayCell `json:"days"`
	MonthTotal   int64     `json:"monthTotal"`
}

// Intensity classifies a day total into one of IntensityLevels buckets.
// Lower bounds are inclusive: 50000 falls in bucket 2, not bucket 1.
func Intensity(total int64) int {
	if total <= 0 {
		return 0
	}
	for i, threshold := range intensityThresholds {
		if total < threshold {
			return i + 1
		}
	}
	return len(intensityThresholds) + 1
}

// Calendar buckets the records of year/month onto a day grid. month is 1-12.
func Calendar(records []core.Record, year, month int) MonthGrid {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	n := daysIn(year, time.Month(month), time.UTC)
	grid := MonthGrid{
		Year:         year,
		Month:        month,
		FirstWeekday: int(first.Weekday()),
		DaysInMonth:  n,
		Days:         make([]DayCell, n),
	}
	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		date := fmt.Sprintf("%04d-%02d-%02d", year, month, i+1)
		grid.Days[i] = DayCell{
			Day:     i + 1,
			Date:    date,
			Weekday: (grid.FirstWeekday + i) % 7,
		}
		index[date] = i
	}
	for _, r := range records {
		i, ok := index[r.Date]
		if !ok {
			continue
		}
		grid.Days[i].Total += r.Amount
		grid.Days[i].Deliveries += r.Deliveries()
		grid.Days[i].Records++
	}
	for i := range grid.Days {
		grid.Days[i].Intensity = Intensity(grid.Days[i].Total)
		grid.MonthTotal += grid.Days[i].Total
	}
	return grid
}
