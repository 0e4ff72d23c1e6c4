package stats

import (
	"sort"

	"github.com/tankkwon/delivery-app/internal/core"
)

// DayGroup is one date of the record history.
type DayGroup struct {
	Date    string        `json:"date"`
	Total   int64         `json:"total"`
	Records []core.Record `json:"records"`
}

// History groups records by date, newest date first. Records inside a group
// keep their insertion order.
func History(records []core.Record) []DayGroup {
	byDate := make(map[string]int)
	var groups []DayGroup
	for _, r := range records {
		i, ok := byDate[r.Date]
		if !ok {
			i = len(groups)
			byDate[r.Date] = i
			groups = append(groups, DayGroup{Date: r.Date})
		}
		groups[i].Records = append(groups[i].Records, r)
		groups[i].Total += r.Amount
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].Date > groups[b].Date })
	if groups == nil {
		return []DayGroup{}
	}
	return groups
}
