package stats

import (
	"reflect"
	"testing"
	"time"

	"github.com/tankkwon/delivery-app/internal/core"
)

var sampleNow = time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)

func sampleRecords() []core.Record {
	return []core.Record{
		{ID: 1, Date: "2025-03-15", Platform: core.Coupang, DeliveryCount: 2, Amount: 10000},
		{ID: 2, Date: "2025-03-08", Platform: core.Baemin, Amount: 5000}, // legacy, no count
		{ID: 3, Date: "2025-03-07", Platform: core.Coupang, DeliveryCount: 1, Amount: 7000},
		{ID: 4, Date: "2025-02-15", Platform: core.Yogiyo, DeliveryCount: 4, Amount: 20000},
		{ID: 5, Date: "2025-02-14", Platform: core.Other, DeliveryCount: 1, Amount: 3000},
		{ID: 6, Date: "2024-03-15", Platform: core.Coupang, DeliveryCount: 1, Amount: 1000},
		{ID: 7, Date: "2024-03-14", Platform: core.Baemin, DeliveryCount: 1, Amount: 2000},
		{ID: 8, Date: "2025-03-01", Platform: core.Other, DeliveryCount: 1, Amount: 4000},
	}
}

func ids(records []core.Record) []int64 {
	out := []int64{}
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestSelectPeriods(t *testing.T) {
	tests := []struct {
		period core.Period
		want   []int64
	}{
		{core.PeriodToday, []int64{1}},
		{core.PeriodWeek, []int64{1, 2}},
		{core.PeriodMonth, []int64{1, 2, 3, 4, 8}},
		{core.PeriodThisMonth, []int64{1, 2, 3, 8}},
		{core.PeriodYear, []int64{1, 2, 3, 4, 5, 6, 8}},
		{core.PeriodAll, []int64{1, 2, 3, 4, 5, 6, 7, 8}},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			got := ids(Select(sampleRecords(), tt.period, core.AllPlatforms, sampleNow))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Select(%s) = %v, want %v", tt.period, got, tt.want)
			}
		})
	}
}

func TestSelectPlatformIntersection(t *testing.T) {
	got := ids(Select(sampleRecords(), core.PeriodMonth, core.Coupang, sampleNow))
	if want := []int64{1, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("coupang/month = %v, want %v", got, want)
	}
	got = ids(Select(sampleRecords(), core.PeriodAll, core.Yogiyo, sampleNow))
	if want := []int64{4}; !reflect.DeepEqual(got, want) {
		t.Fatalf("yogiyo/all = %v, want %v", got, want)
	}
	got = ids(Select(sampleRecords(), core.PeriodToday, core.Baemin, sampleNow))
	if len(got) != 0 {
		t.Fatalf("baemin/today = %v, want none", got)
	}
}

func TestSelectDoesNotModifyInput(t *testing.T) {
	in := sampleRecords()
	before := append([]core.Record(nil), in...)
	_ = Select(in, core.PeriodWeek, core.Coupang, sampleNow)
	if !reflect.DeepEqual(in, before) {
		t.Fatalf("input records were modified")
	}
}

func TestWindowStart(t *testing.T) {
	tests := []struct {
		name   string
		period core.Period
		now    time.Time
		want   string
		ok     bool
	}{
		{"week", core.PeriodWeek, sampleNow, "2025-03-08", true},
		{"month", core.PeriodMonth, sampleNow, "2025-02-15", true},
		{"month clamps to february end", core.PeriodMonth, time.Date(2025, 3, 31, 9, 0, 0, 0, time.UTC), "2025-02-28", true},
		{"month clamps in leap year", core.PeriodMonth, time.Date(2024, 3, 30, 9, 0, 0, 0, time.UTC), "2024-02-29", true},
		{"month across year", core.PeriodMonth, time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), "2024-12-10", true},
		{"year from leap day", core.PeriodYear, time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC), "2023-02-28", true},
		{"year", core.PeriodYear, sampleNow, "2024-03-15", true},
		{"today", core.PeriodToday, sampleNow, "2025-03-15", true},
		{"this month is not rolling", core.PeriodThisMonth, sampleNow, "", false},
		{"all", core.PeriodAll, sampleNow, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := WindowStart(tt.period, tt.now)
			if got != tt.want || ok != tt.ok {
				t.Errorf("WindowStart() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSelectUsesLocationOfNow(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)
	// 2025-03-15 23:30 UTC is already 2025-03-16 in Seoul.
	now := time.Date(2025, 3, 15, 23, 30, 0, 0, time.UTC).In(kst)
	records := []core.Record{
		{ID: 1, Date: "2025-03-15", Platform: core.Coupang, Amount: 1},
		{ID: 2, Date: "2025-03-16", Platform: core.Coupang, Amount: 1},
	}
	got := ids(Select(records, core.PeriodToday, core.AllPlatforms, now))
	if want := []int64{2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("today in KST = %v, want %v", got, want)
	}
}
