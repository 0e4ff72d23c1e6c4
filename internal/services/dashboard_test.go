package services

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tankkwon/delivery-app/internal/core"
	"github.com/tankkwon/delivery-app/internal/log"
	"github.com/tankkwon/delivery-app/internal/storage"
	"github.com/tankkwon/delivery-app/internal/storage/memory"
)

type recordedEvent struct {
	kind string
	id   int64
	goal int64
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (f *fakePublisher) PublishRecordCreated(_ context.Context, rec core.Record) error {
	return f.add(recordedEvent{kind: "created", id: rec.ID})
}

func (f *fakePublisher) PublishRecordDeleted(_ context.Context, id int64) error {
	return f.add(recordedEvent{kind: "deleted", id: id})
}

func (f *fakePublisher) PublishGoalUpdated(_ context.Context, goal int64) error {
	return f.add(recordedEvent{kind: "goal", goal: goal})
}

func (f *fakePublisher) add(e recordedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

const seededRecords = `[
	{"id":1,"date":"2025-03-15","platform":"coupang","deliveryCount":2,"amount":10000,"memo":""},
	{"id":2,"date":"2025-03-15","platform":"baemin","amount":6000,"memo":"legacy"},
	{"id":3,"date":"2025-03-10","platform":"yogiyo","deliveryCount":3,"amount":15000,"memo":""},
	{"id":4,"date":"2025-03-01","platform":"other","deliveryCount":1,"amount":4000,"memo":""},
	{"id":5,"date":"2025-02-20","platform":"coupang","deliveryCount":4,"amount":20000,"memo":""},
	{"id":6,"date":"2024-12-31","platform":"baemin","deliveryCount":1,"amount":9000,"memo":""}
]`

func newTestDashboard(t *testing.T, opts ...Option) (*Dashboard, *memory.Store) {
	t.Helper()
	kv := memory.NewSeeded(map[string]string{
		storage.KeyRecords: seededRecords,
		storage.KeyGoal:    "100000",
	})
	opts = append([]Option{WithClock(fixedClock), WithLogger(log.Discard())}, opts...)
	d := NewDashboard(kv, opts...)
	d.Load(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = d.Close(ctx)
	})
	return d, kv
}

func TestDashboardStats(t *testing.T) {
	d, _ := newTestDashboard(t)

	tests := []struct {
		period     core.Period
		platform   core.Platform
		total      int64
		count      int
		deliveries int64
		average    int64
	}{
		{core.PeriodToday, core.AllPlatforms, 16000, 2, 3, 5333},
		{core.PeriodToday, core.Coupang, 10000, 1, 2, 5000},
		{core.PeriodWeek, core.AllPlatforms, 31000, 3, 6, 5167},
		{core.PeriodThisMonth, core.AllPlatforms, 35000, 4, 7, 5000},
		{core.PeriodMonth, core.AllPlatforms, 55000, 5, 11, 5000},
		{core.PeriodAll, core.AllPlatforms, 64000, 6, 12, 5333},
		{core.PeriodAll, core.Yogiyo, 15000, 1, 3, 5000},
	}
	for _, tt := range tests {
		t.Run(string(tt.period)+"/"+string(tt.platform), func(t *testing.T) {
			got := d.Stats(tt.period, tt.platform)
			if got.Total != tt.total || got.RecordCount != tt.count || got.TotalDeliveries != tt.deliveries || got.Average != tt.average {
				t.Fatalf("Stats = %+v, want total=%d count=%d deliveries=%d average=%d",
					got, tt.total, tt.count, tt.deliveries, tt.average)
			}
		})
	}
}

func TestDashboardQueriesAreIdempotent(t *testing.T) {
	d, _ := newTestDashboard(t)

	if !reflect.DeepEqual(d.Stats(core.PeriodMonth, core.AllPlatforms), d.Stats(core.PeriodMonth, core.AllPlatforms)) {
		t.Fatal("Stats not idempotent")
	}
	if !reflect.DeepEqual(d.DailySeries(7), d.DailySeries(7)) {
		t.Fatal("DailySeries not idempotent")
	}
	if !reflect.DeepEqual(d.MonthlySeries(), d.MonthlySeries()) {
		t.Fatal("MonthlySeries not idempotent")
	}
	if !reflect.DeepEqual(d.Overview(), d.Overview()) {
		t.Fatal("Overview not idempotent")
	}
}

func TestDashboardGoalStatus(t *testing.T) {
	d, _ := newTestDashboard(t)
	ctx := context.Background()

	got := d.GoalStatus()
	want := GoalStatus{Goal: 100000, Set: true, ThisMonthTotal: 35000, Progress: 35, Remaining: 65000}
	if got != want {
		t.Fatalf("GoalStatus = %+v, want %+v", got, want)
	}

	if err := d.SetGoal(ctx, 30000); err != nil {
		t.Fatalf("SetGoal: %v", err)
	}
	got = d.GoalStatus()
	if got.Progress != 100 || got.Remaining != -5000 || !got.Achieved {
		t.Fatalf("exceeded GoalStatus = %+v", got)
	}

	if err := d.ClearGoal(ctx); err != nil {
		t.Fatalf("ClearGoal: %v", err)
	}
	got = d.GoalStatus()
	if got.Set || got.Progress != 0 || got.Achieved {
		t.Fatalf("cleared GoalStatus = %+v", got)
	}
}

func TestDashboardOverview(t *testing.T) {
	d, _ := newTestDashboard(t)
	o := d.Overview()

	if o.Date != "2025-03-15" {
		t.Errorf("Date = %s", o.Date)
	}
	if o.Today.Total != 16000 || o.Week.Total != 31000 || o.Month.Total != 55000 {
		t.Errorf("totals = %d/%d/%d", o.Today.Total, o.Week.Total, o.Month.Total)
	}
	if len(o.TodayByPlatform) != len(core.Platforms) {
		t.Fatalf("TodayByPlatform has %d entries", len(o.TodayByPlatform))
	}
	if o.TodayByPlatform[0].Platform != core.Coupang || o.TodayByPlatform[0].Amount != 10000 {
		t.Errorf("coupang today = %+v", o.TodayByPlatform[0])
	}
	if o.TodayByPlatform[1].Amount != 6000 || o.TodayByPlatform[2].Amount != 0 {
		t.Errorf("baemin/yogiyo today = %+v/%+v", o.TodayByPlatform[1], o.TodayByPlatform[2])
	}
	if o.Goal.Goal != 100000 {
		t.Errorf("Goal = %+v", o.Goal)
	}
}

func TestDashboardDeleteVisibility(t *testing.T) {
	d, _ := newTestDashboard(t)
	ctx := context.Background()

	before := d.Stats(core.PeriodAll, core.AllPlatforms)
	if err := d.DeleteRecord(ctx, 3); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	after := d.Stats(core.PeriodAll, core.AllPlatforms)
	if after.Total != before.Total-15000 || after.RecordCount != before.RecordCount-1 {
		t.Fatalf("stats after delete = %+v (before %+v)", after, before)
	}
	for _, g := range d.History() {
		for _, r := range g.Records {
			if r.ID == 3 {
				t.Fatal("deleted record still in history")
			}
		}
	}
	if cell := d.Calendar(2025, 3).Days[9]; cell.Total != 0 {
		t.Fatalf("calendar still shows deleted record: %+v", cell)
	}
}

func TestDashboardPublishesEvents(t *testing.T) {
	pub := &fakePublisher{}
	d, _ := newTestDashboard(t, WithEventPublisher(pub))
	ctx := context.Background()

	rec, err := d.AddRecord(ctx, validInput())
	if err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if err := d.DeleteRecord(ctx, rec.ID); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if err := d.DeleteRecord(ctx, 999999); err != nil {
		t.Fatalf("DeleteRecord unknown: %v", err)
	}
	if err := d.SetGoal(ctx, 500000); err != nil {
		t.Fatalf("SetGoal: %v", err)
	}
	if _, err := d.AddRecord(ctx, core.RecordInput{Date: "bad", Platform: core.Coupang}); err == nil {
		t.Fatal("expected validation error")
	}

	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := []recordedEvent{
		{kind: "created", id: rec.ID},
		{kind: "deleted", id: rec.ID},
		{kind: "goal", goal: 500000},
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if !reflect.DeepEqual(pub.events, want) {
		t.Fatalf("events = %+v, want %+v", pub.events, want)
	}
}

func TestDashboardPublishFailureDoesNotFailCommand(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	d, _ := newTestDashboard(t, WithEventPublisher(pub))

	rec, err := d.AddRecord(context.Background(), validInput())
	if err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if _, ok := d.Record(rec.ID); !ok {
		t.Fatal("record missing after publish failure")
	}
}

// stalledPublisher blocks every publish until release is closed or the
// publish context ends.
type stalledPublisher struct {
	release chan struct{}
	calls   atomic.Int32
	aborted atomic.Int32
}

func (p *stalledPublisher) wait(ctx context.Context) error {
	p.calls.Add(1)
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		p.aborted.Add(1)
		return ctx.Err()
	}
}

func (p *stalledPublisher) PublishRecordCreated(ctx context.Context, _ core.Record) error {
	return p.wait(ctx)
}

func (p *stalledPublisher) PublishRecordDeleted(ctx context.Context, _ int64) error {
	return p.wait(ctx)
}

func (p *stalledPublisher) PublishGoalUpdated(ctx context.Context, _ int64) error {
	return p.wait(ctx)
}

func TestDashboardCommandsDoNotWaitForPublisher(t *testing.T) {
	pub := &stalledPublisher{release: make(chan struct{})}
	d, _ := newTestDashboard(t, WithEventPublisher(pub))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 3; i++ {
			if _, err := d.AddRecord(ctx, validInput()); err != nil {
				done <- err
				return
			}
		}
		done <- d.SetGoal(ctx, 300000)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("command failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("commands blocked on a stalled publisher")
	}
	if got := len(d.Records()); got != 9 {
		t.Fatalf("records = %d, want 9", got)
	}

	close(pub.release)
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := pub.calls.Load(); got != 4 {
		t.Fatalf("publisher calls = %d, want 4", got)
	}
}

func TestDashboardCloseAbandonsStalledPublisher(t *testing.T) {
	pub := &stalledPublisher{release: make(chan struct{})}
	d, _ := newTestDashboard(t, WithEventPublisher(pub))

	if _, err := d.AddRecord(context.Background(), validInput()); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if _, err := d.AddRecord(context.Background(), validInput()); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Close = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Close took %v", elapsed)
	}
	if got := pub.aborted.Load(); got != 1 {
		t.Fatalf("aborted publishes = %d, want 1", got)
	}
	if got := pub.calls.Load(); got != 1 {
		t.Fatalf("publisher calls = %d, want 1, queued event should be dropped", got)
	}

	// Commands after Close still succeed.
	if _, err := d.AddRecord(context.Background(), validInput()); err != nil {
		t.Fatalf("AddRecord after Close: %v", err)
	}
}

func TestDashboardReload(t *testing.T) {
	d, kv := newTestDashboard(t)
	ctx := context.Background()

	// Another process rewrites the store.
	_ = kv.Set(ctx, storage.KeyRecords, `[{"id":9,"date":"2025-03-15","platform":"other","deliveryCount":1,"amount":1000,"memo":""}]`)
	_ = kv.Set(ctx, storage.KeyGoal, "777")

	d.Reload(ctx, storage.KeyGoal)
	if d.Goal() != 777 {
		t.Fatalf("Goal() = %d after reload", d.Goal())
	}
	if len(d.Records()) != 6 {
		t.Fatalf("records reloaded although only the goal changed")
	}

	d.Reload(ctx)
	if got := d.Records(); len(got) != 1 || got[0].ID != 9 {
		t.Fatalf("Records() after reload = %+v", got)
	}

	// Ids keep increasing past anything seen before the reload.
	rec, err := d.AddRecord(ctx, validInput())
	if err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if rec.ID <= 9 {
		t.Fatalf("id %d not above reloaded ids", rec.ID)
	}
}

func TestDashboardPlatformRatio(t *testing.T) {
	d, _ := newTestDashboard(t)

	total, shares := d.PlatformRatio(core.PeriodThisMonth)
	if total != 35000 {
		t.Fatalf("total = %d, want 35000", total)
	}
	// 35000 this month: coupang 10000, baemin 6000, yogiyo 15000, other 4000.
	want := []int64{29, 17, 43, 11}
	for i, s := range shares {
		if s.Percent != want[i] {
			t.Errorf("%s percent = %d, want %d", s.Platform, s.Percent, want[i])
		}
	}
}

func TestDashboardPlatformRatioAcrossMidnight(t *testing.T) {
	// Each clock reading is one millisecond later, starting just before
	// midnight, so a second reading would land on the next day.
	var reads atomic.Int32
	start := time.Date(2025, 3, 15, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	clock := func() time.Time {
		n := reads.Add(1)
		return start.Add(time.Duration(n-1) * time.Millisecond)
	}
	d, _ := newTestDashboard(t, WithClock(clock))

	reads.Store(0)
	total, shares := d.PlatformRatio(core.PeriodToday)
	if n := reads.Load(); n != 1 {
		t.Fatalf("clock read %d times, want 1", n)
	}
	var sum int64
	for _, s := range shares {
		sum += s.Amount
	}
	if total != 16000 || sum != total {
		t.Fatalf("total = %d, share sum = %d, want both 16000", total, sum)
	}
}

func TestDashboardCalendarSeesWrites(t *testing.T) {
	d, _ := newTestDashboard(t)
	ctx := context.Background()

	first := d.Calendar(2025, 3)
	if first.MonthTotal != 35000 {
		t.Fatalf("MonthTotal = %d, want 35000", first.MonthTotal)
	}
	first.Days[14].Total = -1 // callers own the returned grid

	if got := d.Calendar(2025, 3); got.Days[14].Total != 16000 {
		t.Fatalf("cached grid was mutated: %+v", got.Days[14])
	}

	if _, err := d.AddRecord(ctx, validInput()); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if got := d.Calendar(2025, 3); got.MonthTotal != 47000 || got.Days[14].Total != 28000 {
		t.Fatalf("calendar after add = total %d, day15 %+v", got.MonthTotal, got.Days[14])
	}

	if err := d.DeleteRecord(ctx, 1); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if got := d.Calendar(2025, 3); got.MonthTotal != 37000 {
		t.Fatalf("calendar after delete = %d, want 37000", got.MonthTotal)
	}
}
