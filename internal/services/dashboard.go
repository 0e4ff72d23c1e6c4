package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tankkwon/delivery-app/internal/cache"
	"github.com/tankkwon/delivery-app/internal/core"
	"github.com/tankkwon/delivery-app/internal/log"
	"github.com/tankkwon/delivery-app/internal/metrics"
	"github.com/tankkwon/delivery-app/internal/stats"
	"github.com/tankkwon/delivery-app/internal/storage"
)

// EventPublisher receives change notifications after a command has been
// persisted. Events are delivered from a background goroutine in command
// order; failures are logged and never fail the command.
type EventPublisher interface {
	PublishRecordCreated(ctx context.Context, rec core.Record) error
	PublishRecordDeleted(ctx context.Context, id int64) error
	PublishGoalUpdated(ctx context.Context, goal int64) error
}

const (
	publishTimeout = 10 * time.Second
	eventQueueSize = 64

	calendarCacheSize = 24
	calendarCacheTTL  = 30 * time.Minute
)

// GoalStatus is the goal card of the home screen.
type GoalStatus struct {
	Goal           int64 `json:"goal"`
	Set            bool  `json:"set"`
	ThisMonthTotal int64 `json:"thisMonthTotal"`
	Progress       int   `json:"progress"`
	Remaining      int64 `json:"remaining"`
	Achieved       bool  `json:"achieved"`
}

// Overview is everything the home screen shows, computed at one instant.
type Overview struct {
	Date            string                `json:"date"`
	Today           stats.Summary         `json:"today"`
	Week            stats.Summary         `json:"week"`
	Month           stats.Summary         `json:"month"`
	TodayByPlatform []stats.PlatformShare `json:"todayByPlatform"`
	Goal            GoalStatus            `json:"goal"`
}

// Dashboard is the command and query surface over the record store and the
// goal tracker. Every query evaluates against a single clock reading.
type Dashboard struct {
	records *RecordStore
	goal    *GoalTracker
	now     func() time.Time
	events  EventPublisher
	logger  *log.Logger

	// calendars holds month grids keyed by record version and month.
	calendars cache.Cache[stats.MonthGrid]

	queueMu      sync.RWMutex
	queueClosed  bool
	queue        chan queuedEvent
	published    chan struct{}
	abortPublish context.CancelFunc
}

type queuedEvent struct {
	ctx       context.Context
	eventType string
	send      func(context.Context, EventPublisher) error
}

type Option func(*Dashboard)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) { d.now = now }
}

// WithEventPublisher enables change events.
func WithEventPublisher(p EventPublisher) Option {
	return func(d *Dashboard) { d.events = p }
}

func WithLogger(l *log.Logger) Option {
	return func(d *Dashboard) { d.logger = l }
}

func NewDashboard(kv storage.KV, opts ...Option) *Dashboard {
	d := &Dashboard{
		now:       time.Now,
		calendars: cache.NewLRUCache[stats.MonthGrid](calendarCacheSize, calendarCacheTTL),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = log.New(log.DefaultConfig())
	}
	d.records = NewRecordStore(kv, d.logger, d.now)
	d.goal = NewGoalTracker(kv, d.logger)
	d.logger = d.logger.WithComponent(log.ComponentApp)
	if d.events != nil {
		d.startPublisher()
	}
	return d
}

func (d *Dashboard) startPublisher() {
	var stop context.Context
	stop, d.abortPublish = context.WithCancel(context.Background())
	d.queue = make(chan queuedEvent, eventQueueSize)
	d.published = make(chan struct{})
	go d.drainEvents(stop)
}

func (d *Dashboard) drainEvents(stop context.Context) {
	defer close(d.published)
	for ev := range d.queue {
		if stop.Err() != nil {
			d.logger.WarnContext(ev.ctx, "Dropping event on shutdown", log.FieldEventType, ev.eventType)
			metrics.EventsDropped.WithLabelValues("shutdown").Inc()
			continue
		}
		ctx, cancel := context.WithTimeout(ev.ctx, publishTimeout)
		unwatch := context.AfterFunc(stop, cancel)
		err := ev.send(ctx, d.events)
		unwatch()
		cancel()
		if err != nil {
			d.logger.WarnContext(ev.ctx, "Failed to publish event",
				log.FieldOperation, log.OpPublish,
				log.FieldEventType, ev.eventType,
				log.FieldErrorType, log.ErrorTypeNetwork,
				log.FieldError, err)
			metrics.EventsDropped.WithLabelValues("publish_error").Inc()
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
// When ctx ends first, in-flight and remaining events are abandoned and
// ctx's error is returned. Close is safe to call more than once.
func (d *Dashboard) Close(ctx context.Context) error {
	if d.queue == nil {
		return nil
	}
	d.queueMu.Lock()
	if !d.queueClosed {
		d.queueClosed = true
		close(d.queue)
	}
	d.queueMu.Unlock()

	select {
	case <-d.published:
		d.abortPublish()
		return nil
	case <-ctx.Done():
		d.abortPublish()
		<-d.published
		return ctx.Err()
	}
}

// Load reads records and goal from storage.
func (d *Dashboard) Load(ctx context.Context) {
	d.records.Load(ctx)
	d.goal.Load(ctx)
}

// Reload re-reads the given keys, or everything when none are given. Used
// when another process changed the store.
func (d *Dashboard) Reload(ctx context.Context, keys ...string) {
	d.logger.InfoContext(ctx, "Reloading from storage",
		log.FieldOperation, log.OpReload,
		log.FieldKey, keys)
	if len(keys) == 0 {
		d.Load(ctx)
		return
	}
	for _, key := range keys {
		switch key {
		case storage.KeyRecords:
			d.records.Load(ctx)
		case storage.KeyGoal:
			d.goal.Load(ctx)
		default:
			d.logger.DebugContext(ctx, "Ignoring change to unknown key", log.FieldKey, key)
		}
	}
}

// Commands

func (d *Dashboard) AddRecord(ctx context.Context, in core.RecordInput) (core.Record, error) {
	rec, err := d.records.Add(ctx, in)
	if err != nil {
		return core.Record{}, err
	}
	d.publish(ctx, "record.created", func(ctx context.Context, p EventPublisher) error {
		return p.PublishRecordCreated(ctx, rec)
	})
	return rec, nil
}

// DeleteRecord removes a record. Unknown ids are a no-op.
func (d *Dashboard) DeleteRecord(ctx context.Context, id int64) error {
	removed, err := d.records.remove(ctx, id)
	if err != nil {
		return err
	}
	if removed {
		d.publish(ctx, "record.deleted", func(ctx context.Context, p EventPublisher) error {
			return p.PublishRecordDeleted(ctx, id)
		})
	}
	return nil
}

func (d *Dashboard) SetGoal(ctx context.Context, amount int64) error {
	if err := d.goal.SetGoal(ctx, amount); err != nil {
		return err
	}
	d.publish(ctx, "goal.updated", func(ctx context.Context, p EventPublisher) error {
		return p.PublishGoalUpdated(ctx, amount)
	})
	return nil
}

func (d *Dashboard) ClearGoal(ctx context.Context) error {
	return d.SetGoal(ctx, 0)
}

// publish queues an event without blocking the caller. A full queue drops
// the event.
func (d *Dashboard) publish(ctx context.Context, eventType string, send func(context.Context, EventPublisher) error) {
	if d.queue == nil {
		return
	}
	ev := queuedEvent{ctx: context.WithoutCancel(ctx), eventType: eventType, send: send}

	d.queueMu.RLock()
	defer d.queueMu.RUnlock()
	if d.queueClosed {
		d.logger.WarnContext(ctx, "Event published after close", log.FieldEventType, eventType)
		metrics.EventsDropped.WithLabelValues("closed").Inc()
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.logger.WarnContext(ctx, "Event queue full, dropping event",
			log.FieldEventType, eventType,
			"capacity", eventQueueSize)
		metrics.EventsDropped.WithLabelValues("queue_full").Inc()
	}
}

// Queries

func (d *Dashboard) Records() []core.Record {
	return d.records.Records()
}

func (d *Dashboard) Record(id int64) (core.Record, bool) {
	return d.records.Get(id)
}

func (d *Dashboard) Stats(period core.Period, platform core.Platform) stats.Summary {
	return stats.Compute(d.records.Records(), period, platform, d.now())
}

func (d *Dashboard) DailySeries(n int) []stats.Bucket {
	return stats.DailySeries(d.records.Records(), d.now(), n)
}

func (d *Dashboard) MonthlySeries() []stats.Bucket {
	return stats.MonthlySeries(d.records.Records(), d.now())
}

// PlatformRatio returns the period total and its per-platform shares, both
// taken from the same record subset.
func (d *Dashboard) PlatformRatio(period core.Period) (int64, []stats.PlatformShare) {
	selected := stats.Select(d.records.Records(), period, core.AllPlatforms, d.now())
	return stats.Aggregate(selected).Total, stats.PlatformRatio(selected)
}

// Calendar returns the month grid. Grids are cached per record version, so a
// write is visible on the next call.
func (d *Dashboard) Calendar(year, month int) stats.MonthGrid {
	records, version := d.records.Snapshot()
	key := fmt.Sprintf("%d:%04d-%02d", version, year, month)
	if grid, ok := d.calendars.Get(key); ok {
		return cloneGrid(grid)
	}
	grid := stats.Calendar(records, year, month)
	d.calendars.Set(key, grid)
	return cloneGrid(grid)
}

func cloneGrid(g stats.MonthGrid) stats.MonthGrid {
	g.Days = append([]stats.DayCell(nil), g.Days...)
	return g
}

func (d *Dashboard) History() []stats.DayGroup {
	return stats.History(d.records.Records())
}

func (d *Dashboard) Goal() int64 {
	return d.goal.Goal()
}

func (d *Dashboard) GoalStatus() GoalStatus {
	return d.goalStatus(d.records.Records(), d.now())
}

func (d *Dashboard) goalStatus(records []core.Record, now time.Time) GoalStatus {
	total := stats.Compute(records, core.PeriodThisMonth, core.AllPlatforms, now).Total
	goal := d.goal.Goal()
	return GoalStatus{
		Goal:           goal,
		Set:            goal > 0,
		ThisMonthTotal: total,
		Progress:       progress(goal, total),
		Remaining:      goal - total,
		Achieved:       goal > 0 && total >= goal,
	}
}

func (d *Dashboard) Overview() Overview {
	records := d.records.Records()
	now := d.now()
	return Overview{
		Date:            core.FormatDate(now),
		Today:           stats.Compute(records, core.PeriodToday, core.AllPlatforms, now),
		Week:            stats.Compute(records, core.PeriodWeek, core.AllPlatforms, now),
		Month:           stats.Compute(records, core.PeriodMonth, core.AllPlatforms, now),
		TodayByPlatform: stats.PlatformRatio(stats.Select(records, core.PeriodToday, core.AllPlatforms, now)),
		Goal:            d.goalStatus(records, now),
	}
}

// Now returns the dashboard clock reading, so callers can default calendar
// queries to the current month.
func (d *Dashboard) Now() time.Time {
	return d.now()
}
