package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tankkwon/delivery-app/internal/core"
	"github.com/tankkwon/delivery-app/internal/log"
	"github.com/tankkwon/delivery-app/internal/metrics"
	"github.com/tankkwon/delivery-app/internal/storage"
)

// GoalTracker holds the monthly income goal. 0 means no goal is set.
type GoalTracker struct {
	kv     storage.KV
	logger *log.Logger

	mu   sync.RWMutex
	goal int64
}

func NewGoalTracker(kv storage.KV, logger *log.Logger) *GoalTracker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &GoalTracker{
		kv:     kv,
		logger: logger.WithComponent(log.ComponentGoal),
	}
}

// Load reads the persisted goal. Missing, malformed or negative values
// become 0.
func (g *GoalTracker) Load(ctx context.Context) {
	goal := g.read(ctx)

	g.mu.Lock()
	g.goal = goal
	g.mu.Unlock()

	g.logger.InfoContext(ctx, "Goal loaded", log.FieldGoal, goal, log.FieldOperation, log.OpLoad)
}

func (g *GoalTracker) read(ctx context.Context) int64 {
	raw, ok, err := g.kv.Get(ctx, storage.KeyGoal)
	if err != nil {
		g.recover(ctx, "Failed to read goal, using none", err)
		return 0
	}
	if !ok {
		return 0
	}
	goal, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		g.recover(ctx, "Stored goal is malformed, using none", err)
		return 0
	}
	if goal < 0 {
		g.recover(ctx, "Stored goal is negative, using none", fmt.Errorf("goal %d", goal))
		return 0
	}
	return goal
}

func (g *GoalTracker) recover(ctx context.Context, msg string, err error) {
	metrics.StorageRecoveries.WithLabelValues(storage.KeyGoal).Inc()
	g.logger.WarnContext(ctx, msg, log.FieldKey, storage.KeyGoal, log.FieldError, err)
}

// SetGoal persists a new goal. Negative amounts are rejected.
func (g *GoalTracker) SetGoal(ctx context.Context, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: goal must not be negative", core.ErrInvalidAmount)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.kv.Set(ctx, storage.KeyGoal, strconv.FormatInt(amount, 10)); err != nil {
		metrics.StorageWriteErrors.WithLabelValues(storage.KeyGoal).Inc()
		return fmt.Errorf("persist goal: %w", err)
	}
	g.goal = amount

	metrics.GoalUpdates.Inc()
	g.logger.InfoContext(ctx, "Goal updated", log.FieldGoal, amount, log.FieldOperation, log.OpUpdate)
	return nil
}

// ClearGoal persists 0.
func (g *GoalTracker) ClearGoal(ctx context.Context) error {
	return g.SetGoal(ctx, 0)
}

func (g *GoalTracker) Goal() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.goal
}

// Progress returns the rounded percentage of the goal reached by
// thisMonthTotal, clamped to 100. It is 0 when no goal is set.
func (g *GoalTracker) Progress(thisMonthTotal int64) int {
	return progress(g.Goal(), thisMonthTotal)
}

// Remaining returns goal - thisMonthTotal. It is negative once the goal is
// exceeded.
func (g *GoalTracker) Remaining(thisMonthTotal int64) int64 {
	return g.Goal() - thisMonthTotal
}

func progress(goal, total int64) int {
	if goal <= 0 {
		return 0
	}
	p := core.DivRound(total*100, goal)
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return int(p)
}
