package engine

import (
	"context"
	"sync"
	"time"

	"github.com/MRamiBalles/TurboTapper/server/internal/platform/logger"
)

// DefaultRegenPeriod is the scheduler period between regeneration ticks.
const DefaultRegenPeriod = 1 * time.Second

// TickFunc receives the tick number, starting at 1.
type TickFunc func(ctx context.Context, tickNumber int64)

// Ticker manages the regeneration heartbeat.
// It does NOT know about energy - only time progression.
type Ticker struct {
	period     time.Duration
	onTick     TickFunc
	logger     *logger.Logger
	tickNumber int64
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// NewTicker creates a new scheduler that calls onTick every period.
func NewTicker(period time.Duration, onTick TickFunc, log *logger.Logger) *Ticker {
	return &Ticker{
		period:   period,
		onTick:   onTick,
		logger:   log,
		stopChan: make(chan struct{}),
	}
}

// Start begins the loop and blocks until ctx is cancelled or Stop is called. Call in a goroutine.
func (t *Ticker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopChan:
			if ctx.Err() == nil {
				t.logger.Info("Regeneration ticker stopped manually.")
			}
			return
		case <-ticker.C:
			t.Step(ctx)
		}
	}
}

// Step fires a single tick immediately.
func (t *Ticker) Step(ctx context.Context) {
	t.tickNumber++
	t.onTick(ctx, t.tickNumber)
}

// Stop gracefully stops the ticker. Safe to call more than once.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}

// TickNumber returns how many ticks have fired. Only meaningful from the ticking goroutine.
func (t *Ticker) TickNumber() int64 {
	return t.tickNumber
}
