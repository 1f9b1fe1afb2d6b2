package recurrence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/starboard/internal/clock"
	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/metrics"
	"github.com/dukerupert/starboard/internal/store"
)

type Mode string

const (
	// ModeReactive sweeps whenever the task collection changes, and on the
	// interval so that date rollover is noticed without any writes.
	ModeReactive Mode = "reactive"
	// ModePoll sweeps on the interval only.
	ModePoll Mode = "poll"
)

const DefaultInterval = time.Minute

type Options struct {
	Mode     Mode
	Interval time.Duration
	Metrics  *metrics.Metrics
}

// Scheduler runs recurrence sweeps over the live task set.
type Scheduler struct {
	mu       sync.RWMutex
	stores   *store.Stores
	bus      *events.Bus
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	mode     Mode
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a scheduler. bus may be nil, in which case the
// scheduler polls regardless of opts.Mode.
func NewScheduler(stores *store.Stores, bus *events.Bus, clk clock.Clock, logger *slog.Logger, opts Options) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Mode == "" {
		opts.Mode = ModeReactive
	}
	if bus == nil {
		opts.Mode = ModePoll
	}
	return &Scheduler{
		stores:   stores,
		bus:      bus,
		clock:    clk,
		logger:   logger.With("component", "recurrence"),
		metrics:  opts.Metrics,
		mode:     opts.Mode,
		interval: opts.Interval,
	}
}

type SweepResult struct {
	Scanned int `json:"scanned"`
	Reset   int `json:"reset"`
}

// Sweep resets every task whose period has elapsed. Each reset is
// conditional on the status and verified_at read here, so concurrent sweeps
// converge, and a task that moved, vanished or was verified again in the
// meantime is skipped.
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	tasks, err := s.stores.Tasks.List(ctx)
	if err != nil {
		return res, fmt.Errorf("sweep: %w", err)
	}
	res.Scanned = len(tasks)

	now := s.clock.Now()
	for _, t := range tasks {
		if !ShouldReset(t, now, now.Location()) {
			continue
		}

		ok, err := s.stores.Tasks.Reset(ctx, t.ID, *t.VerifiedAt, now)
		if err != nil {
			return res, fmt.Errorf("sweep: reset task %s: %w", t.ID, err)
		}
		if !ok {
			s.logger.Debug("task changed during sweep", "task_id", t.ID)
			continue
		}
		res.Reset++
		s.logger.Info("task reset", "task_id", t.ID, "frequency", t.Frequency, "assigned_to", t.AssignedTo)
	}

	s.metrics.Sweep(res.Reset)
	return res, nil
}

// Run sweeps once and then keeps sweeping according to the scheduler's mode
// until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	var changes <-chan events.Change
	if s.mode == ModeReactive {
		ch, unsubscribe := s.bus.Subscribe(events.CollectionTasks)
		defer unsubscribe()
		changes = ch
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			drain(changes)
			s.sweep(ctx)
		}
	}
}

// drain discards queued changes so a burst of writes causes one sweep.
func drain(ch <-chan events.Change) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	res, err := s.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("recurrence sweep failed", "error", err)
		}
		return
	}
	if res.Reset > 0 {
		s.logger.Info("recurrence sweep", "scanned", res.Scanned, "reset", res.Reset)
	}
}

// Start runs the scheduler in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		s.Run(ctx)
	}()
	s.logger.Info("recurrence scheduler started", "mode", s.mode, "interval", s.interval)
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
