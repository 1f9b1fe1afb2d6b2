// Package chore implements the task lifecycle: creation, completion under
// time rules, guardian verification and the ledger entries that go with it.
package chore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/starboard/internal/apperr"
	"github.com/dukerupert/starboard/internal/clock"
	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/metrics"
	"github.com/dukerupert/starboard/internal/model"
	"github.com/dukerupert/starboard/internal/store"
	"github.com/dukerupert/starboard/internal/validate"
)

type Engine struct {
	stores   *store.Stores
	clock    clock.Clock
	validate *validate.Validator
	logger   *slog.Logger
	metrics  *metrics.Metrics
	atomic   bool
}

type Options struct {
	// Atomic runs each status write and its ledger append in one
	// transaction. When false the two writes are independent.
	Atomic  bool
	Metrics *metrics.Metrics
}

func NewEngine(stores *store.Stores, clk clock.Clock, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		stores:   stores,
		clock:    clk,
		validate: validate.New(),
		logger:   logger.With("component", "chore"),
		metrics:  opts.Metrics,
		atomic:   opts.Atomic,
	}
}

func (e *Engine) AddTask(ctx context.Context, in model.TaskInput) (*model.Task, error) {
	if err := e.checkInput(ctx, in); err != nil {
		return nil, err
	}

	now := e.clock.Now()
	t := &model.Task{Status: model.StatusPending, CreatedAt: now, UpdatedAt: now}
	in.Apply(t)

	created, err := e.stores.Tasks.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	e.logger.Info("task added", "task_id", created.ID, "assigned_to", created.AssignedTo, "frequency", created.Frequency)
	return created, nil
}

// UpdateTask rewrites the editable fields. Status, timestamps and evidence
// are left as they are.
func (e *Engine) UpdateTask(ctx context.Context, id string, in model.TaskInput) (*model.Task, error) {
	if _, err := e.load(ctx, e.stores, id); err != nil {
		return nil, err
	}
	if err := e.checkInput(ctx, in); err != nil {
		return nil, err
	}
	return e.stores.Tasks.Update(ctx, id, in, e.clock.Now())
}

func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	if _, err := e.load(ctx, e.stores, id); err != nil {
		return err
	}
	if err := e.stores.Tasks.Delete(ctx, id); err != nil {
		return err
	}
	e.logger.Info("task deleted", "task_id", id)
	return nil
}

func (e *Engine) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return e.load(ctx, e.stores, id)
}

func (e *Engine) ListTasks(ctx context.Context) ([]model.Task, error) {
	return e.stores.Tasks.List(ctx)
}

func (e *Engine) checkInput(ctx context.Context, in model.TaskInput) error {
	if err := e.validate.Struct(in); err != nil {
		return err
	}
	if in.AssignedTo == model.PoolAssignee {
		return nil
	}
	u, err := e.stores.Users.GetByID(ctx, in.AssignedTo)
	if err != nil {
		return err
	}
	if u == nil {
		return apperr.Invalid("assigned_to", "is not a known user")
	}
	return nil
}

// Complete marks a pending task done, subject to its time window, due date
// and due time. No points are recorded until a guardian verifies it.
func (e *Engine) Complete(ctx context.Context, id string, evidenceRef *string) (task *model.Task, err error) {
	defer func() { e.metrics.Transition("complete", apperr.Kind(err)) }()

	t, err := e.load(ctx, e.stores, id)
	if err != nil {
		return nil, err
	}
	if t.IsPool() || t.Status != model.StatusPending {
		return nil, e.invalid("complete", t)
	}

	now := e.clock.Now()
	if err := checkCompletable(*t, now); err != nil {
		return nil, err
	}

	next := *t
	next.Status = model.StatusCompleted
	next.CompletedAt = &now
	next.EvidenceRef = evidenceRef
	next.UpdatedAt = now

	if err := e.transition(ctx, e.stores, "complete", t.Status, &next); err != nil {
		return nil, err
	}
	e.logger.Info("task completed", "task_id", id, "assigned_to", t.AssignedTo)
	return &next, nil
}

// checkCompletable applies the time rules in order: time window, due date,
// then due time. Times compare as zero-padded HH:MM strings.
func checkCompletable(t model.Task, now time.Time) error {
	hhmm := now.Format(clock.TimeLayout)
	today := now.Format(clock.DateLayout)

	if w := t.TimeWindow; w != nil && (hhmm < w.Start || hhmm > w.End) {
		return &apperr.TimeWindowError{Start: w.Start, End: w.End, Now: hhmm}
	}
	if t.DueDate != nil && *t.DueDate < today {
		return &apperr.DueDateError{DueDate: *t.DueDate, Today: today}
	}
	if t.DueTime != nil && (t.DueDate == nil || *t.DueDate == today) && hhmm > *t.DueTime {
		return &apperr.TimeWindowError{End: *t.DueTime, Now: hhmm}
	}
	return nil
}

// Verify records a guardian's approval and credits the task's points. A
// pending task may be verified directly, without evidence.
func (e *Engine) Verify(ctx context.Context, id string) (task *model.Task, err error) {
	defer func() { e.metrics.Transition("verify", apperr.Kind(err)) }()

	t, err := e.load(ctx, e.stores, id)
	if err != nil {
		return nil, err
	}
	if t.IsPool() || (t.Status != model.StatusCompleted && t.Status != model.StatusPending) {
		return nil, e.invalid("verify", t)
	}

	now := e.clock.Now()
	next := *t
	next.Status = model.StatusVerified
	next.VerifiedAt = &now
	next.UpdatedAt = now

	entry := e.entryFor(*t, model.HistoryVerified, t.PointValue(), now)
	if err := e.transitionWithEntry(ctx, "verify", t.Status, &next, entry); err != nil {
		return nil, err
	}
	e.logger.Info("task verified", "task_id", id, "assigned_to", t.AssignedTo, "points", entry.Points, "forced", t.Status == model.StatusPending)
	return &next, nil
}

// Reject sends a completed task back to pending and discards its evidence.
func (e *Engine) Reject(ctx context.Context, id string) (task *model.Task, err error) {
	defer func() { e.metrics.Transition("reject", apperr.Kind(err)) }()

	t, err := e.load(ctx, e.stores, id)
	if err != nil {
		return nil, err
	}
	if t.IsPool() || t.Status != model.StatusCompleted {
		return nil, e.invalid("reject", t)
	}

	next := *t
	next.Status = model.StatusPending
	next.CompletedAt = nil
	next.EvidenceRef = nil
	next.UpdatedAt = e.clock.Now()

	if err := e.transition(ctx, e.stores, "reject", t.Status, &next); err != nil {
		return nil, err
	}
	e.logger.Info("task rejected", "task_id", id, "assigned_to", t.AssignedTo)
	return &next, nil
}

// Fail marks an open task as missed and records a zero-point miss.
func (e *Engine) Fail(ctx context.Context, id string) (task *model.Task, err error) {
	defer func() { e.metrics.Transition("fail", apperr.Kind(err)) }()

	t, err := e.load(ctx, e.stores, id)
	if err != nil {
		return nil, err
	}
	if t.IsPool() || (t.Status != model.StatusPending && t.Status != model.StatusCompleted) {
		return nil, e.invalid("fail", t)
	}

	now := e.clock.Now()
	next := *t
	next.Status = model.StatusExpired
	next.UpdatedAt = now

	entry := e.entryFor(*t, model.HistoryMissed, 0, now)
	if err := e.transitionWithEntry(ctx, "fail", t.Status, &next, entry); err != nil {
		return nil, err
	}
	e.logger.Info("task failed", "task_id", id, "assigned_to", t.AssignedTo, "responsibility", t.IsResponsibility)
	return &next, nil
}

func (e *Engine) entryFor(t model.Task, status model.HistoryStatus, points int, now time.Time) *model.HistoryEntry {
	return &model.HistoryEntry{
		TaskID:           t.ID,
		TaskTitle:        t.Title,
		AssignedTo:       t.AssignedTo,
		Points:           points,
		Status:           status,
		IsResponsibility: t.IsResponsibility,
		Date:             now.Format(clock.DateLayout),
		CompletedAt:      t.CompletedAt,
		CreatedAt:        now,
	}
}

// transitionWithEntry performs the conditional status write and then the
// ledger append. The status write goes first so that a second caller loses
// the race before it can append anything.
func (e *Engine) transitionWithEntry(ctx context.Context, op string, from model.Status, next *model.Task, entry *model.HistoryEntry) error {
	write := func(s *store.Stores) error {
		if err := e.transition(ctx, s, op, from, next); err != nil {
			return err
		}
		if _, err := s.History.Append(ctx, entry); err != nil {
			return fmt.Errorf("append %s entry for task %s: %w", entry.Status, next.ID, err)
		}
		e.metrics.LedgerAppend(string(entry.Status))
		return nil
	}

	if !e.atomic {
		err := write(e.stores)
		if err != nil && !errors.Is(err, apperr.ErrInvalidTransition) && !errors.Is(err, apperr.ErrNotFound) {
			e.logger.Error("ledger append failed after status write", "op", op, "task_id", next.ID, "error", err)
		}
		return err
	}
	return e.stores.InTx(ctx, write)
}

func (e *Engine) transition(ctx context.Context, s *store.Stores, op string, from model.Status, next *model.Task) error {
	ok, err := s.Tasks.Transition(ctx, from, next)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	current, err := e.load(ctx, s, next.ID)
	if err != nil {
		return err
	}
	e.logger.Debug("lost status race", "op", op, "task_id", next.ID, "expected", from, "actual", current.Status)
	return e.invalid(op, current)
}

func (e *Engine) load(ctx context.Context, s *store.Stores, id string) (*model.Task, error) {
	t, err := s.Tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound(events.CollectionTasks, id)
	}
	return t, nil
}

func (e *Engine) invalid(op string, t *model.Task) error {
	if t.IsPool() {
		return apperr.Transition(op, model.PoolAssignee)
	}
	return apperr.Transition(op, string(t.Status))
}

// IsActiveToday evaluates visibility against the engine's clock.
func (e *Engine) IsActiveToday(task model.Task, vacation bool) bool {
	return IsActiveToday(task, e.clock.Now(), vacation)
}

// TodayFor returns the user's tasks that are active today.
func (e *Engine) TodayFor(ctx context.Context, userID string) ([]model.Task, error) {
	u, err := e.stores.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound(events.CollectionUsers, userID)
	}

	vacation, err := e.stores.Users.VacationActive(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := e.stores.Tasks.ListByAssignee(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	active := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if IsActiveToday(t, now, vacation) {
			active = append(active, t)
		}
	}
	return active, nil
}
