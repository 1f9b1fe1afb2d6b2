package recurrence

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/starboard/internal/chore"
	"github.com/dukerupert/starboard/internal/clock"
	"github.com/dukerupert/starboard/internal/database"
	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/model"
	"github.com/dukerupert/starboard/internal/store"
)

func verifiedTask(freq model.Frequency, verifiedAt time.Time) model.Task {
	return model.Task{
		Title:       "Feed the cat",
		AssignedTo:  "kid-1",
		Status:      model.StatusVerified,
		Frequency:   freq,
		CompletedAt: &verifiedAt,
		VerifiedAt:  &verifiedAt,
	}
}

func TestShouldReset(t *testing.T) {
	verified := time.Date(2024, 1, 10, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name string
		task model.Task
		now  time.Time
		want bool
	}{
		{"daily same day", verifiedTask(model.FrequencyDaily, verified), verified.Add(time.Second), false},
		{"daily next day", verifiedTask(model.FrequencyDaily, verified), verified.Add(2 * time.Minute), true},
		{"weekly 6d23h", verifiedTask(model.FrequencyWeekly, verified), verified.Add(6*24*time.Hour + 23*time.Hour), false},
		{"weekly 7d", verifiedTask(model.FrequencyWeekly, verified), verified.Add(7 * 24 * time.Hour), true},
		{"one-time never", verifiedTask(model.FrequencyOneTime, verified), verified.Add(365 * 24 * time.Hour), false},
		{"pending untouched", func() model.Task {
			tk := verifiedTask(model.FrequencyDaily, verified)
			tk.Status = model.StatusPending
			return tk
		}(), verified.Add(48 * time.Hour), false},
		{"pool untouched", func() model.Task {
			tk := verifiedTask(model.FrequencyDaily, verified)
			tk.AssignedTo = model.PoolAssignee
			return tk
		}(), verified.Add(48 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldReset(tt.task, tt.now, time.UTC); got != tt.want {
				t.Errorf("ShouldReset = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldResetUsesLocationForDates(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// 23:00 local on the 10th is 04:00 UTC on the 11th.
	verified := time.Date(2024, 1, 10, 23, 0, 0, 0, loc)
	now := time.Date(2024, 1, 10, 23, 30, 0, 0, loc)

	task := verifiedTask(model.FrequencyDaily, verified.UTC())
	if ShouldReset(task, now, loc) {
		t.Error("same local day must not reset")
	}
	if !ShouldReset(task, now.Add(time.Hour), loc) {
		t.Error("next local day must reset")
	}
}

type fixture struct {
	stores    *store.Stores
	bus       *events.Bus
	clock     *clock.Fixed
	scheduler *Scheduler
}

func setupScheduler(t *testing.T, now time.Time, opts Options) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bus := events.NewBus(nil)
	stores := store.New(db, bus)
	clk := clock.NewFixed(now)
	return &fixture{
		stores:    stores,
		bus:       bus,
		clock:     clk,
		scheduler: NewScheduler(stores, bus, clk, nil, opts),
	}
}

func (f *fixture) create(t *testing.T, task model.Task) *model.Task {
	t.Helper()
	created, err := f.stores.Tasks.Create(context.Background(), &task)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return created
}

func (f *fixture) get(t *testing.T, id string) *model.Task {
	t.Helper()
	task, err := f.stores.Tasks.GetByID(context.Background(), id)
	if err != nil || task == nil {
		t.Fatalf("get task %s: %v", id, err)
	}
	return task
}

func TestSweepResetsEligibleTasks(t *testing.T) {
	now := time.Date(2024, 1, 11, 0, 1, 0, 0, time.UTC)
	f := setupScheduler(t, now, Options{Mode: ModePoll})
	ctx := context.Background()

	evidence := "photo-1"
	dailyTask := verifiedTask(model.FrequencyDaily, now.Add(-2*time.Minute))
	dailyTask.EvidenceRef = &evidence
	daily := f.create(t, dailyTask)
	weeklyFresh := f.create(t, verifiedTask(model.FrequencyWeekly, now.Add(-(6*24+23)*time.Hour)))
	weeklyOld := f.create(t, verifiedTask(model.FrequencyWeekly, now.Add(-7*24*time.Hour)))
	oneTime := f.create(t, verifiedTask(model.FrequencyOneTime, now.Add(-30*24*time.Hour)))

	res, err := f.scheduler.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Scanned != 4 || res.Reset != 2 {
		t.Errorf("result = %+v, want 4 scanned 2 reset", res)
	}

	got := f.get(t, daily.ID)
	if got.Status != model.StatusPending || got.CompletedAt != nil || got.VerifiedAt != nil || got.EvidenceRef != nil {
		t.Errorf("daily task not reset cleanly: %+v", got)
	}
	if f.get(t, weeklyOld.ID).Status != model.StatusPending {
		t.Error("weekly task verified 7 days ago was not reset")
	}
	if f.get(t, weeklyFresh.ID).Status != model.StatusVerified {
		t.Error("weekly task verified 6d23h ago was reset")
	}
	gotOneTime := f.get(t, oneTime.ID)
	if gotOneTime.Status != model.StatusVerified || gotOneTime.VerifiedAt == nil || !gotOneTime.UpdatedAt.Equal(oneTime.UpdatedAt) {
		t.Errorf("one-time task was mutated: %+v", gotOneTime)
	}

	res, err = f.scheduler.Sweep(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if res.Reset != 0 {
		t.Errorf("second sweep reset %d tasks, want 0", res.Reset)
	}
}

func TestConcurrentSweepsConverge(t *testing.T) {
	now := time.Date(2024, 1, 11, 8, 0, 0, 0, time.UTC)
	f := setupScheduler(t, now, Options{Mode: ModePoll})
	ctx := context.Background()

	const tasks = 10
	for i := 0; i < tasks; i++ {
		f.create(t, verifiedTask(model.FrequencyDaily, now.Add(-24*time.Hour)))
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.scheduler.Sweep(ctx)
			if err != nil {
				t.Errorf("sweep: %v", err)
				return
			}
			mu.Lock()
			total += res.Reset
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != tasks {
		t.Errorf("concurrent sweeps reset %d tasks in total, want %d", total, tasks)
	}
	all, err := f.stores.Tasks.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, task := range all {
		if task.Status != model.StatusPending {
			t.Errorf("task %s status = %q, want pending", task.ID, task.Status)
		}
	}
}

func TestResetKeepsHistory(t *testing.T) {
	verifiedAt := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	f := setupScheduler(t, verifiedAt, Options{Mode: ModePoll})
	ctx := context.Background()

	engine := chore.NewEngine(f.stores, f.clock, nil, chore.Options{Atomic: true})
	kid, err := f.stores.Users.Create(ctx, model.UserInput{Name: "Sam", Role: model.RoleDependent}, verifiedAt)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	points := 5
	in := model.NewTaskInput("Feed the cat", kid.ID, model.Daily{})
	in.Points = &points
	task, err := engine.AddTask(ctx, in)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	if _, err := engine.Complete(ctx, task.ID, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := engine.Verify(ctx, task.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}

	f.clock.Set(time.Date(2024, 1, 11, 7, 0, 0, 0, time.UTC))
	res, err := f.scheduler.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Reset != 1 {
		t.Errorf("reset = %d, want 1", res.Reset)
	}
	if got := f.get(t, task.ID); got.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}

	entries, err := f.stores.History.List(ctx, store.HistoryFilter{UserID: kid.ID})
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 1 || entries[0].Date != "2024-01-10" || entries[0].Points != 5 {
		t.Errorf("history = %+v, want the single 2024-01-10 entry", entries)
	}
}

func TestStaleResetDoesNotUndoNewVerification(t *testing.T) {
	verifiedAt := time.Date(2024, 1, 10, 18, 0, 0, 0, time.UTC)
	f := setupScheduler(t, verifiedAt, Options{Mode: ModePoll})
	ctx := context.Background()

	engine := chore.NewEngine(f.stores, f.clock, nil, chore.Options{Atomic: true})
	kid, err := f.stores.Users.Create(ctx, model.UserInput{Name: "Sam", Role: model.RoleDependent}, verifiedAt)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	points := 5
	in := model.NewTaskInput("Feed the cat", kid.ID, model.Daily{})
	in.Points = &points
	task, err := engine.AddTask(ctx, in)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	if _, err := engine.Verify(ctx, task.ID); err != nil {
		t.Fatalf("verify yesterday: %v", err)
	}

	// A sweeper reads the task after yesterday's verification...
	stale := f.get(t, task.ID)

	// ...while another sweep resets it and the task is done again today.
	f.clock.Set(time.Date(2024, 1, 11, 7, 0, 0, 0, time.UTC))
	if res, err := f.scheduler.Sweep(ctx); err != nil || res.Reset != 1 {
		t.Fatalf("sweep: %+v, %v", res, err)
	}
	f.clock.Set(time.Date(2024, 1, 11, 17, 0, 0, 0, time.UTC))
	if _, err := engine.Complete(ctx, task.ID, nil); err != nil {
		t.Fatalf("complete today: %v", err)
	}
	if _, err := engine.Verify(ctx, task.ID); err != nil {
		t.Fatalf("verify today: %v", err)
	}

	ok, err := f.stores.Tasks.Reset(ctx, stale.ID, *stale.VerifiedAt, f.clock.Now())
	if err != nil {
		t.Fatalf("stale reset: %v", err)
	}
	if ok {
		t.Error("reset from the old read applied")
	}
	if got := f.get(t, task.ID); got.Status != model.StatusVerified {
		t.Errorf("status = %q, want verified", got.Status)
	}

	// A sweep later the same day must not reset it either.
	if res, err := f.scheduler.Sweep(ctx); err != nil || res.Reset != 0 {
		t.Errorf("same-day sweep: %+v, %v", res, err)
	}
	if _, err := engine.Verify(ctx, task.ID); err == nil {
		t.Error("second verify today should fail")
	}
	entries, err := f.stores.History.List(ctx, store.HistoryFilter{TaskID: task.ID})
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("history has %d entries, want one per day", len(entries))
	}
}

func TestRunReactsToTaskChanges(t *testing.T) {
	now := time.Date(2024, 1, 11, 8, 0, 0, 0, time.UTC)
	f := setupScheduler(t, now, Options{Mode: ModeReactive, Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	f.scheduler.Start(ctx)
	defer f.scheduler.Stop()
	defer cancel()

	// Wait for the subscription so the create below is observed.
	deadline := time.Now().Add(5 * time.Second)
	for f.bus.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("scheduler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	task := f.create(t, verifiedTask(model.FrequencyDaily, now.Add(-24*time.Hour)))

	for {
		if f.get(t, task.ID).Status == model.StatusPending {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("task was not reset after change notification")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPollModeWithoutBus(t *testing.T) {
	f := setupScheduler(t, time.Date(2024, 1, 11, 8, 0, 0, 0, time.UTC), Options{Mode: ModeReactive})
	s := NewScheduler(f.stores, nil, f.clock, nil, Options{Mode: ModeReactive})
	if s.mode != ModePoll {
		t.Errorf("mode = %q, want poll when no bus is given", s.mode)
	}
	if s.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", s.interval, DefaultInterval)
	}
}
