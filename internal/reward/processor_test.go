package reward

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/starboard/internal/apperr"
	"github.com/dukerupert/starboard/internal/clock"
	"github.com/dukerupert/starboard/internal/database"
	"github.com/dukerupert/starboard/internal/ledger"
	"github.com/dukerupert/starboard/internal/model"
	"github.com/dukerupert/starboard/internal/store"
)

var now = time.Date(2024, 1, 12, 18, 0, 0, 0, time.UTC)

type fixture struct {
	db        *sql.DB
	stores    *store.Stores
	processor *Processor
	kid       *model.User
	parent    *model.User
}

func setupProcessor(t *testing.T, atomic bool) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	stores := store.New(db, nil)
	kid, err := stores.Users.Create(ctx, model.UserInput{Name: "Sam", Role: model.RoleDependent}, now)
	if err != nil {
		t.Fatalf("create dependent: %v", err)
	}
	parent, err := stores.Users.Create(ctx, model.UserInput{Name: "Alex", Role: model.RoleGuardian}, now)
	if err != nil {
		t.Fatalf("create guardian: %v", err)
	}
	return &fixture{
		db:        db,
		stores:    stores,
		processor: NewProcessor(stores, clock.NewFixed(now), nil, Options{Atomic: atomic}),
		kid:       kid,
		parent:    parent,
	}
}

func (f *fixture) credit(t *testing.T, points int) {
	t.Helper()
	_, err := f.stores.History.Append(context.Background(), &model.HistoryEntry{
		TaskID: "t1", TaskTitle: "Chores", AssignedTo: f.kid.ID, Points: points,
		Status: model.HistoryVerified, Date: "2024-01-10",
	})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
}

func (f *fixture) reward(t *testing.T, cost int) *model.Reward {
	t.Helper()
	r, err := f.processor.CreateReward(context.Background(), model.RewardInput{
		Title: "Cinema trip", Cost: cost, CreatedBy: f.parent.ID,
	})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	return r
}

func (f *fixture) balance(t *testing.T) int {
	t.Helper()
	entries, err := f.stores.History.List(context.Background(), store.HistoryFilter{UserID: f.kid.ID})
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	return ledger.Balance(entries, f.kid.ID)
}

func TestRequestRejectedWhenBalanceTooLow(t *testing.T) {
	f := setupProcessor(t, true)
	ctx := context.Background()
	f.credit(t, 40)
	r := f.reward(t, 50)

	_, err := f.processor.Request(ctx, r.ID, f.kid.ID)
	var ibe *apperr.InsufficientBalanceError
	if !errors.As(err, &ibe) {
		t.Fatalf("err = %v, want InsufficientBalanceError", err)
	}
	if ibe.Balance != 40 || ibe.Cost != 50 {
		t.Errorf("error = %+v", ibe)
	}

	reds, err := f.processor.ListRedemptions(ctx, store.RedemptionFilter{})
	if err != nil {
		t.Fatalf("list redemptions: %v", err)
	}
	if len(reds) != 0 {
		t.Errorf("expected no redemption document, got %d", len(reds))
	}
}

func TestApproveDebitsOnce(t *testing.T) {
	f := setupProcessor(t, true)
	ctx := context.Background()
	f.credit(t, 60)
	r := f.reward(t, 50)

	red, err := f.processor.Request(ctx, r.ID, f.kid.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if red.Status != model.RedemptionPending || red.RewardTitle != "Cinema trip" || red.Cost != 50 {
		t.Errorf("redemption = %+v", red)
	}

	approved, err := f.processor.Approve(ctx, red.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != model.RedemptionApproved || approved.DecidedAt == nil {
		t.Errorf("approved = %+v", approved)
	}
	if got := f.balance(t); got != 10 {
		t.Errorf("balance = %d, want 10", got)
	}

	entries, _ := f.stores.History.List(ctx, store.HistoryFilter{TaskID: model.RedemptionTaskPrefix + red.ID})
	if len(entries) != 1 || entries[0].Points != -50 || entries[0].Date != "2024-01-12" || entries[0].Status != model.HistoryVerified {
		t.Errorf("debit entries = %+v", entries)
	}

	if _, err := f.processor.Approve(ctx, red.ID); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("second approve: err = %v, want invalid transition", err)
	}
	if got := f.balance(t); got != 10 {
		t.Errorf("balance after second approve = %d, want 10", got)
	}
}

func TestConcurrentApproveDebitsOnce(t *testing.T) {
	f := setupProcessor(t, false)
	ctx := context.Background()
	f.credit(t, 60)
	r := f.reward(t, 50)
	red, err := f.processor.Request(ctx, r.ID, f.kid.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.processor.Approve(ctx, red.ID); err != nil && !errors.Is(err, apperr.ErrInvalidTransition) {
				t.Errorf("approve: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.balance(t); got != 10 {
		t.Errorf("balance = %d, want a single debit leaving 10", got)
	}
}

func TestRejectWritesNoLedgerEntry(t *testing.T) {
	f := setupProcessor(t, true)
	ctx := context.Background()
	f.credit(t, 60)
	r := f.reward(t, 50)
	red, err := f.processor.Request(ctx, r.ID, f.kid.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	rejected, err := f.processor.Reject(ctx, red.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != model.RedemptionRejected {
		t.Errorf("status = %q, want rejected", rejected.Status)
	}
	if got := f.balance(t); got != 60 {
		t.Errorf("balance = %d, want 60", got)
	}
	if _, err := f.processor.Approve(ctx, red.ID); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("approve rejected: err = %v, want invalid transition", err)
	}
}

func TestAtomicApproveRollsBack(t *testing.T) {
	f := setupProcessor(t, true)
	ctx := context.Background()
	f.credit(t, 60)
	r := f.reward(t, 50)
	red, err := f.processor.Request(ctx, r.ID, f.kid.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.db.Exec(`CREATE TRIGGER fail_history BEFORE INSERT ON history BEGIN SELECT RAISE(ABORT, 'injected'); END;`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	if _, err := f.processor.Approve(ctx, red.ID); err == nil {
		t.Fatal("expected approve to fail")
	}
	got, err := f.stores.Redemptions.GetByID(ctx, red.ID)
	if err != nil {
		t.Fatalf("get redemption: %v", err)
	}
	if got.Status != model.RedemptionPending {
		t.Errorf("status = %q, want pending after rollback", got.Status)
	}
	entries, _ := f.stores.History.List(ctx, store.HistoryFilter{TaskID: model.RedemptionTaskPrefix + red.ID})
	if len(entries) != 0 {
		t.Errorf("debit entries = %+v, want none", entries)
	}
	if got := f.balance(t); got != 60 {
		t.Errorf("balance = %d, want 60", got)
	}
}

func TestNonAtomicApproveLeavesPartialWrite(t *testing.T) {
	f := setupProcessor(t, false)
	ctx := context.Background()
	f.credit(t, 60)
	r := f.reward(t, 50)
	red, err := f.processor.Request(ctx, r.ID, f.kid.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.db.Exec(`CREATE TRIGGER fail_history BEFORE INSERT ON history BEGIN SELECT RAISE(ABORT, 'injected'); END;`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	if _, err := f.processor.Approve(ctx, red.ID); err == nil {
		t.Fatal("expected approve to fail")
	}
	got, err := f.stores.Redemptions.GetByID(ctx, red.ID)
	if err != nil {
		t.Fatalf("get redemption: %v", err)
	}
	if got.Status != model.RedemptionApproved {
		t.Errorf("status = %q, want approved with no debit", got.Status)
	}
	entries, _ := f.stores.History.List(ctx, store.HistoryFilter{TaskID: model.RedemptionTaskPrefix + red.ID})
	if len(entries) != 0 {
		t.Errorf("debit entries = %+v, want none", entries)
	}
	if got := f.balance(t); got != 60 {
		t.Errorf("balance = %d, want 60", got)
	}
}

func TestSnapshotSurvivesRewardEdit(t *testing.T) {
	f := setupProcessor(t, true)
	ctx := context.Background()
	f.credit(t, 60)
	r := f.reward(t, 50)
	red, err := f.processor.Request(ctx, r.ID, f.kid.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if _, err := f.processor.UpdateReward(ctx, r.ID, model.RewardInput{Title: "Bowling", Cost: 80, CreatedBy: f.parent.ID}); err != nil {
		t.Fatalf("update reward: %v", err)
	}
	if err := f.processor.DeleteReward(ctx, r.ID); err != nil {
		t.Fatalf("delete reward: %v", err)
	}

	approved, err := f.processor.Approve(ctx, red.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Cost != 50 || approved.RewardTitle != "Cinema trip" {
		t.Errorf("snapshot changed: %+v", approved)
	}
	if got := f.balance(t); got != 10 {
		t.Errorf("balance = %d, want 10", got)
	}
}

func TestRewardValidationAndNotFound(t *testing.T) {
	f := setupProcessor(t, true)
	ctx := context.Background()

	if _, err := f.processor.CreateReward(ctx, model.RewardInput{Cost: 5, CreatedBy: f.parent.ID}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("missing title: err = %v, want validation", err)
	}
	if _, err := f.processor.Request(ctx, "nope", f.kid.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown reward: err = %v, want not found", err)
	}
	if _, err := f.processor.Approve(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown redemption: err = %v, want not found", err)
	}
}
