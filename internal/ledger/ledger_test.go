package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukerupert/starboard/internal/apperr"
	"github.com/dukerupert/starboard/internal/clock"
	"github.com/dukerupert/starboard/internal/database"
	"github.com/dukerupert/starboard/internal/model"
	"github.com/dukerupert/starboard/internal/store"
)

func entry(user string, points int, status model.HistoryStatus, date string) model.HistoryEntry {
	return model.HistoryEntry{TaskID: "t", TaskTitle: "Task", AssignedTo: user, Points: points, Status: status, Date: date}
}

func TestBalanceIsAPureFold(t *testing.T) {
	entries := []model.HistoryEntry{
		entry("u", 10, model.HistoryVerified, "2024-01-10"),
		entry("u", -4, model.HistoryVerified, "2024-01-11"),
		entry("u", 0, model.HistoryMissed, "2024-01-11"),
		entry("other", 100, model.HistoryVerified, "2024-01-11"),
	}

	first := Balance(entries, "u")
	second := Balance(entries, "u")
	if first != 6 || second != 6 {
		t.Errorf("Balance = %d then %d, want 6 both times", first, second)
	}
	if got := Balance(nil, "u"); got != 0 {
		t.Errorf("Balance(nil) = %d, want 0", got)
	}
}

func TestSummarizeSplitsEarnedAndSpent(t *testing.T) {
	entries := []model.HistoryEntry{
		entry("u", 10, model.HistoryVerified, "2024-01-10"),
		entry("u", 5, model.HistoryVerified, "2024-01-10"),
		entry("u", -4, model.HistoryVerified, "2024-01-11"),
	}
	pb := Summarize(entries, "u")
	if pb.TotalEarned != 15 || pb.TotalSpent != 4 || pb.Balance != 11 {
		t.Errorf("summary = %+v", pb)
	}
	if pb.Balance != Balance(entries, "u") {
		t.Error("summary balance disagrees with Balance")
	}
}

func TestStatsForWeek(t *testing.T) {
	missed := func(date string, resp bool) model.HistoryEntry {
		e := entry("u", 0, model.HistoryMissed, date)
		e.IsResponsibility = resp
		return e
	}
	redeemed := entry("u", -20, model.HistoryVerified, "2024-01-12")
	redeemed.TaskID = model.RedemptionTaskPrefix + "r1"

	entries := []model.HistoryEntry{
		entry("u", 10, model.HistoryVerified, "2024-01-07"), // previous Sunday
		entry("u", 10, model.HistoryVerified, "2024-01-08"),
		entry("u", 5, model.HistoryVerified, "2024-01-14"),
		redeemed,
		missed("2024-01-08", true),
		missed("2024-01-09", true),
		missed("2024-01-09", false),
		missed("2024-01-10", false),
		missed("2024-01-11", false),
		missed("2024-01-12", true),
		entry("other", 0, model.HistoryMissed, "2024-01-10"),
	}

	// Any day of the week selects the same Monday-based week.
	s := Stats(entries, "u", time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC), DefaultMissedLimit)
	if s.WeekStart != "2024-01-08" || s.WeekEnd != "2024-01-14" {
		t.Errorf("week = %s..%s, want 2024-01-08..2024-01-14", s.WeekStart, s.WeekEnd)
	}
	if s.Earned != 15 || s.Verified != 2 {
		t.Errorf("earned=%d verified=%d, want 15 and 2", s.Earned, s.Verified)
	}
	if s.Spent != 20 {
		t.Errorf("spent = %d, want 20", s.Spent)
	}
	if s.Missed != 6 || s.ResponsibilityMissed != 3 {
		t.Errorf("missed=%d responsibility=%d, want 6 and 3", s.Missed, s.ResponsibilityMissed)
	}
	if !s.PunishmentWarning {
		t.Error("expected punishment warning above limit")
	}

	if s := Stats(entries, "u", time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), 6); s.PunishmentWarning {
		t.Error("missed == limit must not warn")
	}
}

func TestLedgerBalances(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer db.Close()
	ctx := context.Background()
	stores := store.New(db, nil)
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	sam, _ := stores.Users.Create(ctx, model.UserInput{Name: "Sam", Role: model.RoleDependent}, now)
	jo, _ := stores.Users.Create(ctx, model.UserInput{Name: "Jo", Role: model.RoleDependent}, now)
	if _, err := stores.Users.Create(ctx, model.UserInput{Name: "Alex", Role: model.RoleGuardian}, now); err != nil {
		t.Fatalf("create guardian: %v", err)
	}

	debit := entry(sam.ID, -4, model.HistoryVerified, "2024-01-10")
	debit.TaskID = model.RedemptionTaskPrefix + "r1"
	for _, e := range []model.HistoryEntry{
		entry(sam.ID, 10, model.HistoryVerified, "2024-01-10"),
		debit,
		entry(jo.ID, 20, model.HistoryVerified, "2024-01-10"),
	} {
		if _, err := stores.History.Append(ctx, &e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	l := New(stores, clock.NewFixed(now), 0)
	pb, err := l.Balance(ctx, sam.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if pb.Balance != 6 || pb.UserName != "Sam" {
		t.Errorf("balance = %+v, want Sam with 6", pb)
	}

	board, err := l.Balances(ctx)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if len(board) != 2 || board[0].UserID != jo.ID || board[1].Balance != 6 {
		t.Errorf("leaderboard = %+v", board)
	}

	if _, err := l.Balance(ctx, "ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown user: err = %v, want not found", err)
	}

	stats, err := l.Stats(ctx, sam.ID, time.Time{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.WeekStart != "2024-01-08" || stats.Earned != 10 || stats.Spent != 4 {
		t.Errorf("stats = %+v", stats)
	}
}
