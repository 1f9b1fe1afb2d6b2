// Package ledger derives point balances and weekly statistics from history
// entries. History is the only source of truth; nothing here is stored.
package ledger

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/dukerupert/starboard/internal/apperr"
	"github.com/dukerupert/starboard/internal/clock"
	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/model"
	"github.com/dukerupert/starboard/internal/store"
)

// DefaultMissedLimit is the weekly miss count above which a punishment
// warning is raised.
const DefaultMissedLimit = 5

// Balance sums the points of userID's entries.
func Balance(entries []model.HistoryEntry, userID string) int {
	total := 0
	for _, e := range entries {
		if e.AssignedTo == userID {
			total += e.Points
		}
	}
	return total
}

// Summarize splits userID's balance into points earned and points spent.
func Summarize(entries []model.HistoryEntry, userID string) model.PointBalance {
	pb := model.PointBalance{UserID: userID}
	for _, e := range entries {
		if e.AssignedTo != userID {
			continue
		}
		if e.Points >= 0 {
			pb.TotalEarned += e.Points
		} else {
			pb.TotalSpent -= e.Points
		}
	}
	pb.Balance = pb.TotalEarned - pb.TotalSpent
	return pb
}

// Stats summarises userID's entries dated within the Monday-based week
// starting at weekStart.
func Stats(entries []model.HistoryEntry, userID string, weekStart time.Time, missedLimit int) model.WeekStats {
	start := clock.StartOfWeek(weekStart)
	from := start.Format(clock.DateLayout)
	to := start.AddDate(0, 0, 6).Format(clock.DateLayout)

	s := model.WeekStats{UserID: userID, WeekStart: from, WeekEnd: to, MissedLimit: missedLimit}
	for _, e := range entries {
		if e.AssignedTo != userID || e.Date < from || e.Date > to {
			continue
		}
		switch {
		case e.IsRedemption():
			s.Spent -= e.Points
		case e.Status == model.HistoryMissed:
			s.Missed++
			if e.IsResponsibility {
				s.ResponsibilityMissed++
			}
		case e.Status == model.HistoryVerified:
			s.Verified++
			s.Earned += e.Points
		}
	}
	s.PunishmentWarning = s.Missed > missedLimit
	return s
}

type Ledger struct {
	stores      *store.Stores
	clock       clock.Clock
	missedLimit int
}

// New returns a ledger warning when a week has more than missedLimit misses. A
// missedLimit of zero or less means DefaultMissedLimit.
func New(stores *store.Stores, clk clock.Clock, missedLimit int) *Ledger {
	if missedLimit <= 0 {
		missedLimit = DefaultMissedLimit
	}
	return &Ledger{stores: stores, clock: clk, missedLimit: missedLimit}
}

func (l *Ledger) Balance(ctx context.Context, userID string) (*model.PointBalance, error) {
	u, err := l.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := l.stores.History.List(ctx, store.HistoryFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	pb := Summarize(entries, userID)
	pb.UserName = u.Name
	return &pb, nil
}

// Balances returns every dependent's balance, highest first.
func (l *Ledger) Balances(ctx context.Context) ([]model.PointBalance, error) {
	users, err := l.stores.Users.ListByRole(ctx, model.RoleDependent)
	if err != nil {
		return nil, err
	}
	entries, err := l.stores.History.List(ctx, store.HistoryFilter{})
	if err != nil {
		return nil, err
	}

	balances := make([]model.PointBalance, 0, len(users))
	for _, u := range users {
		pb := Summarize(entries, u.ID)
		pb.UserName = u.Name
		balances = append(balances, pb)
	}
	slices.SortStableFunc(balances, func(a, b model.PointBalance) int {
		return cmp.Compare(b.Balance, a.Balance)
	})
	return balances, nil
}

func (l *Ledger) History(ctx context.Context, f store.HistoryFilter) ([]model.HistoryEntry, error) {
	return l.stores.History.List(ctx, f)
}

// Stats returns the statistics for the week containing day. A zero day
// means the current week.
func (l *Ledger) Stats(ctx context.Context, userID string, day time.Time) (*model.WeekStats, error) {
	if _, err := l.user(ctx, userID); err != nil {
		return nil, err
	}
	if day.IsZero() {
		day = l.clock.Now()
	}
	start := clock.StartOfWeek(day)
	entries, err := l.stores.History.List(ctx, store.HistoryFilter{
		UserID: userID,
		From:   start.Format(clock.DateLayout),
		To:     start.AddDate(0, 0, 6).Format(clock.DateLayout),
	})
	if err != nil {
		return nil, err
	}
	s := Stats(entries, userID, start, l.missedLimit)
	return &s, nil
}

func (l *Ledger) user(ctx context.Context, userID string) (*model.User, error) {
	u, err := l.stores.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound(events.CollectionUsers, userID)
	}
	return u, nil
}
