// Package reward manages the reward catalogue and turns redemption requests
// into ledger debits once a guardian approves them.
package reward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/starboard/internal/apperr"
	"github.com/dukerupert/starboard/internal/clock"
	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/ledger"
	"github.com/dukerupert/starboard/internal/metrics"
	"github.com/dukerupert/starboard/internal/model"
	"github.com/dukerupert/starboard/internal/store"
	"github.com/dukerupert/starboard/internal/validate"
)

type Processor struct {
	stores   *store.Stores
	clock    clock.Clock
	validate *validate.Validator
	logger   *slog.Logger
	metrics  *metrics.Metrics
	atomic   bool
}

type Options struct {
	Atomic  bool
	Metrics *metrics.Metrics
}

func NewProcessor(stores *store.Stores, clk clock.Clock, logger *slog.Logger, opts Options) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		stores:   stores,
		clock:    clk,
		validate: validate.New(),
		logger:   logger.With("component", "reward"),
		metrics:  opts.Metrics,
		atomic:   opts.Atomic,
	}
}

func (p *Processor) CreateReward(ctx context.Context, in model.RewardInput) (*model.Reward, error) {
	if err := p.validate.Struct(in); err != nil {
		return nil, err
	}
	return p.stores.Rewards.Create(ctx, in, p.clock.Now())
}

func (p *Processor) UpdateReward(ctx context.Context, id string, in model.RewardInput) (*model.Reward, error) {
	if _, err := p.reward(ctx, id); err != nil {
		return nil, err
	}
	if err := p.validate.Struct(in); err != nil {
		return nil, err
	}
	return p.stores.Rewards.Update(ctx, id, in)
}

// DeleteReward removes a reward. Existing redemptions keep their snapshot.
func (p *Processor) DeleteReward(ctx context.Context, id string) error {
	if _, err := p.reward(ctx, id); err != nil {
		return err
	}
	return p.stores.Rewards.Delete(ctx, id)
}

func (p *Processor) ListRewards(ctx context.Context) ([]model.Reward, error) {
	return p.stores.Rewards.List(ctx)
}

func (p *Processor) ListRedemptions(ctx context.Context, f store.RedemptionFilter) ([]model.Redemption, error) {
	return p.stores.Redemptions.List(ctx, f)
}

// Request creates a pending redemption after checking the requester can
// currently afford it. The check is advisory: nothing stops the balance from
// dropping before a guardian approves.
func (p *Processor) Request(ctx context.Context, rewardID, userID string) (*model.Redemption, error) {
	r, err := p.reward(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	u, err := p.stores.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound(events.CollectionUsers, userID)
	}

	entries, err := p.stores.History.List(ctx, store.HistoryFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	if balance := ledger.Balance(entries, userID); balance < r.Cost {
		return nil, &apperr.InsufficientBalanceError{Balance: balance, Cost: r.Cost}
	}

	red, err := p.stores.Redemptions.Create(ctx, &model.Redemption{
		RewardID:    r.ID,
		RewardTitle: r.Title,
		Cost:        r.Cost,
		RequestedBy: userID,
		Status:      model.RedemptionPending,
		RequestedAt: p.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	p.logger.Info("redemption requested", "redemption_id", red.ID, "reward", r.Title, "user_id", userID, "cost", r.Cost)
	return red, nil
}

// Approve marks a pending redemption approved and debits its cost. The
// status write is conditional and comes first, so a second approval fails
// before it can debit again.
func (p *Processor) Approve(ctx context.Context, id string) (red *model.Redemption, err error) {
	defer func() { p.metrics.Transition("approve", apperr.Kind(err)) }()

	r, err := p.redemption(ctx, p.stores, id)
	if err != nil {
		return nil, err
	}
	if r.Status != model.RedemptionPending {
		return nil, apperr.Transition("approve", string(r.Status))
	}

	now := p.clock.Now()
	entry := &model.HistoryEntry{
		TaskID:     model.RedemptionTaskPrefix + r.ID,
		TaskTitle:  "Redeemed: " + r.RewardTitle,
		AssignedTo: r.RequestedBy,
		Points:     -r.Cost,
		Status:     model.HistoryVerified,
		Date:       now.Format(clock.DateLayout),
		CreatedAt:  now,
	}

	write := func(s *store.Stores) error {
		if err := p.transition(ctx, s, "approve", id, model.RedemptionApproved, now); err != nil {
			return err
		}
		if _, err := s.History.Append(ctx, entry); err != nil {
			return fmt.Errorf("append debit for redemption %s: %w", id, err)
		}
		p.metrics.LedgerAppend(string(entry.Status))
		return nil
	}
	if p.atomic {
		err = p.stores.InTx(ctx, write)
	} else {
		err = write(p.stores)
		if err != nil && !errors.Is(err, apperr.ErrInvalidTransition) && !errors.Is(err, apperr.ErrNotFound) {
			p.logger.Error("ledger debit failed after approval", "redemption_id", id, "error", err)
		}
	}
	if err != nil {
		return nil, err
	}

	r.Status = model.RedemptionApproved
	r.DecidedAt = &now
	p.logger.Info("redemption approved", "redemption_id", id, "user_id", r.RequestedBy, "cost", r.Cost)
	return r, nil
}

func (p *Processor) Reject(ctx context.Context, id string) (red *model.Redemption, err error) {
	defer func() { p.metrics.Transition("reject_redemption", apperr.Kind(err)) }()

	r, err := p.redemption(ctx, p.stores, id)
	if err != nil {
		return nil, err
	}
	if r.Status != model.RedemptionPending {
		return nil, apperr.Transition("reject", string(r.Status))
	}

	now := p.clock.Now()
	if err := p.transition(ctx, p.stores, "reject", id, model.RedemptionRejected, now); err != nil {
		return nil, err
	}
	r.Status = model.RedemptionRejected
	r.DecidedAt = &now
	p.logger.Info("redemption rejected", "redemption_id", id, "user_id", r.RequestedBy)
	return r, nil
}

func (p *Processor) transition(ctx context.Context, s *store.Stores, op, id string, to model.RedemptionStatus, now time.Time) error {
	ok, err := s.Redemptions.Transition(ctx, id, model.RedemptionPending, to, now)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	current, err := p.redemption(ctx, s, id)
	if err != nil {
		return err
	}
	return apperr.Transition(op, string(current.Status))
}

func (p *Processor) reward(ctx context.Context, id string) (*model.Reward, error) {
	r, err := p.stores.Rewards.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.NotFound(events.CollectionRewards, id)
	}
	return r, nil
}

func (p *Processor) redemption(ctx context.Context, s *store.Stores, id string) (*model.Redemption, error) {
	r, err := s.Redemptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.NotFound(events.CollectionRedemptions, id)
	}
	return r, nil
}
