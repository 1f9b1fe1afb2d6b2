package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/model"
)

type RedemptionStore struct {
	db       DBTX
	notifier Notifier
}

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.Redemption, error) {
	var (
		r           model.Redemption
		requestedAt string
		decidedAt   sql.NullString
	)

	err := scanner.Scan(&r.ID, &r.RewardID, &r.RewardTitle, &r.Cost, &r.RequestedBy, &r.Status, &requestedAt, &decidedAt)
	if err != nil {
		return nil, err
	}

	if r.RequestedAt, err = parseTime(requestedAt); err != nil {
		return nil, err
	}
	if r.DecidedAt, err = parseNullTime(decidedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

const redemptionCols = `id, reward_id, reward_title, cost, requested_by, status, requested_at, decided_at`

func (s *RedemptionStore) Create(ctx context.Context, r *model.Redemption) (*model.Redemption, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	r.RequestedAt = nowIfZero(r.RequestedAt)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO redemptions (`+redemptionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RewardID, r.RewardTitle, r.Cost, r.RequestedBy, r.Status, formatTime(r.RequestedAt), nullTime(r.DecidedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}

	s.notifier.Publish(events.Change{Collection: events.CollectionRedemptions, Action: events.ActionCreated, ID: r.ID})
	return s.GetByID(ctx, r.ID)
}

func (s *RedemptionStore) GetByID(ctx context.Context, id string) (*model.Redemption, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+redemptionCols+` FROM redemptions WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

type RedemptionFilter struct {
	UserID string
	Status model.RedemptionStatus
}

// List returns redemptions, newest request first.
func (s *RedemptionStore) List(ctx context.Context, f RedemptionFilter) ([]model.Redemption, error) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != "" {
		conds = append(conds, "requested_by = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}

	query := `SELECT ` + redemptionCols + ` FROM redemptions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY requested_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	var redemptions []model.Redemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, *r)
	}
	return redemptions, rows.Err()
}

// Transition moves a redemption from one status to another only if it is
// still in from. It reports whether the row was written.
func (s *RedemptionStore) Transition(ctx context.Context, id string, from, to model.RedemptionStatus, decidedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE redemptions SET status = ?, decided_at = ? WHERE id = ? AND status = ?`,
		to, formatTime(nowIfZero(decidedAt)), id, from,
	)
	if err != nil {
		return false, fmt.Errorf("transition redemption: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	s.notifier.Publish(events.Change{Collection: events.CollectionRedemptions, Action: events.ActionUpdated, ID: id})
	return true, nil
}
