package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/model"
)

type RewardStore struct {
	db       DBTX
	notifier Notifier
}

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var (
		r         model.Reward
		icon      sql.NullString
		createdAt string
	)

	err := scanner.Scan(&r.ID, &r.Title, &r.Description, &r.Cost, &icon, &r.CreatedBy, &createdAt)
	if err != nil {
		return nil, err
	}

	r.Icon = stringPtr(icon)
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &r, nil
}

const rewardCols = `id, title, description, cost, icon, created_by, created_at`

func (s *RewardStore) Create(ctx context.Context, in model.RewardInput, createdAt time.Time) (*model.Reward, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rewards (`+rewardCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, in.Title, in.Description, in.Cost, nullString(in.Icon), in.CreatedBy, formatTime(nowIfZero(createdAt)),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}

	s.notifier.Publish(events.Change{Collection: events.CollectionRewards, Action: events.ActionCreated, ID: id})
	return s.GetByID(ctx, id)
}

func (s *RewardStore) GetByID(ctx context.Context, id string) (*model.Reward, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// List returns all rewards, cheapest first, then by title.
func (s *RewardStore) List(ctx context.Context) ([]model.Reward, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+rewardCols+` FROM rewards ORDER BY cost ASC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(ctx context.Context, id string, in model.RewardInput) (*model.Reward, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rewards SET title = ?, description = ?, cost = ?, icon = ?, created_by = ? WHERE id = ?`,
		in.Title, in.Description, in.Cost, nullString(in.Icon), in.CreatedBy, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}

	s.notifier.Publish(events.Change{Collection: events.CollectionRewards, Action: events.ActionUpdated, ID: id})
	return s.GetByID(ctx, id)
}

func (s *RewardStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	s.notifier.Publish(events.Change{Collection: events.CollectionRewards, Action: events.ActionDeleted, ID: id})
	return nil
}
