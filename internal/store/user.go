package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/model"
)

type UserStore struct {
	db       DBTX
	notifier Notifier
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var (
		u                    model.User
		vacation             int
		createdAt, updatedAt string
	)

	err := scanner.Scan(&u.ID, &u.Name, &u.Role, &u.Color, &u.AvatarEmoji, &vacation, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	u.VacationMode = vacation != 0
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, name, role, color, avatar_emoji, vacation_mode, created_at, updated_at`

func (s *UserStore) Create(ctx context.Context, in model.UserInput, createdAt time.Time) (*model.User, error) {
	id := newID()
	ts := formatTime(nowIfZero(createdAt))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Name, in.Role, in.Color, in.AvatarEmoji, boolInt(in.VacationMode), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	s.notifier.Publish(events.Change{Collection: events.CollectionUsers, Action: events.ActionCreated, ID: id})
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) list(ctx context.Context, where string, args ...any) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users `+where+` ORDER BY name ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	return s.list(ctx, "")
}

func (s *UserStore) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	return s.list(ctx, "WHERE role = ?", role)
}

func (s *UserStore) Update(ctx context.Context, id string, in model.UserInput, updatedAt time.Time) (*model.User, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, role = ?, color = ?, avatar_emoji = ?, vacation_mode = ?, updated_at = ? WHERE id = ?`,
		in.Name, in.Role, in.Color, in.AvatarEmoji, boolInt(in.VacationMode), formatTime(nowIfZero(updatedAt)), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.notifier.Publish(events.Change{Collection: events.CollectionUsers, Action: events.ActionUpdated, ID: id})
	return s.GetByID(ctx, id)
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.notifier.Publish(events.Change{Collection: events.CollectionUsers, Action: events.ActionDeleted, ID: id})
	return nil
}

// VacationActive reports whether any guardian has vacation mode switched on.
func (s *UserStore) VacationActive(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = ? AND vacation_mode = 1`, model.RoleGuardian,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check vacation mode: %w", err)
	}
	return n > 0, nil
}
