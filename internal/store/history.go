package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/model"
)

// HistoryStore is append-only. There is deliberately no update or delete.
type HistoryStore struct {
	db       DBTX
	notifier Notifier
}

func scanHistory(scanner interface{ Scan(...any) error }) (*model.HistoryEntry, error) {
	var (
		h           model.HistoryEntry
		isResp      int
		completedAt sql.NullString
		createdAt   string
	)

	err := scanner.Scan(
		&h.ID, &h.TaskID, &h.TaskTitle, &h.AssignedTo, &h.Points,
		&h.Status, &isResp, &h.Date, &completedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	h.IsResponsibility = isResp != 0
	if h.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	if h.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &h, nil
}

const historyCols = `id, task_id, task_title, assigned_to, points, status, is_responsibility, date, completed_at, created_at`

func (s *HistoryStore) Append(ctx context.Context, h *model.HistoryEntry) (*model.HistoryEntry, error) {
	if h.ID == "" {
		h.ID = newID()
	}
	h.CreatedAt = nowIfZero(h.CreatedAt)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (`+historyCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.TaskID, h.TaskTitle, h.AssignedTo, h.Points,
		h.Status, boolInt(h.IsResponsibility), h.Date, nullTime(h.CompletedAt), formatTime(h.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert history entry: %w", err)
	}

	s.notifier.Publish(events.Change{Collection: events.CollectionHistory, Action: events.ActionCreated, ID: h.ID})
	return s.GetByID(ctx, h.ID)
}

func (s *HistoryStore) GetByID(ctx context.Context, id string) (*model.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+historyCols+` FROM history WHERE id = ?`, id)
	h, err := scanHistory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history entry: %w", err)
	}
	return h, nil
}

// HistoryFilter narrows a listing. Empty fields do not filter. From and To
// are inclusive YYYY-MM-DD dates.
type HistoryFilter struct {
	UserID string
	TaskID string
	From   string
	To     string
}

func (s *HistoryStore) List(ctx context.Context, f HistoryFilter) ([]model.HistoryEntry, error) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != "" {
		conds = append(conds, "assigned_to = ?")
		args = append(args, f.UserID)
	}
	if f.TaskID != "" {
		conds = append(conds, "task_id = ?")
		args = append(args, f.TaskID)
	}
	if f.From != "" {
		conds = append(conds, "date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		conds = append(conds, "date <= ?")
		args = append(args, f.To)
	}

	query := `SELECT ` + historyCols + ` FROM history`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, *h)
	}
	return entries, rows.Err()
}
