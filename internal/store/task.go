package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/model"
)

type TaskStore struct {
	db       DBTX
	notifier Notifier
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var (
		t                                   model.Task
		points                              sql.NullInt64
		dueDate, dueTime, winStart, winEnd  sql.NullString
		days, completedAt, verifiedAt, evid sql.NullString
		isSchool, isResp                    int
		createdAt, updatedAt                string
	)

	err := scanner.Scan(
		&t.ID, &t.Title, &t.Description, &t.AssignedTo, &t.CreatedBy,
		&t.Status, &t.Frequency, &points, &dueDate, &dueTime,
		&winStart, &winEnd, &days, &isSchool, &isResp,
		&completedAt, &verifiedAt, &evid, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Points = intPtr(points)
	t.DueDate = stringPtr(dueDate)
	t.DueTime = stringPtr(dueTime)
	if winStart.Valid && winEnd.Valid {
		t.TimeWindow = &model.TimeWindow{Start: winStart.String, End: winEnd.String}
	}
	if t.RecurrenceDays, err = parseDays(days); err != nil {
		return nil, err
	}
	t.IsSchool = isSchool != 0
	t.IsResponsibility = isResp != 0
	if t.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	if t.VerifiedAt, err = parseNullTime(verifiedAt); err != nil {
		return nil, err
	}
	t.EvidenceRef = stringPtr(evid)
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

const taskCols = `id, title, description, assigned_to, created_by, status, frequency, points, due_date, due_time, window_start, window_end, recurrence_days, is_school, is_responsibility, completed_at, verified_at, evidence_ref, created_at, updated_at`

// recurrence_days is stored as "1,3,5"; NULL means no restriction.
func formatDays(days []int) sql.NullString {
	if len(days) == 0 {
		return sql.NullString{}
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return sql.NullString{String: strings.Join(parts, ","), Valid: true}
}

func parseDays(ns sql.NullString) ([]int, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	parts := strings.Split(ns.String, ",")
	days := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parse recurrence day %q: %w", p, err)
		}
		days = append(days, d)
	}
	return days, nil
}

func windowCols(w *model.TimeWindow) (sql.NullString, sql.NullString) {
	if w == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: w.Start, Valid: true}, sql.NullString{String: w.End, Valid: true}
}

// Create inserts t. An empty ID is replaced with a fresh one.
func (s *TaskStore) Create(ctx context.Context, t *model.Task) (*model.Task, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	t.CreatedAt = nowIfZero(t.CreatedAt)
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	winStart, winEnd := windowCols(t.TimeWindow)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.AssignedTo, t.CreatedBy,
		t.Status, t.Frequency, nullInt(t.Points), nullString(t.DueDate), nullString(t.DueTime),
		winStart, winEnd, formatDays(t.RecurrenceDays), boolInt(t.IsSchool), boolInt(t.IsResponsibility),
		nullTime(t.CompletedAt), nullTime(t.VerifiedAt), nullString(t.EvidenceRef),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	s.notifier.Publish(events.Change{Collection: events.CollectionTasks, Action: events.ActionCreated, ID: t.ID})
	return s.GetByID(ctx, t.ID)
}

func (s *TaskStore) GetByID(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) list(ctx context.Context, where string, args ...any) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks `+where+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// List returns the full live task set, templates included.
func (s *TaskStore) List(ctx context.Context) ([]model.Task, error) {
	return s.list(ctx, "")
}

func (s *TaskStore) ListByAssignee(ctx context.Context, userID string) ([]model.Task, error) {
	return s.list(ctx, "WHERE assigned_to = ?", userID)
}

func (s *TaskStore) ListPool(ctx context.Context) ([]model.Task, error) {
	return s.list(ctx, "WHERE assigned_to = ?", model.PoolAssignee)
}

// Update rewrites the editable fields of a task. Lifecycle fields are not
// touched.
func (s *TaskStore) Update(ctx context.Context, id string, in model.TaskInput, updatedAt time.Time) (*model.Task, error) {
	winStart, winEnd := windowCols(in.TimeWindow)
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, assigned_to = ?, created_by = ?, frequency = ?, points = ?,
			due_date = ?, due_time = ?, window_start = ?, window_end = ?, recurrence_days = ?,
			is_school = ?, is_responsibility = ?, updated_at = ?
		WHERE id = ?`,
		in.Title, in.Description, in.AssignedTo, in.CreatedBy, in.Frequency, nullInt(in.Points),
		nullString(in.DueDate), nullString(in.DueTime), winStart, winEnd, formatDays(in.RecurrenceDays),
		boolInt(in.IsSchool), boolInt(in.IsResponsibility), formatTime(nowIfZero(updatedAt)),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	s.notifier.Publish(events.Change{Collection: events.CollectionTasks, Action: events.ActionUpdated, ID: id})
	return s.GetByID(ctx, id)
}

// Transition writes next's status, completion timestamps and evidence, but
// only if the stored status still equals from. It reports whether the row
// was written; false means another writer moved the task first or it is gone.
func (s *TaskStore) Transition(ctx context.Context, from model.Status, next *model.Task) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = ?, verified_at = ?, evidence_ref = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		next.Status, nullTime(next.CompletedAt), nullTime(next.VerifiedAt), nullString(next.EvidenceRef),
		formatTime(nowIfZero(next.UpdatedAt)),
		next.ID, from,
	)
	if err != nil {
		return false, fmt.Errorf("transition task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	s.notifier.Publish(events.Change{Collection: events.CollectionTasks, Action: events.ActionUpdated, ID: next.ID})
	return true, nil
}

// Reset returns a verified task to pending and clears its completion
// timestamps and evidence, but only if it is still verified with the
// verified_at the caller read. A task verified again since that read is left
// alone.
func (s *TaskStore) Reset(ctx context.Context, id string, verifiedAt, updatedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = NULL, verified_at = NULL, evidence_ref = NULL, updated_at = ?
		WHERE id = ? AND status = ? AND verified_at = ?`,
		model.StatusPending, formatTime(nowIfZero(updatedAt)),
		id, model.StatusVerified, formatTime(verifiedAt),
	)
	if err != nil {
		return false, fmt.Errorf("reset task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	s.notifier.Publish(events.Change{Collection: events.CollectionTasks, Action: events.ActionUpdated, ID: id})
	return true, nil
}

func (s *TaskStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.notifier.Publish(events.Change{Collection: events.CollectionTasks, Action: events.ActionDeleted, ID: id})
	return nil
}

// DeletePool removes every template task and returns how many were removed.
func (s *TaskStore) DeletePool(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE assigned_to = ?`, model.PoolAssignee)
	if err != nil {
		return 0, fmt.Errorf("delete pool tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		s.notifier.Publish(events.Change{Collection: events.CollectionTasks, Action: events.ActionDeleted})
	}
	return n, nil
}
