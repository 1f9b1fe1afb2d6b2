package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/model"
)

type MessageStore struct {
	db       DBTX
	notifier Notifier
}

func scanMessage(scanner interface{ Scan(...any) error }) (*model.Message, error) {
	var (
		m                    model.Message
		authorID             sql.NullString
		pinned               int
		createdAt, updatedAt string
	)

	err := scanner.Scan(&m.ID, &m.Text, &authorID, &pinned, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	m.AuthorID = stringPtr(authorID)
	m.Pinned = pinned != 0
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

const messageCols = `id, text, author_id, pinned, created_at, updated_at`

func (s *MessageStore) Create(ctx context.Context, text string, authorID *string, pinned bool, createdAt time.Time) (*model.Message, error) {
	id := newID()
	ts := formatTime(nowIfZero(createdAt))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
		id, text, nullString(authorID), boolInt(pinned), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	s.notifier.Publish(events.Change{Collection: events.CollectionMessages, Action: events.ActionCreated, ID: id})
	return s.GetByID(ctx, id)
}

func (s *MessageStore) GetByID(ctx context.Context, id string) (*model.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageCols+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// List returns pinned messages first, then newest first.
func (s *MessageStore) List(ctx context.Context) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+messageCols+` FROM messages ORDER BY pinned DESC, created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

func (s *MessageStore) Update(ctx context.Context, id, text string, pinned bool, updatedAt time.Time) (*model.Message, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET text = ?, pinned = ?, updated_at = ? WHERE id = ?`,
		text, boolInt(pinned), formatTime(nowIfZero(updatedAt)), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}

	s.notifier.Publish(events.Change{Collection: events.CollectionMessages, Action: events.ActionUpdated, ID: id})
	return s.GetByID(ctx, id)
}

func (s *MessageStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	s.notifier.Publish(events.Change{Collection: events.CollectionMessages, Action: events.ActionDeleted, ID: id})
	return nil
}
