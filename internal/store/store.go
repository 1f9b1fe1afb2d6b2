package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/starboard/internal/events"
	"github.com/google/uuid"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Notifier receives a change after every successful write.
type Notifier interface {
	Publish(events.Change)
}

type nopNotifier struct{}

func (nopNotifier) Publish(events.Change) {}

// Stores groups the per-collection stores over one database handle.
type Stores struct {
	db       *sql.DB
	notifier Notifier

	Tasks       *TaskStore
	History     *HistoryStore
	Rewards     *RewardStore
	Redemptions *RedemptionStore
	Users       *UserStore
	Messages    *MessageStore
}

func New(db *sql.DB, notifier Notifier) *Stores {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	s := bind(db, notifier)
	s.db = db
	return s
}

func bind(q DBTX, n Notifier) *Stores {
	return &Stores{
		notifier:    n,
		Tasks:       &TaskStore{db: q, notifier: n},
		History:     &HistoryStore{db: q, notifier: n},
		Rewards:     &RewardStore{db: q, notifier: n},
		Redemptions: &RedemptionStore{db: q, notifier: n},
		Users:       &UserStore{db: q, notifier: n},
		Messages:    &MessageStore{db: q, notifier: n},
	}
}

// InTx runs fn with stores bound to a single transaction. Changes are
// published only after a successful commit. Calling InTx on stores that are
// already transactional runs fn in the enclosing transaction.
func (s *Stores) InTx(ctx context.Context, fn func(tx *Stores) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	buf := &bufferedNotifier{}
	if err := fn(bind(tx, buf)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	for _, c := range buf.changes {
		s.notifier.Publish(c)
	}
	return nil
}

type bufferedNotifier struct {
	changes []events.Change
}

func (b *bufferedNotifier) Publish(c events.Change) {
	b.changes = append(b.changes, c)
}

func newID() string {
	return uuid.NewString()
}

// Timestamps are stored as RFC 3339 text in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
